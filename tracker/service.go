package tracker

import (
	"time"

	"github.com/headswim/ipguard/clock"
	"github.com/headswim/ipguard/internal/shardmap"
)

// Service implements the Tracker interface in memory.
type Service struct {
	counters  *shardmap.Map[ActivityCounter]
	clock     clock.Clock
	threshold int
}

// Options configures a Service.
type Options struct {
	Clock     clock.Clock
	Threshold int
	Shards    int
}

// NewService creates a Service with the default threshold.
func NewService() *Service {
	return NewServiceWithOptions(Options{})
}

// NewServiceWithOptions creates a Service. A non-positive threshold falls
// back to DefaultThreshold.
func NewServiceWithOptions(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}

	return &Service{
		counters:  shardmap.New[ActivityCounter](opts.Shards),
		clock:     opts.Clock,
		threshold: opts.Threshold,
	}
}

// Threshold returns the escalation threshold.
func (s *Service) Threshold() int {
	return s.threshold
}

// RecordSuspicious increments the counter for id. When the new count reaches
// the threshold the counter is reset and the call reports an escalation; the
// returned counter is the post-reset state.
func (s *Service) RecordSuspicious(id string) (bool, ActivityCounter) {
	return s.RecordSuspiciousWith(id, Hooks{})
}

// RecordSuspiciousWith is RecordSuspicious with hooks. A skipped event leaves
// the counter untouched and never escalates.
func (s *Service) RecordSuspiciousWith(id string, hooks Hooks) (bool, ActivityCounter) {
	var (
		escalated bool
		result    ActivityCounter
	)

	now := s.clock.Now()
	s.counters.Update(id, func(c ActivityCounter, exists bool) (ActivityCounter, bool) {
		if hooks.Skip != nil && hooks.Skip(id) {
			result = c
			return c, exists
		}

		if !exists {
			c = ActivityCounter{Identifier: id, FirstSeen: now}
		}
		c.Count++
		c.LastSeen = now

		if c.Count >= s.threshold {
			escalated = true
			c.Count = 0
			c.Escalations++
			if hooks.OnEscalate != nil {
				c.HeldUntil = hooks.OnEscalate(c)
			}
		}

		result = c
		return c, true
	})

	return escalated, result
}

// Get returns the counter for id.
func (s *Service) Get(id string) (ActivityCounter, bool) {
	return s.counters.Get(id)
}

// Reset removes the counter for id, including its escalation history.
func (s *Service) Reset(id string) {
	s.counters.Delete(id)
}

// Sweep evicts counters idle for longer than idle. A counter held past its
// last event (see HeldUntil) only starts idling once the hold ends.
func (s *Service) Sweep(now time.Time, idle time.Duration) int {
	cutoff := now.Add(-idle)
	return s.counters.DeleteIf(func(_ string, c ActivityCounter) bool {
		return !c.IdleSince().After(cutoff)
	})
}

// Len returns the number of tracked identifiers.
func (s *Service) Len() int {
	return s.counters.Len()
}

var _ Tracker = (*Service)(nil)
