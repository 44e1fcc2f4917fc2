package blocker

import (
	"sort"
	"time"

	"github.com/headswim/ipguard/clock"
	"github.com/headswim/ipguard/internal/shardmap"
)

// Service implements the Blocker interface in memory.
type Service struct {
	entries         *shardmap.Map[BlockEntry]
	clock           clock.Clock
	defaultDuration time.Duration
}

// Options configures a Service.
type Options struct {
	Clock           clock.Clock
	DefaultDuration time.Duration
	Shards          int
}

// NewService creates a new Service instance
func NewService() *Service {
	return NewServiceWithOptions(Options{})
}

// NewServiceWithOptions creates a Service with an explicit clock, default
// duration and shard count. Zero values fall back to defaults.
func NewServiceWithOptions(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = DefaultDuration
	}

	return &Service{
		entries:         shardmap.New[BlockEntry](opts.Shards),
		clock:           opts.Clock,
		defaultDuration: opts.DefaultDuration,
	}
}

// Block blocks an identifier. Calling it again for the same identifier
// overwrites the previous entry, so the later expiry always wins.
func (s *Service) Block(id, reason string, duration time.Duration) BlockEntry {
	if duration <= 0 {
		duration = s.defaultDuration
	}

	now := s.clock.Now()
	entry := BlockEntry{
		Identifier:   id,
		Reason:       reason,
		BlockedAt:    now,
		BlockedUntil: now.Add(duration),
	}

	s.entries.Update(id, func(BlockEntry, bool) (BlockEntry, bool) {
		return entry, true
	})
	return entry
}

// Unblock removes the entry for id whether or not it has expired.
func (s *Service) Unblock(id string) bool {
	return s.entries.Delete(id)
}

// IsBlocked checks if an identifier is blocked
func (s *Service) IsBlocked(id string) bool {
	_, blocked := s.Active(id)
	return blocked
}

// Active returns the entry for id if it is still in force. A lapsed entry is
// removed, the same as IsBlocked.
func (s *Service) Active(id string) (BlockEntry, bool) {
	entry, exists := s.entries.Get(id)
	if !exists {
		return BlockEntry{}, false
	}

	if entry.ActiveAt(s.clock.Now()) {
		return entry, true
	}

	// Expired under the read lock; check again under the write lock since a
	// concurrent Block may have replaced it.
	var (
		active  BlockEntry
		blocked bool
	)
	s.entries.Update(id, func(cur BlockEntry, exists bool) (BlockEntry, bool) {
		if !exists {
			return cur, false
		}
		if cur.ActiveAt(s.clock.Now()) {
			active, blocked = cur, true
			return cur, true
		}
		return cur, false
	})
	return active, blocked
}

// Info returns the stored entry for id, even when it has already lapsed.
func (s *Service) Info(id string) (BlockEntry, bool) {
	return s.entries.Get(id)
}

// Sweep removes every entry that has expired at now.
func (s *Service) Sweep(now time.Time) int {
	return s.entries.DeleteIf(func(_ string, e BlockEntry) bool {
		return !e.ActiveAt(now)
	})
}

// Len returns the number of stored entries, expired ones included.
func (s *Service) Len() int {
	return s.entries.Len()
}

// List returns all active entries ordered by expiry.
func (s *Service) List() []BlockEntry {
	now := s.clock.Now()
	result := make([]BlockEntry, 0)
	s.entries.Range(func(_ string, e BlockEntry) bool {
		if e.ActiveAt(now) {
			result = append(result, e)
		}
		return true
	})

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockedUntil.Equal(result[j].BlockedUntil) {
			return result[i].Identifier < result[j].Identifier
		}
		return result[i].BlockedUntil.Before(result[j].BlockedUntil)
	})
	return result
}

var _ Blocker = (*Service)(nil)
