// Package guard decides whether a client may be served and escalates clients
// that keep misbehaving into temporary blocks.
//
// A Guard owns one block registry and one activity tracker. The request
// pipeline calls Evaluate before handling a request and ReportSuspicious after
// it decides a request was abusive.
package guard

import (
	"context"
	"math"
	"time"

	"github.com/headswim/ipguard/blocker"
	"github.com/headswim/ipguard/clock"
	"github.com/headswim/ipguard/log"
	"github.com/headswim/ipguard/tracker"
)

// ReasonSuspicious is recorded on blocks created by escalation.
const ReasonSuspicious = "Multiple suspicious activities"

// Block duration policies applied on repeated escalations.
const (
	IncreaseFixed     = "fixed"
	IncreaseLinear    = "linear"
	IncreaseGeometric = "geometric"
)

// maxGeometricSteps caps the doubling.
const maxGeometricSteps = 16

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	BlockedUntil time.Time `json:"blockedUntil,omitzero"`
}

// Options represents the options for the guard
type Options struct {
	Threshold       int
	BlockDuration   time.Duration
	TimeoutIncrease string // "fixed", "linear" or "geometric"
	SweepInterval   time.Duration
	IdleHorizon     time.Duration
	Shards          int
	Clock           clock.Clock
	Logger          log.Logger
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		Threshold:       tracker.DefaultThreshold,
		BlockDuration:   blocker.DefaultDuration,
		TimeoutIncrease: IncreaseFixed,
		SweepInterval:   time.Minute,
		IdleHorizon:     30 * time.Minute,
	}
}

// Guard is safe for concurrent use.
type Guard struct {
	options  Options
	registry *blocker.Service
	tracker  *tracker.Service
	clock    clock.Clock
	logger   log.Logger
}

// New creates a Guard. Zero-valued options take their defaults.
func New(opts Options) *Guard {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.BlockDuration <= 0 {
		opts.BlockDuration = def.BlockDuration
	}
	switch opts.TimeoutIncrease {
	case IncreaseFixed, IncreaseLinear, IncreaseGeometric:
	default:
		opts.TimeoutIncrease = def.TimeoutIncrease
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = def.SweepInterval
	}
	if opts.IdleHorizon <= 0 {
		opts.IdleHorizon = def.IdleHorizon
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}

	return &Guard{
		options: opts,
		registry: blocker.NewServiceWithOptions(blocker.Options{
			Clock:           opts.Clock,
			DefaultDuration: opts.BlockDuration,
			Shards:          opts.Shards,
		}),
		tracker: tracker.NewServiceWithOptions(tracker.Options{
			Clock:     opts.Clock,
			Threshold: opts.Threshold,
			Shards:    opts.Shards,
		}),
		clock:  opts.Clock,
		logger: opts.Logger,
	}
}

// Options returns the effective options.
func (g *Guard) Options() Options {
	return g.options
}

// Evaluate decides whether a request from id may proceed.
func (g *Guard) Evaluate(id string) Decision {
	entry, blocked := g.registry.Active(id)
	if !blocked {
		return Decision{Allowed: true}
	}

	g.warn(map[string]any{
		"identifier":    id,
		"reason":        entry.Reason,
		"blocked_until": entry.BlockedUntil,
	}, "Blocked request denied")

	return Decision{
		Allowed:      false,
		Reason:       entry.Reason,
		BlockedUntil: entry.BlockedUntil,
	}
}

// ReportSuspicious records one abusive request from id and blocks id once the
// threshold is reached. It reports whether this call registered a block.
// Reports for an identifier that is currently blocked are ignored.
//
// The blocked check, the increment and the block run under the tracker's lock
// for id, so concurrent reports past the threshold register one block.
func (g *Guard) ReportSuspicious(id string) bool {
	var (
		entry    blocker.BlockEntry
		duration time.Duration
		skipped  bool
	)

	escalated, counter := g.tracker.RecordSuspiciousWith(id, tracker.Hooks{
		Skip: func(id string) bool {
			skipped = g.registry.IsBlocked(id)
			return skipped
		},
		OnEscalate: func(c tracker.ActivityCounter) time.Time {
			duration = g.blockDuration(c.Escalations)
			entry = g.registry.Block(id, ReasonSuspicious, duration)
			return entry.BlockedUntil
		},
	})
	if skipped {
		return false
	}
	if !escalated {
		g.debug(map[string]any{"identifier": id, "count": counter.Count}, "Suspicious activity recorded")
		return false
	}

	g.warn(map[string]any{
		"identifier":    id,
		"reason":        ReasonSuspicious,
		"count":         g.options.Threshold,
		"escalations":   counter.Escalations,
		"duration":      duration.String(),
		"blocked_until": entry.BlockedUntil,
	}, "Identifier blocked after suspicious activity")

	return true
}

// Block blocks id directly. A non-positive duration uses the configured
// block duration.
func (g *Guard) Block(id, reason string, duration time.Duration) blocker.BlockEntry {
	entry := g.registry.Block(id, reason, duration)
	g.warn(map[string]any{
		"identifier":    id,
		"reason":        reason,
		"blocked_until": entry.BlockedUntil,
	}, "Identifier blocked")
	return entry
}

// Unblock lifts the block on id and clears its activity history.
func (g *Guard) Unblock(id string) bool {
	g.tracker.Reset(id)
	return g.registry.Unblock(id)
}

// Info returns the block entry for id without expiring it.
func (g *Guard) Info(id string) (blocker.BlockEntry, bool) {
	return g.registry.Info(id)
}

// Activity returns the suspicious activity counter for id.
func (g *Guard) Activity(id string) (tracker.ActivityCounter, bool) {
	return g.tracker.Get(id)
}

// Blocked returns all active blocks.
func (g *Guard) Blocked() []blocker.BlockEntry {
	return g.registry.List()
}

// blockDuration calculates the block duration for the n-th escalation.
// Results saturate at the largest representable duration.
func (g *Guard) blockDuration(escalations int) time.Duration {
	base := g.options.BlockDuration
	if escalations <= 1 {
		return base
	}

	switch g.options.TimeoutIncrease {
	case IncreaseLinear:
		return saturatingMul(base, int64(escalations))
	case IncreaseGeometric:
		steps := escalations - 1
		if steps > maxGeometricSteps {
			steps = maxGeometricSteps
		}
		return saturatingMul(base, int64(1)<<steps)
	default:
		return base
	}
}

func saturatingMul(d time.Duration, n int64) time.Duration {
	if d > 0 && n > 0 && int64(d) > math.MaxInt64/n {
		return time.Duration(math.MaxInt64)
	}
	return d * time.Duration(n)
}

// Sweep removes expired blocks and counters idle past the idle horizon.
func (g *Guard) Sweep() (blocks, counters int) {
	now := g.clock.Now()
	blocks = g.registry.Sweep(now)
	counters = g.tracker.Sweep(now, g.options.IdleHorizon)
	return blocks, counters
}

// Run sweeps every SweepInterval until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.options.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			blocks, counters := g.Sweep()
			if blocks > 0 || counters > 0 {
				g.debug(map[string]any{
					"expired_blocks":   blocks,
					"evicted_counters": counters,
				}, "Sweep completed")
			}
		}
	}
}

// warn and debug never let a misbehaving logger affect a decision.
func (g *Guard) warn(fields map[string]any, msg string) {
	defer func() { _ = recover() }()
	g.logger.Warn(fields, msg)
}

func (g *Guard) debug(fields map[string]any, msg string) {
	defer func() { _ = recover() }()
	g.logger.Debug(fields, msg)
}
