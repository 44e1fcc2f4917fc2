package tracker

import (
	"time"
)

// DefaultThreshold is the number of suspicious events that escalates an identifier.
const DefaultThreshold = 5

// ActivityCounter represents the suspicious activity seen from an identifier
type ActivityCounter struct {
	Identifier  string    `json:"identifier"`
	Count       int       `json:"count"`
	Escalations int       `json:"escalations"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`

	// HeldUntil keeps the counter from going idle before this time, e.g.
	// while the identifier is blocked.
	HeldUntil time.Time `json:"held_until,omitzero"`
}

// IdleSince returns the later of LastSeen and HeldUntil.
func (c ActivityCounter) IdleSince() time.Time {
	if c.HeldUntil.After(c.LastSeen) {
		return c.HeldUntil
	}
	return c.LastSeen
}

// Hooks run under the identifier's lock, so a skip check, the increment and
// whatever OnEscalate does are atomic with respect to other events for the
// same identifier.
type Hooks struct {
	// Skip reports whether the event must be ignored.
	Skip func(id string) bool

	// OnEscalate runs when the event crosses the threshold. The returned
	// time becomes the counter's HeldUntil.
	OnEscalate func(c ActivityCounter) time.Time
}

// Tracker defines the interface for counting suspicious events
type Tracker interface {
	// RecordSuspicious counts one event and reports whether it crossed the threshold
	RecordSuspicious(id string) (bool, ActivityCounter)

	// RecordSuspiciousWith is RecordSuspicious with hooks run under the identifier's lock
	RecordSuspiciousWith(id string, hooks Hooks) (bool, ActivityCounter)

	// Get returns the counter for id
	Get(id string) (ActivityCounter, bool)

	// Reset forgets id
	Reset(id string)

	// Sweep evicts counters idle for longer than idle, measured from IdleSince
	Sweep(now time.Time, idle time.Duration) int
}
