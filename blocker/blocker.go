package blocker

import (
	"time"
)

// DefaultDuration is applied when Block is called with a non-positive duration.
const DefaultDuration = 24 * time.Hour

// BlockEntry describes an identifier that has been blocked.
type BlockEntry struct {
	Identifier   string    `json:"identifier"`
	Reason       string    `json:"reason"`
	BlockedAt    time.Time `json:"blocked_at"`
	BlockedUntil time.Time `json:"blocked_until"`
}

// ActiveAt reports whether the block is still in force at now.
// A block is expired exactly at BlockedUntil.
func (e BlockEntry) ActiveAt(now time.Time) bool {
	return now.Before(e.BlockedUntil)
}

// Blocker defines the interface for the block registry
type Blocker interface {
	// IsBlocked reports whether id has an active block, removing an expired one
	IsBlocked(id string) bool

	// Block blocks id until now+duration, replacing any existing entry
	Block(id, reason string, duration time.Duration) BlockEntry

	// Info returns the entry for id without touching expiry
	Info(id string) (BlockEntry, bool)

	// Unblock lifts a block
	Unblock(id string) bool

	// Sweep removes expired blocks
	Sweep(now time.Time) int
}
