// Package ipguard provides adaptive IP blocking middleware for Go web applications.
// Clients that keep sending suspicious requests are blocked for a while; the
// middleware can be used with Gin and with standard net/http.
package ipguard

import (
	"context"

	"github.com/headswim/ipguard/blocker"
	"github.com/headswim/ipguard/config"
	"github.com/headswim/ipguard/guard"
	"github.com/headswim/ipguard/log"
	"github.com/headswim/ipguard/middleware"
)

// New creates a new instance of the middleware with default configuration
func New() (*middleware.Middleware, error) {
	return NewWithConfig(config.DefaultConfig())
}

// NewWithConfig creates a new instance of the middleware with custom configuration
func NewWithConfig(cfg config.Config) (*middleware.Middleware, error) {
	return middleware.New(middleware.Options{
		Config: cfg,
		Logger: log.GetLogger(),
	})
}

// Start runs the background sweep of expired blocks and idle counters until
// ctx is cancelled. It does nothing when cleanup is disabled.
func Start(ctx context.Context, m *middleware.Middleware) bool {
	if !m.GetOptions().Config.CleanupEnabled {
		return false
	}
	go m.Guard().Run(ctx)
	return true
}

// Expose important types from subpackages
type (
	// Config represents the configuration for ipguard
	Config = config.Config

	// Decision is the allow/deny answer for a request
	Decision = guard.Decision

	// BlockEntry describes an active block
	BlockEntry = blocker.BlockEntry
)

// ReasonSuspicious is the reason recorded on escalated blocks.
const ReasonSuspicious = guard.ReasonSuspicious
