package middleware

import (
	"net/http"
	"time"

	"github.com/headswim/ipguard/config"
	"github.com/headswim/ipguard/guard"
	"github.com/headswim/ipguard/log"
	"github.com/headswim/ipguard/matcher"
)

// Options represents the options for the middleware
type Options struct {
	Config  config.Config
	Guard   *guard.Guard
	Matcher matcher.Matcher
	Logger  log.Logger
}

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		Config: config.DefaultConfig(),
		Logger: log.GetLogger(),
	}
}

// Middleware sits in front of request handling: it denies blocked clients and
// reports requests for known probing paths to the guard.
type Middleware struct {
	options Options
	guard   *guard.Guard
	matcher matcher.Matcher
	logger  log.Logger
}

// DenialBody is the JSON body sent with a 403 for a blocked client.
type DenialBody struct {
	Error        string `json:"error"`
	Reason       string `json:"reason"`
	BlockedUntil int64  `json:"blockedUntil"` // unix milliseconds
}

// New creates a new middleware. Missing collaborators are built from
// options.Config.
func New(options Options) (*Middleware, error) {
	config.ValidateConfig(&options.Config)
	cfg := options.Config

	if options.Logger == nil {
		options.Logger = log.GetLogger()
	}

	m := &Middleware{
		options: options,
		logger:  options.Logger,
	}

	if options.Guard == nil {
		m.guard = guard.New(guard.Options{
			Threshold:       cfg.Threshold,
			BlockDuration:   cfg.BlockDuration,
			TimeoutIncrease: cfg.TimeoutIncrease,
			SweepInterval:   cfg.SweepInterval,
			IdleHorizon:     cfg.IdleHorizon,
			Logger:          options.Logger,
		})
	} else {
		m.guard = options.Guard
	}

	if options.Matcher == nil {
		patterns := append(matcher.DefaultPatterns(), cfg.Patterns...)
		whitelist := append(matcher.DefaultWhitelist(), cfg.Whitelist...)
		svc, err := matcher.NewServiceWithOptions(patterns, whitelist, cfg.PathCacheSize)
		if err != nil {
			return nil, err
		}
		m.matcher = svc
	} else {
		m.matcher = options.Matcher
	}

	return m, nil
}

// Guard returns the guard this middleware consults.
func (m *Middleware) Guard() *guard.Guard {
	return m.guard
}

// ClientIdentifier returns the identifier the middleware uses for r.
func (m *Middleware) ClientIdentifier(r *http.Request) string {
	return clientIdentifier(r, m.options.Config.IdentifierStrategy)
}

// HandleRequest decides whether r may proceed. A request for a probing path
// counts as suspicious; the request that triggers the block is itself denied.
func (m *Middleware) HandleRequest(r *http.Request) guard.Decision {
	id := m.ClientIdentifier(r)

	if m.matcher.IsWhitelisted(id) {
		return guard.Decision{Allowed: true}
	}

	decision := m.guard.Evaluate(id)
	if !decision.Allowed {
		return decision
	}

	if !m.matcher.IsMalicious(r.URL.Path) {
		return decision
	}

	if m.guard.ReportSuspicious(id) {
		return m.guard.Evaluate(id)
	}

	m.logger.Info(map[string]any{
		"identifier": id,
		"path":       r.URL.Path,
	}, "Malicious request")
	return decision
}

// Report marks r as abusive, for handlers that detect abuse themselves
// (malformed payloads, failed logins). It reports whether the client is now
// blocked by this call.
func (m *Middleware) Report(r *http.Request) bool {
	id := m.ClientIdentifier(r)
	if m.matcher.IsWhitelisted(id) {
		return false
	}
	return m.guard.ReportSuspicious(id)
}

// Trusted reports whether the client behind r is whitelisted.
func (m *Middleware) Trusted(r *http.Request) bool {
	return m.matcher.IsWhitelisted(m.ClientIdentifier(r))
}

// Sweep removes expired blocks and idle counters immediately.
func (m *Middleware) Sweep() (blocks, counters int) {
	return m.guard.Sweep()
}

// GetOptions returns the middleware options
func (m *Middleware) GetOptions() Options {
	return m.options
}

func denialBody(d guard.Decision) DenialBody {
	return DenialBody{
		Error:        "Forbidden",
		Reason:       d.Reason,
		BlockedUntil: d.BlockedUntil.UnixMilli(),
	}
}

// retryAfter returns the Retry-After header value in whole seconds.
func retryAfter(d guard.Decision, now time.Time) int64 {
	secs := int64(d.BlockedUntil.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}
