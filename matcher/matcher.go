package matcher

// Matcher classifies requests for the middleware.
type Matcher interface {
	// IsMalicious reports whether path starts with a known probing prefix
	IsMalicious(path string) bool

	// IsWhitelisted reports whether the identifier must never be blocked
	IsWhitelisted(id string) bool
}
