package matcher

// defaultWhitelist is a list of identifiers that should never be blocked
var defaultWhitelist = []string{
	// Localhost
	"127.0.0.1",
	"::1",

	// Health checkers and admin hosts go here, e.g.
	// "10.0.0.5",
}

// DefaultWhitelist returns a copy of the built-in whitelist.
func DefaultWhitelist() []string {
	return append([]string(nil), defaultWhitelist...)
}
