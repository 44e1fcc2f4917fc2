package matcher

// defaultPatterns are path prefixes that legitimate visitors of this site never
// request. Matching is case-insensitive.
var defaultPatterns = []string{
	// WordPress probes
	"/wp-admin",
	"/wp-login.php",
	"/wp-content/plugins",
	"/xmlrpc.php",

	// Leaked configuration and VCS metadata
	"/.env",
	"/.git",
	"/.svn",
	"/.aws",
	"/config.php",
	"/web.config",

	// Admin panels and shells
	"/phpmyadmin",
	"/pma",
	"/adminer",
	"/shell.php",
	"/cgi-bin",
	"/vendor/phpunit",

	// Traversal
	"/../",
	"/etc/passwd",
}

// DefaultPatterns returns a copy of the built-in probing path prefixes.
func DefaultPatterns() []string {
	return append([]string(nil), defaultPatterns...)
}
