package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/headswim/ipguard/config"
)

// UnknownIdentifier is used when a request carries no usable address. Every
// such request shares this one bucket.
const UnknownIdentifier = "unknown"

// proxyHeaders are consulted in order under the proxy strategy.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

// clientIdentifier derives the identifier for r according to strategy.
func clientIdentifier(r *http.Request, strategy string) string {
	if strategy == config.StrategyProxy {
		for _, header := range proxyHeaders {
			if ip, ok := headerIP(r.Header.Get(header)); ok {
				return ip
			}
		}
	}
	return remoteIP(r.RemoteAddr)
}

// headerIP returns the first address in a header value if it parses as an IP.
// X-Forwarded-For lists the original client first.
func headerIP(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	first, _, _ := strings.Cut(value, ",")
	ip := stripPort(strings.TrimSpace(first))
	if net.ParseIP(ip) == nil {
		return "", false
	}
	return ip, true
}

// remoteIP returns the host part of a RemoteAddr, or UnknownIdentifier.
func remoteIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return UnknownIdentifier
	}
	return stripPort(remoteAddr)
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// No port
		return addr
	}
	return host
}
