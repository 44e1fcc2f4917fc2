package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/headswim/ipguard/config"
	"github.com/stretchr/testify/assert"
)

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		strategy   string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote with port", config.StrategyRemote, "203.0.113.7:5555", nil, "203.0.113.7"},
		{"remote ipv6", config.StrategyRemote, "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"remote without port", config.StrategyRemote, "203.0.113.7", nil, "203.0.113.7"},
		{"remote empty", config.StrategyRemote, "", nil, UnknownIdentifier},
		{"remote ignores headers", config.StrategyRemote, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "10.0.0.1"},
		{"proxy xff first hop", config.StrategyProxy, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"proxy real ip wins over xff", config.StrategyProxy, "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.2", "X-Forwarded-For": "198.51.100.1"}, "198.51.100.2"},
		{"proxy cloudflare first", config.StrategyProxy, "10.0.0.1:1", map[string]string{"CF-Connecting-IP": "198.51.100.3", "X-Real-IP": "198.51.100.2"}, "198.51.100.3"},
		{"proxy invalid header falls through", config.StrategyProxy, "10.0.0.1:1", map[string]string{"X-Real-IP": "garbage", "X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"proxy header with port", config.StrategyProxy, "10.0.0.1:1", map[string]string{"X-Forwarded-For": "198.51.100.1:8080"}, "198.51.100.1"},
		{"proxy no headers", config.StrategyProxy, "10.0.0.1:1", nil, "10.0.0.1"},
		{"proxy nothing usable", config.StrategyProxy, "", map[string]string{"X-Forwarded-For": "nope"}, UnknownIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIdentifier(r, tt.strategy))
		})
	}
}
