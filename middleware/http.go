package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// HTTPMiddleware is a middleware for standard HTTP servers
type HTTPMiddleware struct {
	middleware *Middleware
}

// HTTP returns an HTTPMiddleware for the given Middleware
func (m *Middleware) HTTP() *HTTPMiddleware {
	return &HTTPMiddleware{
		middleware: m,
	}
}

// NewHTTP creates a new HTTP middleware
func NewHTTP(options Options) (*HTTPMiddleware, error) {
	middleware, err := New(options)
	if err != nil {
		return nil, err
	}

	return middleware.HTTP(), nil
}

// Handler wraps an http.Handler with the middleware
func (m *HTTPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := m.middleware.HandleRequest(r)
		if !decision.Allowed {
			now := m.middleware.guard.Options().Clock.Now()
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter(decision, now), 10))
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(denialBody(decision))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Middleware returns a function that can be used with http.HandleFunc
func (m *HTTPMiddleware) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return m.Handler(next).ServeHTTP
}

// Report marks r as abusive.
func (m *HTTPMiddleware) Report(r *http.Request) bool {
	return m.middleware.Report(r)
}
