package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// IdentifierKey is the gin context key holding the client identifier.
const IdentifierKey = "ipguard.identifier"

// GinMiddleware is a middleware for the Gin framework
type GinMiddleware struct {
	middleware *Middleware
}

// Gin returns a GinMiddleware for the given Middleware
func (m *Middleware) Gin() *GinMiddleware {
	return &GinMiddleware{
		middleware: m,
	}
}

// NewGin creates a new Gin middleware
func NewGin(options Options) (*GinMiddleware, error) {
	middleware, err := New(options)
	if err != nil {
		return nil, err
	}

	return middleware.Gin(), nil
}

// Middleware returns a Gin middleware function
func (m *GinMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(IdentifierKey, m.middleware.ClientIdentifier(c.Request))

		decision := m.middleware.HandleRequest(c.Request)
		if !decision.Allowed {
			now := m.middleware.guard.Options().Clock.Now()
			c.Header("Retry-After", strconv.FormatInt(retryAfter(decision, now), 10))
			c.AbortWithStatusJSON(http.StatusForbidden, denialBody(decision))
			return
		}

		c.Next()
	}
}

// Report marks the request in c as abusive.
func (m *GinMiddleware) Report(c *gin.Context) bool {
	return m.middleware.Report(c.Request)
}

// Sweep removes expired blocks and idle counters immediately.
func (m *GinMiddleware) Sweep() (blocks, counters int) {
	return m.middleware.Sweep()
}

// Unwrap returns the underlying Middleware.
func (m *GinMiddleware) Unwrap() *Middleware {
	return m.middleware
}
