package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/headswim/ipguard/middleware"
)

type contactForm struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Message string `json:"message" binding:"required,max=5000"`
}

// buildRouter serves the public routes behind the guard plus a whitelisted
// admin group for inspecting and lifting blocks.
func buildRouter(m *middleware.Middleware) *gin.Engine {
	gm := m.Gin()

	r := gin.New()
	r.Use(gin.Recovery(), gm.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Malformed submissions are reported as suspicious.
	r.POST("/contact", func(c *gin.Context) {
		var form contactForm
		if err := c.ShouldBindJSON(&form); err != nil {
			gm.Report(c)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Thank you for reaching out"})
	})

	admin := r.Group("/admin", func(c *gin.Context) {
		if !m.Trusted(c.Request) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Next()
	})

	admin.GET("/blocks", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"blocks": m.Guard().Blocked()})
	})

	admin.GET("/blocks/:id", func(c *gin.Context) {
		id := c.Param("id")
		entry, ok := m.Guard().Info(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not blocked"})
			return
		}
		activity, _ := m.Guard().Activity(id)
		c.JSON(http.StatusOK, gin.H{"block": entry, "activity": activity})
	})

	admin.DELETE("/blocks/:id", func(c *gin.Context) {
		if !m.Guard().Unblock(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not blocked"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.POST("/sweep", func(c *gin.Context) {
		blocks, counters := gm.Sweep()
		c.JSON(http.StatusOK, gin.H{"expired_blocks": blocks, "evicted_counters": counters})
	})

	return r
}
