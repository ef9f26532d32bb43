package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-service/internal/events"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, bus *events.Bus, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/events-test", func(c *gin.Context) {
		if bus == nil {
			respondError(c, http.StatusServiceUnavailable, "event bus not configured")
			return
		}
		emitAudit(bus, c, "INFO", "audit test")
		bus.Publish(c.Request.Context(), events.DebugTest, gin.H{"path": c.FullPath()})
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	})
}
