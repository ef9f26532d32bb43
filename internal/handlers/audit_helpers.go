package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/events"
	"social-service/internal/middleware"
)

func emitAudit(bus *events.Bus, c *gin.Context, level, text string) {
	bus.Audit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func requestIDFromContext(c *gin.Context) string {
	if id := middleware.RequestIDFrom(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.HeaderRequestID)
}

func userIDFromContext(c *gin.Context) *string {
	if id := middleware.IdentityFrom(c); id.HasUser() {
		value := strconv.Itoa(id.UserID)
		return &value
	}
	if val := c.GetInt("userID"); val > 0 {
		value := strconv.Itoa(val)
		return &value
	}
	return nil
}
