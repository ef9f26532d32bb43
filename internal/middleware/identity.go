package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/events"
)

const (
	identityKey  = "identity"
	requestIDKey = "requestID"

	HeaderUserID    = "X-User-ID"
	HeaderUsername  = "X-Username"
	HeaderRole      = "X-Role"
	HeaderRequestID = "X-Request-ID"
)

// RequestIdentity is the caller as asserted by the upstream gateway.
type RequestIdentity struct {
	UserID   int
	Username string
	Role     string
}

// HasUser reports whether a user id was supplied.
func (i RequestIdentity) HasUser() bool {
	return i.UserID > 0
}

// Identity resolves the caller from identity headers, falling back to the
// userId and username query parameters. Tokens are not verified here.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := RequestIdentity{
			UserID:   parseUserID(firstNonEmpty(c.GetHeader(HeaderUserID), c.Query("userId"))),
			Username: strings.TrimSpace(firstNonEmpty(c.GetHeader(HeaderUsername), c.Query("username"))),
			Role:     strings.TrimSpace(c.GetHeader(HeaderRole)),
		}
		c.Set(identityKey, id)
		if id.HasUser() {
			c.Set("userID", id.UserID)
		}
		c.Next()
	}
}

// RequireUser rejects requests without a resolved user id.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).HasUser() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "user id required"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Identity, or the zero value.
func IdentityFrom(c *gin.Context) RequestIdentity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(RequestIdentity); ok {
			return id
		}
	}
	return RequestIdentity{}
}

// RequestID propagates X-Request-ID or assigns a new one, and exposes it to
// the event bus through the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(events.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestIDFrom returns the id stored by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func parseUserID(raw string) int {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
