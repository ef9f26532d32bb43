package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// AccessLog writes one line per request with the resolved user and request id.
func AccessLog() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		user := "user=anonymous"
		if v, ok := param.Keys[identityKey]; ok {
			if id, ok := v.(RequestIdentity); ok && id.HasUser() {
				user = fmt.Sprintf("user=%d", id.UserID)
			}
		}
		requestID, _ := param.Keys[requestIDKey].(string)

		return fmt.Sprintf("[GIN] %s | %d | %8v | %s | %-7s %s | %s request_id=%s\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
			user,
			requestID,
		)
	})
}
