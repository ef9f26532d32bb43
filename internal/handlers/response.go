package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

func respond(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// statusFor maps domain errors to HTTP statuses. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound),
		errors.Is(err, repositories.ErrMessageNotFound),
		errors.Is(err, repositories.ErrJoinRequestNotFound),
		errors.Is(err, repositories.ErrPostNotFound),
		errors.Is(err, repositories.ErrUserNotFound),
		errors.Is(err, models.ErrCommentNotFound),
		errors.Is(err, models.ErrReplyNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrJoinRequestResolved):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, models.ErrEmptyComment),
		errors.Is(err, models.ErrEmptyReply):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status. Internal errors are logged
// and replaced with fallback so driver messages never reach clients.
func respondErr(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed path=%s request_id=%s: %v", c.FullPath(), requestIDFromContext(c), err)
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}

func parseIntParam(c *gin.Context, name, label string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid "+label)
		return 0, false
	}
	return id, true
}

func parseGroupID(c *gin.Context) (int, bool) {
	return parseIntParam(c, "group_id", "group id")
}

func parseGroupIDs(c *gin.Context) (int, int, bool) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return 0, 0, false
	}
	msgID, ok := parseIntParam(c, "message_id", "message id")
	if !ok {
		return 0, 0, false
	}
	return groupID, msgID, true
}

// queryInt reads a non-negative integer query parameter, returning fallback
// when absent or malformed.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
