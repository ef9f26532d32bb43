package ws

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-service/internal/middleware"
	"social-service/internal/repositories"
)

// GroupWebSocketHandler handles group websocket connections.
type GroupWebSocketHandler struct {
	hub       *Hub
	groupRepo repositories.GroupRepository
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(hub *Hub, groupRepo repositories.GroupRepository) *GroupWebSocketHandler {
	return &GroupWebSocketHandler{hub: hub, groupRepo: groupRepo}
}

// Handle upgrades and registers a websocket connection for an active group member.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid group id"})
		return
	}

	identity := middleware.IdentityFrom(c)
	if !identity.HasUser() {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "user id required"})
		return
	}

	membership, err := h.groupRepo.GetMembership(c.Request.Context(), identity.UserID, groupID)
	if err != nil || !membership.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not authorized for group"})
		return
	}

	serve(c, h.hub, GroupRoom(groupID), "group", identity)
}

// FeedWebSocketHandler streams post updates to any client.
type FeedWebSocketHandler struct {
	hub *Hub
}

func NewFeedWebSocketHandler(hub *Hub) *FeedWebSocketHandler {
	return &FeedWebSocketHandler{hub: hub}
}

func (h *FeedWebSocketHandler) Handle(c *gin.Context) {
	serve(c, h.hub, FeedRoom, "feed", middleware.IdentityFrom(c))
}
