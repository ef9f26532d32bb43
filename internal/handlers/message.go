package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
	"social-service/internal/ws"
)

// MessageHandler serves group message history and posting.
type MessageHandler struct {
	groupRepo   repositories.GroupRepository
	messageRepo repositories.MessageRepository
	hub         *ws.Hub
	bus         *events.Bus
	pageSize    int
}

// NewMessageHandler constructs a MessageHandler. pageSize is the default
// history page when the client sends no limit.
func NewMessageHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, bus *events.Bus, pageSize int) *MessageHandler {
	if pageSize <= 0 {
		pageSize = repositories.DefaultMessageLimit
	}
	return &MessageHandler{
		groupRepo:   groupRepo,
		messageRepo: messageRepo,
		hub:         hub,
		bus:         bus,
		pageSize:    pageSize,
	}
}

// ListMessages handles GET /groups/:group_id/messages?limit=&offset=&before=.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead); !ok {
		return
	}

	q := models.MessageQuery{
		Limit:  queryInt(c, "limit", h.pageSize),
		Offset: queryInt(c, "offset", 0),
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		q.Before = &before
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), groupID, q)
	if err != nil {
		respondErr(c, err, "failed to load messages")
		return
	}
	respond(c, http.StatusOK, gin.H{"messages": msgs})
}

// SearchMessages handles GET /groups/:group_id/messages/search?q=.
func (h *MessageHandler) SearchMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		respondError(c, http.StatusBadRequest, "search term required")
		return
	}
	if _, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead); !ok {
		return
	}

	msgs, err := h.messageRepo.SearchMessages(c.Request.Context(), groupID, term, queryInt(c, "limit", h.pageSize), queryInt(c, "offset", 0))
	if err != nil {
		respondErr(c, err, "failed to search messages")
		return
	}
	respond(c, http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /groups/:group_id/messages.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	membership, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermWrite)
	if !ok {
		return
	}

	var req struct {
		Content  string `json:"content"`
		ImageURL string `json:"imageUrl"`
		ReplyTo  *int   `json:"replyTo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(h.bus, c, "ERROR", "invalid request payload")
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	in := models.NewMessage{
		GroupID:    groupID,
		UserID:     membership.UserID,
		Username:   displayName(membership.Username, middleware.IdentityFrom(c).Username),
		SenderRole: membership.Role,
		Content:    req.Content,
		ImageURL:   req.ImageURL,
		ReplyTo:    req.ReplyTo,
	}
	if err := in.Normalize(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if in.ReplyTo != nil {
		_, err := h.messageRepo.GetMessage(c.Request.Context(), groupID, *in.ReplyTo)
		if errors.Is(err, repositories.ErrMessageNotFound) {
			respondError(c, http.StatusBadRequest, "reply target not found")
			return
		}
		if err != nil {
			respondErr(c, err, "failed to store message")
			return
		}
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), in)
	if err != nil {
		emitAudit(h.bus, c, "ERROR", "internal error")
		respondErr(c, err, "failed to store message")
		return
	}

	observability.IncMessageCreated(msg.Type)
	h.hub.BroadcastGroupMessage(groupID, msg)
	h.bus.Publish(c.Request.Context(), events.MessageCreated, map[string]any{"group_id": groupID, "message": msg})
	emitAudit(h.bus, c, "INFO", "Group message sent")
	respond(c, http.StatusCreated, gin.H{"message": msg})
}

// EditMessage handles PATCH /groups/:group_id/messages/:message_id. Only the
// sender or a group admin may edit.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}
	membership, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(c, http.StatusBadRequest, models.ErrEmptyMessage.Error())
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messageRepo.GetMessage(ctx, groupID, messageID)
	if err != nil {
		respondErr(c, err, "failed to load message")
		return
	}
	if !msg.SentBy(membership.UserID) && membership.Role != models.RoleAdmin {
		emitAudit(h.bus, c, "ERROR", "not allowed to edit")
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}

	updated, err := h.messageRepo.EditMessage(ctx, groupID, messageID, content)
	if err != nil {
		respondErr(c, err, "failed to edit message")
		return
	}
	h.hub.BroadcastGroupUpdate(groupID, updated)
	h.bus.Publish(ctx, events.MessageUpdated, map[string]any{"group_id": groupID, "message": updated, "edited_by": membership.UserID})
	respond(c, http.StatusOK, gin.H{"message": updated})
}

// DeleteMessage handles DELETE /groups/:group_id/messages/:message_id. The
// sender, admins and moderators may delete; the row is soft-deleted unless an
// admin passes purge=true.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}
	membership, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	msg, err := h.messageRepo.GetMessage(ctx, groupID, messageID)
	if err != nil {
		respondErr(c, err, "failed to load message")
		return
	}
	if !msg.SentBy(membership.UserID) && !models.HasPermission(membership, models.PermDelete) {
		emitAudit(h.bus, c, "ERROR", "not allowed to delete")
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}

	purge := c.Query("purge") == "true"
	if purge && !models.HasPermission(membership, models.PermManage) {
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}
	if purge {
		err = h.messageRepo.PurgeMessage(ctx, messageID)
	} else {
		err = h.messageRepo.DeleteMessage(ctx, groupID, messageID)
	}
	if err != nil {
		respondErr(c, err, "could not delete")
		return
	}

	h.hub.BroadcastGroupDeletion(groupID, messageID)
	h.bus.Publish(ctx, events.MessageDeleted, map[string]any{"group_id": groupID, "message_id": messageID, "deleted_by": membership.UserID})
	emitAudit(h.bus, c, "INFO", "Group message deleted")
	respond(c, http.StatusOK, nil)
}

// CountMessages handles GET /groups/:group_id/messages/count.
func (h *MessageHandler) CountMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	membership, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead)
	if !ok {
		return
	}
	includeDeleted := c.Query("includeDeleted") == "true" && models.HasPermission(membership, models.PermModerate)

	count, err := h.messageRepo.CountMessages(c.Request.Context(), groupID, includeDeleted)
	if err != nil {
		respondErr(c, err, "failed to count messages")
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count})
}

// MemberMessages handles GET /groups/:group_id/members/:user_id/messages.
// Members may list their own messages; moderators may list anyone's.
func (h *MessageHandler) MemberMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	targetID, ok := parseIntParam(c, "user_id", "user id")
	if !ok {
		return
	}
	membership, ok := authorizeMember(c, h.groupRepo, h.bus, groupID, models.PermRead)
	if !ok {
		return
	}
	if targetID != membership.UserID && !models.HasPermission(membership, models.PermModerate) {
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return
	}

	msgs, err := h.messageRepo.ListUserMessages(c.Request.Context(), targetID, groupID, queryInt(c, "limit", h.pageSize), queryInt(c, "offset", 0))
	if err != nil {
		respondErr(c, err, "failed to load messages")
		return
	}
	respond(c, http.StatusOK, gin.H{"messages": msgs})
}

// RecentMessages handles GET /messages/recent: the latest message of each
// group the caller has written in and still belongs to.
func (h *MessageHandler) RecentMessages(c *gin.Context) {
	userID := c.GetInt("userID")
	memberships, err := h.groupRepo.ListUserMemberships(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err, "failed to load memberships")
		return
	}
	if len(memberships) == 0 {
		respond(c, http.StatusOK, gin.H{"messages": []models.Message{}})
		return
	}

	msgs, err := h.messageRepo.RecentMessages(c.Request.Context(), userID, queryInt(c, "limit", repositories.DefaultMessageLimit))
	if err != nil {
		respondErr(c, err, "failed to load messages")
		return
	}

	active := make(map[int]struct{}, len(memberships))
	for _, m := range memberships {
		active[m.GroupID] = struct{}{}
	}
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := active[m.GroupID]; ok {
			out = append(out, m)
		}
	}
	respond(c, http.StatusOK, gin.H{"messages": out})
}
