package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
	"social-service/internal/ws"
)

// GroupHandler manages group, membership and join request endpoints.
type GroupHandler struct {
	groupRepo     repositories.GroupRepository
	messageRepo   repositories.MessageRepository
	hub           *ws.Hub
	bus           *events.Bus
	defaultAvatar string
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, messageRepo repositories.MessageRepository, hub *ws.Hub, bus *events.Bus, defaultAvatar string) *GroupHandler {
	return &GroupHandler{
		groupRepo:     groupRepo,
		messageRepo:   messageRepo,
		hub:           hub,
		bus:           bus,
		defaultAvatar: defaultAvatar,
	}
}

type joinedGroup struct {
	models.Group
	UserRole string    `json:"userRole"`
	JoinedAt time.Time `json:"joinedAt"`
	IsMember bool      `json:"isMember"`
}

type availableGroup struct {
	models.Group
	HasPendingRequest bool   `json:"hasPendingRequest"`
	MembershipStatus  string `json:"membershipStatus"`
	CanCancelRequest  bool   `json:"canCancelRequest"`
	RequestID         int    `json:"requestId,omitempty"`
	IsMember          bool   `json:"isMember"`
}

// Overview handles GET /api/index: the caller's joined groups, the groups
// still available to join and any pending requests.
func (h *GroupHandler) Overview(c *gin.Context) {
	userID := middleware.IdentityFrom(c).UserID
	if userID == 0 {
		respondError(c, http.StatusBadRequest, "Missing userId parameter")
		return
	}

	var (
		groups      []models.Group
		memberships []models.UserMembership
		pending     []models.PendingRequest
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		groups, err = h.groupRepo.ListGroups(ctx)
		return err
	})
	g.Go(func() (err error) {
		memberships, err = h.groupRepo.ListUserMemberships(ctx, userID)
		return err
	})
	g.Go(func() (err error) {
		pending, err = h.groupRepo.ListPendingRequests(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondErr(c, err, "failed to fetch groups")
		return
	}

	byGroup := make(map[int]models.UserMembership, len(memberships))
	for _, m := range memberships {
		byGroup[m.GroupID] = m
	}
	requestByGroup := make(map[int]models.PendingRequest, len(pending))
	for _, r := range pending {
		requestByGroup[r.GroupID] = r
	}

	joined := make([]joinedGroup, 0, len(memberships))
	available := make([]availableGroup, 0, len(groups))
	for _, group := range groups {
		if m, ok := byGroup[group.ID]; ok {
			joined = append(joined, joinedGroup{Group: group, UserRole: m.Role, JoinedAt: m.JoinedAt, IsMember: true})
			continue
		}
		entry := availableGroup{Group: group, MembershipStatus: "not_member"}
		if r, ok := requestByGroup[group.ID]; ok {
			entry.HasPendingRequest = true
			entry.CanCancelRequest = true
			entry.MembershipStatus = models.StatusPending
			entry.RequestID = r.ID
		}
		available = append(available, entry)
	}

	respond(c, http.StatusOK, gin.H{
		"joinedGroups":    joined,
		"availableGroups": available,
		"pendingRequests": pending,
		"memberships":     memberships,
	})
}

type groupActionRequest struct {
	Action    string `json:"action"`
	GroupID   int    `json:"groupId"`
	UserID    int    `json:"userId"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar"`
	RequestID int    `json:"requestId"`
}

// Action handles POST /api/index with action join, leave or cancelRequest.
func (h *GroupHandler) Action(c *gin.Context) {
	var req groupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	identity := middleware.IdentityFrom(c)
	if req.UserID == 0 {
		req.UserID = identity.UserID
	}
	if req.Username == "" {
		req.Username = identity.Username
	}
	if req.Action == "" || req.GroupID <= 0 || req.UserID <= 0 {
		respondError(c, http.StatusBadRequest, "Missing required parameters: action, groupId, userId")
		return
	}

	switch req.Action {
	case "join":
		h.join(c, req)
	case "leave":
		h.leave(c, req)
	case "cancelRequest":
		h.cancelRequest(c, req)
	default:
		respondError(c, http.StatusBadRequest, "Invalid action. Supported actions: join, leave, cancelRequest")
	}
}

func (h *GroupHandler) join(c *gin.Context, req groupActionRequest) {
	avatar := req.Avatar
	if avatar == "" {
		avatar = h.defaultAvatar
	}
	result, err := h.groupRepo.JoinGroup(c.Request.Context(), req.UserID, req.Username, avatar, req.GroupID)
	if err != nil {
		emitAudit(h.bus, c, "ERROR", "join failed")
		respondErr(c, err, "Action failed")
		return
	}

	if !result.Existing {
		payload := memberPayload(req.UserID, req.GroupID, req.Username)
		if result.RequiresApproval() {
			payload["request_id"] = result.RequestID
			h.bus.Publish(c.Request.Context(), events.JoinRequested, payload)
		} else {
			h.systemMessage(c.Request.Context(), req.GroupID, displayName(req.Username, result.Membership.Username)+" joined the group")
			h.bus.Publish(c.Request.Context(), events.MemberJoined, payload)
		}
	}

	respond(c, http.StatusOK, gin.H{
		"membership":       result.Membership,
		"requiresApproval": result.RequiresApproval(),
		"requestId":        result.RequestID,
	})
}

func (h *GroupHandler) leave(c *gin.Context, req groupActionRequest) {
	ctx := c.Request.Context()
	membership, err := h.groupRepo.GetMembership(ctx, req.UserID, req.GroupID)
	if err != nil {
		respondErr(c, err, "Action failed")
		return
	}
	if membership == nil {
		respondError(c, http.StatusForbidden, "You are not a member of this group")
		return
	}

	if err := h.groupRepo.LeaveGroup(ctx, req.UserID, req.GroupID); err != nil {
		respondErr(c, err, "Action failed")
		return
	}

	if membership.IsActive() {
		if _, err := h.messageRepo.AnonymizeUser(ctx, req.UserID, req.GroupID); err != nil {
			log.Printf("anonymize messages failed user_id=%d group_id=%d: %v", req.UserID, req.GroupID, err)
		}
		h.systemMessage(ctx, req.GroupID, displayName(req.Username, membership.Username)+" left the group")
	}
	h.bus.Publish(ctx, events.MemberLeft, memberPayload(req.UserID, req.GroupID, displayName(req.Username, membership.Username)))
	respond(c, http.StatusOK, nil)
}

func (h *GroupHandler) cancelRequest(c *gin.Context, req groupActionRequest) {
	if req.RequestID <= 0 {
		respondError(c, http.StatusBadRequest, "Missing requestId")
		return
	}
	if err := h.groupRepo.CancelJoinRequest(c.Request.Context(), req.RequestID, req.UserID, req.GroupID); err != nil {
		respondErr(c, err, "Action failed")
		return
	}
	respond(c, http.StatusOK, nil)
}

// ListGroups handles GET /groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groupRepo.ListGroups(c.Request.Context())
	if err != nil {
		respondErr(c, err, "failed to load groups")
		return
	}
	respond(c, http.StatusOK, gin.H{"groups": groups})
}

// CreateGroup handles POST /groups. The creator becomes the group admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	identity := middleware.IdentityFrom(c)

	var req models.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(h.bus, c, "ERROR", "invalid request payload")
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "Name required")
		return
	}

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), identity.UserID, identity.Username, req)
	if err != nil {
		emitAudit(h.bus, c, "ERROR", "internal error")
		respondErr(c, err, "could not create group")
		return
	}

	h.bus.Publish(c.Request.Context(), events.GroupCreated, map[string]any{"group": group, "owner_id": identity.UserID})
	emitAudit(h.bus, c, "INFO", "Group created")
	respond(c, http.StatusCreated, gin.H{"group": group})
}

// GetGroup handles GET /groups/:group_id with the caller's membership and permissions.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := c.GetInt("userID")

	var (
		group      models.Group
		membership *models.Membership
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		group, err = h.groupRepo.GetGroup(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		membership, err = h.groupRepo.GetMembership(gctx, userID, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		respondErr(c, err, "failed to load group")
		return
	}

	respond(c, http.StatusOK, gin.H{
		"group":       group,
		"membership":  membership,
		"permissions": models.PermissionsFor(membership),
	})
}

// UpdateGroup handles PUT /groups/:group_id.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.authorize(c, groupID, models.PermManage); !ok {
		return
	}

	var req models.GroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(c, http.StatusBadRequest, "Name required")
		return
	}

	group, err := h.groupRepo.UpdateGroup(c.Request.Context(), groupID, req)
	if err != nil {
		respondErr(c, err, "could not update group")
		return
	}
	h.bus.Publish(c.Request.Context(), events.GroupUpdated, map[string]any{"group": group})
	respond(c, http.StatusOK, gin.H{"group": group})
}

// DeleteGroup handles DELETE /groups/:group_id. Memberships and join requests go with it.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.authorize(c, groupID, models.PermManage); !ok {
		return
	}
	if err := h.groupRepo.DeleteGroup(c.Request.Context(), groupID); err != nil {
		respondErr(c, err, "could not delete group")
		return
	}
	h.bus.Publish(c.Request.Context(), events.GroupDeleted, map[string]any{"group_id": groupID, "deleted_by": c.GetInt("userID")})
	emitAudit(h.bus, c, "INFO", "Group deleted")
	respond(c, http.StatusOK, nil)
}

// ListMembers handles GET /groups/:group_id/members.
func (h *GroupHandler) ListMembers(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.authorize(c, groupID, models.PermRead); !ok {
		return
	}
	members, err := h.groupRepo.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		respondErr(c, err, "failed to load members")
		return
	}
	respond(c, http.StatusOK, gin.H{"members": members})
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	targetID, ok := parseIntParam(c, "user_id", "user id")
	if !ok {
		return
	}
	if _, ok := h.authorize(c, groupID, models.PermModerate); !ok {
		return
	}

	ctx := c.Request.Context()
	target, err := h.groupRepo.GetMembership(ctx, targetID, groupID)
	if err != nil {
		respondErr(c, err, "failed to remove member")
		return
	}
	if target == nil {
		respondError(c, http.StatusNotFound, "member not found")
		return
	}
	if target.Role == models.RoleAdmin {
		respondError(c, http.StatusForbidden, "admins cannot be removed")
		return
	}
	if err := h.groupRepo.LeaveGroup(ctx, targetID, groupID); err != nil {
		respondErr(c, err, "failed to remove member")
		return
	}
	if target.IsActive() {
		if _, err := h.messageRepo.AnonymizeUser(ctx, targetID, groupID); err != nil {
			log.Printf("anonymize messages failed user_id=%d group_id=%d: %v", targetID, groupID, err)
		}
		h.systemMessage(ctx, groupID, target.Username+" was removed from the group")
	}
	payload := memberPayload(targetID, groupID, target.Username)
	payload["removed_by"] = c.GetInt("userID")
	h.bus.Publish(ctx, events.MemberLeft, payload)
	respond(c, http.StatusOK, nil)
}

// ListJoinRequests handles GET /groups/:group_id/requests.
func (h *GroupHandler) ListJoinRequests(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.authorize(c, groupID, models.PermModerate); !ok {
		return
	}
	status := c.DefaultQuery("status", models.RequestPending)
	if status == "all" {
		status = ""
	}
	requests, err := h.groupRepo.ListJoinRequests(c.Request.Context(), groupID, status)
	if err != nil {
		respondErr(c, err, "failed to load join requests")
		return
	}
	respond(c, http.StatusOK, gin.H{"requests": requests})
}

// ApproveJoinRequest handles POST /groups/:group_id/requests/:request_id/approve.
func (h *GroupHandler) ApproveJoinRequest(c *gin.Context) {
	groupID, req, ok := h.reviewable(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	reviewerID := c.GetInt("userID")

	membership, err := h.groupRepo.ApproveJoinRequest(ctx, req.ID, reviewerID)
	if err != nil {
		respondErr(c, err, "failed to approve request")
		return
	}

	h.systemMessage(ctx, groupID, displayName(membership.Username, req.Username)+" joined the group")
	payload := memberPayload(membership.UserID, groupID, membership.Username)
	payload["request_id"] = req.ID
	payload["reviewed_by"] = reviewerID
	h.bus.Publish(ctx, events.JoinApproved, payload)
	h.bus.Publish(ctx, events.MemberJoined, memberPayload(membership.UserID, groupID, membership.Username))
	emitAudit(h.bus, c, "INFO", "Join request approved")
	respond(c, http.StatusOK, gin.H{"membership": membership})
}

// RejectJoinRequest handles POST /groups/:group_id/requests/:request_id/reject.
func (h *GroupHandler) RejectJoinRequest(c *gin.Context) {
	groupID, req, ok := h.reviewable(c)
	if !ok {
		return
	}
	reviewerID := c.GetInt("userID")

	rejected, err := h.groupRepo.RejectJoinRequest(c.Request.Context(), req.ID, reviewerID)
	if err != nil {
		respondErr(c, err, "failed to reject request")
		return
	}

	payload := memberPayload(rejected.UserID, groupID, rejected.Username)
	payload["request_id"] = rejected.ID
	payload["reviewed_by"] = reviewerID
	h.bus.Publish(c.Request.Context(), events.JoinRejected, payload)
	emitAudit(h.bus, c, "INFO", "Join request rejected")
	respond(c, http.StatusOK, gin.H{"request": rejected})
}

// reviewable loads the request named in the path, checks it belongs to the
// group and that the caller may moderate it.
func (h *GroupHandler) reviewable(c *gin.Context) (int, models.JoinRequest, bool) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return 0, models.JoinRequest{}, false
	}
	requestID, ok := parseIntParam(c, "request_id", "request id")
	if !ok {
		return 0, models.JoinRequest{}, false
	}
	if _, ok := h.authorize(c, groupID, models.PermModerate); !ok {
		return 0, models.JoinRequest{}, false
	}

	req, err := h.groupRepo.GetJoinRequest(c.Request.Context(), requestID)
	if err != nil {
		respondErr(c, err, "failed to load join request")
		return 0, models.JoinRequest{}, false
	}
	if req.GroupID != groupID {
		respondError(c, http.StatusNotFound, repositories.ErrJoinRequestNotFound.Error())
		return 0, models.JoinRequest{}, false
	}
	if req.Status != models.RequestPending {
		respondError(c, http.StatusConflict, repositories.ErrJoinRequestResolved.Error())
		return 0, models.JoinRequest{}, false
	}
	return groupID, req, true
}

// authorize requires an active membership of the caller granting perm.
func (h *GroupHandler) authorize(c *gin.Context, groupID int, perm string) (*models.Membership, bool) {
	return authorizeMember(c, h.groupRepo, h.bus, groupID, perm)
}

func authorizeMember(c *gin.Context, groupRepo repositories.GroupRepository, bus *events.Bus, groupID int, perm string) (*models.Membership, bool) {
	membership, err := groupRepo.GetMembership(c.Request.Context(), c.GetInt("userID"), groupID)
	if err != nil {
		emitAudit(bus, c, "ERROR", "internal error")
		respondErr(c, err, "membership check failed")
		return nil, false
	}
	if !membership.IsActive() || !models.HasPermission(membership, perm) {
		emitAudit(bus, c, "ERROR", "not allowed")
		respondError(c, http.StatusForbidden, "Insufficient permissions")
		return nil, false
	}
	return membership, true
}

// systemMessage records and broadcasts a system message. Failures are logged only.
func (h *GroupHandler) systemMessage(ctx context.Context, groupID int, content string) {
	msg, err := h.messageRepo.CreateSystemMessage(ctx, groupID, content)
	if err != nil {
		log.Printf("system message failed group_id=%d: %v", groupID, err)
		return
	}
	observability.IncMessageCreated(models.MessageSystem)
	if h.hub != nil {
		h.hub.BroadcastGroupMessage(groupID, msg)
	}
}

func memberPayload(userID, groupID int, username string) map[string]any {
	return map[string]any{"user_id": userID, "group_id": groupID, "username": username}
}

func displayName(names ...string) string {
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return "A member"
}
