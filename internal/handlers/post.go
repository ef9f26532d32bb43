package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/ws"
)

var errNotPostOwner = errors.New("You can only edit or delete your own posts")

// PostHandler serves the public feed.
type PostHandler struct {
	postRepo       repositories.PostRepository
	hub            *ws.Hub
	bus            *events.Bus
	defaultPicture string
	now            func() time.Time
	newID          func() string
}

// NewPostHandler constructs a PostHandler.
func NewPostHandler(postRepo repositories.PostRepository, hub *ws.Hub, bus *events.Bus, defaultPicture string) *PostHandler {
	return &PostHandler{
		postRepo:       postRepo,
		hub:            hub,
		bus:            bus,
		defaultPicture: defaultPicture,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// ListPosts handles GET /api/posts. Stored media becomes a URL or data URI.
func (h *PostHandler) ListPosts(c *gin.Context) {
	posts, err := h.postRepo.ListPosts(c.Request.Context(), queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		respondErr(c, err, "Error retrieving posts")
		return
	}
	for i := range posts {
		posts[i].Photo = models.MediaURL(posts[i].Photo, "image/jpeg")
		posts[i].Video = models.MediaURL(posts[i].Video, "video/mp4")
	}
	respond(c, http.StatusOK, gin.H{"posts": posts})
}

type createPostRequest struct {
	Title     string  `json:"title"`
	Subject   string  `json:"subject"`
	Message   string  `json:"message"`
	Username  string  `json:"username"`
	SessionID string  `json:"sessionId"`
	Photo     *string `json:"photo"`
	Video     *string `json:"video"`
}

// CreatePost handles POST /api/posts.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Username == "" {
		req.Username = middleware.IdentityFrom(c).Username
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.SessionID) == "" {
		respondError(c, http.StatusBadRequest, "Username and sessionId are required")
		return
	}

	post := models.Post{
		Title:      req.Title,
		Subject:    req.Subject,
		Message:    req.Message,
		Username:   req.Username,
		SessionID:  req.SessionID,
		Photo:      nonEmpty(req.Photo),
		Video:      nonEmpty(req.Video),
		Timestamp:  h.now().UTC(),
		LikedBy:    models.StringSet{},
		DislikedBy: models.StringSet{},
		Comments:   models.Comments{},
	}
	if !post.HasContent() {
		respondError(c, http.StatusBadRequest, "Post content cannot be empty")
		return
	}

	ctx := c.Request.Context()
	picture := h.profilePicture(c, post.Username)
	post.ProfilePicture = &picture

	if err := h.postRepo.CreatePost(ctx, &post); err != nil {
		emitAudit(h.bus, c, "ERROR", "internal error")
		respondErr(c, err, "Error saving post")
		return
	}

	h.hub.BroadcastFeed(models.FeedEvent{Type: "newOpinion", Post: &post})
	h.bus.Publish(ctx, events.PostCreated, map[string]any{"post_id": post.ID, "username": post.Username})
	respond(c, http.StatusCreated, gin.H{"post": post})
}

type opinionRequest struct {
	PostID    int    `json:"postId"`
	Action    string `json:"action"`
	Username  string `json:"username"`
	Comment   string `json:"comment"`
	Reply     string `json:"reply"`
	CommentID string `json:"commentId"`
	ReplyID   string `json:"replyId"`
}

// Opinion handles PUT /api/posts/opinion: likes, dislikes, comments, replies
// and hearts.
func (h *PostHandler) Opinion(c *gin.Context) {
	var req opinionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Username == "" {
		req.Username = middleware.IdentityFrom(c).Username
	}
	if req.PostID <= 0 || req.Action == "" || req.Username == "" {
		respondError(c, http.StatusBadRequest, "Post ID, action, and username are required")
		return
	}

	in := models.OpinionInput{
		Action:    req.Action,
		Username:  req.Username,
		Comment:   req.Comment,
		Reply:     req.Reply,
		CommentID: req.CommentID,
		ReplyID:   req.ReplyID,
	}
	post, err := h.postRepo.UpdatePost(c.Request.Context(), req.PostID, func(p *models.Post) error {
		return p.ApplyOpinion(in, h.now().UTC(), h.newID)
	})
	if err != nil {
		respondErr(c, err, "Error updating post")
		return
	}

	h.hub.BroadcastFeed(models.FeedEvent{Type: "updateOpinion", Post: &post})
	h.bus.Publish(c.Request.Context(), events.PostUpdated, map[string]any{"post_id": post.ID, "action": req.Action, "username": req.Username})
	respond(c, http.StatusOK, gin.H{"post": post})
}

type ownerRequest struct {
	Username  string `json:"username"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// EditPost handles PUT /api/posts/:post_id. Only the author may edit.
func (h *PostHandler) EditPost(c *gin.Context) {
	postID, ok := parseIntParam(c, "post_id", "post id")
	if !ok {
		return
	}
	var req ownerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	username := ownerName(c, req)
	if username == "" {
		respondError(c, http.StatusBadRequest, "Missing required fields: username")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondError(c, http.StatusBadRequest, "Post content cannot be empty")
		return
	}

	post, err := h.postRepo.UpdatePost(c.Request.Context(), postID, func(p *models.Post) error {
		if p.Username != username {
			return errNotPostOwner
		}
		p.Message = message
		p.Timestamp = h.now().UTC()
		return nil
	})
	if errors.Is(err, errNotPostOwner) {
		emitAudit(h.bus, c, "ERROR", "not allowed to edit post")
		respondError(c, http.StatusForbidden, err.Error())
		return
	}
	if err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}

	h.hub.BroadcastFeed(models.FeedEvent{Type: "updateOpinion", Post: &post})
	h.bus.Publish(c.Request.Context(), events.PostUpdated, map[string]any{"post_id": post.ID, "action": "edit", "username": username})
	respond(c, http.StatusOK, gin.H{"post": post})
}

// DeletePost handles DELETE /api/posts/:post_id. Only the author may delete.
func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := parseIntParam(c, "post_id", "post id")
	if !ok {
		return
	}
	var req ownerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request payload")
			return
		}
	}
	username := ownerName(c, req)
	if username == "" {
		respondError(c, http.StatusBadRequest, "Missing required fields: username")
		return
	}

	ctx := c.Request.Context()
	post, err := h.postRepo.GetPost(ctx, postID)
	if err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}
	if post.Username != username {
		emitAudit(h.bus, c, "ERROR", "not allowed to delete post")
		respondError(c, http.StatusForbidden, errNotPostOwner.Error())
		return
	}
	if err := h.postRepo.DeletePost(ctx, postID); err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}

	h.hub.BroadcastFeed(models.FeedEvent{Type: "deleteOpinion", ID: postID})
	h.bus.Publish(ctx, events.PostDeleted, map[string]any{"post_id": postID, "username": username})
	respond(c, http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// UpdateProfilePicture handles POST /api/users/profile-picture.
func (h *PostHandler) UpdateProfilePicture(c *gin.Context) {
	var req struct {
		Username       string `json:"username"`
		ProfilePicture string `json:"profilePicture"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Username == "" {
		req.Username = middleware.IdentityFrom(c).Username
	}
	if req.Username == "" || strings.TrimSpace(req.ProfilePicture) == "" {
		respondError(c, http.StatusBadRequest, "Username and profile picture are required")
		return
	}
	if err := h.postRepo.UpdateProfilePicture(c.Request.Context(), req.Username, req.ProfilePicture); err != nil {
		respondErr(c, err, "Error updating profile picture")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Profile picture updated successfully"})
}

func (h *PostHandler) profilePicture(c *gin.Context, username string) string {
	picture, err := h.postRepo.ProfilePicture(c.Request.Context(), username)
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		log.Printf("profile picture lookup failed username=%s: %v", username, err)
	}
	if picture == "" {
		return h.defaultPicture
	}
	return picture
}

func ownerName(c *gin.Context, req ownerRequest) string {
	if name := strings.TrimSpace(req.Username); name != "" {
		return name
	}
	return middleware.IdentityFrom(c).Username
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
