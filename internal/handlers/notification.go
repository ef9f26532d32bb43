package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/push"
	"social-service/internal/repositories"
)

const (
	defaultPushTitle = "New Post Notification"
	defaultPushBody  = "A new post has been added!"
)

// NotificationHandler registers browser push subscriptions and fans
// notifications out to them.
type NotificationHandler struct {
	pushRepo    repositories.PushRepository
	sender      push.Sender
	icon        string
	concurrency int
}

// NewNotificationHandler constructs a NotificationHandler. sender may be nil
// when VAPID keys are not configured.
func NewNotificationHandler(pushRepo repositories.PushRepository, sender push.Sender, icon string, concurrency int) *NotificationHandler {
	return &NotificationHandler{
		pushRepo:    pushRepo,
		sender:      sender,
		icon:        icon,
		concurrency: concurrency,
	}
}

type notificationRequest struct {
	Action       string `json:"action"`
	Subscription *struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Handle serves POST /api/notifications with action save-subscription or
// send-push-notification.
func (h *NotificationHandler) Handle(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		respondError(c, http.StatusBadRequest, "Invalid Content-Type. Use application/json")
		return
	}
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	switch req.Action {
	case "save-subscription":
		h.save(c, req)
	case "send-push-notification":
		h.send(c, req)
	default:
		respondError(c, http.StatusBadRequest, "Invalid action")
	}
}

func (h *NotificationHandler) save(c *gin.Context, req notificationRequest) {
	if req.Subscription == nil || req.Subscription.Endpoint == "" {
		respondError(c, http.StatusBadRequest, "Missing subscription object")
		return
	}
	sub := models.PushSubscription{
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	}
	if id := middleware.IdentityFrom(c); id.HasUser() {
		sub.UserID = &id.UserID
	}
	if err := h.pushRepo.SaveSubscription(c.Request.Context(), sub); err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Subscription saved successfully"})
}

func (h *NotificationHandler) send(c *gin.Context, req notificationRequest) {
	if h.sender == nil {
		respondError(c, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	ctx := c.Request.Context()
	subs, err := h.pushRepo.ListSubscriptions(ctx)
	if err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}
	if len(subs) == 0 {
		respondError(c, http.StatusBadRequest, "No subscribers to send notifications")
		return
	}

	payload, err := push.Encode(push.Notification{
		Title: firstOr(req.Title, defaultPushTitle),
		Body:  firstOr(req.Body, defaultPushBody),
		Icon:  h.icon,
		URL:   req.URL,
	})
	if err != nil {
		respondErr(c, err, "Error processing the request")
		return
	}

	failed := push.Fanout(ctx, h.sender, subs, payload, h.concurrency)
	removed, err := h.pushRepo.DeleteSubscriptions(ctx, failed)
	if err != nil {
		log.Printf("prune push subscriptions failed count=%d: %v", len(failed), err)
	}
	respond(c, http.StatusOK, gin.H{
		"message": "Push notifications sent",
		"sent":    len(subs) - len(failed),
		"removed": removed,
	})
}

func firstOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
