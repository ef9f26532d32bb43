package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social-service/internal/events"
	"social-service/internal/handlers"
	"social-service/internal/middleware"
	"social-service/internal/ws"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Group        *handlers.GroupHandler
	Message      *handlers.MessageHandler
	Post         *handlers.PostHandler
	Notification *handlers.NotificationHandler
	Media        *handlers.MediaHandler
	GroupWS      *ws.GroupWebSocketHandler
	FeedWS       *ws.FeedWebSocketHandler
	Bus          *events.Bus
	EnableDebug  bool
}

// Setup registers every route on r.
func Setup(r *gin.Engine, h Handlers) {
	r.HandleMethodNotAllowed = true

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Legacy index endpoint; the user may come from the query or the body.
	r.GET("/api/index", h.Group.Overview)
	r.POST("/api/index", h.Group.Action)

	requireUser := middleware.RequireUser()

	groups := r.Group("/groups", requireUser)
	{
		groups.GET("", h.Group.ListGroups)
		groups.POST("", h.Group.CreateGroup)
		groups.GET("/:group_id", h.Group.GetGroup)
		groups.PUT("/:group_id", h.Group.UpdateGroup)
		groups.DELETE("/:group_id", h.Group.DeleteGroup)

		groups.GET("/:group_id/members", h.Group.ListMembers)
		groups.DELETE("/:group_id/members/:user_id", h.Group.RemoveMember)
		groups.GET("/:group_id/members/:user_id/messages", h.Message.MemberMessages)

		groups.GET("/:group_id/requests", h.Group.ListJoinRequests)
		groups.POST("/:group_id/requests/:request_id/approve", h.Group.ApproveJoinRequest)
		groups.POST("/:group_id/requests/:request_id/reject", h.Group.RejectJoinRequest)

		groups.GET("/:group_id/messages", h.Message.ListMessages)
		groups.GET("/:group_id/messages/search", h.Message.SearchMessages)
		groups.GET("/:group_id/messages/count", h.Message.CountMessages)
		groups.POST("/:group_id/messages", h.Message.PostMessage)
		groups.PATCH("/:group_id/messages/:message_id", h.Message.EditMessage)
		groups.DELETE("/:group_id/messages/:message_id", h.Message.DeleteMessage)
	}
	r.GET("/messages/recent", requireUser, h.Message.RecentMessages)

	api := r.Group("/api")
	{
		api.GET("/posts", h.Post.ListPosts)
		api.POST("/posts", h.Post.CreatePost)
		api.PUT("/posts/opinion", h.Post.Opinion)
		api.PUT("/posts/:post_id", h.Post.EditPost)
		api.DELETE("/posts/:post_id", h.Post.DeletePost)
		api.POST("/users/profile-picture", h.Post.UpdateProfilePicture)

		api.POST("/notifications", h.Notification.Handle)

		api.POST("/media/videos", h.Media.UploadVideo)
		api.POST("/media/upload-url", requireUser, h.Media.PresignUpload)
	}

	r.GET("/ws/groups/:group_id", h.GroupWS.Handle)
	r.GET("/ws/feed", h.FeedWS.Handle)

	handlers.RegisterDebugRoutes(r, h.Bus, h.EnableDebug)
}
