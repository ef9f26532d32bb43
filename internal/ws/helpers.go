package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serve upgrades the request, joins room and blocks a goroutine on reads
// until the peer goes away.
func serve(c *gin.Context, hub *Hub, room, kind string, identity middleware.RequestIdentity) {
	ctx, span := otel.Tracer("social-service/ws").Start(c.Request.Context(), "ws.handshake")
	span.SetAttributes(attribute.String("ws.room", room), attribute.Int("user.id", identity.UserID))
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		Kind:        kind,
		UserID:      identity.UserID,
		Username:    identity.Username,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   middleware.RequestIDFrom(c),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	hub.AddClient(room, conn, info)

	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	hub.bus.Publish(ctx, events.WSConnect, wsPayload(room, info, ""))

	detached := context.WithoutCancel(ctx)
	go func() {
		var closeReason string
		defer func() {
			hub.RemoveClient(room, conn)
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			hub.bus.Publish(detached, events.WSDisconnect, wsPayload(room, info, closeReason))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
				}
				return
			}
		}
	}()
}
