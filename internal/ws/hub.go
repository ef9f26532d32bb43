package ws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"social-service/internal/events"
	"social-service/internal/models"
	"social-service/internal/observability"
)

// FeedRoom is the room every feed client joins.
const FeedRoom = "feed"

const writeWait = 10 * time.Second

// GroupRoom names the room of a group.
func GroupRoom(groupID int) string {
	return "group:" + strconv.Itoa(groupID)
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (cl *client) write(payload []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.conn == nil {
		return nil
	}
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains active websocket rooms.
type Hub struct {
	rooms map[string]map[*websocket.Conn]*client
	mu    sync.RWMutex
	bus   *events.Bus
}

// NewHub creates an empty hub. bus may be nil.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		rooms: make(map[string]map[*websocket.Conn]*client),
		bus:   bus,
	}
}

// AddClient registers a websocket connection to a room.
func (h *Hub) AddClient(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*websocket.Conn]*client)
	}
	h.rooms[room][conn] = &client{conn: conn, info: info}
}

// RemoveClient removes a websocket connection from a room.
func (h *Hub) RemoveClient(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[room]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends v as JSON to every client of a room. Clients whose write
// fails are dropped; their read loop reports the disconnect.
func (h *Hub) Broadcast(room string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket encode error room=%s: %v", room, err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[room]))
	for _, cl := range h.rooms[room] {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.write(payload); err != nil {
			log.Printf("websocket write error room=%s conn_id=%s: %v", room, cl.info.ConnID, err)
			cl.conn.Close()
			h.RemoveClient(room, cl.conn)
			h.reportError(room, cl.info, err)
		}
	}
}

// BroadcastGroupMessage sends a new message to all clients in a group.
func (h *Hub) BroadcastGroupMessage(groupID int, msg models.Message) {
	h.Broadcast(GroupRoom(groupID), models.GroupEvent{Type: "message", Message: &msg})
}

// BroadcastGroupUpdate notifies clients of an edited message.
func (h *Hub) BroadcastGroupUpdate(groupID int, msg models.Message) {
	h.Broadcast(GroupRoom(groupID), models.GroupEvent{Type: "message_updated", Message: &msg})
}

// BroadcastGroupDeletion notifies clients of a deleted message.
func (h *Hub) BroadcastGroupDeletion(groupID int, messageID int) {
	h.Broadcast(GroupRoom(groupID), models.GroupEvent{Type: "message_deleted", MessageID: messageID})
}

// BroadcastFeed sends a feed event to all feed clients.
func (h *Hub) BroadcastFeed(event models.FeedEvent) {
	h.Broadcast(FeedRoom, event)
}

func (h *Hub) reportError(room string, info ConnInfo, err error) {
	observability.IncWSEvent(info.Kind, "ws_error")
	ctx := events.ContextWithRequestID(context.Background(), info.RequestID)
	h.bus.Publish(ctx, events.WSError, wsPayload(room, info, err.Error()))
}

func wsPayload(room string, info ConnInfo, reason string) map[string]any {
	return map[string]any{
		"ws": map[string]any{
			"kind":        info.Kind,
			"room":        room,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":  info.UserID,
			"username": info.Username,
			"ip":       info.IP,
		},
	}
}
