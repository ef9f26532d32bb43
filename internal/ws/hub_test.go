package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/mocks"
	"social-service/internal/models"
)

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient(GroupRoom(2), nil, ConnInfo{})
	assert.Equal(t, 1, hub.RoomSize("group:2"))

	hub.RemoveClient(GroupRoom(2), nil)
	assert.Equal(t, 0, hub.RoomSize("group:2"))
	assert.Empty(t, hub.rooms)
}

func dialRoom(t *testing.T, hub *Hub, room string) *websocket.Conn {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddClient(room, conn, ConnInfo{Kind: "test"})
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, time.Second, 10*time.Millisecond)
	return client
}

func TestBroadcastGroupMessageReachesRoom(t *testing.T) {
	hub := NewHub(nil)
	client := dialRoom(t, hub, GroupRoom(9))

	hub.BroadcastGroupMessage(9, models.Message{ID: 5, GroupID: 9, Content: "hi"})
	hub.BroadcastGroupMessage(10, models.Message{ID: 6, GroupID: 10, Content: "elsewhere"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var event models.GroupEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "message", event.Type)
	require.NotNil(t, event.Message)
	assert.Equal(t, 5, event.Message.ID)
}

func TestBroadcastFeed(t *testing.T) {
	hub := NewHub(nil)
	client := dialRoom(t, hub, FeedRoom)

	hub.BroadcastFeed(models.FeedEvent{Type: "newOpinion", Post: &models.Post{ID: 3, Username: "ann"}})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"newOpinion"`)
	assert.Contains(t, string(data), `"_id":3`)
}

func newWSRouter(h *GroupWebSocketHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Identity())
	router.GET("/ws/groups/:group_id", h.Handle)
	return router
}

func TestGroupWebSocketRequiresUser(t *testing.T) {
	groups := &mocks.GroupRepositoryMock{}
	router := newWSRouter(NewGroupWebSocketHandler(NewHub(nil), groups))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/groups/9", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	groups.AssertNotCalled(t, "GetMembership", mock.Anything, mock.Anything, mock.Anything)
}

func TestGroupWebSocketRejectsPendingMember(t *testing.T) {
	groups := &mocks.GroupRepositoryMock{}
	groups.On("GetMembership", mock.Anything, 2, 9).
		Return(&models.Membership{UserID: 2, GroupID: 9, Status: models.StatusPending}, nil).Once()
	router := newWSRouter(NewGroupWebSocketHandler(NewHub(nil), groups))

	req := httptest.NewRequest(http.MethodGet, "/ws/groups/9", nil)
	req.Header.Set(middleware.HeaderUserID, "2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	groups.AssertExpectations(t)
}

func TestGroupWebSocketInvalidGroup(t *testing.T) {
	router := newWSRouter(NewGroupWebSocketHandler(NewHub(nil), &mocks.GroupRepositoryMock{}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/groups/abc?userId=2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBroadcastWriteFailureReportsError(t *testing.T) {
	pub := &mocks.PublisherMock{}
	var (
		mu   sync.Mutex
		keys []string
	)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			keys = append(keys, args.String(1))
			mu.Unlock()
		}).
		Return(nil)
	bus := events.NewBus(pub, "social-service", "test")
	hub := NewHub(bus)
	room := GroupRoom(4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddClient(room, conn, ConnInfo{Kind: "test"})
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.Eventually(t, func() bool { return hub.RoomSize(room) == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastGroupDeletion(4, 1)
	bus.Flush()

	assert.Equal(t, 0, hub.RoomSize(room))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{events.WSError}, keys)
}
