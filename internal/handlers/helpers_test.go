package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/events"
	"social-service/internal/middleware"
	"social-service/internal/mocks"
)

type publishedEvents struct {
	mu   sync.Mutex
	keys []string
}

func (p *publishedEvents) add(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
}

func (p *publishedEvents) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

// newTestBus returns a bus whose publisher records every routing key. Call
// bus.Flush before reading the recorded keys.
func newTestBus() (*events.Bus, *publishedEvents) {
	pub := &mocks.PublisherMock{}
	recorded := &publishedEvents{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded.add(args.String(1)) }).
		Return(nil)
	pub.On("Close").Return(nil)
	return events.NewBus(pub, "social-service", "test"), recorded
}

func setupRouter(register func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Identity())
	register(r)
	return r
}

func perform(r http.Handler, method, target, body string, userID int) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		req.Header.Set(middleware.HeaderUserID, strconv.Itoa(userID))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
