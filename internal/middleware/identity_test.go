package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/events"
)

func newRouter(handlers ...gin.HandlerFunc) (*gin.Engine, *RequestIdentity) {
	gin.SetMode(gin.TestMode)
	seen := &RequestIdentity{}
	router := gin.New()
	chain := append([]gin.HandlerFunc{RequestID(), Identity()}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		*seen = IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"request_id": events.RequestIDFromContext(c.Request.Context())})
	})
	router.GET("/", chain...)
	return router, seen
}

func TestIdentityFromHeaders(t *testing.T) {
	router, seen := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/?userId=99", nil)
	req.Header.Set(HeaderUserID, "7")
	req.Header.Set(HeaderUsername, "ann")
	req.Header.Set(HeaderRole, "admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, RequestIdentity{UserID: 7, Username: "ann", Role: "admin"}, *seen)
}

func TestIdentityFallsBackToQuery(t *testing.T) {
	router, seen := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/?userId=12&username=bob", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, 12, seen.UserID)
	assert.Equal(t, "bob", seen.Username)
}

func TestRequireUserRejectsMissingOrInvalidID(t *testing.T) {
	router, _ := newRouter(RequireUser())

	for _, target := range []string{"/", "/?userId=abc", "/?userId=-4"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		assert.JSONEq(t, `{"success":false,"error":"user id required"}`, w.Body.String())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	router, _ := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.JSONEq(t, `{"request_id":"req-42"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
