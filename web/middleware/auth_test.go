package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/yeti47/securitycam/ccc/auth"
)

func newTestEngine(m *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/ping", m.RequireToken(), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router
}

func request(router http.Handler, authHeader string) int {
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.RemoteAddr = "192.168.1.50:40000"
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireToken_Disabled(t *testing.T) {
	router := newTestEngine(NewAuthMiddleware(nil, "", nil))

	assert.Equal(t, http.StatusOK, request(router, ""))
}

func TestRequireToken_Validates(t *testing.T) {
	router := newTestEngine(NewAuthMiddleware(nil, "s3cret", nil))

	assert.Equal(t, http.StatusUnauthorized, request(router, ""))
	assert.Equal(t, http.StatusUnauthorized, request(router, "Basic czNjcmV0"))
	assert.Equal(t, http.StatusUnauthorized, request(router, "Bearer wrong"))
	assert.Equal(t, http.StatusOK, request(router, "Bearer s3cret"))
}

func TestRequireToken_LocksOutAfterRepeatedFailures(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewAuthMiddleware(nil, "s3cret", auth.NewMemoryLockout(auth.LockoutSettings{
		Threshold: 2,
		Window:    time.Minute,
	}))
	m.now = func() time.Time { return now }
	router := newTestEngine(m)

	assert.Equal(t, http.StatusUnauthorized, request(router, "Bearer guess-1"))
	assert.Equal(t, http.StatusUnauthorized, request(router, "Bearer guess-2"))
	assert.Equal(t, http.StatusTooManyRequests, request(router, "Bearer s3cret"), "locked out even with the right token")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusOK, request(router, "Bearer s3cret"))
}
