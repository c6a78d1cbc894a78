package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/ccc/auth"
	"github.com/yeti47/securitycam/ccc/logging"
)

// AuthMiddleware guards the control endpoints with a static bearer token
type AuthMiddleware struct {
	logger  logging.Logger
	token   string
	lockout auth.Lockout
	now     func() time.Time
}

// NewAuthMiddleware creates the middleware. An empty token disables the check and a
// nil lockout never locks anyone out.
func NewAuthMiddleware(logger logging.Logger, token string, lockout auth.Lockout) *AuthMiddleware {
	if logger == nil {
		logger = logging.NopLogger
	}
	if lockout == nil {
		lockout = auth.NopLockout
	}

	return &AuthMiddleware{
		logger:  logger,
		token:   token,
		lockout: lockout,
		now:     time.Now,
	}
}

// RequireToken rejects requests without the configured bearer token
func (m *AuthMiddleware) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			c.Next()
			return
		}

		addr := c.ClientIP()
		if m.lockout.Locked(addr, m.now()) {
			m.logger.Warn("Rejected request from locked out address", "remote", addr)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many failed attempts"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.logger.Warn("Missing Authorization header", "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			c.Abort()
			return
		}

		token, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			m.logger.Warn("Invalid Authorization header format", "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(m.token)) != 1 {
			failures := m.lockout.RecordFailure(addr, m.now())
			m.logger.Warn("Invalid API token", "path", c.Request.URL.Path, "remote", addr, "failures", failures)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			c.Abort()
			return
		}

		m.lockout.Reset(addr)
		c.Next()
	}
}
