package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/ccc/logging"
)

// RequestLogger logs every request through the application logger
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NopLogger
	}

	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("HTTP request failed", args...)
			return
		}
		logger.Debug("HTTP request", args...)
	}
}
