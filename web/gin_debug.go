//go:build !release

package web

import (
	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/config"
)

// initializeGin sets up Gin in debug mode for development builds
func initializeGin(_ config.WebConfig) *gin.Engine {
	return gin.New()
}
