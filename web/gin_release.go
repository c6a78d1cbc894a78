//go:build release

package web

import (
	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/config"
)

// initializeGin sets up Gin in release mode and only trusts the configured proxies
func initializeGin(cfg config.WebConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if len(cfg.TrustedProxies) > 0 {
		router.SetTrustedProxies(cfg.TrustedProxies)
	} else {
		router.SetTrustedProxies(nil)
	}

	return router
}
