package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/ccc/auth"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/web/handlers"
	"github.com/yeti47/securitycam/web/middleware"
)

// Routes bundles everything the router serves.
type Routes struct {
	Cameras *handlers.CameraHandler
	Journal *handlers.JournalHandler // Optional
	Metrics http.Handler             // Optional
}

// NewRouter builds the gin engine for the presentation API.
func NewRouter(cfg config.WebConfig, logger logging.Logger, routes Routes) *gin.Engine {
	router := initializeGin(cfg)
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	lockout := auth.NewMemoryLockout(auth.LockoutSettings{
		Threshold: cfg.MaxAuthFailures,
		Window:    cfg.AuthFailureWindow(),
	})
	setupRoutes(router, middleware.NewAuthMiddleware(logger, cfg.APIToken, lockout), routes)
	return router
}

func setupRoutes(router *gin.Engine, auth *middleware.AuthMiddleware, routes Routes) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "securitycam",
		})
	})

	if routes.Metrics != nil {
		router.GET("/metrics", gin.WrapH(routes.Metrics))
	}

	api := router.Group("/api")
	api.Use(auth.RequireToken())

	api.GET("/cameras", routes.Cameras.ListCameras)
	api.GET("/cameras/:id", routes.Cameras.GetCamera)
	api.GET("/cameras/:id/frame.jpg", routes.Cameras.GetFrame)
	api.POST("/cameras/:id/start", routes.Cameras.StartCamera)
	api.POST("/cameras/:id/pause", routes.Cameras.PauseCamera)
	api.POST("/cameras/:id/resume", routes.Cameras.ResumeCamera)
	api.POST("/cameras/:id/shutdown", routes.Cameras.ShutdownCamera)

	if routes.Journal != nil {
		api.GET("/cameras/:id/transitions", routes.Journal.ListTransitions)
		api.GET("/cameras/:id/alarms", routes.Journal.ListAlarms)
		api.GET("/cameras/:id/recordings", routes.Journal.ListRecordings)
	}
}

// Server runs the router until its context is cancelled.
type Server struct {
	httpServer      *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration
}

func NewServer(cfg config.WebConfig, handler http.Handler, logger logging.Logger, shutdownTimeout time.Duration) *Server {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run serves HTTP until ctx is done, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "address", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("Stopping web server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}
