package handlers

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/pipeline"
)

const defaultFrameQuality = 80

// CameraRegistry resolves the camera pipelines the handlers operate on.
type CameraRegistry interface {
	Statuses() []pipeline.Status
	Controller(id string) (pipeline.Controller, error)
}

// CameraHandler exposes status, latest frame and lifecycle control of the pipelines.
type CameraHandler struct {
	ctx     context.Context // Parent context for pipelines started over HTTP
	logger  logging.Logger
	cameras CameraRegistry
}

func NewCameraHandler(ctx context.Context, logger logging.Logger, cameras CameraRegistry) *CameraHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &CameraHandler{
		ctx:     ctx,
		logger:  logger,
		cameras: cameras,
	}
}

// CameraStatusResponse represents one camera in the API
type CameraStatusResponse struct {
	CameraID       string    `json:"camera_id"`
	SessionID      string    `json:"session_id"`
	State          string    `json:"state"`
	Level          int       `json:"level"`
	LevelName      string    `json:"level_name"`
	Cycles         uint64    `json:"cycles"`
	LevelChangedAt time.Time `json:"level_changed_at"`
	SourceOpen     bool      `json:"source_open"`
}

func newCameraStatusResponse(status pipeline.Status) CameraStatusResponse {
	return CameraStatusResponse{
		CameraID:       status.CameraID,
		SessionID:      status.SessionID,
		State:          string(status.State),
		Level:          int(status.Level),
		LevelName:      status.LevelName,
		Cycles:         status.Cycles,
		LevelChangedAt: status.LevelChangedAt,
		SourceOpen:     status.SourceOpen,
	}
}

// ListCameras handles GET /api/cameras
func (h *CameraHandler) ListCameras(c *gin.Context) {
	statuses := h.cameras.Statuses()

	response := make([]CameraStatusResponse, 0, len(statuses))
	for _, status := range statuses {
		response = append(response, newCameraStatusResponse(status))
	}

	c.JSON(http.StatusOK, response)
}

// GetCamera handles GET /api/cameras/:id
func (h *CameraHandler) GetCamera(c *gin.Context) {
	camera, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newCameraStatusResponse(camera.Status()))
}

// GetFrame handles GET /api/cameras/:id/frame.jpg
func (h *CameraHandler) GetFrame(c *gin.Context) {
	camera, ok := h.lookup(c)
	if !ok {
		return
	}

	quality, err := strconv.Atoi(c.DefaultQuery("quality", strconv.Itoa(defaultFrameQuality)))
	if err != nil || quality < 1 || quality > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quality must be between 1 and 100"})
		return
	}

	frame, release := camera.AcquireFrame()
	if frame == nil {
		release()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No frame available"})
		return
	}

	// ToImage copies the pixels, so the frame can go back to the pipeline right away.
	img, err := frame.ToImage()
	release()
	if err != nil {
		h.logger.Error("Failed to convert frame", "camera", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode frame"})
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		h.logger.Error("Failed to encode frame", "camera", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode frame"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
}

// StartCamera handles POST /api/cameras/:id/start
func (h *CameraHandler) StartCamera(c *gin.Context) {
	h.control(c, "start", func(camera pipeline.Controller) error {
		return camera.Start(h.ctx)
	})
}

// PauseCamera handles POST /api/cameras/:id/pause
func (h *CameraHandler) PauseCamera(c *gin.Context) {
	h.control(c, "pause", pipeline.Controller.Pause)
}

// ResumeCamera handles POST /api/cameras/:id/resume
func (h *CameraHandler) ResumeCamera(c *gin.Context) {
	h.control(c, "resume", pipeline.Controller.Resume)
}

// ShutdownCamera handles POST /api/cameras/:id/shutdown
func (h *CameraHandler) ShutdownCamera(c *gin.Context) {
	h.control(c, "shutdown", pipeline.Controller.Shutdown)
}

func (h *CameraHandler) control(c *gin.Context, action string, apply func(pipeline.Controller) error) {
	camera, ok := h.lookup(c)
	if !ok {
		return
	}

	if err := apply(camera); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrStopped), pipeline.IsInvalidTransitionError(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Pipeline control failed", "camera", c.Param("id"), "action", action, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	h.logger.Info("Pipeline control applied", "camera", c.Param("id"), "action", action)
	c.JSON(http.StatusOK, newCameraStatusResponse(camera.Status()))
}

func (h *CameraHandler) lookup(c *gin.Context) (pipeline.Controller, bool) {
	id := c.Param("id")
	camera, err := h.cameras.Controller(id)
	if err != nil {
		if errors.Is(err, pipeline.ErrCameraNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Camera not found"})
			return nil, false
		}
		h.logger.Error("Failed to resolve camera", "camera", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	return camera, true
}
