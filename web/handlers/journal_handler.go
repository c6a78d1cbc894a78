package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/journal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// JournalHandler serves the journaled history of a camera.
type JournalHandler struct {
	logger  logging.Logger
	journal journal.Journal
}

func NewJournalHandler(logger logging.Logger, j journal.Journal) *JournalHandler {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &JournalHandler{
		logger:  logger,
		journal: j,
	}
}

type TransitionResponse struct {
	SessionID string    `json:"session_id"`
	From      int       `json:"from"`
	To        int       `json:"to"`
	At        time.Time `json:"at"`
}

type AlarmResponse struct {
	SessionID string    `json:"session_id"`
	Level     int       `json:"level"`
	At        time.Time `json:"at"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
}

type RecordingResponse struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	Codec     string    `json:"codec"`
	Frames    int       `json:"frames"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// ListTransitions handles GET /api/cameras/:id/transitions
func (h *JournalHandler) ListTransitions(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		return
	}

	entries, err := h.journal.RecentTransitions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("Failed to load transitions", "camera", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load transitions"})
		return
	}

	response := make([]TransitionResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, TransitionResponse{
			SessionID: e.SessionID,
			From:      int(e.From),
			To:        int(e.To),
			At:        e.At,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListAlarms handles GET /api/cameras/:id/alarms
func (h *JournalHandler) ListAlarms(c *gin.Context) {
	limit, ok := historyLimit(c)
	if !ok {
		return
	}

	entries, err := h.journal.RecentAlarms(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.logger.Error("Failed to load alarms", "camera", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load alarms"})
		return
	}

	response := make([]AlarmResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, AlarmResponse{
			SessionID: e.SessionID,
			Level:     int(e.Level),
			At:        e.At,
			Delivered: e.Delivered,
			Error:     e.Error,
		})
	}
	c.JSON(http.StatusOK, response)
}

// ListRecordings handles GET /api/cameras/:id/recordings
func (h *JournalHandler) ListRecordings(c *gin.Context) {
	entries, err := h.journal.Recordings(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to load recordings", "camera", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load recordings"})
		return
	}

	response := make([]RecordingResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, RecordingResponse{
			SessionID: e.SessionID,
			Path:      e.Path,
			Codec:     e.Codec,
			Frames:    e.Frames,
			StartedAt: e.StartedAt,
			EndedAt:   e.EndedAt,
		})
	}
	c.JSON(http.StatusOK, response)
}

func historyLimit(c *gin.Context) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
		return 0, false
	}
	return min(limit, maxHistoryLimit), true
}
