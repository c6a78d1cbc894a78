package recording

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
	eventlevel "github.com/yeti47/securitycam/event-level"
)

// MediaWriter persists frames.
type MediaWriter interface {
	// WriteSnapshot encodes frame as a JPEG of the given quality at path.
	WriteSnapshot(frame capture.Frame, path string, quality int) error
	// AppendFrame appends frame to the continuous recording, opening it on first use.
	AppendFrame(frame capture.Frame) error
	// Close finishes the continuous recording. It returns nil when no stream was opened.
	Close() (*Recording, error)
}

// Output identifies what the dispatcher did with a frame.
type Output string

const (
	OutputNone           Output = "none"
	OutputLowResolution  Output = "low_resolution_snapshot"
	OutputHighResolution Output = "high_resolution_snapshot"
	OutputRecording      Output = "recording_frame"
)

// RecordingCallback receives the recording stream once it has been closed.
type RecordingCallback func(rec *Recording)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("output dispatcher closed")

// Dispatcher persists frames according to the current level.
type Dispatcher struct {
	writer     MediaWriter
	settings   SnapshotSettings
	logger     logging.Logger
	now        func() time.Time
	onFinished RecordingCallback

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher writing snapshots into settings.Directory.
// onFinished may be nil.
func NewDispatcher(writer MediaWriter, settings SnapshotSettings, logger logging.Logger, onFinished RecordingCallback) *Dispatcher {
	if logger == nil {
		logger = logging.NopLogger
	}
	if settings.LowQuality <= 0 {
		settings.LowQuality = DefaultSnapshotSettings.LowQuality
	}
	if settings.HighQuality <= 0 {
		settings.HighQuality = DefaultSnapshotSettings.HighQuality
	}

	return &Dispatcher{
		writer:     writer,
		settings:   settings,
		logger:     logger,
		now:        time.Now,
		onFinished: onFinished,
	}
}

// Dispatch persists frame for level: a low quality snapshot at level 2, a high quality
// snapshot at level 3 and a recording frame at level 4. Level 1 writes nothing.
func (d *Dispatcher) Dispatch(level eventlevel.Level, frame capture.Frame) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return OutputNone, ErrDispatcherClosed
	}

	switch level {
	case eventlevel.LevelPresent:
		path := filepath.Join(d.settings.Directory, LowResolutionName(d.now()))
		if err := d.writer.WriteSnapshot(frame, path, d.settings.LowQuality); err != nil {
			return OutputLowResolution, fmt.Errorf("failed to write low resolution snapshot %s: %w", path, err)
		}
		d.logger.Debug("Low resolution snapshot written", "path", path)
		return OutputLowResolution, nil

	case eventlevel.LevelConcerning:
		path := filepath.Join(d.settings.Directory, HighResolutionName(d.now()))
		if err := d.writer.WriteSnapshot(frame, path, d.settings.HighQuality); err != nil {
			return OutputHighResolution, fmt.Errorf("failed to write high resolution snapshot %s: %w", path, err)
		}
		d.logger.Debug("High resolution snapshot written", "path", path)
		return OutputHighResolution, nil

	case eventlevel.LevelAlarming:
		if err := d.writer.AppendFrame(frame); err != nil {
			return OutputRecording, fmt.Errorf("failed to append frame to recording: %w", err)
		}
		return OutputRecording, nil

	default:
		return OutputNone, nil
	}
}

// Close flushes and closes the recording stream. Only the first call has an effect.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	// A recording that failed to close cleanly is still on disk and is reported.
	rec, err := d.writer.Close()
	if rec != nil {
		if err != nil {
			d.logger.Warn("Recording closed with errors", "path", rec.Path, "frames", rec.Frames, "error", err)
		} else {
			d.logger.Info("Recording closed", "path", rec.Path, "frames", rec.Frames, "duration", rec.Duration())
		}
		if d.onFinished != nil {
			d.onFinished(rec)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to close recording: %w", err)
	}
	return nil
}
