package video

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/recording"
	"gocv.io/x/gocv"
)

// GoCVMediaWriter writes JPEG snapshots and a single continuous recording per session.
type GoCVMediaWriter struct {
	settings recording.StreamSettings
	logger   logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	writer  *gocv.VideoWriter
	current *recording.Recording
	resized gocv.Mat
}

func NewGoCVMediaWriter(settings recording.StreamSettings, logger logging.Logger) *GoCVMediaWriter {
	if logger == nil {
		logger = logging.NopLogger
	}
	if settings.Codec == "" {
		settings.Codec = recording.DefaultStreamSettings.Codec
	}
	if settings.FrameRate <= 0 {
		settings.FrameRate = recording.DefaultStreamSettings.FrameRate
	}
	if settings.Width <= 0 || settings.Height <= 0 {
		settings.Width = recording.DefaultStreamSettings.Width
		settings.Height = recording.DefaultStreamSettings.Height
	}

	return &GoCVMediaWriter{
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

func (w *GoCVMediaWriter) WriteSnapshot(frame capture.Frame, path string, quality int) error {
	mat, release, err := matOf(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer release()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if ok := gocv.IMWriteWithParams(path, *mat, []int{int(gocv.IMWriteJpegQuality), quality}); !ok {
		return fmt.Errorf("failed to encode snapshot %s", path)
	}
	return nil
}

func (w *GoCVMediaWriter) AppendFrame(frame capture.Frame) error {
	mat, release, err := matOf(frame)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer release()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		if err := w.open(); err != nil {
			return err
		}
	}

	target := *mat
	size := imageSize(mat)
	if size.X != w.settings.Width || size.Y != w.settings.Height {
		gocv.Resize(*mat, &w.resized, imageSizeOf(w.settings), 0, 0, gocv.InterpolationLinear)
		target = w.resized
	}

	if err := w.writer.Write(target); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", w.current.Path, err)
	}
	w.current.Frames++
	return nil
}

// open starts the recording file. The caller holds w.mu.
func (w *GoCVMediaWriter) open() error {
	if err := os.MkdirAll(w.settings.Directory, 0755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}

	startedAt := w.now()
	path := filepath.Join(w.settings.Directory,
		recording.StreamName(startedAt, recording.CodecToFileExtension(w.settings.Codec)))

	writer, err := gocv.VideoWriterFile(path, w.settings.Codec, w.settings.FrameRate, w.settings.Width, w.settings.Height, true)
	if err != nil {
		return fmt.Errorf("failed to create video writer: %w", err)
	}

	w.writer = writer
	w.resized = gocv.NewMat()
	w.current = &recording.Recording{
		Path:      path,
		Codec:     w.settings.Codec,
		FrameRate: w.settings.FrameRate,
		StartedAt: startedAt,
	}

	w.logger.Info("Recording started", "path", path, "codec", w.settings.Codec,
		"fps", w.settings.FrameRate, "width", w.settings.Width, "height", w.settings.Height)
	return nil
}

func (w *GoCVMediaWriter) Close() (*recording.Recording, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return nil, nil
	}

	w.logger.Info("Closing video writer", "path", w.current.Path)
	err := w.writer.Close()
	w.resized.Close()
	w.writer = nil

	rec := w.current
	rec.EndedAt = w.now()
	w.current = nil

	if err != nil {
		return rec, fmt.Errorf("failed to close video writer: %w", err)
	}
	return rec, nil
}

var _ recording.MediaWriter = (*GoCVMediaWriter)(nil)
