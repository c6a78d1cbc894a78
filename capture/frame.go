package capture

import (
	"errors"
	"image"
)

// Frame is a single image produced by a FrameSource. A frame is handed from stage to
// stage by reference and is never modified by two stages at once.
type Frame interface {
	Width() int
	Height() int
	// ToImage converts the frame for encoders outside the capture backend.
	ToImage() (image.Image, error)
}

// FrameSource abstracts a live frame-producing device.
type FrameSource interface {
	// Open acquires the device. Opening an already open source is a no-op.
	Open() error
	// IsOpen reports whether the device is available.
	IsOpen() bool
	// ReadFrame returns the next frame. It returns ErrSourceUnavailable when the device
	// is closed and ErrNoFrame when the device produced nothing this time.
	ReadFrame() (Frame, error)
	// Close releases the device.
	Close() error
}

var (
	// ErrSourceUnavailable is returned when the device is absent or closed.
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrNoFrame is returned when a read produced no frame.
	ErrNoFrame = errors.New("no frame available")
)

// ImageFrame is a Frame backed by an in-memory image.
type ImageFrame struct {
	Image image.Image
}

func (f *ImageFrame) Width() int {
	return f.Image.Bounds().Dx()
}

func (f *ImageFrame) Height() int {
	return f.Image.Bounds().Dy()
}

func (f *ImageFrame) ToImage() (image.Image, error) {
	return f.Image, nil
}
