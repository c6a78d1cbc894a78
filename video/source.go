package video

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
	"gocv.io/x/gocv"
)

// GoCVFrameSource reads frames from a camera or stream through OpenCV.
type GoCVFrameSource struct {
	device string // Device identifier, e.g. "0" for the default camera or a stream URL
	logger logging.Logger

	mu     sync.Mutex
	webcam *gocv.VideoCapture
}

func NewGoCVFrameSource(device string, logger logging.Logger) *GoCVFrameSource {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &GoCVFrameSource{
		device: device,
		logger: logger,
	}
}

// DeviceID converts a numeric device string to the camera index OpenCV expects and
// passes anything else (a path or URL) through unchanged.
func DeviceID(device string) any {
	if device == "" {
		return 0
	}
	if id, err := strconv.Atoi(device); err == nil {
		return id
	}
	return device
}

func (s *GoCVFrameSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam != nil && s.webcam.IsOpened() {
		return nil
	}

	webcam, err := gocv.OpenVideoCapture(DeviceID(s.device))
	if err != nil {
		return fmt.Errorf("failed to open camera %s: %w", s.device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("failed to open camera %s: %w", s.device, capture.ErrSourceUnavailable)
	}

	s.webcam = webcam
	s.logger.Info("Camera opened", "device", s.device,
		"width", int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(webcam.Get(gocv.VideoCaptureFrameHeight)))
	return nil
}

func (s *GoCVFrameSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webcam != nil && s.webcam.IsOpened()
}

func (s *GoCVFrameSource) ReadFrame() (capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam == nil || !s.webcam.IsOpened() {
		return nil, capture.ErrSourceUnavailable
	}

	img := gocv.NewMat()
	if ok := s.webcam.Read(&img); !ok || img.Empty() {
		img.Close()
		return nil, capture.ErrNoFrame
	}

	return newMatFrame(img), nil
}

func (s *GoCVFrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.webcam == nil {
		return nil
	}

	s.logger.Info("Closing camera", "device", s.device)
	err := s.webcam.Close()
	s.webcam = nil
	return err
}
