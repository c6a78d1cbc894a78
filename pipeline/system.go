package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
)

// Controller is the part of a pipeline the presentation layer drives.
type Controller interface {
	Status() Status
	AcquireFrame() (frame capture.Frame, release func())
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Shutdown() error
}

var _ Controller = (*Orchestrator)(nil)

// System runs one Orchestrator per camera and addresses them by camera id.
type System struct {
	logger logging.Logger

	mu        sync.RWMutex
	pipelines map[string]*Orchestrator
}

func NewSystem(logger logging.Logger) *System {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &System{
		logger:    logger,
		pipelines: make(map[string]*Orchestrator),
	}
}

// Add registers a pipeline. Camera ids must be unique.
func (s *System) Add(o *Orchestrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pipelines[o.CameraID()]; exists {
		return fmt.Errorf("camera %q is already registered", o.CameraID())
	}
	s.pipelines[o.CameraID()] = o
	return nil
}

// Camera returns the pipeline for id.
func (s *System) Camera(id string) (*Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.pipelines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCameraNotFound, id)
	}
	return o, nil
}

// Controller returns the pipeline for id as a Controller.
func (s *System) Controller(id string) (Controller, error) {
	o, err := s.Camera(id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Cameras returns the registered pipelines ordered by camera id.
func (s *System) Cameras() []*Orchestrator {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Orchestrator, 0, len(s.pipelines))
	for _, o := range s.pipelines {
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CameraID() < list[j].CameraID() })
	return list
}

// Statuses returns the status of every pipeline ordered by camera id.
func (s *System) Statuses() []Status {
	cameras := s.Cameras()
	statuses := make([]Status, 0, len(cameras))
	for _, o := range cameras {
		statuses = append(statuses, o.Status())
	}
	return statuses
}

// Start starts every pipeline. A failing camera does not keep the others from starting.
func (s *System) Start(ctx context.Context) error {
	var errs []error
	for _, o := range s.Cameras() {
		if err := o.Start(ctx); err != nil {
			s.logger.Error("Failed to start pipeline", "camera", o.CameraID(), "error", err)
			errs = append(errs, fmt.Errorf("camera %s: %w", o.CameraID(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops all pipelines in parallel and waits for them.
func (s *System) Shutdown() error {
	cameras := s.Cameras()

	var wg sync.WaitGroup
	errs := make([]error, len(cameras))
	for i, o := range cameras {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.Shutdown(); err != nil {
				errs[i] = fmt.Errorf("camera %s: %w", o.CameraID(), err)
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}
