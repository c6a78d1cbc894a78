package pipeline

import (
	"image"
	"sync"
	"time"

	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/detection"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/recording"
)

func testFrame() capture.Frame {
	return &capture.ImageFrame{Image: image.NewRGBA(image.Rect(0, 0, 4, 3))}
}

// closableFrame counts Close calls the way a Mat-backed frame would free its buffer.
type closableFrame struct {
	capture.ImageFrame

	mu         sync.Mutex
	closeCalls int
}

func newClosableFrame() *closableFrame {
	return &closableFrame{ImageFrame: capture.ImageFrame{Image: image.NewRGBA(image.Rect(0, 0, 4, 3))}}
}

func (f *closableFrame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *closableFrame) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// fakeSource yields frames until errs holds an error for the current read.
type fakeSource struct {
	mu         sync.Mutex
	open       bool
	openErr    error
	errs       []error // Consumed one per read; nil entries produce a frame
	reads      int
	openCalls  int
	closeCalls int
	readDelay  time.Duration
	failAll    error // Returned by every read once errs is drained
	closable   bool
	produced   []*closableFrame
}

func (s *fakeSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openCalls++
	if s.openErr != nil {
		return s.openErr
	}
	s.open = true
	return nil
}

func (s *fakeSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSource) ReadFrame() (capture.Frame, error) {
	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	} else if s.failAll != nil {
		return nil, s.failAll
	}
	if s.closable {
		f := newClosableFrame()
		s.produced = append(s.produced, f)
		return f, nil
	}
	return testFrame(), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	s.open = false
	return nil
}

func (s *fakeSource) counts() (opens, closes, reads int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCalls, s.closeCalls, s.reads
}

type fakeDetector struct {
	mu         sync.Mutex
	box        detection.BoundingBox
	detects    int
	annotated  int
	closeCalls int
}

func (d *fakeDetector) Detect(frame capture.Frame) detection.BoundingBox {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detects++
	return d.box
}

func (d *fakeDetector) Annotate(frame capture.Frame, box detection.BoundingBox) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.annotated++
}

func (d *fakeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCalls++
	return nil
}

// scriptedPolicy returns the scripted levels in order and then keeps the current level.
type scriptedPolicy struct {
	levels []eventlevel.Level
	calls  int
}

func (p *scriptedPolicy) Evaluate(samples []eventlevel.SizeMetric, current eventlevel.Level) eventlevel.Level {
	p.calls++
	if len(p.levels) == 0 {
		return current
	}
	next := p.levels[0]
	p.levels = p.levels[1:]
	return next
}

type snapshotCall struct {
	path    string
	quality int
}

type fakeMediaWriter struct {
	mu         sync.Mutex
	snapshots  []snapshotCall
	appended   int
	closeCalls int
}

func (w *fakeMediaWriter) WriteSnapshot(frame capture.Frame, path string, quality int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots = append(w.snapshots, snapshotCall{path: path, quality: quality})
	return nil
}

func (w *fakeMediaWriter) AppendFrame(frame capture.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appended++
	return nil
}

func (w *fakeMediaWriter) Close() (*recording.Recording, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeCalls++
	return nil, nil
}

type fakeAlerts struct {
	mu        sync.Mutex
	levels    []eventlevel.Level
	waitCalls int
}

func (a *fakeAlerts) MaybeNotify(level eventlevel.Level, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.levels = append(a.levels, level)
	return level == eventlevel.LevelConcerning
}

func (a *fakeAlerts) Wait() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.waitCalls++
}

type transitionRecorder struct {
	mu          sync.Mutex
	transitions []eventlevel.Transition
}

func (r *transitionRecorder) OnTransition(t eventlevel.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}
