package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/detection"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/metrics"
	"github.com/yeti47/securitycam/recording"
)

// OutputDispatcher persists frames for the current level.
type OutputDispatcher interface {
	Dispatch(level eventlevel.Level, frame capture.Frame) (recording.Output, error)
	Close() error
}

// AlertNotifier raises alarms for the current level.
type AlertNotifier interface {
	MaybeNotify(level eventlevel.Level, now time.Time) bool
	Wait()
}

// TransitionListener is told about every level change the observer sees.
type TransitionListener interface {
	OnTransition(transition eventlevel.Transition)
}

// TransitionListenerFunc adapts a function to TransitionListener.
type TransitionListenerFunc func(transition eventlevel.Transition)

func (f TransitionListenerFunc) OnTransition(transition eventlevel.Transition) {
	f(transition)
}

type Settings struct {
	CameraID            string
	SessionID           string        // Generated when empty
	FrameSkip           int           // Every FrameSkip-th cycle runs the detector
	PollInterval        time.Duration // How often the observer looks at the level
	SourceRetryInterval time.Duration // Back-off after the source was unavailable
	MaxMissedReads      int           // Consecutive empty reads before the source is reopened
}

const (
	DefaultFrameSkip           = 7
	DefaultPollInterval        = 10 * time.Millisecond
	DefaultSourceRetryInterval = 500 * time.Millisecond
	DefaultMaxMissedReads      = 25
)

// transitionQueueSize bounds the transitions waiting for slow listeners.
const transitionQueueSize = 64

// Dependencies are the collaborators of one camera pipeline. Alerts, Metrics and
// Listeners are optional.
type Dependencies struct {
	Source    capture.FrameSource
	Detector  detection.Detector
	Policy    eventlevel.Policy
	Outputs   OutputDispatcher
	Alerts    AlertNotifier
	Metrics   *metrics.Camera
	Listeners []TransitionListener
}

// Status is a consistent view of a pipeline for the presentation layer.
type Status struct {
	CameraID       string           `json:"camera_id"`
	SessionID      string           `json:"session_id"`
	State          State            `json:"state"`
	Level          eventlevel.Level `json:"level"`
	LevelName      string           `json:"level_name"`
	Cycles         uint64           `json:"cycles"`
	LevelChangedAt time.Time        `json:"level_changed_at"`
	SourceOpen     bool             `json:"source_open"`
}

// levelSnapshot groups everything the observer reads as one unit.
type levelSnapshot struct {
	level     eventlevel.Level
	cycles    uint64
	changedAt time.Time
}

// Orchestrator drives one camera: it samples frames, runs detection every FrameSkip
// cycles, evaluates the level policy and hands every frame to the outputs. A second
// goroutine observes the level, reports transitions and raises alarms.
type Orchestrator struct {
	settings  Settings
	deps      Dependencies
	buffer    *eventlevel.MetricBuffer
	annotator detection.Annotator
	logger    logging.Logger
	now       func() time.Time

	frames      frameSlot
	transitions chan eventlevel.Transition

	mu    sync.Mutex
	state State
	snap  levelSnapshot

	lifecycle    sync.Mutex
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownErr  error

	sourceDown  bool
	missedReads int
}

// New validates the settings and wires a pipeline. The pipeline starts at level 1 in
// state NEW.
func New(settings Settings, deps Dependencies, logger logging.Logger) (*Orchestrator, error) {
	if settings.FrameSkip == 0 {
		settings.FrameSkip = DefaultFrameSkip
	}
	if settings.FrameSkip < 1 {
		return nil, config.NewConfigurationError("frame_skip", fmt.Sprintf("must be at least 1, got %d", settings.FrameSkip))
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if settings.SourceRetryInterval < 0 {
		settings.SourceRetryInterval = DefaultSourceRetryInterval
	}
	if settings.MaxMissedReads <= 0 {
		settings.MaxMissedReads = DefaultMaxMissedReads
	}
	if settings.SessionID == "" {
		settings.SessionID = uuid.NewString()
	}

	if deps.Source == nil || deps.Detector == nil || deps.Policy == nil || deps.Outputs == nil {
		return nil, errors.New("pipeline requires a frame source, detector, policy and output dispatcher")
	}

	if logger == nil {
		logger = logging.NopLogger
	}

	o := &Orchestrator{
		settings: settings,
		deps:     deps,
		buffer:   eventlevel.NewMetricBuffer(),
		logger:   logger.With("camera", settings.CameraID, "session", settings.SessionID),
		now:      time.Now,
		state:    StateNew,

		transitions: make(chan eventlevel.Transition, transitionQueueSize),
	}
	if annotator, ok := deps.Detector.(detection.Annotator); ok {
		o.annotator = annotator
	}
	o.snap = levelSnapshot{level: eventlevel.LevelIdle, changedAt: o.now()}

	return o, nil
}

func (o *Orchestrator) CameraID() string {
	return o.settings.CameraID
}

func (o *Orchestrator) SessionID() string {
	return o.settings.SessionID
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

// CurrentLevel returns the latest level.
func (o *Orchestrator) CurrentLevel() eventlevel.Level {
	return o.snapshot().level
}

// AcquireFrame returns the most recent frame, or nil when the last read failed. The
// frame stays valid until release is called; release must be called exactly once
// the caller is done, even for a nil frame.
func (o *Orchestrator) AcquireFrame() (frame capture.Frame, release func()) {
	return o.frames.acquire()
}

func (o *Orchestrator) snapshot() levelSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Status returns the pipeline state, level and counters as read at one instant.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	state, snap := o.state, o.snap
	o.mu.Unlock()

	return Status{
		CameraID:       o.settings.CameraID,
		SessionID:      o.settings.SessionID,
		State:          state,
		Level:          snap.level,
		LevelName:      snap.level.String(),
		Cycles:         snap.cycles,
		LevelChangedAt: snap.changedAt,
		SourceOpen:     o.deps.Source.IsOpen(),
	}
}

// Start opens the source and starts the capture loop and the level observer. Starting
// a paused pipeline resumes it and starting a running one does nothing. A source that
// cannot be opened yet is retried by the loop.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	switch o.State() {
	case StateRunning:
		return nil
	case StatePaused:
		o.setState(StateRunning)
		o.logger.Info("Pipeline resumed")
		return nil
	case StateStopped:
		return ErrStopped
	}

	if err := o.deps.Source.Open(); err != nil {
		o.logger.Warn("Frame source not available yet, will retry", "error", err)
		o.sourceDown = true
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.setState(StateRunning)

	o.wg.Add(3)
	go o.captureLoop(runCtx)
	go o.observeLoop(runCtx)
	go o.notifyLoop(runCtx)

	o.logger.Info("Pipeline started", "frame_skip", o.settings.FrameSkip)
	return nil
}

// Pause idles the capture loop. The device and recording stay open.
func (o *Orchestrator) Pause() error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	switch state := o.State(); state {
	case StatePaused:
		return nil
	case StateRunning:
		o.setState(StatePaused)
		o.logger.Info("Pipeline paused")
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return &InvalidTransitionError{From: state, Action: "pause"}
	}
}

// Resume continues a paused pipeline.
func (o *Orchestrator) Resume() error {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	switch state := o.State(); state {
	case StateRunning:
		return nil
	case StatePaused:
		o.setState(StateRunning)
		o.logger.Info("Pipeline resumed")
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return &InvalidTransitionError{From: state, Action: "resume"}
	}
}

// Shutdown stops both goroutines and releases the outputs, the source and the detector.
// Only the first call does any work; later calls return its result.
func (o *Orchestrator) Shutdown() error {
	o.shutdownOnce.Do(func() {
		o.lifecycle.Lock()
		defer o.lifecycle.Unlock()

		o.setState(StateStopped)
		if o.cancel != nil {
			o.cancel()
		}
		o.wg.Wait()

		var errs []error
		if err := o.deps.Outputs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close outputs: %w", err))
		}
		if err := o.deps.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close frame source: %w", err))
		}
		if err := o.deps.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close detector: %w", err))
		}
		if o.deps.Alerts != nil {
			o.deps.Alerts.Wait()
		}
		o.drainTransitions()
		o.frames.publish(nil)

		o.shutdownErr = errors.Join(errs...)
		o.logger.Info("Pipeline stopped", "cycles", o.snapshot().cycles)
	})
	return o.shutdownErr
}

func (o *Orchestrator) captureLoop(ctx context.Context) {
	defer o.wg.Done()

	for ctx.Err() == nil {
		if o.State() != StateRunning {
			sleep(ctx, o.settings.PollInterval)
			continue
		}
		o.runCycle(ctx)
	}
}

// runCycle performs one loop iteration. Detection cycles read, detect, update the
// buffer and the level, then dispatch; skip cycles read and dispatch at the current
// level. The cycle counter advances even when the read fails.
func (o *Orchestrator) runCycle(ctx context.Context) {
	o.mu.Lock()
	cycle := o.snap.cycles
	o.snap.cycles++
	level := o.snap.level
	o.mu.Unlock()

	detectionCycle := cycle%uint64(o.settings.FrameSkip) == 0

	frame, err := o.deps.Source.ReadFrame()
	if err != nil {
		o.frames.publish(nil)
		o.deps.Metrics.MissingFrame()
		o.handleReadError(ctx, err)
		return
	}
	o.missedReads = 0
	if o.sourceDown {
		o.sourceDown = false
		o.logger.Info("Frame source available")
	}

	o.deps.Metrics.Cycle(detectionCycle)

	if detectionCycle {
		started := o.now()
		box := o.deps.Detector.Detect(frame)
		o.deps.Metrics.Detection(o.now().Sub(started))

		if o.annotator != nil {
			o.annotator.Annotate(frame, box)
		}

		o.buffer.Push(eventlevel.MetricFromBox(box.Width, box.Height))
		level = o.setLevel(o.deps.Policy.Evaluate(o.buffer.Snapshot(), level))
	}

	// The slot only drops its reference on the next publish from this goroutine, so
	// the frame stays valid for the rest of the cycle.
	o.frames.publish(frame)

	output, err := o.deps.Outputs.Dispatch(level, frame)
	if err != nil {
		o.deps.Metrics.OutputError()
		o.logger.Error("Failed to persist frame", "level", int(level), "output", output, "error", err)
		return
	}
	if output != recording.OutputNone {
		o.deps.Metrics.Output(string(output))
	}
}

// setLevel stores next as the current level and returns it.
func (o *Orchestrator) setLevel(next eventlevel.Level) eventlevel.Level {
	o.mu.Lock()
	defer o.mu.Unlock()

	if next != o.snap.level {
		o.snap.level = next
		o.snap.changedAt = o.now()
	}
	return next
}

// handleReadError backs off after a failed read. A closed source is reopened at once;
// a source that stays open but keeps returning no frame, such as an unplugged camera
// or an ended stream, is closed and reopened after MaxMissedReads empty reads.
func (o *Orchestrator) handleReadError(ctx context.Context, err error) {
	if errors.Is(err, capture.ErrSourceUnavailable) {
		o.missedReads = 0
		o.recoverSource(ctx)
		return
	}

	o.missedReads++
	if o.missedReads < o.settings.MaxMissedReads {
		return
	}

	o.logger.Warn("Frame source returns no frames, reopening", "missed_reads", o.missedReads, "error", err)
	o.missedReads = 0
	if err := o.deps.Source.Close(); err != nil {
		o.logger.Debug("Failed to close frame source", "error", err)
	}
	o.recoverSource(ctx)
}

func (o *Orchestrator) recoverSource(ctx context.Context) {
	if !o.sourceDown {
		o.sourceDown = true
		o.logger.Warn("Frame source unavailable, retrying", "interval", o.settings.SourceRetryInterval)
	}

	sleep(ctx, o.settings.SourceRetryInterval)
	if ctx.Err() != nil {
		return
	}
	if err := o.deps.Source.Open(); err != nil {
		o.logger.Debug("Failed to reopen frame source", "error", err)
	}
}

// observeLoop polls the level snapshot, reports transitions and gives the alert
// dispatcher a chance to fire on every poll while the pipeline runs.
func (o *Orchestrator) observeLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.settings.PollInterval)
	defer ticker.Stop()

	last := o.snapshot().level
	o.deps.Metrics.Level(int(last))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		o.observe(&last)
	}
}

func (o *Orchestrator) observe(last *eventlevel.Level) {
	o.mu.Lock()
	state, snap := o.state, o.snap
	o.mu.Unlock()

	if snap.level != *last {
		transition := eventlevel.Transition{
			CameraID:  o.settings.CameraID,
			SessionID: o.settings.SessionID,
			From:      *last,
			To:        snap.level,
			At:        snap.changedAt,
		}
		*last = snap.level
		o.reportTransition(transition)
	}

	if state == StateRunning && o.deps.Alerts != nil {
		o.deps.Alerts.MaybeNotify(snap.level, o.now())
	}
}

func (o *Orchestrator) reportTransition(t eventlevel.Transition) {
	o.logger.Info(t.Message(), "at", t.At.Format(time.DateTime), "from", int(t.From), "to", int(t.To))

	o.deps.Metrics.Level(int(t.To))
	o.deps.Metrics.Transition(t.Direction())

	if len(o.deps.Listeners) == 0 {
		return
	}
	select {
	case o.transitions <- t:
	default:
		o.logger.Warn("Transition listeners are behind, dropping transition", "from", int(t.From), "to", int(t.To))
	}
}

// notifyLoop hands queued transitions to the listeners so that a slow listener never
// delays the observer. Queued transitions are still delivered on shutdown.
func (o *Orchestrator) notifyLoop(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			o.drainTransitions()
			return
		case t := <-o.transitions:
			o.notifyListeners(t)
		}
	}
}

func (o *Orchestrator) drainTransitions() {
	for {
		select {
		case t := <-o.transitions:
			o.notifyListeners(t)
		default:
			return
		}
	}
}

func (o *Orchestrator) notifyListeners(t eventlevel.Transition) {
	for _, listener := range o.deps.Listeners {
		listener.OnTransition(t)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
