package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeti47/securitycam/capture"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/detection"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/metrics"
	"github.com/yeti47/securitycam/recording"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	source   *fakeSource
	detector *fakeDetector
	writer   *fakeMediaWriter
	alerts   *fakeAlerts
	recorder *transitionRecorder
	o        *Orchestrator
}

func newHarness(t *testing.T, frameSkip int, policy eventlevel.Policy) *harness {
	t.Helper()

	h := &harness{
		source:   &fakeSource{},
		detector: &fakeDetector{box: detection.BoundingBox{Width: 10, Height: 10}},
		writer:   &fakeMediaWriter{},
		alerts:   &fakeAlerts{},
		recorder: &transitionRecorder{},
	}

	o, err := New(Settings{
		CameraID:            "front",
		FrameSkip:           frameSkip,
		PollInterval:        time.Millisecond,
		SourceRetryInterval: 0,
	}, Dependencies{
		Source:    h.source,
		Detector:  h.detector,
		Policy:    policy,
		Outputs:   recording.NewDispatcher(h.writer, recording.SnapshotSettings{Directory: t.TempDir()}, nil, nil),
		Alerts:    h.alerts,
		Metrics:   metrics.New().Camera("front"),
		Listeners: []TransitionListener{h.recorder},
	}, nil)
	require.NoError(t, err)

	h.o = o
	return h
}

func TestNew_Validation(t *testing.T) {
	source := &fakeSource{}
	deps := Dependencies{
		Source:   source,
		Detector: &fakeDetector{},
		Policy:   &scriptedPolicy{},
		Outputs:  recording.NewDispatcher(&fakeMediaWriter{}, recording.SnapshotSettings{}, nil, nil),
	}

	_, err := New(Settings{CameraID: "front", FrameSkip: -1}, deps, nil)
	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))

	_, err = New(Settings{CameraID: "front"}, Dependencies{Source: source}, nil)
	assert.Error(t, err)

	o, err := New(Settings{CameraID: "front"}, deps, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFrameSkip, o.settings.FrameSkip)
	assert.NotEmpty(t, o.SessionID())
	assert.Equal(t, StateNew, o.State())
	assert.Equal(t, eventlevel.LevelIdle, o.CurrentLevel())
	assert.Nil(t, currentFrame(o))
	assert.Equal(t, DefaultMaxMissedReads, o.settings.MaxMissedReads)
}

func TestRunCycle_ClimbProducesOneSnapshotPerLevelThenRecording(t *testing.T) {
	policy := &scriptedPolicy{levels: []eventlevel.Level{
		eventlevel.LevelPresent,
		eventlevel.LevelConcerning,
		eventlevel.LevelAlarming,
	}}
	h := newHarness(t, 1, policy)
	ctx := context.Background()

	for range 6 {
		h.o.runCycle(ctx)
	}

	require.Len(t, h.writer.snapshots, 2)
	assert.Equal(t, 50, h.writer.snapshots[0].quality)
	assert.Equal(t, 90, h.writer.snapshots[1].quality)
	assert.Equal(t, 4, h.writer.appended)
	assert.Equal(t, eventlevel.LevelAlarming, h.o.CurrentLevel())
	assert.Equal(t, 6, h.detector.annotated)
}

func TestRunCycle_AlarmingRecordsDetectionAndSkipCycles(t *testing.T) {
	policy := &scriptedPolicy{levels: []eventlevel.Level{eventlevel.LevelAlarming}}
	h := newHarness(t, 3, policy)
	ctx := context.Background()

	for range 6 {
		h.o.runCycle(ctx)
	}

	assert.Equal(t, 2, h.detector.detects, "detection runs on cycles 0 and 3")
	assert.Equal(t, 2, policy.calls)
	assert.Empty(t, h.writer.snapshots)
	assert.Equal(t, 6, h.writer.appended)
	assert.Equal(t, uint64(6), h.o.Status().Cycles)
}

func TestRunCycle_SkipCyclesKeepPersistingAtCurrentLevel(t *testing.T) {
	policy := &scriptedPolicy{levels: []eventlevel.Level{eventlevel.LevelPresent}}
	h := newHarness(t, 4, policy)
	ctx := context.Background()

	for range 4 {
		h.o.runCycle(ctx)
	}

	assert.Equal(t, 1, h.detector.detects)
	assert.Len(t, h.writer.snapshots, 4)
	for _, call := range h.writer.snapshots {
		assert.Equal(t, 50, call.quality)
	}
}

func TestRunCycle_FailedReadStillAdvancesCounter(t *testing.T) {
	h := newHarness(t, 2, &scriptedPolicy{})
	h.source.errs = []error{capture.ErrNoFrame}
	ctx := context.Background()

	h.o.runCycle(ctx) // cycle 0 would detect but has no frame
	assert.Nil(t, currentFrame(h.o))
	assert.Equal(t, 0, h.detector.detects)

	h.o.runCycle(ctx) // cycle 1 is a skip cycle
	assert.NotNil(t, currentFrame(h.o))
	assert.Equal(t, 0, h.detector.detects)

	h.o.runCycle(ctx) // cycle 2 detects
	assert.Equal(t, 1, h.detector.detects)
	assert.Equal(t, uint64(3), h.o.Status().Cycles)
}

func TestRunCycle_UnavailableSourceIsReopened(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	h.source.errs = []error{capture.ErrSourceUnavailable, capture.ErrSourceUnavailable}
	ctx := context.Background()

	h.o.runCycle(ctx)
	h.o.runCycle(ctx)
	h.o.runCycle(ctx)

	opens, _, reads := h.source.counts()
	assert.Equal(t, 2, opens)
	assert.Equal(t, 3, reads)
	assert.Equal(t, 1, h.detector.detects)
	assert.False(t, h.o.sourceDown)
}

// currentFrame peeks at the frame slot and releases the reference right away.
func currentFrame(o *Orchestrator) capture.Frame {
	frame, release := o.AcquireFrame()
	release()
	return frame
}

func TestRunCycle_ClosesFramesOnceReplaced(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	h.source.closable = true
	h.source.errs = []error{nil, nil, nil, capture.ErrNoFrame}
	ctx := context.Background()

	for range 3 {
		h.o.runCycle(ctx)
	}

	require.Len(t, h.source.produced, 3)
	assert.Equal(t, 1, h.source.produced[0].closes())
	assert.Equal(t, 1, h.source.produced[1].closes())
	assert.Equal(t, 0, h.source.produced[2].closes(), "the latest frame stays in the slot")

	frame, release := h.o.AcquireFrame()
	require.Same(t, h.source.produced[2], frame)

	h.o.runCycle(ctx) // the failed read empties the slot
	assert.Equal(t, 0, h.source.produced[2].closes(), "a held frame outlives the slot")
	release()
	assert.Equal(t, 1, h.source.produced[2].closes())

	require.NoError(t, h.o.Shutdown())
}

func TestRunCycle_RepeatedEmptyReadsReopenSource(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	h.o.settings.MaxMissedReads = 3
	h.source.failAll = capture.ErrNoFrame
	ctx := context.Background()

	for range 7 {
		h.o.runCycle(ctx)
	}

	opens, closes, reads := h.source.counts()
	assert.Equal(t, 7, reads)
	assert.Equal(t, 2, closes, "the source is closed after every third empty read")
	assert.Equal(t, 2, opens)
	assert.True(t, h.o.sourceDown)
	assert.Equal(t, 1, h.o.missedReads)
}

func TestOrchestrator_SourceWithoutFramesBacksOff(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	h.o.settings.SourceRetryInterval = 20 * time.Millisecond
	h.o.settings.MaxMissedReads = 5
	h.source.failAll = capture.ErrNoFrame

	require.NoError(t, h.o.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, h.o.Shutdown())

	opens, _, reads := h.source.counts()
	assert.Less(t, reads, 100, "empty reads must not spin")
	assert.GreaterOrEqual(t, opens, 3, "the source is reopened while it yields nothing")
}

// blockingListener holds every transition until it is released.
type blockingListener struct {
	release chan struct{}
	got     chan eventlevel.Transition
}

func (l *blockingListener) OnTransition(t eventlevel.Transition) {
	<-l.release
	l.got <- t
}

func TestObserve_SlowListenerDoesNotDelayAlarms(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{levels: []eventlevel.Level{eventlevel.LevelConcerning}})
	h.source.readDelay = 5 * time.Millisecond
	listener := &blockingListener{release: make(chan struct{}), got: make(chan eventlevel.Transition, 1)}
	h.o.deps.Listeners = []TransitionListener{listener}

	require.NoError(t, h.o.Start(context.Background()))

	require.Eventually(t, func() bool {
		h.alerts.mu.Lock()
		defer h.alerts.mu.Unlock()
		return len(h.alerts.levels) >= 3
	}, time.Second, time.Millisecond, "the observer keeps polling while the listener is blocked")

	close(listener.release)
	select {
	case got := <-listener.got:
		assert.Equal(t, eventlevel.LevelConcerning, got.To)
	case <-time.After(time.Second):
		t.Fatal("queued transition was not delivered")
	}

	require.NoError(t, h.o.Shutdown())
}

func TestObserve_ReportsTransitionsAndNotifiesWhileRunning(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	last := eventlevel.LevelIdle

	h.o.setLevel(eventlevel.LevelConcerning)
	h.o.observe(&last)
	h.o.drainTransitions()

	assert.Equal(t, eventlevel.LevelConcerning, last)
	require.Len(t, h.recorder.transitions, 1)
	transition := h.recorder.transitions[0]
	assert.Equal(t, eventlevel.LevelIdle, transition.From)
	assert.Equal(t, eventlevel.LevelConcerning, transition.To)
	assert.Equal(t, "front", transition.CameraID)
	assert.Equal(t, h.o.SessionID(), transition.SessionID)
	assert.Empty(t, h.alerts.levels, "a pipeline that was never started raises no alarm")

	h.o.setState(StateRunning)
	h.o.observe(&last)
	h.o.observe(&last)
	h.o.drainTransitions()

	assert.Len(t, h.recorder.transitions, 1, "an unchanged level is reported once")
	assert.Equal(t, []eventlevel.Level{eventlevel.LevelConcerning, eventlevel.LevelConcerning}, h.alerts.levels)

	h.o.setState(StatePaused)
	h.o.observe(&last)
	assert.Len(t, h.alerts.levels, 2)
}

func TestOrchestrator_Lifecycle(t *testing.T) {
	h := newHarness(t, 2, &scriptedPolicy{levels: []eventlevel.Level{eventlevel.LevelConcerning}})
	h.source.readDelay = time.Millisecond
	ctx := context.Background()

	require.NoError(t, h.o.Start(ctx))
	assert.Equal(t, StateRunning, h.o.State())
	require.NoError(t, h.o.Start(ctx), "starting twice is a no-op")

	require.Eventually(t, func() bool {
		h.recorder.mu.Lock()
		defer h.recorder.mu.Unlock()
		return len(h.recorder.transitions) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, h.o.Pause())
	assert.Equal(t, StatePaused, h.o.State())
	require.NoError(t, h.o.Resume())
	assert.Equal(t, StateRunning, h.o.State())

	require.NoError(t, h.o.Shutdown())
	require.NoError(t, h.o.Shutdown())
	assert.Equal(t, StateStopped, h.o.State())
	assert.Nil(t, currentFrame(h.o))

	opens, closes, _ := h.source.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, h.detector.closeCalls)
	assert.Equal(t, 1, h.writer.closeCalls)
	assert.Equal(t, 1, h.alerts.waitCalls)

	assert.ErrorIs(t, h.o.Start(ctx), ErrStopped)
	assert.ErrorIs(t, h.o.Pause(), ErrStopped)
	assert.ErrorIs(t, h.o.Resume(), ErrStopped)
}

func TestOrchestrator_PauseBeforeStart(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})

	err := h.o.Pause()
	require.Error(t, err)
	assert.True(t, IsInvalidTransitionError(err))

	require.NoError(t, h.o.Shutdown())
	assert.Equal(t, 1, h.detector.closeCalls)
}

func TestOrchestrator_StartsWithoutSource(t *testing.T) {
	h := newHarness(t, 1, &scriptedPolicy{})
	h.source.openErr = capture.ErrSourceUnavailable
	h.source.readDelay = time.Millisecond
	h.source.errs = []error{capture.ErrSourceUnavailable, capture.ErrSourceUnavailable}

	require.NoError(t, h.o.Start(context.Background()))
	require.Eventually(t, func() bool {
		opens, _, _ := h.source.counts()
		return opens >= 2
	}, time.Second, time.Millisecond)

	require.NoError(t, h.o.Shutdown())
}
