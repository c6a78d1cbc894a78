package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yeti47/securitycam/ccc/db"
	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/journal"
	"github.com/yeti47/securitycam/metrics"
	"github.com/yeti47/securitycam/notifications"
	"github.com/yeti47/securitycam/pipeline"
	postprocessing "github.com/yeti47/securitycam/post-processing"
	"github.com/yeti47/securitycam/publishing"
	"github.com/yeti47/securitycam/recording"
	"github.com/yeti47/securitycam/video"
	"github.com/yeti47/securitycam/web"
	"github.com/yeti47/securitycam/web/handlers"
)

// App wires the camera pipelines to the journal, MQTT, metrics and the web API.
type App struct {
	cfg    *config.Config
	logger logging.Logger

	database      *sql.DB
	journal       *journal.SQLiteJournal
	metrics       *metrics.Metrics
	publisher     *publishing.MQTTPublisher
	postProcessor *postprocessing.FfmpegPostProcessor
	alarmSender   notifications.AlarmSender
	system        *pipeline.System
}

// New builds every pipeline of cfg. Nothing is opened or started until Run.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		system:  pipeline.NewSystem(logger),
	}

	if cfg.JournalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		database, err := db.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		j, err := journal.NewSQLiteJournal(database, logger)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to create journal: %w", err)
		}
		a.database = database
		a.journal = j
	}

	if cfg.MQTT.Enabled {
		a.publisher = publishing.NewMQTTPublisher(publishing.Settings{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
	}

	if cfg.PostProcessing.Enabled {
		a.postProcessor = postprocessing.NewFfmpegPostProcessor(
			config.NewStaticSettingsProvider(postprocessing.PostProcessingSettings{
				Enabled:      cfg.PostProcessing.Enabled,
				OutputFormat: cfg.PostProcessing.OutputFormat,
				OutputCodec:  cfg.PostProcessing.OutputCodec,
				VideoBitRate: cfg.PostProcessing.VideoBitRate,
				Grayscale:    cfg.PostProcessing.Grayscale,
				KeepRaw:      cfg.PostProcessing.KeepRaw,
			}), logger)
	}

	sender, err := BuildAlarmSender(cfg.Alarm, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.alarmSender = sender

	for _, cam := range cfg.Cameras {
		if err := a.addCamera(cam); err != nil {
			a.system.Shutdown()
			a.close()
			return nil, err
		}
	}

	return a, nil
}

func (a *App) addCamera(cam config.CameraConfig) error {
	setup, err := resolveCamera(a.cfg, cam)
	if err != nil {
		return err
	}

	logger := a.logger.With("camera", setup.ID)
	sessionID := uuid.NewString()
	cameraMetrics := a.metrics.Camera(setup.ID)

	policy, err := eventlevel.NewPolicy(setup.Policy)
	if err != nil {
		return err
	}

	detector, err := video.NewGoCVDetector(setup.Detector, a.cfg.CascadeDir, logger)
	if err != nil {
		return fmt.Errorf("camera %s: %w", setup.ID, err)
	}

	outputs := recording.NewDispatcher(
		video.NewGoCVMediaWriter(setup.Stream, logger),
		setup.Snapshot,
		logger,
		a.onRecordingFinished(setup.ID, sessionID, logger),
	)

	alerts := notifications.NewAlertDispatcher(notifications.AlertSettings{
		CameraID:    setup.ID,
		SessionID:   sessionID,
		Cooldown:    a.cfg.Alarm.Cooldown(),
		SendTimeout: a.cfg.Alarm.SendTimeout(),
	}, a.alarmSender, logger, a.onAlarmResult(cameraMetrics))

	var listeners []pipeline.TransitionListener
	if a.journal != nil {
		listeners = append(listeners, a.journal)
	}
	if a.publisher != nil {
		listeners = append(listeners, a.publisher)
	}

	o, err := pipeline.New(pipeline.Settings{
		CameraID:            setup.ID,
		SessionID:           sessionID,
		FrameSkip:           a.cfg.FrameSkip,
		PollInterval:        a.cfg.PollInterval(),
		SourceRetryInterval: a.cfg.SourceRetryInterval(),
	}, pipeline.Dependencies{
		Source:    video.NewGoCVFrameSource(setup.Device, logger),
		Detector:  detector,
		Policy:    policy,
		Outputs:   outputs,
		Alerts:    alerts,
		Metrics:   cameraMetrics,
		Listeners: listeners,
	}, logger)
	if err != nil {
		detector.Close()
		return err
	}

	if err := a.system.Add(o); err != nil {
		o.Shutdown()
		return err
	}

	logger.Info("Camera configured", "device", setup.Device, "detector", setup.Detector,
		"policy", setup.Policy, "session", sessionID, "output", setup.Snapshot.Directory)
	return nil
}

func (a *App) onRecordingFinished(cameraID, sessionID string, logger logging.Logger) recording.RecordingCallback {
	return func(rec *recording.Recording) {
		logger.Info("Recording finished", "path", rec.Path, "frames", rec.Frames, "duration", rec.Duration())

		if a.journal != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.journal.RecordRecording(ctx, cameraID, sessionID, rec); err != nil {
				logger.Error("Failed to journal recording", "path", rec.Path, "error", err)
			}
			cancel()
		}

		if a.postProcessor != nil {
			processed, err := a.postProcessor.ProcessRecording(rec)
			if err != nil {
				logger.Error("Failed to post-process recording", "path", rec.Path, "error", err)
				return
			}
			if processed != nil {
				logger.Info("Recording post-processed", "path", processed.Path, "duration", processed.Duration)
			}
		}
	}
}

func (a *App) onAlarmResult(cameraMetrics *metrics.Camera) func(notifications.DispatchResult) {
	return func(result notifications.DispatchResult) {
		cameraMetrics.Alarm(result.Err)
		if a.journal != nil {
			a.journal.OnAlarm(result)
		}
		if a.publisher != nil {
			a.publisher.OnAlarm(result)
		}
	}
}

// System exposes the camera pipelines.
func (a *App) System() *pipeline.System {
	return a.system
}

// Run starts every pipeline and the web server and blocks until ctx is cancelled. It
// then shuts everything down, bounded by the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	if a.publisher != nil {
		if err := a.publisher.Connect(ctx); err != nil {
			a.logger.Warn("MQTT broker unavailable, continuing without publishing", "error", err)
		}
	}

	if err := a.system.Start(ctx); err != nil {
		a.logger.Error("Some cameras failed to start", "error", err)
	}

	var wg sync.WaitGroup
	var webErr error
	if a.cfg.Web.Enabled {
		router := web.NewRouter(a.cfg.Web, a.logger, a.routes(ctx))
		server := web.NewServer(a.cfg.Web, router, a.logger, a.cfg.ShutdownTimeout())
		wg.Add(1)
		go func() {
			defer wg.Done()
			webErr = server.Run(ctx)
		}()
	}

	<-ctx.Done()
	a.logger.Info("Shutting down")

	err := a.shutdownSystem()
	wg.Wait()

	return errors.Join(err, webErr)
}

func (a *App) routes(ctx context.Context) web.Routes {
	routes := web.Routes{
		Cameras: handlers.NewCameraHandler(ctx, a.logger, a.system),
		Metrics: a.metrics.Handler(),
	}
	if a.journal != nil {
		routes.Journal = handlers.NewJournalHandler(a.logger, a.journal)
	}
	return routes
}

func (a *App) shutdownSystem() error {
	done := make(chan error, 1)
	go func() {
		done <- a.system.Shutdown()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(a.cfg.ShutdownTimeout()):
		return fmt.Errorf("shutdown did not finish within %s", a.cfg.ShutdownTimeout())
	}
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to close MQTT connection", "error", err)
		}
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("Failed to close journal", "error", err)
		}
	}
}
