package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/yeti47/securitycam/ccc/logging"
	eventlevel "github.com/yeti47/securitycam/event-level"
)

// DispatchResult reports the outcome of one alarm delivery.
type DispatchResult struct {
	Alarm Alarm
	Err   error
}

type AlertSettings struct {
	CameraID    string
	SessionID   string
	Cooldown    time.Duration // Minimum time between two alarms, strictly exceeded
	SendTimeout time.Duration // Upper bound for one delivery, DefaultSendTimeout when zero
}

// DefaultSendTimeout keeps Wait bounded when no timeout is configured.
const DefaultSendTimeout = 30 * time.Second

// AlertDispatcher raises an alarm when a camera sits at the concerning level, at most
// once per cooldown. Deliveries run in the background and never block the caller.
type AlertDispatcher struct {
	settings AlertSettings
	sender   AlarmSender
	logger   logging.Logger
	cooldown *Cooldown
	onResult func(DispatchResult)

	wg sync.WaitGroup
}

// NewAlertDispatcher creates a dispatcher for one camera. onResult may be nil.
func NewAlertDispatcher(settings AlertSettings, sender AlarmSender, logger logging.Logger, onResult func(DispatchResult)) *AlertDispatcher {
	if logger == nil {
		logger = logging.NopLogger
	}
	if sender == nil {
		sender = NopAlarmSender
	}
	if settings.SendTimeout <= 0 {
		settings.SendTimeout = DefaultSendTimeout
	}
	return &AlertDispatcher{
		settings: settings,
		sender:   sender,
		logger:   logger,
		cooldown: NewCooldown(settings.Cooldown),
		onResult: onResult,
	}
}

// MaybeNotify starts an alarm delivery when level is concerning and the cooldown has
// passed. It reports whether a delivery was started.
func (d *AlertDispatcher) MaybeNotify(level eventlevel.Level, now time.Time) bool {
	if level != eventlevel.LevelConcerning {
		return false
	}
	if !d.cooldown.TryMark(now) {
		return false
	}

	alarm := Alarm{
		CameraID:  d.settings.CameraID,
		SessionID: d.settings.SessionID,
		Level:     level,
		At:        now,
	}

	d.logger.Info("Sending alarm", "camera", alarm.CameraID, "level", int(level))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(alarm)
	}()
	return true
}

func (d *AlertDispatcher) deliver(alarm Alarm) {
	ctx, cancel := context.WithTimeout(context.Background(), d.settings.SendTimeout)
	defer cancel()

	err := d.sender.SendAlarm(ctx, alarm)
	if err != nil {
		d.logger.Error("Failed to send alarm", "camera", alarm.CameraID, "error", err)
	} else {
		d.logger.Info("Alarm sent", "camera", alarm.CameraID)
	}

	if d.onResult != nil {
		d.onResult(DispatchResult{Alarm: alarm, Err: err})
	}
}

// LastSent returns the time of the last alarm and whether one was ever sent.
func (d *AlertDispatcher) LastSent() (time.Time, bool) {
	return d.cooldown.LastSent()
}

// Wait blocks until every started delivery has finished, at most SendTimeout for
// senders that honour their context.
func (d *AlertDispatcher) Wait() {
	d.wg.Wait()
}
