package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventlevel "github.com/yeti47/securitycam/event-level"
)

const AlarmSubject = "Alarm from Surveillance Camera"

const alarmText = "The surveillance camera system detected suspicious activity, please react asap."

// Alarm is a single human notification raised by a camera.
type Alarm struct {
	CameraID  string
	SessionID string
	Level     eventlevel.Level
	At        time.Time
}

// Body renders the plain text message sent for the alarm.
func (a Alarm) Body() string {
	return fmt.Sprintf("%s\n\nCamera: %s\nLevel: %d (%s)\nTime: %s",
		alarmText, a.CameraID, a.Level, a.Level, a.At.Format(time.RFC1123))
}

type AlarmSender interface {
	// SendAlarm delivers the alarm through the sender's transport.
	SendAlarm(ctx context.Context, alarm Alarm) error
}

type nopAlarmSender struct{}

var NopAlarmSender AlarmSender = &nopAlarmSender{}

// SendAlarm does nothing and returns nil.
func (n *nopAlarmSender) SendAlarm(ctx context.Context, alarm Alarm) error {
	return nil
}

// MultiSender delivers an alarm through every sender. All senders are tried even if
// one of them fails.
type MultiSender []AlarmSender

func (m MultiSender) SendAlarm(ctx context.Context, alarm Alarm) error {
	var errs []error
	for _, sender := range m {
		if err := sender.SendAlarm(ctx, alarm); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
