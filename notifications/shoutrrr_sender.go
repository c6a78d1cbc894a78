package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// messageRouter is the part of the shoutrrr service router used to deliver alarms.
type messageRouter interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrAlarmSender pushes alarms to any service shoutrrr supports (ntfy, telegram,
// pushover, ...).
type ShoutrrrAlarmSender struct {
	router messageRouter
}

// NewShoutrrrAlarmSender builds a router for the given service URLs.
func NewShoutrrrAlarmSender(urls []string, timeout time.Duration) (*ShoutrrrAlarmSender, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one notification URL is required")
	}

	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification router: %w", err)
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrAlarmSender{router: router}, nil
}

func (s *ShoutrrrAlarmSender) SendAlarm(ctx context.Context, alarm Alarm) error {
	if err := ctx.Err(); err != nil {
		return NewNotificationError("shoutrrr", alarm.CameraID, err)
	}

	params := stypes.Params{}
	params.SetTitle(AlarmSubject)

	var sendErrs []error
	for _, err := range s.router.Send(alarm.Body(), &params) {
		if err != nil {
			sendErrs = append(sendErrs, err)
		}
	}

	if err := errors.Join(sendErrs...); err != nil {
		return NewNotificationError("shoutrrr", alarm.CameraID, err)
	}
	return nil
}
