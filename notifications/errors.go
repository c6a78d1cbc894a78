package notifications

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when no alarm account has been initialized.
var ErrAccountNotFound = errors.New("alarm account not initialized")

// NotificationError reports a failed alarm delivery. It is logged and counted but never
// retried and never changes the event level.
type NotificationError struct {
	Transport string
	CameraID  string
	Err       error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to deliver alarm for camera %s via %s: %v", e.CameraID, e.Transport, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

func NewNotificationError(transport, cameraID string, err error) error {
	return &NotificationError{Transport: transport, CameraID: cameraID, Err: err}
}

func IsNotificationError(err error) bool {
	var notificationErr *NotificationError
	return errors.As(err, &notificationErr)
}

// AccountVerificationError is returned when the SMTP server rejects the credentials.
type AccountVerificationError struct {
	Username string
	Err      error
}

func (e *AccountVerificationError) Error() string {
	return fmt.Sprintf("account verification failed for %s: %v", e.Username, e.Err)
}

func (e *AccountVerificationError) Unwrap() error {
	return e.Err
}

func IsAccountVerificationError(err error) bool {
	var verificationErr *AccountVerificationError
	return errors.As(err, &verificationErr)
}
