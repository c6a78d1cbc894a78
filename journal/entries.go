package journal

import (
	"time"

	eventlevel "github.com/yeti47/securitycam/event-level"
)

// TransitionEntry is a journaled level change.
type TransitionEntry struct {
	ID        string
	CameraID  string
	SessionID string
	From      eventlevel.Level
	To        eventlevel.Level
	At        time.Time
}

// AlarmEntry is a journaled alarm delivery.
type AlarmEntry struct {
	ID        string
	CameraID  string
	SessionID string
	Level     eventlevel.Level
	At        time.Time
	Delivered bool
	Error     string
}

// RecordingEntry is a journaled session recording.
type RecordingEntry struct {
	ID        string
	CameraID  string
	SessionID string
	Path      string
	Codec     string
	Frames    int
	StartedAt time.Time
	EndedAt   time.Time
}
