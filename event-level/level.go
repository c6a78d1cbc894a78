package eventlevel

import (
	"fmt"
	"time"
)

// Level is the alert level of a camera session.
type Level int

const (
	// LevelIdle means no subject is in view.
	LevelIdle Level = 1
	// LevelPresent means a subject is in view; low resolution snapshots are taken.
	LevelPresent Level = 2
	// LevelConcerning means the subject is close; high resolution snapshots are taken and alarms may fire.
	LevelConcerning Level = 3
	// LevelAlarming means the subject is very close; frames are recorded continuously.
	LevelAlarming Level = 4
)

// MinLevel and MaxLevel bound every Level a policy can produce.
const (
	MinLevel = LevelIdle
	MaxLevel = LevelAlarming
)

func (l Level) String() string {
	switch l {
	case LevelIdle:
		return "idle"
	case LevelPresent:
		return "present"
	case LevelConcerning:
		return "concerning"
	case LevelAlarming:
		return "alarming"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Transition describes a change of the level observed for a camera session.
type Transition struct {
	CameraID  string
	SessionID string
	From      Level
	To        Level
	At        time.Time
}

// Raised reports whether the transition escalates the level.
func (t Transition) Raised() bool {
	return t.To > t.From
}

// Direction returns "raised" or "lowered".
func (t Transition) Direction() string {
	if t.Raised() {
		return "raised"
	}
	return "lowered"
}

// Message renders the transition the way the console shows it, e.g. "Event 1 raised to 2".
func (t Transition) Message() string {
	return fmt.Sprintf("Event %d %s to %d", int(t.From), t.Direction(), int(t.To))
}
