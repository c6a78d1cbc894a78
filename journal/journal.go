package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/yeti47/securitycam/ccc/db"
	"github.com/yeti47/securitycam/ccc/logging"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/notifications"
	"github.com/yeti47/securitycam/recording"
)

type Journal interface {
	// RecordTransition stores a level change
	RecordTransition(ctx context.Context, transition eventlevel.Transition) error
	// RecordAlarm stores the outcome of an alarm delivery
	RecordAlarm(ctx context.Context, result notifications.DispatchResult) error
	// RecordRecording stores a closed session recording
	RecordRecording(ctx context.Context, cameraID, sessionID string, rec *recording.Recording) error
	// RecentTransitions returns the latest transitions of a camera, newest first
	RecentTransitions(ctx context.Context, cameraID string, limit int) ([]*TransitionEntry, error)
	// RecentAlarms returns the latest alarms of a camera, newest first
	RecentAlarms(ctx context.Context, cameraID string, limit int) ([]*AlarmEntry, error)
	// Recordings returns the recordings of a camera, newest first
	Recordings(ctx context.Context, cameraID string) ([]*RecordingEntry, error)
}

// writeTimeout bounds journal writes triggered from pipeline callbacks.
const writeTimeout = 5 * time.Second

// SQLiteJournal implements Journal using SQLite
type SQLiteJournal struct {
	db     *sql.DB
	logger logging.Logger
	newID  func() string
}

func NewSQLiteJournal(database *sql.DB, logger logging.Logger) (*SQLiteJournal, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	j := &SQLiteJournal{
		db:     database,
		logger: logger,
		newID:  uuid.NewString,
	}
	if err := j.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) createTables() error {
	statements := []string{`
	CREATE TABLE IF NOT EXISTS level_transitions (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		from_level INTEGER NOT NULL,
		to_level INTEGER NOT NULL,
		occurred_at TEXT NOT NULL
	);`, `
	CREATE INDEX IF NOT EXISTS idx_level_transitions_camera ON level_transitions (camera_id, occurred_at);`, `
	CREATE TABLE IF NOT EXISTS alarms (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		level INTEGER NOT NULL,
		raised_at TEXT NOT NULL,
		delivered INTEGER NOT NULL,
		error TEXT NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		path TEXT NOT NULL,
		codec TEXT NOT NULL,
		frames INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL
	);`,
	}

	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (j *SQLiteJournal) RecordTransition(ctx context.Context, transition eventlevel.Transition) error {
	query := `
	INSERT INTO level_transitions (id, camera_id, session_id, from_level, to_level, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		j.newID(), transition.CameraID, transition.SessionID,
		int(transition.From), int(transition.To), db.TimeToString(transition.At),
	)
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) RecordAlarm(ctx context.Context, result notifications.DispatchResult) error {
	query := `
	INSERT INTO alarms (id, camera_id, session_id, level, raised_at, delivered, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	_, err := j.db.ExecContext(ctx, query,
		j.newID(), result.Alarm.CameraID, result.Alarm.SessionID, int(result.Alarm.Level),
		db.TimeToString(result.Alarm.At), db.BoolToInt(result.Err == nil), errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record alarm: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) RecordRecording(ctx context.Context, cameraID, sessionID string, rec *recording.Recording) error {
	query := `
	INSERT INTO recordings (id, camera_id, session_id, path, codec, frames, started_at, ended_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		j.newID(), cameraID, sessionID, rec.Path, rec.Codec, rec.Frames,
		db.TimeToString(rec.StartedAt), db.TimeToString(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record recording: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) RecentTransitions(ctx context.Context, cameraID string, limit int) ([]*TransitionEntry, error) {
	query := `
	SELECT id, camera_id, session_id, from_level, to_level, occurred_at
	FROM level_transitions WHERE camera_id = ? ORDER BY occurred_at DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var entries []*TransitionEntry
	for rows.Next() {
		entry := &TransitionEntry{}
		var from, to int
		var occurredAt string
		if err := rows.Scan(&entry.ID, &entry.CameraID, &entry.SessionID, &from, &to, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		entry.From = eventlevel.Level(from)
		entry.To = eventlevel.Level(to)
		entry.At, err = db.StringToTime(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse occurred_at timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (j *SQLiteJournal) RecentAlarms(ctx context.Context, cameraID string, limit int) ([]*AlarmEntry, error) {
	query := `
	SELECT id, camera_id, session_id, level, raised_at, delivered, error
	FROM alarms WHERE camera_id = ? ORDER BY raised_at DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	var entries []*AlarmEntry
	for rows.Next() {
		entry := &AlarmEntry{}
		var level, delivered int
		var raisedAt string
		if err := rows.Scan(&entry.ID, &entry.CameraID, &entry.SessionID, &level, &raisedAt, &delivered, &entry.Error); err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}

		entry.Level = eventlevel.Level(level)
		entry.Delivered = db.IntToBool(delivered)
		entry.At, err = db.StringToTime(raisedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse raised_at timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (j *SQLiteJournal) Recordings(ctx context.Context, cameraID string) ([]*RecordingEntry, error) {
	query := `
	SELECT id, camera_id, session_id, path, codec, frames, started_at, ended_at
	FROM recordings WHERE camera_id = ? ORDER BY started_at DESC`

	rows, err := j.db.QueryContext(ctx, query, cameraID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var entries []*RecordingEntry
	for rows.Next() {
		entry := &RecordingEntry{}
		var startedAt, endedAt string
		if err := rows.Scan(&entry.ID, &entry.CameraID, &entry.SessionID, &entry.Path, &entry.Codec, &entry.Frames, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}

		entry.StartedAt, err = db.StringToTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
		}
		entry.EndedAt, err = db.StringToTime(endedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ended_at timestamp: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// OnTransition journals a transition reported by a running pipeline. Failures are
// logged and otherwise ignored.
func (j *SQLiteJournal) OnTransition(transition eventlevel.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := j.RecordTransition(ctx, transition); err != nil {
		j.logger.Error("Failed to journal transition", "camera", transition.CameraID, "error", err)
	}
}

// OnAlarm journals the outcome of an alarm delivery.
func (j *SQLiteJournal) OnAlarm(result notifications.DispatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := j.RecordAlarm(ctx, result); err != nil {
		j.logger.Error("Failed to journal alarm", "camera", result.Alarm.CameraID, "error", err)
	}
}
