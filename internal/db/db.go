// Package db persists speed events and tracking episodes in SQLite and
// serves the summaries the API and report commands read.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/tracking"
)

var logf = monitoring.Component("db")

type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// NewDB opens (or creates) the database at path and migrates it to the
// latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(s float64) time.Time {
	sec := int64(s)
	return time.Unix(sec, int64((s-float64(sec))*1e9)).UTC()
}

// SpeedEvent is a stored capture.
type SpeedEvent struct {
	EventID        string    `json:"event_id"`
	CapturedAt     time.Time `json:"captured_at"`
	Speed          float64   `json:"speed"`
	ExitSpeed      float64   `json:"exit_speed"`
	Units          string    `json:"units"`
	Direction      string    `json:"direction"`
	DisplacementPx float64   `json:"displacement_px"`
	ElapsedSeconds float64   `json:"elapsed_s"`
	SnapshotPath   string    `json:"snapshot_path,omitempty"`
}

// RecordSpeedEvent stores a captured event. Recording the same event ID
// twice is an error.
func (db *DB) RecordSpeedEvent(ctx context.Context, ev *tracking.SpeedEvent) error {
	var snapshot sql.NullString
	if ev.SnapshotPath != "" {
		snapshot = sql.NullString{String: ev.SnapshotPath, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO speed_events (
			event_id, captured_at, speed, exit_speed, units, direction,
			displacement_px, elapsed_s, snapshot_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), toUnix(ev.Timestamp), ev.Speed, ev.ExitSpeed, ev.Units, ev.Direction.String(),
		ev.DisplacementPx, ev.Elapsed.Seconds(), snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to record speed event %s: %w", ev.ID, err)
	}
	return nil
}

const speedEventColumns = `event_id, captured_at, speed, exit_speed, units, direction,
	displacement_px, elapsed_s, snapshot_path`

// RecentSpeedEvents returns up to limit events, newest first.
func (db *DB) RecentSpeedEvents(ctx context.Context, limit int) ([]SpeedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+speedEventColumns+` FROM speed_events ORDER BY captured_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanSpeedEvents(rows)
}

// SpeedEventsSince returns every event captured at or after since, oldest
// first.
func (db *DB) SpeedEventsSince(ctx context.Context, since time.Time) ([]SpeedEvent, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+speedEventColumns+` FROM speed_events WHERE captured_at >= ? ORDER BY captured_at`, toUnix(since))
	if err != nil {
		return nil, err
	}
	return scanSpeedEvents(rows)
}

func scanSpeedEvents(rows *sql.Rows) ([]SpeedEvent, error) {
	defer rows.Close()

	events := []SpeedEvent{}
	for rows.Next() {
		var (
			e          SpeedEvent
			capturedAt float64
			snapshot   sql.NullString
		)
		if err := rows.Scan(&e.EventID, &capturedAt, &e.Speed, &e.ExitSpeed, &e.Units, &e.Direction,
			&e.DisplacementPx, &e.ElapsedSeconds, &snapshot); err != nil {
			return nil, err
		}
		e.CapturedAt = fromUnix(capturedAt)
		e.SnapshotPath = snapshot.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// SpeedsSince returns the reported speed of every event captured at or after
// since, oldest first.
func (db *DB) SpeedsSince(ctx context.Context, since time.Time) ([]float64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT speed FROM speed_events WHERE captured_at >= ? ORDER BY captured_at`, toUnix(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var s float64
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		speeds = append(speeds, s)
	}
	return speeds, rows.Err()
}

// RecordOutcome logs how a tracking episode ended.
func (db *DB) RecordOutcome(ctx context.Context, out tracking.Outcome) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tracking_episodes (outcome, occurred_at, direction, last_speed) VALUES (?, ?, ?, ?)`,
		out.Kind.String(), toUnix(out.Timestamp), out.Direction.String(), out.Speed,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s outcome: %w", out.Kind, err)
	}
	return nil
}

// OutcomeCounts returns the number of episodes per outcome since the given time.
func (db *DB) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM tracking_episodes WHERE occurred_at >= ? GROUP BY outcome`, toUnix(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// HandleSpeedEvent stores ev. It lets the DB act as a pipeline sink.
func (db *DB) HandleSpeedEvent(ctx context.Context, ev *tracking.SpeedEvent) error {
	return db.RecordSpeedEvent(ctx, ev)
}

// HandleOutcome records the end of every tracking episode. Started and
// updated frames are not stored.
func (db *DB) HandleOutcome(ctx context.Context, out tracking.Outcome) error {
	switch out.Kind {
	case tracking.OutcomeCaptured, tracking.OutcomeLostTrack, tracking.OutcomeTimeout:
		return db.RecordOutcome(ctx, out)
	}
	return nil
}
