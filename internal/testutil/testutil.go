// Package testutil provides fixtures shared by the HTTP and command tests:
// a migrated throwaway database and capture events to fill it with.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/tracking"
)

// QuietLogs mutes the package logger for the duration of the test.
func QuietLogs(t testing.TB) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })
}

// NewTestDB opens a migrated database in a temp dir, closed on cleanup.
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()
	QuietLogs(t)

	store, err := db.NewDB(filepath.Join(t.TempDir(), "speedcam.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// SpeedEvent builds a left-to-right capture at the given time.
func SpeedEvent(speed float64, unit string, at time.Time) *tracking.SpeedEvent {
	return &tracking.SpeedEvent{
		ID:             uuid.New(),
		Speed:          speed,
		ExitSpeed:      speed,
		Units:          unit,
		Direction:      tracking.LeftToRight,
		DisplacementPx: 200,
		Elapsed:        time.Second,
		Timestamp:      at,
	}
}

// RecordSpeeds stores one capture per speed, a minute apart starting at from.
func RecordSpeeds(t testing.TB, store *db.DB, unit string, from time.Time, speeds ...float64) {
	t.Helper()
	for i, s := range speeds {
		ev := SpeedEvent(s, unit, from.Add(time.Duration(i)*time.Minute))
		if err := store.RecordSpeedEvent(context.Background(), ev); err != nil {
			t.Fatalf("failed to record speed %v: %v", s, err)
		}
	}
}

// Get serves a GET request for target through h.
func Get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}
