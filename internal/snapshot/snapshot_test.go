package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/speedcam/internal/fsutil"
	"github.com/banshee-data/speedcam/internal/tracking"
)

func fakeEncoder(payload string) EncoderFunc {
	return func(ev *tracking.SpeedEvent, ts time.Time) ([]byte, error) {
		return []byte(payload + ts.Format(time.RFC3339)), nil
	}
}

func testEvent(speed float64) *tracking.SpeedEvent {
	return &tracking.SpeedEvent{
		Speed:     speed,
		Units:     "mph",
		Direction: tracking.LeftToRight,
		Timestamp: time.Date(2026, 3, 7, 14, 5, 9, 500_000_000, time.UTC),
		Frame:     struct{}{},
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name  string
		t     time.Time
		speed float64
		want  string
	}{
		{"rounds down", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), 31.4, "car_at_20260102_030405_going_31.jpg"},
		{"rounds up", time.Date(2026, 12, 31, 23, 59, 59, 999, time.UTC), 29.6, "car_at_20261231_235959_going_30.jpg"},
		{"zero speed", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 0, "car_at_20260601_000000_going_0.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.t, tt.speed))
		})
	}
}

func TestStoreSave_MemoryFileSystem(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	store, err := NewStore("/snaps", fakeEncoder("jpeg:"), WithFileSystem(mem), WithLocation(time.UTC))
	require.NoError(t, err)
	assert.True(t, mem.Exists("/snaps"))

	ev := testEvent(42.2)
	require.NoError(t, store.HandleSpeedEvent(context.Background(), ev))
	assert.Equal(t, "/snaps/car_at_20260307_140509_going_42.jpg", ev.SnapshotPath)

	data, err := mem.ReadFile(ev.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:2026-03-07T14:05:09Z", string(data))
}

func TestStoreSave_NameCollision(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	store, err := NewStore("/snaps", fakeEncoder(""), WithFileSystem(mem), WithLocation(time.UTC))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := store.Save(testEvent(30))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		"/snaps/car_at_20260307_140509_going_30.jpg",
		"/snaps/car_at_20260307_140509_going_30_1.jpg",
		"/snaps/car_at_20260307_140509_going_30_2.jpg",
	}, mem.Files("/snaps"))
}

func TestStoreSave_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	mem := fsutil.NewMemoryFileSystem()
	store, err := NewStore("/snaps", fakeEncoder(""), WithFileSystem(mem), WithLocation(loc))
	require.NoError(t, err)

	path, err := store.Save(testEvent(25))
	require.NoError(t, err)
	assert.Equal(t, "car_at_20260307_160509_going_25.jpg", filepath.Base(path))
}

func TestStoreSave_Errors(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()

	_, err := NewStore("/snaps", nil, WithFileSystem(mem))
	assert.Error(t, err)

	store, err := NewStore("/snaps", fakeEncoder(""), WithFileSystem(mem))
	require.NoError(t, err)

	ev := testEvent(20)
	ev.Frame = nil
	_, err = store.Save(ev)
	assert.ErrorIs(t, err, ErrNoFrame)

	boom := errors.New("boom")
	failing, err := NewStore("/snaps", EncoderFunc(func(*tracking.SpeedEvent, time.Time) ([]byte, error) {
		return nil, boom
	}), WithFileSystem(mem))
	require.NoError(t, err)

	ev = testEvent(20)
	err = failing.HandleSpeedEvent(context.Background(), ev)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ev.SnapshotPath)
}

func TestStoreSave_OSFileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	store, err := NewStore(dir, fakeEncoder("x"), WithLocation(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	path, err := store.Save(testEvent(35))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "car_at_20260307_140509_going_35.jpg"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
