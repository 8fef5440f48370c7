// Package snapshot writes the annotated frame of every captured vehicle to
// disk as car_at_<YYYYMMDD_HHMMSS>_going_<speed>.jpg.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/speedcam/internal/fsutil"
	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/security"
	"github.com/banshee-data/speedcam/internal/tracking"
)

var logf = monitoring.Component("snapshot")

// ErrNoFrame is returned when a SpeedEvent carries no frame to encode.
var ErrNoFrame = errors.New("speed event has no frame")

// Encoder renders the event's frame, annotated with speed and time, to JPEG
// bytes. ts is the capture time already converted to display time.
type Encoder interface {
	Encode(ev *tracking.SpeedEvent, ts time.Time) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ev *tracking.SpeedEvent, ts time.Time) ([]byte, error)

func (f EncoderFunc) Encode(ev *tracking.SpeedEvent, ts time.Time) ([]byte, error) { return f(ev, ts) }

// FileName formats the snapshot name for a capture at t with the given speed.
func FileName(t time.Time, speed float64) string {
	return fmt.Sprintf("car_at_%s_going_%.0f.jpg", t.Format("20060102_150405"), speed)
}

// Store saves snapshots into one directory.
type Store struct {
	dir      string
	fs       fsutil.FileSystem
	enc      Encoder
	loc      *time.Location
	validate bool
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem swaps the filesystem. Path validation against the real
// filesystem is skipped for non-OS implementations.
func WithFileSystem(fsys fsutil.FileSystem) Option {
	return func(s *Store) {
		s.fs = fsys
		_, s.validate = fsys.(fsutil.OSFileSystem)
	}
}

// WithLocation sets the zone used for file names and the on-image timestamp.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewStore creates dir if needed and returns a Store writing into it.
func NewStore(dir string, enc Encoder, opts ...Option) (*Store, error) {
	if enc == nil {
		return nil, errors.New("snapshot store requires an encoder")
	}
	if dir == "" {
		dir = "."
	}
	s := &Store{dir: filepath.Clean(dir), fs: fsutil.OSFileSystem{}, enc: enc, loc: time.Local, validate: true}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", s.dir, err)
	}
	return s, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Save encodes ev's frame and writes it, returning the written path. A name
// that is already taken gets a numeric suffix rather than being overwritten.
func (s *Store) Save(ev *tracking.SpeedEvent) (string, error) {
	if ev.Frame == nil {
		return "", ErrNoFrame
	}
	ts := ev.Timestamp.In(s.loc)
	data, err := s.enc.Encode(ev, ts)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	path := s.uniquePath(FileName(ts, ev.Speed))
	if s.validate {
		if err := security.ValidatePathWithinDirectory(path, s.dir); err != nil {
			return "", err
		}
	}
	if err := s.fs.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) uniquePath(name string) string {
	path := filepath.Join(s.dir, name)
	base := strings.TrimSuffix(name, ".jpg")
	for i := 1; s.fs.Exists(path); i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d.jpg", base, i))
	}
	return path
}

// HandleSpeedEvent saves the snapshot and records its path on the event.
func (s *Store) HandleSpeedEvent(_ context.Context, ev *tracking.SpeedEvent) error {
	path, err := s.Save(ev)
	if err != nil {
		return err
	}
	ev.SnapshotPath = path
	logf("saved %s (%.0f %s, %s)", filepath.Base(path), ev.Speed, ev.Units, ev.Direction)
	return nil
}
