package tracking

import (
	"errors"
	"time"

	"github.com/banshee-data/speedcam/internal/calibration"
	"github.com/google/uuid"
)

// Defaults for TrackerConfig fields left at their zero value.
const (
	DefaultTimeout         = 15 * time.Second
	DefaultCaptureMarginPx = 2
)

// TrackerConfig holds the fixed parameters of the state machine.
type TrackerConfig struct {
	Calibration     *calibration.Calibration
	SpeedFactor     float64       // feet/second → display unit
	Units           string        // label carried on SpeedEvents
	Timeout         time.Duration // episodes at or beyond this age are abandoned
	CaptureMarginPx int
}

// Tracker is a single-owner handle around State. It is not safe for
// concurrent use; a multi-threaded host must serialise calls.
type Tracker struct {
	cfg   TrackerConfig
	state State
	newID func() uuid.UUID
}

// NewTracker validates cfg and returns a tracker in WAITING.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Calibration == nil {
		return nil, errors.New("tracker requires a calibration")
	}
	if cfg.SpeedFactor <= 0 {
		return nil, errors.New("tracker speed factor must be positive")
	}
	return &Tracker{cfg: cfg.withDefaults(), newID: uuid.New}, nil
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CaptureMarginPx <= 0 {
		c.CaptureMarginPx = DefaultCaptureMarginPx
	}
	return c
}

// Config returns the tracker's effective configuration.
func (t *Tracker) Config() TrackerConfig { return t.cfg }

// State returns a copy of the current state.
func (t *Tracker) State() State { return t.state }

// Phase is shorthand for State().Phase.
func (t *Tracker) Phase() Phase { return t.state.Phase }

// Reset returns the tracker to WAITING. Callers use it to leave SAVING once
// the captured frame has been handled.
func (t *Tracker) Reset() { t.state = State{} }

// OnFrame applies one observation. It returns the SpeedEvent emitted on
// this frame, if any, and an Outcome describing the transition.
func (t *Tracker) OnFrame(obs Observation, zoneWidth, zoneHeight int) (*SpeedEvent, Outcome) {
	next, ev, out := Step(t.state, obs, zoneWidth, zoneHeight, t.cfg)
	t.state = next
	if ev != nil {
		ev.ID = t.newID()
	}
	return ev, out
}

// Step is the pure transition function behind Tracker.OnFrame. Event IDs are
// left zero. cfg.Calibration must be set.
func Step(s State, obs Observation, zoneWidth, zoneHeight int, cfg TrackerConfig) (State, *SpeedEvent, Outcome) {
	cfg = cfg.withDefaults()
	switch s.Phase {
	case Waiting:
		if !obs.Found {
			return s, nil, Outcome{Kind: OutcomeNone, Timestamp: obs.Timestamp}
		}
		return State{
			Phase:         Tracking,
			Direction:     Unknown,
			InitialX:      obs.Box.X,
			LastX:         obs.Box.X,
			StartTime:     obs.Timestamp,
			LastTimestamp: obs.Timestamp,
			LastSpeed:     0,
		}, nil, Outcome{Kind: OutcomeStarted, Timestamp: obs.Timestamp}

	case Tracking:
		if !obs.Found {
			return State{}, nil, Outcome{Kind: OutcomeLostTrack, Direction: s.Direction, Timestamp: obs.Timestamp, Speed: s.LastSpeed}
		}
		elapsed := obs.Timestamp.Sub(s.StartTime)
		if elapsed >= cfg.Timeout {
			return State{}, nil, Outcome{Kind: OutcomeTimeout, Direction: s.Direction, Timestamp: obs.Timestamp, Speed: s.LastSpeed, Elapsed: elapsed}
		}
		return track(s, obs, elapsed, zoneWidth, zoneHeight, cfg)

	default:
		// SAVING holds until the caller resets.
		return s, nil, Outcome{Kind: OutcomeNone, Direction: s.Direction, Timestamp: obs.Timestamp}
	}
}

func track(s State, obs Observation, elapsed time.Duration, zoneWidth, zoneHeight int, cfg TrackerConfig) (State, *SpeedEvent, Outcome) {
	box := obs.Box
	anomaly := !obs.Timestamp.After(s.LastTimestamp)

	// Direction is re-derived every frame, so jitter can flip it mid-episode.
	// The leading edge is the right side going left-to-right and the left
	// side going right-to-left.
	var displacement, ftPerPx float64
	if box.X >= s.LastX {
		s.Direction = LeftToRight
		displacement = float64(box.Right() - s.InitialX)
		ftPerPx = cfg.Calibration.FeetPerPixelNear
	} else {
		s.Direction = RightToLeft
		displacement = float64(s.InitialX - box.X)
		ftPerPx = cfg.Calibration.FeetPerPixelFar
	}
	speed := Speed(displacement, ftPerPx, elapsed.Seconds(), cfg.SpeedFactor)

	out := Outcome{
		Kind:            OutcomeUpdated,
		Direction:       s.Direction,
		Timestamp:       obs.Timestamp,
		Speed:           speed,
		DisplacementPx:  displacement,
		Elapsed:         elapsed,
		TemporalAnomaly: anomaly,
	}

	var ev *SpeedEvent
	if ShouldCapture(box, s.Direction, zoneWidth, cfg.CaptureMarginPx) {
		// On the exit frame the box is clipped by the zone edge, so the
		// sample from the frame before is the one reported.
		ev = &SpeedEvent{
			Speed:          s.LastSpeed,
			ExitSpeed:      speed,
			Units:          cfg.Units,
			Direction:      s.Direction,
			DisplacementPx: displacement,
			Elapsed:        elapsed,
			StartTime:      s.StartTime,
			Timestamp:      obs.Timestamp,
			Box:            box,
			ZoneWidth:      zoneWidth,
			ZoneHeight:     zoneHeight,
			Frame:          obs.Frame,
		}
		s.Phase = Saving
		out.Kind = OutcomeCaptured
	}

	s.LastSpeed = speed
	s.LastX = box.X
	if obs.Timestamp.After(s.LastTimestamp) {
		s.LastTimestamp = obs.Timestamp
	}
	return s, ev, out
}
