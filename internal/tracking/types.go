package tracking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is the lifecycle phase of the tracker.
type Phase int

const (
	Waiting Phase = iota
	Tracking
	Saving
)

func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case Tracking:
		return "tracking"
	case Saving:
		return "saving"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Direction of travel across the monitored zone.
type Direction int

const (
	Unknown Direction = iota
	LeftToRight
	RightToLeft
)

func (d Direction) String() string {
	switch d {
	case Unknown:
		return "unknown"
	case LeftToRight:
		return "left_to_right"
	case RightToLeft:
		return "right_to_left"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// BoundingBox is in monitored-zone-local pixel coordinates.
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Right is the x coordinate of the box's right edge.
func (b BoundingBox) Right() int { return b.X + b.Width }

// Area in square pixels.
func (b BoundingBox) Area() int { return b.Width * b.Height }

// Observation is the per-frame output of the motion detector.
type Observation struct {
	Found     bool
	Box       BoundingBox // valid only if Found
	Timestamp time.Time
	// Frame is an opaque reference to the originating image, carried through
	// to the SpeedEvent for snapshotting.
	Frame any
}

// State is the only mutable entity of the tracker.
type State struct {
	Phase         Phase
	Direction     Direction
	InitialX      int
	LastX         int
	StartTime     time.Time
	LastTimestamp time.Time
	LastSpeed     float64
}

// SpeedEvent is emitted once per completed traversal.
type SpeedEvent struct {
	ID        uuid.UUID
	Speed     float64 // reported speed: the last sample taken before the exit frame
	ExitSpeed float64 // sample computed on the exit frame itself
	Units     string
	Direction Direction

	DisplacementPx float64
	Elapsed        time.Duration
	StartTime      time.Time
	Timestamp      time.Time

	Box        BoundingBox
	ZoneWidth  int
	ZoneHeight int
	Frame      any

	// SnapshotPath is filled in by the snapshot sink once the frame is saved.
	SnapshotPath string
}

// OutcomeKind classifies what a single OnFrame call did.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeStarted
	OutcomeUpdated
	OutcomeCaptured
	OutcomeLostTrack
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeStarted:
		return "started"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCaptured:
		return "captured"
	case OutcomeLostTrack:
		return "lost_track"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the informational payload of a transition. Lost tracks,
// timeouts and temporal anomalies are reported here rather than as errors.
type Outcome struct {
	Kind      OutcomeKind
	Direction Direction
	Timestamp time.Time

	// Per-frame measurement, set for Updated and Captured. LostTrack and
	// Timeout carry the abandoned episode's last sample in Speed.
	Speed          float64
	DisplacementPx float64
	Elapsed        time.Duration

	// TemporalAnomaly is set when a tracking frame's timestamp did not
	// advance past the previous one.
	TemporalAnomaly bool
}
