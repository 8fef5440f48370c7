// Package pipeline runs the per-frame loop: read a frame, find the largest
// moving region, step the tracker and hand captures to the sinks.
//
// The pipeline is generic over the frame type so the loop can be driven by
// camera images in production and by plain values in tests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/timeutil"
	"github.com/banshee-data/speedcam/internal/tracking"
)

var logf = monitoring.Component("pipeline")

// FrameSource yields frames in capture order. Next returns io.EOF when the
// source is exhausted.
type FrameSource[F any] interface {
	Next(ctx context.Context) (F, time.Time, error)
}

// Detector extracts the largest moving region of a frame, in zone-local
// coordinates.
type Detector[F any] interface {
	// Prime sets the background model from a frame. Nothing is detected on
	// a priming frame.
	Prime(frame F) error
	Detect(frame F) (box tracking.BoundingBox, found bool, err error)
}

// BackgroundRefresher is implemented by detectors whose background can
// absorb the most recent frame.
type BackgroundRefresher interface {
	RefreshBackground()
}

// EventSink receives every SpeedEvent. Sinks run in order on the pipeline
// goroutine and may annotate the event for the sinks after them.
type EventSink interface {
	HandleSpeedEvent(ctx context.Context, ev *tracking.SpeedEvent) error
}

// OutcomeSink is implemented by sinks that also want transition outcomes.
type OutcomeSink interface {
	HandleOutcome(ctx context.Context, out tracking.Outcome) error
}

// Config sizes the zone and tunes logging.
type Config struct {
	ZoneWidth  int
	ZoneHeight int
	// Verbose logs every tracking sample.
	Verbose bool
}

// Frames processed between background refreshes while a capture lingers.
var refreshAt = map[int]bool{10: true, 20: true, 30: true, 40: true, 50: true}

const loopCountCeiling = 50

// Pipeline owns the tracker. Only Run touches it; Status may be read from
// any goroutine.
type Pipeline[F any] struct {
	cfg      Config
	source   FrameSource[F]
	detector Detector[F]
	tracker  *tracking.Tracker
	sinks    []EventSink

	primed    bool
	loopCount int

	mu     sync.RWMutex
	status Status
}

// Status is a point-in-time view of the pipeline for the API.
type Status struct {
	Phase          string     `json:"phase"`
	Direction      string     `json:"direction"`
	LastSpeed      float64    `json:"last_speed"`
	Units          string     `json:"units"`
	Frames         int64      `json:"frames"`
	Captures       int64      `json:"captures"`
	LostTracks     int64      `json:"lost_tracks"`
	Timeouts       int64      `json:"timeouts"`
	Anomalies      int64      `json:"temporal_anomalies"`
	SinkErrors     int64      `json:"sink_errors"`
	LastFrame      time.Time  `json:"last_frame"`
	LastEvent      *time.Time `json:"last_event,omitempty"`
	LastEventSpeed float64    `json:"last_event_speed,omitempty"`
}

// New wires a pipeline. The tracker must be fresh and is owned by the
// pipeline from here on.
func New[F any](cfg Config, source FrameSource[F], detector Detector[F], tracker *tracking.Tracker, sinks ...EventSink) (*Pipeline[F], error) {
	if source == nil || detector == nil || tracker == nil {
		return nil, errors.New("pipeline requires a source, detector and tracker")
	}
	if cfg.ZoneWidth <= 0 || cfg.ZoneHeight <= 0 {
		return nil, fmt.Errorf("invalid zone size %dx%d", cfg.ZoneWidth, cfg.ZoneHeight)
	}
	p := &Pipeline[F]{
		cfg:      cfg,
		source:   source,
		detector: detector,
		tracker:  tracker,
		sinks:    sinks,
	}
	p.status = Status{
		Phase:     tracking.Waiting.String(),
		Direction: tracking.Unknown.String(),
		Units:     tracker.Config().Units,
	}
	return p, nil
}

// Run processes frames until ctx is cancelled or the source reports io.EOF,
// both of which return nil. Any other source or detector error stops the
// loop. Sink errors are logged and counted.
func (p *Pipeline[F]) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		frame, ts, err := p.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}
		err = p.process(ctx, frame, ts)
		release(frame)
		if err != nil {
			return err
		}
	}
}

func release[F any](frame F) {
	if c, ok := any(frame).(io.Closer); ok {
		c.Close()
	}
}

// process handles one frame. It is the body of Run, split out for tests.
func (p *Pipeline[F]) process(ctx context.Context, frame F, ts time.Time) error {
	if !p.primed {
		if err := p.detector.Prime(frame); err != nil {
			return fmt.Errorf("failed to prime background: %w", err)
		}
		p.primed = true
		p.publish(ts, tracking.Outcome{}, nil, false)
		return nil
	}

	box, found, err := p.detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("failed to detect motion: %w", err)
	}

	wasSaving := p.tracker.Phase() == tracking.Saving
	ev, out := p.tracker.OnFrame(tracking.Observation{
		Found:     found,
		Box:       box,
		Timestamp: ts,
		Frame:     frame,
	}, p.cfg.ZoneWidth, p.cfg.ZoneHeight)

	p.report(box, out)

	sinkFailed := false
	if ev != nil {
		for _, s := range p.sinks {
			if err := s.HandleSpeedEvent(ctx, ev); err != nil {
				logf("sink %T failed for event %s: %v", s, ev.ID, err)
				sinkFailed = true
			}
		}
		// The frame is released after this call returns.
		ev.Frame = nil
	}
	if out.Kind != tracking.OutcomeNone {
		for _, s := range p.sinks {
			osink, ok := s.(OutcomeSink)
			if !ok {
				continue
			}
			if err := osink.HandleOutcome(ctx, out); err != nil {
				logf("sink %T failed for %s outcome: %v", s, out.Kind, err)
				sinkFailed = true
			}
		}
	}

	switch {
	case wasSaving && !found:
		// The captured vehicle has left the zone.
		p.tracker.Reset()
	case out.Kind == tracking.OutcomeTimeout:
		// Something has been moving in the zone for too long; start over
		// with a fresh background.
		p.primed = false
	}

	p.advanceLoopCount(out)
	p.publish(ts, out, ev, sinkFailed)
	return nil
}

// advanceLoopCount refreshes the background while a capture lingers in the
// zone so a vehicle that stops there fades into the background.
func (p *Pipeline[F]) advanceLoopCount(out tracking.Outcome) {
	if out.Kind == tracking.OutcomeUpdated || out.Kind == tracking.OutcomeCaptured {
		p.loopCount = 0
	}
	if refreshAt[p.loopCount] {
		if r, ok := p.detector.(BackgroundRefresher); ok {
			r.RefreshBackground()
		}
	}
	if p.tracker.Phase() == tracking.Waiting || p.loopCount > loopCountCeiling {
		p.loopCount = 0
	}
	p.loopCount++
}

func (p *Pipeline[F]) report(box tracking.BoundingBox, out tracking.Outcome) {
	switch out.Kind {
	case tracking.OutcomeStarted:
		logf("tracking")
	case tracking.OutcomeUpdated, tracking.OutcomeCaptured:
		if p.cfg.Verbose {
			logf("--> chg=%.0f secs=%.3f speed=%.0f x=%d w=%d h=%d a=%d",
				out.DisplacementPx, out.Elapsed.Seconds(), out.Speed, box.X, box.Width, box.Height, box.Area())
		}
	case tracking.OutcomeLostTrack:
		logf("no car detected")
	case tracking.OutcomeTimeout:
		logf("tracking timed out after %s", out.Elapsed)
	}
	if out.TemporalAnomaly {
		logf("frame timestamp %s did not advance", out.Timestamp.Format(time.RFC3339Nano))
	}
}

func (p *Pipeline[F]) publish(ts time.Time, out tracking.Outcome, ev *tracking.SpeedEvent, sinkFailed bool) {
	state := p.tracker.State()

	p.mu.Lock()
	defer p.mu.Unlock()
	s := &p.status
	s.Phase = state.Phase.String()
	s.Direction = state.Direction.String()
	s.LastSpeed = state.LastSpeed
	s.Frames++
	s.LastFrame = ts
	switch out.Kind {
	case tracking.OutcomeCaptured:
		s.Captures++
	case tracking.OutcomeLostTrack:
		s.LostTracks++
	case tracking.OutcomeTimeout:
		s.Timeouts++
	}
	if out.TemporalAnomaly {
		s.Anomalies++
	}
	if sinkFailed {
		s.SinkErrors++
	}
	if ev != nil {
		t := ev.Timestamp
		s.LastEvent = &t
		s.LastEventSpeed = ev.Speed
	}
}

// Status returns a copy of the current status.
func (p *Pipeline[F]) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	if s.LastEvent != nil {
		t := *s.LastEvent
		s.LastEvent = &t
	}
	return s
}

// LogStatus logs a one-line status every interval until ctx is done.
func (p *Pipeline[F]) LogStatus(ctx context.Context, clock timeutil.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s := p.Status()
			logf("status: %s, %d frames, %d captures, %d lost, %d timeouts",
				s.Phase, s.Frames, s.Captures, s.LostTracks, s.Timeouts)
		}
	}
}
