// Package tracking owns the single-object speed tracking state machine.
//
// One Observation is fed per captured frame, in capture order. The tracker
// moves WAITING → TRACKING when motion appears, measures the leading edge
// displacement on every frame, and emits a SpeedEvent when that edge reaches
// the far side of the monitored zone (SAVING). Lost motion and episodes older
// than the timeout fall back to WAITING without an event.
//
// Timestamps come from the caller; nothing here reads the wall clock, so a
// replayed observation sequence always yields the same events.
//
// No image, SQL or display code is allowed in this package.
package tracking
