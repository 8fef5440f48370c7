// Package calibration converts horizontal pixel displacement into feet using
// the camera's distance to the road and its horizontal field of view.
//
// The road is not a flat plane facing the lens: the near lane edge is closer
// to the camera than the far one, so a pixel spans less ground there. Three
// feet-per-pixel constants are derived, one at the configured distance and one
// each at the near and far lane edges.
package calibration

import (
	"fmt"
	"math"
)

// Default lane edge offsets relative to the configured road-centre distance.
const (
	DefaultNearOffsetFeet = 6.0
	DefaultFarOffsetFeet  = 1.0
)

// Params are the inputs to New.
type Params struct {
	DistanceFeet       float64
	FieldOfViewDegrees float64
	ImageWidthPixels   int
	NearOffsetFeet     float64
	FarOffsetFeet      float64
}

// Calibration is immutable once built.
type Calibration struct {
	Params

	FeetPerPixelCenter float64
	FeetPerPixelNear   float64 // used for left-to-right travel
	FeetPerPixelFar    float64 // used for right-to-left travel
}

// ConfigurationError reports an input that would produce a degenerate
// calibration. It is fatal: the frame loop must not start.
type ConfigurationError struct {
	Field string
	Value float64
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid calibration %s=%g: %s", e.Field, e.Value, e.Msg)
}

// New validates p and derives the feet-per-pixel constants.
func New(p Params) (*Calibration, error) {
	if p.DistanceFeet <= 0 {
		return nil, &ConfigurationError{Field: "distance_feet", Value: p.DistanceFeet, Msg: "must be positive"}
	}
	if p.FieldOfViewDegrees <= 0 || p.FieldOfViewDegrees >= 180 {
		return nil, &ConfigurationError{Field: "field_of_view_degrees", Value: p.FieldOfViewDegrees, Msg: "must be between 0 and 180 exclusive"}
	}
	if p.ImageWidthPixels <= 0 {
		return nil, &ConfigurationError{Field: "image_width", Value: float64(p.ImageWidthPixels), Msg: "must be positive"}
	}
	if p.NearOffsetFeet < 0 || p.FarOffsetFeet < 0 {
		return nil, &ConfigurationError{Field: "lane_offsets", Value: math.Min(p.NearOffsetFeet, p.FarOffsetFeet), Msg: "must not be negative"}
	}
	if p.NearOffsetFeet+p.FarOffsetFeet <= 0 {
		return nil, &ConfigurationError{Field: "lane_offsets", Value: 0, Msg: "near and far offsets must not both be zero"}
	}
	if p.DistanceFeet-p.NearOffsetFeet <= 0 {
		return nil, &ConfigurationError{Field: "distance_feet", Value: p.DistanceFeet, Msg: fmt.Sprintf("must exceed the near lane offset of %g feet", p.NearOffsetFeet)}
	}

	w := float64(p.ImageWidthPixels)
	return &Calibration{
		Params:             p,
		FeetPerPixelCenter: VisibleWidthFeet(p.FieldOfViewDegrees, p.DistanceFeet) / w,
		FeetPerPixelNear:   VisibleWidthFeet(p.FieldOfViewDegrees, p.DistanceFeet-p.NearOffsetFeet) / w,
		FeetPerPixelFar:    VisibleWidthFeet(p.FieldOfViewDegrees, p.DistanceFeet+p.FarOffsetFeet) / w,
	}, nil
}

// VisibleWidthFeet is the width of road visible across the whole frame at the
// given distance: 2·tan(fov/2)·d.
func VisibleWidthFeet(fovDegrees, distanceFeet float64) float64 {
	return 2 * math.Tan(fovDegrees*math.Pi/360) * distanceFeet
}

// NearWidthFeet is the visible frame width at the near lane edge.
func (c *Calibration) NearWidthFeet() float64 {
	return c.FeetPerPixelNear * float64(c.ImageWidthPixels)
}

// FarWidthFeet is the visible frame width at the far lane edge.
func (c *Calibration) FarWidthFeet() float64 {
	return c.FeetPerPixelFar * float64(c.ImageWidthPixels)
}

func (c *Calibration) String() string {
	return fmt.Sprintf("distance=%gft fov=%g° width=%dpx ft/px center=%.4f near=%.4f far=%.4f",
		c.DistanceFeet, c.FieldOfViewDegrees, c.ImageWidthPixels,
		c.FeetPerPixelCenter, c.FeetPerPixelNear, c.FeetPerPixelFar)
}
