package tracking

import (
	"math"
	"testing"
)

func TestSpeed(t *testing.T) {
	tests := []struct {
		name    string
		px      float64
		ftPerPx float64
		secs    float64
		factor  float64
		want    float64
	}{
		{"mph example", 70, 0.1, 1, 0.681818, 4.772726},
		{"fps passthrough", 50, 0.2, 2, 1, 5},
		{"zero elapsed", 70, 0.1, 0, 0.681818, 0},
		{"negative elapsed", 70, 0.1, -0.5, 0.681818, 0},
		{"no displacement", 0, 0.1, 1, 0.681818, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Speed(tt.px, tt.ftPerPx, tt.secs, tt.factor)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Speed(%v, %v, %v, %v) = %v, want %v", tt.px, tt.ftPerPx, tt.secs, tt.factor, got, tt.want)
			}
		})
	}
}

func TestShouldCapture(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		dir  Direction
		want bool
	}{
		{"ltr touching right edge", BoundingBox{X: 280, Width: 20}, LeftToRight, true},
		{"ltr within margin", BoundingBox{X: 270, Width: 28}, LeftToRight, true},
		{"ltr one short of margin", BoundingBox{X: 270, Width: 27}, LeftToRight, false},
		{"rtl at margin", BoundingBox{X: 2, Width: 40}, RightToLeft, true},
		{"rtl at zero", BoundingBox{X: 0, Width: 40}, RightToLeft, true},
		{"rtl just outside margin", BoundingBox{X: 3, Width: 40}, RightToLeft, false},
		{"rtl box at right edge does not count", BoundingBox{X: 280, Width: 20}, RightToLeft, false},
		{"ltr box at left edge does not count", BoundingBox{X: 0, Width: 20}, LeftToRight, false},
		{"unknown direction never captures", BoundingBox{X: 0, Width: 300}, Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldCapture(tt.box, tt.dir, 300, 2); got != tt.want {
				t.Errorf("ShouldCapture(%+v, %v) = %v, want %v", tt.box, tt.dir, got, tt.want)
			}
		})
	}
}
