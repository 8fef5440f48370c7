package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedFPS float64
		units    string
		expected float64
	}{
		{"88 ft/s to mph", 88.0, MPH, 59.99998},
		{"10 ft/s to kph", 10.0, KPH, 10.9728},
		{"10 ft/s to kmph", 10.0, KMPH, 10.9728},
		{"10 ft/s to mps", 10.0, MPS, 3.048},
		{"10 ft/s to fps", 10.0, FPS, 10.0},
		{"unknown units default to fps", 10.0, "unknown", 10.0},
		{"0 ft/s to mph", 0.0, MPH, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedFPS, tt.units)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedFPS, tt.units, result, tt.expected)
			}
		})
	}
}

func TestFactorFromFeetPerSecond(t *testing.T) {
	f, err := FactorFromFeetPerSecond(MPH)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f != 0.681818 {
		t.Errorf("mph factor = %v, want 0.681818", f)
	}

	if _, err := FactorFromFeetPerSecond("furlongs"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"valid fps", FPS, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MPH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	for unit, want := range map[string]string{
		MPH:  "mph",
		KPH:  "km/h",
		KMPH: "km/h",
		MPS:  "m/s",
		FPS:  "ft/s",
	} {
		if got := Label(unit); got != want {
			t.Errorf("Label(%q) = %q, want %q", unit, got, want)
		}
	}
}
