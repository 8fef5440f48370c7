package units

import (
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"local", "Local", true},
		{"empty means local", "", true},
		{"valid US Eastern", "America/New_York", true},
		{"invalid", "Invalid/Timezone", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := IsTimezoneValid(tt.timezone)
			if res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestConvertTime(t *testing.T) {
	utc := time.Date(2024, time.July, 4, 18, 30, 0, 0, time.UTC)

	got, err := ConvertTime(utc, "UTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(utc) {
		t.Errorf("ConvertTime UTC = %v, want %v", got, utc)
	}

	ny, err := ConvertTime(utc, "America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ny.Hour() != 14 {
		t.Errorf("New York hour = %d, want 14", ny.Hour())
	}

	if _, err := ConvertTime(utc, "Nowhere/Special"); err == nil {
		t.Error("expected error for invalid timezone")
	}
}
