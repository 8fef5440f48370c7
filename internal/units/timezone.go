package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database.
// "Local" and the empty string are accepted and mean the host timezone.
func IsTimezoneValid(tz string) bool {
	_, err := ResolveLocation(tz)
	return err == nil
}

// ResolveLocation loads the named location. Snapshot names and on-image
// timestamps are rendered in this zone.
func ResolveLocation(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// ConvertTime converts a time to the specified timezone.
// Database stores all times in UTC, this function converts them for display
func ConvertTime(t time.Time, targetTimezone string) (time.Time, error) {
	loc, err := ResolveLocation(targetTimezone)
	if err != nil {
		return t, err
	}
	return t.In(loc), nil
}
