package report

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/httputil"
)

// FetchSpeeds reads up to limit recent events from a running camera's
// /api/events endpoint and returns the speeds captured at or after since,
// oldest first, with the units they were recorded in.
func FetchSpeeds(ctx context.Context, c httputil.HTTPClient, baseURL string, limit int, since time.Time) ([]float64, string, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/api/events")
	if err != nil {
		return nil, "", fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	q := u.Query()
	q.Set("limit", fmt.Sprint(limit))
	u.RawQuery = q.Encode()

	var events []db.SpeedEvent
	if err := httputil.GetJSON(ctx, c, u.String(), &events); err != nil {
		return nil, "", err
	}

	// The API returns newest first.
	recent := make([]db.SpeedEvent, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].CapturedAt.Before(since) {
			recent = append(recent, events[i])
		}
	}
	return SpeedsOf(recent)
}

// SpeedsOf extracts the reported speeds of events, in order, and the units
// they share. Events recorded in different units cannot share a histogram.
func SpeedsOf(events []db.SpeedEvent) ([]float64, string, error) {
	var (
		speeds []float64
		unit   string
	)
	for _, ev := range events {
		if unit == "" {
			unit = ev.Units
		} else if ev.Units != unit {
			return nil, "", fmt.Errorf("mixed units in event history: %s and %s", unit, ev.Units)
		}
		speeds = append(speeds, ev.Speed)
	}
	return speeds, unit, nil
}
