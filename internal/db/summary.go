package db

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SpeedSummary aggregates the reported speeds of a time window.
type SpeedSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	P98   float64 `json:"p98"`
}

// Summarize computes count, range, mean and the p50/p85/p98 percentiles.
// speeds is not modified. An empty input yields the zero summary.
func Summarize(speeds []float64) SpeedSummary {
	if len(speeds) == 0 {
		return SpeedSummary{}
	}
	sorted := append([]float64(nil), speeds...)
	sort.Float64s(sorted)

	return SpeedSummary{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P85:   stat.Quantile(0.85, stat.Empirical, sorted, nil),
		P98:   stat.Quantile(0.98, stat.Empirical, sorted, nil),
	}
}

// SpeedSummary summarises every event captured at or after since.
func (db *DB) SpeedSummary(ctx context.Context, since time.Time) (SpeedSummary, error) {
	speeds, err := db.SpeedsSince(ctx, since)
	if err != nil {
		return SpeedSummary{}, err
	}
	return Summarize(speeds), nil
}
