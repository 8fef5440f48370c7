// Package report renders speed distributions: histogram bins shared with
// the HTTP chart, and PNG histograms for offline reports.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/fsutil"
	"github.com/banshee-data/speedcam/internal/units"
)

// DefaultBinWidth groups speeds into 5-unit buckets.
const DefaultBinWidth = 5.0

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no speeds to plot")

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Label formats the bin range, e.g. "25-30".
func (b Bin) Label() string {
	return fmt.Sprintf("%g-%g", b.Lower, b.Upper)
}

// MaxBins bounds the number of buckets Bins returns. Widths too narrow for
// the spread of speeds are doubled until the histogram fits.
const MaxBins = 1000

// Bins buckets speeds into contiguous bins of the given width, from the
// bucket holding the slowest speed to the one holding the fastest. Empty
// input yields no bins. Non-finite speeds are ignored and a non-positive or
// non-finite width means DefaultBinWidth.
func Bins(speeds []float64, width float64) []Bin {
	finite := make([]float64, 0, len(speeds))
	for _, s := range speeds {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			finite = append(finite, s)
		}
	}
	if len(finite) == 0 {
		return nil
	}
	if !(width > 0) || math.IsInf(width, 0) {
		width = DefaultBinWidth
	}
	lo, hi := finite[0], finite[0]
	for _, s := range finite[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	first := math.Floor(lo / width)
	count := math.Floor(hi/width) - first + 1
	// Written so a NaN count (overflowed quotients) also widens.
	for !(count <= MaxBins) {
		width *= 2
		first = math.Floor(lo / width)
		count = math.Floor(hi/width) - first + 1
	}

	bins := make([]Bin, int(count))
	for i := range bins {
		bins[i].Lower = (first + float64(i)) * width
		bins[i].Upper = bins[i].Lower + width
	}
	for _, s := range finite {
		bins[int(math.Floor(s/width)-first)].Count++
	}
	return bins
}

// Reporter writes histogram images.
type Reporter struct {
	FS       fsutil.FileSystem
	BinWidth float64
	Title    string
}

// RenderHistogram draws speeds as a PNG bar chart.
func (r Reporter) RenderHistogram(speeds []float64, unit string) ([]byte, error) {
	if len(speeds) == 0 {
		return nil, ErrNoData
	}
	bins := Bins(speeds, r.BinWidth)
	values := make(plotter.Values, len(bins))
	labels := make([]string, len(bins))
	for i, b := range bins {
		values[i] = float64(b.Count)
		labels[i] = b.Label()
	}

	p := plot.New()
	p.Title.Text = r.Title
	if p.Title.Text == "" {
		sum := db.Summarize(speeds)
		p.Title.Text = fmt.Sprintf("%d vehicles, p50 %.0f / p85 %.0f %s", sum.Count, sum.P50, sum.P85, units.Label(unit))
	}
	p.X.Label.Text = "Speed (" + units.Label(unit) + ")"
	p.Y.Label.Text = "Vehicles"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render histogram: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render histogram: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteHistogram renders speeds and writes the PNG to path.
func (r Reporter) WriteHistogram(speeds []float64, unit, path string) error {
	data, err := r.RenderHistogram(speeds, unit)
	if err != nil {
		return err
	}
	fsys := r.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteHistogram writes a PNG histogram to path on the local filesystem.
func WriteHistogram(speeds []float64, unit, path string) error {
	return Reporter{}.WriteHistogram(speeds, unit, path)
}
