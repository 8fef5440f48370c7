package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/httputil"
	"github.com/banshee-data/speedcam/internal/report"
	"github.com/banshee-data/speedcam/internal/units"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 10000
	defaultStatsHours = 24.0
	maxStatsHours     = 10 * 365 * 24
)

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultEventLimit, 1, maxEventLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	events, err := s.store.RecentSpeedEvents(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load events: %v", err))
		return
	}
	httputil.WriteJSONOK(w, events)
}

// Stats is the /api/stats response.
type Stats struct {
	Units    string          `json:"units"`
	Since    time.Time       `json:"since"`
	Summary  db.SpeedSummary `json:"summary"`
	Outcomes map[string]int  `json:"outcomes"`
}

// window reads the ?hours= look-back and returns its start.
func (s *Server) window(r *http.Request) (time.Time, error) {
	hours, err := httputil.QueryFloat(r, "hours", defaultStatsHours)
	if err != nil {
		return time.Time{}, err
	}
	if hours > maxStatsHours {
		return time.Time{}, &httputil.QueryError{
			Name:  "hours",
			Value: r.URL.Query().Get("hours"),
			Msg:   fmt.Sprintf("must be at most %d", maxStatsHours),
		}
	}
	return s.clock.Now().Add(-time.Duration(hours * float64(time.Hour))), nil
}

// local renders t in the configured timezone, falling back to UTC.
func (s *Server) local(t time.Time) time.Time {
	lt, err := units.ConvertTime(t, s.cfg.GetTimezone())
	if err != nil {
		return t.UTC()
	}
	return lt
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	since, err := s.window(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	summary, err := s.store.SpeedSummary(r.Context(), since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to summarise speeds: %v", err))
		return
	}
	outcomes, err := s.store.OutcomeCounts(r.Context(), since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to count outcomes: %v", err))
		return
	}
	httputil.WriteJSONOK(w, Stats{
		Units:    s.cfg.GetUnits(),
		Since:    s.local(since),
		Summary:  summary,
		Outcomes: outcomes,
	})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.status == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no camera pipeline is running")
		return
	}
	httputil.WriteJSONOK(w, s.status.Status())
}

// EffectiveConfig is the resolved configuration, defaults applied.
type EffectiveConfig struct {
	DistanceFeet       float64 `json:"distance_feet"`
	FieldOfViewDegrees float64 `json:"field_of_view_degrees"`
	NearOffsetFeet     float64 `json:"near_offset_feet"`
	FarOffsetFeet      float64 `json:"far_offset_feet"`
	ImageWidth         int     `json:"image_width"`
	ImageHeight        int     `json:"image_height"`
	FPS                int     `json:"fps"`
	DetectionBox       []int   `json:"detection_box"`
	MinWidth           int     `json:"min_width"`
	MinHeight          int     `json:"min_height"`
	Threshold          int     `json:"threshold"`
	BlurSize           int     `json:"blur_size"`
	Units              string  `json:"units"`
	SpeedFactor        float64 `json:"speed_factor"`
	TrackingTimeout    string  `json:"tracking_timeout"`
	CaptureMarginPx    int     `json:"capture_margin_px"`
	Timezone           string  `json:"timezone"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	c := s.cfg
	httputil.WriteJSONOK(w, EffectiveConfig{
		DistanceFeet:       c.GetDistanceFeet(),
		FieldOfViewDegrees: c.GetFieldOfViewDegrees(),
		NearOffsetFeet:     c.GetNearOffsetFeet(),
		FarOffsetFeet:      c.GetFarOffsetFeet(),
		ImageWidth:         c.GetImageWidth(),
		ImageHeight:        c.GetImageHeight(),
		FPS:                c.GetFPS(),
		DetectionBox:       c.DetectionBox,
		MinWidth:           c.GetMinWidth(),
		MinHeight:          c.GetMinHeight(),
		Threshold:          c.GetThreshold(),
		BlurSize:           c.GetBlurSize(),
		Units:              c.GetUnits(),
		SpeedFactor:        c.GetSpeedFactor(),
		TrackingTimeout:    c.GetTrackingTimeout().String(),
		CaptureMarginPx:    c.GetCaptureMarginPx(),
		Timezone:           c.GetTimezone(),
	})
}

// speedChart renders an HTML bar chart of the speed distribution.
func (s *Server) speedChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	since, err := s.window(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	binWidth, err := httputil.QueryFloat(r, "bin", report.DefaultBinWidth)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	speeds, err := s.store.SpeedsSince(r.Context(), since)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load speeds: %v", err))
		return
	}

	bins := report.Bins(speeds, binWidth)
	labels := make([]string, len(bins))
	data := make([]opts.BarData, len(bins))
	for i, b := range bins {
		labels[i] = b.Label()
		data[i] = opts.BarData{Value: b.Count}
	}

	unit := units.Label(s.cfg.GetUnits())
	sum := db.Summarize(speeds)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicle speeds", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Vehicle speeds",
			Subtitle: fmt.Sprintf("%d vehicles since %s, p50 %.0f p85 %.0f p98 %.0f %s", sum.Count, s.local(since).Format(time.RFC3339), sum.P50, sum.P85, sum.P98, unit),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: unit, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "vehicles"}),
	)
	bar.SetXAxis(labels).AddSeries("vehicles", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

