// Package api serves the camera's recent captures, speed statistics, live
// tracker status and a speed histogram chart over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/speedcam/internal/config"
	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/pipeline"
	"github.com/banshee-data/speedcam/internal/timeutil"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EventStore is the read side of the event database.
type EventStore interface {
	RecentSpeedEvents(ctx context.Context, limit int) ([]db.SpeedEvent, error)
	SpeedSummary(ctx context.Context, since time.Time) (db.SpeedSummary, error)
	SpeedsSince(ctx context.Context, since time.Time) ([]float64, error)
	OutcomeCounts(ctx context.Context, since time.Time) (map[string]int, error)
}

// StatusProvider reports the live pipeline state.
type StatusProvider interface {
	Status() pipeline.Status
}

type Server struct {
	store  EventStore
	status StatusProvider
	cfg    *config.Config
	clock  timeutil.Clock
}

// NewServer builds the API. status may be nil when no pipeline is running,
// e.g. when serving a database offline.
func NewServer(store EventStore, status StatusProvider, cfg *config.Config, clock timeutil.Clock) *Server {
	if cfg == nil {
		cfg = config.Empty()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{store: store, status: status, cfg: cfg, clock: clock}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux registers the API routes on a new mux. Callers add the admin
// routes and wrap it in LoggingMiddleware.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.listEvents)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/charts/speeds", s.speedChart)
	return mux
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("HTTP server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
