// Command speed-report renders a PNG histogram of captured vehicle speeds,
// either from a local database or from a running camera's HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/banshee-data/speedcam/internal/config"
	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/httputil"
	"github.com/banshee-data/speedcam/internal/report"
	"github.com/banshee-data/speedcam/internal/security"
	"github.com/banshee-data/speedcam/internal/version"
)

var (
	dbPath      = flag.String("db", config.DefaultDBPath, "SQLite database to read")
	server      = flag.String("server", "", "Base URL of a running speedcam (e.g. http://cam.local:8080); overrides -db")
	hours       = flag.Float64("hours", 24*7, "Look-back window in hours")
	limit       = flag.Int("limit", 10000, "Maximum events to fetch from -server")
	binWidth    = flag.Float64("bin", report.DefaultBinWidth, "Histogram bin width")
	title       = flag.String("title", "", "Chart title (defaults to a summary)")
	output      = flag.String("o", "speeds.png", "Output PNG path")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// source selects where speeds come from.
type source struct {
	dbPath string
	server string
	client httputil.HTTPClient
	limit  int
}

// speeds returns the speeds captured since the given time and their units.
func (s source) speeds(ctx context.Context, since time.Time) ([]float64, string, error) {
	if s.server != "" {
		return report.FetchSpeeds(ctx, s.client, s.server, s.limit, since)
	}

	// Opening a missing path would create and migrate an empty database.
	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	store, err := db.NewDB(s.dbPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	events, err := store.SpeedEventsSince(ctx, since)
	if err != nil {
		return nil, "", err
	}
	return report.SpeedsOf(events)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("speed-report"))
		return
	}
	if err := security.ValidateOutputPath(*output); err != nil {
		log.Fatalf("invalid output path: %v", err)
	}

	src := source{
		dbPath: *dbPath,
		server: *server,
		client: &http.Client{Timeout: 30 * time.Second},
		limit:  *limit,
	}
	since := time.Now().Add(-time.Duration(*hours * float64(time.Hour)))

	speeds, u, err := src.speeds(context.Background(), since)
	if err != nil {
		log.Fatal(err)
	}

	r := report.Reporter{BinWidth: *binWidth, Title: *title}
	if err := r.WriteHistogram(speeds, u, *output); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d speeds to %s", len(speeds), *output)
}
