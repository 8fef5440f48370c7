package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/speedcam/internal/api"
	"github.com/banshee-data/speedcam/internal/config"
	"github.com/banshee-data/speedcam/internal/db"
	"github.com/banshee-data/speedcam/internal/monitoring"
	"github.com/banshee-data/speedcam/internal/pipeline"
	"github.com/banshee-data/speedcam/internal/snapshot"
	"github.com/banshee-data/speedcam/internal/timeutil"
	"github.com/banshee-data/speedcam/internal/tracking"
	"github.com/banshee-data/speedcam/internal/units"
	"github.com/banshee-data/speedcam/internal/version"
	"github.com/banshee-data/speedcam/internal/vision"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON or YAML config file (defaults apply when empty)")
	box         = flag.String("b", "", "Detection box as \"x1 y1 x2 y2\" in frame pixels")
	minWidth    = flag.Int("w", config.DefaultMinWidth, "Minimum motion width in pixels")
	minHeight   = flag.Int("minheight", config.DefaultMinHeight, "Minimum motion height in pixels")
	width       = flag.Int("width", config.DefaultImageWidth, "Frame width in pixels")
	height      = flag.Int("height", config.DefaultImageHeight, "Frame height in pixels")
	distance    = flag.Float64("d", config.DefaultDistanceFeet, "Distance from the camera to the road in feet")
	threshold   = flag.Int("t", config.DefaultThreshold, "Pixel difference counted as motion")
	blur        = flag.Int("blur", config.DefaultBlurSize, "Gaussian blur kernel size (odd)")
	fps         = flag.Int("fps", config.DefaultFPS, "Camera frame rate")
	unit        = flag.String("units", config.DefaultUnits, "Speed units: "+units.GetValidUnitsString())
	fov         = flag.Float64("fov", config.DefaultFieldOfViewDegrees, "Horizontal field of view in degrees")
	snapshotDir = flag.String("snapshots", config.DefaultSnapshotDir, "Directory for capture snapshots")
	dbPath      = flag.String("db", config.DefaultDBPath, "SQLite database path")
	listen      = flag.String("listen", config.DefaultListen, "HTTP listen address (empty disables the API)")
	camera      = flag.Int("camera", 0, "Camera device index")
	source      = flag.String("source", "", "Video file or stream to read instead of the camera")
	showBounds  = flag.Bool("show-bounds", false, "Draw the detection box edges on snapshots")
	verbose     = flag.Bool("verbose", false, "Log every tracking sample")
	statusEvery = flag.Duration("status-interval", time.Minute, "How often to log pipeline status (0 disables)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// parseBox reads "x1 y1 x2 y2", accepting commas as separators.
func parseBox(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) != 4 {
		return nil, fmt.Errorf("detection box %q must have 4 values, got %d", s, len(fields))
	}
	out := make([]int, 4)
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("detection box value %q is not an integer", f)
		}
		out[i] = v
	}
	return out, nil
}

// applyFlags overrides cfg with every flag given on the command line.
// Flags left at their defaults do not mask values from the config file.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "b":
			cfg.DetectionBox, err = parseBox(*box)
		case "w":
			cfg.MinWidth = minWidth
		case "minheight":
			cfg.MinHeight = minHeight
		case "width":
			cfg.ImageWidth = width
		case "height":
			cfg.ImageHeight = height
		case "d":
			cfg.DistanceFeet = distance
		case "t":
			cfg.Threshold = threshold
		case "blur":
			cfg.BlurSize = blur
		case "fps":
			cfg.FPS = fps
		case "units":
			cfg.Units = unit
		case "fov":
			cfg.FieldOfViewDegrees = fov
		case "snapshots":
			cfg.SnapshotDir = snapshotDir
		case "db":
			cfg.DBPath = dbPath
		case "listen":
			cfg.Listen = listen
		case "camera":
			cfg.CameraDevice = camera
		case "source":
			cfg.Source = source
		}
	})
	return err
}

// loadConfig merges the config file (or the defaults) with the flags and
// validates the result.
func loadConfig(fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return nil, err
		}
	}
	if err := applyFlags(fs, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Zone().Empty() {
		return nil, errors.New("a detection box is required: pass -b \"x1 y1 x2 y2\" or set detection_box")
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("speedcam"))
		return
	}

	cfg, err := loadConfig(flag.CommandLine)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	log.Print("speedcam stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logf := monitoring.Component("speedcam")
	logf("%s", version.String("speedcam"))

	cal, err := cfg.Calibration()
	if err != nil {
		return err
	}
	logf("%s", cal)

	tracker, err := tracking.NewTracker(tracking.TrackerConfig{
		Calibration:     cal,
		SpeedFactor:     cfg.GetSpeedFactor(),
		Units:           cfg.GetUnits(),
		Timeout:         cfg.GetTrackingTimeout(),
		CaptureMarginPx: cfg.GetCaptureMarginPx(),
	})
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	zone := cfg.Zone()
	detector, err := vision.NewMotionDetector(vision.DetectorConfig{
		Zone:      zone,
		BlurSize:  cfg.GetBlurSize(),
		Threshold: cfg.GetThreshold(),
		MinWidth:  cfg.GetMinWidth(),
		MinHeight: cfg.GetMinHeight(),
	})
	if err != nil {
		return fmt.Errorf("failed to create motion detector: %w", err)
	}
	defer detector.Close()

	clock := timeutil.RealClock{}
	src, err := vision.OpenSource(vision.SourceConfig{
		Device: cfg.GetCameraDevice(),
		Path:   cfg.GetSource(),
		Width:  cfg.GetImageWidth(),
		Height: cfg.GetImageHeight(),
		FPS:    cfg.GetFPS(),
	}, clock)
	if err != nil {
		return err
	}
	defer src.Close()

	loc, err := units.ResolveLocation(cfg.GetTimezone())
	if err != nil {
		return err
	}
	snaps, err := snapshot.NewStore(cfg.GetSnapshotDir(),
		vision.Annotator{Zone: zone, ShowBounds: *showBounds},
		snapshot.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot directory: %w", err)
	}

	events, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer events.Close()

	// The snapshot store runs first so the stored row carries its path.
	p, err := pipeline.New[*vision.Frame](pipeline.Config{
		ZoneWidth:  zone.Dx(),
		ZoneHeight: zone.Dy(),
		Verbose:    *verbose,
	}, src, detector, tracker, snaps, events)
	if err != nil {
		return err
	}

	var handler http.Handler
	addr := cfg.GetListen()
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", api.NewServer(events, p, cfg, clock).ServeMux())
		if err := events.AttachAdminRoutes(mux); err != nil {
			return fmt.Errorf("failed to attach admin routes: %w", err)
		}
		handler = api.LoggingMiddleware(mux)
	}

	// A finished video file ends the pipeline without an error; cancel so
	// the server and status logger stop with it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := p.Run(ctx)
		logf("pipeline stopped")
		return err
	})

	if *statusEvery > 0 {
		g.Go(func() error {
			p.LogStatus(ctx, clock, *statusEvery)
			return nil
		})
	}

	if handler != nil {
		g.Go(func() error {
			return api.ListenAndServe(ctx, addr, handler)
		})
	}

	return g.Wait()
}
