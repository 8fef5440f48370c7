package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/speedcam/internal/calibration"
	"github.com/banshee-data/speedcam/internal/units"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/speedcam.defaults.json"

// Defaults match the command-line flag defaults.
const (
	DefaultDistanceFeet       = 33.0
	DefaultFieldOfViewDegrees = 53.5
	DefaultImageWidth         = 640
	DefaultImageHeight        = 480
	DefaultFPS                = 30
	DefaultMinWidth           = 100
	DefaultMinHeight          = 100
	DefaultThreshold          = 15
	DefaultBlurSize           = 15
	DefaultUnits              = units.MPH
	DefaultTrackingTimeout    = 15 * time.Second
	DefaultCaptureMarginPx    = 2
	DefaultSnapshotDir        = "."
	DefaultDBPath             = "speedcam.db"
	DefaultListen             = ":8080"
)

// Config is the root configuration of the speed camera. Every field is
// optional; the Get* methods supply defaults for anything left unset, so
// partial files and flag-only setups are safe.
type Config struct {
	// Calibration
	DistanceFeet       *float64 `json:"distance_feet,omitempty" yaml:"distance_feet,omitempty" validate:"omitempty,gt=0"`
	FieldOfViewDegrees *float64 `json:"field_of_view_degrees,omitempty" yaml:"field_of_view_degrees,omitempty" validate:"omitempty,gt=0,lt=180"`
	NearOffsetFeet     *float64 `json:"near_offset_feet,omitempty" yaml:"near_offset_feet,omitempty" validate:"omitempty,gte=0"`
	FarOffsetFeet      *float64 `json:"far_offset_feet,omitempty" yaml:"far_offset_feet,omitempty" validate:"omitempty,gte=0"`

	// Camera
	ImageWidth   *int    `json:"image_width,omitempty" yaml:"image_width,omitempty" validate:"omitempty,gt=0"`
	ImageHeight  *int    `json:"image_height,omitempty" yaml:"image_height,omitempty" validate:"omitempty,gt=0"`
	FPS          *int    `json:"fps,omitempty" yaml:"fps,omitempty" validate:"omitempty,gt=0,lte=240"`
	CameraDevice *int    `json:"camera_device,omitempty" yaml:"camera_device,omitempty" validate:"omitempty,gte=0"`
	Source       *string `json:"source,omitempty" yaml:"source,omitempty"` // video file or stream URL; overrides camera_device

	// Monitored zone: upper-left and lower-right corners "x y a b", drawn
	// from any corner.
	DetectionBox []int `json:"detection_box,omitempty" yaml:"detection_box,omitempty" validate:"omitempty,len=4,dive,gte=0"`

	// Motion detector
	MinWidth  *int `json:"min_width,omitempty" yaml:"min_width,omitempty" validate:"omitempty,gte=0"`
	MinHeight *int `json:"min_height,omitempty" yaml:"min_height,omitempty" validate:"omitempty,gte=0"`
	Threshold *int `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"omitempty,gte=0,lte=255"`
	BlurSize  *int `json:"blur_size,omitempty" yaml:"blur_size,omitempty" validate:"omitempty,gt=0"`

	// Tracking
	Units           *string  `json:"units,omitempty" yaml:"units,omitempty" validate:"omitempty,oneof=mph kph kmph mps fps"`
	SpeedFactor     *float64 `json:"speed_factor,omitempty" yaml:"speed_factor,omitempty" validate:"omitempty,gt=0"`
	TrackingTimeout *string  `json:"tracking_timeout,omitempty" yaml:"tracking_timeout,omitempty"` // duration string like "15s"
	CaptureMarginPx *int     `json:"capture_margin_px,omitempty" yaml:"capture_margin_px,omitempty" validate:"omitempty,gte=1"`

	// Output
	Timezone    *string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	SnapshotDir *string `json:"snapshot_dir,omitempty" yaml:"snapshot_dir,omitempty"`
	DBPath      *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Listen      *string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

var validate = validator.New()

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with all fields set to nil.
func Empty() *Config {
	return &Config{}
}

// Default returns a Config with every field set to its default value,
// except the detection box, which has no sensible default.
func Default() *Config {
	return &Config{
		DistanceFeet:       ptrFloat64(DefaultDistanceFeet),
		FieldOfViewDegrees: ptrFloat64(DefaultFieldOfViewDegrees),
		NearOffsetFeet:     ptrFloat64(calibration.DefaultNearOffsetFeet),
		FarOffsetFeet:      ptrFloat64(calibration.DefaultFarOffsetFeet),
		ImageWidth:         ptrInt(DefaultImageWidth),
		ImageHeight:        ptrInt(DefaultImageHeight),
		FPS:                ptrInt(DefaultFPS),
		CameraDevice:       ptrInt(0),
		MinWidth:           ptrInt(DefaultMinWidth),
		MinHeight:          ptrInt(DefaultMinHeight),
		Threshold:          ptrInt(DefaultThreshold),
		BlurSize:           ptrInt(DefaultBlurSize),
		Units:              ptrString(DefaultUnits),
		TrackingTimeout:    ptrString(DefaultTrackingTimeout.String()),
		CaptureMarginPx:    ptrInt(DefaultCaptureMarginPx),
		Timezone:           ptrString("Local"),
		SnapshotDir:        ptrString(DefaultSnapshotDir),
		DBPath:             ptrString(DefaultDBPath),
		Listen:             ptrString(DefaultListen),
	}
}

// Load reads a Config from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges and the cross-field rules the struct tags
// cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if c.TrackingTimeout != nil && *c.TrackingTimeout != "" {
		d, err := time.ParseDuration(*c.TrackingTimeout)
		if err != nil {
			return fmt.Errorf("invalid tracking_timeout '%s': %w", *c.TrackingTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("tracking_timeout must be positive, got %s", d)
		}
	}

	if c.BlurSize != nil && *c.BlurSize%2 == 0 {
		return fmt.Errorf("blur_size must be odd, got %d", *c.BlurSize)
	}

	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone %q", *c.Timezone)
	}

	if c.DistanceFeet != nil && c.NearOffsetFeet != nil && *c.DistanceFeet <= *c.NearOffsetFeet {
		return fmt.Errorf("distance_feet (%g) must exceed near_offset_feet (%g)", *c.DistanceFeet, *c.NearOffsetFeet)
	}

	if c.GetNearOffsetFeet()+c.GetFarOffsetFeet() <= 0 {
		return errors.New("near_offset_feet and far_offset_feet must not both be zero")
	}

	if len(c.DetectionBox) == 4 {
		zone := c.Zone()
		if zone.Empty() {
			return fmt.Errorf("detection_box %v has zero width or height", c.DetectionBox)
		}
		frame := image.Rect(0, 0, c.GetImageWidth(), c.GetImageHeight())
		if !zone.In(frame) {
			return fmt.Errorf("detection_box %v lies outside the %dx%d frame", c.DetectionBox, frame.Dx(), frame.Dy())
		}
	}

	return nil
}

// Zone returns the monitored area in frame coordinates, normalised so that
// Min is the upper-left corner regardless of which corner was given first.
// It is empty when no detection box is configured.
func (c *Config) Zone() image.Rectangle {
	if len(c.DetectionBox) != 4 {
		return image.Rectangle{}
	}
	b := c.DetectionBox
	return image.Rect(b[0], b[1], b[2], b[3])
}

// Calibration builds the feet-per-pixel calibration from this config.
func (c *Config) Calibration() (*calibration.Calibration, error) {
	return calibration.New(calibration.Params{
		DistanceFeet:       c.GetDistanceFeet(),
		FieldOfViewDegrees: c.GetFieldOfViewDegrees(),
		ImageWidthPixels:   c.GetImageWidth(),
		NearOffsetFeet:     c.GetNearOffsetFeet(),
		FarOffsetFeet:      c.GetFarOffsetFeet(),
	})
}

// GetDistanceFeet returns the distance_feet value or the default.
func (c *Config) GetDistanceFeet() float64 {
	if c.DistanceFeet == nil {
		return DefaultDistanceFeet
	}
	return *c.DistanceFeet
}

// GetFieldOfViewDegrees returns the field_of_view_degrees value or the default.
func (c *Config) GetFieldOfViewDegrees() float64 {
	if c.FieldOfViewDegrees == nil {
		return DefaultFieldOfViewDegrees
	}
	return *c.FieldOfViewDegrees
}

// GetNearOffsetFeet returns the near_offset_feet value or the default.
func (c *Config) GetNearOffsetFeet() float64 {
	if c.NearOffsetFeet == nil {
		return calibration.DefaultNearOffsetFeet
	}
	return *c.NearOffsetFeet
}

// GetFarOffsetFeet returns the far_offset_feet value or the default.
func (c *Config) GetFarOffsetFeet() float64 {
	if c.FarOffsetFeet == nil {
		return calibration.DefaultFarOffsetFeet
	}
	return *c.FarOffsetFeet
}

// GetImageWidth returns the image_width value or the default.
func (c *Config) GetImageWidth() int {
	if c.ImageWidth == nil {
		return DefaultImageWidth
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image_height value or the default.
func (c *Config) GetImageHeight() int {
	if c.ImageHeight == nil {
		return DefaultImageHeight
	}
	return *c.ImageHeight
}

// GetFPS returns the fps value or the default.
func (c *Config) GetFPS() int {
	if c.FPS == nil {
		return DefaultFPS
	}
	return *c.FPS
}

// GetCameraDevice returns the camera_device value or the default.
func (c *Config) GetCameraDevice() int {
	if c.CameraDevice == nil {
		return 0
	}
	return *c.CameraDevice
}

// GetSource returns the source value, empty when the camera device is used.
func (c *Config) GetSource() string {
	if c.Source == nil {
		return ""
	}
	return *c.Source
}

// GetMinWidth returns the min_width value or the default.
func (c *Config) GetMinWidth() int {
	if c.MinWidth == nil {
		return DefaultMinWidth
	}
	return *c.MinWidth
}

// GetMinHeight returns the min_height value or the default.
func (c *Config) GetMinHeight() int {
	if c.MinHeight == nil {
		return DefaultMinHeight
	}
	return *c.MinHeight
}

// GetThreshold returns the threshold value or the default.
func (c *Config) GetThreshold() int {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// GetBlurSize returns the blur_size value or the default.
func (c *Config) GetBlurSize() int {
	if c.BlurSize == nil {
		return DefaultBlurSize
	}
	return *c.BlurSize
}

// GetUnits returns the units value or the default.
func (c *Config) GetUnits() string {
	if c.Units == nil || *c.Units == "" {
		return DefaultUnits
	}
	return *c.Units
}

// GetSpeedFactor returns the explicit speed_factor, or the conversion
// factor for the configured units.
func (c *Config) GetSpeedFactor() float64 {
	if c.SpeedFactor != nil {
		return *c.SpeedFactor
	}
	f, err := units.FactorFromFeetPerSecond(c.GetUnits())
	if err != nil {
		return units.FeetPerSecondToMPH
	}
	return f
}

// GetTrackingTimeout parses and returns the TrackingTimeout as a time.Duration.
func (c *Config) GetTrackingTimeout() time.Duration {
	if c.TrackingTimeout == nil || *c.TrackingTimeout == "" {
		return DefaultTrackingTimeout
	}
	d, err := time.ParseDuration(*c.TrackingTimeout)
	if err != nil || d <= 0 {
		return DefaultTrackingTimeout
	}
	return d
}

// GetCaptureMarginPx returns the capture_margin_px value or the default.
func (c *Config) GetCaptureMarginPx() int {
	if c.CaptureMarginPx == nil {
		return DefaultCaptureMarginPx
	}
	return *c.CaptureMarginPx
}

// GetTimezone returns the timezone value or "Local".
func (c *Config) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "Local"
	}
	return *c.Timezone
}

// GetSnapshotDir returns the snapshot_dir value or the default.
func (c *Config) GetSnapshotDir() string {
	if c.SnapshotDir == nil || *c.SnapshotDir == "" {
		return DefaultSnapshotDir
	}
	return *c.SnapshotDir
}

// GetDBPath returns the db_path value or the default.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetListen returns the listen address. An explicit empty string disables
// the HTTP server.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return DefaultListen
	}
	return *c.Listen
}
