package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/speedcam/internal/config"
)

// parseArgs parses args into the real command-line flag variables through a
// fresh FlagSet, so each test sees only its own flags as set. The globals are
// restored afterwards.
func parseArgs(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("speedcam", flag.ContinueOnError)
	flag.CommandLine.VisitAll(func(f *flag.Flag) {
		if !strings.HasPrefix(f.Name, "test.") {
			fs.Var(f.Value, f.Name, f.Usage)
		}
	})
	t.Cleanup(func() {
		fs.VisitAll(func(f *flag.Flag) {
			_ = f.Value.Set(f.DefValue)
		})
	})
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestParseBox(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "10 20 300 200", want: []int{10, 20, 300, 200}},
		{in: "10,20,300,200", want: []int{10, 20, 300, 200}},
		{in: " 300 200  10 20 ", want: []int{300, 200, 10, 20}},
		{in: "10 20 300", wantErr: true},
		{in: "10 20 300 x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBox(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, config.DefaultMinWidth, *minWidth)
	assert.Equal(t, config.DefaultThreshold, *threshold)
	assert.Equal(t, config.DefaultDistanceFeet, *distance)
	assert.Equal(t, config.DefaultUnits, *unit)
	assert.Equal(t, config.DefaultListen, *listen)
	assert.Equal(t, "", *configFile)
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	fs := parseArgs(t, "-b", "100 50 400 250", "-d", "40", "-units", "kph", "-t", "20", "-listen", "")

	cfg, err := loadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 50, 400, 250}, cfg.DetectionBox)
	assert.Equal(t, 40.0, cfg.GetDistanceFeet())
	assert.Equal(t, "kph", cfg.GetUnits())
	assert.Equal(t, 20, cfg.GetThreshold())
	assert.Equal(t, "", cfg.GetListen())
	assert.Equal(t, config.DefaultBlurSize, cfg.GetBlurSize())
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speedcam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
distance_feet: 50
threshold: 25
detection_box: [0, 0, 320, 200]
`), 0o644))

	fs := parseArgs(t, "-config", path, "-t", "30")

	cfg, err := loadConfig(fs)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.GetDistanceFeet(), "file value survives when the flag is not given")
	assert.Equal(t, 30, cfg.GetThreshold(), "flag wins over the file")
	assert.Equal(t, []int{0, 0, 320, 200}, cfg.DetectionBox)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"missing box", nil, "detection box is required"},
		{"malformed box", []string{"-b", "1 2 3"}, "must have 4 values"},
		{"box outside frame", []string{"-b", "0 0 800 100"}, "outside"},
		{"even blur", []string{"-b", "0 0 100 100", "-blur", "14"}, "blur_size must be odd"},
		{"bad units", []string{"-b", "0 0 100 100", "-units", "furlongs"}, "Units"},
		{"missing config file", []string{"-config", "/nonexistent/speedcam.json"}, "failed to stat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := parseArgs(t, tt.args...)
			_, err := loadConfig(fs)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
