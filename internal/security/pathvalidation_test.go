package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "snapshots")
	outsideDir := filepath.Join(tmpDir, "elsewhere")
	require.NoError(t, os.MkdirAll(safeDir, 0o755))
	require.NoError(t, os.MkdirAll(outsideDir, 0o755))
	require.NoError(t, os.Symlink(outsideDir, filepath.Join(safeDir, "escape")))

	tests := []struct {
		name      string
		filePath  string
		safeDir   string
		wantError bool
	}{
		{"file in directory", filepath.Join(safeDir, "car_at_20260101_120000_going_31.jpg"), safeDir, false},
		{"nested file that does not exist yet", filepath.Join(safeDir, "2026", "01", "car.jpg"), safeDir, false},
		{"the directory itself", safeDir, safeDir, false},
		{"dot dot traversal", filepath.Join(safeDir, "..", "car.jpg"), safeDir, true},
		{"relative escape", "../../../etc/passwd", safeDir, true},
		{"sibling directory", filepath.Join(outsideDir, "car.jpg"), safeDir, true},
		{"through symlink", filepath.Join(safeDir, "escape", "car.jpg"), safeDir, true},
		{"through symlink to missing subdir", filepath.Join(safeDir, "escape", "new", "car.jpg"), safeDir, true},
		{"missing safe directory", filepath.Join(tmpDir, "x.jpg"), filepath.Join(tmpDir, "absent"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, tt.safeDir)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.NoError(t, ValidateOutputPath(filepath.Join(cwd, "speeds.png")))
	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "speeds.png")))
	assert.NoError(t, ValidateOutputPath("speeds.png"))
	assert.Error(t, ValidateOutputPath("/proc/speeds.png"))
}
