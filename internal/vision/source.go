// Package vision adapts OpenCV (through gocv) to the pipeline: a camera or
// video file frame source, the largest-motion detector and the snapshot
// annotator.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/speedcam/internal/timeutil"
)

// Frame is one captured image. The pipeline closes it once processed.
type Frame struct {
	Mat gocv.Mat
}

// Close releases the underlying OpenCV matrix.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// SourceConfig describes where frames come from.
type SourceConfig struct {
	Device int    // camera index, used when Path is empty
	Path   string // video file or stream URL
	Width  int
	Height int
	FPS    int
}

// Source reads frames from a gocv.VideoCapture. Camera frames are stamped
// with the clock; file frames are stamped from the frame rate so replayed
// video measures the same speeds as it did live.
type Source struct {
	capture *gocv.VideoCapture
	clock   timeutil.Clock
	size    image.Point
	isFile  bool
	start   time.Time
	step    time.Duration
	n       int64
}

// OpenSource opens the camera or file named by cfg.
func OpenSource(cfg SourceConfig, clock timeutil.Clock) (*Source, error) {
	var (
		capture *gocv.VideoCapture
		err     error
	)
	if cfg.Path != "" {
		capture, err = gocv.VideoCaptureFile(cfg.Path)
	} else {
		capture, err = gocv.VideoCaptureDevice(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open video source: %w", err)
	}

	s := &Source{
		capture: capture,
		clock:   clock,
		size:    image.Pt(cfg.Width, cfg.Height),
		isFile:  cfg.Path != "",
		start:   clock.Now(),
	}
	if s.isFile {
		fps := capture.Get(gocv.VideoCaptureFPS)
		if fps <= 0 {
			fps = float64(cfg.FPS)
		}
		if fps > 0 {
			s.step = time.Duration(float64(time.Second) / fps)
		}
	} else {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		if cfg.FPS > 0 {
			capture.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
		}
		capture.Set(gocv.VideoCaptureBufferSize, 1)
	}
	return s, nil
}

// Next reads the next frame, resized to the configured frame size. Files
// end with io.EOF; a camera that stops delivering frames is an error.
func (s *Source) Next(ctx context.Context) (*Frame, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if s.isFile {
			return nil, time.Time{}, io.EOF
		}
		return nil, time.Time{}, errors.New("camera returned no frame")
	}

	var ts time.Time
	if s.isFile && s.step > 0 {
		ts = s.start.Add(time.Duration(s.n) * s.step)
	} else {
		ts = s.clock.Now()
	}
	s.n++

	if s.size.X > 0 && s.size.Y > 0 && (mat.Cols() != s.size.X || mat.Rows() != s.size.Y) {
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, s.size, 0, 0, gocv.InterpolationLinear)
		mat.Close()
		mat = resized
	}
	return &Frame{Mat: mat}, ts, nil
}

// Close releases the capture device.
func (s *Source) Close() error {
	return s.capture.Close()
}
