package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/speedcam/internal/tracking"
)

// RefreshWeight is how strongly a refresh pulls the background toward the
// latest frame.
const RefreshWeight = 0.25

// DetectorConfig tunes the motion detector.
type DetectorConfig struct {
	Zone      image.Rectangle // monitored area in frame coordinates
	BlurSize  int             // odd Gaussian kernel size
	Threshold int             // per-pixel difference counted as motion
	MinWidth  int
	MinHeight int
}

// MotionDetector finds the largest moving region inside the zone by
// differencing each frame against a running background.
type MotionDetector struct {
	cfg    DetectorConfig
	base   gocv.Mat // CV_32F running background
	last   gocv.Mat // most recent preprocessed frame
	kernel gocv.Mat
}

// NewMotionDetector validates cfg. Close must be called to release the
// OpenCV buffers.
func NewMotionDetector(cfg DetectorConfig) (*MotionDetector, error) {
	if cfg.Zone.Empty() {
		return nil, errors.New("motion detector requires a non-empty zone")
	}
	if cfg.BlurSize <= 0 || cfg.BlurSize%2 == 0 {
		return nil, fmt.Errorf("blur size must be a positive odd number, got %d", cfg.BlurSize)
	}
	return &MotionDetector{
		cfg:    cfg,
		base:   gocv.NewMat(),
		last:   gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}, nil
}

// preprocess crops the zone, converts to gray and blurs.
func (d *MotionDetector) preprocess(f *Frame) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, f.Mat.Cols(), f.Mat.Rows())
	if !d.cfg.Zone.In(bounds) {
		return gocv.Mat{}, fmt.Errorf("zone %v outside %dx%d frame", d.cfg.Zone, bounds.Dx(), bounds.Dy())
	}
	region := f.Mat.Region(d.cfg.Zone)
	defer region.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(d.cfg.BlurSize, d.cfg.BlurSize), 0, 0, gocv.BorderDefault)
	return gray, nil
}

// Prime replaces the background with f.
func (d *MotionDetector) Prime(f *Frame) error {
	gray, err := d.preprocess(f)
	if err != nil {
		return err
	}
	defer gray.Close()
	gray.ConvertTo(&d.base, gocv.MatTypeCV32F)
	gray.CopyTo(&d.last)
	return nil
}

// Detect returns the bounding box of the largest contour wider than
// MinWidth or taller than MinHeight, in zone coordinates.
func (d *MotionDetector) Detect(f *Frame) (tracking.BoundingBox, bool, error) {
	if d.base.Empty() {
		return tracking.BoundingBox{}, false, errors.New("motion detector used before Prime")
	}
	gray, err := d.preprocess(f)
	if err != nil {
		return tracking.BoundingBox{}, false, err
	}
	d.last.Close()
	d.last = gray

	background := gocv.NewMat()
	defer background.Close()
	gocv.ConvertScaleAbs(d.base, &background, 1, 0)

	delta := gocv.NewMat()
	defer delta.Close()
	gocv.AbsDiff(gray, background, &delta)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(delta, &thresh, float32(d.cfg.Threshold), 255, gocv.ThresholdBinary)
	// Two dilation passes fill holes in the vehicle silhouette.
	gocv.Dilate(thresh, &thresh, d.kernel)
	gocv.Dilate(thresh, &thresh, d.kernel)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		best    image.Rectangle
		found   bool
		biggest int
	)
	for i := 0; i < contours.Size(); i++ {
		r := gocv.BoundingRect(contours.At(i))
		w, h := r.Dx(), r.Dy()
		if (w > d.cfg.MinWidth || h > d.cfg.MinHeight) && w*h >= biggest {
			best, biggest, found = r, w*h, true
		}
	}
	if !found {
		return tracking.BoundingBox{}, false, nil
	}
	return tracking.BoundingBox{X: best.Min.X, Y: best.Min.Y, Width: best.Dx(), Height: best.Dy()}, true, nil
}

// RefreshBackground blends the most recent frame into the background.
func (d *MotionDetector) RefreshBackground() {
	if d.last.Empty() || d.base.Empty() {
		return
	}
	gocv.AccumulatedWeighted(d.last, &d.base, RefreshWeight)
}

// ZoneSize is the width and height of the monitored area.
func (d *MotionDetector) ZoneSize() (int, int) {
	return d.cfg.Zone.Dx(), d.cfg.Zone.Dy()
}

// Close releases the detector's buffers.
func (d *MotionDetector) Close() error {
	d.base.Close()
	d.last.Close()
	return d.kernel.Close()
}
