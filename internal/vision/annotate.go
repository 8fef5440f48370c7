package vision

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/speedcam/internal/tracking"
	"github.com/banshee-data/speedcam/internal/units"
)

var green = color.RGBA{G: 255, A: 255}

// TimestampLayout is the on-image capture time, e.g.
// "Saturday 07 March 2026 02:05:09PM".
const TimestampLayout = "Monday 02 January 2006 03:04:05PM"

// Annotator stamps captures with their speed and time and encodes them as
// JPEG. It implements snapshot.Encoder.
type Annotator struct {
	// Zone, when ShowBounds is set, gets its left and right edges drawn.
	Zone       image.Rectangle
	ShowBounds bool
}

// Annotate draws onto img in place.
func (a Annotator) Annotate(img *gocv.Mat, ev *tracking.SpeedEvent, ts time.Time) {
	rows, cols := img.Rows(), img.Cols()

	gocv.PutText(img, ts.Format(TimestampLayout), image.Pt(10, rows-10),
		gocv.FontHersheySimplex, 0.75, green, 1)

	text := fmt.Sprintf("%.0f %s", ev.Speed, units.Label(ev.Units))
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 2, 3)
	gocv.PutText(img, text, image.Pt((cols-size.X)/2, int(float64(rows)*0.2)),
		gocv.FontHersheySimplex, 2, green, 3)

	if a.ShowBounds && !a.Zone.Empty() {
		gocv.Line(img, image.Pt(a.Zone.Min.X, a.Zone.Min.Y), image.Pt(a.Zone.Min.X, a.Zone.Max.Y), green, 1)
		gocv.Line(img, image.Pt(a.Zone.Max.X, a.Zone.Min.Y), image.Pt(a.Zone.Max.X, a.Zone.Max.Y), green, 1)
	}
}

// Encode annotates a copy of the event's frame and returns it as JPEG.
func (a Annotator) Encode(ev *tracking.SpeedEvent, ts time.Time) ([]byte, error) {
	f, ok := ev.Frame.(*Frame)
	if !ok || f == nil || f.Mat.Empty() {
		return nil, fmt.Errorf("unsupported frame %T", ev.Frame)
	}
	img := f.Mat.Clone()
	defer img.Close()

	a.Annotate(&img, ev, ts)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
