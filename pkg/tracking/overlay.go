package tracking

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	overlayGreen = color.RGBA{0, 255, 0, 0}
	overlayRed   = color.RGBA{255, 0, 0, 0}
	overlayCyan  = color.RGBA{0, 255, 255, 0}
)

// Annotate draws the tracking overlay onto a BGR frame: the center crosshair
// and tolerance ring, and when a target is detected its filtered position,
// a line back to center, the distance and the lock banner.
// Nothing is drawn in manual mode.
func Annotate(img *gocv.Mat, res Result, tracking bool, cfg Config) {
	if !tracking || img.Empty() {
		return
	}

	cx, cy := img.Cols()/2, img.Rows()/2
	center := image.Point{cx, cy}

	// Crosshair
	gocv.Line(img, image.Point{cx - 15, cy}, image.Point{cx + 15, cy}, overlayGreen, 2)
	gocv.Line(img, image.Point{cx, cy - 15}, image.Point{cx, cy + 15}, overlayGreen, 2)
	gocv.Circle(img, center, cfg.CenterTolerance, overlayGreen, 1)

	if !res.Detected {
		return
	}

	target := image.Point{int(res.FilteredX), int(res.FilteredY)}
	c := overlayRed
	if res.Distance <= float64(cfg.CenterTolerance) {
		c = overlayGreen
	}
	gocv.Circle(img, target, int(res.Detection.Radius), c, 2)
	gocv.Circle(img, target, 3, c, -1)
	gocv.Line(img, target, center, overlayCyan, 1)

	gocv.PutText(img, fmt.Sprintf("Distance: %.1fpx", res.Distance),
		image.Point{10, 30}, gocv.FontHersheySimplex, 0.5, overlayCyan, 1)
	if res.Locked {
		gocv.PutText(img, "TARGET LOCKED!", image.Point{10, 60}, gocv.FontHersheySimplex, 0.8, overlayRed, 2)
	}
}
