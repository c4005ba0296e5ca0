package detection

import (
	"image"
	"sync"

	"github.com/teslashibe/go-gimbal/pkg/debug"
	"gocv.io/x/gocv"
)

// ColorDetector finds the largest blob inside the configured hue bands
type ColorDetector struct {
	config Config
	kernel gocv.Mat
	mu     sync.Mutex // Protects kernel and Mat scratch work
}

// Ensure ColorDetector implements Detector
var _ Detector = (*ColorDetector)(nil)

// NewColorDetector creates a color threshold detector
func NewColorDetector(cfg Config) *ColorDetector {
	if cfg.KernelSize < 1 {
		cfg.KernelSize = 3
	}
	return &ColorDetector{
		config: cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.KernelSize, cfg.KernelSize)),
	}
}

// Config returns the detector thresholds
func (d *ColorDetector) Config() Config {
	return d.config
}

// Detect runs HSV thresholding, morphological cleanup and contour selection
// on a BGR frame.
func (d *ColorDetector) Detect(frame gocv.Mat) (Detection, bool) {
	if frame.Empty() || len(d.config.Bands) == 0 {
		return Detection{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := d.bandMask(hsv)
	defer mask.Close()

	// Open removes speckles, close fills small gaps in the blob
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, d.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, d.kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if best < 0 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best < 0 || bestArea <= d.config.MinArea {
		return Detection{}, false
	}

	x, y, r := gocv.MinEnclosingCircle(contours.At(best))
	if float64(r) <= d.config.MinRadius {
		return Detection{}, false
	}

	det := Detection{X: float64(x), Y: float64(y), Radius: float64(r)}
	debug.TrackLog("🎯 target at (%.1f, %.1f) r=%.1f area=%.0f\n", det.X, det.Y, det.Radius, bestArea)
	return det, true
}

// bandMask ORs the per-band InRange masks together
func (d *ColorDetector) bandMask(hsv gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	band := gocv.NewMat()
	defer band.Close()

	for i, b := range d.config.Bands {
		lower := gocv.NewScalar(b.Min, d.config.SatMin, d.config.ValMin, 0)
		upper := gocv.NewScalar(b.Max, 255, 255, 0)
		if i == 0 {
			gocv.InRangeWithScalar(hsv, lower, upper, &mask)
			continue
		}
		gocv.InRangeWithScalar(hsv, lower, upper, &band)
		gocv.BitwiseOr(mask, band, &mask)
	}
	return mask
}

// Close releases the structuring element
func (d *ColorDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.kernel.Close()
	return nil
}
