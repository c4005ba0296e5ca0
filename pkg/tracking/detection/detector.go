// Package detection finds the colored target in camera frames
package detection

import "gocv.io/x/gocv"

// Detection is the target's minimal enclosing circle in frame pixels
type Detection struct {
	X, Y   float64 // Center position (pixels)
	Radius float64 // Enclosing circle radius (pixels)
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X, d.Y
}

// Detector is the interface for target detection backends.
// A frame without a qualifying target is reported as (Detection{}, false);
// that is a normal "target lost" outcome, not an error.
type Detector interface {
	// Detect finds the target in a BGR frame
	Detect(frame gocv.Mat) (Detection, bool)

	// Close releases resources
	Close() error
}

// HueBand is an inclusive hue range on OpenCV's 0-180 hue scale
type HueBand struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config holds color detector configuration
type Config struct {
	// Red wraps around the hue circle, so it takes two bands
	Bands []HueBand `json:"bands"`

	SatMin float64 `json:"sat_min"` // Minimum saturation (0-255)
	ValMin float64 `json:"val_min"` // Minimum value/brightness (0-255)

	KernelSize int     `json:"kernel_size"` // Morphology structuring element (px)
	MinArea    float64 `json:"min_area"`    // Largest contour must exceed this (px²)
	MinRadius  float64 `json:"min_radius"`  // Enclosing circle must exceed this (px)
}

// DefaultConfig returns the red-target thresholds
func DefaultConfig() Config {
	return Config{
		Bands: []HueBand{
			{Min: 0, Max: 10},    // Low reds
			{Min: 160, Max: 180}, // High reds (wrap-around)
		},
		SatMin:     120,
		ValMin:     120,
		KernelSize: 3,
		MinArea:    200,
		MinRadius:  8,
	}
}
