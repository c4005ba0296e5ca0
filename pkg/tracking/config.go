package tracking

import "time"

// StrengthTier maps the target's pixel distance from the frame center to the
// degrees per unit of PID output applied on each axis.
type StrengthTier struct {
	MinDistance float64 `json:"min_distance"` // Tier applies when distance > MinDistance (px)
	Pan         float64 `json:"pan"`
	Tilt        float64 `json:"tilt"`
}

// Config holds all tunable parameters for target tracking
type Config struct {
	// Timing
	FrameInterval time.Duration // Pause between camera reads
	FPSWindow     int           // Frames per FPS measurement

	// Filters
	PositionWindow int // Samples kept by the x/y position filters
	AngleWindow    int // Samples kept by the pan/tilt angle filters

	// PID Controller
	Kp          float64 // Proportional gain
	Ki          float64 // Integral gain (integral is reset every cycle)
	Kd          float64 // Derivative gain
	PIDDeadband float64 // Normalized errors below this are treated as zero

	// Control strength, ordered by descending MinDistance; the last tier is
	// the fallback
	Strength []StrengthTier

	// Angle smoothing (degrees)
	DeadZone float64 // Ignore target changes smaller than this
	MaxStep  float64 // Largest change per processed frame

	// Lock
	StabilityWindow   int     // Center distances remembered
	VarianceFrames    int     // Most recent distances checked for stability
	VarianceThreshold float64 // Population variance below this is stable (px²)
	MinStableFrames   int     // Lock requires stable frames > this
	ErrorThreshold    float64 // |ex| and |ey| must be below this
	MinLockRadius     float64 // Target radius must exceed this (px)
	TriggerDelay      int     // Consecutive good frames before lock fires

	// Overlay
	CenterTolerance int // On-target ring radius (px)
}

// DefaultConfig returns the field-tuned configuration
func DefaultConfig() Config {
	return Config{
		// Timing - ~30 fps camera
		FrameInterval: 33 * time.Millisecond,
		FPSWindow:     30,

		// Filters
		PositionWindow: 6,
		AngleWindow:    4,

		// PID - heavy derivative to damp overshoot
		Kp:          0.4,
		Ki:          0.0,
		Kd:          0.9,
		PIDDeadband: 0.015,

		Strength: []StrengthTier{
			{MinDistance: 40, Pan: 70, Tilt: 55}, // Far: move hard
			{MinDistance: 20, Pan: 60, Tilt: 48},
			{MinDistance: 0, Pan: 50, Tilt: 40}, // Near: fine adjustments
		},

		// Smoothing
		DeadZone: 1.0,
		MaxStep:  4.0,

		// Lock
		StabilityWindow:   10,
		VarianceFrames:    5,
		VarianceThreshold: 2.0,
		MinStableFrames:   5,
		ErrorThreshold:    0.06,
		MinLockRadius:     20,
		TriggerDelay:      12,

		CenterTolerance: 18,
	}
}

// SlowConfig returns a configuration for slower, smoother tracking
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.Kp = 0.3
	cfg.Kd = 1.1 // More dampening
	cfg.MaxStep = 2.5
	cfg.AngleWindow = 6
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Kp = 0.5
	cfg.Kd = 0.7 // Less dampening
	cfg.MaxStep = 6.0
	cfg.PositionWindow = 4
	cfg.TriggerDelay = 8
	return cfg
}

// ConfigByName returns a named configuration preset.
// Unknown names fall back to DefaultConfig.
func ConfigByName(name string) Config {
	switch name {
	case "slow":
		return SlowConfig()
	case "aggressive":
		return AggressiveConfig()
	default:
		return DefaultConfig()
	}
}

// strengthFor picks the control strength tier for a center distance
func (c Config) strengthFor(distance float64) (pan, tilt float64) {
	for _, tier := range c.Strength {
		if distance > tier.MinDistance {
			return tier.Pan, tier.Tilt
		}
	}
	if n := len(c.Strength); n > 0 {
		return c.Strength[n-1].Pan, c.Strength[n-1].Tilt
	}
	return 0, 0
}
