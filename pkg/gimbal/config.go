package gimbal

import "time"

// Config holds the dispatch loop parameters.
type Config struct {
	// Timing
	TickInterval time.Duration // Dispatch period (20ms = 50Hz)

	// Manual mode
	PanStep           float64 // Degrees per tick at full pan deflection
	TiltStep          float64 // Degrees per tick at full tilt deflection
	JoystickThreshold float64 // Ignore stick input at or below this on both axes

	// Laser
	LaserBusy time.Duration // Further fire requests are ignored for this long

	// Logging
	HeartbeatTicks   uint64        // Log a heartbeat every N ticks (0 = never)
	ErrorLogInterval time.Duration // Minimum gap between write-error logs
}

// DefaultConfig returns the standard 50Hz dispatch configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval: 20 * time.Millisecond,

		PanStep:           2.0,
		TiltStep:          1.5,
		JoystickThreshold: 0.05,

		LaserBusy: 2 * time.Second,

		HeartbeatTicks:   250, // ~5s at 50Hz
		ErrorLogInterval: 5 * time.Second,
	}
}
