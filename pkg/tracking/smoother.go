package tracking

import "math"

// AngleSmoother suppresses small jitter and rate-limits large jumps in the
// commanded angle.
type AngleSmoother struct {
	DeadZone float64 // Degrees; smaller changes are ignored
	MaxStep  float64 // Degrees; larger changes are capped to this
}

// Smooth returns the next angle given the target and the previous angle
func (s AngleSmoother) Smooth(target, previous float64) float64 {
	diff := target - previous
	switch {
	case math.Abs(diff) < s.DeadZone:
		return previous
	case diff > s.MaxStep:
		return previous + s.MaxStep
	case diff < -s.MaxStep:
		return previous - s.MaxStep
	default:
		return target
	}
}
