package tracking

import (
	"math"

	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

// AdaptivePID is a per-axis PD controller on normalized error with gain
// scheduling. The integral term is reset to zero on every call, so Ki has no
// effect with the default of 0.
type AdaptivePID struct {
	Kp, Ki, Kd float64
	Deadband   float64 // |error| below this is treated as 0

	integral  float64
	prevError float64
}

// NewAdaptivePID creates a controller with the given gains and deadband
func NewAdaptivePID(kp, ki, kd, deadband float64) *AdaptivePID {
	return &AdaptivePID{Kp: kp, Ki: ki, Kd: kd, Deadband: deadband}
}

// Compute returns the bounded control output for one error sample
func (p *AdaptivePID) Compute(err float64) float64 {
	if math.Abs(err) < p.Deadband {
		err = 0
	}
	p.integral = 0
	derivative := err - p.prevError

	mag := math.Abs(err)
	kp, kd := p.Kp, p.Kd
	switch {
	case mag > 0.3:
		// Far off: soften P, damp harder
		kp *= 0.8
		kd *= 1.2
	case mag > 0.1:
		// Nominal gains
	default:
		// Close in: sharpen for the last few pixels
		kp *= 1.2
		kd *= 1.5
	}

	out := kp*err + p.Ki*p.integral + kd*derivative

	limit := 0.4
	if mag > 0.3 {
		limit = 0.25
	}
	out = protocol.Clamp(out, -limit, limit)

	p.prevError = err
	return out
}

// PreviousError returns the error stored by the last Compute, after the
// deadband was applied
func (p *AdaptivePID) PreviousError() float64 {
	return p.prevError
}

// Reset clears the derivative history
func (p *AdaptivePID) Reset() {
	p.prevError = 0
	p.integral = 0
}
