// Package gimbal drives a two-axis pan/tilt gimbal over a byte stream.
//
// The Controller owns the shared pose, joystick and mode state and runs the
// fixed-rate dispatch loop that writes one command frame per tick. Trackers
// and operator surfaces only ever talk to the Controller.
package gimbal

import (
	"math"

	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

// CenterPose is the mechanical center both servos boot into.
var CenterPose = Pose{Pan: 135, Tilt: 90}

// Pose is a pan/tilt pointing direction in degrees.
type Pose struct {
	Pan  float64 `json:"pan"`  // 0-270
	Tilt float64 `json:"tilt"` // 0-180
}

// Clamp returns the pose limited to the mechanical range.
func (p Pose) Clamp() Pose {
	return Pose{
		Pan:  protocol.Clamp(p.Pan, protocol.PanMin, protocol.PanMax),
		Tilt: protocol.Clamp(p.Tilt, protocol.TiltMin, protocol.TiltMax),
	}
}

// Add returns the pose moved by the given deltas, clamped.
func (p Pose) Add(dPan, dTilt float64) Pose {
	return Pose{Pan: p.Pan + dPan, Tilt: p.Tilt + dTilt}.Clamp()
}

// InRange reports whether the pose is within the mechanical range.
func (p Pose) InRange() bool {
	return p.Pan >= protocol.PanMin && p.Pan <= protocol.PanMax &&
		p.Tilt >= protocol.TiltMin && p.Tilt <= protocol.TiltMax
}

// Command converts the pose to a wire command.
func (p Pose) Command(trig protocol.Trigger) protocol.Command {
	return protocol.NewCommand(p.Pan, p.Tilt, trig)
}

// Joystick is a 2-D operator stick sample.
type Joystick struct {
	X      float64 `json:"x"` // -1 (left) to 1 (right) after mapping
	Y      float64 `json:"y"` // -1 to 1
	Active bool    `json:"active"`
}

// Normalize clamps both components to [-1, 1]; a released stick is the zero
// vector.
func (j Joystick) Normalize() Joystick {
	if !j.Active {
		return Joystick{}
	}
	return Joystick{
		X:      clampUnit(j.X),
		Y:      clampUnit(j.Y),
		Active: true,
	}
}

// Engaged reports whether either axis is past the activation threshold.
func (j Joystick) Engaged(threshold float64) bool {
	return j.Active && (math.Abs(j.X) > threshold || math.Abs(j.Y) > threshold)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return protocol.Clamp(v, -1, 1)
}
