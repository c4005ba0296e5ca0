// Package protocol defines the wire formats spoken by go-gimbal: the 5-byte
// binary command frame sent to the gimbal firmware, the firmware's text echo
// lines, and the JSON messages exchanged with operator websocket clients.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FrameSize is the length of one command frame in bytes.
//
// Layout (big-endian): [panHi, panLo, tiltHi, tiltLo, trigger].
// There is no length prefix, checksum or escaping: the serial link must carry
// nothing but back-to-back frames.
const FrameSize = 5

// Mechanical range of the gimbal in degrees.
const (
	PanMin  = 0.0
	PanMax  = 270.0
	TiltMin = 0.0
	TiltMax = 180.0
)

var (
	// ErrShortFrame is returned when decoding fewer than FrameSize bytes.
	ErrShortFrame = errors.New("protocol: short command frame")

	// ErrBadTrigger is returned when a frame carries an unknown trigger code.
	ErrBadTrigger = errors.New("protocol: unknown trigger code")
)

// Trigger is the code carried in the last byte of a command frame.
type Trigger byte

const (
	TriggerNone  Trigger = 0 // No event
	TriggerTrack Trigger = 1 // Target locked
	TriggerLaser Trigger = 2 // Manual laser fire
)

// String returns a short name for logs and JSON status.
func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerTrack:
		return "track"
	case TriggerLaser:
		return "laser"
	default:
		return fmt.Sprintf("trigger(%d)", byte(t))
	}
}

// Valid reports whether t is a code the firmware understands.
func (t Trigger) Valid() bool {
	return t <= TriggerLaser
}

// MarshalText implements encoding.TextMarshaler.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Command is one gimbal command as it appears on the wire.
type Command struct {
	Pan     int16
	Tilt    int16
	Trigger Trigger
}

// NewCommand builds a command from a pose in degrees. Angles are clamped to
// the mechanical range and rounded to the nearest whole degree, so an
// out-of-range pose can never reach the wire. Unknown trigger codes become
// TriggerNone.
func NewCommand(pan, tilt float64, trig Trigger) Command {
	if !trig.Valid() {
		trig = TriggerNone
	}
	return Command{
		Pan:     int16(math.Round(Clamp(pan, PanMin, PanMax))),
		Tilt:    int16(math.Round(Clamp(tilt, TiltMin, TiltMax))),
		Trigger: trig,
	}
}

// AppendBinary appends the 5-byte frame for c to b.
func (c Command) AppendBinary(b []byte) ([]byte, error) {
	if !c.Trigger.Valid() {
		return b, fmt.Errorf("%w: %d", ErrBadTrigger, byte(c.Trigger))
	}
	b = binary.BigEndian.AppendUint16(b, uint16(c.Pan))
	b = binary.BigEndian.AppendUint16(b, uint16(c.Tilt))
	return append(b, byte(c.Trigger)), nil
}

// MarshalBinary returns the 5-byte frame for c.
func (c Command) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(make([]byte, 0, FrameSize))
}

// Decode parses the first FrameSize bytes of b, the way the firmware does.
func Decode(b []byte) (Command, error) {
	if len(b) < FrameSize {
		return Command{}, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(b))
	}
	cmd := Command{
		Pan:     int16(binary.BigEndian.Uint16(b[0:2])),
		Tilt:    int16(binary.BigEndian.Uint16(b[2:4])),
		Trigger: Trigger(b[4]),
	}
	if !cmd.Trigger.Valid() {
		return cmd, fmt.Errorf("%w: %d", ErrBadTrigger, b[4])
	}
	return cmd, nil
}

// Clamp restricts v to [min, max]. NaN maps to min.
func Clamp(v, min, max float64) float64 {
	if math.IsNaN(v) || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
