package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Operator → daemon
	TypeJoystick MessageType = "joystick" // Joystick vector
	TypeCommand  MessageType = "command"  // Mode/fire/recenter request

	// Daemon → operator
	TypeStatus MessageType = "status" // Controller + tracker status
	TypeError  MessageType = "error"  // Rejected request

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// JoystickData is one joystick sample. X and Y are in [-1, 1]; a released
// stick is sent as Active=false.
type JoystickData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// CommandData names a discrete operator action.
type CommandData struct {
	Action  string `json:"action"`            // "tracking", "fire", "recenter"
	Enabled *bool  `json:"enabled,omitempty"` // For "tracking"
}

// Operator actions carried in CommandData.
const (
	ActionTracking = "tracking"
	ActionFire     = "fire"
	ActionRecenter = "recenter"
)

// ErrorData reports a rejected operator request.
type ErrorData struct {
	Error string `json:"error"`
}

// NewJoystickMessage creates a joystick message
func NewJoystickMessage(x, y float64, active bool) (*Message, error) {
	return NewMessage(TypeJoystick, JoystickData{X: x, Y: y, Active: active})
}

// NewCommandMessage creates a command message
func NewCommandMessage(action string, enabled *bool) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Action: action, Enabled: enabled})
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Error: err.Error()})
}
