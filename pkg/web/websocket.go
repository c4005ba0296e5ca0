package web

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-gimbal/pkg/debug"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/hub"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
	"github.com/teslashibe/go-gimbal/pkg/tracking"
	"gocv.io/x/gocv"
)

// defaultJPEGQuality is used when no camera manager is configured
const defaultJPEGQuality = 80

// handleStatusWS streams status snapshots
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)

	// Send current status right away instead of waiting a tick
	if msg, err := statusMessage(s.Status()); err == nil {
		s.statusHub.SendTo(client, msg)
	}

	client.Run()
}

// handleCameraWS streams annotated JPEG frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}

// handleJoystickWS accepts joystick samples and commands
func (s *Server) handleJoystickWS(c *websocket.Conn) {
	hub.NewClient(s.joystickHub, c).Run()
}

// handleJoystickMessage applies one message from a joystick client.
// Bare {"x","y","active"} objects are accepted as joystick samples.
func (s *Server) handleJoystickMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.replyError(client, err)
		return
	}

	switch msg.Type {
	case protocol.TypeJoystick:
		var j protocol.JoystickData
		if err := msg.ParseData(&j); err != nil {
			s.replyError(client, err)
			return
		}
		s.gimbal.SetJoystick(gimbal.Joystick{X: j.X, Y: j.Y, Active: j.Active})

	case "":
		var j protocol.JoystickData
		if err := json.Unmarshal(data, &j); err != nil {
			s.replyError(client, err)
			return
		}
		s.gimbal.SetJoystick(gimbal.Joystick{X: j.X, Y: j.Y, Active: j.Active})

	case protocol.TypeCommand:
		var cmd protocol.CommandData
		if err := msg.ParseData(&cmd); err != nil {
			s.replyError(client, err)
			return
		}
		if err := s.runCommand(cmd); err != nil {
			s.replyError(client, err)
		}

	case protocol.TypePing:
		if pong, err := protocol.NewMessage(protocol.TypePong, nil); err == nil {
			s.reply(client, pong)
		}

	default:
		s.replyError(client, fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

// runCommand executes a discrete operator action
func (s *Server) runCommand(cmd protocol.CommandData) error {
	switch cmd.Action {
	case protocol.ActionTracking:
		if cmd.Enabled == nil {
			return fmt.Errorf("tracking command needs enabled")
		}
		s.gimbal.SetTracking(*cmd.Enabled)
		return nil
	case protocol.ActionFire:
		return s.gimbal.Fire()
	case protocol.ActionRecenter:
		return s.gimbal.Recenter()
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// handleJoystickLeave releases the stick when its client goes away
func (s *Server) handleJoystickLeave(client *hub.Client) {
	s.gimbal.SetJoystick(gimbal.Joystick{})
	debug.Log("🕹️  Joystick released (%s disconnected)\n", client.ID)
}

func (s *Server) replyError(client *hub.Client, err error) {
	s.logger.Debug("joystick message rejected", "client", client.ID, "err", err)
	if msg, e := protocol.NewErrorMessage(err); e == nil {
		s.reply(client, msg)
	}
}

func (s *Server) reply(client *hub.Client, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	s.joystickHub.SendTo(client, hub.NewJSONMessage(data))
}

// statusMessage wraps a status snapshot in a protocol envelope
func statusMessage(st Status) (hub.Message, error) {
	msg, err := protocol.NewMessage(protocol.TypeStatus, st)
	if err != nil {
		return hub.Message{}, err
	}
	data, err := msg.Bytes()
	if err != nil {
		return hub.Message{}, err
	}
	return hub.NewJSONMessage(data), nil
}

// broadcastStatus sends one status snapshot to all status clients
func (s *Server) broadcastStatus() error {
	msg, err := statusMessage(s.Status())
	if err != nil {
		return err
	}
	s.statusHub.Broadcast(msg)
	return nil
}

// HandleFrame is a tracking.FrameHook that draws the overlay and streams the
// frame as JPEG to camera clients. Frames are skipped while nobody watches.
func (s *Server) HandleFrame(frame *gocv.Mat, res tracking.Result, trackingOn bool) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}

	cfg := tracking.DefaultConfig()
	if s.tracker != nil {
		cfg = s.tracker.Config()
	}
	tracking.Annotate(frame, res, trackingOn, cfg)

	quality := defaultJPEGQuality
	if s.cameras != nil {
		quality = s.cameras.GetConfig().Quality
	}

	data, err := EncodeJPEG(*frame, quality)
	if err != nil {
		s.logger.Warn("frame encode failed", "err", err)
		return
	}
	s.cameraHub.BroadcastBinary(data)
}

// EncodeJPEG encodes a BGR frame as JPEG
func EncodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("encode jpeg: empty frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// The buffer is C memory, copy before closing
	return append([]byte(nil), buf.GetBytes()...), nil
}
