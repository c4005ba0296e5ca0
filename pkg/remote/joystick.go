package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

// Joystick is a streaming joystick connection. The daemon releases the stick
// when the connection drops.
type Joystick struct {
	ws   *websocket.Conn
	wsMu sync.Mutex

	errs      chan error
	done      chan struct{}
	closeOnce sync.Once
}

// OpenJoystick dials the daemon's joystick socket
func (c *Client) OpenJoystick(ctx context.Context) (*Joystick, error) {
	u, err := c.wsURL("/ws/joystick")
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	ws, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial joystick: %w", err)
	}

	j := &Joystick{
		ws:   ws,
		errs: make(chan error, 8),
		done: make(chan struct{}),
	}
	go j.readLoop()
	return j, nil
}

// Send streams one stick sample
func (j *Joystick) Send(x, y float64, active bool) error {
	msg, err := protocol.NewJoystickMessage(x, y, active)
	if err != nil {
		return err
	}
	return j.write(msg)
}

// Command sends a discrete action over the joystick socket.
// Rejections arrive asynchronously on Errors.
func (j *Joystick) Command(action string, enabled *bool) error {
	msg, err := protocol.NewCommandMessage(action, enabled)
	if err != nil {
		return err
	}
	return j.write(msg)
}

// Errors delivers request rejections reported by the daemon
func (j *Joystick) Errors() <-chan error {
	return j.errs
}

// Done is closed when the connection ends
func (j *Joystick) Done() <-chan struct{} {
	return j.done
}

// Close releases the stick and closes the connection
func (j *Joystick) Close() error {
	var err error
	j.closeOnce.Do(func() {
		_ = j.Send(0, 0, false)

		j.wsMu.Lock()
		_ = j.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		j.wsMu.Unlock()

		err = j.ws.Close()
	})
	return err
}

func (j *Joystick) write(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	j.wsMu.Lock()
	defer j.wsMu.Unlock()
	j.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return j.ws.WriteMessage(websocket.TextMessage, data)
}

// readLoop surfaces error replies until the connection closes
func (j *Joystick) readLoop() {
	defer close(j.done)

	for {
		_, data, err := j.ws.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypeError {
			continue
		}
		var e protocol.ErrorData
		if msg.ParseData(&e) != nil {
			continue
		}

		err = errors.New(e.Error)
		for _, known := range knownErrors {
			if e.Error == known.Error() {
				err = known
			}
		}
		select {
		case j.errs <- err:
		default:
		}
	}
}
