package gimbal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-gimbal/internal/log"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

var (
	// ErrTrackingActive is returned by Recenter while tracking mode is on.
	ErrTrackingActive = errors.New("gimbal: tracking mode is active")

	// ErrLaserBusy is returned by Fire inside the busy window of the previous shot.
	ErrLaserBusy = errors.New("gimbal: laser busy")

	// ErrShortWrite is recorded when the sink accepts fewer than FrameSize bytes.
	ErrShortWrite = errors.New("gimbal: short write")
)

// TrackingUpdate is what the tracker publishes after each processed frame.
type TrackingUpdate struct {
	Pose    *Pose            // nil keeps the current pose (target lost)
	Trigger protocol.Trigger // TriggerTrack when the lock fires; sent on one frame
}

// Status is a snapshot of the controller for display.
type Status struct {
	SessionID   string           `json:"session_id"`
	Pose        Pose             `json:"pose"`
	Tracking    bool             `json:"tracking"`
	Trigger     protocol.Trigger `json:"trigger"`
	LaserBusy   bool             `json:"laser_busy"`
	Joystick    Joystick         `json:"joystick"`
	Ticks       uint64           `json:"ticks"`
	WriteErrors uint64           `json:"write_errors"`
	LastEcho    *protocol.Echo   `json:"last_echo,omitempty"`
}

// Controller is the single owner of gimbal state and of the command sink.
// The tracker writes the tracking pose and trigger, operator surfaces write
// the joystick, mode, fire and recenter requests, and the dispatch loop reads
// a consistent snapshot every tick.
type Controller struct {
	cfg       Config
	sink      io.Writer
	logger    *slog.Logger
	sessionID string
	now       func() time.Time

	mu           sync.Mutex
	pose         Pose
	joystick     Joystick
	tracking     bool
	modeGen      uint64
	trackTrigger protocol.Trigger
	lastTrigger  protocol.Trigger
	laserPending bool
	laserUntil   time.Time
	lastEcho     *protocol.Echo

	// Serializes frames from the dispatch tick and immediate recenter writes
	writeMu sync.Mutex
	frame   [protocol.FrameSize]byte // Guarded by writeMu

	// Diagnostics
	tickCount     atomic.Uint64
	errorCount    atomic.Uint64
	lastErrorTime time.Time // Guarded by writeMu
}

// NewController creates a controller writing frames to sink, starting at the
// center pose in manual mode.
func NewController(sink io.Writer, cfg Config) *Controller {
	return &Controller{
		cfg:       cfg,
		sink:      sink,
		logger:    log.Component("gimbal"),
		sessionID: uuid.NewString(),
		now:       time.Now,
		pose:      CenterPose,
	}
}

// SetLogger replaces the component logger.
func (c *Controller) SetLogger(l *slog.Logger) {
	c.logger = l
}

// SessionID identifies this controller instance in status output.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Pose returns the current pose.
func (c *Controller) Pose() Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose
}

// Tracking reports whether tracking mode is active.
func (c *Controller) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// TrackingMode returns the mode together with its generation. The generation
// changes on every switch, so a tracker polling once per frame still sees an
// off/on pair that happened between two frames.
func (c *Controller) TrackingMode() (enabled bool, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking, c.modeGen
}

// SetTracking switches between tracking and manual mode. Every switch clears
// the lock trigger and starts a new mode generation.
func (c *Controller) SetTracking(enabled bool) {
	c.mu.Lock()
	if c.tracking == enabled {
		c.mu.Unlock()
		return
	}
	c.tracking = enabled
	c.modeGen++
	c.trackTrigger = protocol.TriggerNone
	c.mu.Unlock()

	if enabled {
		c.logger.Info("tracking mode enabled")
	} else {
		c.logger.Info("tracking mode disabled")
	}
}

// ToggleTracking flips the mode and returns the new state.
func (c *Controller) ToggleTracking() bool {
	enabled := !c.Tracking()
	c.SetTracking(enabled)
	return enabled
}

// SetJoystick stores the latest operator stick sample.
func (c *Controller) SetJoystick(j Joystick) {
	j = j.Normalize()
	c.mu.Lock()
	c.joystick = j
	c.mu.Unlock()
}

// ApplyTracking stores the tracker output for the next tick. A lock trigger
// goes out on the next frame only. Updates that arrive after tracking mode
// was switched off are dropped and false is returned.
func (c *Controller) ApplyTracking(u TrackingUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.tracking {
		return false
	}
	if u.Pose != nil {
		if !u.Pose.InRange() {
			c.logger.Debug("tracking pose clamped", "pan", u.Pose.Pan, "tilt", u.Pose.Tilt)
		}
		c.pose = u.Pose.Clamp()
	}
	c.trackTrigger = u.Trigger
	return true
}

// Fire requests a manual laser shot. The next tick carries TriggerLaser once.
// Requests inside the busy window of the previous accepted shot are ignored
// with ErrLaserBusy.
func (c *Controller) Fire() error {
	c.mu.Lock()
	now := c.now()
	if now.Before(c.laserUntil) {
		c.mu.Unlock()
		return ErrLaserBusy
	}
	c.laserPending = true
	c.laserUntil = now.Add(c.cfg.LaserBusy)
	c.mu.Unlock()

	c.logger.Info("laser fire requested")
	return nil
}

// LaserBusy reports whether a fire request would currently be ignored.
func (c *Controller) LaserBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.laserUntil)
}

// Recenter moves the gimbal to CenterPose and transmits immediately.
// Only accepted in manual mode.
func (c *Controller) Recenter() error {
	c.mu.Lock()
	if c.tracking {
		c.mu.Unlock()
		return ErrTrackingActive
	}
	c.pose = CenterPose
	c.mu.Unlock()

	c.logger.Info("recentering", "pan", CenterPose.Pan, "tilt", CenterPose.Tilt)
	return c.send(CenterPose, protocol.TriggerNone)
}

// SetEcho records the latest firmware acknowledgement.
func (c *Controller) SetEcho(e protocol.Echo) {
	c.mu.Lock()
	c.lastEcho = &e
	c.mu.Unlock()
}

// Status returns a snapshot for display.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		SessionID:   c.sessionID,
		Pose:        c.pose,
		Tracking:    c.tracking,
		Trigger:     c.lastTrigger,
		LaserBusy:   c.now().Before(c.laserUntil),
		Joystick:    c.joystick,
		Ticks:       c.tickCount.Load(),
		WriteErrors: c.errorCount.Load(),
	}
	if c.lastEcho != nil {
		e := *c.lastEcho
		st.LastEcho = &e
	}
	return st
}

// Run starts the dispatch loop. Blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	c.logger.Info("dispatch loop started", "interval", c.cfg.TickInterval, "session", c.sessionID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dispatch loop stopped", "ticks", c.tickCount.Load(), "errors", c.errorCount.Load())
			return ctx.Err()
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick executes one control cycle: integrate manual input, pick the trigger
// and write exactly one frame.
func (c *Controller) tick() {
	c.mu.Lock()
	if !c.tracking && c.joystick.Engaged(c.cfg.JoystickThreshold) {
		c.pose = c.pose.Add(c.joystick.X*c.cfg.PanStep, c.joystick.Y*c.cfg.TiltStep)
	}

	trig := protocol.TriggerNone
	switch {
	case c.laserPending:
		trig = protocol.TriggerLaser
		c.laserPending = false
	case c.tracking:
		trig = c.trackTrigger
		c.trackTrigger = protocol.TriggerNone
	}
	c.lastTrigger = trig
	pose := c.pose
	c.mu.Unlock()

	// Errors are counted and logged inside send; the next tick retries
	_ = c.send(pose, trig)

	ticks := c.tickCount.Add(1)
	if c.cfg.HeartbeatTicks > 0 && ticks%c.cfg.HeartbeatTicks == 0 {
		c.logger.Debug("heartbeat",
			"ticks", ticks,
			"errors", c.errorCount.Load(),
			"pan", pose.Pan,
			"tilt", pose.Tilt,
			"trigger", trig.String())
	}
}

// send encodes and writes one frame.
func (c *Controller) send(pose Pose, trig protocol.Trigger) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.sink == nil {
		return nil
	}

	frame, err := pose.Command(trig).AppendBinary(c.frame[:0])
	if err != nil {
		return err
	}

	n, err := c.sink.Write(frame)
	if err == nil && n != len(frame) {
		err = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(frame))
	}
	if err != nil {
		total := c.errorCount.Add(1)
		if c.lastErrorTime.IsZero() || c.now().Sub(c.lastErrorTime) > c.cfg.ErrorLogInterval {
			c.logger.Warn("command write failed", "err", err, "total_errors", total)
			c.lastErrorTime = c.now()
		}
		return err
	}
	return nil
}
