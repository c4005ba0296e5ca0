package gimbal

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
)

// recordingSink captures every frame written to it.
type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	short  bool
}

func (s *recordingSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.short {
		return len(p) - 1, nil
	}
	s.frames = append(s.frames, append([]byte(nil), p...))
	return len(p), nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) last(t *testing.T) protocol.Command {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.frames)
	cmd, err := protocol.Decode(s.frames[len(s.frames)-1])
	require.NoError(t, err)
	return cmd
}

// triggers decodes the trigger byte of every recorded frame.
func (s *recordingSink) triggers(t *testing.T) []protocol.Trigger {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Trigger, 0, len(s.frames))
	for _, f := range s.frames {
		cmd, err := protocol.Decode(f)
		require.NoError(t, err)
		out = append(out, cmd.Trigger)
	}
	return out
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestController(sink *recordingSink) (*Controller, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewController(sink, DefaultConfig())
	c.now = clock.Now
	return c, clock
}

func TestController_StartsCentered(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	assert.Equal(t, CenterPose, c.Pose())
	assert.False(t, c.Tracking())
	assert.NotEmpty(t, c.SessionID())
}

func TestController_TickWritesEveryCycle(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)

	for i := 0; i < 5; i++ {
		c.tick()
	}

	require.Equal(t, 5, sink.count(), "one frame per tick even when the pose is unchanged")
	assert.Equal(t, protocol.Command{Pan: 135, Tilt: 90, Trigger: protocol.TriggerNone}, sink.last(t))
	assert.Equal(t, uint64(5), c.Status().Ticks)
}

func TestController_ManualIntegration(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)

	c.SetJoystick(Joystick{X: 1, Y: -1, Active: true})
	c.tick()
	c.tick()

	pose := c.Pose()
	assert.InDelta(t, 139.0, pose.Pan, 1e-9)
	assert.InDelta(t, 87.0, pose.Tilt, 1e-9)
	assert.Equal(t, protocol.Command{Pan: 139, Tilt: 87}, sink.last(t))
}

func TestController_JoystickThreshold(t *testing.T) {
	c, _ := newTestController(&recordingSink{})

	c.SetJoystick(Joystick{X: 0.05, Y: -0.04, Active: true})
	c.tick()
	assert.Equal(t, CenterPose, c.Pose(), "deflection at the threshold is ignored")

	c.SetJoystick(Joystick{X: 0.06, Y: 0.0, Active: true})
	c.tick()
	assert.InDelta(t, 135.12, c.Pose().Pan, 1e-9, "one axis past threshold moves both by their deltas")
}

func TestController_InactiveJoystickIsZero(t *testing.T) {
	c, _ := newTestController(&recordingSink{})

	c.SetJoystick(Joystick{X: 1, Y: 1, Active: false})
	c.tick()

	assert.Equal(t, CenterPose, c.Pose())
	assert.Equal(t, Joystick{}, c.Status().Joystick)
}

func TestController_ManualIgnoredWhileTracking(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	c.SetTracking(true)

	c.SetJoystick(Joystick{X: 1, Y: 1, Active: true})
	c.tick()

	assert.Equal(t, CenterPose, c.Pose())
}

func TestController_PoseStaysInRange(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		c.SetJoystick(Joystick{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2, Active: true})
		c.tick()
		require.True(t, c.Pose().InRange(), "pose out of range at step %d: %+v", i, c.Pose())
	}

	// Pin against both limits
	c.SetJoystick(Joystick{X: 1, Y: 1, Active: true})
	for i := 0; i < 200; i++ {
		c.tick()
	}
	assert.Equal(t, Pose{Pan: 270, Tilt: 180}, c.Pose())

	c.SetJoystick(Joystick{X: -1, Y: -1, Active: true})
	for i := 0; i < 200; i++ {
		c.tick()
	}
	assert.Equal(t, Pose{Pan: 0, Tilt: 0}, c.Pose())
}

func TestController_ApplyTracking(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)

	pose := Pose{Pan: 150, Tilt: 80}
	assert.False(t, c.ApplyTracking(TrackingUpdate{Pose: &pose, Trigger: protocol.TriggerTrack}),
		"updates are dropped in manual mode")
	assert.Equal(t, CenterPose, c.Pose())

	c.SetTracking(true)
	require.True(t, c.ApplyTracking(TrackingUpdate{Pose: &pose, Trigger: protocol.TriggerTrack}))
	c.tick()
	assert.Equal(t, protocol.Command{Pan: 150, Tilt: 80, Trigger: protocol.TriggerTrack}, sink.last(t))

	// Target lost: pose held, trigger cleared
	require.True(t, c.ApplyTracking(TrackingUpdate{Trigger: protocol.TriggerNone}))
	c.tick()
	assert.Equal(t, protocol.Command{Pan: 150, Tilt: 80, Trigger: protocol.TriggerNone}, sink.last(t))
}

func TestController_LockTriggerSentOnce(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)
	c.SetTracking(true)

	pose := Pose{Pan: 140, Tilt: 95}
	require.True(t, c.ApplyTracking(TrackingUpdate{Pose: &pose, Trigger: protocol.TriggerTrack}))

	// No further tracker updates, as when the camera stalls
	for i := 0; i < 50; i++ {
		c.tick()
	}

	trigs := sink.triggers(t)
	require.Len(t, trigs, 50)
	assert.Equal(t, protocol.TriggerTrack, trigs[0])
	for i, trig := range trigs[1:] {
		assert.Equal(t, protocol.TriggerNone, trig, "tick %d repeated the lock trigger", i+1)
	}
	assert.Equal(t, Pose{Pan: 140, Tilt: 95}, c.Pose(), "pose is held between updates")
}

func TestController_TrackingModeGeneration(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	on, gen := c.TrackingMode()
	assert.False(t, on)

	c.SetTracking(true)
	c.SetTracking(true)
	on, gen2 := c.TrackingMode()
	assert.True(t, on)
	assert.Equal(t, gen+1, gen2, "repeating the same mode is not a switch")

	c.SetTracking(false)
	c.SetTracking(true)
	on, gen3 := c.TrackingMode()
	assert.True(t, on)
	assert.Equal(t, gen2+2, gen3)
}

func TestController_ApplyTrackingClamps(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	c.SetTracking(true)

	bad := Pose{Pan: 999, Tilt: -50}
	c.ApplyTracking(TrackingUpdate{Pose: &bad})
	assert.Equal(t, Pose{Pan: 270, Tilt: 0}, c.Pose())
}

func TestController_TrackingOffClearsTrigger(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)
	c.SetTracking(true)
	c.ApplyTracking(TrackingUpdate{Trigger: protocol.TriggerTrack})

	c.SetTracking(false)
	c.tick()
	assert.Equal(t, protocol.TriggerNone, sink.last(t).Trigger)

	c.SetTracking(true)
	c.tick()
	assert.Equal(t, protocol.TriggerNone, sink.last(t).Trigger, "re-entering tracking starts unlocked")
}

func TestController_ToggleTracking(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	assert.True(t, c.ToggleTracking())
	assert.True(t, c.Tracking())
	assert.False(t, c.ToggleTracking())
	assert.False(t, c.Tracking())
}

func TestController_FireSendsLaserOnce(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)

	require.NoError(t, c.Fire())
	c.tick()
	assert.Equal(t, protocol.TriggerLaser, sink.last(t).Trigger)

	c.tick()
	assert.Equal(t, protocol.TriggerNone, sink.last(t).Trigger)
}

func TestController_FireOverridesLock(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)
	c.SetTracking(true)
	c.ApplyTracking(TrackingUpdate{Trigger: protocol.TriggerTrack})

	require.NoError(t, c.Fire())
	c.tick()
	assert.Equal(t, protocol.TriggerLaser, sink.last(t).Trigger)

	c.tick()
	assert.Equal(t, protocol.TriggerTrack, sink.last(t).Trigger)

	c.tick()
	assert.Equal(t, protocol.TriggerNone, sink.last(t).Trigger)
}

func TestController_FireBusyWindow(t *testing.T) {
	sink := &recordingSink{}
	c, clock := newTestController(sink)

	require.NoError(t, c.Fire())
	assert.True(t, c.LaserBusy())

	clock.Advance(1999 * time.Millisecond)
	assert.ErrorIs(t, c.Fire(), ErrLaserBusy)

	c.tick()
	c.tick()
	laser := 0
	for _, f := range sink.frames {
		if f[4] == byte(protocol.TriggerLaser) {
			laser++
		}
	}
	assert.Equal(t, 1, laser, "ignored request must not add a shot")

	clock.Advance(time.Millisecond)
	assert.False(t, c.LaserBusy())
	assert.NoError(t, c.Fire(), "busy window expires on its own")
}

func TestController_Recenter(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)

	c.SetJoystick(Joystick{X: 1, Y: 1, Active: true})
	c.tick()
	c.SetJoystick(Joystick{})
	before := sink.count()

	require.NoError(t, c.Recenter())
	assert.Equal(t, CenterPose, c.Pose())
	assert.Equal(t, before+1, sink.count(), "recenter transmits immediately")
	assert.Equal(t, protocol.Command{Pan: 135, Tilt: 90}, sink.last(t))
}

func TestController_RecenterRefusedWhileTracking(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestController(sink)
	c.SetTracking(true)
	pose := Pose{Pan: 200, Tilt: 100}
	c.ApplyTracking(TrackingUpdate{Pose: &pose})

	assert.ErrorIs(t, c.Recenter(), ErrTrackingActive)
	assert.Equal(t, pose, c.Pose())
	assert.Zero(t, sink.count())
}

func TestController_WriteErrorsDoNotStopTicks(t *testing.T) {
	sink := &recordingSink{err: errors.New("device unplugged")}
	c, _ := newTestController(sink)

	for i := 0; i < 3; i++ {
		c.tick()
	}
	st := c.Status()
	assert.Equal(t, uint64(3), st.Ticks)
	assert.Equal(t, uint64(3), st.WriteErrors)

	// Stateless retry: the next tick goes through once the sink recovers
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	c.tick()
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, uint64(3), c.Status().WriteErrors)
}

func TestController_ShortWriteIsError(t *testing.T) {
	sink := &recordingSink{short: true}
	c, _ := newTestController(sink)

	err := c.send(CenterPose, protocol.TriggerNone)
	assert.ErrorIs(t, err, ErrShortWrite)
	assert.Equal(t, uint64(1), c.Status().WriteErrors)
}

func TestController_NilSink(t *testing.T) {
	c := NewController(nil, DefaultConfig())
	c.tick()
	assert.NoError(t, c.Recenter())
	assert.Equal(t, uint64(1), c.Status().Ticks)
}

func TestController_EchoInStatus(t *testing.T) {
	c, _ := newTestController(&recordingSink{})
	assert.Nil(t, c.Status().LastEcho)

	c.SetEcho(protocol.Echo{Pan: 135, Tilt: 90})
	require.NotNil(t, c.Status().LastEcho)
	assert.Equal(t, 135, c.Status().LastEcho.Pan)
}

func TestController_RunStopsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	c := NewController(sink, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
