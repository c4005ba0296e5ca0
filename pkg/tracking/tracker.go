package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-gimbal/internal/log"
	"github.com/teslashibe/go-gimbal/pkg/debug"
	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/tracking/detection"
	"gocv.io/x/gocv"
)

// FrameSource interface for capturing frames
type FrameSource interface {
	// Read fills dst with the next BGR frame
	Read(dst *gocv.Mat) error
}

// GimbalController interface for publishing tracking output
type GimbalController interface {
	// TrackingMode returns the mode and a generation that changes on every
	// mode switch
	TrackingMode() (enabled bool, generation uint64)
	ApplyTracking(u gimbal.TrackingUpdate) bool
}

// FrameHook observes every frame after tracking has processed it.
// The frame is only valid for the duration of the call.
type FrameHook func(frame *gocv.Mat, res Result, tracking bool)

// Status is the tracker's view for display
type Status struct {
	Detected       bool     `json:"detected"`
	TargetDistance *float64 `json:"target_distance,omitempty"` // px from frame center
	Locked         bool     `json:"locked"`
	FPS            float64  `json:"fps"`
	StableFrames   int      `json:"stable_frames"`
	TriggerCounter int      `json:"trigger_counter"`
}

// Tracker reads camera frames, runs the pipeline while tracking mode is on
// and hands each result to the gimbal controller
type Tracker struct {
	config   Config
	source   FrameSource
	detector detection.Detector
	gimbal   GimbalController
	logger   *slog.Logger
	hook     FrameHook

	// Pipeline and status
	mu       sync.RWMutex
	pipeline *Pipeline
	status   Status

	// Loop-local state
	modeGen       uint64
	wasDetected   bool
	wasLocked     bool
	fpsFrames     int
	fpsStart      time.Time
	readErrors    int
	lastReadError time.Time
}

// New creates a tracker. source and detector may be nil in tests that only
// drive processFrame.
func New(config Config, source FrameSource, detector detection.Detector, ctrl GimbalController) *Tracker {
	return &Tracker{
		config:   config,
		source:   source,
		detector: detector,
		gimbal:   ctrl,
		logger:   log.Component("tracking"),
		pipeline: NewPipeline(config, detector),
	}
}

// SetFrameHook installs a hook called after every frame (camera streaming)
func (t *Tracker) SetFrameHook(h FrameHook) {
	t.hook = h
}

// Status returns the latest tracking status
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := t.status
	if st.TargetDistance != nil {
		d := *st.TargetDistance
		st.TargetDistance = &d
	}
	return st
}

// Config returns the current tracking configuration
func (t *Tracker) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pipeline.cfg
}

// Run starts the frame loop. Blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	fmt.Printf("🎯 Target tracker started\n")
	fmt.Printf("    PID: Kp=%.2f, Kd=%.2f, Deadband=%.3f\n",
		t.config.Kp, t.config.Kd, t.config.PIDDeadband)
	fmt.Printf("    Lock: error<%.2f, radius>%.0fpx, delay=%d frames\n",
		t.config.ErrorThreshold, t.config.MinLockRadius, t.config.TriggerDelay)

	t.fpsStart = time.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := t.source.Read(&frame); err != nil {
			t.readErrors++
			if time.Since(t.lastReadError) > 5*time.Second {
				t.logger.Warn("frame read failed", "err", err, "total_errors", t.readErrors)
				t.lastReadError = time.Now()
			}
		} else {
			t.processFrame(&frame)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.config.FrameInterval):
		}
	}
}

// processFrame runs one cycle for a captured frame
func (t *Tracker) processFrame(frame *gocv.Mat) {
	// Any mode switch since the last frame starts the lock from scratch,
	// including an off/on pair that no frame observed
	tracking, gen := t.gimbal.TrackingMode()
	if gen != t.modeGen {
		t.mu.Lock()
		t.pipeline.ResetLock()
		t.mu.Unlock()
		t.modeGen = gen
	}

	var res Result
	if tracking {
		det, ok := detection.Detection{}, false
		if t.detector != nil {
			det, ok = t.detector.Detect(*frame)
		}

		t.mu.Lock()
		res = t.pipeline.Update(det, ok, frame.Cols(), frame.Rows())
		t.setStatus(res)
		t.mu.Unlock()

		t.gimbal.ApplyTracking(res.Update())
		t.logTransitions(res)
	} else {
		t.mu.Lock()
		res = Result{Pose: t.pipeline.last}
		t.setStatus(res)
		t.mu.Unlock()
		t.wasDetected, t.wasLocked = false, false
	}

	t.countFrame()

	if t.hook != nil {
		t.hook(frame, res, tracking)
	}
}

// setStatus records res in the status snapshot. Caller holds mu.
func (t *Tracker) setStatus(res Result) {
	t.status.Detected = res.Detected
	t.status.Locked = res.Locked
	t.status.StableFrames = t.pipeline.lock.StableFrames()
	t.status.TriggerCounter = t.pipeline.lock.TriggerCounter()
	if res.Detected {
		d := res.Distance
		t.status.TargetDistance = &d
	} else {
		t.status.TargetDistance = nil
	}
}

func (t *Tracker) logTransitions(res Result) {
	switch {
	case res.Detected && !t.wasDetected:
		fmt.Printf("🎯 Target acquired at (%.0f, %.0f) r=%.0fpx\n",
			res.Detection.X, res.Detection.Y, res.Detection.Radius)
	case !res.Detected && t.wasDetected:
		fmt.Printf("👁️  Target lost\n")
	}
	if res.Locked && !t.wasLocked {
		fmt.Printf("🔒 TARGET LOCKED (distance %.1fpx)\n", res.Distance)
	}
	t.wasDetected, t.wasLocked = res.Detected, res.Locked

	if res.Detected {
		debug.TrackLog("🎯 err=(%.3f, %.3f) out=(%.3f, %.3f) dist=%.1fpx pose=(%.1f, %.1f) stable=%d counter=%d\n",
			res.ErrX, res.ErrY, res.PanOutput, res.TiltOutput, res.Distance,
			res.Pose.Pan, res.Pose.Tilt,
			t.Status().StableFrames, t.Status().TriggerCounter)
	}
}

// countFrame updates the FPS meter every FPSWindow frames
func (t *Tracker) countFrame() {
	if t.fpsStart.IsZero() {
		t.fpsStart = time.Now()
	}
	t.fpsFrames++
	if t.config.FPSWindow <= 0 || t.fpsFrames < t.config.FPSWindow {
		return
	}

	elapsed := time.Since(t.fpsStart).Seconds()
	if elapsed > 0 {
		t.mu.Lock()
		t.status.FPS = float64(t.fpsFrames) / elapsed
		t.mu.Unlock()
	}
	t.fpsFrames = 0
	t.fpsStart = time.Now()
}
