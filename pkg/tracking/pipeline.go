package tracking

import (
	"math"

	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
	"github.com/teslashibe/go-gimbal/pkg/tracking/detection"
	"gocv.io/x/gocv"
)

// Result is the outcome of processing one frame
type Result struct {
	Detected  bool
	Detection detection.Detection // Raw detector output

	// Valid only when Detected
	FilteredX, FilteredY float64
	ErrX, ErrY           float64
	Distance             float64 // Filtered center distance (px)
	PanOutput            float64
	TiltOutput           float64

	Pose    gimbal.Pose // Pose after this frame; unchanged when not detected
	Locked  bool
	Trigger protocol.Trigger
}

// Update converts the result into what the controller consumes.
// A lost target keeps the current pose and clears the trigger.
func (r Result) Update() gimbal.TrackingUpdate {
	if !r.Detected {
		return gimbal.TrackingUpdate{Trigger: protocol.TriggerNone}
	}
	pose := r.Pose
	return gimbal.TrackingUpdate{Pose: &pose, Trigger: r.Trigger}
}

// Pipeline turns detections into gimbal poses and lock decisions.
// It is not safe for concurrent use; the Tracker serializes access.
type Pipeline struct {
	cfg      Config
	detector detection.Detector

	xFilter, yFilter      *SignalFilter
	panFilter, tiltFilter *SignalFilter
	panPID, tiltPID       *AdaptivePID
	smoother              AngleSmoother
	lock                  *LockStateMachine

	last gimbal.Pose
}

// NewPipeline creates a pipeline starting from the center pose.
// detector may be nil when only Update is used.
func NewPipeline(cfg Config, detector detection.Detector) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		detector:   detector,
		xFilter:    NewSignalFilter(cfg.PositionWindow),
		yFilter:    NewSignalFilter(cfg.PositionWindow),
		panFilter:  NewSignalFilter(cfg.AngleWindow),
		tiltFilter: NewSignalFilter(cfg.AngleWindow),
		panPID:     NewAdaptivePID(cfg.Kp, cfg.Ki, cfg.Kd, cfg.PIDDeadband),
		tiltPID:    NewAdaptivePID(cfg.Kp, cfg.Ki, cfg.Kd, cfg.PIDDeadband),
		smoother:   AngleSmoother{DeadZone: cfg.DeadZone, MaxStep: cfg.MaxStep},
		lock:       NewLockStateMachine(cfg),
		last:       gimbal.CenterPose,
	}
}

// Step runs the detector on frame and feeds the result through Update
func (p *Pipeline) Step(frame gocv.Mat) Result {
	det, ok := p.detector.Detect(frame)
	return p.Update(det, ok, frame.Cols(), frame.Rows())
}

// Update processes one detection for a frame of the given size
func (p *Pipeline) Update(det detection.Detection, ok bool, width, height int) Result {
	cx, cy := float64(width/2), float64(height/2)
	if !ok || cx == 0 || cy == 0 {
		p.lock.Lost()
		return Result{Pose: p.last, Trigger: protocol.TriggerNone}
	}

	x, y := det.Center()
	p.xFilter.Add(x)
	p.yFilter.Add(y)
	fx, _ := p.xFilter.Filtered()
	fy, _ := p.yFilter.Filtered()

	res := Result{
		Detected:  true,
		Detection: det,
		FilteredX: fx,
		FilteredY: fy,
		ErrX:      (fx - cx) / cx,
		ErrY:      (fy - cy) / cy,
		Distance:  math.Hypot(fx-cx, fy-cy),
	}

	res.PanOutput = p.panPID.Compute(res.ErrX)
	res.TiltOutput = p.tiltPID.Compute(res.ErrY)

	// Object right of center needs a smaller pan; below center a larger tilt
	kPan, kTilt := p.cfg.strengthFor(res.Distance)
	p.panFilter.Add(gimbal.CenterPose.Pan - res.PanOutput*kPan)
	p.tiltFilter.Add(gimbal.CenterPose.Tilt + res.TiltOutput*kTilt)
	targetPan, _ := p.panFilter.Filtered()
	targetTilt, _ := p.tiltFilter.Filtered()

	p.last = gimbal.Pose{
		Pan:  p.smoother.Smooth(targetPan, p.last.Pan),
		Tilt: p.smoother.Smooth(targetTilt, p.last.Tilt),
	}.Clamp()
	res.Pose = p.last

	res.Locked = p.lock.Update(LockInput{
		ErrX:     res.ErrX,
		ErrY:     res.ErrY,
		Radius:   det.Radius,
		Distance: res.Distance,
	})
	if res.Locked {
		res.Trigger = protocol.TriggerTrack
	}
	return res
}

// ResetLock clears the stability window and lock counters.
// Filters, PID history and the last pose persist across mode changes.
func (p *Pipeline) ResetLock() {
	p.lock.Reset()
}

// Pose returns the last pose the pipeline produced
func (p *Pipeline) Pose() gimbal.Pose {
	return p.last
}

// Lock exposes the lock state machine for status reporting
func (p *Pipeline) Lock() *LockStateMachine {
	return p.lock
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}
