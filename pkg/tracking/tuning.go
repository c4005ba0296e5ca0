package tracking

import "github.com/teslashibe/go-gimbal/pkg/protocol"

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting the daemon.
type TuningParams struct {
	// PID Controller
	Kp          float64 `json:"kp"`           // Proportional gain
	Kd          float64 `json:"kd"`           // Derivative gain
	PIDDeadband float64 `json:"pid_deadband"` // Normalized error dead band

	// Angle smoothing
	DeadZone float64 `json:"dead_zone"` // Degrees
	MaxStep  float64 `json:"max_step"`  // Degrees per frame

	// Lock
	ErrorThreshold float64 `json:"error_threshold"` // Normalized error for lock
	MinLockRadius  float64 `json:"min_lock_radius"` // px
	TriggerDelay   int     `json:"trigger_delay"`   // Frames
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cfg := t.pipeline.cfg
	return TuningParams{
		Kp:             cfg.Kp,
		Kd:             cfg.Kd,
		PIDDeadband:    cfg.PIDDeadband,
		DeadZone:       cfg.DeadZone,
		MaxStep:        cfg.MaxStep,
		ErrorThreshold: cfg.ErrorThreshold,
		MinLockRadius:  cfg.MinLockRadius,
		TriggerDelay:   cfg.TriggerDelay,
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only positive values are applied. PID history and filter contents are
// kept so the gimbal does not jump.
func (t *Tracker) SetTuningParams(params TuningParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pipeline
	cfg := p.cfg

	// PID Controller
	if params.Kp > 0 {
		cfg.Kp = params.Kp
	}
	if params.Kd > 0 {
		cfg.Kd = params.Kd
	}
	if params.PIDDeadband > 0 {
		cfg.PIDDeadband = protocol.Clamp(params.PIDDeadband, 0, 0.5)
	}
	for _, pid := range []*AdaptivePID{p.panPID, p.tiltPID} {
		pid.Kp, pid.Kd, pid.Deadband = cfg.Kp, cfg.Kd, cfg.PIDDeadband
	}

	// Angle smoothing
	if params.DeadZone > 0 {
		cfg.DeadZone = params.DeadZone
	}
	if params.MaxStep > 0 {
		cfg.MaxStep = params.MaxStep
	}
	p.smoother = AngleSmoother{DeadZone: cfg.DeadZone, MaxStep: cfg.MaxStep}

	// Lock
	if params.ErrorThreshold > 0 {
		cfg.ErrorThreshold = protocol.Clamp(params.ErrorThreshold, 0, 1)
	}
	if params.MinLockRadius > 0 {
		cfg.MinLockRadius = params.MinLockRadius
	}
	if params.TriggerDelay > 0 {
		cfg.TriggerDelay = params.TriggerDelay
	}
	p.lock.cfg = cfg

	p.cfg = cfg
	t.logger.Info("tuning updated",
		"kp", cfg.Kp, "kd", cfg.Kd, "max_step", cfg.MaxStep, "trigger_delay", cfg.TriggerDelay)
}
