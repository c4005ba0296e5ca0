package tracking

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LockInput is one cycle of evidence for the lock decision
type LockInput struct {
	ErrX, ErrY float64 // Normalized error from filtered position
	Radius     float64 // Raw detection radius (px)
	Distance   float64 // Filtered center distance (px)
}

// LockStateMachine decides when the target has been centered, large and
// steady for long enough to signal a lock. It uses hysteresis: good cycles
// count up, bad cycles count down one at a time.
type LockStateMachine struct {
	cfg Config

	window         []float64 // Last StabilityWindow center distances
	stableFrames   int
	triggerCounter int
}

// NewLockStateMachine creates a machine using the lock fields of cfg
func NewLockStateMachine(cfg Config) *LockStateMachine {
	return &LockStateMachine{
		cfg:    cfg,
		window: make([]float64, 0, cfg.StabilityWindow),
	}
}

// Update feeds one detected cycle and reports whether the lock fires.
// The lock fires on every cycle while the counter is at or above the
// trigger delay.
func (l *LockStateMachine) Update(in LockInput) bool {
	if len(l.window) == l.cfg.StabilityWindow && len(l.window) > 0 {
		copy(l.window, l.window[1:])
		l.window = l.window[:len(l.window)-1]
	}
	l.window = append(l.window, in.Distance)

	if n := l.cfg.VarianceFrames; len(l.window) >= n {
		recent := l.window[len(l.window)-n:]
		if stat.PopVariance(recent, nil) < l.cfg.VarianceThreshold {
			l.stableFrames++
		} else {
			l.stableFrames = 0
		}
	}

	good := math.Abs(in.ErrX) < l.cfg.ErrorThreshold &&
		math.Abs(in.ErrY) < l.cfg.ErrorThreshold &&
		in.Radius > l.cfg.MinLockRadius &&
		l.stableFrames > l.cfg.MinStableFrames

	if good {
		l.triggerCounter++
		return l.triggerCounter >= l.cfg.TriggerDelay
	}
	if l.triggerCounter > 0 {
		l.triggerCounter--
	}
	return false
}

// Lost handles a cycle with no detection
func (l *LockStateMachine) Lost() {
	l.Reset()
}

// Reset clears the stability window and both counters
func (l *LockStateMachine) Reset() {
	l.window = l.window[:0]
	l.stableFrames = 0
	l.triggerCounter = 0
}

// StableFrames returns the consecutive low-variance cycle count
func (l *LockStateMachine) StableFrames() int {
	return l.stableFrames
}

// TriggerCounter returns the lock hysteresis counter
func (l *LockStateMachine) TriggerCounter() int {
	return l.triggerCounter
}

// WindowLen returns the number of distances in the stability window
func (l *LockStateMachine) WindowLen() int {
	return len(l.window)
}
