package tracking

import (
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/teslashibe/go-gimbal/pkg/gimbal"
	"github.com/teslashibe/go-gimbal/pkg/protocol"
	"github.com/teslashibe/go-gimbal/pkg/tracking/detection"
	"gocv.io/x/gocv"
)

const (
	frameW = 640
	frameH = 480
)

var centered = detection.Detection{X: 320, Y: 240, Radius: 30}

func TestPipeline_CenteredTargetHoldsCenter(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)

	res := p.Update(centered, true, frameW, frameH)
	if !res.Detected {
		t.Fatal("expected detection")
	}
	if res.ErrX != 0 || res.ErrY != 0 || res.Distance != 0 {
		t.Errorf("errors: got ex=%v ey=%v d=%v, want 0", res.ErrX, res.ErrY, res.Distance)
	}
	if res.Pose != gimbal.CenterPose {
		t.Errorf("pose: got %+v, want %+v", res.Pose, gimbal.CenterPose)
	}
}

func TestPipeline_TargetRightPansLeft(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)

	res := p.Update(detection.Detection{X: 480, Y: 240, Radius: 25}, true, frameW, frameH)
	if res.ErrX != 0.5 {
		t.Errorf("ErrX: got %v, want 0.5", res.ErrX)
	}
	if res.PanOutput != 0.25 {
		t.Errorf("PanOutput: got %v, want 0.25 (coarse clamp)", res.PanOutput)
	}
	// Target pan 135 - 0.25*70 = 117.5, rate limited to one step
	want := gimbal.Pose{Pan: 131, Tilt: 90}
	if res.Pose != want {
		t.Errorf("pose: got %+v, want %+v", res.Pose, want)
	}
	if p.Pose() != want {
		t.Errorf("Pose(): got %+v, want %+v", p.Pose(), want)
	}
}

func TestPipeline_TargetBelowTiltsUp(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)

	res := p.Update(detection.Detection{X: 320, Y: 400, Radius: 25}, true, frameW, frameH)
	if res.Pose.Tilt <= 90 {
		t.Errorf("tilt: got %v, want > 90", res.Pose.Tilt)
	}
	if res.Pose.Pan != 135 {
		t.Errorf("pan: got %v, want 135", res.Pose.Pan)
	}
}

func TestPipeline_LostTargetKeepsPose(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)
	p.Update(detection.Detection{X: 600, Y: 100, Radius: 25}, true, frameW, frameH)
	before := p.Pose()

	res := p.Update(detection.Detection{}, false, frameW, frameH)
	if res.Detected || res.Locked || res.Trigger != protocol.TriggerNone {
		t.Errorf("lost result: %+v", res)
	}
	if res.Pose != before {
		t.Errorf("pose changed on lost target: got %+v, want %+v", res.Pose, before)
	}

	u := res.Update()
	if u.Pose != nil || u.Trigger != protocol.TriggerNone {
		t.Errorf("lost update: got %+v, want nil pose and no trigger", u)
	}
}

func TestPipeline_LocksOnSteadyCenteredTarget(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)

	for frame := 1; frame <= 20; frame++ {
		if res := p.Update(centered, true, frameW, frameH); res.Locked {
			t.Fatalf("locked early at frame %d", frame)
		}
	}
	res := p.Update(centered, true, frameW, frameH)
	if !res.Locked || res.Trigger != protocol.TriggerTrack {
		t.Fatalf("expected lock on frame 21, got %+v", res)
	}

	u := res.Update()
	if u.Pose == nil || *u.Pose != res.Pose || u.Trigger != protocol.TriggerTrack {
		t.Errorf("update: got %+v", u)
	}
}

func TestPipeline_LostTargetResetsLock(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)
	for i := 0; i < 25; i++ {
		p.Update(centered, true, frameW, frameH)
	}

	p.Update(detection.Detection{}, false, frameW, frameH)
	if p.Lock().TriggerCounter() != 0 || p.Lock().StableFrames() != 0 {
		t.Error("expected lock counters reset after a miss")
	}
	if res := p.Update(centered, true, frameW, frameH); res.Locked {
		t.Error("lock must rebuild after a miss")
	}
}

func TestPipeline_ResetLockKeepsPose(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)
	for i := 0; i < 5; i++ {
		p.Update(detection.Detection{X: 100, Y: 100, Radius: 25}, true, frameW, frameH)
	}
	before := p.Pose()

	p.ResetLock()
	if p.Pose() != before {
		t.Error("ResetLock must not move the gimbal")
	}
	if p.Lock().WindowLen() != 0 {
		t.Error("ResetLock must clear the stability window")
	}
}

func TestPipeline_DegenerateFrameIsLost(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)
	res := p.Update(centered, true, 1, 0)
	if res.Detected {
		t.Error("expected a zero-size frame to be treated as no detection")
	}
}

func TestPipeline_PoseAlwaysInRange(t *testing.T) {
	p := NewPipeline(DefaultConfig(), nil)
	rng := rand.New(rand.NewSource(7))
	prev := p.Pose()

	for i := 0; i < 5000; i++ {
		det := detection.Detection{
			X:      rng.Float64()*1040 - 200,
			Y:      rng.Float64()*880 - 200,
			Radius: rng.Float64() * 60,
		}
		res := p.Update(det, rng.Intn(5) != 0, frameW, frameH)

		if !res.Pose.InRange() {
			t.Fatalf("step %d: pose out of range %+v", i, res.Pose)
		}
		if math.Abs(res.Pose.Pan-prev.Pan) > 4+1e-9 || math.Abs(res.Pose.Tilt-prev.Tilt) > 4+1e-9 {
			t.Fatalf("step %d: moved more than one step: %+v -> %+v", i, prev, res.Pose)
		}
		prev = res.Pose
	}
}

func TestPipeline_Step(t *testing.T) {
	det := detection.NewColorDetector(detection.DefaultConfig())
	defer det.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), frameH, frameW, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Circle(&frame, image.Pt(320, 240), 30, color.RGBA{R: 255, A: 255}, -1)

	p := NewPipeline(DefaultConfig(), det)
	res := p.Step(frame)
	if !res.Detected {
		t.Fatal("expected the red disk to be detected")
	}
	if math.Abs(res.Detection.X-320) > 1 || math.Abs(res.Detection.Y-240) > 1 {
		t.Errorf("detection: got (%.1f, %.1f), want (320, 240)", res.Detection.X, res.Detection.Y)
	}
	if res.Distance > 2 {
		t.Errorf("distance: got %v, want ~0", res.Distance)
	}
}
