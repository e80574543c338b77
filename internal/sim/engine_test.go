package sim

import (
	"math"
	"testing"

	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/task"
	"github.com/mlowell/cutsim/internal/world"
)

// holdPolicy emits fixed setpoints, with an optional completion time.
type holdPolicy struct {
	arm     map[int]float64
	gripper float64
	knife   float64
	doneAt  float64
}

func (p *holdPolicy) Reset(m *model.KinematicModel, x model.StateVector, t float64) error {
	return nil
}

func (p *holdPolicy) Update(t float64, x model.StateVector) (task.Setpoints, bool) {
	sp := task.Setpoints{Arm: p.arm, Gripper: p.gripper, Knife: p.knife}
	if p.doneAt > 0 && t >= p.doneAt {
		return sp, true
	}
	return sp, false
}

func (p *holdPolicy) Phase() string { return "hold" }

func testEngine(t *testing.T, policy task.Policy) (*world.Builder, *model.KinematicModel, model.StateVector, Engine) {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.NumObjects = 1
	b := world.NewBuilder(cfg)
	m, x, err := b.Build()
	if err != nil {
		t.Fatalf("build world: %v", err)
	}
	engine, err := NewSegmentBuilder(DefaultConfig(), b, policy).Build(m, x, 0, 0)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return b, m, x, engine
}

func holdAt(m *model.KinematicModel, x model.StateVector, t *testing.T) map[int]float64 {
	t.Helper()
	slots, err := world.ControlledArmSlots(m)
	if err != nil {
		t.Fatalf("arm slots: %v", err)
	}
	arm := make(map[int]float64, len(slots))
	for _, s := range slots {
		arm[s] = x.Positions(m)[s]
	}
	return arm
}

func TestEngineCompletesSpan(t *testing.T) {
	var policy holdPolicy
	_, m, x, engine := testEngine(t, &policy)
	policy.arm = holdAt(m, x, t)
	policy.gripper = 0.05

	out, err := engine.Run(x, 0, 0.1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("outcome = %s (%s), want completed", out.Kind, out.Reason)
	}
	if out.FinalTime != 0.1 {
		t.Fatalf("final time = %v, want 0.1", out.FinalTime)
	}
	if len(out.Samples) < 2 {
		t.Fatalf("%d samples, want at least initial + one tap", len(out.Samples))
	}
	if out.Samples[0].Time != 0 {
		t.Fatalf("first sample at %v, want 0", out.Samples[0].Time)
	}
	for i := 1; i < len(out.Samples); i++ {
		if out.Samples[i].Time <= out.Samples[i-1].Time {
			t.Fatalf("sample times not increasing at %d", i)
		}
	}
}

func TestEngineStopsWhenPolicyDone(t *testing.T) {
	var policy holdPolicy
	_, m, x, engine := testEngine(t, &policy)
	policy.arm = holdAt(m, x, t)
	policy.gripper = 0.05
	policy.doneAt = 0.05

	out, err := engine.Run(x, 0, 1.0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeStopped {
		t.Fatalf("outcome = %s, want stopped", out.Kind)
	}
	if out.FinalTime < 0.05 || out.FinalTime > 0.06 {
		t.Fatalf("final time = %v, want ~0.05", out.FinalTime)
	}
}

func TestEngineDetectsDivergence(t *testing.T) {
	var policy holdPolicy
	_, m, x, engine := testEngine(t, &policy)
	policy.arm = holdAt(m, x, t)
	policy.gripper = 0.05

	bad := x.Clone()
	bad[0] = math.NaN()

	out, err := engine.Run(bad, 0, 1.0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeDiverged {
		t.Fatalf("outcome = %s, want diverged", out.Kind)
	}
	if out.FinalTime >= 1.0 {
		t.Fatalf("divergence not detected before span end: %v", out.FinalTime)
	}
	if len(out.Samples) == 0 {
		t.Fatal("expected partial samples up to the divergence")
	}
}

func TestEngineRaisesCutOnBladePress(t *testing.T) {
	var policy holdPolicy
	b, m, x, engine := testEngine(t, &policy)
	policy.arm = holdAt(m, x, t)
	policy.gripper = 0.05
	policy.knife = -0.22

	// Park the manipuland directly under the blade.
	target := b.Cuttable[0]
	s, _ := m.PositionSlots(target)
	q := x.Positions(m)
	q[s], q[s+1], q[s+2] = 0.6, 0.45, 0.78
	q[s+3], q[s+4], q[s+5] = 0, 0, 0

	out, err := engine.Run(x, 0, 3.0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCut {
		t.Fatalf("outcome = %s (%s), want cut", out.Kind, out.Reason)
	}
	if out.Cut == nil || out.Cut.BodyIndex != target {
		t.Fatalf("cut event = %+v, want body %d", out.Cut, target)
	}
	// The blade presses well past the threshold early; the debounce
	// window (0.5 s from segment start) gates the detection time.
	if out.Cut.Time < 0.5 || out.Cut.Time > 0.6 {
		t.Fatalf("cut time = %v, want just past the 0.5 s debounce", out.Cut.Time)
	}
	if out.FinalTime != out.Cut.Time {
		t.Fatalf("final time %v != cut time %v", out.FinalTime, out.Cut.Time)
	}
}

func TestEngineGripperAttachment(t *testing.T) {
	var policy holdPolicy
	b, m, x, engine := testEngine(t, &policy)
	policy.arm = holdAt(m, x, t)
	policy.gripper = 0.0 // closed

	// Park the manipuland at the end effector so the closed gripper
	// captures it.
	ee, err := m.FramePose(x.Positions(m), world.EEFrame)
	if err != nil {
		t.Fatalf("ee pose: %v", err)
	}
	target := b.Cuttable[0]
	s, _ := m.PositionSlots(target)
	q := x.Positions(m)
	q[s], q[s+1], q[s+2] = ee.P[0], ee.P[1], ee.P[2]

	out, err := engine.Run(x, 0, 0.2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", out.Kind)
	}

	// An attached body follows the gripper instead of falling.
	finalQ := out.FinalState.Positions(m)
	dz := math.Abs(finalQ[s+2] - ee.P[2])
	if dz > 0.01 {
		t.Fatalf("attached body dropped %.4f from the gripper", dz)
	}
}
