package task

import (
	"testing"

	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/plan"
	"github.com/mlowell/cutsim/internal/world"
)

// seedSolver returns the seed unchanged, keeping policy tests
// independent of IK convergence.
type seedSolver struct{}

func (seedSolver) Solve(p plan.Problem) (plan.Result, error) {
	knots := make([][]float64, len(p.Seed))
	for i := range p.Seed {
		knots[i] = append([]float64(nil), p.Seed[i]...)
	}
	return plan.Result{Knots: knots, Info: plan.InfoNominal}, nil
}

func testPolicy(t *testing.T, numObjects int) (*PickAndCut, *world.Builder, *model.KinematicModel, model.StateVector) {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.NumObjects = numObjects
	b := world.NewBuilder(cfg)
	m, x, err := b.Build()
	if err != nil {
		t.Fatalf("build world: %v", err)
	}
	p := NewPickAndCut(plan.NewPlanner(seedSolver{}))
	if err := p.Reset(m, x, 0); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return p, b, m, x
}

func TestPendingManipulands(t *testing.T) {
	bodies := []model.Body{
		{Name: "table", Parent: -1, Joint: model.Joint{Name: "w", Type: model.JointFixed}, Origin: model.Identity()},
		{Name: "manipuland_0", Parent: -1, Joint: model.Joint{Name: "m0", Type: model.JointFree}, Origin: model.Identity()},
		{Name: "manipuland_1_a", Parent: -1, Joint: model.Joint{Name: "m1a", Type: model.JointFree}, Origin: model.Identity()},
		{Name: "manipuland_1_b", Parent: -1, Joint: model.Joint{Name: "m1b", Type: model.JointFree}, Origin: model.Identity()},
		{Name: "manipuland_2", Parent: -1, Joint: model.Joint{Name: "m2", Type: model.JointFree}, Origin: model.Identity()},
	}
	m, err := model.New(bodies, nil)
	if err != nil {
		t.Fatalf("build model: %v", err)
	}

	pending := PendingManipulands(m)
	if len(pending) != 2 || pending[0] != 1 || pending[1] != 4 {
		t.Fatalf("pending = %v, want [1 4]", pending)
	}
}

func TestResetEntersIdle(t *testing.T) {
	p, _, _, _ := testPolicy(t, 1)
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase after reset = %q, want %q", p.Phase(), PhaseIdle)
	}
}

func TestUpdateStartsApproach(t *testing.T) {
	p, _, _, x := testPolicy(t, 1)

	sp, done := p.Update(0, x)
	if done {
		t.Fatal("task done with a pending manipuland")
	}
	if p.Phase() != PhaseApproach {
		t.Fatalf("phase = %q, want %q", p.Phase(), PhaseApproach)
	}
	if sp.Gripper != gripperOpen {
		t.Fatalf("gripper = %v, want open %v", sp.Gripper, gripperOpen)
	}
	if sp.Knife != knifeUp {
		t.Fatalf("knife = %v, want raised %v", sp.Knife, knifeUp)
	}
	if len(sp.Arm) != 7 {
		t.Fatalf("%d arm setpoints, want 7", len(sp.Arm))
	}
}

func TestPhaseCycle(t *testing.T) {
	p, _, _, x := testPolicy(t, 1)

	type step struct {
		t       float64
		phase   string
		gripper float64
		knife   float64
	}
	steps := []step{
		{0, PhaseApproach, gripperOpen, knifeUp},
		{2.5, PhaseGrasp, gripperClosed, knifeUp},
		{3.0, PhaseCarry, gripperClosed, knifeUp},
		{5.4, PhaseRelease, gripperOpen, knifeUp},
		{5.8, PhaseRetreat, gripperOpen, knifeUp},
		{7.3, PhaseCut, gripperOpen, knifeDown},
	}
	for _, s := range steps {
		sp, done := p.Update(s.t, x)
		if done {
			t.Fatalf("t=%.1f: task ended early", s.t)
		}
		if p.Phase() != s.phase {
			t.Fatalf("t=%.1f: phase = %q, want %q", s.t, p.Phase(), s.phase)
		}
		if sp.Gripper != s.gripper {
			t.Fatalf("t=%.1f: gripper = %v, want %v", s.t, sp.Gripper, s.gripper)
		}
		if sp.Knife != s.knife {
			t.Fatalf("t=%.1f: knife = %v, want %v", s.t, sp.Knife, s.knife)
		}
	}

	// The manipuland is still whole (no cut happened), so the cycle
	// repeats rather than finishing.
	if _, done := p.Update(8.5, x); done {
		t.Fatal("task ended with the manipuland uncut")
	}
	if p.Phase() != PhaseApproach {
		t.Fatalf("phase after cycle = %q, want %q", p.Phase(), PhaseApproach)
	}
}

func TestTaskDoneWithNoPending(t *testing.T) {
	p, _, _, x := testPolicy(t, 0)

	_, done := p.Update(0, x)
	if !done {
		t.Fatal("expected done with no manipulands")
	}
	if p.Phase() != PhaseIdle {
		t.Fatalf("phase = %q, want %q", p.Phase(), PhaseIdle)
	}
}

func TestResetAfterCutSkipsPieces(t *testing.T) {
	p, b, m, x := testPolicy(t, 1)

	target := PendingManipulands(m)[0]
	pose := m.BodyPose(x.Positions(m), target)
	newM, newX, err := b.Cut(m, x, cutting.Event{
		BodyIndex: target,
		Point:     pose.P,
		Normal:    [3]float64{1, 0, 0},
		Time:      2.0,
	})
	if err != nil {
		t.Fatalf("cut: %v", err)
	}

	if err := p.Reset(newM, newX, 2.0); err != nil {
		t.Fatalf("reset after cut: %v", err)
	}
	if _, done := p.Update(2.0, newX); !done {
		t.Fatal("expected done: both pieces carry cut suffixes")
	}
}
