package plan

import (
	"math"
	"testing"

	"github.com/mlowell/cutsim/internal/model"
)

// recordingSolver captures the problem the planner built and returns
// the seed unchanged.
type recordingSolver struct {
	problems []Problem
}

func (r *recordingSolver) Solve(p Problem) (Result, error) {
	r.problems = append(r.problems, p)
	knots := make([][]float64, len(p.Seed))
	for i, s := range p.Seed {
		knots[i] = append([]float64(nil), s...)
	}
	return Result{Knots: knots, Info: InfoNominal}, nil
}

// planarArm is a two-revolute planar chain with an end-effector frame
// at total reach 1.0.
func planarArm(t *testing.T) *model.KinematicModel {
	t.Helper()
	bodies := []model.Body{
		{
			Name:   "link1",
			Parent: -1,
			Joint:  model.Joint{Name: "j1", Type: model.JointRevolute, Axis: [3]float64{0, 0, 1}},
			Origin: model.Identity(),
		},
		{
			Name:   "link2",
			Parent: 0,
			Joint:  model.Joint{Name: "j2", Type: model.JointRevolute, Axis: [3]float64{0, 0, 1}},
			Origin: model.Translation(0.5, 0, 0),
		},
	}
	frames := []model.Frame{
		{Name: "ee", Body: 1, Offset: model.Translation(0.5, 0, 0)},
	}
	m, err := model.New(bodies, frames)
	if err != nil {
		t.Fatalf("build arm: %v", err)
	}
	return m
}

func postureConstraints(p Problem) []PostureConstraint {
	var out []PostureConstraint
	for _, c := range p.Constraints {
		if pc, ok := c.(PostureConstraint); ok {
			out = append(out, pc)
		}
	}
	return out
}

func positionConstraints(p Problem) []PositionConstraint {
	var out []PositionConstraint
	for _, c := range p.Constraints {
		if pc, ok := c.(PositionConstraint); ok {
			out = append(out, pc)
		}
	}
	return out
}

func eulerConstraints(p Problem) []EulerConstraint {
	var out []EulerConstraint
	for _, c := range p.Constraints {
		if ec, ok := c.(EulerConstraint); ok {
			out = append(out, ec)
		}
	}
	return out
}

func TestPlanToPostureProblemShape(t *testing.T) {
	m := planarArm(t)
	rec := &recordingSolver{}
	p := NewPlanner(rec)

	q0 := []float64{0.1, -0.2}
	traj, info, err := p.PlanToPosture(m, q0, []float64{0.8}, []int{0}, 3, 2.0, 4.0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if info != InfoNominal {
		t.Fatalf("info = %d, want %d", info, InfoNominal)
	}
	if traj.Start() != 4.0 || traj.End() != 6.0 {
		t.Fatalf("domain = [%v, %v], want [4, 6]", traj.Start(), traj.End())
	}

	if len(rec.problems) != 1 {
		t.Fatalf("%d solves, want 1", len(rec.problems))
	}
	prob := rec.problems[0]
	if !prob.ZeroStartVel || !prob.ZeroEndVel {
		t.Fatal("expected rest-to-rest solve")
	}
	if len(prob.Times) != 3 || prob.Times[2] != 2.0 {
		t.Fatalf("knot times = %v", prob.Times)
	}

	boxes := postureConstraints(prob)
	if len(boxes) != 3 {
		t.Fatalf("%d posture boxes, want 3", len(boxes))
	}
	// Held slot 1 frozen at q0 for the whole span.
	held := boxes[0]
	if len(held.Slots) != 1 || held.Slots[0] != 1 {
		t.Fatalf("held slots = %v, want [1]", held.Slots)
	}
	if held.Active.Start != 0 || held.Active.End != 2.0 {
		t.Fatalf("held span = %+v, want [0, 2]", held.Active)
	}
	if math.Abs((held.Lo[0]+held.Hi[0])/2-(-0.2)) > 1e-12 {
		t.Fatalf("held box center = %v, want -0.2", (held.Lo[0]+held.Hi[0])/2)
	}
	if math.Abs(held.Hi[0]-held.Lo[0]-2*HoldTol) > 1e-12 {
		t.Fatalf("held box width = %v, want %v", held.Hi[0]-held.Lo[0], 2*HoldTol)
	}
	// Controlled slot pinned at the start and final instants only.
	start, end := boxes[1], boxes[2]
	if start.Active != Instant(0) || end.Active != Instant(2.0) {
		t.Fatalf("pin spans = %+v, %+v", start.Active, end.Active)
	}
	if math.Abs((end.Lo[0]+end.Hi[0])/2-0.8) > 1e-12 {
		t.Fatalf("final pin center = %v, want 0.8", (end.Lo[0]+end.Hi[0])/2)
	}
}

func TestPlanToPostureSeedInterpolatesControlledOnly(t *testing.T) {
	m := planarArm(t)
	rec := &recordingSolver{}
	p := NewPlanner(rec)

	q0 := []float64{0, 0.5}
	if _, _, err := p.PlanToPosture(m, q0, []float64{1.0}, []int{0}, 3, 2.0, 0); err != nil {
		t.Fatalf("plan: %v", err)
	}

	prob := rec.problems[0]
	mid := prob.Seed[1]
	if math.Abs(mid[0]-0.5) > 1e-12 {
		t.Fatalf("controlled seed midpoint = %v, want 0.5", mid[0])
	}
	if math.Abs(mid[1]-0.5) > 1e-12 {
		t.Fatalf("held seed midpoint = %v, want frozen 0.5", mid[1])
	}
	for k := range prob.Nominal {
		if math.Abs(prob.Nominal[k][0]-1.0) > 1e-12 {
			t.Fatalf("nominal knot %d = %v, want target 1.0", k, prob.Nominal[k][0])
		}
	}
}

func TestPlanToPostureRejectsBadArgs(t *testing.T) {
	m := planarArm(t)
	p := NewPlanner(&recordingSolver{})

	if _, _, err := p.PlanToPosture(m, []float64{0, 0}, []float64{1, 1}, []int{0}, 3, 2.0, 0); err == nil {
		t.Fatal("expected error for target/slot count mismatch")
	}
	if _, _, err := p.PlanToPosture(m, []float64{0, 0}, []float64{1}, []int{0}, 1, 2.0, 0); err == nil {
		t.Fatal("expected error for single knot")
	}
}

func TestPlanEEPoseProblemShape(t *testing.T) {
	m := planarArm(t)
	rec := &recordingSolver{}
	p := NewPlanner(rec)

	q0 := []float64{0.1, 0.2}
	target := Pose{0.7, 0.3, 0, 0, 0, 1.0}
	q, info, err := p.PlanEEPose(m, q0, "ee", target, []int{0, 1})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if info != InfoNominal {
		t.Fatalf("info = %d", info)
	}
	if len(q) != 2 {
		t.Fatalf("posture length = %d, want 2", len(q))
	}

	prob := rec.problems[0]
	if len(prob.Times) != 1 {
		t.Fatalf("%d knots, want 1", len(prob.Times))
	}

	var minDist *MinDistanceConstraint
	for _, c := range prob.Constraints {
		if md, ok := c.(MinDistanceConstraint); ok {
			minDist = &md
		}
	}
	if minDist == nil || minDist.Distance != 0.01 {
		t.Fatalf("min distance constraint = %+v, want 0.01", minDist)
	}

	pos := positionConstraints(prob)
	if len(pos) != 1 {
		t.Fatalf("%d position boxes, want 1", len(pos))
	}
	if math.Abs(pos[0].Hi[0]-pos[0].Lo[0]-2*HoldTol) > 1e-12 {
		t.Fatalf("position box width = %v, want %v", pos[0].Hi[0]-pos[0].Lo[0], 2*HoldTol)
	}
	eul := eulerConstraints(prob)
	if len(eul) != 1 {
		t.Fatalf("%d euler boxes, want 1", len(eul))
	}
	if math.Abs((eul[0].Lo[2]+eul[0].Hi[2])/2-1.0) > 1e-12 {
		t.Fatalf("euler box yaw center = %v, want 1.0", (eul[0].Lo[2]+eul[0].Hi[2])/2)
	}
}

func TestPlanReachGraspRampTargets(t *testing.T) {
	m := planarArm(t)
	rec := &recordingSolver{}
	p := NewPlanner(rec)

	q0 := []float64{0, 0}
	reach := Pose{0.5, 0, 0.2, 0, 0, 0}
	grasp := Pose{0.5, 0, 0.0, 0, 0, 0}
	traj, _, err := p.PlanReachGrasp(m, q0, "ee", reach, grasp, []int{0, 1}, 5, 2.0, 4.0)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if traj.Start() != 0 || traj.End() != 4.0 {
		t.Fatalf("domain = [%v, %v], want [0, 4]", traj.Start(), traj.End())
	}

	prob := rec.problems[0]
	pos := positionConstraints(prob)
	// Knot times are [0, 1, 2, 3, 4]; the ramp starts one knot before
	// the first knot at or past reachTime, so knots 1..4 carry targets.
	if len(pos) != 4 {
		t.Fatalf("%d position boxes, want 4", len(pos))
	}

	zOf := func(c PositionConstraint) float64 { return (c.Lo[2] + c.Hi[2]) / 2 }
	wantZ := []float64{0.2, 0.15, 0.1, 0.05}
	for i, c := range pos {
		if math.Abs(zOf(c)-wantZ[i]) > 1e-12 {
			t.Fatalf("ramp target %d z = %v, want %v", i, zOf(c), wantZ[i])
		}
	}

	eul := eulerConstraints(prob)
	if len(eul) != 4 {
		t.Fatalf("%d euler boxes, want 4", len(eul))
	}
	if math.Abs(eul[0].Hi[0]-eul[0].Lo[0]-2*EulerRampTol) > 1e-12 {
		t.Fatalf("euler ramp width = %v, want %v", eul[0].Hi[0]-eul[0].Lo[0], 2*EulerRampTol)
	}

	// Seed and nominal stay at q0: the pose ramp drives the solve.
	for k := range prob.Seed {
		for i := range q0 {
			if prob.Seed[k][i] != q0[i] || prob.Nominal[k][i] != q0[i] {
				t.Fatalf("knot %d seed/nominal diverged from q0", k)
			}
		}
	}
}

func TestPlanReachGraspSaturatesDegenerateRamp(t *testing.T) {
	m := planarArm(t)
	rec := &recordingSolver{}
	p := NewPlanner(rec)

	reach := Pose{0.5, 0, 0.2, 0, 0, 0}
	grasp := Pose{0.5, 0, 0.0, 0, 0, 0}
	if _, _, err := p.PlanReachGrasp(m, []float64{0, 0}, "ee", reach, grasp, []int{0, 1}, 4, 3.0, 3.0); err != nil {
		t.Fatalf("plan: %v", err)
	}

	// reachTime == graspTime: every ramp knot targets the grasp pose.
	for i, c := range positionConstraints(rec.problems[0]) {
		z := (c.Lo[2] + c.Hi[2]) / 2
		if math.Abs(z-grasp[2]) > 1e-12 {
			t.Fatalf("degenerate ramp target %d z = %v, want grasp %v", i, z, grasp[2])
		}
	}
}

func TestPlanReachGraspRejectsReachAfterGrasp(t *testing.T) {
	m := planarArm(t)
	p := NewPlanner(&recordingSolver{})

	reach := Pose{0.5, 0, 0.2, 0, 0, 0}
	grasp := Pose{0.5, 0, 0.0, 0, 0, 0}
	if _, _, err := p.PlanReachGrasp(m, []float64{0, 0}, "ee", reach, grasp, []int{0, 1}, 4, 5.0, 3.0); err == nil {
		t.Fatal("expected error for reach time after grasp time")
	}
}
