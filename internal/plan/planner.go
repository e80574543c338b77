package plan

import (
	"fmt"
	"log"

	"github.com/mlowell/cutsim/internal/model"
)

// #region planner

// HoldTol is the posture tolerance band for held joints and pinned
// instants, in radians/metres.
const HoldTol = 0.01

// Pose is a 6-dof world pose target: x, y, z, roll, pitch, yaw.
type Pose [6]float64

// Lerp interpolates element-wise between a and b by factor f in [0, 1].
func (a Pose) Lerp(b Pose, f float64) Pose {
	var out Pose
	for i := range out {
		out[i] = a[i]*(1-f) + b[i]*f
	}
	return out
}

// Planner produces joint trajectories via the constrained solver.
type Planner struct {
	solver Solver
}

// NewPlanner wraps a solver. A nil solver selects the in-repo DLS solver.
func NewPlanner(solver Solver) *Planner {
	if solver == nil {
		solver = NewDLSSolver()
	}
	return &Planner{solver: solver}
}

// #endregion planner

// #region plan-to-posture

// PlanToPosture produces a rest-to-rest joint trajectory from q0 toward
// the target values qf on the controlled position slots, holding every
// other slot at its q0 value for the whole span.
//
// qf is indexed parallel to controlled. The returned trajectory's domain
// is exactly [startTime, startTime+duration]. The solver's info code is
// returned as-is; treat anything but InfoNominal as unreliable.
func (p *Planner) PlanToPosture(
	m *model.KinematicModel,
	q0 []float64,
	qf []float64,
	controlled []int,
	knotCount int,
	duration float64,
	startTime float64,
) (*Trajectory, int, error) {
	if len(qf) != len(controlled) {
		return nil, 0, fmt.Errorf("plan posture: %d targets for %d controlled slots", len(qf), len(controlled))
	}
	if knotCount < 2 {
		return nil, 0, fmt.Errorf("plan posture: need at least 2 knots, got %d", knotCount)
	}
	held := complementSlots(m.PositionCount(), controlled)

	lo, hi := m.JointLimits()
	q0 = clampToLimits(q0, lo, hi)
	qfFull := append([]float64(nil), q0...)
	for i, slot := range controlled {
		v := qf[i]
		if v < lo[slot] {
			v = lo[slot]
		} else if v > hi[slot] {
			v = hi[slot]
		}
		qfFull[slot] = v
	}

	ts := linspace(0, duration, knotCount)

	constraints := []Constraint{
		// Held slots stay at q0 for the whole span.
		postureBox(held, q0, HoldTol, Span{Start: 0, End: duration}),
		// Controlled slots pinned to q0 at the start instant only.
		postureBox(controlled, q0, HoldTol, Instant(0)),
		// Controlled slots pinned to the target at the final instant only.
		postureBox(controlled, qfFull, HoldTol, Instant(duration)),
	}

	// Seed: per-knot joint-space linear interpolation, held slots frozen.
	// Feasible-adjacent, not optimal: it keeps the nonlinear solve
	// well-conditioned. Nominal is the target repeated, biasing the
	// solve toward reaching the target early.
	seed := make([][]float64, knotCount)
	nominal := make([][]float64, knotCount)
	for k, t := range ts {
		frac := t / duration
		qk := make([]float64, len(q0))
		for i := range q0 {
			qk[i] = q0[i]*(1-frac) + qfFull[i]*frac
		}
		for _, slot := range held {
			qk[slot] = q0[slot]
		}
		seed[k] = qk
		nominal[k] = append([]float64(nil), qfFull...)
	}

	res, err := p.solver.Solve(Problem{
		Model:        m,
		Times:        ts,
		Seed:         seed,
		Nominal:      nominal,
		FreeSlots:    controlled,
		Constraints:  constraints,
		ZeroStartVel: true,
		ZeroEndVel:   true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("plan posture: %w", err)
	}
	if res.Info != InfoNominal {
		log.Printf("[PLAN] posture solve returned info %d (1 is nominal)", res.Info)
	}

	traj, err := NewTrajectory(ts, res.Knots, startTime, true)
	if err != nil {
		return nil, 0, fmt.Errorf("plan posture: %w", err)
	}
	return traj, res.Info, nil
}

// #endregion plan-to-posture

// #region plan-ee-pose

// PlanEEPose solves a single-instant IK: bring frame to targetPose
// (position box ±0.01, Euler box ±0.01) while holding every slot
// outside controlled at q0, with a global 0.01 minimum-separation
// constraint. Returns the solved posture and solver info.
func (p *Planner) PlanEEPose(
	m *model.KinematicModel,
	q0 []float64,
	frame string,
	targetPose Pose,
	controlled []int,
) ([]float64, int, error) {
	held := complementSlots(m.PositionCount(), controlled)

	constraints := []Constraint{
		MinDistanceConstraint{Distance: 0.01},
		postureBox(held, q0, HoldTol, Instant(0)),
		poseBoxPosition(frame, targetPose, HoldTol, Instant(0)),
		poseBoxEuler(frame, targetPose, HoldTol, Instant(0)),
	}

	res, err := p.solver.Solve(Problem{
		Model:       m,
		Times:       []float64{0},
		Seed:        [][]float64{append([]float64(nil), q0...)},
		Nominal:     [][]float64{append([]float64(nil), q0...)},
		FreeSlots:   controlled,
		Constraints: constraints,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("plan ee pose: %w", err)
	}
	if res.Info != InfoNominal {
		log.Printf("[PLAN] ee pose solve returned info %d (1 is nominal)", res.Info)
	}
	return res.Knots[0], res.Info, nil
}

// #endregion plan-ee-pose

// #region plan-reach-grasp

// EulerRampTol is the looser orientation tolerance used on the
// reach-to-grasp ramp to ease solver convergence.
const EulerRampTol = 0.05

// PlanReachGrasp produces a trajectory whose end-effector target ramps
// linearly (by knot index, not absolute time) from reachPose to
// graspPose between the knot nearest reachTime and graspTime. Held
// slots freeze at q0 for the whole span; controlled slots pin to q0 at
// time zero. Seed and nominal are both q0 at every knot: the
// end-effector ramp itself guides the solve.
func (p *Planner) PlanReachGrasp(
	m *model.KinematicModel,
	q0 []float64,
	frame string,
	reachPose, graspPose Pose,
	controlled []int,
	knotCount int,
	reachTime, graspTime float64,
) (*Trajectory, int, error) {
	if knotCount < 2 {
		return nil, 0, fmt.Errorf("plan reach-grasp: need at least 2 knots, got %d", knotCount)
	}
	if reachTime > graspTime {
		return nil, 0, fmt.Errorf("plan reach-grasp: reach time %.3f after grasp time %.3f", reachTime, graspTime)
	}
	held := complementSlots(m.PositionCount(), controlled)

	ts := linspace(0, graspTime, knotCount)

	// Knot just before the first knot at or past reachTime.
	reachStart := 0
	for i, t := range ts {
		if t >= reachTime {
			reachStart = i - 1
			break
		}
	}
	if reachStart < 0 {
		reachStart = 0
	}

	constraints := []Constraint{
		postureBox(held, q0, HoldTol, Span{Start: 0, End: graspTime}),
		postureBox(controlled, q0, HoldTol, Instant(0)),
	}

	denom := knotCount - reachStart
	for i := reachStart; i < knotCount; i++ {
		f := float64(i-reachStart) / float64(denom)
		if reachTime >= graspTime {
			// Degenerate ramp: target the grasp pose directly.
			f = 1
		}
		target := reachPose.Lerp(graspPose, f)
		constraints = append(constraints,
			poseBoxPosition(frame, target, HoldTol, Instant(ts[i])),
			poseBoxEuler(frame, target, EulerRampTol, Instant(ts[i])),
		)
	}

	seed := make([][]float64, knotCount)
	nominal := make([][]float64, knotCount)
	for k := range ts {
		seed[k] = append([]float64(nil), q0...)
		nominal[k] = append([]float64(nil), q0...)
	}

	res, err := p.solver.Solve(Problem{
		Model:        m,
		Times:        ts,
		Seed:         seed,
		Nominal:      nominal,
		FreeSlots:    controlled,
		Constraints:  constraints,
		ZeroStartVel: true,
		ZeroEndVel:   true,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("plan reach-grasp: %w", err)
	}
	if res.Info != InfoNominal {
		log.Printf("[PLAN] reach-grasp solve returned info %d (1 is nominal)", res.Info)
	}

	traj, err := NewTrajectory(ts, res.Knots, 0, true)
	if err != nil {
		return nil, 0, fmt.Errorf("plan reach-grasp: %w", err)
	}
	return traj, res.Info, nil
}

// #endregion plan-reach-grasp

// #region helpers

func poseBoxPosition(frame string, target Pose, tol float64, active Span) PositionConstraint {
	return PositionConstraint{
		Frame:  frame,
		Lo:     [3]float64{target[0] - tol, target[1] - tol, target[2] - tol},
		Hi:     [3]float64{target[0] + tol, target[1] + tol, target[2] + tol},
		Active: active,
	}
}

func poseBoxEuler(frame string, target Pose, tol float64, active Span) EulerConstraint {
	return EulerConstraint{
		Frame:  frame,
		Lo:     [3]float64{target[3] - tol, target[4] - tol, target[5] - tol},
		Hi:     [3]float64{target[3] + tol, target[4] + tol, target[5] + tol},
		Active: active,
	}
}

// complementSlots returns all position slots not in subset, ascending.
func complementSlots(nq int, subset []int) []int {
	in := make(map[int]bool, len(subset))
	for _, s := range subset {
		in[s] = true
	}
	var out []int
	for i := 0; i < nq; i++ {
		if !in[i] {
			out = append(out, i)
		}
	}
	return out
}

func clampToLimits(q, lo, hi []float64) []float64 {
	out := append([]float64(nil), q...)
	for i := range out {
		if out[i] < lo[i] {
			out[i] = lo[i]
		} else if out[i] > hi[i] {
			out[i] = hi[i]
		}
	}
	return out
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}

// #endregion helpers
