package plan

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mlowell/cutsim/internal/model"
)

// #region solver-boundary

// Solver info codes follow the convention of the constrained IK
// collaborator: InfoNominal means the solution is trustworthy, anything
// else means the result must be treated as unreliable by the caller.
const (
	InfoNominal    = 1
	InfoInfeasible = 13
)

// Problem is one constrained solve over knot points.
type Problem struct {
	Model *model.KinematicModel
	// Times are the knot times, ascending.
	Times []float64
	// Seed holds one full posture per knot, the solver's starting point.
	Seed [][]float64
	// Nominal holds one full posture per knot, shaping the cost toward
	// a preferred configuration.
	Nominal [][]float64
	// FreeSlots are the position slots the solver may adjust; all other
	// slots stay at their seed values (modulo posture clamping).
	FreeSlots   []int
	Constraints []Constraint
	// ZeroStartVel and ZeroEndVel request rest at the first/last knot.
	ZeroStartVel bool
	ZeroEndVel   bool
}

// Result carries per-knot solved postures and the solver info code.
type Result struct {
	Knots [][]float64
	Info  int
}

// Solver is the constrained IK/trajectory solver boundary.
type Solver interface {
	Solve(p Problem) (Result, error)
}

// #endregion solver-boundary

// #region dls-solver

// DLSSolver is the in-repo solver: per-knot damped-least-squares
// iteration over the model's forward kinematics, with posture boxes
// enforced by projection. It is fully deterministic: identical problems
// produce identical results.
type DLSSolver struct {
	MaxIters int
	Damping  float64
	Tol      float64
	FDStep   float64
}

// NewDLSSolver returns a solver with default iteration settings.
func NewDLSSolver() *DLSSolver {
	return &DLSSolver{
		MaxIters: 200,
		Damping:  1e-3,
		Tol:      1e-4,
		FDStep:   1e-6,
	}
}

// Solve runs the per-knot solve. Knots are independent: each knot sees
// only the constraints active at its time (the documented discretized
// approximation).
func (s *DLSSolver) Solve(p Problem) (Result, error) {
	if len(p.Times) == 0 || len(p.Seed) != len(p.Times) {
		return Result{}, fmt.Errorf("solver: %d seed knots for %d times", len(p.Seed), len(p.Times))
	}
	nq := p.Model.PositionCount()

	knots := make([][]float64, len(p.Times))
	info := InfoNominal
	for k, t := range p.Times {
		q := append([]float64(nil), p.Seed[k]...)
		if len(q) != nq {
			return Result{}, fmt.Errorf("solver: knot %d seed length %d, want %d", k, len(q), nq)
		}
		ok := s.solveKnot(p, t, q)
		if !ok {
			info = InfoInfeasible
		}
		knots[k] = q
	}

	if minDist, found := minDistanceOf(p.Constraints); found {
		for _, q := range knots {
			if !clearanceSatisfied(p.Model, q, minDist) {
				info = InfoInfeasible
			}
		}
	}

	return Result{Knots: knots, Info: info}, nil
}

// solveKnot adjusts q in place to satisfy the constraints active at t.
// Returns false if residuals remain above tolerance after MaxIters.
func (s *DLSSolver) solveKnot(p Problem, t float64, q []float64) bool {
	clampPosture(p.Constraints, t, q)

	free := p.FreeSlots
	if len(free) == 0 {
		return postureResidual(p.Constraints, t, q) <= s.Tol
	}

	for iter := 0; iter < s.MaxIters; iter++ {
		r := poseResidual(p.Model, p.Constraints, t, q)
		if r == nil {
			return true
		}
		if norm := mat.Norm(r, math.Inf(1)); norm <= s.Tol {
			return true
		}

		jac := s.poseJacobian(p.Model, p.Constraints, t, q, free)
		dq := dampedStep(jac, r, s.Damping)
		for i, slot := range free {
			q[slot] += dq.AtVec(i)
		}
		clampPosture(p.Constraints, t, q)
	}

	r := poseResidual(p.Model, p.Constraints, t, q)
	return r == nil || mat.Norm(r, math.Inf(1)) <= s.Tol
}

// poseResidual stacks the violation of every active position/Euler box
// at time t. Returns nil when no pose constraint is active.
func poseResidual(m *model.KinematicModel, cs []Constraint, t float64, q []float64) *mat.VecDense {
	var vals []float64
	for _, c := range cs {
		switch c := c.(type) {
		case PositionConstraint:
			if !c.Active.Contains(t) {
				continue
			}
			pose, err := m.FramePose(q, c.Frame)
			if err != nil {
				continue
			}
			for i := 0; i < 3; i++ {
				vals = append(vals, boxViolation(pose.P[i], c.Lo[i], c.Hi[i]))
			}
		case EulerConstraint:
			if !c.Active.Contains(t) {
				continue
			}
			pose, err := m.FramePose(q, c.Frame)
			if err != nil {
				continue
			}
			roll, pitch, yaw := pose.RPY()
			rpy := [3]float64{roll, pitch, yaw}
			for i := 0; i < 3; i++ {
				vals = append(vals, angleBoxViolation(rpy[i], c.Lo[i], c.Hi[i]))
			}
		}
	}
	if vals == nil {
		return nil
	}
	return mat.NewVecDense(len(vals), vals)
}

// poseJacobian computes d(residual)/d(q[free]) by central finite
// differences.
func (s *DLSSolver) poseJacobian(m *model.KinematicModel, cs []Constraint, t float64, q []float64, free []int) *mat.Dense {
	r0 := poseResidual(m, cs, t, q)
	rows := r0.Len()
	jac := mat.NewDense(rows, len(free), nil)
	for j, slot := range free {
		orig := q[slot]
		q[slot] = orig + s.FDStep
		rp := poseResidual(m, cs, t, q)
		q[slot] = orig - s.FDStep
		rm := poseResidual(m, cs, t, q)
		q[slot] = orig
		for i := 0; i < rows; i++ {
			jac.Set(i, j, (rp.AtVec(i)-rm.AtVec(i))/(2*s.FDStep))
		}
	}
	return jac
}

// dampedStep solves (J'J + lambda I) dq = J' r for the correction that
// reduces the residual r (residual is target minus current, so we step
// along +dq).
func dampedStep(jac *mat.Dense, r *mat.VecDense, lambda float64) *mat.VecDense {
	_, n := jac.Dims()
	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)
	for i := 0; i < n; i++ {
		jtj.Set(i, i, jtj.At(i, i)+lambda)
	}
	var jtr mat.VecDense
	jtr.MulVec(jac.T(), r)

	dq := mat.NewVecDense(n, nil)
	if err := dq.SolveVec(&jtj, &jtr); err != nil {
		// Singular step: fall back to plain gradient descent.
		dq.ScaleVec(1.0/(1.0+lambda), &jtr)
	}
	return dq
}

// clampPosture projects q into every posture box active at t.
func clampPosture(cs []Constraint, t float64, q []float64) {
	for _, c := range cs {
		pc, ok := c.(PostureConstraint)
		if !ok || !pc.Active.Contains(t) {
			continue
		}
		for i, slot := range pc.Slots {
			if q[slot] < pc.Lo[i] {
				q[slot] = pc.Lo[i]
			} else if q[slot] > pc.Hi[i] {
				q[slot] = pc.Hi[i]
			}
		}
	}
}

// postureResidual returns the worst posture box violation at t.
func postureResidual(cs []Constraint, t float64, q []float64) float64 {
	var worst float64
	for _, c := range cs {
		pc, ok := c.(PostureConstraint)
		if !ok || !pc.Active.Contains(t) {
			continue
		}
		for i, slot := range pc.Slots {
			v := math.Abs(boxViolation(q[slot], pc.Lo[i], pc.Hi[i]))
			if v > worst {
				worst = v
			}
		}
	}
	return worst
}

// boxViolation returns the signed correction needed to bring v into
// [lo, hi]; zero when already inside.
func boxViolation(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return hi - v
	}
	return 0
}

// angleBoxViolation is boxViolation with shortest-arc wrapping relative
// to the box center.
func angleBoxViolation(v, lo, hi float64) float64 {
	center := (lo + hi) / 2
	d := math.Mod(v-center+math.Pi, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	d -= math.Pi
	half := (hi - lo) / 2
	if d < -half {
		return -half - d
	}
	if d > half {
		return half - d
	}
	return 0
}

func minDistanceOf(cs []Constraint) (float64, bool) {
	for _, c := range cs {
		if md, ok := c.(MinDistanceConstraint); ok {
			return md.Distance, true
		}
	}
	return 0, false
}

// clearanceSatisfied checks pairwise body-origin separation against the
// minimum distance. A coarse proxy for the collaborator's full collision
// query; adjacent bodies in the tree are exempt.
func clearanceSatisfied(m *model.KinematicModel, q []float64, minDist float64) bool {
	n := m.NumBodies()
	poses := make([][3]float64, n)
	for i := 0; i < n; i++ {
		poses[i] = m.BodyPose(q, i).P
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.Body(j).Parent == i || m.Body(i).Parent == j {
				continue
			}
			dx := poses[i][0] - poses[j][0]
			dy := poses[i][1] - poses[j][1]
			dz := poses[i][2] - poses[j][2]
			if math.Sqrt(dx*dx+dy*dy+dz*dz) < minDist {
				return false
			}
		}
	}
	return true
}

// #endregion dls-solver
