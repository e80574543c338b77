package task

import (
	"fmt"
	"log"

	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/plan"
	"github.com/mlowell/cutsim/internal/world"
)

// #region phases

// Phase names for the pick-and-cut cycle.
const (
	PhaseApproach = "approach"
	PhaseGrasp    = "grasp"
	PhaseCarry    = "carry"
	PhaseRelease  = "release"
	PhaseRetreat  = "retreat"
	PhaseCut      = "cut"
	PhaseIdle     = "idle"
)

const (
	gripperOpen   = 0.05
	gripperClosed = 0.0
	knifeUp       = 0.0
	knifeDown     = -0.22
)

// #endregion phases

// #region pick-and-cut

// PickAndCut cycles each pending manipuland through approach, grasp,
// carry to the guillotine slot, release, retreat, and a knife stroke.
// Topology resets discard phase state; the set of pending objects is
// re-derived from the new model, so completed work survives cuts.
type PickAndCut struct {
	planner *plan.Planner

	m          *model.KinematicModel
	home       []float64
	controlled []int
	knifeSlot  int

	phase     string
	phaseEnd  float64
	traj      *plan.Trajectory
	trajStart float64
	armHold   []float64
	gripper   float64
	knife     float64
	target    int // pending manipuland body, -1 when none
}

// NewPickAndCut creates the policy. A nil planner selects the default
// solver.
func NewPickAndCut(planner *plan.Planner) *PickAndCut {
	if planner == nil {
		planner = plan.NewPlanner(nil)
	}
	return &PickAndCut{planner: planner, target: -1}
}

// Reset binds the policy to a model and posture. Called at startup and
// after every topology change.
func (p *PickAndCut) Reset(m *model.KinematicModel, x model.StateVector, t float64) error {
	if err := x.CheckShape(m); err != nil {
		return fmt.Errorf("policy reset: %w", err)
	}
	controlled, err := world.ControlledArmSlots(m)
	if err != nil {
		return fmt.Errorf("policy reset: %w", err)
	}
	knifeSlot, err := m.JointPositionIndex(world.KnifeJointName)
	if err != nil {
		return fmt.Errorf("policy reset: %w", err)
	}

	p.m = m
	p.controlled = controlled
	p.knifeSlot = knifeSlot
	p.home = append([]float64(nil), x.Positions(m)...)
	p.phase = PhaseIdle
	p.phaseEnd = t
	p.traj = nil
	p.armHold = p.armPostureOf(x)
	p.gripper = gripperOpen
	p.knife = knifeUp
	p.target = -1
	return nil
}

// Phase names the current phase.
func (p *PickAndCut) Phase() string { return p.phase }

// Update advances the phase machine and emits setpoints. Planning only
// happens at phase entry; between transitions the stored trajectory is
// sampled.
func (p *PickAndCut) Update(t float64, x model.StateVector) (Setpoints, bool) {
	if t >= p.phaseEnd {
		done := p.advance(t, x)
		if done {
			return p.setpoints(t), true
		}
	}
	return p.setpoints(t), false
}

// advance moves to the next phase. Returns true when no pending
// manipulands remain.
func (p *PickAndCut) advance(t float64, x model.StateVector) bool {
	switch p.phase {
	case PhaseIdle, PhaseCut:
		pending := PendingManipulands(p.m)
		if len(pending) == 0 {
			p.phase = PhaseIdle
			p.phaseEnd = t + 1e9
			return true
		}
		p.target = pending[0]
		p.beginApproach(t, x)
	case PhaseApproach:
		p.phase = PhaseGrasp
		p.phaseEnd = t + 0.5
		p.gripper = gripperClosed
		p.traj = nil
		p.armHold = p.armPostureOf(x)
	case PhaseGrasp:
		p.beginCarry(t, x)
	case PhaseCarry:
		p.phase = PhaseRelease
		p.phaseEnd = t + 0.4
		p.gripper = gripperOpen
		p.traj = nil
		p.armHold = p.armPostureOf(x)
	case PhaseRelease:
		p.beginRetreat(t, x)
	case PhaseRetreat:
		p.phase = PhaseCut
		p.phaseEnd = t + 1.2
		p.knife = knifeDown
	}
	log.Printf("[TASK] t=%.3f phase=%s", t, p.phase)
	return false
}

// beginApproach plans a reach-then-grasp end-effector ramp to the
// target manipuland.
func (p *PickAndCut) beginApproach(t float64, x model.StateVector) {
	center := p.m.BodyPose(x.Positions(p.m), p.target).P
	grasp := plan.Pose{center[0], center[1], center[2] + 0.05, 0, 3.1, 0}
	reach := grasp
	reach[2] += 0.15

	traj, info, err := p.planner.PlanReachGrasp(
		p.m, x.Positions(p.m), world.EEFrame, reach, grasp,
		p.controlled, 10, 1.5, 2.5)
	if err != nil || info != plan.InfoNominal {
		log.Printf("[TASK] approach plan unreliable (info=%d err=%v), proceeding best-effort", info, err)
	}
	p.installTraj(traj, t, 2.5)
	p.phase = PhaseApproach
	p.gripper = gripperOpen
	p.knife = knifeUp
}

// beginCarry plans a ramp from above the grasp point to the guillotine
// slot and keeps the gripper closed.
func (p *PickAndCut) beginCarry(t float64, x model.StateVector) {
	slotPose, err := p.m.FramePose(x.Positions(p.m), world.BladeFrame)
	if err != nil {
		log.Printf("[TASK] carry: %v", err)
		p.phase = PhaseRelease
		p.phaseEnd = t + 0.4
		return
	}
	drop := plan.Pose{slotPose.P[0], slotPose.P[1], slotPose.P[2] + 0.06, 0, 3.1, 0}
	lift := drop
	lift[2] += 0.2

	traj, info, err := p.planner.PlanReachGrasp(
		p.m, x.Positions(p.m), world.EEFrame, lift, drop,
		p.controlled, 10, 1.2, 2.4)
	if err != nil || info != plan.InfoNominal {
		log.Printf("[TASK] carry plan unreliable (info=%d err=%v), proceeding best-effort", info, err)
	}
	p.installTraj(traj, t, 2.4)
	p.phase = PhaseCarry
}

// beginRetreat plans a posture move back to the home arm posture so the
// knife stroke happens clear of the arm.
func (p *PickAndCut) beginRetreat(t float64, x model.StateVector) {
	qf := make([]float64, len(p.controlled))
	for i, slot := range p.controlled {
		qf[i] = p.home[slot]
	}
	traj, info, err := p.planner.PlanToPosture(
		p.m, x.Positions(p.m), qf, p.controlled, 8, 1.5, 0)
	if err != nil || info != plan.InfoNominal {
		log.Printf("[TASK] retreat plan unreliable (info=%d err=%v), proceeding best-effort", info, err)
	}
	p.installTraj(traj, t, 1.5)
	p.phase = PhaseRetreat
}

// installTraj stores a trajectory whose domain starts at zero, shifted
// conceptually to now; sampling offsets by the phase start time.
func (p *PickAndCut) installTraj(traj *plan.Trajectory, now, duration float64) {
	p.traj = traj
	p.trajStart = now
	p.phaseEnd = now + duration
}

// trajSampleTime maps absolute simulation time onto the stored
// trajectory's zero-based domain.
func (p *PickAndCut) trajSampleTime(t float64) float64 {
	return t - p.trajStart
}

// setpoints samples the live trajectory (or holds the last posture) and
// pairs it with the current gripper/knife targets.
func (p *PickAndCut) setpoints(t float64) Setpoints {
	arm := make(map[int]float64, len(p.controlled))
	if p.traj != nil {
		q := p.traj.At(p.trajSampleTime(t))
		for _, slot := range p.controlled {
			arm[slot] = q[slot]
		}
	} else {
		for i, slot := range p.controlled {
			arm[slot] = p.armHold[i]
		}
	}
	return Setpoints{Arm: arm, Gripper: p.gripper, Knife: p.knife}
}

// armPostureOf captures the current arm joint values.
func (p *PickAndCut) armPostureOf(x model.StateVector) []float64 {
	q := x.Positions(p.m)
	out := make([]float64, len(p.controlled))
	for i, slot := range p.controlled {
		out[i] = q[slot]
	}
	return out
}

// #endregion pick-and-cut
