// Package sim defines the physics-engine boundary and an in-repo
// fixed-step servo engine so runs work end to end without an external
// physics process.
package sim

import (
	"fmt"

	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/task"
)

// #region outcome

// OutcomeKind is the closed set of ways a simulation segment can end.
type OutcomeKind string

const (
	// OutcomeCompleted: the requested span elapsed with no interrupt.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeCut: the cut guard raised a structured interrupt.
	OutcomeCut OutcomeKind = "cut"
	// OutcomeDiverged: the state went non-finite; partial samples are
	// still valid.
	OutcomeDiverged OutcomeKind = "diverged"
	// OutcomeStopped: the task policy signalled completion (or an
	// external stop); a normal alternate terminal outcome, not an error.
	OutcomeStopped OutcomeKind = "stopped"
)

// Sample is one 60 Hz tap of the engine's state and effort output ports.
type Sample struct {
	Time   float64           `json:"time"`
	State  model.StateVector `json:"state"`
	Effort []float64         `json:"effort,omitempty"`
}

// Outcome describes how a segment run ended.
type Outcome struct {
	Kind       OutcomeKind
	FinalTime  float64
	FinalState model.StateVector
	// Cut is set iff Kind == OutcomeCut.
	Cut *cutting.Event
	// Samples are the segment's sampled trajectory, including the
	// initial state at t0.
	Samples []Sample
	Reason  string
}

// Engine advances a model-bound simulation from a state and start time
// toward an end time. Engines are bound 1:1 to a topology and must be
// rebuilt after every cut.
type Engine interface {
	Run(x model.StateVector, t0, tEnd float64) (Outcome, error)
}

// #endregion outcome

// #region config

// Config parameterizes the servo engine.
type Config struct {
	// Timestep is the integration step.
	Timestep float64
	// SampleRate is the output-port logging rate in Hz.
	SampleRate float64
	// ServoTau is the first-order tracking time constant for actuated
	// joints.
	ServoTau float64
	// ContactStiffness converts blade penetration depth to force.
	ContactStiffness float64
	// Gravity is the free-body downward acceleration.
	Gravity float64
	// TableHeight is the resting surface for free bodies.
	TableHeight float64
	// GripAttachRadius is the max end-effector distance at which a
	// closed gripper captures a free body.
	GripAttachRadius float64
	// EEFrame and BladeFrame name the gripper and blade tip frames in
	// the bound model.
	EEFrame    string
	BladeFrame string
}

// DefaultConfig mirrors the reference integration settings: 1 kHz
// stepping, 60 Hz logging.
func DefaultConfig() Config {
	return Config{
		Timestep:         0.001,
		SampleRate:       60.0,
		ServoTau:         0.06,
		ContactStiffness: 5000.0,
		Gravity:          9.81,
		TableHeight:      0.75,
		GripAttachRadius: 0.12,
		EEFrame:          "arm_frame_ee",
		BladeFrame:       "blade_frame",
	}
}

// #endregion config

// #region servo-engine

// ServoEngine is the in-repo engine: actuated joints track policy
// setpoints as first-order servos, free bodies settle under gravity or
// follow the gripper when grasped, and a synthetic blade-contact pass
// feeds the cut guard every step.
type ServoEngine struct {
	config Config
	m      *model.KinematicModel
	policy task.Policy
	guard  *cutting.Guard

	fingerSlots []int
	knifeSlot   int
	bladeBody   int
	cuttable    []int

	// attachment state: body index -> grip offset in the ee frame
	attached map[int]model.Transform
}

// NewServoEngine binds an engine to a model, policy, and guard. The
// binding is 1:1 with the topology; after a cut a fresh engine must be
// built against the successor model.
func NewServoEngine(config Config, m *model.KinematicModel, policy task.Policy, guard *cutting.Guard, bladeBody int, cuttable []int, fingerSlots []int, knifeSlot int) *ServoEngine {
	return &ServoEngine{
		config:      config,
		m:           m,
		policy:      policy,
		guard:       guard,
		fingerSlots: fingerSlots,
		knifeSlot:   knifeSlot,
		bladeBody:   bladeBody,
		cuttable:    cuttable,
		attached:    make(map[int]model.Transform),
	}
}

// Run advances the simulation from (x, t0) toward tEnd, returning on
// completion, cut interrupt, divergence, or policy stop.
func (e *ServoEngine) Run(x model.StateVector, t0, tEnd float64) (Outcome, error) {
	if err := x.CheckShape(e.m); err != nil {
		return Outcome{}, fmt.Errorf("engine: %w", err)
	}
	dt := e.config.Timestep
	samplePeriod := 1.0 / e.config.SampleRate

	cur := x.Clone()
	t := t0
	samples := []Sample{{Time: t, State: cur.Clone()}}
	nextSample := t + samplePeriod

	for t < tEnd {
		sp, done := e.policy.Update(t, cur)
		if done {
			return Outcome{
				Kind:       OutcomeStopped,
				FinalTime:  t,
				FinalState: cur,
				Samples:    samples,
				Reason:     "task complete",
			}, nil
		}

		effort := e.step(cur, sp, dt)
		t += dt

		if !cur.Finite() {
			return Outcome{
				Kind:       OutcomeDiverged,
				FinalTime:  t,
				FinalState: cur,
				Samples:    samples,
				Reason:     "non-finite state",
			}, nil
		}

		if ev := e.guard.Check(t, e.bladeContacts(cur)); ev != nil {
			samples = append(samples, Sample{Time: t, State: cur.Clone(), Effort: effort})
			return Outcome{
				Kind:       OutcomeCut,
				FinalTime:  t,
				FinalState: cur,
				Cut:        ev,
				Samples:    samples,
			}, nil
		}

		if t >= nextSample-1e-12 {
			samples = append(samples, Sample{Time: t, State: cur.Clone(), Effort: effort})
			nextSample += samplePeriod
		}
	}

	return Outcome{
		Kind:       OutcomeCompleted,
		FinalTime:  tEnd,
		FinalState: cur,
		Samples:    samples,
	}, nil
}

// step integrates one timestep in place and returns the actuation
// effort vector for logging.
func (e *ServoEngine) step(x model.StateVector, sp task.Setpoints, dt float64) []float64 {
	q := x.Positions(e.m)
	v := x.Velocities(e.m)
	effort := make([]float64, e.m.VelocityCount())

	// Actuated joints: first-order tracking toward the setpoint.
	track := func(slot int, desired float64) {
		vel := (desired - q[slot]) / e.config.ServoTau
		q[slot] += vel * dt
		// Single-dof joints share position/velocity slot layout.
		v[slot] = vel
		effort[slot] = vel / e.config.ServoTau
	}
	for slot, desired := range sp.Arm {
		track(slot, desired)
	}
	for _, slot := range e.fingerSlots {
		track(slot, sp.Gripper)
	}
	track(e.knifeSlot, sp.Knife)

	e.updateAttachments(x, sp)

	// Free bodies: follow the gripper when attached, otherwise settle
	// under gravity onto the table.
	eePose, _ := e.m.FramePose(q, e.config.EEFrame)
	for bi := 0; bi < e.m.NumBodies(); bi++ {
		if e.m.Body(bi).Joint.Type != model.JointFree {
			continue
		}
		s, _ := e.m.PositionSlots(bi)
		vs, _ := e.m.VelocitySlots(bi)
		if offset, ok := e.attached[bi]; ok {
			pose := eePose.Mul(offset)
			roll, pitch, yaw := pose.RPY()
			q[s], q[s+1], q[s+2] = pose.P[0], pose.P[1], pose.P[2]
			q[s+3], q[s+4], q[s+5] = roll, pitch, yaw
			for k := 0; k < 6; k++ {
				v[vs+k] = 0
			}
			continue
		}
		rest := e.config.TableHeight + e.m.Body(bi).Dims[2]/2
		if q[s+2] > rest {
			v[vs+2] -= e.config.Gravity * dt
			q[s+2] += v[vs+2] * dt
		}
		if q[s+2] <= rest {
			q[s+2] = rest
			v[vs+2] = 0
		}
	}

	return effort
}

// updateAttachments captures free bodies near the end effector when the
// gripper closes and releases them when it opens.
func (e *ServoEngine) updateAttachments(x model.StateVector, sp task.Setpoints) {
	q := x.Positions(e.m)
	closed := sp.Gripper < 0.02

	if !closed {
		for bi := range e.attached {
			delete(e.attached, bi)
		}
		return
	}

	eePose, err := e.m.FramePose(q, e.config.EEFrame)
	if err != nil {
		return
	}
	for bi := 0; bi < e.m.NumBodies(); bi++ {
		if e.m.Body(bi).Joint.Type != model.JointFree {
			continue
		}
		if _, ok := e.attached[bi]; ok {
			continue
		}
		pose := e.m.BodyPose(q, bi)
		dx := pose.P[0] - eePose.P[0]
		dy := pose.P[1] - eePose.P[1]
		dz := pose.P[2] - eePose.P[2]
		if dx*dx+dy*dy+dz*dz <= e.config.GripAttachRadius*e.config.GripAttachRadius {
			e.attached[bi] = eePose.Inverse().Mul(pose)
		}
	}
}

// bladeContacts synthesizes contact samples between the blade tip and
// cuttable boxes: penetration of the tip below a box top, inside its
// footprint, produces a downward force proportional to depth.
func (e *ServoEngine) bladeContacts(x model.StateVector) []cutting.Contact {
	q := x.Positions(e.m)
	tip, err := e.m.FramePose(q, e.config.BladeFrame)
	if err != nil {
		return nil
	}

	var contacts []cutting.Contact
	for _, bi := range e.cuttable {
		if bi >= e.m.NumBodies() {
			continue
		}
		body := e.m.Body(bi)
		pose := e.m.BodyPose(q, bi)
		top := pose.P[2] + body.Dims[2]/2
		if tip.P[2] >= top {
			continue
		}
		if absf(tip.P[0]-pose.P[0]) > body.Dims[0]/2 || absf(tip.P[1]-pose.P[1]) > body.Dims[1]/2 {
			continue
		}
		pen := top - tip.P[2]
		contacts = append(contacts, cutting.Contact{
			Body:   bi,
			Point:  [3]float64{tip.P[0], tip.P[1], top - pen/2},
			Force:  [3]float64{0, 0, -e.config.ContactStiffness * pen},
			Normal: [3]float64{0, 0, 1},
		})
	}
	return contacts
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// #endregion servo-engine
