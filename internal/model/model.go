// Package model describes jointed rigid-body topologies and their
// generalized state.
//
// A KinematicModel is immutable for the lifetime of one simulation
// segment. A cut event never mutates a model; it produces a successor
// model, and the orchestrator swaps which one is live.
package model

import (
	"fmt"
	"math"
)

// #region joints

// JointType enumerates the supported joint kinds.
type JointType string

const (
	JointFixed     JointType = "fixed"
	JointRevolute  JointType = "revolute"
	JointPrismatic JointType = "prismatic"
	// JointFree is a 6-dof floating joint: x, y, z, roll, pitch, yaw.
	JointFree JointType = "free"
)

// PositionCount returns the number of generalized position slots for the type.
func (jt JointType) PositionCount() int {
	switch jt {
	case JointRevolute, JointPrismatic:
		return 1
	case JointFree:
		return 6
	default:
		return 0
	}
}

// VelocityCount returns the number of generalized velocity slots for the type.
func (jt JointType) VelocityCount() int {
	return jt.PositionCount()
}

// Joint connects a body to its parent.
type Joint struct {
	Name string    `json:"name"`
	Type JointType `json:"type"`
	// Axis is the rotation/translation axis for single-dof joints,
	// expressed in the joint frame. Ignored for fixed and free joints.
	Axis [3]float64 `json:"axis"`
	// LimitLo and LimitHi bound each position slot. Zero-valued limits
	// on both sides mean unbounded.
	LimitLo []float64 `json:"limit_lo,omitempty"`
	LimitHi []float64 `json:"limit_hi,omitempty"`
}

// #endregion joints

// #region bodies-frames

// Body is one rigid link of the model tree.
type Body struct {
	Name string `json:"name"`
	// Parent is the index of the parent body, or -1 for bodies attached
	// to the world.
	Parent int   `json:"parent"`
	Joint  Joint `json:"joint"`
	// Origin is the joint frame expressed in the parent body frame.
	Origin Transform `json:"origin"`
	// Dims are full box extents for box-shaped bodies; all-zero otherwise.
	Dims [3]float64 `json:"dims"`
	Mass float64    `json:"mass"`
}

// Frame is a named reference frame rigidly attached to a body.
type Frame struct {
	Name   string    `json:"name"`
	Body   int       `json:"body"`
	Offset Transform `json:"offset"`
}

// #endregion bodies-frames

// #region model

// KinematicModel is an immutable description of a jointed rigid-body
// topology: bodies in tree order, named frames, and the layout of the
// generalized position/velocity vector.
type KinematicModel struct {
	bodies []Body
	frames []Frame

	posStart []int // per body, first position slot (-1 if none)
	velStart []int // per body, first velocity slot (-1 if none)
	nq       int
	nv       int
}

// New builds a model from bodies (in tree order: parents before children)
// and frames. It validates parent indices and frame attachments.
func New(bodies []Body, frames []Frame) (*KinematicModel, error) {
	m := &KinematicModel{
		bodies:   append([]Body(nil), bodies...),
		frames:   append([]Frame(nil), frames...),
		posStart: make([]int, len(bodies)),
		velStart: make([]int, len(bodies)),
	}
	for i, b := range bodies {
		if b.Parent >= i {
			return nil, fmt.Errorf("body %q: parent index %d not before child %d", b.Name, b.Parent, i)
		}
		if b.Parent < -1 {
			return nil, fmt.Errorf("body %q: invalid parent index %d", b.Name, b.Parent)
		}
		np := b.Joint.Type.PositionCount()
		if np > 0 {
			m.posStart[i] = m.nq
			m.velStart[i] = m.nv
		} else {
			m.posStart[i] = -1
			m.velStart[i] = -1
		}
		m.nq += np
		m.nv += b.Joint.Type.VelocityCount()
	}
	for _, f := range frames {
		if f.Body < 0 || f.Body >= len(bodies) {
			return nil, fmt.Errorf("frame %q: body index %d out of range", f.Name, f.Body)
		}
	}
	return m, nil
}

// PositionCount returns the length of the generalized position vector.
func (m *KinematicModel) PositionCount() int { return m.nq }

// VelocityCount returns the length of the generalized velocity vector.
func (m *KinematicModel) VelocityCount() int { return m.nv }

// NumBodies returns the number of bodies.
func (m *KinematicModel) NumBodies() int { return len(m.bodies) }

// Body returns the body at index i.
func (m *KinematicModel) Body(i int) Body { return m.bodies[i] }

// Bodies returns a copy of the body list.
func (m *KinematicModel) Bodies() []Body { return append([]Body(nil), m.bodies...) }

// Frames returns a copy of the frame list.
func (m *KinematicModel) Frames() []Frame { return append([]Frame(nil), m.frames...) }

// BodyIndex returns the index of the named body.
func (m *KinematicModel) BodyIndex(name string) (int, error) {
	for i, b := range m.bodies {
		if b.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("body %q not in model", name)
}

// FrameByName returns the named frame.
func (m *KinematicModel) FrameByName(name string) (Frame, error) {
	for _, f := range m.frames {
		if f.Name == name {
			return f, nil
		}
	}
	return Frame{}, fmt.Errorf("frame %q not in model", name)
}

// PositionSlots returns the half-open position slot range [start, start+n)
// owned by body i. n is zero for fixed bodies.
func (m *KinematicModel) PositionSlots(i int) (start, n int) {
	n = m.bodies[i].Joint.Type.PositionCount()
	if n == 0 {
		return 0, 0
	}
	return m.posStart[i], n
}

// VelocitySlots returns the half-open velocity slot range owned by body i.
func (m *KinematicModel) VelocitySlots(i int) (start, n int) {
	n = m.bodies[i].Joint.Type.VelocityCount()
	if n == 0 {
		return 0, 0
	}
	return m.velStart[i], n
}

// JointPositionIndex returns the position slot of a named single-dof joint.
func (m *KinematicModel) JointPositionIndex(jointName string) (int, error) {
	for i, b := range m.bodies {
		if b.Joint.Name != jointName {
			continue
		}
		if b.Joint.Type.PositionCount() != 1 {
			return 0, fmt.Errorf("joint %q is not single-dof", jointName)
		}
		return m.posStart[i], nil
	}
	return 0, fmt.Errorf("joint %q not in model", jointName)
}

// JointLimits returns per-position-slot lower and upper bounds.
// Slots without declared limits are unbounded.
func (m *KinematicModel) JointLimits() (lo, hi []float64) {
	lo = make([]float64, m.nq)
	hi = make([]float64, m.nq)
	for i := range lo {
		lo[i] = math.Inf(-1)
		hi[i] = math.Inf(1)
	}
	for bi, b := range m.bodies {
		start, n := m.PositionSlots(bi)
		for k := 0; k < n && k < len(b.Joint.LimitLo) && k < len(b.Joint.LimitHi); k++ {
			if b.Joint.LimitLo[k] != 0 || b.Joint.LimitHi[k] != 0 {
				lo[start+k] = b.Joint.LimitLo[k]
				hi[start+k] = b.Joint.LimitHi[k]
			}
		}
	}
	return lo, hi
}

// #endregion model

// #region kinematics

// jointTransform computes the pose contributed by body i's joint at
// configuration q (the full position vector).
func (m *KinematicModel) jointTransform(i int, q []float64) Transform {
	b := m.bodies[i]
	switch b.Joint.Type {
	case JointRevolute:
		return RotAxisAngle(b.Joint.Axis, q[m.posStart[i]])
	case JointPrismatic:
		d := q[m.posStart[i]]
		return Translation(b.Joint.Axis[0]*d, b.Joint.Axis[1]*d, b.Joint.Axis[2]*d)
	case JointFree:
		s := m.posStart[i]
		t := RotRPY(q[s+3], q[s+4], q[s+5])
		t.P = [3]float64{q[s], q[s+1], q[s+2]}
		return t
	default:
		return Identity()
	}
}

// BodyPose computes the world pose of body i at configuration q.
func (m *KinematicModel) BodyPose(q []float64, i int) Transform {
	pose := m.bodies[i].Origin.Mul(m.jointTransform(i, q))
	if p := m.bodies[i].Parent; p >= 0 {
		return m.BodyPose(q, p).Mul(pose)
	}
	return pose
}

// FramePose computes the world pose of a named frame at configuration q.
func (m *KinematicModel) FramePose(q []float64, frameName string) (Transform, error) {
	f, err := m.FrameByName(frameName)
	if err != nil {
		return Transform{}, err
	}
	return m.BodyPose(q, f.Body).Mul(f.Offset), nil
}

// #endregion kinematics
