package model

import (
	"fmt"
	"math"
)

// #region state-vector

// StateVector is a flat generalized state: positions followed by
// velocities. Its length must always match the live model's
// PositionCount() + VelocityCount().
type StateVector []float64

// NewStateVector returns a zero state sized for m.
func NewStateVector(m *KinematicModel) StateVector {
	return make(StateVector, m.PositionCount()+m.VelocityCount())
}

// Positions returns the position block of x as a view.
func (x StateVector) Positions(m *KinematicModel) []float64 {
	return x[:m.PositionCount()]
}

// Velocities returns the velocity block of x as a view.
func (x StateVector) Velocities(m *KinematicModel) []float64 {
	return x[m.PositionCount() : m.PositionCount()+m.VelocityCount()]
}

// Clone returns a deep copy of x.
func (x StateVector) Clone() StateVector {
	out := make(StateVector, len(x))
	copy(out, x)
	return out
}

// Finite reports whether every entry is a finite number. This is the
// structured divergence check: the engine asks the state itself rather
// than inferring a blow-up from an error message.
func (x StateVector) Finite() bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CheckShape verifies that x has the length required by m.
func (x StateVector) CheckShape(m *KinematicModel) error {
	want := m.PositionCount() + m.VelocityCount()
	if len(x) != want {
		return fmt.Errorf("state length %d does not match model (%d positions + %d velocities)",
			len(x), m.PositionCount(), m.VelocityCount())
	}
	return nil
}

// #endregion state-vector
