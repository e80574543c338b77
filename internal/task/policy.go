// Package task decides what the manipulator, gripper, and knife should
// pursue next, streaming setpoints to the downstream controllers.
package task

import (
	"strings"

	"github.com/mlowell/cutsim/internal/model"
)

// #region contract

// Setpoints are the targets emitted for the downstream controllers:
// desired arm joint positions (by position slot), gripper aperture, and
// knife joint angle.
type Setpoints struct {
	Arm     map[int]float64
	Gripper float64
	Knife   float64
}

// Policy is the task state machine contract. Implementations must be
// re-instantiable from scratch against a new model after a cut via
// Reset, discarding phase state but keeping whatever high-level task
// progress must persist across the topology change.
type Policy interface {
	// Reset binds the policy to a (possibly new) model and posture at
	// simulation time t.
	Reset(m *model.KinematicModel, x model.StateVector, t float64) error
	// Update returns the current setpoints and whether the whole task
	// is complete. It may replan internally; it is never called
	// concurrently.
	Update(t float64, x model.StateVector) (Setpoints, bool)
	// Phase names the policy's current phase for logging.
	Phase() string
}

// #endregion contract

// #region helpers

// PendingManipulands returns the indices of manipuland bodies that have
// not yet been cut (cut pieces carry an _a/_b suffix).
func PendingManipulands(m *model.KinematicModel) []int {
	var out []int
	for i := 0; i < m.NumBodies(); i++ {
		name := m.Body(i).Name
		if strings.HasPrefix(name, "manipuland_") &&
			!strings.HasSuffix(name, "_a") && !strings.HasSuffix(name, "_b") {
			out = append(out, i)
		}
	}
	return out
}

// #endregion helpers
