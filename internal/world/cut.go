package world

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
)

// #region errors

// ErrNotCuttable reports a cut event targeting a body outside the
// registered cuttable set. This is a fatal configuration error: a
// detected cut must never be silently ignored.
var ErrNotCuttable = errors.New("cut target is not a registered cuttable body")

// minPieceExtent is the smallest box extent a cut may produce along the
// split axis; thinner cuts clamp to it.
const minPieceExtent = 0.005

// #endregion errors

// #region cut

// Cut performs the topology transform for one cut event: the target box
// is split in two across the cut plane, producing a successor model and
// a state re-expressed in the successor's coordinates.
//
// Piece A replaces the cut body in place; piece B is appended at the
// end of the body list. Every body unaffected by the cut keeps its
// position and velocity values verbatim (remapping, not recomputation).
func (b *Builder) Cut(m *model.KinematicModel, x model.StateVector, ev cutting.Event) (*model.KinematicModel, model.StateVector, error) {
	if err := x.CheckShape(m); err != nil {
		return nil, nil, fmt.Errorf("cut: %w", err)
	}
	if !b.isCuttable(ev.BodyIndex) {
		return nil, nil, fmt.Errorf("cut body %d: %w", ev.BodyIndex, ErrNotCuttable)
	}
	target := m.Body(ev.BodyIndex)
	if target.Joint.Type != model.JointFree {
		return nil, nil, fmt.Errorf("cut body %q is not a free body: %w", target.Name, ErrNotCuttable)
	}

	q := x.Positions(m)
	pose := m.BodyPose(q, ev.BodyIndex)

	// Express the cut plane in the body frame and split along the
	// dominant axis of the local normal.
	inv := pose.Inverse()
	localPt := inv.Apply(ev.Point)
	localN := inv.ApplyRotation(ev.Normal)
	axis := dominantAxis(localN)

	half := target.Dims[axis] / 2
	split := localPt[axis]
	if split < -half+minPieceExtent {
		split = -half + minPieceExtent
	} else if split > half-minPieceExtent {
		split = half - minPieceExtent
	}

	// Piece A spans [-half, split], piece B spans [split, half] along
	// the split axis; both keep the other two extents.
	dimsA, dimsB := target.Dims, target.Dims
	dimsA[axis] = split + half
	dimsB[axis] = half - split
	centerA := [3]float64{}
	centerB := [3]float64{}
	centerA[axis] = (split - half) / 2
	centerB[axis] = (split + half) / 2

	bodies := m.Bodies()
	bodies[ev.BodyIndex].Name = target.Name + "_a"
	bodies[ev.BodyIndex].Dims = dimsA
	bodies[ev.BodyIndex].Mass = target.Mass * dimsA[axis] / (2 * half)
	bodies = append(bodies, model.Body{
		Name:   target.Name + "_b",
		Parent: -1,
		Joint: model.Joint{
			Name: target.Joint.Name + "_b",
			Type: model.JointFree,
		},
		Origin: model.Identity(),
		Dims:   dimsB,
		Mass:   target.Mass * dimsB[axis] / (2 * half),
	})

	newModel, err := model.New(bodies, m.Frames())
	if err != nil {
		return nil, nil, fmt.Errorf("cut: rebuild model: %w", err)
	}

	newX := remapState(m, newModel, x, ev.BodyIndex, pose, centerA, centerB)

	b.Cuttable = append(b.Cuttable, newModel.NumBodies()-1)
	log.Printf("[WORLD] cut %q at t=%.4f into %q (%.3fm) and %q (%.3fm)",
		target.Name, ev.Time, target.Name+"_a", dimsA[axis], target.Name+"_b", dimsB[axis])

	return newModel, newX, nil
}

// remapState builds the successor state: unaffected slots copied
// verbatim, piece A's pose shifted by its sub-box center, piece B
// appended with its own shifted pose and the parent's velocity.
func remapState(old, next *model.KinematicModel, x model.StateVector, cutBody int, pose model.Transform, centerA, centerB [3]float64) model.StateVector {
	newX := model.NewStateVector(next)
	qOld := x.Positions(old)
	vOld := x.Velocities(old)
	qNew := newX.Positions(next)
	vNew := newX.Velocities(next)

	// Old bodies keep their slot layout: piece A reuses the cut body's
	// slots, and piece B's slots land after every existing block.
	copy(qNew[:old.PositionCount()], qOld)
	copy(vNew[:old.VelocityCount()], vOld)

	s, _ := old.PositionSlots(cutBody)
	worldA := pose.Apply(centerA)
	worldB := pose.Apply(centerB)
	roll, pitch, yaw := pose.RPY()

	qNew[s], qNew[s+1], qNew[s+2] = worldA[0], worldA[1], worldA[2]
	qNew[s+3], qNew[s+4], qNew[s+5] = roll, pitch, yaw

	bStart, _ := next.PositionSlots(next.NumBodies() - 1)
	qNew[bStart], qNew[bStart+1], qNew[bStart+2] = worldB[0], worldB[1], worldB[2]
	qNew[bStart+3], qNew[bStart+4], qNew[bStart+5] = roll, pitch, yaw

	vs, _ := old.VelocitySlots(cutBody)
	bvStart, _ := next.VelocitySlots(next.NumBodies() - 1)
	copy(vNew[bvStart:bvStart+6], vOld[vs:vs+6])

	return newX
}

func (b *Builder) isCuttable(body int) bool {
	for _, c := range b.Cuttable {
		if c == body {
			return true
		}
	}
	return false
}

func dominantAxis(v [3]float64) int {
	axis := 0
	best := math.Abs(v[0])
	for i := 1; i < 3; i++ {
		if a := math.Abs(v[i]); a > best {
			best = a
			axis = i
		}
	}
	return axis
}

// #endregion cut
