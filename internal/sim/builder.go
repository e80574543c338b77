package sim

import (
	"fmt"

	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/task"
	"github.com/mlowell/cutsim/internal/world"
)

// #region segment-builder

// SegmentBuilder assembles a fresh servo engine per simulation segment:
// guard and engine are rebuilt against the current topology, and the
// policy is reset (it keeps its own cross-cut task progress).
type SegmentBuilder struct {
	Config Config
	World  *world.Builder
	Policy task.Policy
	Guard  cutting.GuardConfig
}

// NewSegmentBuilder wires a builder with the default guard derived from
// the world's blade and cuttable set. The guard config's body indices
// are refreshed on every Build since cuts extend the cuttable set.
func NewSegmentBuilder(config Config, w *world.Builder, policy task.Policy) *SegmentBuilder {
	return &SegmentBuilder{
		Config: config,
		World:  w,
		Policy: policy,
		Guard:  cutting.DefaultGuardConfig(w.BladeBody, nil),
	}
}

// Build constructs the engine for one segment starting at time t.
func (b *SegmentBuilder) Build(m *model.KinematicModel, x model.StateVector, t, lastCutTime float64) (Engine, error) {
	if err := b.Policy.Reset(m, x, t); err != nil {
		return nil, fmt.Errorf("segment builder: %w", err)
	}

	guardCfg := b.Guard
	guardCfg.CuttingBody = b.World.BladeBody
	guardCfg.CuttableBodies = append([]int(nil), b.World.Cuttable...)
	guard := cutting.NewGuard(guardCfg, lastCutTime)

	fingerSlots := make([]int, 0, len(world.FingerJointNames))
	for _, name := range world.FingerJointNames {
		slot, err := m.JointPositionIndex(name)
		if err != nil {
			return nil, fmt.Errorf("segment builder: %w", err)
		}
		fingerSlots = append(fingerSlots, slot)
	}
	knifeSlot, err := m.JointPositionIndex(world.KnifeJointName)
	if err != nil {
		return nil, fmt.Errorf("segment builder: %w", err)
	}

	return NewServoEngine(
		b.Config, m, b.Policy, guard,
		b.World.BladeBody, guardCfg.CuttableBodies,
		fingerSlots, knifeSlot,
	), nil
}

// #endregion segment-builder
