// Package world builds the experiment scene (arm, gripper, guillotine,
// table, manipulands) and performs cut topology transforms on it.
package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/mlowell/cutsim/internal/model"
)

// #region names

// EEFrame is the end-effector frame name used by the planners.
const EEFrame = "arm_frame_ee"

// BladeFrame is the guillotine blade tip frame.
const BladeFrame = "blade_frame"

// ArmJointNames lists the manipulator's seven revolute joints in order.
var ArmJointNames = []string{
	"arm_joint_1", "arm_joint_2", "arm_joint_3", "arm_joint_4",
	"arm_joint_5", "arm_joint_6", "arm_joint_7",
}

// FingerJointNames lists the gripper's sliding joints.
var FingerJointNames = []string{
	"left_finger_sliding_joint", "right_finger_sliding_joint",
}

// KnifeJointName is the guillotine's single sliding joint.
const KnifeJointName = "knife_joint"

// #endregion names

// #region builder

// Config parameterizes world construction.
type Config struct {
	NumObjects int
	Seed       int64
	// TableHeight is the table surface z in world coordinates.
	TableHeight float64
	// ObjectSize is the full edge length of each manipuland box.
	ObjectSize float64
}

// DefaultConfig returns the reference scene configuration.
func DefaultConfig() Config {
	return Config{
		NumObjects:  2,
		Seed:        42,
		TableHeight: 0.75,
		ObjectSize:  0.06,
	}
}

// Builder constructs the initial world and tracks which bodies are
// cuttable as cuts accumulate. It is the topology-transform collaborator
// for the orchestrator.
type Builder struct {
	config Config
	rng    *rand.Rand

	// BladeBody is the guillotine blade's body index.
	BladeBody int
	// Cuttable are the body indices eligible for cutting. Cut pieces
	// are themselves cuttable and are appended here by Cut.
	Cuttable []int
}

// NewBuilder creates a builder with its own seeded RNG.
func NewBuilder(config Config) *Builder {
	return &Builder{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Build constructs the initial model and its matching initial state:
// the arm at the home posture, the gripper open, the knife raised, and
// NumObjects boxes placed on the table within reach.
func (b *Builder) Build() (*model.KinematicModel, model.StateVector, error) {
	var bodies []model.Body
	var frames []model.Frame

	// Table: fixed box under the workspace.
	bodies = append(bodies, model.Body{
		Name:   "table",
		Parent: -1,
		Joint:  model.Joint{Name: "table_weld", Type: model.JointFixed},
		Origin: model.Translation(0.6, 0, b.config.TableHeight/2),
		Dims:   [3]float64{1.2, 1.2, b.config.TableHeight},
		Mass:   0,
	})

	// Arm: seven revolute links chained from a base on the table edge.
	armAxes := [][3]float64{
		{0, 0, 1}, {0, 1, 0}, {0, 0, 1}, {0, -1, 0}, {0, 0, 1}, {0, 1, 0}, {0, 0, 1},
	}
	parent := -1
	base := model.Translation(0, 0, b.config.TableHeight)
	for i, name := range ArmJointNames {
		origin := model.Translation(0, 0, 0.16)
		if i == 0 {
			origin = base
		}
		bodies = append(bodies, model.Body{
			Name:   fmt.Sprintf("arm_link_%d", i+1),
			Parent: parent,
			Joint: model.Joint{
				Name:    name,
				Type:    model.JointRevolute,
				Axis:    armAxes[i],
				LimitLo: []float64{-2.9},
				LimitHi: []float64{2.9},
			},
			Origin: origin,
			Mass:   1.0,
		})
		parent = len(bodies) - 1
	}
	eeBody := parent
	frames = append(frames, model.Frame{
		Name:   EEFrame,
		Body:   eeBody,
		Offset: model.Translation(0, 0, 0.1),
	})

	// Gripper fingers slide on the last arm link.
	for i, name := range FingerJointNames {
		axis := [3]float64{0, 1, 0}
		if i == 1 {
			axis = [3]float64{0, -1, 0}
		}
		bodies = append(bodies, model.Body{
			Name:   fmt.Sprintf("finger_%d", i+1),
			Parent: eeBody,
			Joint: model.Joint{
				Name:    name,
				Type:    model.JointPrismatic,
				Axis:    axis,
				LimitLo: []float64{0},
				LimitHi: []float64{0.055},
			},
			Origin: model.Translation(0, 0, 0.12),
			Mass:   0.1,
		})
	}

	// Guillotine: stand welded to the table, blade sliding vertically on
	// one prismatic joint.
	bodies = append(bodies, model.Body{
		Name:   "guillotine_stand",
		Parent: 0,
		Joint:  model.Joint{Name: "guillotine_weld", Type: model.JointFixed},
		Origin: model.Translation(0, 0.45, b.config.TableHeight/2+0.15),
		Dims:   [3]float64{0.1, 0.1, 0.3},
		Mass:   0,
	})
	bodies = append(bodies, model.Body{
		Name:   "guillotine_blade",
		Parent: len(bodies) - 1,
		Joint: model.Joint{
			Name:    KnifeJointName,
			Type:    model.JointPrismatic,
			Axis:    [3]float64{0, 0, 1},
			LimitLo: []float64{-0.25},
			LimitHi: []float64{0},
		},
		Origin: model.Translation(0, 0, 0.12),
		Dims:   [3]float64{0.01, 0.15, 0.1},
		Mass:   0.5,
	})
	b.BladeBody = len(bodies) - 1
	frames = append(frames, model.Frame{
		Name:   BladeFrame,
		Body:   b.BladeBody,
		Offset: model.Translation(0, 0, -0.05),
	})

	// Manipulands: free boxes scattered on the table in front of the arm.
	b.Cuttable = b.Cuttable[:0]
	objPoses := make([][6]float64, 0, b.config.NumObjects)
	for i := 0; i < b.config.NumObjects; i++ {
		bodies = append(bodies, model.Body{
			Name:   fmt.Sprintf("manipuland_%d", i),
			Parent: -1,
			Joint:  model.Joint{Name: fmt.Sprintf("manipuland_%d_base", i), Type: model.JointFree},
			Origin: model.Identity(),
			Dims:   [3]float64{b.config.ObjectSize, b.config.ObjectSize, b.config.ObjectSize},
			Mass:   0.2,
		})
		b.Cuttable = append(b.Cuttable, len(bodies)-1)
		objPoses = append(objPoses, [6]float64{
			0.45 + 0.15*b.rng.Float64(),
			-0.25 + 0.5*b.rng.Float64(),
			b.config.TableHeight + b.config.ObjectSize/2,
			0, 0, 2 * math.Pi * b.rng.Float64(),
		})
	}

	m, err := model.New(bodies, frames)
	if err != nil {
		return nil, nil, fmt.Errorf("build world: %w", err)
	}

	x := model.NewStateVector(m)
	q := x.Positions(m)
	home := []float64{0, 0.6, 0, -1.75, 0, 1.0, 0}
	for i, name := range ArmJointNames {
		slot, err := m.JointPositionIndex(name)
		if err != nil {
			return nil, nil, err
		}
		q[slot] = home[i]
	}
	for _, name := range FingerJointNames {
		slot, err := m.JointPositionIndex(name)
		if err != nil {
			return nil, nil, err
		}
		q[slot] = 0.05
	}
	for i, pose := range objPoses {
		bi := b.Cuttable[i]
		start, _ := m.PositionSlots(bi)
		copy(q[start:start+6], pose[:])
	}

	return m, x, nil
}

// ControlledArmSlots returns the position slots of the seven arm joints.
func ControlledArmSlots(m *model.KinematicModel) ([]int, error) {
	slots := make([]int, len(ArmJointNames))
	for i, name := range ArmJointNames {
		s, err := m.JointPositionIndex(name)
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}
	return slots, nil
}

// #endregion builder
