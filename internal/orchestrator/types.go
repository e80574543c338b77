package orchestrator

import (
	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/replay"
	"github.com/mlowell/cutsim/internal/sim"
)

// #region outcomes

// Outcome is the closed set of terminal results of a run. The rebuild
// loop only ever exits through one of these, which keeps termination
// auditable independently of the physics engine.
type Outcome string

const (
	// OutcomeCompleted: the duration budget elapsed.
	OutcomeCompleted Outcome = "completed"
	// OutcomeEarlyStop: the task policy (or an external stop request)
	// ended the run before the budget. A normal terminal outcome.
	OutcomeEarlyStop Outcome = "early_stop"
	// OutcomeDiverged: the state went non-finite. The run terminates
	// with a partial but still-valid history.
	OutcomeDiverged Outcome = "diverged"
	// OutcomeFatal: a topology error aborted the run.
	OutcomeFatal Outcome = "fatal"
)

// RunResult summarizes a finished run.
type RunResult struct {
	Outcome    Outcome
	FinalTime  float64
	FinalState model.StateVector
	Cuts       int
	Reason     string
	// History is the authoritative replay record: one segment per
	// topology, spans tiling [0, FinalTime].
	History *replay.Buffer
}

// #endregion outcomes

// #region collaborators

// Cutter is the topology-transform collaborator: it consumes a cut
// event exactly once and yields the successor model plus the state
// re-expressed in the successor's coordinates. It must fail loudly when
// the cut target is not a registered cuttable body.
type Cutter interface {
	Cut(m *model.KinematicModel, x model.StateVector, ev cutting.Event) (*model.KinematicModel, model.StateVector, error)
}

// EngineBuilder constructs a fresh model-bound engine for one segment.
// Everything bound to a topology (controllers, guards, loggers) is
// rebuilt here; nothing survives from the previous segment except the
// remapped state and the clock.
type EngineBuilder interface {
	Build(m *model.KinematicModel, x model.StateVector, t, lastCutTime float64) (sim.Engine, error)
}

// #endregion collaborators
