// Package orchestrator owns the simulate-detect-rebuild loop: run the
// physics forward, catch cut interrupts, apply the topology transform,
// splice replay history, and resume until the task finishes.
package orchestrator

import (
	"errors"
	"fmt"
	"log"

	"github.com/mlowell/cutsim/internal/model"
	"github.com/mlowell/cutsim/internal/replay"
	"github.com/mlowell/cutsim/internal/sim"
)

// #region config

// Config tunes the outer loop.
type Config struct {
	// MaxSegments bounds the rebuild loop; exceeding it means the guard
	// or transform is misbehaving (e.g. re-cutting the same body).
	MaxSegments int
	// StopRequested, when non-nil, is polled at segment boundaries for
	// cooperative cancellation. A long-running segment cannot be
	// interrupted mid-flight except by a cut or numerical failure.
	StopRequested func() bool
}

// DefaultConfig returns the default loop bounds.
func DefaultConfig() Config {
	return Config{MaxSegments: 64}
}

// #endregion config

// #region orchestrator

// ErrTopology marks fatal topology-transform failures.
var ErrTopology = errors.New("topology transform failed")

// Orchestrator drives the outer loop. It owns the single live slot for
// "current model/state"; a cut swaps the slot's contents and the old
// segment's engine is released with its scope.
type Orchestrator struct {
	engines EngineBuilder
	cutter  Cutter
	config  Config
}

// New wires an orchestrator.
func New(engines EngineBuilder, cutter Cutter, config Config) *Orchestrator {
	if config.MaxSegments <= 0 {
		config.MaxSegments = DefaultConfig().MaxSegments
	}
	return &Orchestrator{engines: engines, cutter: cutter, config: config}
}

// Run executes the loop from an initial model and matching state until
// the duration budget elapses, the task completes, the state diverges,
// or a fatal topology error occurs.
//
// On return, the history's segment spans tile [0, FinalTime] exactly.
// Position continuity holds at every cut boundary because the successor
// state is derived by remapping, never recomputation.
func (o *Orchestrator) Run(initial *model.KinematicModel, x0 model.StateVector, duration float64) (RunResult, error) {
	if err := x0.CheckShape(initial); err != nil {
		return RunResult{}, fmt.Errorf("orchestrator: %w", err)
	}

	m := initial
	x := x0.Clone()
	t := 0.0
	lastCut := 0.0
	cuts := 0
	history := replay.NewBuffer()

	for seg := 0; seg < o.config.MaxSegments; seg++ {
		if o.config.StopRequested != nil && o.config.StopRequested() {
			log.Printf("[ORCH] stop requested at t=%.4f", t)
			return RunResult{
				Outcome: OutcomeEarlyStop, FinalTime: t, FinalState: x,
				Cuts: cuts, Reason: "stop requested", History: history,
			}, nil
		}

		engine, err := o.engines.Build(m, x, t, lastCut)
		if err != nil {
			return RunResult{
				Outcome: OutcomeFatal, FinalTime: t, FinalState: x,
				Cuts: cuts, Reason: err.Error(), History: history,
			}, fmt.Errorf("orchestrator: build segment %d: %w", seg, err)
		}

		out, err := engine.Run(x, t, duration)
		if err != nil {
			return RunResult{
				Outcome: OutcomeFatal, FinalTime: t, FinalState: x,
				Cuts: cuts, Reason: err.Error(), History: history,
			}, fmt.Errorf("orchestrator: segment %d: %w", seg, err)
		}

		history.Append(m, out.Samples, t, out.FinalTime)

		switch out.Kind {
		case sim.OutcomeCompleted:
			log.Printf("[ORCH] completed at t=%.4f after %d cuts", out.FinalTime, cuts)
			return RunResult{
				Outcome: OutcomeCompleted, FinalTime: out.FinalTime,
				FinalState: out.FinalState, Cuts: cuts, History: history,
			}, nil

		case sim.OutcomeStopped:
			log.Printf("[ORCH] early stop at t=%.4f: %s", out.FinalTime, out.Reason)
			return RunResult{
				Outcome: OutcomeEarlyStop, FinalTime: out.FinalTime,
				FinalState: out.FinalState, Cuts: cuts, Reason: out.Reason,
				History: history,
			}, nil

		case sim.OutcomeDiverged:
			// Not a crash: the partial history up to the divergence
			// remains valid for playback.
			log.Printf("[ORCH] numerical divergence at t=%.4f, terminating early", out.FinalTime)
			return RunResult{
				Outcome: OutcomeDiverged, FinalTime: out.FinalTime,
				FinalState: out.FinalState, Cuts: cuts, Reason: out.Reason,
				History: history,
			}, nil

		case sim.OutcomeCut:
			log.Printf("[ORCH] handling cut event at t=%.4f (body %d)", out.FinalTime, out.Cut.BodyIndex)
			newModel, newState, err := o.cutter.Cut(m, out.FinalState, *out.Cut)
			if err != nil {
				// A detected cut that cannot be applied is a fatal
				// configuration error; ignoring it would break the
				// physical causality the run is emulating.
				return RunResult{
					Outcome: OutcomeFatal, FinalTime: out.FinalTime,
					FinalState: out.FinalState, Cuts: cuts,
					Reason: err.Error(), History: history,
				}, fmt.Errorf("orchestrator: %w: %w", ErrTopology, err)
			}
			m, x = newModel, newState
			t = out.FinalTime
			lastCut = t
			cuts++

		default:
			return RunResult{
				Outcome: OutcomeFatal, FinalTime: out.FinalTime,
				FinalState: out.FinalState, Cuts: cuts,
				Reason: fmt.Sprintf("unknown outcome %q", out.Kind), History: history,
			}, fmt.Errorf("orchestrator: unknown engine outcome %q", out.Kind)
		}
	}

	return RunResult{
		Outcome: OutcomeFatal, FinalTime: t, FinalState: x, Cuts: cuts,
		Reason: "segment limit exceeded", History: history,
	}, fmt.Errorf("orchestrator: exceeded %d segments", o.config.MaxSegments)
}

// #endregion orchestrator
