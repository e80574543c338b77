package sim

import (
	"sort"

	"github.com/mlowell/cutsim/internal/cutting"
	"github.com/mlowell/cutsim/internal/model"
)

// #region scripted-engine

// ScriptedCut is one pre-planned cut interrupt for a scripted run.
type ScriptedCut struct {
	Time   float64    `json:"time"`
	Body   int        `json:"body"`
	Point  [3]float64 `json:"point"`
	Normal [3]float64 `json:"normal"`
}

// ScriptedEngine replays a fixed schedule of cut interrupts instead of
// integrating physics: the state holds constant and the next scheduled
// cut inside the requested span interrupts the run. Used by replay
// regression fixtures and orchestrator tests.
type ScriptedEngine struct {
	m          *model.KinematicModel
	cuts       []ScriptedCut
	sampleRate float64
}

// ScriptedBuilder builds scripted engines across segments, consuming
// the shared schedule as cuts fire.
type ScriptedBuilder struct {
	cuts       []ScriptedCut
	sampleRate float64
}

// NewScriptedBuilder sorts the schedule by time. sampleRate <= 0
// selects 60 Hz.
func NewScriptedBuilder(cuts []ScriptedCut, sampleRate float64) *ScriptedBuilder {
	sorted := append([]ScriptedCut(nil), cuts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	if sampleRate <= 0 {
		sampleRate = 60.0
	}
	return &ScriptedBuilder{cuts: sorted, sampleRate: sampleRate}
}

// Build returns an engine bound to m that will fire the next scheduled
// cut after time t.
func (b *ScriptedBuilder) Build(m *model.KinematicModel, x model.StateVector, t, lastCutTime float64) (Engine, error) {
	remaining := b.cuts[:0:0]
	for _, c := range b.cuts {
		if c.Time > t {
			remaining = append(remaining, c)
		}
	}
	return &ScriptedEngine{m: m, cuts: remaining, sampleRate: b.sampleRate}, nil
}

// Run holds the state constant from t0 until either the next scripted
// cut or tEnd.
func (e *ScriptedEngine) Run(x model.StateVector, t0, tEnd float64) (Outcome, error) {
	end := tEnd
	var cut *cutting.Event
	for _, c := range e.cuts {
		if c.Time > t0 && c.Time <= tEnd {
			end = c.Time
			cut = &cutting.Event{BodyIndex: c.Body, Point: c.Point, Normal: c.Normal, Time: c.Time}
			break
		}
	}

	samples := holdSamples(x, t0, end, e.sampleRate)
	if cut != nil {
		return Outcome{
			Kind:       OutcomeCut,
			FinalTime:  end,
			FinalState: x.Clone(),
			Cut:        cut,
			Samples:    samples,
		}, nil
	}
	return Outcome{
		Kind:       OutcomeCompleted,
		FinalTime:  end,
		FinalState: x.Clone(),
		Samples:    samples,
	}, nil
}

// holdSamples produces a constant-state sample log over [t0, t1].
func holdSamples(x model.StateVector, t0, t1, rate float64) []Sample {
	period := 1.0 / rate
	var samples []Sample
	for t := t0; t < t1; t += period {
		samples = append(samples, Sample{Time: t, State: x.Clone()})
	}
	samples = append(samples, Sample{Time: t1, State: x.Clone()})
	return samples
}

// #endregion scripted-engine
