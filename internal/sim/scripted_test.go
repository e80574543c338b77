package sim

import (
	"testing"

	"github.com/mlowell/cutsim/internal/model"
)

func TestScriptedEngineFiresNextCut(t *testing.T) {
	b := NewScriptedBuilder([]ScriptedCut{
		{Time: 2.0, Body: 3},
		{Time: 1.0, Body: 5},
	}, 0)

	x := model.StateVector{1, 2, 3}
	engine, err := b.Build(nil, x, 0, 0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := engine.Run(x, 0, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCut {
		t.Fatalf("outcome = %s, want cut", out.Kind)
	}
	// Schedule is sorted: the t=1 cut fires first despite declaration order.
	if out.Cut.BodyIndex != 5 || out.Cut.Time != 1.0 {
		t.Fatalf("cut = %+v, want body 5 at t=1", out.Cut)
	}
	if out.FinalTime != 1.0 {
		t.Fatalf("final time = %v, want 1.0", out.FinalTime)
	}
}

func TestScriptedEngineSkipsConsumedCuts(t *testing.T) {
	b := NewScriptedBuilder([]ScriptedCut{{Time: 1.0, Body: 5}, {Time: 2.0, Body: 3}}, 0)

	x := model.StateVector{0}
	engine, err := b.Build(nil, x, 1.0, 1.0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := engine.Run(x, 1.0, 10)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCut || out.Cut.Time != 2.0 {
		t.Fatalf("outcome = %s at %v, want cut at t=2", out.Kind, out.FinalTime)
	}
}

func TestScriptedEngineCompletesPastSchedule(t *testing.T) {
	b := NewScriptedBuilder([]ScriptedCut{{Time: 1.0, Body: 5}}, 0)

	x := model.StateVector{0}
	engine, err := b.Build(nil, x, 1.0, 1.0)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	out, err := engine.Run(x, 1.0, 4.0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Kind != OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", out.Kind)
	}
	if out.FinalTime != 4.0 {
		t.Fatalf("final time = %v, want 4.0", out.FinalTime)
	}
	if len(out.Samples) == 0 || out.Samples[len(out.Samples)-1].Time != 4.0 {
		t.Fatal("expected samples ending at the span end")
	}
}
