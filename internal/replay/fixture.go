package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/mlowell/cutsim/internal/sim"
	"github.com/mlowell/cutsim/internal/world"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a
// scripted cut schedule plus the segment structure the orchestrator is
// expected to produce from it.
type Fixture struct {
	Description string          `json:"description"`
	World       FixtureWorld    `json:"world"`
	Duration    float64         `json:"duration"`
	Cuts        []FixtureCut    `json:"cuts"`
	Expected    FixtureExpected `json:"expected"`
}

// FixtureWorld mirrors world.Config with JSON tags.
type FixtureWorld struct {
	NumObjects int   `json:"num_objects"`
	Seed       int64 `json:"seed"`
}

// FixtureCut mirrors sim.ScriptedCut with JSON tags.
type FixtureCut struct {
	Time   float64    `json:"time"`
	Body   int        `json:"body"`
	Point  [3]float64 `json:"point"`
	Normal [3]float64 `json:"normal"`
}

// FixtureSegment is the expected span and body count of one segment.
type FixtureSegment struct {
	T0     float64 `json:"t0"`
	T1     float64 `json:"t1"`
	Bodies int     `json:"bodies"`
}

// FixtureExpected captures the expected run outcome.
type FixtureExpected struct {
	Outcome  string           `json:"outcome"`
	Cuts     int              `json:"cuts"`
	Segments []FixtureSegment `json:"segments"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture serializes a fixture to an indented JSON file.
func WriteFixture(f *Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToWorldConfig converts the fixture world block to a domain config.
func (w *FixtureWorld) ToWorldConfig() world.Config {
	cfg := world.DefaultConfig()
	cfg.NumObjects = w.NumObjects
	cfg.Seed = w.Seed
	return cfg
}

// ToScriptedCuts converts the fixture cut schedule to domain cuts.
func (f *Fixture) ToScriptedCuts() []sim.ScriptedCut {
	cuts := make([]sim.ScriptedCut, 0, len(f.Cuts))
	for _, c := range f.Cuts {
		cuts = append(cuts, sim.ScriptedCut{
			Time: c.Time, Body: c.Body, Point: c.Point, Normal: c.Normal,
		})
	}
	return cuts
}

// #endregion fixture-loader

// #region fixture-verify

// Verify checks a finished run's outcome and history against the
// fixture's expectations. Span endpoints compare within 1e-6 since cut
// times pass through the sampling clock.
func (f *Fixture) Verify(outcome string, history *Buffer) error {
	const eps = 1e-6

	if outcome != f.Expected.Outcome {
		return fmt.Errorf("outcome %q, want %q", outcome, f.Expected.Outcome)
	}
	segs := history.Segments()
	if len(segs) != len(f.Expected.Segments) {
		return fmt.Errorf("%d segments, want %d", len(segs), len(f.Expected.Segments))
	}
	for i, want := range f.Expected.Segments {
		got := segs[i]
		if math.Abs(got.T0-want.T0) > eps || math.Abs(got.T1-want.T1) > eps {
			return fmt.Errorf("segment %d spans [%.6f, %.6f], want [%.6f, %.6f]",
				i, got.T0, got.T1, want.T0, want.T1)
		}
		if n := len(got.Model.Bodies()); n != want.Bodies {
			return fmt.Errorf("segment %d has %d bodies, want %d", i, n, want.Bodies)
		}
	}
	if err := history.CheckContiguous(0); err != nil {
		return fmt.Errorf("history not contiguous: %w", err)
	}
	return nil
}

// #endregion fixture-verify
