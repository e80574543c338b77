package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mlowell/cutsim/internal/orchestrator"
	"github.com/mlowell/cutsim/internal/replay"
	"github.com/mlowell/cutsim/internal/sim"
	"github.com/mlowell/cutsim/internal/store"
	"github.com/mlowell/cutsim/internal/viz"
	"github.com/mlowell/cutsim/internal/world"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cutsim.db (DB mode)")
	runID := flag.String("run", "", "run ID to play back (DB mode; default latest)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	headless := flag.Bool("headless", false, "skip the frame stream, verify only")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/cutsim.db [--run id] [--headless]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *runID, *headless)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

// runFixtureMode replays a scripted cut schedule through the full
// orchestrator loop and compares the resulting segment structure
// against the fixture's expectations.
func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	builder := world.NewBuilder(f.World.ToWorldConfig())
	m, x, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build world: %v\n", err)
		return 2
	}

	engines := sim.NewScriptedBuilder(f.ToScriptedCuts(), 0)
	orch := orchestrator.New(engines, builder, orchestrator.DefaultConfig())
	result, runErr := orch.Run(m, x, f.Duration)

	printSegments(f, result)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", runErr)
		return 1
	}
	if err := f.Verify(string(result.Outcome), result.History); err != nil {
		fmt.Printf("\nDIVERGE: %v\n", err)
		return 1
	}
	fmt.Printf("\nOK: %d segments, outcome %s\n", result.History.Len(), result.Outcome)
	return 0
}

// printSegments outputs an expected-vs-replayed comparison table.
func printSegments(f *replay.Fixture, result orchestrator.RunResult) {
	fmt.Printf("%-4s| %-22s| %-22s\n", "Seg", "Expected [t0, t1] bodies", "Replayed [t0, t1] bodies")
	fmt.Printf("%-4s+%-23s+%-23s\n", "----", "-----------------------", "-----------------------")

	segs := result.History.Segments()
	n := len(segs)
	if len(f.Expected.Segments) > n {
		n = len(f.Expected.Segments)
	}
	for i := 0; i < n; i++ {
		exp, got := "—", "—"
		if i < len(f.Expected.Segments) {
			e := f.Expected.Segments[i]
			exp = fmt.Sprintf("[%.3f, %.3f] %d", e.T0, e.T1, e.Bodies)
		}
		if i < len(segs) {
			s := segs[i]
			got = fmt.Sprintf("[%.3f, %.3f] %d", s.T0, s.T1, len(s.Model.Bodies()))
		}
		fmt.Printf("%-4d| %-22s| %-22s\n", i, exp, got)
	}
}

// #endregion fixture-mode

// #region db-mode

// runDBMode streams a stored run's frames to stdout.
func runDBMode(dbPath, runID string, headless bool) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list runs: %v\n", err)
			return 2
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "no runs found")
			return 2
		}
		runID = runs[0].RunID
	}

	rec, err := st.GetRun(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "get run: %v\n", err)
		return 2
	}
	segs, err := st.LoadSegments(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load segments: %v\n", err)
		return 2
	}

	fmt.Fprintf(os.Stderr, "run %s: outcome=%s t=%.3f cuts=%d segments=%d\n",
		rec.RunID, rec.Outcome, rec.FinalTime, rec.Cuts, len(segs))

	var v viz.Visualizer = viz.NewStreamVisualizer(os.Stdout)
	if headless {
		v = viz.NewNullVisualizer()
	}
	if err := viz.Play(segs, v); err != nil {
		fmt.Fprintf(os.Stderr, "playback: %v\n", err)
		return 1
	}
	return 0
}

// #endregion db-mode
