package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mlowell/cutsim/internal/replay"
	"github.com/mlowell/cutsim/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cutsim.db")
	runID := flag.String("run", "", "run ID to export (default latest)")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/cutsim.db --out path/to/fixture.json [--run id]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, runID, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(1)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs found in %s", dbPath)
		}
		runID = runs[0].RunID
	}

	rec, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	segs, err := st.LoadSegments(runID)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("run %s has no segments", runID)
	}

	fixture, err := buildFixture(rec, segs)
	if err != nil {
		return err
	}

	if err := replay.WriteFixture(fixture, outPath); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d segments, %d cuts)\n",
		outPath, len(fixture.Expected.Segments), len(fixture.Cuts))
	return nil
}

// buildFixture reconstructs the scripted cut schedule from the stored
// segment boundaries. The cut target is recovered from the piece body
// appended by the transform; the cut point is the target's recorded
// position at the boundary.
func buildFixture(rec store.RunRecord, segs []replay.Segment) (*replay.Fixture, error) {
	var cuts []replay.FixtureCut
	expected := make([]replay.FixtureSegment, len(segs))

	for i, seg := range segs {
		expected[i] = replay.FixtureSegment{
			T0:     seg.T0,
			T1:     seg.T1,
			Bodies: len(seg.Model.Bodies()),
		}
		if i == len(segs)-1 {
			break
		}

		next := segs[i+1]
		bodies := next.Model.Bodies()
		pieceName := bodies[len(bodies)-1].Name
		targetName := strings.TrimSuffix(pieceName, "_b")
		if targetName == pieceName {
			return nil, fmt.Errorf("segment %d boundary: body %q is not a cut piece", i, pieceName)
		}
		target, err := seg.Model.BodyIndex(targetName)
		if err != nil {
			return nil, fmt.Errorf("segment %d boundary: %w", i, err)
		}

		cut := replay.FixtureCut{
			Time:   seg.T1,
			Body:   target,
			Normal: [3]float64{1, 0, 0},
		}
		if len(seg.Samples) > 0 {
			last := seg.Samples[len(seg.Samples)-1]
			pose := seg.Model.BodyPose(last.State.Positions(seg.Model), target)
			cut.Point = pose.P
		}
		cuts = append(cuts, cut)
	}

	return &replay.Fixture{
		Description: fmt.Sprintf("Exported from run %s: %d cuts over %.1fs", rec.RunID, len(cuts), rec.Duration),
		World: replay.FixtureWorld{
			NumObjects: rec.NumObjects,
			Seed:       rec.Seed,
		},
		Duration: rec.Duration,
		Cuts:     cuts,
		Expected: replay.FixtureExpected{
			Outcome:  rec.Outcome,
			Cuts:     rec.Cuts,
			Segments: expected,
		},
	}, nil
}

// #endregion export
