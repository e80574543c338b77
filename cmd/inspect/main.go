package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mlowell/cutsim/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cutsim.db")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cutsim.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *runID != "" {
		err = runDetailMode(st, *runID, *jsonOut)
	} else {
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID     string  `json:"run_id"`
	Outcome   string  `json:"outcome"`
	FinalTime float64 `json:"final_time"`
	Duration  float64 `json:"duration"`
	Cuts      int     `json:"cuts"`
	Objects   int     `json:"objects"`
	Seed      int64   `json:"seed"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:     r.RunID,
			Outcome:   r.Outcome,
			FinalTime: r.FinalTime,
			Duration:  r.Duration,
			Cuts:      r.Cuts,
			Objects:   r.NumObjects,
			Seed:      r.Seed,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-10s  %8s  %8s  %5s  %4s  %6s  %s\n",
		"Run", "Outcome", "Final", "Budget", "Cuts", "Objs", "Seed", "Time")
	fmt.Printf("%-10s+-%-10s+-%8s+-%8s+-%5s+-%4s+-%6s+-%s\n",
		"----------", "----------", "--------", "--------", "-----", "----", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-10s  %8.3f  %8.1f  %5d  %4d  %6d  %s\n",
			shortID(r.RunID), r.Outcome, r.FinalTime, r.Duration, r.Cuts, r.Objects, r.Seed, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type segmentRow struct {
	Seq     int     `json:"seq"`
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Bodies  int     `json:"bodies"`
	Samples int     `json:"samples"`
}

type detailOutput struct {
	Run      listRow      `json:"run"`
	Reason   string       `json:"reason,omitempty"`
	Segments []segmentRow `json:"segments"`
}

func runDetailMode(st *store.Store, runID string, jsonOut bool) error {
	rec, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	segs, err := st.LoadSegments(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		Run: listRow{
			RunID:     rec.RunID,
			Outcome:   rec.Outcome,
			FinalTime: rec.FinalTime,
			Duration:  rec.Duration,
			Cuts:      rec.Cuts,
			Objects:   rec.NumObjects,
			Seed:      rec.Seed,
			CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		},
		Reason:   rec.Reason,
		Segments: make([]segmentRow, len(segs)),
	}
	for i, seg := range segs {
		out.Segments[i] = segmentRow{
			Seq:     i,
			T0:      seg.T0,
			T1:      seg.T1,
			Bodies:  len(seg.Model.Bodies()),
			Samples: len(seg.Samples),
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:      %s\n", out.Run.RunID)
	fmt.Printf("Created:  %s\n", out.Run.CreatedAt)
	fmt.Printf("Outcome:  %s\n", out.Run.Outcome)
	if out.Reason != "" {
		fmt.Printf("Reason:   %s\n", out.Reason)
	}
	fmt.Printf("Final:    %.3f of %.1f s budget\n", out.Run.FinalTime, out.Run.Duration)
	fmt.Printf("Cuts:     %d\n", out.Run.Cuts)
	fmt.Printf("World:    %d objects, seed %d\n", out.Run.Objects, out.Run.Seed)

	fmt.Printf("\nSegments:\n")
	fmt.Printf("  %-4s  %10s  %10s  %7s  %8s\n", "Seq", "T0", "T1", "Bodies", "Samples")
	for _, s := range out.Segments {
		fmt.Printf("  %-4d  %10.4f  %10.4f  %7d  %8d\n", s.Seq, s.T0, s.T1, s.Bodies, s.Samples)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
