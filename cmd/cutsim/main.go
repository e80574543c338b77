package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mlowell/cutsim/internal/orchestrator"
	"github.com/mlowell/cutsim/internal/plan"
	"github.com/mlowell/cutsim/internal/sim"
	"github.com/mlowell/cutsim/internal/store"
	"github.com/mlowell/cutsim/internal/task"
	"github.com/mlowell/cutsim/internal/viz"
	"github.com/mlowell/cutsim/internal/world"
)

// #region main

func main() {
	duration := flag.Float64("duration", 30.0, "simulation duration budget in seconds")
	objects := flag.Int("objects", 2, "number of manipuland boxes")
	seed := flag.Int64("seed", 42, "world placement seed")
	headless := flag.Bool("headless", false, "suppress the frame stream on stdout")
	animateForever := flag.Bool("animate-forever", false, "loop the playback stream after the run")
	dbPath := flag.String("db", "", "optional SQLite path to persist the run")
	flag.Parse()

	if *objects < 1 {
		fmt.Fprintln(os.Stderr, "usage: cutsim [-duration T] [-objects N] [-seed S] [-headless] [-animate-forever] [-db path]")
		os.Exit(2)
	}

	if err := run(*duration, *objects, *seed, *headless, *animateForever, *dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run

func run(duration float64, objects int, seed int64, headless, animateForever bool, dbPath string) error {
	worldCfg := world.DefaultConfig()
	worldCfg.NumObjects = objects
	worldCfg.Seed = seed

	builder := world.NewBuilder(worldCfg)
	m, x, err := builder.Build()
	if err != nil {
		return err
	}

	policy := task.NewPickAndCut(plan.NewPlanner(nil))

	simCfg := sim.DefaultConfig()
	simCfg.TableHeight = worldCfg.TableHeight
	engines := sim.NewSegmentBuilder(simCfg, builder, policy)

	orch := orchestrator.New(engines, builder, orchestrator.DefaultConfig())
	result, runErr := orch.Run(m, x, duration)

	log.Printf("[MAIN] run finished: outcome=%s t=%.3f cuts=%d segments=%d",
		result.Outcome, result.FinalTime, result.Cuts, result.History.Len())

	if dbPath != "" {
		if err := persist(dbPath, result, duration, seed, objects); err != nil {
			return err
		}
	}

	if !headless && result.History.Len() > 0 {
		v := viz.NewStreamVisualizer(os.Stdout)
		for {
			if err := viz.Play(result.History.Segments(), v); err != nil {
				return err
			}
			if !animateForever {
				break
			}
		}
	}

	return runErr
}

func persist(dbPath string, result orchestrator.RunResult, duration float64, seed int64, objects int) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.SaveRun(store.RunRecord{
		Duration:   duration,
		Seed:       seed,
		NumObjects: objects,
		Outcome:    string(result.Outcome),
		FinalTime:  result.FinalTime,
		Cuts:       result.Cuts,
		Reason:     result.Reason,
	}, result.History)
	if err != nil {
		return err
	}
	log.Printf("[MAIN] saved run %s to %s", id, dbPath)
	return nil
}

// #endregion run
