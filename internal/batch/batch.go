// Package batch fans trajectory simulations out over a bounded pool of
// goroutines. Every job owns its own run and generator, so results do not
// depend on scheduling.
package batch

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
)

// #region types

// Job is one simulation request: a labelled patient input and the seed to
// run it with.
type Job struct {
	Label string
	Seed  uint32
	Input trajectory.Input
}

// Item is the outcome of one Job. Err is set when the run failed; the other
// jobs are unaffected.
type Item struct {
	Job    Job
	Config trajectory.Config
	Result trajectory.Result
	Err    error
}

// Config controls the pool.
type Config struct {
	Concurrency int // max concurrent runs (>=1)
}

// #endregion types

// #region expand

// Expand crosses every labelled input with every seed, inputs outermost.
func Expand(labels []string, inputs []trajectory.Input, seeds []uint32) []Job {
	jobs := make([]Job, 0, len(inputs)*len(seeds))
	for i, in := range inputs {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		for _, s := range seeds {
			jobs = append(jobs, Job{Label: label, Seed: s, Input: in})
		}
	}
	return jobs
}

// #endregion expand

// #region run

// Run simulates every job with base's settings and the job's seed. Items
// come back in job order. Once ctx is done no further jobs are started; the
// items of jobs that never ran carry ctx's error and Run returns it.
func Run(ctx context.Context, sc trajectory.SimulationContext, base trajectory.Config, jobs []Job, cfg Config, opts ...trajectory.Option) ([]Item, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	items := make([]Item, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, job := range jobs {
		runCfg := base
		runCfg.Seed = job.Seed
		items[i] = Item{Job: job, Config: runCfg}

		if err := gctx.Err(); err != nil {
			items[i].Err = err
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			ctl, err := trajectory.New(sc, runCfg, opts...)
			if err != nil {
				items[i].Err = err
				return nil
			}
			res, err := ctl.Simulate(gctx, job.Input)
			items[i].Result = res
			if err != nil {
				log.Printf("[BATCH] job %d (%s, seed=%d) failed: %v", i, job.Label, job.Seed, err)
				items[i].Err = err
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return items, err
	}
	return items, nil
}

// #endregion run

// #region summary

// Summary counts outcomes per terminal reason.
type Summary struct {
	Total    int
	Failed   int
	ByReason map[trajectory.Reason]int
}

// Summarize tallies items.
func Summarize(items []Item) Summary {
	s := Summary{Total: len(items), ByReason: make(map[trajectory.Reason]int)}
	for _, it := range items {
		if it.Err != nil {
			s.Failed++
			continue
		}
		s.ByReason[it.Result.Reason]++
	}
	return s
}

// #endregion summary
