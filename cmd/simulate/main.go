package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/batch"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/config"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/logging"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/store"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/telemetry"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region main
func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	inputPath := flag.String("input", "", "patient JSON file (one object or an array)")
	labelsPath := flag.String("labels", env.LabelsPath, "vocabulary labels JSON")
	profilePath := flag.String("profile", env.ProfilePath, "simulation profile YAML")
	dbPath := flag.String("db", env.DBPath, "run database; empty disables persistence")
	scorerAddr := flag.String("scorer", env.ScorerAddr, "hazard scorer gRPC address")
	synthetic := flag.Bool("synthetic", false, "use the built-in synthetic scorer instead of gRPC")
	seedList := flag.String("seeds", "", "comma-separated seeds; defaults to the profile seed")
	concurrency := flag.Int("concurrency", env.Concurrency, "max concurrent runs")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: simulate --input patients.json [--labels labels.json] [--profile sim.yaml] [--seeds 1,2,3] [--synthetic] [--json]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, env.OTelEndpoint, "delphi-simulate")
	if err != nil {
		log.Printf("[OTEL] tracing disabled: %v", err)
	}
	defer shutdown(context.Background())

	if err := run(ctx, options{
		inputPath:   *inputPath,
		labelsPath:  *labelsPath,
		profilePath: *profilePath,
		dbPath:      *dbPath,
		scorerAddr:  *scorerAddr,
		timeout:     env.ScorerTimeout,
		synthetic:   *synthetic,
		seeds:       *seedList,
		concurrency: *concurrency,
		jsonOut:     *jsonOut,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run
type options struct {
	inputPath   string
	labelsPath  string
	profilePath string
	dbPath      string
	scorerAddr  string
	timeout     time.Duration
	synthetic   bool
	seeds       string
	concurrency int
	jsonOut     bool
}

func run(ctx context.Context, o options) error {
	v, err := vocab.LoadLabelsFile(o.labelsPath)
	if err != nil {
		return err
	}
	cfg, err := config.LoadProfile(o.profilePath)
	if err != nil {
		return err
	}
	seeds, err := parseSeeds(o.seeds, cfg.Seed)
	if err != nil {
		return err
	}

	patients, err := trajectory.LoadPatientsFile(o.inputPath)
	if err != nil {
		return err
	}
	labels := make([]string, len(patients))
	inputs := make([]trajectory.Input, len(patients))
	for i, p := range patients {
		in, err := p.Resolve(v)
		if err != nil {
			return fmt.Errorf("patient %d (%s): %w", i, p.Label, err)
		}
		labels[i], inputs[i] = p.Label, in
	}

	var sc scorer.Scorer
	if o.synthetic {
		sc = scorer.NewSynthetic(v.Size(), cfg.Seed, -12, -8, 0.05)
	} else {
		g, err := scorer.NewGRPCScorer(o.scorerAddr, o.timeout)
		if err != nil {
			return fmt.Errorf("connect scorer at %s: %w", o.scorerAddr, err)
		}
		defer g.Close()
		sc = scorer.NewRetrying(g, 200*time.Millisecond)
	}

	var st *store.Store
	rec := logging.NewRecorder()
	var opts []trajectory.Option
	if o.dbPath != "" {
		st, err = store.NewStore(o.dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
		opts = append(opts, trajectory.WithObserver(rec.Observe))
	}

	items, runErr := batch.Run(ctx, trajectory.SimulationContext{Vocab: v, Scorer: sc}, cfg,
		batch.Expand(labels, inputs, seeds), batch.Config{Concurrency: o.concurrency}, opts...)

	if st != nil {
		for _, it := range items {
			persist(st, rec, it)
		}
	}

	if o.jsonOut {
		if err := printJSON(items); err != nil {
			return err
		}
	} else {
		printTables(items)
	}
	if runErr != nil {
		return runErr
	}
	s := batch.Summarize(items)
	if s.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", s.Failed, s.Total)
	}
	return nil
}

func persist(st *store.Store, rec *logging.Recorder, it batch.Item) {
	if it.Result.RunID == "" {
		return
	}
	id, err := st.SaveRun(store.FromResult(it.Job.Label, it.Config, it.Result, it.Err))
	if err != nil {
		log.Printf("[STORE] save run %s: %v", it.Result.RunID, err)
		rec.Discard(it.Result.RunID)
		return
	}
	// Failed runs keep no events, so their steps would dangle.
	if it.Err != nil {
		rec.Discard(id)
		return
	}
	if err := rec.Flush(st.DB(), id); err != nil {
		log.Printf("[STORE] step log for %s: %v", id, err)
	}
}

func parseSeeds(list string, fallback uint32) ([]uint32, error) {
	if strings.TrimSpace(list) == "" {
		return []uint32{fallback}, nil
	}
	var seeds []uint32
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", part, err)
		}
		seeds = append(seeds, uint32(n))
	}
	return seeds, nil
}

// #endregion run

// #region output
type jsonEvent struct {
	Event string  `json:"event"`
	Age   float64 `json:"age"`
}

type jsonRun struct {
	Label     string            `json:"label,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Seed      uint32            `json:"seed"`
	Reason    trajectory.Reason `json:"reason,omitempty"`
	Error     string            `json:"error,omitempty"`
	Generated []jsonEvent       `json:"generated"`
}

func printJSON(items []batch.Item) error {
	out := make([]jsonRun, len(items))
	for i, it := range items {
		r := jsonRun{Label: it.Job.Label, RunID: it.Result.RunID, Seed: it.Job.Seed, Reason: it.Result.Reason, Generated: []jsonEvent{}}
		if it.Err != nil {
			r.Error = it.Err.Error()
		}
		for _, e := range it.Result.Generated {
			if e.Token == vocab.Padding {
				continue
			}
			r.Generated = append(r.Generated, jsonEvent{Event: e.EventName, Age: vocab.DaysToYears(e.AgeDays, 2)})
		}
		out[i] = r
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printTables(items []batch.Item) {
	for i, it := range items {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("Patient: %s  Seed: %d  Run: %s\n", orDash(it.Job.Label), it.Job.Seed, orDash(shortID(it.Result.RunID)))
		if it.Err != nil {
			fmt.Printf("  failed: %v\n", it.Err)
			continue
		}
		fmt.Printf("%8s  %s\n", "Age", "Event")
		fmt.Printf("%8s+-%s\n", "--------", "----------------------------------------")
		for _, e := range it.Result.Generated {
			if e.Token == vocab.Padding {
				continue
			}
			fmt.Printf("%8.2f  %s\n", vocab.DaysToYears(e.AgeDays, 2), e.EventName)
		}
		fmt.Printf("Stopped: %s after %d steps\n", it.Result.Reason, it.Result.Steps)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
