package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/config"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/logging"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/store"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region main

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	dbPath := flag.String("db", env.DBPath, "path to the run database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail")
	steps := flag.Bool("steps", false, "include the per-step log in run detail")
	del := flag.String("delete", "", "delete a run and its step log")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/delphi.db [--last N] [--run id [--steps]] [--delete id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *del != "":
		err = st.DeleteRun(*del)
		if err == nil {
			fmt.Printf("deleted %s\n", *del)
		}
	case *runID != "":
		err = runDetailMode(st, *runID, *steps, *jsonOut)
	default:
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
	RunID     string `json:"run_id"`
	Label     string `json:"label,omitempty"`
	Seed      uint32 `json:"seed"`
	Reason    string `json:"reason,omitempty"`
	Steps     int    `json:"steps"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
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

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[len(runs)-1-i] = listRow{
			RunID:     r.RunID,
			Label:     r.Label,
			Seed:      r.Seed,
			Reason:    string(r.Reason),
			Steps:     r.Steps,
			Error:     r.Err,
			CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-12s  %10s  %-18s  %5s  %s\n", "Run", "Label", "Seed", "Reason", "Steps", "Time")
	fmt.Printf("%-10s+-%-12s+-%10s+-%-18s+-%5s+-%s\n",
		"----------", "------------", "----------", "------------------", "-----", "--------------------")
	for _, r := range rows {
		reason := r.Reason
		if r.Error != "" {
			reason = "failed"
		}
		fmt.Printf("%-10s  %-12s  %10d  %-18s  %5d  %s\n",
			shortID(r.RunID), orDash(r.Label), r.Seed, orDash(reason), r.Steps, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailEvent struct {
	Token     int     `json:"token"`
	Event     string  `json:"event"`
	Age       float64 `json:"age"`
	Generated bool    `json:"generated"`
}

type detailStep struct {
	Step        int     `json:"step"`
	Token       int     `json:"token"`
	ElapsedDays float64 `json:"elapsed_days"`
	Candidates  int     `json:"candidates"`
}

type detailOutput struct {
	RunID     string        `json:"run_id"`
	Label     string        `json:"label,omitempty"`
	CreatedAt string        `json:"created_at"`
	Seed      uint32        `json:"seed"`
	MaxSteps  int           `json:"max_steps"`
	WindowYrs float64       `json:"max_age_years"`
	NoRepeat  bool          `json:"no_repeat"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Steps     int           `json:"steps"`
	Events    []detailEvent `json:"events"`
	StepLog   []detailStep  `json:"step_log,omitempty"`
}

func runDetailMode(st *store.Store, runID string, withSteps, jsonOut bool) error {
	rec, err := st.GetRun(runID)
	if err != nil {
		return err
	}

	out := detailOutput{
		RunID:     rec.RunID,
		Label:     rec.Label,
		CreatedAt: rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Seed:      rec.Config.Seed,
		MaxSteps:  rec.Config.MaxSteps,
		WindowYrs: rec.Config.MaxAgeYears,
		NoRepeat:  rec.Config.NoRepeat,
		Reason:    string(rec.Reason),
		Error:     rec.Err,
		Steps:     rec.Steps,
	}
	for _, e := range rec.Input {
		out.Events = append(out.Events, detailEvent{Token: int(e.Token), Event: e.EventName, Age: vocab.DaysToYears(e.AgeDays, 2)})
	}
	for _, e := range rec.Generated {
		out.Events = append(out.Events, detailEvent{Token: int(e.Token), Event: e.EventName, Age: vocab.DaysToYears(e.AgeDays, 2), Generated: true})
	}

	if withSteps {
		entries, err := logging.ListSteps(st.DB(), runID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			out.StepLog = append(out.StepLog, detailStep{
				Step:        e.Step,
				Token:       int(e.Token),
				ElapsedDays: e.ElapsedDays,
				Candidates:  e.Candidates,
			})
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Run:        %s\n", out.RunID)
	fmt.Printf("Label:      %s\n", orDash(out.Label))
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Seed:       %d\n", out.Seed)
	fmt.Printf("Window:     %.1f years, max %d steps, no-repeat=%v\n", out.WindowYrs, out.MaxSteps, out.NoRepeat)
	if out.Error != "" {
		fmt.Printf("Failed:     %s\n", out.Error)
	} else {
		fmt.Printf("Stopped:    %s after %d steps\n", out.Reason, out.Steps)
	}

	fmt.Printf("\nTrajectory:\n")
	for _, e := range out.Events {
		mark := " "
		if e.Generated {
			mark = "*"
		}
		fmt.Printf("  %s %8.2f  %s\n", mark, e.Age, e.Event)
	}

	if len(out.StepLog) > 0 {
		fmt.Printf("\nStep log:\n")
		fmt.Printf("  %4s  %6s  %12s  %s\n", "Step", "Token", "Elapsed (d)", "Candidates")
		for _, s := range out.StepLog {
			fmt.Printf("  %4d  %6d  %12.2f  %d\n", s.Step, s.Token, s.ElapsedDays, s.Candidates)
		}
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

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion output
