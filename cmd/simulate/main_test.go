package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/batch"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/logging"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/store"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

func TestPersist_FailedRunKeepsNoSteps(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	rec := logging.NewRecorder()
	step := trajectory.StepRecord{Step: 1, Token: 5, ElapsedDays: 100, AgeDays: 15100, Candidates: 4}
	rec.Observe("run-ok", step)
	rec.Observe("run-failed", step)

	input := []trajectory.Event{{Token: 2, EventName: "Male", AgeDays: 0}}
	persist(st, rec, batch.Item{
		Job:    batch.Job{Label: "ok", Seed: 1},
		Config: trajectory.DefaultConfig(),
		Result: trajectory.Result{
			RunID:     "run-ok",
			Seed:      1,
			Input:     input,
			Generated: []trajectory.Event{{Token: 5, EventName: "I10 Essential hypertension", AgeDays: 15100}},
			Reason:    trajectory.ReasonMaxSteps,
			Steps:     1,
		},
	})
	persist(st, rec, batch.Item{
		Job:    batch.Job{Label: "failed", Seed: 2},
		Config: trajectory.DefaultConfig(),
		Result: trajectory.Result{RunID: "run-failed", Seed: 2, Input: input},
		Err:    errors.New("scorer unavailable"),
	})

	ok, err := logging.ListSteps(st.DB(), "run-ok")
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(ok) != 1 || ok[0].Token != vocab.Token(5) {
		t.Errorf("expected the successful run's step, got %+v", ok)
	}

	failed, err := logging.ListSteps(st.DB(), "run-failed")
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed run should have no step log, got %d rows", len(failed))
	}
	if n := rec.Pending("run-failed"); n != 0 {
		t.Errorf("expected buffered steps dropped, %d left", n)
	}

	got, err := st.GetRun("run-failed")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Err == "" || len(got.Generated) != 0 {
		t.Errorf("expected failed run saved with error and no events, got %+v", got)
	}
}
