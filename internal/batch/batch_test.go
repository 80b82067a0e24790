package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region helpers

func simContext(t *testing.T) trajectory.SimulationContext {
	t.Helper()
	v, err := vocab.New([]vocab.Entry{
		{Token: 0, Name: "Padding"},
		{Token: 1, Name: "Age"},
		{Token: 2, Name: "Male"},
		{Token: 3, Name: "Female"},
		{Token: 4, Name: "B01 Varicella [chickenpox]"},
		{Token: 5, Name: "I10 Essential (primary) hypertension"},
		{Token: 6, Name: "E11 Type 2 diabetes mellitus"},
		{Token: 7, Name: "Death"},
	})
	if err != nil {
		t.Fatalf("vocab: %v", err)
	}
	return trajectory.SimulationContext{Vocab: v, Scorer: scorer.NewSynthetic(v.Size(), 3, -9, -7, 0.02)}
}

func baseConfig() trajectory.Config {
	cfg := trajectory.DefaultConfig()
	cfg.TerminationTokens = []vocab.Token{7}
	return cfg
}

func patients() []trajectory.Input {
	return []trajectory.Input{
		{History: []trajectory.RecordedEvent{{EventName: "Male", AgeYears: 0}}, CurrentAge: 40},
		{History: []trajectory.RecordedEvent{{EventName: "Female", AgeYears: 0}, {EventName: "B01 Varicella [chickenpox]", AgeYears: 6}}, CurrentAge: 30},
	}
}

func tokensOf(r trajectory.Result) []vocab.Token {
	out := make([]vocab.Token, len(r.Generated))
	for i, e := range r.Generated {
		out[i] = e.Token
	}
	return out
}

// #endregion helpers

func TestExpand(t *testing.T) {
	jobs := Expand([]string{"a", "b"}, patients(), []uint32{1, 2, 3})
	if len(jobs) != 6 {
		t.Fatalf("expected 6 jobs, got %d", len(jobs))
	}
	if jobs[0].Label != "a" || jobs[0].Seed != 1 || jobs[3].Label != "b" || jobs[3].Seed != 1 {
		t.Errorf("unexpected order: %+v", jobs)
	}

	jobs = Expand(nil, patients(), []uint32{9})
	if jobs[1].Label != "" {
		t.Errorf("expected empty label, got %q", jobs[1].Label)
	}
}

func TestRun_OrderAndSeeds(t *testing.T) {
	sc := simContext(t)
	jobs := Expand([]string{"a", "b"}, patients(), []uint32{1, 2, 3, 4})

	items, err := Run(context.Background(), sc, baseConfig(), jobs, Config{Concurrency: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != len(jobs) {
		t.Fatalf("expected %d items, got %d", len(jobs), len(items))
	}
	for i, it := range items {
		if it.Err != nil {
			t.Fatalf("item %d: %v", i, it.Err)
		}
		if it.Job.Seed != jobs[i].Seed || it.Job.Label != jobs[i].Label {
			t.Errorf("item %d out of order: %+v", i, it.Job)
		}
		if it.Result.Seed != jobs[i].Seed || it.Config.Seed != jobs[i].Seed {
			t.Errorf("item %d: expected seed %d, got result %d config %d", i, jobs[i].Seed, it.Result.Seed, it.Config.Seed)
		}
	}
}

func TestRun_IndependentOfConcurrency(t *testing.T) {
	sc := simContext(t)
	jobs := Expand(nil, patients(), []uint32{11, 12, 13, 14, 15})

	serial, err := Run(context.Background(), sc, baseConfig(), jobs, Config{Concurrency: 1})
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	parallel, err := Run(context.Background(), sc, baseConfig(), jobs, Config{Concurrency: 8})
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	for i := range jobs {
		a, b := tokensOf(serial[i].Result), tokensOf(parallel[i].Result)
		if len(a) != len(b) {
			t.Fatalf("job %d: %v vs %v", i, a, b)
		}
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("job %d step %d: %d vs %d", i, j, a[j], b[j])
			}
		}
		if serial[i].Result.Reason != parallel[i].Result.Reason {
			t.Errorf("job %d: reason %s vs %s", i, serial[i].Result.Reason, parallel[i].Result.Reason)
		}
	}
}

func TestRun_FailureIsolated(t *testing.T) {
	sc := simContext(t)
	inputs := patients()
	inputs = append(inputs, trajectory.Input{
		History:    []trajectory.RecordedEvent{{EventName: "Z99 Not in vocabulary", AgeYears: 3}},
		CurrentAge: 10,
	})
	jobs := Expand(nil, inputs, []uint32{5})

	items, err := Run(context.Background(), sc, baseConfig(), jobs, Config{Concurrency: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if items[0].Err != nil || items[1].Err != nil {
		t.Fatalf("valid jobs failed: %v, %v", items[0].Err, items[1].Err)
	}
	var ne *vocab.UnknownNameError
	if !errors.As(items[2].Err, &ne) {
		t.Fatalf("expected UnknownNameError, got %v", items[2].Err)
	}

	s := Summarize(items)
	if s.Total != 3 || s.Failed != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	n := 0
	for _, c := range s.ByReason {
		n += c
	}
	if n != 2 {
		t.Errorf("expected 2 terminated runs, got %d", n)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxSteps = -1
	items, err := Run(context.Background(), simContext(t), cfg, Expand(nil, patients(), []uint32{1}), Config{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var ve *trajectory.ValidationError
	for i, it := range items {
		if !errors.As(it.Err, &ve) {
			t.Errorf("item %d: expected ValidationError, got %v", i, it.Err)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := Run(ctx, simContext(t), baseConfig(), Expand(nil, patients(), []uint32{1, 2}), Config{Concurrency: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for i, it := range items {
		if !errors.Is(it.Err, context.Canceled) {
			t.Errorf("item %d: expected cancellation, got %v", i, it.Err)
		}
	}
}
