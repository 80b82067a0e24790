package sampler

import (
	"math"
	"testing"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/rng"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

var negInf = math.Inf(-1)

func onlyCandidate(size int, tok int, score float64) []float64 {
	scores := make([]float64, size)
	for i := range scores {
		scores[i] = negInf
	}
	scores[tok] = score
	return scores
}

// #region scenario-tests
func TestSample_ForcedPick(t *testing.T) {
	scores := onlyCandidate(8, 5, 2.0)
	choice, ok := Sample(scores, []vocab.Token{1}, Options{}, &rng.Fixed{Values: []float64{0.5}})
	if !ok {
		t.Fatal("expected a candidate")
	}
	if choice.Token != 5 {
		t.Errorf("expected token 5, got %d", choice.Token)
	}
	want := -math.Exp(-2.0) * math.Log(0.5)
	if choice.Elapsed != want {
		t.Errorf("expected elapsed %v, got %v", want, choice.Elapsed)
	}
	if choice.Candidates != 1 {
		t.Errorf("expected 1 candidate, got %d", choice.Candidates)
	}
}

func TestSample_ExhaustedWhenAllIgnored(t *testing.T) {
	scores := []float64{0, 0, 1, 1}
	for seed := uint32(0); seed < 50; seed++ {
		_, ok := Sample(scores, []vocab.Token{1}, NewOptions([]vocab.Token{2, 3}, false), rng.New(seed))
		if ok {
			t.Fatalf("seed %d: expected no candidate", seed)
		}
	}
}

func TestSample_ExhaustedWhenAllNegInf(t *testing.T) {
	scores := []float64{5, 5, negInf, negInf, math.NaN()}
	if _, ok := Sample(scores, nil, Options{}, rng.New(1)); ok {
		t.Fatal("expected no candidate")
	}
}

// #endregion scenario-tests

// #region masking-tests
func TestSample_ReservedTokensNeverChosen(t *testing.T) {
	scores := []float64{math.Inf(1), math.Inf(1), -20, -20, -20}
	for seed := uint32(0); seed < 200; seed++ {
		choice, ok := Sample(scores, nil, Options{}, rng.New(seed))
		if !ok {
			t.Fatalf("seed %d: expected a candidate", seed)
		}
		if choice.Token.Reserved() {
			t.Fatalf("seed %d: sampled reserved token %d", seed, choice.Token)
		}
	}
}

func TestSample_IgnoreTokens(t *testing.T) {
	scores := []float64{0, 0, 10, -5, -5}
	opts := NewOptions([]vocab.Token{2}, false)
	for seed := uint32(0); seed < 200; seed++ {
		choice, ok := Sample(scores, nil, opts, rng.New(seed))
		if !ok {
			t.Fatal("expected a candidate")
		}
		if choice.Token == 2 {
			t.Fatalf("seed %d: ignored token sampled", seed)
		}
	}
}

func TestSample_NoRepeat(t *testing.T) {
	scores := []float64{0, 0, 10, 10, -5}
	history := []vocab.Token{1, 2, 3}
	for seed := uint32(0); seed < 200; seed++ {
		choice, ok := Sample(scores, history, Options{NoRepeat: true}, rng.New(seed))
		if !ok {
			t.Fatal("expected a candidate")
		}
		if choice.Token != 4 {
			t.Fatalf("seed %d: expected only token 4 eligible, got %d", seed, choice.Token)
		}
	}

	// Without the flag history tokens stay eligible.
	choice, _ := Sample(scores, history, Options{}, &rng.Fixed{Values: []float64{0.5}})
	if choice.Token != 2 {
		t.Errorf("expected token 2 with repeats allowed, got %d", choice.Token)
	}
}

func TestSample_OutOfRangeMaskIDsIgnored(t *testing.T) {
	scores := []float64{0, 0, 1}
	opts := NewOptions([]vocab.Token{-1, 99}, true)
	choice, ok := Sample(scores, []vocab.Token{1269}, opts, &rng.Fixed{})
	if !ok || choice.Token != 2 {
		t.Fatalf("expected token 2, got %d ok=%v", choice.Token, ok)
	}
}

// #endregion masking-tests

// #region draw-tests
func TestSample_TieBreaksOnLowestID(t *testing.T) {
	scores := []float64{0, 0, 1, 1, 1}
	choice, ok := Sample(scores, nil, Options{}, &rng.Fixed{Values: []float64{0.3}})
	if !ok || choice.Token != 2 {
		t.Fatalf("expected token 2 on tie, got %d", choice.Token)
	}
}

func TestSample_OneDrawPerCandidate(t *testing.T) {
	scores := []float64{0, 0, 1, negInf, 1, 1}
	g := rng.New(3)
	Sample(scores, []vocab.Token{2}, NewOptions([]vocab.Token{4}, true), g)
	if g.Draws() != 4 {
		t.Errorf("expected 4 draws (ids 2..5), got %d", g.Draws())
	}
}

func TestSample_DrawOrderIsAscending(t *testing.T) {
	// Higher u means a shorter wait; the largest value is pinned to id 3.
	scores := []float64{0, 0, 0, 0, 0}
	src := &rng.Fixed{Values: []float64{0.1, 0.9, 0.2}}
	choice, _ := Sample(scores, nil, Options{}, src)
	if choice.Token != 3 {
		t.Errorf("expected token 3, got %d", choice.Token)
	}
}

func TestSample_PositiveInfinityFiresImmediately(t *testing.T) {
	scores := []float64{0, 0, 3, math.Inf(1)}
	choice, ok := Sample(scores, nil, Options{}, rng.New(5))
	if !ok || choice.Token != 3 || choice.Elapsed != 0 {
		t.Errorf("expected token 3 at elapsed 0, got %+v", choice)
	}
}

func TestElapsed(t *testing.T) {
	if got := elapsed(0, 1); got != 0 {
		t.Errorf("u=1 should give zero wait, got %v", got)
	}
	if got := elapsed(-2000, 0.5); !math.IsInf(got, 1) {
		t.Errorf("expected overflowed wait to be +Inf, got %v", got)
	}
	if got := elapsed(2000, 0); !math.IsInf(got, 1) {
		t.Errorf("expected 0*Inf to map to +Inf, got %v", got)
	}
	if got := elapsed(0, math.Exp(-1)); math.Abs(got-1) > 1e-12 {
		t.Errorf("expected wait 1, got %v", got)
	}
}

// #endregion draw-tests
