package scorer

import (
	"context"
	"errors"
	"testing"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

func TestStatic_ServesInOrder(t *testing.T) {
	s := NewStatic([]float64{1, 2}, []float64{3, 4})
	ctx := context.Background()

	first, err := s.Score(ctx, []vocab.Token{1}, []float64{0})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	second, _ := s.Score(ctx, []vocab.Token{1}, []float64{0})
	if first[0] != 1 || second[0] != 3 {
		t.Errorf("unexpected order: %v %v", first, second)
	}

	_, err = s.Score(ctx, []vocab.Token{1}, []float64{0})
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if s.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", s.Calls())
	}
}

func TestStatic_Repeat(t *testing.T) {
	s := NewStatic([]float64{7})
	s.Repeat = true
	for i := 0; i < 3; i++ {
		out, err := s.Score(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if out[0] != 7 {
			t.Errorf("call %d: expected 7, got %v", i, out[0])
		}
	}
}

func TestStatic_ReturnsCopy(t *testing.T) {
	s := NewStatic([]float64{1})
	s.Repeat = true
	out, _ := s.Score(context.Background(), nil, nil)
	out[0] = 99
	again, _ := s.Score(context.Background(), nil, nil)
	if again[0] != 1 {
		t.Errorf("recorded vector was mutated: %v", again)
	}
}

func TestSynthetic(t *testing.T) {
	s := NewSynthetic(10, 42, -8, -4, 0.05)
	again := NewSynthetic(10, 42, -8, -4, 0.05)
	for i := range s.Base {
		if s.Base[i] != again.Base[i] {
			t.Fatalf("base %d not deterministic", i)
		}
		if s.Base[i] < -8 || s.Base[i] >= -4 {
			t.Errorf("base %d out of range: %v", i, s.Base[i])
		}
	}

	young, _ := s.Score(context.Background(), []vocab.Token{1}, []float64{vocab.YearsToDays(20)})
	old, _ := s.Score(context.Background(), []vocab.Token{1}, []float64{vocab.YearsToDays(80)})
	for i := range young {
		if old[i] <= young[i] {
			t.Errorf("token %d: expected hazard to rise with age", i)
		}
	}

	if _, err := s.Score(context.Background(), []vocab.Token{1}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestFunc(t *testing.T) {
	var f Scorer = Func(func(_ context.Context, tokens []vocab.Token, _ []float64) ([]float64, error) {
		return []float64{float64(len(tokens))}, nil
	})
	out, _ := f.Score(context.Background(), []vocab.Token{1, 2}, []float64{0, 1})
	if out[0] != 2 {
		t.Errorf("expected 2, got %v", out[0])
	}
}
