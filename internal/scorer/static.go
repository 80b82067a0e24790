package scorer

import (
	"context"
	"sync"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region static
// Static replays pre-recorded score vectors, one per call, regardless of the
// history it is given. It backs fixture replay and tests. With Repeat set the
// last vector is reused once the recording runs out.
type Static struct {
	Repeat bool

	mu    sync.Mutex
	steps [][]float64
	calls int
}

// NewStatic creates a Static scorer over the given per-step vectors.
func NewStatic(steps ...[]float64) *Static {
	return &Static{steps: steps}
}

// Score returns a copy of the next recorded vector.
func (s *Static) Score(_ context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	if err := checkLengths(tokens, ages); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	if idx >= len(s.steps) {
		if !s.Repeat || len(s.steps) == 0 {
			return nil, &Error{Op: "static", Err: ErrExhausted}
		}
		idx = len(s.steps) - 1
	}
	s.calls++

	out := make([]float64, len(s.steps[idx]))
	copy(out, s.steps[idx])
	return out, nil
}

// Calls reports how many vectors have been served.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// #endregion static
