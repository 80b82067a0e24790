// Package scorer defines the contract between the trajectory engine and the
// sequence model that produces per-token hazard scores, plus adapters.
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region interface
// Scorer returns one score per vocabulary entry for the position following
// the given history. len(tokens) must equal len(ages); ages are in days.
// Implementations must be deterministic for a fixed model and input.
type Scorer interface {
	Score(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error)
}

// Func adapts a plain function to Scorer.
type Func func(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error)

// Score calls f.
func (f Func) Score(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	return f(ctx, tokens, ages)
}

// #endregion interface

// #region errors
// ErrExhausted is returned by Static when no recorded step is left.
var ErrExhausted = errors.New("no recorded scores left")

// Error is the failure type returned by adapters in this package.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scorer %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// #endregion errors

// #region helpers
func checkLengths(tokens []vocab.Token, ages []float64) error {
	if len(tokens) != len(ages) {
		return &Error{
			Op:  "validate",
			Err: fmt.Errorf("tokens and ages differ in length: %d vs %d", len(tokens), len(ages)),
		}
	}
	return nil
}

// #endregion helpers
