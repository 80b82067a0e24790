package scorer

import (
	"context"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/rng"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region synthetic
// Synthetic is a stand-in model: every token has a fixed base log-hazard and
// all hazards rise linearly with the age of the last event. It lets the
// service be exercised end to end without real model weights.
type Synthetic struct {
	Base     []float64
	AgeSlope float64 // per year
}

// NewSynthetic draws base scores in [low, high) from a seeded generator.
func NewSynthetic(size int, seed uint32, low, high, ageSlope float64) *Synthetic {
	g := rng.New(seed)
	base := make([]float64, size)
	for i := range base {
		base[i] = low + (high-low)*g.Next()
	}
	return &Synthetic{Base: base, AgeSlope: ageSlope}
}

// Score implements Scorer.
func (s *Synthetic) Score(_ context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	if err := checkLengths(tokens, ages); err != nil {
		return nil, err
	}
	var lastYears float64
	if len(ages) > 0 {
		lastYears = ages[len(ages)-1] / vocab.DaysPerYear
	}
	out := make([]float64, len(s.Base))
	for i, b := range s.Base {
		out[i] = b + s.AgeSlope*lastYears
	}
	return out, nil
}

// #endregion synthetic
