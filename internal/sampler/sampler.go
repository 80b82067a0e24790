// Package sampler turns one step's hazard scores into the next event by
// racing independent exponential clocks and taking the first to fire.
package sampler

import (
	"math"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/rng"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region types
// Options controls which tokens may be sampled at a step.
type Options struct {
	Ignore   map[vocab.Token]struct{}
	NoRepeat bool
}

// NewOptions builds Options from a token list.
func NewOptions(ignore []vocab.Token, noRepeat bool) Options {
	set := make(map[vocab.Token]struct{}, len(ignore))
	for _, t := range ignore {
		set[t] = struct{}{}
	}
	return Options{Ignore: set, NoRepeat: noRepeat}
}

// Choice is the winning candidate of one step.
type Choice struct {
	Token      vocab.Token
	Elapsed    float64 // days
	Candidates int     // unmasked candidates that took part in the race
}

// candidate holds one clock. masked candidates never fire, whatever their
// elapsed value.
type candidate struct {
	elapsed float64
	masked  bool
}

// #endregion types

// #region sample
// Sample races every non-reserved token. Exactly one value is drawn from src
// per index above StartOfSequence, in ascending id order, masked or not, so
// the draw-to-token mapping depends only on the vector width. ok is false
// when no candidate can fire.
func Sample(scores []float64, history []vocab.Token, opts Options, src rng.Source) (Choice, bool) {
	cands := mask(scores, history, opts)

	first := int(vocab.StartOfSequence) + 1
	for i := first; i < len(scores); i++ {
		u := src.Next()
		if cands[i].masked {
			continue
		}
		cands[i].elapsed = elapsed(scores[i], u)
		// An infinite wait is a clock that never fires.
		if math.IsInf(cands[i].elapsed, 1) {
			cands[i].masked = true
		}
	}

	best := Choice{Token: -1, Elapsed: math.Inf(1)}
	for i := first; i < len(cands); i++ {
		if cands[i].masked {
			continue
		}
		best.Candidates++
		if cands[i].elapsed < best.Elapsed {
			best.Token = vocab.Token(i)
			best.Elapsed = cands[i].elapsed
		}
	}
	if best.Token < 0 {
		return Choice{Candidates: 0}, false
	}
	return best, true
}

// #endregion sample

// #region masking
func mask(scores []float64, history []vocab.Token, opts Options) []candidate {
	cands := make([]candidate, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, -1) {
			cands[i].masked = true
		}
	}
	for t := range opts.Ignore {
		if t >= 0 && int(t) < len(cands) {
			cands[t].masked = true
		}
	}
	if opts.NoRepeat {
		for _, t := range history {
			if t >= 0 && int(t) < len(cands) {
				cands[t].masked = true
			}
		}
	}
	return cands
}

// #endregion masking

// #region elapsed
// elapsed is the inverse-CDF draw of an exponential waiting time with rate
// exp(score): t = -exp(-score) * ln(u), floored at zero.
func elapsed(score, u float64) float64 {
	if math.IsInf(score, 1) {
		return 0
	}
	t := -math.Exp(-score) * math.Log(u)
	if math.IsNaN(t) {
		return math.Inf(1)
	}
	return math.Max(0, t)
}

// #endregion elapsed
