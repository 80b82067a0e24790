package trajectory

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/rng"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/sampler"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region run-struct
// Run is the private mutable state of one simulation. A Run is driven by a
// single goroutine; callers may abandon it between steps at any time.
type Run struct {
	id         string
	ctl        *Controller
	src        rng.Source
	tokens     []vocab.Token
	ages       []float64
	inputLen   int
	maxAgeDays float64

	steps  int
	state  State
	reason Reason
	err    error
	last   StepRecord
}

// #endregion run-struct

// #region accessors
func (r *Run) ID() string     { return r.id }
func (r *Run) State() State   { return r.state }
func (r *Run) Reason() Reason { return r.reason }
func (r *Run) Err() error     { return r.err }
func (r *Run) Steps() int     { return r.steps }

// Tokens returns a copy of the full history, input plus generated suffix.
func (r *Run) Tokens() []vocab.Token { return slices.Clone(r.tokens) }

// Ages returns a copy of the full age history in days.
func (r *Run) Ages() []float64 { return slices.Clone(r.ages) }

// InputLen is the number of history entries supplied at Start.
func (r *Run) InputLen() int { return r.inputLen }

// LastStep describes the most recently accepted step.
func (r *Run) LastStep() StepRecord { return r.last }

// #endregion accessors

// #region step
// Step performs one transition. It returns the failure error when the run
// fails and nil otherwise; terminal states are absorbing.
func (r *Run) Step(ctx context.Context) error {
	if r.state != Running {
		return r.err
	}
	cfg := r.ctl.cfg

	if r.steps >= cfg.MaxSteps {
		r.terminate(ReasonMaxSteps)
		return nil
	}
	if len(r.tokens) != len(r.ages) {
		return r.fail(&ValidationError{
			Field: "history",
			Msg:   fmt.Sprintf("tokens and ages misaligned: %d vs %d", len(r.tokens), len(r.ages)),
		})
	}

	scores, err := r.ctl.sc.Scorer.Score(ctx, slices.Clone(r.tokens), slices.Clone(r.ages))
	if err != nil {
		return r.fail(err)
	}
	if v := r.ctl.sc.Vocab; v != nil && len(scores) != v.Size() {
		return r.fail(&ValidationError{
			Field: "scores",
			Msg:   fmt.Sprintf("scorer returned %d values for a vocabulary of %d", len(scores), v.Size()),
		})
	}

	choice, ok := sampler.Sample(scores, r.tokens, r.ctl.opts, r.src)
	if !ok {
		r.terminate(ReasonExhausted)
		return nil
	}
	if v := r.ctl.sc.Vocab; v != nil {
		if _, err := v.TokenToName(choice.Token); err != nil {
			return r.fail(err)
		}
	}

	age := r.ages[len(r.ages)-1] + choice.Elapsed
	r.tokens = append(r.tokens, choice.Token)
	r.ages = append(r.ages, age)
	r.steps++
	r.last = StepRecord{
		Step:        r.steps,
		Token:       choice.Token,
		ElapsedDays: choice.Elapsed,
		AgeDays:     age,
		Candidates:  choice.Candidates,
	}
	if r.ctl.observer != nil {
		r.ctl.observer(r.id, r.last)
	}

	switch {
	case r.ctl.isTermination(choice.Token):
		r.terminate(ReasonTerminationToken)
	case age > r.maxAgeDays:
		r.terminate(ReasonMaxAge)
	case r.steps >= cfg.MaxSteps:
		r.terminate(ReasonMaxSteps)
	}
	return nil
}

// Run steps until a terminal state is reached.
func (r *Run) Run(ctx context.Context) error {
	for r.state == Running {
		if err := r.Step(ctx); err != nil {
			return err
		}
	}
	return r.err
}

func (r *Run) terminate(reason Reason) {
	r.state = Terminated
	r.reason = reason
}

func (r *Run) fail(err error) error {
	r.state = Failed
	r.err = err
	return err
}

// #endregion step

// #region validate
func validateHistory(tokens []vocab.Token, ages []float64) error {
	if len(tokens) != len(ages) {
		return &ValidationError{
			Field: "history",
			Msg:   fmt.Sprintf("tokens and ages differ in length: %d vs %d", len(tokens), len(ages)),
		}
	}
	if len(tokens) == 0 {
		return &ValidationError{Field: "history", Msg: "empty"}
	}
	for i, a := range ages {
		if math.IsNaN(a) || math.IsInf(a, 0) || a < 0 {
			return &ValidationError{Field: "history", Msg: fmt.Sprintf("age[%d] = %v", i, a)}
		}
		if i > 0 && a < ages[i-1] {
			return &ValidationError{Field: "history", Msg: fmt.Sprintf("age[%d] decreases: %v < %v", i, a, ages[i-1])}
		}
	}
	for i, t := range tokens {
		if t < 0 {
			return &ValidationError{Field: "history", Msg: fmt.Sprintf("token[%d] = %d", i, t)}
		}
	}
	return nil
}

// #endregion validate
