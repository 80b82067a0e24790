// Package trajectory drives stepwise competing-risks simulation of a
// patient's future health events.
package trajectory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/rng"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/sampler"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

const (
	tracerName  = "github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	maxPrealloc = 256
)

// #region context
// SimulationContext holds the shared read-only collaborators of every run.
type SimulationContext struct {
	Vocab  *vocab.Vocabulary
	Scorer scorer.Scorer
}

// #endregion context

// #region controller
// Controller starts runs for one Config. It holds no per-run state and is
// safe for concurrent use.
type Controller struct {
	sc        SimulationContext
	cfg       Config
	opts      sampler.Options
	terminals map[vocab.Token]struct{}
	observer  StepObserver
	newSource func(seed uint32) rng.Source
	tracer    trace.Tracer
}

// Option customises a Controller.
type Option func(*Controller)

// WithObserver registers a hook called after every accepted step.
func WithObserver(o StepObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// WithSource replaces the Mulberry32 generator, e.g. with rng.Fixed in tests.
func WithSource(newSource func(seed uint32) rng.Source) Option {
	return func(c *Controller) { c.newSource = newSource }
}

// New validates cfg and builds a Controller.
func New(sc SimulationContext, cfg Config, opts ...Option) (*Controller, error) {
	if sc.Scorer == nil {
		return nil, &ValidationError{Field: "context", Msg: "scorer is required"}
	}
	if cfg.MaxSteps < 0 {
		return nil, &ValidationError{Field: "max_steps", Msg: fmt.Sprintf("%d is negative", cfg.MaxSteps)}
	}
	if math.IsNaN(cfg.MaxAgeYears) || cfg.MaxAgeYears < 0 {
		return nil, &ValidationError{Field: "max_age_years", Msg: fmt.Sprintf("%v is not a valid window", cfg.MaxAgeYears)}
	}

	c := &Controller{
		sc:        sc,
		cfg:       cfg,
		opts:      sampler.NewOptions(cfg.IgnoreTokens, cfg.NoRepeat),
		terminals: make(map[vocab.Token]struct{}, len(cfg.TerminationTokens)),
		newSource: func(seed uint32) rng.Source { return rng.New(seed) },
		tracer:    otel.Tracer(tracerName),
	}
	for _, t := range cfg.TerminationTokens {
		c.terminals[t] = struct{}{}
	}
	c.cfg.TerminationTokens = append([]vocab.Token(nil), cfg.TerminationTokens...)
	c.cfg.IgnoreTokens = append([]vocab.Token(nil), cfg.IgnoreTokens...)

	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Config returns a copy of the controller's configuration.
func (c *Controller) Config() Config {
	cfg := c.cfg
	cfg.TerminationTokens = append([]vocab.Token(nil), c.cfg.TerminationTokens...)
	cfg.IgnoreTokens = append([]vocab.Token(nil), c.cfg.IgnoreTokens...)
	return cfg
}

func (c *Controller) isTermination(t vocab.Token) bool {
	_, ok := c.terminals[t]
	return ok
}

// #endregion controller

// #region start
// Start validates a tokenized history and returns a Run in the Running
// state. Ages are in days; maxAgeDays is the absolute age bound.
func (c *Controller) Start(tokens []vocab.Token, ages []float64, maxAgeDays float64) (*Run, error) {
	if err := validateHistory(tokens, ages); err != nil {
		return nil, err
	}
	if math.IsNaN(maxAgeDays) {
		return nil, &ValidationError{Field: "max_age", Msg: "NaN"}
	}
	grow := min(c.cfg.MaxSteps, maxPrealloc)
	r := &Run{
		id:         uuid.New().String(),
		ctl:        c,
		src:        c.newSource(c.cfg.Seed),
		tokens:     append(make([]vocab.Token, 0, len(tokens)+grow), tokens...),
		ages:       append(make([]float64, 0, len(ages)+grow), ages...),
		inputLen:   len(tokens),
		maxAgeDays: maxAgeDays,
		state:      Running,
	}
	return r, nil
}

// #endregion start

// #region simulate
// Simulate converts caller events to tokens, anchors them behind the
// start-of-sequence token at age zero, runs to a terminal state and converts
// the generated suffix back to names and years. On failure the returned
// Result carries only the input history.
func (c *Controller) Simulate(ctx context.Context, in Input) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "trajectory.Simulate", trace.WithAttributes(
		attribute.Int64("delphi.seed", int64(c.cfg.Seed)),
		attribute.Int("delphi.max_steps", c.cfg.MaxSteps),
		attribute.Int("delphi.history_len", len(in.History)),
	))
	defer span.End()

	res := Result{Seed: c.cfg.Seed}
	input, tokens, ages, err := c.tokenize(in)
	res.Input = input
	if err != nil {
		return res, failSpan(span, err)
	}

	// The window opens at the later of the stated age and the last event.
	current := in.CurrentAge
	if n := len(in.History); n > 0 && in.History[n-1].AgeYears > current {
		current = in.History[n-1].AgeYears
	}
	run, err := c.Start(tokens, ages, vocab.YearsToDays(current+c.cfg.MaxAgeYears))
	if err != nil {
		return res, failSpan(span, err)
	}
	res.RunID = run.ID()
	span.SetAttributes(attribute.String("delphi.run_id", run.ID()))

	for run.State() == Running {
		before := run.Steps()
		if err := run.Step(ctx); err != nil {
			log.Printf("[SIM] run=%s failed at step %d: %v", run.ID(), before+1, err)
			return res, failSpan(span, err)
		}
		if run.Steps() > before {
			rec := run.LastStep()
			span.AddEvent("step", trace.WithAttributes(
				attribute.Int("delphi.step", rec.Step),
				attribute.Int("delphi.token", int(rec.Token)),
				attribute.Float64("delphi.age_days", rec.AgeDays),
			))
		}
	}

	all, allAges := run.Tokens(), run.Ages()
	res.Generated = make([]Event, 0, len(all)-run.InputLen())
	for i := run.InputLen(); i < len(all); i++ {
		name, err := c.sc.Vocab.TokenToName(all[i])
		if err != nil {
			res.Generated = nil
			return res, failSpan(span, err)
		}
		res.Generated = append(res.Generated, Event{
			Token:     all[i],
			EventName: name,
			AgeYears:  vocab.DaysToYears(allAges[i], AgePrecision),
			AgeDays:   allAges[i],
		})
	}
	res.Reason = run.Reason()
	res.Steps = run.Steps()

	span.SetAttributes(
		attribute.String("delphi.reason", string(res.Reason)),
		attribute.Int("delphi.steps", res.Steps),
	)
	log.Printf("[SIM] run=%s seed=%d steps=%d reason=%s", res.RunID, res.Seed, res.Steps, res.Reason)
	return res, nil
}

// tokenize maps caller events onto the model's token/day arrays. The
// returned input events exclude the start-of-sequence anchor.
func (c *Controller) tokenize(in Input) ([]Event, []vocab.Token, []float64, error) {
	if c.sc.Vocab == nil {
		return nil, nil, nil, &ValidationError{Field: "context", Msg: "vocabulary is required"}
	}
	if math.IsNaN(in.CurrentAge) || in.CurrentAge < 0 {
		return nil, nil, nil, &ValidationError{Field: "current_age", Msg: fmt.Sprintf("%v", in.CurrentAge)}
	}

	input := make([]Event, 0, len(in.History))
	tokens := make([]vocab.Token, 0, len(in.History)+1)
	ages := make([]float64, 0, len(in.History)+1)
	tokens = append(tokens, vocab.StartOfSequence)
	ages = append(ages, 0)

	for i, e := range in.History {
		tok, err := c.sc.Vocab.NameToToken(e.EventName)
		if err != nil {
			return input, nil, nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		days := vocab.YearsToDays(e.AgeYears)
		input = append(input, Event{Token: tok, EventName: e.EventName, AgeYears: e.AgeYears, AgeDays: days})
		tokens = append(tokens, tok)
		ages = append(ages, days)
	}
	return input, tokens, ages, nil
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var ve *ValidationError
	if errors.As(err, &ve) {
		span.SetAttributes(attribute.String("delphi.invalid_field", ve.Field))
	}
	return err
}

// #endregion simulate
