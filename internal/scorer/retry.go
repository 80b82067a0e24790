package scorer

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region constants

const defaultMaxTries = 3 // 2 retries

// #endregion

// #region retrying

// Retrying re-issues calls that failed with a transient transport status.
// Any other failure, and a done context, ends the call at once.
type Retrying struct {
	Inner    Scorer
	MaxTries uint
	Initial  time.Duration // first backoff interval
}

// NewRetrying wraps inner with the default attempt budget.
func NewRetrying(inner Scorer, initial time.Duration) *Retrying {
	return &Retrying{Inner: inner, MaxTries: defaultMaxTries, Initial: initial}
}

// Score calls Inner until it succeeds, fails permanently or runs out of tries.
func (r *Retrying) Score(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	b := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		b.InitialInterval = r.Initial
	}
	tries := r.MaxTries
	if tries == 0 {
		tries = defaultMaxTries
	}

	attempt := 0
	return backoff.Retry(ctx, func() ([]float64, error) {
		attempt++
		scores, err := r.Inner.Score(ctx, tokens, ages)
		if err == nil {
			return scores, nil
		}
		if !Transient(err) {
			return nil, backoff.Permanent(err)
		}
		log.Printf("[SCORER] attempt %d failed, retrying: %v", attempt, err)
		return nil, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// Transient reports whether err carries a gRPC status worth retrying.
func Transient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

// #endregion
