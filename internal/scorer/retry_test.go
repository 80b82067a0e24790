package scorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

func flaky(failures int, code codes.Code) (Scorer, *int) {
	calls := 0
	return Func(func(_ context.Context, tokens []vocab.Token, _ []float64) ([]float64, error) {
		calls++
		if calls <= failures {
			return nil, &Error{Op: "score rpc", Err: status.Error(code, "backend busy")}
		}
		return []float64{0, 0, 1}, nil
	}), &calls
}

func TestRetrying_RecoversFromTransient(t *testing.T) {
	inner, calls := flaky(2, codes.Unavailable)
	r := NewRetrying(inner, time.Millisecond)

	scores, err := r.Score(context.Background(), []vocab.Token{1}, []float64{0})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scores) != 3 || *calls != 3 {
		t.Errorf("expected success on third call, got %d calls", *calls)
	}
}

func TestRetrying_GivesUp(t *testing.T) {
	inner, calls := flaky(10, codes.Unavailable)
	r := NewRetrying(inner, time.Millisecond)

	_, err := r.Score(context.Background(), []vocab.Token{1}, []float64{0})
	if err == nil {
		t.Fatal("expected error")
	}
	if *calls != defaultMaxTries {
		t.Errorf("expected %d calls, got %d", defaultMaxTries, *calls)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Errorf("expected *Error, got %T", err)
	}
}

func TestRetrying_PermanentFailure(t *testing.T) {
	inner, calls := flaky(10, codes.InvalidArgument)
	r := NewRetrying(inner, time.Millisecond)

	_, err := r.Score(context.Background(), []vocab.Token{1}, []float64{0})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected a single call, got %d", *calls)
	}
}

func TestTransient(t *testing.T) {
	if !Transient(status.Error(codes.Unavailable, "x")) {
		t.Error("Unavailable should be transient")
	}
	if Transient(errors.New("plain")) {
		t.Error("plain errors are not transient")
	}
	if Transient(ErrExhausted) {
		t.Error("exhaustion is not transient")
	}
}
