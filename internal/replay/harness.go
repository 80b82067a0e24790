// Package replay re-runs recorded simulations against fixed score vectors
// and checks the generated trajectory against a golden expectation.
package replay

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region types

// Outcome is the result of replaying one fixture.
type Outcome struct {
	Description string
	Result      trajectory.Result
	Tokens      []int
	Match       bool
	Diffs       []string
}

// #endregion types

// #region replay

// Replay serves f's score vectors through a Static scorer (the last vector
// repeats) and runs a fresh controller over f's history. An error means the
// run itself failed; a mismatch against the expectation is reported in the
// Outcome.
func Replay(f *Fixture) (Outcome, error) {
	out := Outcome{Description: f.Description}

	v, err := f.ToVocabulary()
	if err != nil {
		return out, fmt.Errorf("fixture vocabulary: %w", err)
	}
	if len(f.Scores) == 0 {
		return out, fmt.Errorf("fixture has no score vectors")
	}
	static := scorer.NewStatic(f.ScoreVectors()...)
	static.Repeat = true

	ctl, err := trajectory.New(trajectory.SimulationContext{Vocab: v, Scorer: static}, f.Config)
	if err != nil {
		return out, err
	}
	res, err := ctl.Simulate(context.Background(), f.ToInput())
	if err != nil {
		return out, err
	}
	out.Result = res
	out.Tokens = generatedTokens(res)
	out.Diffs = compare(f.Expected, out.Tokens, res.Reason)
	out.Match = len(out.Diffs) == 0
	return out, nil
}

// ReplayDir replays every *.json fixture in dir, in name order.
func ReplayDir(dir string) (map[string]Outcome, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no fixtures in %s: %w", dir, os.ErrNotExist)
	}

	out := make(map[string]Outcome, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return out, err
		}
		o, err := Replay(f)
		if err != nil {
			return out, fmt.Errorf("replay %s: %w", filepath.Base(p), err)
		}
		out[filepath.Base(p)] = o
	}
	return out, nil
}

// #endregion replay

// #region compare

func generatedTokens(res trajectory.Result) []int {
	toks := make([]int, len(res.Generated))
	for i, e := range res.Generated {
		toks[i] = int(e.Token)
	}
	return toks
}

func compare(exp FixtureExpected, got []int, reason trajectory.Reason) []string {
	var diffs []string
	if exp.Reason != "" && exp.Reason != reason {
		diffs = append(diffs, fmt.Sprintf("reason: expected %s, got %s", exp.Reason, reason))
	}
	if exp.Tokens != nil && !slices.Equal(exp.Tokens, got) {
		diffs = append(diffs, fmt.Sprintf("tokens: expected %v, got %v", exp.Tokens, got))
	}
	return diffs
}

// #endregion compare

// #region capture

// Recording wraps a scorer and keeps a copy of every vector it returns, so
// a live run can be frozen into a fixture.
type Recording struct {
	Inner scorer.Scorer

	vectors [][]float64
}

// Score forwards to Inner and records successful responses.
func (r *Recording) Score(ctx context.Context, tokens []vocab.Token, ages []float64) ([]float64, error) {
	scores, err := r.Inner.Score(ctx, tokens, ages)
	if err != nil {
		return nil, err
	}
	r.vectors = append(r.vectors, slices.Clone(scores))
	return scores, nil
}

// Capture runs in against a Recording scorer and returns a fixture whose
// expectation is the run's own output. The whole vocabulary is written.
func Capture(ctx context.Context, description string, v *vocab.Vocabulary, sc scorer.Scorer, cfg trajectory.Config, in trajectory.Input) (*Fixture, error) {
	rec := &Recording{Inner: sc}
	ctl, err := trajectory.New(trajectory.SimulationContext{Vocab: v, Scorer: rec}, cfg)
	if err != nil {
		return nil, err
	}
	res, err := ctl.Simulate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("capture run: %w", err)
	}

	f := &Fixture{
		Description: description,
		History:     append([]trajectory.RecordedEvent(nil), in.History...),
		CurrentAge:  in.CurrentAge,
		Config:      cfg,
		Expected:    FixtureExpected{Tokens: generatedTokens(res), Reason: res.Reason},
	}
	for _, e := range v.Entries() {
		f.Vocabulary = append(f.Vocabulary, FixtureEntry{Token: int(e.Token), Name: e.Name})
	}
	for _, vec := range rec.vectors {
		row := make([]Score, len(vec))
		for i, s := range vec {
			row[i] = Score(s)
		}
		f.Scores = append(f.Scores, row)
	}
	return f, nil
}

// #endregion capture
