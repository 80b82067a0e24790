package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a small
// vocabulary, one patient history, the score vectors served per step and
// the expected generated suffix.
type Fixture struct {
	Description string                     `json:"description"`
	Vocabulary  []FixtureEntry             `json:"vocabulary"`
	History     []trajectory.RecordedEvent `json:"history"`
	CurrentAge  float64                    `json:"current_age"`
	Config      trajectory.Config          `json:"config"`
	Scores      [][]Score                  `json:"scores"`
	Expected    FixtureExpected            `json:"expected"`
}

// FixtureEntry mirrors vocab.Entry with JSON tags.
type FixtureEntry struct {
	Token int    `json:"token"`
	Name  string `json:"name"`
}

// FixtureExpected captures the generated tokens and the terminal reason.
type FixtureExpected struct {
	Tokens []int             `json:"tokens"`
	Reason trajectory.Reason `json:"reason"`
}

// Score is a log-hazard that also accepts the strings "-inf", "inf" and
// "nan", which plain JSON numbers cannot carry.
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*s = Score(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("score %s: want number or string", b)
	}
	switch strings.ToLower(str) {
	case "-inf":
		*s = Score(math.Inf(-1))
	case "inf", "+inf":
		*s = Score(math.Inf(1))
	case "nan":
		*s = Score(math.NaN())
	default:
		return fmt.Errorf("score %q: unknown literal", str)
	}
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	switch {
	case math.IsInf(f, -1):
		return []byte(`"-inf"`), nil
	case math.IsInf(f, 1):
		return []byte(`"inf"`), nil
	case math.IsNaN(f):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(f)
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file. Config fields the
// fixture omits keep their trajectory.DefaultConfig values.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: trajectory.DefaultConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToVocabulary builds the fixture's vocabulary.
func (f *Fixture) ToVocabulary() (*vocab.Vocabulary, error) {
	entries := make([]vocab.Entry, len(f.Vocabulary))
	for i, e := range f.Vocabulary {
		entries[i] = vocab.Entry{Token: vocab.Token(e.Token), Name: e.Name}
	}
	return vocab.New(entries)
}

// ToInput converts the fixture history to a trajectory.Input.
func (f *Fixture) ToInput() trajectory.Input {
	return trajectory.Input{
		History:    append([]trajectory.RecordedEvent(nil), f.History...),
		CurrentAge: f.CurrentAge,
	}
}

// ScoreVectors converts the recorded scores to plain float vectors.
func (f *Fixture) ScoreVectors() [][]float64 {
	out := make([][]float64, len(f.Scores))
	for i, row := range f.Scores {
		out[i] = make([]float64, len(row))
		for j, s := range row {
			out[i][j] = float64(s)
		}
	}
	return out
}

// #endregion fixture-loader
