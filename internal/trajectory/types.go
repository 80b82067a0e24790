package trajectory

import (
	"fmt"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region state
// State is the lifecycle position of a Run.
type State int

const (
	Running State = iota
	Terminated
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reason tags why a run terminated normally.
type Reason string

const (
	ReasonExhausted        Reason = "exhausted"
	ReasonTerminationToken Reason = "termination-token"
	ReasonMaxAge           Reason = "max-age"
	ReasonMaxSteps         Reason = "max-steps"
)

// #endregion state

// #region config
// Config is fixed for the duration of a run.
type Config struct {
	Seed              uint32        `json:"seed"`
	MaxSteps          int           `json:"max_steps"`
	MaxAgeYears       float64       `json:"max_age_years"` // prediction window past the current age
	NoRepeat          bool          `json:"no_repeat"`
	TerminationTokens []vocab.Token `json:"termination_tokens"`
	IgnoreTokens      []vocab.Token `json:"ignore_tokens,omitempty"`
}

// DeathToken is the termination token of the published Delphi vocabulary.
const DeathToken vocab.Token = 1269

// DefaultConfig returns the settings the web application ships with.
func DefaultConfig() Config {
	return Config{
		Seed:              42,
		MaxSteps:          100,
		MaxAgeYears:       30,
		NoRepeat:          true,
		TerminationTokens: []vocab.Token{DeathToken},
	}
}

// #endregion config

// #region io
// RecordedEvent is one caller-supplied history entry.
type RecordedEvent struct {
	EventName string  `json:"event"`
	AgeYears  float64 `json:"age"`
}

// Input is the caller's view of a patient: events sorted by age, and the
// age the prediction window starts from.
type Input struct {
	History    []RecordedEvent
	CurrentAge float64
}

// AgePrecision is the number of decimal places kept in Event.AgeYears.
// AgeDays stays exact.
const AgePrecision = 4

// Event is one (token, name, age) entry of a trajectory.
type Event struct {
	Token     vocab.Token `json:"token"`
	EventName string      `json:"event"`
	AgeYears  float64     `json:"age_years"`
	AgeDays   float64     `json:"age_days"`
}

// Result is the outcome of Simulate. Generated holds only the new suffix.
type Result struct {
	RunID     string  `json:"run_id"`
	Seed      uint32  `json:"seed"`
	Input     []Event `json:"input"`
	Generated []Event `json:"generated"`
	Reason    Reason  `json:"reason"`
	Steps     int     `json:"steps"`
}

// StepRecord describes one accepted step.
type StepRecord struct {
	Step        int
	Token       vocab.Token
	ElapsedDays float64
	AgeDays     float64
	Candidates  int
}

// StepObserver is notified after every accepted step of a run.
type StepObserver func(runID string, rec StepRecord)

// #endregion io

// #region errors
// ValidationError reports malformed input detected before or during a run.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// #endregion errors
