package logging

import (
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region step-entry
// StepEntry is a single row in the step_log table: what one accepted step
// sampled, how long the winning clock ran and how many clocks raced.
type StepEntry struct {
	RunID       string
	Step        int
	Token       vocab.Token
	ElapsedDays float64
	AgeDays     float64
	Candidates  int
	CreatedAt   time.Time
}

// #endregion step-entry
