package store

import (
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
)

// #region run-record
// RunRecord is one persisted simulation: its configuration, the input
// history and the generated suffix. Failed runs keep Err and no suffix.
type RunRecord struct {
	RunID     string
	Label     string // caller-chosen patient or batch label
	Config    trajectory.Config
	Reason    trajectory.Reason
	Steps     int
	Err       string
	Input     []trajectory.Event
	Generated []trajectory.Event
	CreatedAt time.Time
}

// FromResult builds a record for a finished Simulate call.
func FromResult(label string, cfg trajectory.Config, res trajectory.Result, runErr error) RunRecord {
	rec := RunRecord{
		RunID:     res.RunID,
		Label:     label,
		Config:    cfg,
		Reason:    res.Reason,
		Steps:     res.Steps,
		Input:     res.Input,
		Generated: res.Generated,
		CreatedAt: time.Now().UTC(),
	}
	if runErr != nil {
		rec.Err = runErr.Error()
		rec.Generated = nil
	}
	return rec
}

// #endregion run-record

// #region run-summary
// RunSummary is a listing row without events.
type RunSummary struct {
	RunID     string
	Label     string
	Seed      uint32
	Reason    trajectory.Reason
	Steps     int
	Err       string
	CreatedAt time.Time
}

// #endregion run-summary
