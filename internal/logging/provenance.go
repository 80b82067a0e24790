// Package logging records per-step provenance for simulation runs.
package logging

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region log-step
// LogStep writes a provenance entry to the step_log table.
func LogStep(db *sql.DB, entry StepEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO step_log (run_id, step, token, elapsed_days, age_days, candidates, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Step,
		int(entry.Token),
		entry.ElapsedDays,
		entry.AgeDays,
		entry.Candidates,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// #endregion log-step

// #region list-steps
// ListSteps returns the provenance of one run ordered by step.
func ListSteps(db *sql.DB, runID string) ([]StepEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, step, token, elapsed_days, age_days, candidates, created_at
		 FROM step_log WHERE run_id = ? ORDER BY step ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []StepEntry
	for rows.Next() {
		var e StepEntry
		var tok int
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Step, &tok, &e.ElapsedDays, &e.AgeDays, &e.Candidates, &createdStr); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		e.Token = vocab.Token(tok)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-steps

// #region recorder
// Recorder buffers steps per run until the run row exists. Observe is safe
// to call from concurrent runs.
type Recorder struct {
	mu      sync.Mutex
	pending map[string][]StepEntry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{pending: make(map[string][]StepEntry)}
}

// Observe matches trajectory.StepObserver.
func (r *Recorder) Observe(runID string, rec trajectory.StepRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[runID] = append(r.pending[runID], StepEntry{
		RunID:       runID,
		Step:        rec.Step,
		Token:       rec.Token,
		ElapsedDays: rec.ElapsedDays,
		AgeDays:     rec.AgeDays,
		Candidates:  rec.Candidates,
		CreatedAt:   time.Now().UTC(),
	})
}

// Pending reports buffered steps for a run.
func (r *Recorder) Pending(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[runID])
}

// Flush writes a run's buffered steps and forgets them.
func (r *Recorder) Flush(db *sql.DB, runID string) error {
	r.mu.Lock()
	entries := r.pending[runID]
	delete(r.pending, runID)
	r.mu.Unlock()

	for _, e := range entries {
		if err := LogStep(db, e); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops a run's buffered steps.
func (r *Recorder) Discard(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, runID)
}

// #endregion recorder
