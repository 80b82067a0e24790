// Package store persists simulation runs in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	label        TEXT,
	seed         INTEGER NOT NULL,
	config_json  TEXT NOT NULL,
	reason       TEXT,
	steps        INTEGER NOT NULL,
	error        TEXT,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_events (
	run_id       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	token        INTEGER NOT NULL,
	event_name   TEXT NOT NULL,
	age_days     REAL NOT NULL,
	generated    INTEGER NOT NULL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS step_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	step          INTEGER NOT NULL,
	token         INTEGER NOT NULL,
	elapsed_days  REAL NOT NULL,
	age_days      REAL NOT NULL,
	candidates    INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_step_log_run ON step_log(run_id, step);
`

// #endregion schema

// #region store-struct
// Store manages persisted runs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. Foreign keys and the
// busy timeout are set in the DSN so every pooled connection carries them.
func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region save-run
// SaveRun inserts a run and its events in one transaction. A missing RunID
// is filled in.
func (s *Store) SaveRun(rec RunRecord) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, label, seed, config_json, reason, steps, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, nullIfEmpty(rec.Label), int64(rec.Config.Seed), string(cfgJSON),
		nullIfEmpty(string(rec.Reason)), rec.Steps, nullIfEmpty(rec.Err),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_events (run_id, position, token, event_name, age_days, generated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()

	pos := 0
	for _, group := range []struct {
		events    []trajectory.Event
		generated bool
	}{{rec.Input, false}, {rec.Generated, true}} {
		for _, e := range group.events {
			if _, err := stmt.Exec(rec.RunID, pos, int(e.Token), e.EventName, e.AgeDays, group.generated); err != nil {
				return "", fmt.Errorf("insert event %d: %w", pos, err)
			}
			pos++
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return rec.RunID, nil
}

// #endregion save-run

// #region get-run
// GetRun retrieves one run with all of its events.
func (s *Store) GetRun(id string) (RunRecord, error) {
	var rec RunRecord
	var label, reason, errText sql.NullString
	var cfgJSON, createdStr string
	var seed int64

	err := s.db.QueryRow(
		`SELECT run_id, label, seed, config_json, reason, steps, error, created_at
		 FROM runs WHERE run_id = ?`, id,
	).Scan(&rec.RunID, &label, &seed, &cfgJSON, &reason, &rec.Steps, &errText, &createdStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal config: %w", err)
	}
	rec.Label = label.String
	rec.Reason = trajectory.Reason(reason.String)
	rec.Err = errText.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	rows, err := s.db.Query(
		`SELECT token, event_name, age_days, generated FROM run_events
		 WHERE run_id = ? ORDER BY position ASC`, id,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e trajectory.Event
		var tok int
		var generated bool
		if err := rows.Scan(&tok, &e.EventName, &e.AgeDays, &generated); err != nil {
			return RunRecord{}, fmt.Errorf("scan event: %w", err)
		}
		e.Token = vocab.Token(tok)
		e.AgeYears = vocab.DaysToYears(e.AgeDays, trajectory.AgePrecision)
		if generated {
			rec.Generated = append(rec.Generated, e)
		} else {
			rec.Input = append(rec.Input, e)
		}
	}
	return rec, rows.Err()
}

// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT run_id, label, seed, reason, steps, error, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var label, reason, errText sql.NullString
		var seed int64
		var createdStr string
		if err := rows.Scan(&r.RunID, &label, &seed, &reason, &r.Steps, &errText, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Label = label.String
		r.Seed = uint32(seed)
		r.Reason = trajectory.Reason(reason.String)
		r.Err = errText.String
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion list-runs

// #region delete-run
// DeleteRun removes a run; its events and step log rows cascade.
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// #endregion delete-run

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
