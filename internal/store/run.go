package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/mudra/internal/batch"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
)

// Run is one execution of a batch job such as mirroring, splitting or
// feature extraction.
type Run struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	Layout     string       `json:"layout,omitempty"`
	Status     RunStatus    `json:"status"`
	Counts     batch.Counts `json:"counts"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// RunItem is the stored outcome of one input of a run.
type RunItem struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Split     string    `json:"split,omitempty"`
	Label     string    `json:"label,omitempty"`
	Source    string    `json:"source"`
	Outcome   string    `json:"outcome"`
	Outputs   []string  `json:"outputs"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunRepository stores runs and their items.
type RunRepository struct {
	db *sql.DB
}

// Runs returns the run repository for this store.
func (s *Store) Runs() *RunRepository {
	return &RunRepository{db: s.db}
}

// Start inserts a new running run.
func (r *RunRepository) Start(kind, layout string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Layout:    layout,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(
		`INSERT INTO runs (id, kind, layout, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Layout, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// Record stores one item of a run.
func (r *RunRepository) Record(runID string, item batch.Item) error {
	outputs := item.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	data, err := json.Marshal(outputs)
	if err != nil {
		return err
	}

	var errText string
	if item.Err != nil {
		errText = item.Err.Error()
	}

	_, err = r.db.Exec(
		`INSERT INTO run_items (run_id, split, label, source, outcome, outputs, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, item.Split, item.Label, item.Source, item.Outcome.String(), string(data), errText, time.Now().UTC(),
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return err
}

// Recorder returns a batch.Summary OnItem callback that stores every item
// of runID. Storage errors are logged and do not stop the run.
func (r *RunRepository) Recorder(runID string) func(batch.Item) {
	return func(item batch.Item) {
		if err := r.Record(runID, item); err != nil {
			log.Printf("Error recording %s: %v", item.Source, err)
		}
	}
}

// Finish marks run finished with its final counts.
func (r *RunRepository) Finish(run *Run, counts batch.Counts) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`UPDATE runs SET status = ?, succeeded = ?, skipped = ?, failed = ?, finished_at = ?
		 WHERE id = ?`,
		string(RunFinished), counts.Succeeded, counts.Skipped, counts.Failed, now, run.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	run.Status = RunFinished
	run.Counts = counts
	run.FinishedAt = &now
	return nil
}

const runColumns = `id, kind, layout, status, succeeded, skipped, failed, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status string
	var finished sql.NullTime

	err := row.Scan(&run.ID, &run.Kind, &run.Layout, &status,
		&run.Counts.Succeeded, &run.Counts.Skipped, &run.Counts.Failed,
		&run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

// Get retrieves a run by its ID.
func (r *RunRepository) Get(id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// List returns all runs, newest first.
func (r *RunRepository) List() ([]*Run, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Items returns the items recorded for a run in insertion order.
func (r *RunRepository) Items(runID string) ([]RunItem, error) {
	rows, err := r.db.Query(
		`SELECT id, run_id, split, label, source, outcome, outputs, error, created_at
		 FROM run_items
		 WHERE run_id = ?
		 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		var it RunItem
		var outputs string
		if err := rows.Scan(&it.ID, &it.RunID, &it.Split, &it.Label, &it.Source, &it.Outcome, &outputs, &it.Error, &it.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(outputs), &it.Outputs); err != nil {
			return nil, fmt.Errorf("item %d outputs: %w", it.ID, err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
