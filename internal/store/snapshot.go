package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/split"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrAlreadyAssigned is returned when a source file is assigned twice in
// the same snapshot.
var ErrAlreadyAssigned = errors.New("source already assigned")

// Snapshot records the parameters of one dataset split.
type Snapshot struct {
	ID        string       `json:"id"`
	Ratios    split.Ratios `json:"ratios"`
	Seed      uint64       `json:"seed"`
	CreatedAt time.Time    `json:"created_at"`
}

// Assignment places one source file of a snapshot in a split.
type Assignment struct {
	Label  string     `json:"label"`
	Source string     `json:"source"`
	Split  split.Name `json:"split"`
}

// SnapshotRepository stores split snapshots and their assignments.
type SnapshotRepository struct {
	db *sql.DB
}

// Snapshots returns the snapshot repository for this store.
func (s *Store) Snapshots() *SnapshotRepository {
	return &SnapshotRepository{db: s.db}
}

// Create inserts a new snapshot.
func (r *SnapshotRepository) Create(ratios split.Ratios, seed uint64) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Ratios:    ratios,
		Seed:      seed,
		CreatedAt: time.Now().UTC(),
	}

	// SQLite integers are signed; the seed round-trips through its bits.
	_, err := r.db.Exec(
		`INSERT INTO split_snapshots (id, train_ratio, val_ratio, test_ratio, seed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, ratios[0], ratios[1], ratios[2], int64(seed), snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Assign records that source of class label went to split s.
func (r *SnapshotRepository) Assign(snapshotID, label, source string, s split.Name) error {
	_, err := r.db.Exec(
		`INSERT INTO split_assignments (snapshot_id, label, source, split) VALUES (?, ?, ?, ?)`,
		snapshotID, label, source, string(s),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", source, ErrAlreadyAssigned)
	case isForeignKeyViolation(err):
		return fmt.Errorf("snapshot %s: %w", snapshotID, ErrNotFound)
	default:
		return err
	}
}

// Assignments returns the assignments of a snapshot ordered by split,
// label and source.
func (r *SnapshotRepository) Assignments(snapshotID string) ([]Assignment, error) {
	rows, err := r.db.Query(
		`SELECT label, source, split FROM split_assignments
		 WHERE snapshot_id = ?
		 ORDER BY CASE split WHEN 'train' THEN 0 WHEN 'val' THEN 1 ELSE 2 END, label, source`,
		snapshotID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		var name string
		if err := rows.Scan(&a.Label, &a.Source, &name); err != nil {
			return nil, err
		}
		a.Split = split.Name(name)
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Get retrieves a snapshot by its ID.
func (r *SnapshotRepository) Get(id string) (*Snapshot, error) {
	return r.one(`SELECT id, train_ratio, val_ratio, test_ratio, seed, created_at
		 FROM split_snapshots WHERE id = ?`, id)
}

// Latest returns the most recently created snapshot.
func (r *SnapshotRepository) Latest() (*Snapshot, error) {
	return r.one(`SELECT id, train_ratio, val_ratio, test_ratio, seed, created_at
		 FROM split_snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

func (r *SnapshotRepository) one(query string, args ...any) (*Snapshot, error) {
	snap := &Snapshot{}
	var seed int64

	err := r.db.QueryRow(query, args...).Scan(&snap.ID,
		&snap.Ratios[0], &snap.Ratios[1], &snap.Ratios[2], &seed, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	snap.Seed = uint64(seed)
	return snap, nil
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE")
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY")
}

// isConstraint matches the extended result code, or the primary code plus
// message when extended codes are off.
func isConstraint(err error, extended int, text string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == extended {
		return true
	}
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), text)
}
