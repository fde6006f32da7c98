// Package store persists replay runs and their per-branch records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maemowong/perceptron/proto/perceptron"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is the summary of one replay.
type Run struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Source    string            `json:"source"`
	Interface string            `json:"interface"`
	Config    perceptron.Config `json:"config"`
	Branches  int               `json:"branches"`
	Correct   int               `json:"correct"`
	Cycles    uint64            `json:"cycles"`
}

// Accuracy is Correct / Branches.
func (r Run) Accuracy() float64 {
	if r.Branches == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Branches)
}

// Store is a SQLite-backed run database.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at path and initializes the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores run and its records in one transaction. An empty run.ID is
// assigned a new UUID; a zero CreatedAt is set to now. Branches and Correct are
// recomputed from records.
func (s *Store) SaveRun(ctx context.Context, run Run, records []perceptron.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Branches, run.Correct = len(records), 0
	for _, r := range records {
		if r.Correct() {
			run.Correct++
		}
	}

	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, source, interface, config, branches, correct, cycles)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(time.RFC3339Nano), run.Source, run.Interface,
		string(cfgJSON), run.Branches, run.Correct, int64(run.Cycles)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, seq, address, hash_index, start_address, taken, prediction, y, weights)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		weights, err := json.Marshal(r.Weights)
		if err != nil {
			return "", fmt.Errorf("failed to marshal weights for record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, int64(r.Address), r.HashIndex, r.StartAddress,
			boolToInt(r.Taken), boolToInt(r.Prediction), r.Y, string(weights)); err != nil {
			return "", fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, interface, config, branches, correct, cycles FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, created_at, source, interface, config, branches, correct, cycles
	          FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Records returns the records of run id in training order.
func (s *Store) Records(ctx context.Context, id string) ([]perceptron.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check run existence: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, hash_index, start_address, taken, prediction, y, weights
		 FROM records WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []perceptron.Record
	for rows.Next() {
		var (
			r                 perceptron.Record
			address           int64
			taken, prediction int
			weights           string
		)
		if err := rows.Scan(&address, &r.HashIndex, &r.StartAddress, &taken, &prediction, &r.Y, &weights); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
		}
		r.Address = uint32(address)
		r.Taken = taken != 0
		r.Prediction = prediction != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRun removes a run and its records.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		createdAt string
		cfgJSON   string
		cycles    int64
	)
	if err := row.Scan(&run.ID, &createdAt, &run.Source, &run.Interface, &cfgJSON,
		&run.Branches, &run.Correct, &cycles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = t
	run.Cycles = uint64(cycles)

	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return Run{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
