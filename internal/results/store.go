// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package results persists evaluation runs in a SQLite database and
// exports them for plotting.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

const dbFile = "results.db"

// timeLayout is fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// Store manages the results SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
	cache      *lru.Cache[string, *types.EvaluationRun]
}

// NewStore opens or creates the database at cfg.Dir/results.db and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, *types.EvaluationRun](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating run cache: %w", err)
	}

	s := &Store{
		db:         db,
		dir:        cfg.Dir,
		maxResults: maxResults,
		cache:      cache,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			dataset TEXT NOT NULL,
			nb_samples INTEGER NOT NULL,
			task TEXT NOT NULL,
			score_name TEXT,
			folds INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			params TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS scores (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			privacy_budget REAL NOT NULL,
			mean REAL,
			stddev REAL,
			elapsed_ms INTEGER,
			fold_scores TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_run_id ON scores(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save inserts run, replacing any run with the same ID.
func (s *Store) Save(ctx context.Context, run *types.EvaluationRun) error {
	if run.ID == "" {
		return errors.New("run has no ID")
	}
	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshaling params: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, nb_samples, task, score_name, folds, created_at, params)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Rows, string(run.Task), run.ScoreName, run.Folds,
		run.CreatedAt.UTC().Format(timeLayout), string(paramsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scores (run_id, position, privacy_budget, mean, stddev, elapsed_ms, fold_scores)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		foldJSON, err := json.Marshal(types.NullableScores(r.FoldScores))
		if err != nil {
			return fmt.Errorf("marshaling fold scores for budget %g: %w", r.PrivacyBudget, err)
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, i, r.PrivacyBudget, r.Mean, r.StdDev,
			r.Elapsed.Milliseconds(), string(foldJSON),
		)
		if err != nil {
			return fmt.Errorf("inserting score for budget %g: %w", r.PrivacyBudget, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.cache.Remove(run.ID)
	return nil
}

// Delete removes a run and its scores.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	s.cache.Remove(id)
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
