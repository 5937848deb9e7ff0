// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// ListOptions filters the runs returned by List.
type ListOptions struct {
	// Dataset keeps only runs on this dataset.
	Dataset string

	// Task keeps only runs of this task.
	Task types.TaskKind

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Get returns the run with the given ID, scores included.
func (s *Store) Get(ctx context.Context, id string) (*types.EvaluationRun, error) {
	if run, ok := s.cache.Get(id); ok {
		return run, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, nb_samples, task, score_name, folds, created_at, params
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}

	if err := s.loadScores(ctx, run); err != nil {
		return nil, err
	}
	s.cache.Add(id, run)
	return run, nil
}

// List returns the newest runs first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*types.EvaluationRun, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT id, dataset, nb_samples, task, score_name, folds, created_at, params
		FROM runs WHERE 1=1`)

	if opts.Dataset != "" {
		qb.WriteString(` AND dataset = ?`)
		args = append(args, opts.Dataset)
	}
	if opts.Task != "" {
		qb.WriteString(` AND task = ?`)
		args = append(args, string(opts.Task))
	}

	qb.WriteString(` ORDER BY created_at DESC, id LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	var runs []*types.EvaluationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, run := range runs {
		if err := s.loadScores(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.EvaluationRun, error) {
	var (
		run        types.EvaluationRun
		task       string
		scoreName  sql.NullString
		createdAt  string
		paramsJSON sql.NullString
	)
	if err := row.Scan(
		&run.ID, &run.Dataset, &run.Rows, &task, &scoreName,
		&run.Folds, &createdAt, &paramsJSON,
	); err != nil {
		return nil, err
	}

	run.Task = types.TaskKind(task)
	run.ScoreName = scoreName.String
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		run.CreatedAt = t
	}
	if paramsJSON.Valid {
		json.Unmarshal([]byte(paramsJSON.String), &run.Params)
	}
	return &run, nil
}

func (s *Store) loadScores(ctx context.Context, run *types.EvaluationRun) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT privacy_budget, mean, stddev, elapsed_ms, fold_scores
		 FROM scores WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("querying scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r            types.BudgetResult
			mean, stddev sql.NullFloat64
			elapsedMS    sql.NullInt64
			foldJSON     sql.NullString
		)
		if err := rows.Scan(&r.PrivacyBudget, &mean, &stddev, &elapsedMS, &foldJSON); err != nil {
			return fmt.Errorf("scanning score: %w", err)
		}
		r.Mean, r.StdDev = nullFloat(mean), nullFloat(stddev)
		r.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
		if foldJSON.Valid {
			var scores []*float64
			if err := json.Unmarshal([]byte(foldJSON.String), &scores); err != nil {
				return fmt.Errorf("decoding fold scores of run %s: %w", run.ID, err)
			}
			r.FoldScores = types.ScoresFromNullable(scores)
		}
		run.Results = append(run.Results, r)
	}
	return rows.Err()
}

// nullFloat maps NULL, which SQLite stores for NaN, back to NaN.
func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
