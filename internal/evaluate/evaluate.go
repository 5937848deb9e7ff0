// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate scores DP-GBDT ensembles with k-fold cross-validation
// over a sweep of privacy budgets. Folds of one budget train concurrently.
package evaluate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/internal/ensemble"
	"github.com/pdiddy/dp-gbdt/internal/task"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

const defaultFolds = 5

type options struct {
	trace  io.Writer
	logger *slog.Logger
}

// Option customises Evaluate.
type Option func(*options)

// WithTrace collects the deterministic verification trace of every fold,
// in fold order, into w.
func WithTrace(w io.Writer) Option {
	return func(o *options) { o.trace = w }
}

// WithLogger sets the logger handed to every ensemble.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Evaluate cross-validates params on ds once per budget in cfg.Budgets
// (or params.PrivacyBudget when none are configured). Progress lines in
// the form "<dataset> pb=<budget>" followed by the fold scores and the
// elapsed time are written to w.
func Evaluate(ctx context.Context, ds *dataset.DataSet, params types.ModelParams, cfg types.EvaluationConfig, w io.Writer, opts ...Option) (*types.EvaluationRun, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if w == nil {
		w = io.Discard
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model parameters: %w", err)
	}
	t, err := task.New(params.Task, cfg.Deterministic)
	if err != nil {
		return nil, err
	}

	folds := cfg.Folds
	if folds <= 0 {
		folds = defaultFolds
	}
	budgets := cfg.Budgets
	if len(budgets) == 0 {
		budgets = []float64{params.PrivacyBudget}
	}

	seed := params.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	run := &types.EvaluationRun{
		ID:        uuid.NewString(),
		Dataset:   ds.Name,
		Rows:      ds.Len(),
		Task:      params.Task,
		ScoreName: t.ScoreName(),
		Folds:     folds,
		CreatedAt: time.Now().UTC(),
		Params:    params,
	}

	for b, budget := range budgets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var rng *rand.Rand
		if !cfg.Deterministic {
			rng = rand.New(rand.NewPCG(seed, uint64(b)))
		}
		splits, err := dataset.CrossValidation(ds, folds, rng)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", ds.Name, err)
		}

		p := params
		p.PrivacyBudget = budget
		if params.Seed != 0 {
			p.Seed = params.Seed + uint64(b*folds)
		}

		fmt.Fprintf(w, "%s pb=%g\n", ds.Name, budget)
		start := time.Now()
		scores, err := runFolds(ctx, splits, p, cfg.Deterministic, o)
		if err != nil {
			return nil, fmt.Errorf("budget %g: %w", budget, err)
		}
		elapsed := time.Since(start)

		for _, s := range scores {
			fmt.Fprintf(w, "%.9g ", s)
		}
		fmt.Fprintf(w, " (%.1fs)\n", elapsed.Seconds())

		mean, std := stat.MeanStdDev(scores, nil)
		run.Results = append(run.Results, types.BudgetResult{
			PrivacyBudget: budget,
			FoldScores:    scores,
			Mean:          mean,
			StdDev:        std,
			Elapsed:       elapsed,
		})
		o.logger.Info("budget evaluated", "dataset", ds.Name, "budget", budget, "mean", mean, "stddev", std)
	}
	return run, nil
}

// runFolds trains one ensemble per split concurrently and returns the
// test scores in fold order.
func runFolds(ctx context.Context, splits []dataset.TrainTestSplit, params types.ModelParams, deterministic bool, o options) ([]float64, error) {
	scores := make([]float64, len(splits))
	errs := make([]error, len(splits))
	traces := make([]bytes.Buffer, len(splits))

	var wg sync.WaitGroup
	for i, split := range splits {
		wg.Add(1)
		go func(i int, split dataset.TrainTestSplit) {
			defer wg.Done()
			scores[i], errs[i] = trainFold(ctx, i, split, params, deterministic, &traces[i], o.logger)
		}(i, split)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if o.trace != nil {
		for i := range traces {
			if _, err := o.trace.Write(traces[i].Bytes()); err != nil {
				return nil, fmt.Errorf("writing trace: %w", err)
			}
		}
	}
	return scores, nil
}

func trainFold(ctx context.Context, fold int, split dataset.TrainTestSplit, params types.ModelParams, deterministic bool, trace io.Writer, logger *slog.Logger) (float64, error) {
	if params.Seed != 0 {
		params.Seed += uint64(fold)
	}
	e, err := ensemble.New(params, ensemble.Options{
		Deterministic: deterministic,
		Trace:         trace,
		Fold:          fold,
		Logger:        logger.With("fold", fold),
	})
	if err != nil {
		return 0, err
	}

	train := split.Train
	train.ScaleY(-1, 1)
	if err := e.Train(ctx, train); err != nil {
		return 0, fmt.Errorf("fold %d: %w", fold, err)
	}
	return e.Score(split.Test), nil
}
