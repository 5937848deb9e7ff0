// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ensemble trains gradient-boosted ensembles of differentially
// private trees. Under differential privacy every tree is fitted on rows
// no other tree sees, so each tree may spend the full privacy budget.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/internal/dp"
	"github.com/pdiddy/dp-gbdt/internal/task"
	"github.com/pdiddy/dp-gbdt/internal/tree"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// ErrNoSamples is returned when there is nothing to train on or the
// geometric row allocation leaves a tree without rows.
var ErrNoSamples = errors.New("tree is not getting any samples")

var dpDisabledOnce sync.Once

// Options tune training.
type Options struct {
	// Deterministic disables shuffling, randomized split selection and
	// leaf noise, and writes a verification trace to Trace.
	Deterministic bool

	// Trace receives "Tree t CV-Ensemble f", "GRADIENTSUM" and
	// "LEAFVALUESSUM" lines in deterministic mode.
	Trace io.Writer

	// Fold is the cross-validation fold reported in the trace.
	Fold int

	// Rng overrides the generator seeded from ModelParams.Seed.
	Rng *rand.Rand

	Logger *slog.Logger
}

// DPEnsemble is a sequence of trees whose scaled sum, plus an initial
// score, predicts the target.
type DPEnsemble struct {
	params    types.ModelParams
	task      task.Task
	opts      Options
	rng       *rand.Rand
	logger    *slog.Logger
	initScore float64
	scaler    dataset.Scaler
	trees     []*tree.DPTree
}

// New validates params and prepares an untrained ensemble. A zero privacy
// budget or UseDP=false disables differential privacy.
func New(params types.ModelParams, opts Options) (*DPEnsemble, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model parameters: %w", err)
	}
	t, err := task.New(params.Task, opts.Deterministic)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger

	if params.PrivacyBudget == 0 || !params.UseDP {
		dpDisabledOnce.Do(func() {
			logger.Warn("differential privacy disabled")
		})
		params.UseDP = false
		params.PrivacyBudget = 0
	}

	rng := opts.Rng
	if rng == nil {
		seed := params.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		rng = rand.New(rand.NewPCG(seed, seed))
	}

	return &DPEnsemble{
		params: params,
		task:   t,
		opts:   opts,
		rng:    rng,
		logger: logger,
	}, nil
}

// Params returns the effective parameters after normalisation.
func (e *DPEnsemble) Params() types.ModelParams { return e.params }

// Task returns the ensemble's learning task.
func (e *DPEnsemble) Task() task.Task { return e.task }

// InitScore returns the constant the ensemble starts from.
func (e *DPEnsemble) InitScore() float64 { return e.initScore }

// Trees returns the fitted trees.
func (e *DPEnsemble) Trees() []*tree.DPTree { return e.trees }

// Train fits the ensemble on ds, which is left untouched. Categorical
// columns default to ds.CatIdx when the parameters name none. The
// training scaler of ds is kept for PredictTargets.
func (e *DPEnsemble) Train(ctx context.Context, ds *dataset.DataSet) error {
	if ds == nil || ds.Empty() {
		return ErrNoSamples
	}
	if e.params.CatIdx == nil && ds.CatIdx != nil {
		e.params.CatIdx = append([]int(nil), ds.CatIdx...)
		e.params.NumIdx = append([]int(nil), ds.NumIdx...)
	}

	data := ds.Clone()
	original := data.Len()
	e.scaler = ds.Scaler
	e.trees = nil
	e.initScore = e.task.InitScore(data.Y)
	e.logger.Debug("training initialized", "init_score", e.initScore, "rows", original)

	treeParams := types.TreeParams{PrivacyBudget: e.params.PrivacyBudget}

	for t := 0; t < e.params.NbTrees; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.tracef("Tree %d CV-Ensemble %d\n", t, e.opts.Fold)

		if data.Empty() {
			return fmt.Errorf("tree %d: %w", t, ErrNoSamples)
		}
		e.updateGradients(data, t)

		treeData := data
		var used []int
		if e.params.UseDP {
			treeParams.DeltaG = 3 * e.params.L2Threshold * e.params.L2Threshold
			treeParams.DeltaV = e.leafSensitivity(t)

			rows, err := e.rowsForTree(t, data.Len(), original)
			if err != nil {
				return err
			}
			used = e.selectRows(data, rows)
			treeData = data.Subset(used)
		}

		e.logger.Info("building tree",
			"tree", t, "dp", e.params.UseDP, "budget", treeParams.PrivacyBudget, "rows", treeData.Len())

		dt := tree.New(&e.params, treeParams, treeData, t, tree.Options{
			Rng:           e.rng,
			Deterministic: e.opts.Deterministic,
			Trace:         e.opts.Trace,
			Logger:        e.logger,
		})
		if err := dt.Fit(); err != nil {
			return fmt.Errorf("fitting tree %d: %w", t, err)
		}
		e.trees = append(e.trees, dt)

		if e.logger.Enabled(ctx, slog.LevelDebug) {
			var b strings.Builder
			dt.Print(&b)
			e.logger.Debug("tree splits", "tree", t, "splits", b.String())
		}

		if used != nil {
			data = data.RemoveRows(used)
		}
		e.logger.Info("tree done", "tree", t, "rows_left", data.Len())
	}
	return nil
}

// updateGradients sets data.Gradients from the initial score for the
// first tree and from the current ensemble afterwards.
func (e *DPEnsemble) updateGradients(data *dataset.DataSet, t int) {
	var pred []float64
	if t == 0 {
		pred = make([]float64, data.Len())
		for i := range pred {
			pred[i] = e.initScore
		}
	} else {
		pred = e.Predict(data.X)
	}
	data.Gradients = e.task.Gradients(data.Y, pred)

	if e.opts.Deterministic {
		sum := floats.Sum(data.Gradients)
		if sum < 0 && sum >= -1e-10 {
			sum = 0
		}
		e.tracef("GRADIENTSUM %.8f\n", sum)
	}
}

// leafSensitivity bounds how much one row can move a leaf of tree t.
// Without leaf clipping GDF alone bounds it; otherwise the clipping
// threshold decays with t.
func (e *DPEnsemble) leafSensitivity(t int) float64 {
	p := e.params
	base := p.L2Threshold / (1 + p.L2Lambda)
	if p.GradientFiltering && !p.LeafClipping {
		return base
	}
	return math.Min(base, 2*p.L2Threshold*math.Pow(1-p.LearningRate, float64(t)))
}

// rowsForTree returns how many of the remaining rows tree t receives.
// A balanced partition hands out zero rows while fewer rows than trees
// remain, and those trees become single noisy leaves. The geometric
// allocation never does.
func (e *DPEnsemble) rowsForTree(t, remaining, original int) (int, error) {
	p := e.params
	if p.BalancePartition {
		return remaining / (p.NbTrees - t), nil
	}
	lr := p.LearningRate
	rows := int(float64(original) * lr * math.Pow(1-lr, float64(t)) /
		(1 - math.Pow(1-lr, float64(p.NbTrees))))
	rows = min(rows, remaining)
	if rows <= 0 {
		return 0, fmt.Errorf("tree %d of %d with %d rows left: %w", t, p.NbTrees, remaining, ErrNoSamples)
	}
	return rows, nil
}

// selectRows picks the rows of the next tree. With gradient filtering,
// rows whose gradient lies within the L2 threshold are preferred and any
// shortfall is filled with rejected rows whose gradients are clipped in
// place.
func (e *DPEnsemble) selectRows(data *dataset.DataSet, rows int) []int {
	if !e.params.GradientFiltering {
		all := make([]int, data.Len())
		for i := range all {
			all[i] = i
		}
		e.shuffle(all)
		return all[:rows]
	}

	threshold := e.params.L2Threshold
	var accepted, rejected []int
	for i, g := range data.Gradients {
		if g < -threshold || g > threshold {
			rejected = append(rejected, i)
		} else {
			accepted = append(accepted, i)
		}
	}
	e.logger.Info("gradient filtering", "accepted", len(accepted), "rows", data.Len())

	if rows <= len(accepted) {
		e.shuffle(accepted)
		return accepted[:rows]
	}

	e.logger.Info("gradient filtering: filling up with clipped rows", "rows", rows-len(accepted))
	e.shuffle(rejected)
	picked := accepted
	for _, i := range rejected[:rows-len(accepted)] {
		data.Gradients[i] = dp.Clamp(data.Gradients[i], -threshold, threshold)
		picked = append(picked, i)
	}
	return picked
}

func (e *DPEnsemble) shuffle(indices []int) {
	if e.opts.Deterministic {
		return
	}
	e.rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

func (e *DPEnsemble) tracef(format string, args ...any) {
	if e.opts.Deterministic && e.opts.Trace != nil {
		fmt.Fprintf(e.opts.Trace, format, args...)
	}
}

// Predict returns init + learningRate * sum of tree predictions for every
// row of X, in the (possibly scaled) target space the ensemble was
// trained in.
func (e *DPEnsemble) Predict(X [][]float64) []float64 {
	sum := make([]float64, len(X))
	for _, t := range e.trees {
		floats.Add(sum, t.Predict(X))
	}
	for i := range sum {
		sum[i] = e.initScore + e.params.LearningRate*sum[i]
	}
	return sum
}

// PredictTargets is Predict mapped back through the training scaler.
func (e *DPEnsemble) PredictTargets(X [][]float64) []float64 {
	pred := e.Predict(X)
	e.scaler.InverseScale(pred)
	return pred
}

// Score predicts ds and scores the result with the ensemble's task.
func (e *DPEnsemble) Score(ds *dataset.DataSet) float64 {
	return e.task.Score(ds.Y, e.PredictTargets(ds.X))
}
