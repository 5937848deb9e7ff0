// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tree builds single differentially private regression trees on
// gradients. Splits are chosen with the exponential mechanism and leaf
// values are clipped and perturbed with Laplace noise.
package tree

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/internal/dp"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// ErrNoRows is returned by Fit when the tree has no rows to learn from.
var ErrNoRows = errors.New("tree has no rows to fit")

// Options tune how a tree is built.
type Options struct {
	// Rng drives split selection and leaf noise. A nil Rng is seeded
	// from the runtime when randomness is needed.
	Rng *rand.Rand

	// Deterministic picks the best split instead of sampling one, skips
	// leaf noise and writes the leaf value sum to Trace.
	Deterministic bool

	// Trace receives verification lines in deterministic mode.
	Trace io.Writer

	Logger *slog.Logger
}

// DPTree is a regression tree fitted to the gradients of a DataSet.
type DPTree struct {
	params     *types.ModelParams
	treeParams types.TreeParams
	data       *dataset.DataSet
	index      int
	opts       Options
	categories map[int]bool

	root *TreeNode
}

// New prepares tree number index of an ensemble for fitting on ds, whose
// Gradients must be set.
func New(params *types.ModelParams, treeParams types.TreeParams, ds *dataset.DataSet, index int, opts Options) *DPTree {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DPTree{
		params:     params,
		treeParams: treeParams,
		data:       ds,
		index:      index,
		opts:       opts,
		categories: categorySet(params.CatIdx),
	}
}

// Restore wraps an already fitted root, e.g. one loaded from disk, so it
// can predict.
func Restore(params *types.ModelParams, root *TreeNode) *DPTree {
	return &DPTree{
		params:     params,
		categories: categorySet(params.CatIdx),
		root:       root,
		opts:       Options{Logger: slog.Default()},
	}
}

func categorySet(idx []int) map[int]bool {
	set := make(map[int]bool, len(idx))
	for _, c := range idx {
		set[c] = true
	}
	return set
}

// Root returns the root node, or nil before Fit.
func (t *DPTree) Root() *TreeNode { return t.root }

// Data returns the rows the tree is fitted on, nil for restored trees.
func (t *DPTree) Data() *dataset.DataSet { return t.data }

// Fit grows the tree depth first. Under differential privacy the leaves
// are then clipped and perturbed, and a tree without rows becomes a
// single noisy leaf.
func (t *DPTree) Fit() error {
	if t.data == nil || (t.data.Empty() && !t.params.UseDP) {
		return ErrNoRows
	}
	if len(t.data.Gradients) != t.data.Len() {
		return fmt.Errorf("tree %d: %d gradients for %d rows", t.index, len(t.data.Gradients), t.data.Len())
	}

	rows := make([]int, t.data.Len())
	for i := range rows {
		rows[i] = i
	}
	t.root = t.grow(0, rows)

	if !t.params.UseDP {
		return nil
	}

	leaves := t.root.Leaves()
	if t.params.LeafClipping || !t.params.GradientFiltering {
		threshold := t.params.L2Threshold * math.Pow(1-t.params.LearningRate, float64(t.index))
		for _, leaf := range leaves {
			leaf.Prediction = dp.Clamp(leaf.Prediction, -threshold, threshold)
		}
	}
	t.addNoise(leaves)
	return nil
}

func (t *DPTree) grow(depth int, rows []int) *TreeNode {
	if depth == t.params.MaxDepth || len(rows) < t.params.MinSamplesSplit {
		return t.leaf(depth, rows)
	}

	split, ok := t.bestSplit(depth, rows)
	if !ok {
		t.opts.Logger.Debug("no split found", "tree", t.index, "depth", depth, "rows", len(rows))
		return t.leaf(depth, rows)
	}

	t.opts.Logger.Debug("split",
		"tree", t.index, "depth", depth, "attr", split.FeatureIndex,
		"value", split.SplitValue, "gain", split.Gain,
		"lhs", split.LHSSize, "rhs", split.RHSSize)

	categorical := t.categories[split.FeatureIndex]
	left := make([]int, 0, split.LHSSize)
	right := make([]int, 0, split.RHSSize)
	for _, r := range rows {
		if goesLeft(t.data.X[r][split.FeatureIndex], split.SplitValue, categorical) {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	return &TreeNode{
		Depth:      depth,
		SplitAttr:  split.FeatureIndex,
		SplitValue: split.SplitValue,
		SplitGain:  split.Gain,
		LHSSize:    split.LHSSize,
		RHSSize:    split.RHSSize,
		Left:       t.grow(depth+1, left),
		Right:      t.grow(depth+1, right),
	}
}

// leaf predicts -sum(g)/(n+lambda) for the rows that reach it, 0 when
// none do.
func (t *DPTree) leaf(depth int, rows []int) *TreeNode {
	n := &TreeNode{Leaf: true, Depth: depth}
	if len(rows) == 0 {
		return n
	}
	var sum float64
	for _, r := range rows {
		sum += t.data.Gradients[r]
	}
	n.Prediction = -sum / (float64(len(rows)) + t.params.L2Lambda)
	return n
}

// nodeBudget is the share of the tree budget spent on the split at depth.
func (t *DPTree) nodeBudget(depth int) float64 {
	b := t.treeParams.PrivacyBudget
	if !t.params.UseDecay {
		return b / (2 * float64(t.params.MaxDepth))
	}
	if depth == 0 {
		return b / (2*math.Pow(2, float64(t.params.MaxDepth+1)) + 2*math.Pow(2, float64(depth+1)))
	}
	return b / (2 * math.Pow(2, float64(depth+1)))
}

func (t *DPTree) bestSplit(depth int, rows []int) (SplitCandidate, bool) {
	gradients := make([]float64, len(rows))
	for i, r := range rows {
		gradients[i] = t.data.Gradients[r]
	}

	grid := t.params.Grid()
	budget := t.nodeBudget(depth)
	column := make([]float64, len(rows))

	var candidates []SplitCandidate
	for f := 0; f < t.data.NumCols(); f++ {
		for i, r := range rows {
			column[i] = t.data.X[r][f]
		}
		categorical := t.categories[f]
		fgrid := grid
		if categorical {
			fgrid = nil
		}
		for _, c := range candidateSplits(f, column, gradients, categorical, fgrid, t.params.L2Lambda, t.opts.Deterministic) {
			if t.params.UseDP {
				c.Gain = budget * c.Gain / (2 * t.treeParams.DeltaG)
			}
			candidates = append(candidates, c)
		}
	}

	gains := make([]float64, len(candidates))
	for i, c := range candidates {
		gains[i] = c.Gain
	}
	pick := dp.ExponentialMechanism(gains, t.rng(), t.opts.Deterministic || !t.params.UseDP)
	if pick < 0 {
		return SplitCandidate{}, false
	}
	return candidates[pick], true
}

func (t *DPTree) rng() *rand.Rand {
	if t.opts.Rng == nil {
		t.opts.Rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return t.opts.Rng
}

// addNoise perturbs every leaf with Laplace noise of scale
// DeltaV/(budget/2). Deterministic trees only report the leaf sum.
func (t *DPTree) addNoise(leaves []*TreeNode) {
	if t.opts.Deterministic {
		var sum float64
		for _, leaf := range leaves {
			sum += leaf.Prediction
		}
		t.opts.Logger.Debug("leaf values", "tree", t.index, "leaves", len(leaves), "sum", sum)
		if t.opts.Trace != nil {
			fmt.Fprintf(t.opts.Trace, "LEAFVALUESSUM %.10f\n", sum)
		}
		return
	}

	scale := t.treeParams.DeltaV / (t.treeParams.PrivacyBudget / 2)
	t.opts.Logger.Debug("adding laplace noise", "tree", t.index, "scale", scale)
	lap := dp.NewLaplace(scale, t.rng())
	for _, leaf := range leaves {
		leaf.Prediction += lap.Sample()
	}
}

// Predict returns the tree's prediction for every row of X.
func (t *DPTree) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = t.predictRow(row)
	}
	return out
}

func (t *DPTree) predictRow(row []float64) float64 {
	node := t.root
	for node != nil && !node.Leaf {
		if goesLeft(row[node.SplitAttr], node.SplitValue, t.categories[node.SplitAttr]) {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	if node == nil {
		return 0
	}
	return node.Prediction
}
