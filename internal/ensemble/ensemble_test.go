package ensemble

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// --- test helpers ---

// linear returns n rows {i, i%3} with target 2*i.
func linear(t *testing.T, n int) *dataset.DataSet {
	t.Helper()
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		X[i] = []float64{float64(i), float64(i % 3)}
		y[i] = 2 * float64(i)
	}
	ds, err := dataset.New(X, y)
	require.NoError(t, err)
	return ds
}

func plainParams() types.ModelParams {
	p := types.NewModelParams()
	p.UseDP = false
	p.PrivacyBudget = 0
	p.NbTrees = 30
	p.LearningRate = 0.5
	p.MaxDepth = 3
	return p
}

func dpParams() types.ModelParams {
	p := types.DefaultModelParams()
	p.NbTrees = 3
	p.PrivacyBudget = 1
	p.MaxDepth = 2
	p.Seed = 42
	return p
}

// --- construction ---

func TestNewRejectsInvalidParams(t *testing.T) {
	p := plainParams()
	p.NbTrees = 0
	_, err := New(p, Options{})
	assert.Error(t, err)

	p = plainParams()
	p.Task = "ranking"
	_, err = New(p, Options{})
	assert.Error(t, err)
}

func TestNewDisablesDPForZeroBudget(t *testing.T) {
	p := dpParams()
	p.PrivacyBudget = 0
	e, err := New(p, Options{})
	require.NoError(t, err)
	assert.False(t, e.Params().UseDP)

	p = dpParams()
	p.UseDP = false
	e, err = New(p, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Params().PrivacyBudget)
}

func TestTrainRegressionFitsTrainingData(t *testing.T) {
	ds := linear(t, 20)
	e, err := New(plainParams(), Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))

	assert.Len(t, e.Trees(), 30)
	assert.InDelta(t, 19.0, e.InitScore(), 1e-12)
	// predicting the mean scores about 11.5
	assert.Less(t, e.Score(ds), 4.0)
}

func TestTrainClassificationSeparatesClasses(t *testing.T) {
	X := make([][]float64, 20)
	y := make([]float64, 20)
	for i := range X {
		X[i] = []float64{float64(i)}
		if i >= 10 {
			y[i] = 1
		}
	}
	ds, err := dataset.New(X, y)
	require.NoError(t, err)

	p := plainParams()
	p.Task = types.TaskClassification
	p.NbTrees = 10
	p.MaxDepth = 2
	e, err := New(p, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))

	assert.Equal(t, 1.0, e.Score(ds))
}

func TestTrainLeavesInputUntouched(t *testing.T) {
	ds := linear(t, 30)
	ds.ScaleY(-1, 1)
	y := append([]float64(nil), ds.Y...)

	e, err := New(dpParams(), Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))

	assert.Equal(t, 30, ds.Len())
	assert.Equal(t, y, ds.Y)
	assert.Nil(t, ds.Gradients)
}

func TestTrainAdoptsDatasetCategories(t *testing.T) {
	ds := linear(t, 12)
	ds.CatIdx = []int{1}
	ds.NumIdx = []int{0}

	e, err := New(plainParams(), Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))
	assert.Equal(t, []int{1}, e.Params().CatIdx)
}

func TestTrainRunsOutOfSamples(t *testing.T) {
	p := dpParams()
	p.NbTrees = 50
	p.BalancePartition = false
	p.LearningRate = 0.1
	e, err := New(p, Options{})
	require.NoError(t, err)

	// tree 0 gets 10*0.1/(1-0.9^50) = 1 row, tree 1 none
	err = e.Train(context.Background(), linear(t, 10))
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Contains(t, err.Error(), "tree 1 of 50")

	err = e.Train(context.Background(), &dataset.DataSet{})
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestBalancedTrainingWithFewerRowsThanTrees(t *testing.T) {
	ds := linear(t, 40)
	ds.ScaleY(-1, 1)
	p := dpParams()
	p.NbTrees = 50
	e, err := New(p, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))

	// 40/(50-t) is 0 until t = 10, then every tree takes one row
	require.Len(t, e.Trees(), 50)
	for i, tr := range e.Trees() {
		want := 1
		if i < 10 {
			want = 0
			assert.True(t, tr.Root().IsLeaf(), "tree %d", i)
		}
		assert.Equal(t, want, tr.Data().Len(), "tree %d", i)
	}
	for _, v := range e.PredictTargets(ds.X) {
		assert.False(t, math.IsNaN(v))
	}
}

// rowIDs returns the ids (column 0 of linear) of the rows every tree was
// fitted on.
func rowIDs(e *DPEnsemble) [][]int {
	ids := make([][]int, len(e.Trees()))
	for i, tr := range e.Trees() {
		for _, row := range tr.Data().X {
			ids[i] = append(ids[i], int(row[0]))
		}
	}
	return ids
}

func TestDPTreesTrainOnDisjointRows(t *testing.T) {
	tests := []struct {
		name     string
		balanced bool
		want     []int
	}{
		// 100/5 each
		{"balanced", true, []int{20, 20, 20, 20, 20}},
		// 100*0.5*0.5^t/(1-0.5^5)
		{"geometric", false, []int{51, 25, 12, 6, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := linear(t, 100)
			ds.ScaleY(-1, 1)
			p := dpParams()
			p.NbTrees = 5
			p.MaxDepth = 1
			p.LearningRate = 0.5
			p.BalancePartition = tt.balanced
			e, err := New(p, Options{})
			require.NoError(t, err)
			require.NoError(t, e.Train(context.Background(), ds))

			seen := map[int]int{}
			total := 0
			for i, ids := range rowIDs(e) {
				assert.Len(t, ids, tt.want[i], "tree %d", i)
				total += len(ids)
				for _, id := range ids {
					if prev, ok := seen[id]; ok {
						t.Errorf("row %d used by trees %d and %d", id, prev, i)
					}
					seen[id] = i
				}
			}
			assert.LessOrEqual(t, total, ds.Len())
		})
	}
}

func TestNonPrivateTreesSeeEveryRow(t *testing.T) {
	ds := linear(t, 30)
	p := plainParams()
	p.NbTrees = 4
	e, err := New(p, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))

	for i, ids := range rowIDs(e) {
		assert.Len(t, ids, ds.Len(), "tree %d", i)
	}
}

func TestTrainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(plainParams(), Options{})
	require.NoError(t, err)
	err = e.Train(ctx, linear(t, 10))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSeededDPTrainingIsReproducible(t *testing.T) {
	train := func(seed uint64) []float64 {
		ds := linear(t, 60)
		ds.ScaleY(-1, 1)
		p := dpParams()
		p.Seed = seed
		e, err := New(p, Options{})
		require.NoError(t, err)
		require.NoError(t, e.Train(context.Background(), ds))
		return e.PredictTargets(ds.X)
	}

	a := train(7)
	assert.Equal(t, a, train(7))
	assert.NotEqual(t, a, train(8))
	for _, v := range a {
		assert.False(t, math.IsNaN(v))
	}
}

func TestDeterministicTrace(t *testing.T) {
	run := func() (string, []float64) {
		ds := linear(t, 30)
		ds.ScaleY(-1, 1)
		var trace bytes.Buffer
		e, err := New(dpParams(), Options{Deterministic: true, Trace: &trace, Fold: 2})
		require.NoError(t, err)
		require.NoError(t, e.Train(context.Background(), ds))
		return trace.String(), e.Predict(ds.X)
	}

	trace, pred := run()
	lines := strings.Split(strings.TrimSpace(trace), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "Tree 0 CV-Ensemble 2", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "GRADIENTSUM "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "LEAFVALUESSUM "), lines[2])
	assert.Equal(t, "Tree 2 CV-Ensemble 2", lines[6])

	trace2, pred2 := run()
	assert.Equal(t, trace, trace2)
	assert.Equal(t, pred, pred2)
}

// --- row allocation ---

func TestRowsForTree(t *testing.T) {
	p := dpParams()
	p.NbTrees = 5
	e, err := New(p, Options{})
	require.NoError(t, err)

	rows, err := e.rowsForTree(0, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, rows)
	rows, err = e.rowsForTree(4, 7, 100)
	require.NoError(t, err)
	assert.Equal(t, 7, rows)

	e.params.BalancePartition = false
	e.params.LearningRate = 0.1
	rows, err = e.rowsForTree(0, 100, 100)
	require.NoError(t, err)
	// 100 * 0.1 / (1 - 0.9^5)
	assert.Equal(t, 24, rows)

	_, err = e.rowsForTree(0, 100, 1)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestLeafSensitivity(t *testing.T) {
	e, err := New(dpParams(), Options{})
	require.NoError(t, err)
	e.params.L2Threshold = 1
	e.params.L2Lambda = 0.1
	e.params.LearningRate = 0.5

	assert.InDelta(t, 1/1.1, e.leafSensitivity(0), 1e-12)
	assert.InDelta(t, 0.25, e.leafSensitivity(3), 1e-12)

	e.params.LeafClipping = false
	assert.InDelta(t, 1/1.1, e.leafSensitivity(3), 1e-12)
}

func TestSelectRowsWithGradientFiltering(t *testing.T) {
	e, err := New(dpParams(), Options{Deterministic: true})
	require.NoError(t, err)
	e.params.L2Threshold = 1

	ds := linear(t, 4)
	ds.Gradients = []float64{0.5, 2, -3, 0.1}

	assert.Equal(t, []int{0}, e.selectRows(ds, 1))

	picked := e.selectRows(ds, 3)
	assert.Equal(t, []int{0, 3, 1}, picked)
	assert.Equal(t, []float64{0.5, 1, -3, 0.1}, ds.Gradients)
}

func TestSelectRowsWithoutFiltering(t *testing.T) {
	p := dpParams()
	p.GradientFiltering = false
	e, err := New(p, Options{})
	require.NoError(t, err)

	picked := e.selectRows(linear(t, 10), 4)
	assert.Len(t, picked, 4)
	seen := map[int]bool{}
	for _, i := range picked {
		assert.False(t, seen[i])
		seen[i] = true
	}
}

// --- persistence ---

func TestSaveLoadRoundTrip(t *testing.T) {
	ds := linear(t, 40)
	ds.ScaleY(-1, 1)
	p := dpParams()
	p.GradientFiltering = false
	e, err := New(p, Options{})
	require.NoError(t, err)
	require.NoError(t, e.Train(context.Background(), ds))
	want := e.PredictTargets(ds.X)

	for _, name := range []string{"model.json", "model.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "models", name)
			require.NoError(t, Save(path, e.Snapshot()))

			m, err := Load(path)
			require.NoError(t, err)
			assert.Len(t, m.Trees, 3)
			assert.True(t, m.Scaler.Required)

			restored, err := FromModel(m)
			require.NoError(t, err)
			assert.Equal(t, want, restored.PredictTargets(ds.X))
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, Save(empty, Model{Params: plainParams()}))
	_, err = Load(empty)
	assert.Error(t, err)
}
