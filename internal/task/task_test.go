package task

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

func TestNew(t *testing.T) {
	reg, err := New(types.TaskRegression, false)
	require.NoError(t, err)
	assert.Equal(t, types.TaskRegression, reg.Name())

	cls, err := New(types.TaskClassification, true)
	require.NoError(t, err)
	assert.Equal(t, types.TaskClassification, cls.Name())

	_, err = New("ranking", false)
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestRegression(t *testing.T) {
	r := Regression{}
	y := []float64{1, 2, 3, 6}

	assert.InDelta(t, 3.0, r.InitScore(y), 1e-12)
	assert.Equal(t, 0.0, r.InitScore(nil))

	g := r.Gradients(y, []float64{3, 3, 3, 3})
	assert.Equal(t, []float64{2, 1, 0, -3}, g)

	assert.InDelta(t, math.Sqrt(14.0/4), r.Score(y, []float64{3, 3, 3, 3}), 1e-12)
	assert.Equal(t, "rmse", r.ScoreName())
	assert.False(t, r.HigherIsBetter())
}

func TestRegressionDeterministicTruncatesGradients(t *testing.T) {
	r := Regression{Deterministic: true}
	g := r.Gradients([]float64{0}, []float64{1.0 / 3})
	assert.Equal(t, math.Floor((1.0/3)*1e15)/1e15, g[0])
}

func TestBinaryClassification(t *testing.T) {
	c := BinaryClassification{}
	y := []float64{0, 0, 0, 1}

	init := c.InitScore(y)
	assert.InDelta(t, math.Log(0.25/0.75), init, 1e-12)
	assert.InDelta(t, 0.25, Sigmoid(init), 1e-12)

	g := c.Gradients(y, []float64{0, 0, 0, 0})
	assert.Equal(t, []float64{0.5, 0.5, 0.5, -0.5}, g)

	// log-odds: negative -> 0, non-negative -> 1
	acc := c.Score(y, []float64{-2, -1, 3, 4})
	assert.InDelta(t, 0.75, acc, 1e-12)
	assert.Equal(t, "accuracy", c.ScoreName())
	assert.True(t, c.HigherIsBetter())
}

func TestBinaryClassificationInitScoreIsFiniteForOneClass(t *testing.T) {
	c := BinaryClassification{}
	assert.False(t, math.IsInf(c.InitScore([]float64{1, 1, 1}), 0))
	assert.False(t, math.IsInf(c.InitScore([]float64{0, 0}), 0))
}

func TestMetrics(t *testing.T) {
	assert.Equal(t, 0.0, RMSE(nil, nil))
	assert.InDelta(t, 1.0, RMSE([]float64{1, 2}, []float64{2, 3}), 1e-12)

	assert.InDelta(t, 50.0, MAPE([]float64{2, 0, 4}, []float64{1, 5, 6}), 1e-12)
	assert.True(t, math.IsNaN(MAPE([]float64{0}, []float64{1})))

	assert.InDelta(t, 2.0/3, Accuracy([]float64{1, 0, 1}, []float64{1, 0, 0}), 1e-12)
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}
