// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package task implements the learning tasks a DP-GBDT ensemble can be
// trained for. Each task supplies the initial score, the per-sample
// gradients of its loss, and the score used for evaluation.
package task

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// ErrUnknownTask is returned by New for an unsupported TaskKind.
var ErrUnknownTask = errors.New("unknown task")

// Task is the loss-specific part of gradient boosting.
type Task interface {
	// Name returns the TaskKind this task implements.
	Name() types.TaskKind

	// InitScore returns the constant prediction the ensemble starts from.
	InitScore(y []float64) float64

	// Gradients returns the first-order gradient of the loss for every
	// sample given the current raw predictions.
	Gradients(y, pred []float64) []float64

	// Score compares targets with raw ensemble predictions.
	Score(y, pred []float64) float64

	// ScoreName names the metric returned by Score ("rmse", "accuracy").
	ScoreName() string

	// HigherIsBetter reports whether larger scores are better.
	HigherIsBetter() bool
}

// New returns the Task for kind. Deterministic tasks truncate gradients to
// 15 decimals so that results are reproducible across implementations.
func New(kind types.TaskKind, deterministic bool) (Task, error) {
	switch kind {
	case types.TaskRegression:
		return Regression{Deterministic: deterministic}, nil
	case types.TaskClassification:
		return BinaryClassification{Deterministic: deterministic}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTask, kind)
	}
}

// Regression uses least squares as its loss.
type Regression struct {
	Deterministic bool
}

func (Regression) Name() types.TaskKind { return types.TaskRegression }

// InitScore is the mean of y.
func (Regression) InitScore(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return stat.Mean(y, nil)
}

func (r Regression) Gradients(y, pred []float64) []float64 {
	gradients := make([]float64, len(y))
	for i := range y {
		gradients[i] = pred[i] - y[i]
	}
	if r.Deterministic {
		truncate(gradients)
	}
	return gradients
}

func (Regression) Score(y, pred []float64) float64 { return RMSE(y, pred) }
func (Regression) ScoreName() string                { return "rmse" }
func (Regression) HigherIsBetter() bool             { return false }

// BinaryClassification uses binomial deviance as its loss. Labels are 0/1
// and raw predictions are log-odds.
type BinaryClassification struct {
	Deterministic bool
}

func (BinaryClassification) Name() types.TaskKind { return types.TaskClassification }

// InitScore is the log-odds of the positive class frequency.
func (BinaryClassification) InitScore(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	const eps = 1e-15
	p := stat.Mean(y, nil)
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

func (c BinaryClassification) Gradients(y, pred []float64) []float64 {
	gradients := make([]float64, len(y))
	for i := range y {
		gradients[i] = Sigmoid(pred[i]) - y[i]
	}
	if c.Deterministic {
		truncate(gradients)
	}
	return gradients
}

// Score is the accuracy of thresholding the predicted probability at 0.5.
func (BinaryClassification) Score(y, pred []float64) float64 {
	labels := make([]float64, len(pred))
	for i, p := range pred {
		if Sigmoid(p) >= 0.5 {
			labels[i] = 1
		}
	}
	return Accuracy(y, labels)
}

func (BinaryClassification) ScoreName() string    { return "accuracy" }
func (BinaryClassification) HigherIsBetter() bool { return true }

// Sigmoid is the logistic function 1/(1+exp(-x)).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func truncate(values []float64) {
	for i, v := range values {
		values[i] = math.Floor(v*1e15) / 1e15
	}
}
