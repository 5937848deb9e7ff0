// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package task

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMSE returns the root mean squared error between y and pred.
func RMSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	diff := make([]float64, len(y))
	floats.SubTo(diff, y, pred)
	return math.Sqrt(floats.Dot(diff, diff) / float64(len(y)))
}

// MAPE returns the mean absolute percentage error in percent. Samples with
// a zero target are skipped; NaN is returned when every target is zero.
func MAPE(y, pred []float64) float64 {
	var sum float64
	var n int
	for i := range y {
		if y[i] == 0 {
			continue
		}
		sum += math.Abs((y[i] - pred[i]) / y[i])
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return 100 * sum / float64(n)
}

// Accuracy returns the fraction of labels equal to their target.
func Accuracy(y, labels []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var correct int
	for i := range y {
		if y[i] == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(y))
}
