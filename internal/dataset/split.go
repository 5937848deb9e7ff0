// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// TrainTestSplit pairs a training set with the test set held out from it.
type TrainTestSplit struct {
	Train *DataSet
	Test  *DataSet
}

// SplitRandom splits d into a test part made of the first
// ceil((1-trainRatio)*n) rows and a train part made of the rest. When rng
// is non-nil the rows of a clone of d are shuffled first. A ratio >= 1
// yields an empty test set, a ratio <= 0 an empty train set.
func SplitRandom(d *DataSet, trainRatio float64, rng *rand.Rand) TrainTestSplit {
	src := d
	if rng != nil {
		src = d.Clone()
		src.Shuffle(rng)
	}

	n := src.Len()
	// the epsilon absorbs representation error, e.g. (1-0.7)*10
	border := int(math.Ceil((1-trainRatio)*float64(n) - 1e-9))
	border = max(0, min(border, n))

	test := make([]int, 0, border)
	train := make([]int, 0, n-border)
	for i := 0; i < n; i++ {
		if i < border {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	return TrainTestSplit{
		Train: src.Subset(train),
		Test:  src.Subset(test),
	}
}

// CrossValidation returns one TrainTestSplit per fold, mirroring
// scikit-learn's KFold: fold sizes are n/folds with the remainder spread
// over the first folds, and fold i is the test set of split i. The rows
// are shuffled first when rng is non-nil. d itself is not modified.
func CrossValidation(d *DataSet, folds int, rng *rand.Rand) ([]TrainTestSplit, error) {
	if folds < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", folds)
	}
	if folds > d.Len() {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", d.Len(), folds)
	}

	src := d
	if rng != nil {
		src = d.Clone()
		src.Shuffle(rng)
	}

	n := src.Len()
	sizes := make([]int, folds)
	for i := range sizes {
		sizes[i] = n / folds
		if i < n%folds {
			sizes[i]++
		}
	}

	splits := make([]TrainTestSplit, 0, folds)
	start := 0
	for _, size := range sizes {
		end := start + size
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				test = append(test, i)
			} else {
				train = append(train, i)
			}
		}
		// Splits must not share rows: folds train concurrently.
		splits = append(splits, TrainTestSplit{
			Train: src.Subset(train).Clone(),
			Test:  src.Subset(test).Clone(),
		})
		start = end
	}
	return splits, nil
}
