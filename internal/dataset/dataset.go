// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset holds the training data model (DataSet, Scaler,
// TrainTestSplit), splitting utilities, and the CSV parser that turns a
// DatasetSpec into a DataSet.
package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// ErrLengthMismatch is returned when X and y disagree in length or rows
// of X differ in width.
var ErrLengthMismatch = errors.New("length mismatch")

// DataSet is a feature matrix X with targets Y and the gradients the
// ensemble attaches to every row while training.
type DataSet struct {
	X         [][]float64
	Y         []float64
	Gradients []float64

	Name   string
	Scaler Scaler

	// CatIdx and NumIdx are the X-column positions of categorical and
	// numerical features.
	CatIdx []int
	NumIdx []int
}

// New returns a DataSet over X and y. It fails when the lengths differ or
// rows have different widths.
func New(X [][]float64, y []float64) (*DataSet, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", ErrLengthMismatch, len(X), len(y))
	}
	for i, row := range X {
		if len(row) != len(X[0]) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrLengthMismatch, i, len(row), len(X[0]))
		}
	}
	return &DataSet{X: X, Y: y}, nil
}

// Len returns the number of rows.
func (d *DataSet) Len() int { return len(d.Y) }

// NumCols returns the number of feature columns.
func (d *DataSet) NumCols() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Empty reports whether the dataset has no rows.
func (d *DataSet) Empty() bool { return len(d.Y) == 0 }

// AddRow appends one sample.
func (d *DataSet) AddRow(x []float64, y float64) error {
	if !d.Empty() && len(x) != d.NumCols() {
		return fmt.Errorf("%w: row has %d columns, want %d", ErrLengthMismatch, len(x), d.NumCols())
	}
	d.X = append(d.X, x)
	d.Y = append(d.Y, y)
	if d.Gradients != nil {
		d.Gradients = append(d.Gradients, 0)
	}
	return nil
}

// Column returns a copy of feature column col.
func (d *DataSet) Column(col int) []float64 {
	out := make([]float64, len(d.X))
	for i, row := range d.X {
		out[i] = row[col]
	}
	return out
}

// Clone returns a copy that shares no slices with d. Rows of X are
// copied as well.
func (d *DataSet) Clone() *DataSet {
	c := d.withMeta()
	c.X = make([][]float64, len(d.X))
	for i, row := range d.X {
		c.X[i] = slices.Clone(row)
	}
	c.Y = slices.Clone(d.Y)
	c.Gradients = slices.Clone(d.Gradients)
	return c
}

// Subset returns the rows at indices, in index order. Row slices of X are
// shared with d.
func (d *DataSet) Subset(indices []int) *DataSet {
	s := d.withMeta()
	s.X = make([][]float64, 0, len(indices))
	s.Y = make([]float64, 0, len(indices))
	if d.Gradients != nil {
		s.Gradients = make([]float64, 0, len(indices))
	}
	for _, i := range indices {
		s.X = append(s.X, d.X[i])
		s.Y = append(s.Y, d.Y[i])
		if d.Gradients != nil {
			s.Gradients = append(s.Gradients, d.Gradients[i])
		}
	}
	return s
}

// RemoveRows returns the rows not listed in indices, in their original
// order.
func (d *DataSet) RemoveRows(indices []int) *DataSet {
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}
	keep := make([]int, 0, d.Len())
	for i := 0; i < d.Len(); i++ {
		if _, ok := drop[i]; !ok {
			keep = append(keep, i)
		}
	}
	return d.Subset(keep)
}

// Shuffle permutes the rows of X, Y and Gradients together.
func (d *DataSet) Shuffle(rng *rand.Rand) {
	rng.Shuffle(d.Len(), func(i, j int) {
		d.X[i], d.X[j] = d.X[j], d.X[i]
		d.Y[i], d.Y[j] = d.Y[j], d.Y[i]
		if d.Gradients != nil {
			d.Gradients[i], d.Gradients[j] = d.Gradients[j], d.Gradients[i]
		}
	})
}

func (d *DataSet) withMeta() *DataSet {
	return &DataSet{
		Name:   d.Name,
		Scaler: d.Scaler,
		CatIdx: slices.Clone(d.CatIdx),
		NumIdx: slices.Clone(d.NumIdx),
	}
}
