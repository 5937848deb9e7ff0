// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// Parse reads comma-separated rows from r according to spec.
//
// Columns listed in DropIdx are ignored, TargetIdx becomes y, NumIdx
// columns are parsed as floats and CatIdx columns are label-encoded in
// first-seen order. Classification targets are label-encoded the same
// way, so the first label seen becomes 0. Fields are trimmed and blank
// lines skipped. The returned DataSet records the X positions of the
// categorical and numerical columns.
func Parse(r io.Reader, spec types.DatasetSpec) (*DataSet, error) {
	layout, err := newLayout(spec)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	ds := &DataSet{
		Name:   spec.Name,
		CatIdx: layout.catX,
		NumIdx: layout.numX,
	}
	encoders := make(map[int]*labelEncoder)
	for _, col := range spec.CatIdx {
		encoders[col] = newLabelEncoder()
	}
	targetEncoder := newLabelEncoder()

	for {
		if spec.MaxRows > 0 && ds.Len() >= spec.MaxRows {
			break
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", spec.Name, err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) <= layout.maxCol {
			return nil, fmt.Errorf("%s line %d: %d fields, need at least %d", spec.Name, line, len(record), layout.maxCol+1)
		}

		row := make([]float64, 0, len(layout.columns))
		for _, col := range layout.columns {
			field := strings.TrimSpace(record[col])
			if enc, ok := encoders[col]; ok {
				row = append(row, enc.encode(field))
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d column %d: %w", spec.Name, line, col, err)
			}
			row = append(row, v)
		}

		field := strings.TrimSpace(record[spec.TargetIdx])
		var y float64
		if spec.Task == types.TaskClassification {
			y = targetEncoder.encode(field)
		} else {
			y, err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d target: %w", spec.Name, line, err)
			}
		}

		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, y)
	}

	if ds.Empty() {
		return nil, fmt.Errorf("%s: no rows", spec.Name)
	}
	if spec.Task == types.TaskClassification && targetEncoder.len() > 2 {
		return nil, fmt.Errorf("%s: binary classification needs 2 labels, found %d", spec.Name, targetEncoder.len())
	}
	return ds, nil
}

// Load opens spec.File (relative to dir unless absolute) and parses it.
func Load(spec types.DatasetSpec, dir string) (*DataSet, error) {
	f, err := os.Open(specPath(spec.File, dir))
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", spec.Name, err)
	}
	defer f.Close()
	return Parse(f, spec)
}

// layout maps raw file columns onto X columns.
type layout struct {
	columns []int // raw column of every X column, in X order
	catX    []int
	numX    []int
	maxCol  int
}

func newLayout(spec types.DatasetSpec) (layout, error) {
	var l layout
	if spec.TargetIdx < 0 {
		return l, fmt.Errorf("%s: target_idx must not be negative", spec.Name)
	}
	switch spec.Task {
	case types.TaskRegression, types.TaskClassification:
	default:
		return l, fmt.Errorf("%s: unknown task %q", spec.Name, spec.Task)
	}

	seen := map[int]string{spec.TargetIdx: "target"}
	var features []int
	for _, group := range []struct {
		name string
		cols []int
	}{{"numerical", spec.NumIdx}, {"categorical", spec.CatIdx}} {
		for _, col := range group.cols {
			if col < 0 {
				return l, fmt.Errorf("%s: negative %s column %d", spec.Name, group.name, col)
			}
			if prev, dup := seen[col]; dup {
				return l, fmt.Errorf("%s: column %d is both %s and %s", spec.Name, col, prev, group.name)
			}
			seen[col] = group.name
			if !slices.Contains(spec.DropIdx, col) {
				features = append(features, col)
			}
		}
	}
	if len(features) == 0 {
		return l, fmt.Errorf("%s: no feature columns", spec.Name)
	}
	slices.Sort(features)

	l.columns = features
	l.maxCol = max(spec.TargetIdx, features[len(features)-1])
	for x, col := range features {
		if slices.Contains(spec.CatIdx, col) {
			l.catX = append(l.catX, x)
		} else {
			l.numX = append(l.numX, x)
		}
	}
	return l, nil
}

type labelEncoder struct {
	codes map[string]float64
}

func newLabelEncoder() *labelEncoder {
	return &labelEncoder{codes: make(map[string]float64)}
}

func (e *labelEncoder) encode(label string) float64 {
	if code, ok := e.codes[label]; ok {
		return code
	}
	code := float64(len(e.codes))
	e.codes[label] = code
	return code
}

func (e *labelEncoder) len() int { return len(e.codes) }

// Path returns where the file of spec lives inside dir.
func Path(spec types.DatasetSpec, dir string) string {
	return specPath(spec.File, dir)
}

// specPath resolves file against dir.
func specPath(file, dir string) string {
	if filepath.IsAbs(file) || dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}
