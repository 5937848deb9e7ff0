// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

const uciBase = "https://archive.ics.uci.edu/ml/machine-learning-databases"

// builtin lists the datasets the trainer knows out of the box.
var builtin = []types.DatasetSpec{
	{
		Name:      "abalone",
		File:      "abalone.data",
		URL:       uciBase + "/abalone/abalone.data",
		Task:      types.TaskRegression,
		NumIdx:    []int{1, 2, 3, 4, 5, 6, 7},
		CatIdx:    []int{0},
		TargetIdx: 8,
	},
	{
		Name:      "adult",
		File:      "adult.data",
		URL:       uciBase + "/adult/adult.data",
		Task:      types.TaskClassification,
		NumIdx:    []int{0, 2, 4, 10, 11, 12},
		CatIdx:    []int{1, 3, 5, 6, 7, 8, 9, 13},
		TargetIdx: 14,
	},
	{
		// Distributed as a zip archive; extract YearPredictionMSD.txt
		// into the dataset directory by hand.
		Name:      "yearMSD",
		File:      "YearPredictionMSD.txt",
		Task:      types.TaskRegression,
		NumIdx:    seq(1, 90),
		TargetIdx: 0,
	},
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// Registry resolves dataset names to specs. Specs added later shadow
// built-in ones of the same name.
type Registry struct {
	specs map[string]types.DatasetSpec
}

// NewRegistry returns a registry holding the built-in datasets plus extra.
func NewRegistry(extra ...types.DatasetSpec) *Registry {
	r := &Registry{specs: make(map[string]types.DatasetSpec)}
	for _, s := range builtin {
		r.specs[s.Name] = s
	}
	for _, s := range extra {
		r.specs[s.Name] = s
	}
	return r
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (types.DatasetSpec, error) {
	s, ok := r.specs[name]
	if !ok {
		return types.DatasetSpec{}, fmt.Errorf("unknown dataset %q", name)
	}
	return s, nil
}

// Specs returns every registered spec sorted by name.
func (r *Registry) Specs() []types.DatasetSpec {
	out := make([]types.DatasetSpec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadSpecFile reads a YAML file containing either a single DatasetSpec
// or a list of them.
func LoadSpecFile(path string) ([]types.DatasetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset spec: %w", err)
	}

	var list []types.DatasetSpec
	if err := yaml.Unmarshal(data, &list); err == nil {
		return validSpecs(path, list)
	}

	var single types.DatasetSpec
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing dataset spec %s: %w", path, err)
	}
	return validSpecs(path, []types.DatasetSpec{single})
}

func validSpecs(path string, specs []types.DatasetSpec) ([]types.DatasetSpec, error) {
	for i, s := range specs {
		if s.Name == "" || s.File == "" {
			return nil, fmt.Errorf("dataset spec %s entry %d: name and file are required", path, i)
		}
	}
	return specs, nil
}
