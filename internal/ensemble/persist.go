// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ensemble

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/internal/tree"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// Model is the serialisable form of a trained ensemble.
type Model struct {
	Params    types.ModelParams `json:"params" yaml:"params"`
	InitScore float64           `json:"init_score" yaml:"init_score"`
	Scaler    dataset.Scaler    `json:"scaler" yaml:"scaler"`
	Trees     []*tree.TreeNode  `json:"trees" yaml:"trees"`
}

// Snapshot captures the trained state of e.
func (e *DPEnsemble) Snapshot() Model {
	m := Model{
		Params:    e.params,
		InitScore: e.initScore,
		Scaler:    e.scaler,
		Trees:     make([]*tree.TreeNode, 0, len(e.trees)),
	}
	for _, t := range e.trees {
		m.Trees = append(m.Trees, t.Root())
	}
	return m
}

// FromModel rebuilds an ensemble that predicts like the one m was taken
// from. It cannot be trained further.
func FromModel(m Model) (*DPEnsemble, error) {
	e, err := New(m.Params, Options{})
	if err != nil {
		return nil, err
	}
	e.initScore = m.InitScore
	e.scaler = m.Scaler
	for i, root := range m.Trees {
		if root == nil {
			return nil, fmt.Errorf("tree %d is empty", i)
		}
		e.trees = append(e.trees, tree.Restore(&e.params, root))
	}
	return e, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Save writes m to path as YAML when the extension is .yaml or .yml and
// as indented JSON otherwise.
func Save(path string, m Model) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling model: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (Model, error) {
	var m Model
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading model: %w", err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return m, fmt.Errorf("parsing model %s: %w", path, err)
	}
	if len(m.Trees) == 0 {
		return m, fmt.Errorf("model %s has no trees", path)
	}
	return m, nil
}
