// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared parameter, configuration, and record types
// for the dp-gbdt trainer: model hyperparameters, per-tree privacy
// parameters, dataset descriptors, and evaluation run records.
package types

import (
	"errors"
	"fmt"
)

// TaskKind selects the learning task and therefore the loss function.
type TaskKind string

const (
	TaskRegression     TaskKind = "regression"
	TaskClassification TaskKind = "classification"
)

// ModelParams holds the hyperparameters of a DP-GBDT ensemble.
type ModelParams struct {
	// NbTrees is the number of trees in the ensemble.
	NbTrees int `json:"nb_trees" yaml:"nb_trees" mapstructure:"nb_trees"`

	// LearningRate scales every tree's contribution (shrinkage).
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate" mapstructure:"learning_rate"`

	// PrivacyBudget is epsilon. Each tree receives the full budget because
	// trees train on disjoint rows. Zero disables differential privacy.
	PrivacyBudget float64 `json:"privacy_budget" yaml:"privacy_budget" mapstructure:"privacy_budget"`

	// Task selects regression (least squares) or binary classification
	// (binomial deviance).
	Task TaskKind `json:"task" yaml:"task" mapstructure:"task"`

	MaxDepth        int `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth"`
	MinSamplesSplit int `json:"min_samples_split" yaml:"min_samples_split" mapstructure:"min_samples_split"`

	// BalancePartition gives every tree remaining/(trees left) rows. When
	// false the geometric allocation n*lr*(1-lr)^t / (1-(1-lr)^T) is used.
	BalancePartition bool `json:"balance_partition" yaml:"balance_partition" mapstructure:"balance_partition"`

	// GradientFiltering prefers rows whose gradient lies in
	// [-L2Threshold, L2Threshold] when sampling rows for a tree.
	GradientFiltering bool `json:"gradient_filtering" yaml:"gradient_filtering" mapstructure:"gradient_filtering"`

	// LeafClipping clips leaf values after a tree is built. It can only be
	// turned off when GradientFiltering is on.
	LeafClipping bool `json:"leaf_clipping" yaml:"leaf_clipping" mapstructure:"leaf_clipping"`

	UseDP    bool `json:"use_dp" yaml:"use_dp" mapstructure:"use_dp"`
	UseDecay bool `json:"use_decay" yaml:"use_decay" mapstructure:"use_decay"`

	L2Threshold float64 `json:"l2_threshold" yaml:"l2_threshold" mapstructure:"l2_threshold"`
	L2Lambda    float64 `json:"l2_lambda" yaml:"l2_lambda" mapstructure:"l2_lambda"`

	// UseGrid replaces data-derived split candidates with the fixed grid
	// GridLower, GridLower+GridStepSize, ... < GridUpper.
	UseGrid      bool    `json:"use_grid" yaml:"use_grid" mapstructure:"use_grid"`
	GridLower    float64 `json:"grid_lower" yaml:"grid_lower" mapstructure:"grid_lower"`
	GridUpper    float64 `json:"grid_upper" yaml:"grid_upper" mapstructure:"grid_upper"`
	GridStepSize float64 `json:"grid_step_size" yaml:"grid_step_size" mapstructure:"grid_step_size"`

	// Seed feeds every random source. Zero picks a time-based seed.
	Seed uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`

	// CatIdx and NumIdx are X-column positions of categorical and numerical
	// features. They are normally filled in from the parsed dataset.
	CatIdx []int `json:"cat_idx" yaml:"cat_idx" mapstructure:"cat_idx"`
	NumIdx []int `json:"num_idx" yaml:"num_idx" mapstructure:"num_idx"`
}

// TreeParams holds the per-tree sensitivities and budget.
type TreeParams struct {
	// DeltaG is the sensitivity of the split gain.
	DeltaG float64 `json:"delta_g" yaml:"delta_g"`

	// DeltaV is the sensitivity of a leaf value.
	DeltaV float64 `json:"delta_v" yaml:"delta_v"`

	PrivacyBudget float64 `json:"privacy_budget" yaml:"privacy_budget"`
}

// NewModelParams returns the baseline hyperparameters.
func NewModelParams() ModelParams {
	return ModelParams{
		NbTrees:          50,
		LearningRate:     0.1,
		PrivacyBudget:    1.0,
		Task:             TaskRegression,
		MaxDepth:         6,
		MinSamplesSplit:  2,
		BalancePartition: true,
		UseDP:            true,
		L2Threshold:      1.0,
		L2Lambda:         0.1,
	}
}

// DefaultModelParams returns the parameter set used for benchmarks:
// 50 trees of depth 6 with gradient filtering, leaf clipping and a privacy
// budget of 0.1.
func DefaultModelParams() ModelParams {
	p := NewModelParams()
	p.GradientFiltering = true
	p.LeafClipping = true
	p.PrivacyBudget = 0.1
	return p
}

// IsCategorical reports whether X column col holds a categorical feature.
func (p *ModelParams) IsCategorical(col int) bool {
	for _, c := range p.CatIdx {
		if c == col {
			return true
		}
	}
	return false
}

// Grid returns the split candidates of the fixed grid, or nil when the
// grid is disabled.
func (p *ModelParams) Grid() []float64 {
	if !p.UseGrid {
		return nil
	}
	var grid []float64
	for i := 0; ; i++ {
		v := p.GridLower + float64(i)*p.GridStepSize
		if v >= p.GridUpper {
			break
		}
		grid = append(grid, v)
	}
	return grid
}

// Validate checks that the hyperparameters are usable.
func (p *ModelParams) Validate() error {
	var errs []error
	if p.NbTrees < 1 {
		errs = append(errs, fmt.Errorf("nb_trees must be at least 1, got %d", p.NbTrees))
	}
	if p.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", p.MaxDepth))
	}
	if p.MinSamplesSplit < 2 {
		errs = append(errs, fmt.Errorf("min_samples_split must be at least 2, got %d", p.MinSamplesSplit))
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		errs = append(errs, fmt.Errorf("learning_rate must be in (0,1], got %g", p.LearningRate))
	}
	if p.PrivacyBudget < 0 {
		errs = append(errs, fmt.Errorf("privacy_budget must not be negative, got %g", p.PrivacyBudget))
	}
	if p.L2Threshold <= 0 {
		errs = append(errs, fmt.Errorf("l2_threshold must be positive, got %g", p.L2Threshold))
	}
	if p.L2Lambda < 0 {
		errs = append(errs, fmt.Errorf("l2_lambda must not be negative, got %g", p.L2Lambda))
	}
	switch p.Task {
	case TaskRegression, TaskClassification:
	default:
		errs = append(errs, fmt.Errorf("unknown task %q: use regression or classification", p.Task))
	}
	if p.UseGrid {
		if p.GridStepSize <= 0 {
			errs = append(errs, fmt.Errorf("grid_step_size must be positive, got %g", p.GridStepSize))
		} else if p.GridUpper <= p.GridLower {
			errs = append(errs, fmt.Errorf("grid_upper (%g) must exceed grid_lower (%g)", p.GridUpper, p.GridLower))
		}
	}
	return errors.Join(errs...)
}
