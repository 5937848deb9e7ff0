// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds settings for dataset downloads.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "dpgbdt/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// DatasetSpec describes how to turn a comma-separated file into a DataSet.
// Column indices refer to positions in the raw file.
type DatasetSpec struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// File is the path of the data file, relative to the dataset directory
	// unless absolute.
	File string `json:"file" yaml:"file" mapstructure:"file"`

	// URL is where Fetch downloads File from. Optional.
	URL string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`

	Task TaskKind `json:"task" yaml:"task" mapstructure:"task"`

	NumIdx    []int `json:"num_idx" yaml:"num_idx" mapstructure:"num_idx"`
	CatIdx    []int `json:"cat_idx" yaml:"cat_idx" mapstructure:"cat_idx"`
	TargetIdx int   `json:"target_idx" yaml:"target_idx" mapstructure:"target_idx"`
	DropIdx   []int `json:"drop_idx,omitempty" yaml:"drop_idx,omitempty" mapstructure:"drop_idx"`

	// MaxRows limits how many rows are read. Zero reads the whole file.
	MaxRows int `json:"max_rows,omitempty" yaml:"max_rows,omitempty" mapstructure:"max_rows"`
}

// EvaluationConfig holds settings for cross-validated evaluation.
type EvaluationConfig struct {
	// Folds is the number of cross-validation folds (default 5).
	Folds int `json:"folds" yaml:"folds" mapstructure:"folds"`

	// Budgets lists the privacy budgets to evaluate, in order.
	Budgets []float64 `json:"budgets" yaml:"budgets" mapstructure:"budgets"`

	// Deterministic disables shuffling, noise and randomized split
	// selection so that runs can be compared line by line.
	Deterministic bool `json:"deterministic" yaml:"deterministic" mapstructure:"deterministic"`
}

// StoreConfig holds settings for the results store.
type StoreConfig struct {
	// Dir is the directory containing results.db and exports.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// MaxResults is the default number of runs returned by List (default 20).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// CacheSize is the number of runs kept in memory (default 128).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// Config groups every section of dpgbdt.yaml.
type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	DatasetDir string           `json:"dataset_dir" yaml:"dataset_dir" mapstructure:"dataset_dir"`
	Model      ModelParams      `json:"model" yaml:"model" mapstructure:"model"`
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation" mapstructure:"evaluation"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Datasets   []DatasetSpec    `json:"datasets" yaml:"datasets" mapstructure:"datasets"`
}

// DefaultBudgets is the privacy budget sweep used when none is configured.
var DefaultBudgets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1.5, 2, 2.5, 3, 4}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		LogLevel:   "warn",
		DatasetDir: "datasets",
		Model:      DefaultModelParams(),
		Evaluation: EvaluationConfig{
			Folds:   5,
			Budgets: append([]float64(nil), DefaultBudgets...),
		},
		Store: StoreConfig{
			Dir:        "results",
			MaxResults: 20,
			CacheSize:  128,
		},
		HTTP: HTTPConfig{
			Timeout:    60 * time.Second,
			UserAgent:  "dpgbdt/0.1",
			MaxRetries: 5,
		},
	}
}
