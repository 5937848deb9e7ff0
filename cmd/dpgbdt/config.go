// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// setDefaults registers every field of types.DefaultConfig with viper so
// that DPGBDT_* variables (DPGBDT_MODEL_NB_TREES, DPGBDT_STORE_DIR, ...)
// can override any of them.
func setDefaults() {
	data, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	registerDefaults("", tree)
}

func registerDefaults(prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			registerDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig decodes the merged defaults, config file and environment,
// then applies the root flags.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if dir, _ := cmd.Flags().GetString("dataset-dir"); dir != "" {
		cfg.DatasetDir = dir
	}
	return cfg, nil
}

// --- model flags ---

func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("trees", 0, "number of trees (default from config)")
	f.Int("max-depth", 0, "maximum tree depth (default from config)")
	f.Float64("learning-rate", 0, "shrinkage applied to every tree (default from config)")
	f.Float64("privacy-budget", 0, "privacy budget epsilon, 0 disables differential privacy (default from config)")
	f.Uint64("seed", 0, "random seed, 0 picks one at random (default from config)")
	f.Bool("balance-partition", true, "give every tree the same number of rows")
	f.Bool("gradient-filtering", true, "prefer rows whose gradient lies within the l2 threshold")
	f.Bool("leaf-clipping", true, "clip leaf values to the geometric leaf bound")
	f.Bool("use-decay", false, "decay the per-node budget with depth")
}

// modelParams returns the configured model parameters with changed flags
// applied and the task taken from spec.
func modelParams(cmd *cobra.Command, cfg types.Config, spec types.DatasetSpec) types.ModelParams {
	p := cfg.Model
	p.Task = spec.Task

	f := cmd.Flags()
	if f.Changed("trees") {
		p.NbTrees, _ = f.GetInt("trees")
	}
	if f.Changed("max-depth") {
		p.MaxDepth, _ = f.GetInt("max-depth")
	}
	if f.Changed("learning-rate") {
		p.LearningRate, _ = f.GetFloat64("learning-rate")
	}
	if f.Changed("privacy-budget") {
		p.PrivacyBudget, _ = f.GetFloat64("privacy-budget")
	}
	if f.Changed("seed") {
		p.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("balance-partition") {
		p.BalancePartition, _ = f.GetBool("balance-partition")
	}
	if f.Changed("gradient-filtering") {
		p.GradientFiltering, _ = f.GetBool("gradient-filtering")
	}
	if f.Changed("leaf-clipping") {
		p.LeafClipping, _ = f.GetBool("leaf-clipping")
	}
	if f.Changed("use-decay") {
		p.UseDecay, _ = f.GetBool("use-decay")
	}
	return p
}

// --- dataset flags ---

func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("spec", "", "YAML file with extra dataset descriptors")
	cmd.Flags().Int("max-rows", 0, "read at most this many rows (0 reads all)")
}

// datasetRegistry returns the built-in datasets plus those from the
// config file and --spec.
func datasetRegistry(cmd *cobra.Command, cfg types.Config) (*dataset.Registry, error) {
	specs := cfg.Datasets
	if path, _ := cmd.Flags().GetString("spec"); path != "" {
		extra, err := dataset.LoadSpecFile(path)
		if err != nil {
			return nil, err
		}
		specs = append(specs, extra...)
	}
	return dataset.NewRegistry(specs...), nil
}

// openDataset resolves name and parses the dataset file.
func openDataset(cmd *cobra.Command, cfg types.Config, name string) (*dataset.DataSet, types.DatasetSpec, error) {
	reg, err := datasetRegistry(cmd, cfg)
	if err != nil {
		return nil, types.DatasetSpec{}, err
	}
	spec, err := reg.Lookup(name)
	if err != nil {
		return nil, spec, err
	}
	if n, _ := cmd.Flags().GetInt("max-rows"); n > 0 {
		spec.MaxRows = n
	}

	ds, err := dataset.Load(spec, cfg.DatasetDir)
	if err != nil {
		return nil, spec, err
	}
	slog.Info("dataset loaded", "name", spec.Name, "rows", ds.Len(), "cols", ds.NumCols())
	return ds, spec, nil
}
