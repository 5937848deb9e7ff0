// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dp-gbdt/internal/evaluate"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <dataset>",
	Short: "Cross-validate a sweep of privacy budgets",
	Long: `Evaluate runs k-fold cross-validation on the named dataset once per
privacy budget and prints the fold scores (RMSE for regression, accuracy
for classification) followed by a summary table. The run is stored in the
results database unless --no-store is given.

Budgets come from --budgets, then evaluation.budgets in the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ds, spec, err := openDataset(cmd, cfg, args[0])
	if err != nil {
		return err
	}
	params := modelParams(cmd, cfg, spec)
	ecfg := evaluationConfig(cmd, cfg)
	noStore, _ := cmd.Flags().GetBool("no-store")

	opts := []evaluate.Option{evaluate.WithLogger(slog.Default())}
	if tracePath, _ := cmd.Flags().GetString("trace"); tracePath != "" {
		f, err := createTrace(tracePath)
		if err != nil {
			return err
		}
		defer f.Close()
		opts = append(opts, evaluate.WithTrace(f))
	}

	run, err := evaluate.Evaluate(cmd.Context(), ds, params, ecfg, os.Stdout, opts...)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(evaluate.Render(run))

	if noStore {
		return nil
	}
	store, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(cmd.Context(), run); err != nil {
		return err
	}
	fmt.Printf("Saved run %s to %s\n", run.ID, store.Dir())
	return nil
}

// evaluationConfig returns the configured evaluation settings with
// changed flags applied.
func evaluationConfig(cmd *cobra.Command, cfg types.Config) types.EvaluationConfig {
	ecfg := cfg.Evaluation
	f := cmd.Flags()
	if f.Changed("folds") {
		ecfg.Folds, _ = f.GetInt("folds")
	}
	if f.Changed("budgets") {
		ecfg.Budgets, _ = f.GetFloat64Slice("budgets")
	}
	if f.Changed("deterministic") {
		ecfg.Deterministic, _ = f.GetBool("deterministic")
	}
	return ecfg
}

func createTrace(path string) (io.WriteCloser, error) {
	if err := ensureParent(path); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	return f, nil
}

func init() {
	evaluateCmd.Flags().Int("folds", 0, "number of cross-validation folds (default from config)")
	evaluateCmd.Flags().Float64Slice("budgets", nil, "privacy budgets to evaluate, comma separated (default from config)")
	evaluateCmd.Flags().Bool("deterministic", false, "disable shuffling, noise and randomized splits")
	evaluateCmd.Flags().String("trace", "", "write the trace of a --deterministic run to this file")
	evaluateCmd.Flags().Bool("no-store", false, "do not save the run in the results database")
	evaluateCmd.Flags().String("results-dir", "", "results database directory (default from config)")
	addModelFlags(evaluateCmd)
	addDatasetFlags(evaluateCmd)

	rootCmd.AddCommand(evaluateCmd)
}
