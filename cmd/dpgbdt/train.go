// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/internal/ensemble"
)

const defaultModelFile = "model.json"

var trainCmd = &cobra.Command{
	Use:   "train <dataset>",
	Short: "Train an ensemble on a dataset and save the model",
	Long: `Train fits one DP-GBDT ensemble on the named dataset and writes it to
--output (.json, or .yaml/.yml for YAML). Regression targets are scaled
into [-1,1] before training; the scaler is saved with the model so
predictions come back in the original units.

With --holdout the given fraction of rows is held out and scored after
training.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ds, spec, err := openDataset(cmd, cfg, args[0])
	if err != nil {
		return err
	}
	params := modelParams(cmd, cfg, spec)
	output, _ := cmd.Flags().GetString("output")
	holdout, _ := cmd.Flags().GetFloat64("holdout")
	if holdout < 0 || holdout >= 1 {
		return fmt.Errorf("holdout must be in [0,1), got %g", holdout)
	}

	e, err := ensemble.New(params, ensemble.Options{Logger: slog.Default()})
	if err != nil {
		return err
	}

	split := dataset.TrainTestSplit{Train: ds}
	if holdout > 0 {
		seed := params.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		split = dataset.SplitRandom(ds, 1-holdout, rand.New(rand.NewPCG(seed, seed)))
	}
	split.Train.ScaleY(-1, 1)

	if err := e.Train(cmd.Context(), split.Train); err != nil {
		return fmt.Errorf("training on %s: %w", spec.Name, err)
	}
	if err := ensemble.Save(output, e.Snapshot()); err != nil {
		return err
	}
	fmt.Printf("Trained %d trees on %d rows of %s, model written to %s\n",
		len(e.Trees()), split.Train.Len(), spec.Name, output)

	if split.Test != nil && !split.Test.Empty() {
		fmt.Printf("Holdout %s on %d rows: %.6g\n", e.Task().ScoreName(), split.Test.Len(), e.Score(split.Test))
	}
	return nil
}

func init() {
	trainCmd.Flags().StringP("output", "o", defaultModelFile, "model file to write")
	trainCmd.Flags().Float64("holdout", 0, "fraction of rows held out for scoring")
	addModelFlags(trainCmd)
	addDatasetFlags(trainCmd)

	rootCmd.AddCommand(trainCmd)
}
