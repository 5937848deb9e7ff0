// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dp-gbdt/internal/ensemble"
	"github.com/pdiddy/dp-gbdt/internal/task"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

var predictCmd = &cobra.Command{
	Use:   "predict <dataset>",
	Short: "Predict a dataset with a saved model",
	Long: `Predict loads a model written by train, predicts every row of the
named dataset and writes one CSV row per sample with the true target and
the prediction. Classification models also write the positive class
probability. The score against the true targets goes to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	modelPath, _ := cmd.Flags().GetString("model")
	output, _ := cmd.Flags().GetString("output")

	m, err := ensemble.Load(modelPath)
	if err != nil {
		return err
	}
	e, err := ensemble.FromModel(m)
	if err != nil {
		return fmt.Errorf("restoring %s: %w", modelPath, err)
	}

	ds, spec, err := openDataset(cmd, cfg, args[0])
	if err != nil {
		return err
	}
	if spec.Task != m.Params.Task {
		return fmt.Errorf("model was trained for %s, dataset %s is %s", m.Params.Task, spec.Name, spec.Task)
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	pred := e.PredictTargets(ds.X)
	if err := writePredictions(w, m.Params.Task, ds.Y, pred); err != nil {
		return fmt.Errorf("writing predictions: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s %s: %.6g\n", spec.Name, e.Task().ScoreName(), e.Score(ds))
	return nil
}

func writePredictions(w io.Writer, kind types.TaskKind, y, pred []float64) error {
	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	cw := csv.NewWriter(w)
	header := []string{"target", "prediction"}
	if kind == types.TaskClassification {
		header = append(header, "probability")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range pred {
		record := []string{format(y[i]), format(pred[i])}
		if kind == types.TaskClassification {
			p := task.Sigmoid(pred[i])
			label := 0.0
			if p >= 0.5 {
				label = 1
			}
			record = []string{format(y[i]), format(label), format(p)}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	predictCmd.Flags().StringP("model", "m", defaultModelFile, "model file written by train")
	predictCmd.Flags().StringP("output", "o", "", "CSV file to write (default stdout)")
	addDatasetFlags(predictCmd)

	rootCmd.AddCommand(predictCmd)
}
