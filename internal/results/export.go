// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package results

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

const exportLimit = 100000

// ExportYAML writes every run matching opts to w as a YAML list.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts ListOptions) error {
	runs, err := s.exportRuns(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes every run matching opts to w as an indented JSON
// array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts ListOptions) error {
	runs, err := s.exportRuns(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ExportCSV writes one "dataset,nb_samples,privacy_budget,mean" row per
// run and budget, the format the plotting scripts read.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, opts ListOptions) error {
	runs, err := s.exportRuns(ctx, opts)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dataset", "nb_samples", "privacy_budget", "mean"}); err != nil {
		return err
	}
	// oldest first, as the runs were produced
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		for _, r := range run.Results {
			record := []string{
				run.Dataset,
				strconv.Itoa(run.Rows),
				strconv.FormatFloat(r.PrivacyBudget, 'g', -1, 64),
				strconv.FormatFloat(r.Mean, 'g', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Store) exportRuns(ctx context.Context, opts ListOptions) ([]*types.EvaluationRun, error) {
	opts.MaxResults = exportLimit
	runs, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if runs == nil {
		runs = []*types.EvaluationRun{}
	}
	return runs, nil
}
