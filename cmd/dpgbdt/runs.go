// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dp-gbdt/internal/evaluate"
	"github.com/pdiddy/dp-gbdt/internal/results"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored evaluation runs (list, show, export, delete)",
	Long: `Runs manages the SQLite results database written by evaluate. Use
subcommands to list runs, show one in detail, export them for plotting,
or delete them.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluation runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	store, opts, err := runsStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatRunList(os.Stdout, runs, jsonOutput)
}

func formatRunList(w io.Writer, runs []*types.EvaluationRun, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-16s  %-14s  %-8s  %-7s  %s\n",
		"ID", "Created", "Dataset", "Task", "Budgets", "Best")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range runs {
		dataset := r.Dataset
		if len(dataset) > 14 {
			dataset = dataset[:11] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-16s  %-14s  %-8s  %-7d  %s\n",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), dataset,
			r.Task, len(r.Results), bestResult(r))
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// bestResult describes the budget with the best mean score.
func bestResult(r *types.EvaluationRun) string {
	if len(r.Results) == 0 {
		return "-"
	}
	best := r.Results[0]
	for _, res := range r.Results[1:] {
		better := res.Mean < best.Mean
		if r.Task == types.TaskClassification {
			better = res.Mean > best.Mean
		}
		if better {
			best = res
		}
	}
	return fmt.Sprintf("%s %.4f @ pb=%g", r.ScoreName, best.Mean, best.PrivacyBudget)
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the fold scores of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	store, _, err := runsStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Println(evaluate.Render(run))
	fmt.Println()
	for _, r := range run.Results {
		fmt.Printf("pb=%g:", r.PrivacyBudget)
		for _, s := range r.FoldScores {
			fmt.Printf(" %.9g", s)
		}
		fmt.Println()
	}
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs to YAML, JSON or CSV",
	Long: `Export writes every run matching the filters to --output (stdout by
default). The csv format writes one dataset,nb_samples,privacy_budget,mean
row per run and budget, oldest first.`,
	Args: cobra.NoArgs,
	RunE: runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, opts, err := runsStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		if err := ensureParent(output); err != nil {
			return err
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	ctx := cmd.Context()
	switch format {
	case "yaml", "":
		err = store.ExportYAML(ctx, w, opts)
	case "json":
		err = store.ExportJSON(ctx, w, opts)
	case "csv":
		err = store.ExportCSV(ctx, w, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml, json or csv", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
	}
	return nil
}

// --- delete subcommand ---

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete runs and their scores",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunsDelete,
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	store, _, err := runsStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range args {
		if err := store.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", id)
	}
	return nil
}

// --- shared helpers ---

// openStore opens the results database named by --results-dir or the
// store section of the config.
func openStore(cmd *cobra.Command, cfg types.Config) (*results.Store, error) {
	storeCfg := cfg.Store
	if dir, _ := cmd.Flags().GetString("results-dir"); dir != "" {
		storeCfg.Dir = dir
	}
	return results.NewStore(storeCfg)
}

func runsStore(cmd *cobra.Command) (*results.Store, results.ListOptions, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, results.ListOptions{}, err
	}
	store, err := openStore(cmd, cfg)
	if err != nil {
		return nil, results.ListOptions{}, err
	}

	dataset, _ := cmd.Flags().GetString("dataset")
	task, _ := cmd.Flags().GetString("task")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	return store, results.ListOptions{
		Dataset:    dataset,
		Task:       types.TaskKind(task),
		MaxResults: maxResults,
	}, nil
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	return nil
}

func init() {
	runsCmd.PersistentFlags().String("results-dir", "", "results database directory (default from config)")
	runsCmd.PersistentFlags().Bool("json", false, "output as JSON")

	for _, c := range []*cobra.Command{runsListCmd, runsExportCmd} {
		c.Flags().String("dataset", "", "only runs on this dataset")
		c.Flags().String("task", "", "only runs of this task: regression or classification")
	}
	runsListCmd.Flags().Int("max-results", 0, "maximum number of runs listed (default from config)")
	runsExportCmd.Flags().String("format", "yaml", "output format: yaml, json or csv")
	runsExportCmd.Flags().StringP("output", "o", "", "file to write (default stdout)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}
