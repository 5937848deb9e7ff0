// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pdiddy/dp-gbdt/internal/dataset"
	"github.com/pdiddy/dp-gbdt/pkg/types"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage datasets (list, show, fetch)",
	Long: `Dataset lists the known dataset descriptors (built-in, from the
config file's datasets section, and from --spec), shows one with summary
statistics, or downloads dataset files into the dataset directory.`,
}

// --- list subcommand ---

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known datasets",
	Args:  cobra.NoArgs,
	RunE:  runDatasetList,
}

func runDatasetList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := datasetRegistry(cmd, cfg)
	if err != nil {
		return err
	}
	return formatDatasetList(os.Stdout, reg.Specs(), cfg.DatasetDir)
}

func formatDatasetList(w io.Writer, specs []types.DatasetSpec, dir string) error {
	fmt.Fprintf(w, "%-12s  %-14s  %-8s  %-8s  %s\n", "Name", "Task", "Features", "Present", "File")
	for _, s := range specs {
		present := "no"
		if _, err := os.Stat(dataset.Path(s, dir)); err == nil {
			present = "yes"
		}
		fmt.Fprintf(w, "%-12s  %-14s  %-8d  %-8s  %s\n",
			s.Name, s.Task, len(s.NumIdx)+len(s.CatIdx), present, s.File)
	}
	return nil
}

// --- show subcommand ---

var datasetShowCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Show a dataset descriptor and target statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetShow,
}

func runDatasetShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := datasetRegistry(cmd, cfg)
	if err != nil {
		return err
	}
	spec, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshaling spec: %w", err)
	}
	fmt.Print(string(data))

	if _, err := os.Stat(dataset.Path(spec, cfg.DatasetDir)); errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("\nFile not present; run: dpgbdt dataset fetch %s\n", spec.Name)
		return nil
	}

	ds, _, err := openDataset(cmd, cfg, spec.Name)
	if err != nil {
		return err
	}
	mean, std := stat.MeanStdDev(ds.Y, nil)
	fmt.Printf("\nrows: %d\ncolumns: %d (%d numerical, %d categorical)\n",
		ds.Len(), ds.NumCols(), len(ds.NumIdx), len(ds.CatIdx))
	fmt.Printf("target: mean %.6g, stddev %.6g, min %g, max %g\n",
		mean, std, floats.Min(ds.Y), floats.Max(ds.Y))
	return nil
}

// --- fetch subcommand ---

var datasetFetchCmd = &cobra.Command{
	Use:   "fetch [dataset]...",
	Short: "Download dataset files",
	Long: `Fetch downloads the named datasets into the dataset directory. With
--all every dataset that has a download URL and is not yet present is
fetched. Existing files are only replaced with --force.`,
	RunE: runDatasetFetch,
}

func runDatasetFetch(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	force, _ := cmd.Flags().GetBool("force")
	if len(args) == 0 && !all {
		return fmt.Errorf("dataset name or --all required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := datasetRegistry(cmd, cfg)
	if err != nil {
		return err
	}

	var specs []types.DatasetSpec
	if all {
		for _, s := range reg.Specs() {
			if s.URL != "" {
				specs = append(specs, s)
			}
		}
	} else {
		for _, name := range args {
			s, err := reg.Lookup(name)
			if err != nil {
				return err
			}
			specs = append(specs, s)
		}
	}

	var failed int
	for _, s := range specs {
		if _, err := os.Stat(dataset.Path(s, cfg.DatasetDir)); err == nil && !force {
			fmt.Printf("%s: already present\n", s.Name)
			continue
		}
		path, err := dataset.Fetch(cmd.Context(), s, cfg.DatasetDir, cfg.HTTP)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", s.Name, err)
			failed++
			continue
		}
		fmt.Printf("%s: downloaded to %s\n", s.Name, path)
	}
	if failed > 0 {
		return fmt.Errorf("%d dataset(s) failed to download", failed)
	}
	return nil
}

func init() {
	datasetCmd.PersistentFlags().String("spec", "", "YAML file with extra dataset descriptors")
	datasetShowCmd.Flags().Int("max-rows", 0, "read at most this many rows (0 reads all)")
	datasetFetchCmd.Flags().Bool("all", false, "fetch every dataset with a download URL")
	datasetFetchCmd.Flags().Bool("force", false, "replace files that are already present")

	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetShowCmd)
	datasetCmd.AddCommand(datasetFetchCmd)
	rootCmd.AddCommand(datasetCmd)
}
