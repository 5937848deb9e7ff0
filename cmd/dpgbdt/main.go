// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dpgbdt CLI: training, prediction,
// cross-validated evaluation and result management for differentially
// private gradient boosted decision trees.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the dpgbdt CLI.
var rootCmd = &cobra.Command{
	Use:   "dpgbdt",
	Short: "Differentially private gradient boosted decision trees",
	Long: `dpgbdt trains gradient boosted decision tree ensembles under
differential privacy. Every tree is fitted on a disjoint slice of the
training rows, split selection uses the exponential mechanism and leaf
values receive Laplace noise.

Use train and predict for single models, evaluate to cross-validate a
sweep of privacy budgets, and runs to inspect stored evaluation results.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = viper.GetString("log_level")
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dpgbdt.yaml or ~/.config/dpgbdt/dpgbdt.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (default from config)")
	rootCmd.PersistentFlags().String("dataset-dir", "", "directory holding dataset files (default from config)")
}

func initConfig() {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dpgbdt")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dpgbdt"))
		}
	}

	setDefaults()
	viper.SetEnvPrefix("DPGBDT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
