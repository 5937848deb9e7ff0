//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// benchmarkDatasets are swept by Benchmark.
var benchmarkDatasets = []string{"abalone", "adult"}

// Fetch downloads every dataset with a download URL into datasets/.
func Fetch() error {
	mg.Deps(Init, Build)
	return sh.RunV(binPath(), "dataset", "fetch", "--all")
}

// Benchmark evaluates the default privacy budget sweep on every benchmark
// dataset and exports the stored runs to results/results.csv.
func Benchmark() error {
	mg.Deps(Fetch)
	for _, name := range benchmarkDatasets {
		fmt.Printf("[benchmark] %s\n", name)
		if err := sh.RunV(binPath(), "evaluate", name); err != nil {
			return fmt.Errorf("evaluating %s: %w", name, err)
		}
	}
	return sh.RunV(binPath(), "runs", "export", "--format", "csv", "-o", "results/results.csv")
}
