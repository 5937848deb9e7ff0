package results

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(types.StoreConfig{Dir: filepath.Join(t.TempDir(), "results"), MaxResults: 20, CacheSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id, dataset string, created time.Time) *types.EvaluationRun {
	params := types.DefaultModelParams()
	return &types.EvaluationRun{
		ID:        id,
		Dataset:   dataset,
		Rows:      4177,
		Task:      types.TaskRegression,
		ScoreName: "rmse",
		Folds:     5,
		CreatedAt: created,
		Params:    params,
		Results: []types.BudgetResult{
			{PrivacyBudget: 0.1, FoldScores: []float64{3.1, 3.3, 3.0, 3.2, 3.4}, Mean: 3.2, StdDev: 0.158, Elapsed: 1200 * time.Millisecond},
			{PrivacyBudget: 1, FoldScores: []float64{2.4, 2.5, 2.3, 2.6, 2.2}, Mean: 2.4, StdDev: 0.158, Elapsed: 900 * time.Millisecond},
		},
	}
}

func saveRuns(t *testing.T, store *Store, runs ...*types.EvaluationRun) {
	t.Helper()
	for _, run := range runs {
		if err := store.Save(context.Background(), run); err != nil {
			t.Fatalf("Save %s: %v", run.ID, err)
		}
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- schema tests ---

func TestNewStoreCreatesSchema(t *testing.T) {
	store := testSetup(t)

	for _, table := range []string{"runs", "scores"} {
		var count int
		err := store.db.QueryRow(
			`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestNewStoreCreatesDBFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	store, err := NewStore(types.StoreConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFile)); os.IsNotExist(err) {
		t.Errorf("database file not created in %s", dir)
	}
}

// --- save and get ---

func TestSaveAndGet(t *testing.T) {
	store := testSetup(t)
	want := sampleRun("run-1", "abalone", base)
	saveRuns(t, store, want)

	// bypass the cache
	store.cache.Purge()
	got, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Dataset != "abalone" || got.Rows != 4177 || got.Task != types.TaskRegression {
		t.Errorf("run fields = %+v", got)
	}
	if got.ScoreName != "rmse" || got.Folds != 5 {
		t.Errorf("ScoreName = %q, Folds = %d", got.ScoreName, got.Folds)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
	if got.Params.NbTrees != want.Params.NbTrees || !got.Params.GradientFiltering {
		t.Errorf("Params = %+v", got.Params)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(got.Results))
	}
	r := got.Results[1]
	if r.PrivacyBudget != 1 || r.Mean != 2.4 || r.Elapsed != 900*time.Millisecond {
		t.Errorf("result = %+v", r)
	}
	if len(r.FoldScores) != 5 || r.FoldScores[4] != 2.2 {
		t.Errorf("FoldScores = %v", r.FoldScores)
	}
}

func TestGetUsesCache(t *testing.T) {
	store := testSetup(t)
	saveRuns(t, store, sampleRun("run-1", "abalone", base))

	first, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second Get should return the cached run")
	}
	if !store.cache.Contains("run-1") {
		t.Error("run-1 not cached")
	}
}

func TestSaveReplacesRun(t *testing.T) {
	store := testSetup(t)
	run := sampleRun("run-1", "abalone", base)
	saveRuns(t, store, run)
	if _, err := store.Get(context.Background(), "run-1"); err != nil {
		t.Fatal(err)
	}

	run.Results = run.Results[:1]
	saveRuns(t, store, run)

	got, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 1 {
		t.Errorf("got %d results after replace, want 1", len(got.Results))
	}

	var scores int
	if err := store.db.QueryRow(`SELECT count(*) FROM scores`).Scan(&scores); err != nil {
		t.Fatal(err)
	}
	if scores != 1 {
		t.Errorf("scores table has %d rows, want 1", scores)
	}
}

func TestSaveKeepsNonFiniteScores(t *testing.T) {
	store := testSetup(t)
	run := sampleRun("run-1", "abalone", base)
	run.Results[0].FoldScores[1] = math.NaN()
	run.Results[0].Mean = math.NaN()
	saveRuns(t, store, run)

	store.cache.Purge()
	got, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	r := got.Results[0]
	if len(r.FoldScores) != 5 || !math.IsNaN(r.FoldScores[1]) || r.FoldScores[0] != 3.1 {
		t.Errorf("FoldScores = %v, want NaN at 1", r.FoldScores)
	}
	if !math.IsNaN(r.Mean) {
		t.Errorf("Mean = %v, want NaN", r.Mean)
	}

	var buf bytes.Buffer
	if err := store.ExportJSON(context.Background(), &buf, ListOptions{}); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"mean": null`) {
		t.Errorf("export should write NaN mean as null:\n%s", buf.String())
	}
}

func TestSaveRequiresID(t *testing.T) {
	store := testSetup(t)
	if err := store.Save(context.Background(), sampleRun("", "abalone", base)); err == nil {
		t.Error("expected error for run without ID")
	}
}

func TestGetNotFound(t *testing.T) {
	store := testSetup(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// --- delete ---

func TestDelete(t *testing.T) {
	store := testSetup(t)
	saveRuns(t, store, sampleRun("run-1", "abalone", base))
	if _, err := store.Get(context.Background(), "run-1"); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(context.Background(), "run-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(context.Background(), "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}

	var scores int
	if err := store.db.QueryRow(`SELECT count(*) FROM scores`).Scan(&scores); err != nil {
		t.Fatal(err)
	}
	if scores != 0 {
		t.Errorf("scores not cascaded: %d rows left", scores)
	}

	if err := store.Delete(context.Background(), "run-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

// --- list ---

func TestList(t *testing.T) {
	store := testSetup(t)
	adult := sampleRun("run-3", "adult", base.Add(2*time.Hour))
	adult.Task = types.TaskClassification
	saveRuns(t, store,
		sampleRun("run-1", "abalone", base),
		sampleRun("run-2", "abalone", base.Add(time.Hour)),
		adult,
	)

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"run-3", "run-2", "run-1"}},
		{"by dataset", ListOptions{Dataset: "abalone"}, []string{"run-2", "run-1"}},
		{"by task", ListOptions{Task: types.TaskClassification}, []string{"run-3"}},
		{"limited", ListOptions{MaxResults: 1}, []string{"run-3"}},
		{"no match", ListOptions{Dataset: "yearMSD"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.List(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
				if len(r.Results) != 2 {
					t.Errorf("%s has %d results, want 2", r.ID, len(r.Results))
				}
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}
}

// --- export ---

func TestExportYAML(t *testing.T) {
	store := testSetup(t)
	saveRuns(t, store, sampleRun("run-1", "abalone", base))

	var buf bytes.Buffer
	if err := store.ExportYAML(context.Background(), &buf, ListOptions{}); err != nil {
		t.Fatalf("ExportYAML: %v", err)
	}

	var runs []types.EvaluationRun
	if err := yaml.Unmarshal(buf.Bytes(), &runs); err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || len(runs[0].Results) != 2 {
		t.Errorf("export = %+v", runs)
	}
}

func TestExportJSON(t *testing.T) {
	store := testSetup(t)
	saveRuns(t, store, sampleRun("run-1", "abalone", base), sampleRun("run-2", "adult", base.Add(time.Minute)))

	var buf bytes.Buffer
	if err := store.ExportJSON(context.Background(), &buf, ListOptions{Dataset: "adult"}); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	var runs []types.EvaluationRun
	if err := json.Unmarshal(buf.Bytes(), &runs); err != nil {
		t.Fatalf("parsing export: %v", err)
	}
	if len(runs) != 1 || runs[0].Dataset != "adult" {
		t.Errorf("export = %+v", runs)
	}
}

func TestExportJSONEmpty(t *testing.T) {
	store := testSetup(t)
	var buf bytes.Buffer
	if err := store.ExportJSON(context.Background(), &buf, ListOptions{}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestExportCSV(t *testing.T) {
	store := testSetup(t)
	saveRuns(t, store, sampleRun("run-1", "abalone", base), sampleRun("run-2", "adult", base.Add(time.Minute)))

	var buf bytes.Buffer
	if err := store.ExportCSV(context.Background(), &buf, ListOptions{}); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	want := strings.Join([]string{
		"dataset,nb_samples,privacy_budget,mean",
		"abalone,4177,0.1,3.2",
		"abalone,4177,1,2.4",
		"adult,4177,0.1,3.2",
		"adult,4177,1,2.4",
	}, "\n") + "\n"
	if buf.String() != want {
		t.Errorf("csv =\n%s\nwant\n%s", buf.String(), want)
	}
}
