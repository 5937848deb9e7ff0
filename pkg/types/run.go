// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"math"
	"time"
)

// BudgetResult holds the cross-validation scores for one privacy budget.
type BudgetResult struct {
	PrivacyBudget float64 `json:"privacy_budget" yaml:"privacy_budget"`

	// FoldScores has one entry per fold, in fold order. The score is RMSE
	// for regression and accuracy for classification.
	FoldScores []float64 `json:"fold_scores" yaml:"fold_scores"`

	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev"`

	// Elapsed is the wall time spent training and scoring all folds.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// budgetResultJSON is the JSON form of BudgetResult. Scores that are not
// finite, such as the RMSE of a diverged fold, are written as null.
type budgetResultJSON struct {
	PrivacyBudget float64       `json:"privacy_budget"`
	FoldScores    []*float64    `json:"fold_scores"`
	Mean          *float64      `json:"mean"`
	StdDev        *float64      `json:"stddev"`
	Elapsed       time.Duration `json:"elapsed"`
}

func (r BudgetResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(budgetResultJSON{
		PrivacyBudget: r.PrivacyBudget,
		FoldScores:    NullableScores(r.FoldScores),
		Mean:          nullable(r.Mean),
		StdDev:        nullable(r.StdDev),
		Elapsed:       r.Elapsed,
	})
}

// UnmarshalJSON reads null scores back as NaN.
func (r *BudgetResult) UnmarshalJSON(data []byte) error {
	var v budgetResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = BudgetResult{
		PrivacyBudget: v.PrivacyBudget,
		FoldScores:    ScoresFromNullable(v.FoldScores),
		Mean:          fromNullable(v.Mean),
		StdDev:        fromNullable(v.StdDev),
		Elapsed:       v.Elapsed,
	}
	return nil
}

// NullableScores maps NaN and infinite scores to nil so that they can be
// encoded as JSON null.
func NullableScores(scores []float64) []*float64 {
	if scores == nil {
		return nil
	}
	out := make([]*float64, len(scores))
	for i, s := range scores {
		out[i] = nullable(s)
	}
	return out
}

// ScoresFromNullable is the inverse of NullableScores; nil becomes NaN.
func ScoresFromNullable(scores []*float64) []float64 {
	if scores == nil {
		return nil
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = fromNullable(s)
	}
	return out
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// EvaluationRun records one cross-validated sweep over privacy budgets.
type EvaluationRun struct {
	ID        string    `json:"id" yaml:"id"`
	Dataset   string    `json:"dataset" yaml:"dataset"`
	Rows      int       `json:"rows" yaml:"rows"`
	Task      TaskKind  `json:"task" yaml:"task"`
	ScoreName string    `json:"score_name" yaml:"score_name"`
	Folds     int       `json:"folds" yaml:"folds"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Params  ModelParams    `json:"params" yaml:"params"`
	Results []BudgetResult `json:"results" yaml:"results"`
}
