// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package evaluate

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/dp-gbdt/pkg/types"
)

var titleStyle = lipgloss.NewStyle().Bold(true)

// Render draws run as a static table with one row per privacy budget.
func Render(run *types.EvaluationRun) string {
	columns := []table.Column{
		{Title: "Budget", Width: 8},
		{Title: "Mean " + run.ScoreName, Width: 14},
		{Title: "StdDev", Width: 10},
		{Title: "Time", Width: 8},
		{Title: "Folds", Width: 12 * max(run.Folds, 1)},
	}

	rows := make([]table.Row, 0, len(run.Results))
	for _, r := range run.Results {
		rows = append(rows, table.Row{
			fmt.Sprintf("%g", r.PrivacyBudget),
			fmt.Sprintf("%.6f", r.Mean),
			fmt.Sprintf("%.6f", r.StdDev),
			fmt.Sprintf("%.1fs", r.Elapsed.Seconds()),
			formatScores(r.FoldScores),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	title := titleStyle.Render(fmt.Sprintf("%s (%d rows, %s, %d folds)", run.Dataset, run.Rows, run.Task, run.Folds))
	return title + "\nrun " + run.ID + "\n" + t.View() + "\n"
}

func formatScores(scores []float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.4f", s)
	}
	return strings.Join(parts, " ")
}
