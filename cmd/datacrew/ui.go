package main

import (
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/antgroup/datacrew/crew"
	"github.com/antgroup/datacrew/store"
)

var (
	colorSuccess = lipgloss.Color("35")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")
	colorAccent  = lipgloss.Color("39")

	headerStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case crew.StatusOK:
		return lipgloss.NewStyle().Foreground(colorSuccess)
	case crew.StatusPartial:
		return lipgloss.NewStyle().Foreground(colorWarning)
	case crew.StatusError:
		return lipgloss.NewStyle().Foreground(colorError)
	}
	return dimStyle
}

// statusLine summarizes a run for stderr.
func statusLine(res *crew.Result) string {
	line := statusStyle(res.Status).Render(res.Status) + " " +
		dimStyle.Render("run "+res.RunID+" in "+res.Duration.Round(time.Millisecond).String())
	stages := make([]string, 0, len(res.Errors))
	for stage := range res.Errors {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		line += "\n  " + statusStyle(crew.StatusError).Render(stage) + ": " + res.Errors[stage]
	}
	return line
}

func runsTable(runs []store.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "CREATED", "STATUS", "CHART", "QUERY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 2 && row >= 0 && row < len(runs) {
				return statusStyle(runs[row].Status).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, r := range runs {
		t.Row(r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.ChartType, truncate(r.Query, 60))
	}
	return t.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
