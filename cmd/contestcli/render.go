package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/programme-lv/contest-client/planglist"
	"github.com/programme-lv/contest-client/subm"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3498db"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f8c8d"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2ecc71"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e74c3c"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9b59b6"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func statusStyle(s subm.Status) lipgloss.Style {
	switch {
	case s == subm.StatusAccepted:
		return okStyle
	case s.IsFinal():
		return failStyle
	}
	return dimStyle
}

func renderStatus(s subm.Status) string {
	return statusStyle(s).Render(s.Short())
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func historyTable(entries []subm.HistoryEntry) string {
	t := newTable("Time", "Case", "Status", "Score", "Language", "ID")
	for _, e := range entries {
		t.Row(
			formatTime(e.SubmitTime),
			e.CaseCode,
			renderStatus(e.Status),
			formatScore(e.Score),
			planglist.DisplayName(e.LanguageID),
			dimStyle.Render(e.SubmissionID),
		)
	}
	return t.Render()
}

func testcaseTable(tests []subm.TestcaseResult) string {
	t := newTable("#", "Verdict", "Time", "Memory")
	for _, tc := range tests {
		verdict := tc.Verdict
		if verdict == "Passed" {
			verdict = okStyle.Render(verdict)
		} else {
			verdict = failStyle.Render(verdict)
		}
		t.Row(
			strconv.Itoa(tc.Number),
			verdict,
			fmt.Sprintf("%.0f ms", tc.TimeMs),
			fmt.Sprintf("%d KiB", tc.MemoryKb),
		)
	}
	return t.Render()
}
