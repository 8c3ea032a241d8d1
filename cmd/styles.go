package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/khrees2412/applyflow/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

var statusColors = map[models.ApplicationStatus]lipgloss.Color{
	models.StatusQueued:        "7",
	models.StatusAnalyzing:     "14",
	models.StatusTailoring:     "14",
	models.StatusPrefilling:    "14",
	models.StatusPendingReview: "11",
	models.StatusApplied:       "10",
	models.StatusInterview:     "13",
	models.StatusRejected:      "9",
}

func statusLabel(status models.ApplicationStatus) string {
	return lipgloss.NewStyle().Foreground(statusColors[status]).Bold(true).Render(string(status))
}

// statusColumn pads the label so counts line up.
func statusColumn(status models.ApplicationStatus) string {
	return lipgloss.NewStyle().Foreground(statusColors[status]).Bold(true).Width(16).Render(string(status))
}

func levelLabel(level models.LogLevel) string {
	switch level {
	case models.LevelError:
		return errorStyle.Render("ERROR")
	case models.LevelWarn:
		return warnStyle.Render("WARN ")
	default:
		return valueStyle.Render("INFO ")
	}
}
