package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/josephgoksu/PlanWing/internal/task"
)

var (
	// Colors
	ColorPrimary   = lipgloss.Color("205") // Pink
	ColorSecondary = lipgloss.Color("241") // Gray
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("160") // Red
	ColorWarning   = lipgloss.Color("214") // Orange/Yellow
	ColorText      = lipgloss.Color("252") // White/Gray
	ColorCyan      = lipgloss.Color("87")  // Cyan for carried-over tasks

	// Base Styles
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorSecondary)
	StylePrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleText    = lipgloss.NewStyle().Foreground(ColorText)
	StyleCarried = lipgloss.NewStyle().Foreground(ColorCyan).Italic(true)

	// Components
	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(0, 1)

	StyleSectionTitle = lipgloss.NewStyle().
				Foreground(ColorPrimary).
				Bold(true).
				Underline(true)

	// Selection lists
	StyleSelectTitle  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectNormal = lipgloss.NewStyle().Foreground(ColorText)
	StyleSelectActive = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSelectDim    = lipgloss.NewStyle().Foreground(ColorSecondary)

	// Board columns
	StyleColumn = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1)

	StyleColumnFocused = StyleColumn.
				BorderForeground(ColorPrimary)

	StyleColumnClosed = StyleColumn.
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(ColorSecondary).
				Faint(true)

	// Failed mutations and rolled-back moves
	StylePrefixError = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)

var titleCaser = cases.Title(language.English)

// Label title-cases an upper-case wire value: "SPRINT_CLOSED" -> "Sprint Closed".
func Label(s string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

// StatusBadge renders a task status.
func StatusBadge(s task.TaskStatus) string {
	if s == task.StatusClosed {
		return StyleSuccess.Render("✓ " + Label(string(s)))
	}
	return StyleSubtle.Render("○ " + Label(string(s)))
}

// SprintBadge renders a sprint status.
func SprintBadge(s task.SprintStatus) string {
	if s == task.SprintClosed {
		return StyleWarning.Render(Label(string(s)))
	}
	return StyleSuccess.Render(Label(string(s)))
}
