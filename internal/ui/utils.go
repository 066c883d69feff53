package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// IsInteractive reports whether stdin and stdout are both terminals.
// Prompts and the TUI are skipped when either is piped.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// SprintSummary is the data shown by `planwing sprint show`.
type SprintSummary struct {
	Sprint   task.Sprint
	Weeks    int
	Total    int
	Open     int
	Closed   int
	CanClose bool
}

// Render draws the summary in a rounded panel. The border turns green once
// the sprint can be closed and gray after it is closed.
func (s SprintSummary) Render() string {
	name := s.Sprint.Name
	if name == "" {
		name = fmt.Sprintf("Sprint %d", s.Sprint.ID)
	}

	lines := []string{StyleHeader.Render(name) + " " + SprintBadge(s.Sprint.Status)}
	if s.Sprint.Deadline != nil {
		lines = append(lines, StyleSubtle.Render("deadline "+*s.Sprint.Deadline))
	}
	lines = append(lines, fmt.Sprintf("%d weeks · %d tasks · %d open · %d closed", s.Weeks, s.Total, s.Open, s.Closed))

	border := ColorSecondary
	if s.Sprint.IsOpen() {
		if s.CanClose {
			border = ColorSuccess
			lines = append(lines, StyleSuccess.Render("Every task is closed. Run 'planwing sprint close'."))
		} else {
			border = ColorWarning
			lines = append(lines, StyleSubtle.Render(fmt.Sprintf("%d open task(s) must be closed before the sprint can be closed.", s.Open)))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// SkippedIDs renders the warning printed after a carry-over that ignored ids.
// Empty input renders nothing.
func SkippedIDs(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return StyleWarning.Render("⚠ Skipped ids that are not unfinished tasks of that week: " + strings.Join(parts, ", "))
}

// Truncate shortens s to maxLen runes, adding an ellipsis if needed.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
