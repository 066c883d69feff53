package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/PlanWing/internal/task"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "Sprint Closed", Label("SPRINT_CLOSED"))
	assert.Equal(t, "Opened", Label(string(task.StatusOpened)))
	assert.Equal(t, "", Label(""))
}

func TestBadges_Plain(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() { lipgloss.SetColorProfile(termenv.ANSI256) })

	assert.Equal(t, "✓ Closed", StatusBadge(task.StatusClosed))
	assert.Equal(t, "○ Opened", StatusBadge(task.StatusOpened))
	assert.Equal(t, "Open", SprintBadge(task.SprintOpen))
	assert.Equal(t, "Closed", SprintBadge(task.SprintClosed))
}

func TestBadges_ColorDistinguishesState(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)

	open, closed := StatusBadge(task.StatusOpened), StatusBadge(task.StatusClosed)
	assert.NotEqual(t, "○ Opened", open, "color codes expected")
	assert.NotEqual(t, StyleSuccess.Render("○ Opened"), open)
	assert.Equal(t, StyleSuccess.Render("✓ Closed"), closed)
	assert.Equal(t, StyleWarning.Render("Closed"), SprintBadge(task.SprintClosed))
}

func TestColumnStyles_ClosedWeekIsFaint(t *testing.T) {
	assert.True(t, StyleColumnClosed.GetFaint())
	assert.False(t, StyleColumn.GetFaint())
	assert.Equal(t, ColorPrimary, StyleColumnFocused.GetBorderTopForeground())
}
