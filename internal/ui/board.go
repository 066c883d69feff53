package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/PlanWing/internal/app"
)

// RenderBoard renders a board view as stacked sections, one per column.
func RenderBoard(v app.View) string {
	var sb strings.Builder

	name := v.Sprint.Name
	if name == "" {
		name = fmt.Sprintf("Sprint %d", v.Sprint.ID)
	}
	sb.WriteString(StyleHeader.Render(name) + " " + SprintBadge(v.Sprint.Status) + "\n")
	sb.WriteString(StyleSubtle.Render(fmt.Sprintf(" %d tasks · %d open · %d closed", v.Stats.Total, v.Stats.Open, v.Stats.Closed)))
	if v.Offline {
		sb.WriteString(StyleWarning.Render(fmt.Sprintf(" · offline, synced %s", v.SyncedAt.Local().Format(time.DateTime))))
	}
	sb.WriteString("\n\n")

	for _, col := range v.Columns {
		sb.WriteString(ColumnTitle(col) + "\n")
		if len(col.Tasks) == 0 {
			sb.WriteString(StyleSubtle.Render(" (no tasks)") + "\n\n")
			continue
		}
		weekStart := ""
		if col.Week != nil {
			weekStart = col.Week.WeekStart
		}
		sb.WriteString(TaskTable(col.Tasks, weekStart, v.Labels).Render() + "\n")
	}

	if v.LastError != "" {
		sb.WriteString(StylePrefixError.Render("✗ "+v.LastError) + "\n")
	}
	return sb.String()
}

// ColumnTitle renders a column heading with its date range and state.
func ColumnTitle(col app.Column) string {
	title := StyleSectionTitle.Render(col.Title)
	if col.Week == nil {
		return title
	}
	title += StyleSubtle.Render(fmt.Sprintf(" %s → %s", col.Week.WeekStart, col.Week.WeekEnd))
	if col.Closed() {
		title += " " + StyleWarning.Render("closed")
	}
	return title
}
