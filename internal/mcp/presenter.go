package mcp

// Markdown formatting for MCP tool responses. The internal/ui package handles
// terminal output.

import (
	"fmt"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/task"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// FormatBoard converts a board View into Markdown: one section per column.
func FormatBoard(v *app.View) string {
	if v == nil || len(v.Columns) == 0 {
		return "Board is empty."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s (%s)\n", sprintName(v.Sprint), label(string(v.Sprint.Status))))
	sb.WriteString(fmt.Sprintf("%d tasks | %d open | %d closed\n", v.Stats.Total, v.Stats.Open, v.Stats.Closed))
	if v.Offline {
		sb.WriteString(fmt.Sprintf("\n> Offline copy from %s. Read-only.\n", v.SyncedAt.UTC().Format("2006-01-02 15:04 MST")))
	}
	sb.WriteString("\n")

	for _, col := range v.Columns {
		sb.WriteString(FormatColumn(col, v.Labels))
		sb.WriteString("\n")
	}

	if v.LastError != "" {
		sb.WriteString(fmt.Sprintf("> **Last error**: %s\n", v.LastError))
	}
	return strings.TrimSpace(sb.String())
}

// FormatColumn renders one column as a heading and a task list.
func FormatColumn(col app.Column, labels map[int64]string) string {
	var sb strings.Builder
	heading := col.Title
	if col.Week != nil {
		heading += fmt.Sprintf(" (id %d, %s → %s)", col.Week.ID, col.Week.WeekStart, col.Week.WeekEnd)
		if col.Closed() {
			heading += " 🔒 closed"
		}
	}
	sb.WriteString("## " + heading + "\n")
	if len(col.Tasks) == 0 {
		sb.WriteString("_No tasks._\n")
		return sb.String()
	}
	for _, t := range col.Tasks {
		sb.WriteString("- " + taskLine(t))
		if l := labels[t.ID]; l != "" {
			sb.WriteString(" _(" + l + ")_")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatTask converts a TaskResult into concise Markdown.
func FormatTask(result *app.TaskResult) string {
	if result == nil {
		return "No task information."
	}
	if !result.Success {
		return FormatTaskError(result)
	}

	var sb strings.Builder
	if result.Message != "" {
		sb.WriteString(result.Message)
		sb.WriteString("\n\n")
	}

	if result.Task != nil {
		t := result.Task
		sb.WriteString(fmt.Sprintf("## %s %s\n", statusIcon(t.Status), truncate(noteOf(*t), 80)))
		sb.WriteString(fmt.Sprintf("**ID**: `%d` | **Where**: %s | **Status**: %s\n", t.ID, t.Container(), label(string(t.Status))))
		if t.DayOfWeek != nil {
			sb.WriteString(fmt.Sprintf("**Day**: %d\n", *t.DayOfWeek))
		}
		if t.PlannedHours != nil {
			sb.WriteString(fmt.Sprintf("**Planned hours**: %g\n", *t.PlannedHours))
		}
		if t.Deadline != nil {
			sb.WriteString(fmt.Sprintf("**Deadline**: %s\n", *t.Deadline))
		}
		if result.Label != "" {
			sb.WriteString(fmt.Sprintf("_%s_\n", result.Label))
		}
	}

	if result.Hint != "" {
		sb.WriteString(fmt.Sprintf("\n> **Hint**: %s\n", result.Hint))
	}
	return strings.TrimSpace(sb.String())
}

// FormatTaskError renders a failed task operation with its error code.
func FormatTaskError(result *app.TaskResult) string {
	var sb strings.Builder
	sb.WriteString(FormatError(result.Message))
	if result.Code != "" {
		sb.WriteString(fmt.Sprintf("\n**Code**: `%s`", result.Code))
	}
	if result.Hint != "" {
		sb.WriteString(fmt.Sprintf("\n\n> **Hint**: %s", result.Hint))
	}
	return sb.String()
}

// FormatWeeks lists weeks in start order.
func FormatWeeks(weeks []task.Week, meta task.Metadata) string {
	if len(weeks) == 0 {
		return "No weeks yet. Use the week tool with action \"generate\"."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Weeks (%d)\n", len(weeks)))
	sb.WriteString("| ID | Start | End | State |\n|---|---|---|---|\n")
	for _, w := range weeks {
		state := "open"
		if w.IsClosed {
			state = "closed"
		}
		if meta.CurrentWeekID != nil && *meta.CurrentWeekID == w.ID {
			state += ", current"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", w.ID, w.WeekStart, w.WeekEnd, state))
	}
	return strings.TrimSpace(sb.String())
}

// FormatWeekGenerated confirms a new week.
func FormatWeekGenerated(w task.Week) string {
	return fmt.Sprintf("✅ Generated week `%d`: %s → %s", w.ID, w.WeekStart, w.WeekEnd)
}

// FormatWeekClosed renders a closed week and, when present, the carry-over
// that followed it.
func FormatWeekClosed(closed *app.WeekClosed, carried *app.CarryOverResult) string {
	if closed == nil {
		return "No week closed."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔒 Closed week of %s (`%d`).\n", closed.Week.WeekStart, closed.Week.ID))
	sb.WriteString(fmt.Sprintf("%d tasks, %d unfinished.\n", len(closed.Tasks), closed.OpenTasks))
	if carried != nil {
		sb.WriteString("\n")
		sb.WriteString(FormatCarryOver(carried))
	}
	return strings.TrimSpace(sb.String())
}

// FormatCarryOver lists the tasks created by a carry-over.
func FormatCarryOver(res *app.CarryOverResult) string {
	if res == nil {
		return "Nothing carried over."
	}
	var sb strings.Builder
	if len(res.Created) == 0 {
		sb.WriteString(fmt.Sprintf("Nothing carried over from week of %s.\n", res.Source.WeekStart))
	} else {
		sb.WriteString(fmt.Sprintf("## Carried over to week of %s (%d)\n", res.Target, len(res.Created)))
		for _, t := range res.Created {
			sb.WriteString("- " + taskLine(t) + "\n")
		}
	}
	if len(res.UnknownIDs) > 0 {
		ids := make([]string, len(res.UnknownIDs))
		for i, id := range res.UnknownIDs {
			ids[i] = fmt.Sprintf("`%d`", id)
		}
		sb.WriteString(fmt.Sprintf("\n⚠️ Skipped ids that are not unfinished tasks of that week: %s\n", strings.Join(ids, ", ")))
	}
	return strings.TrimSpace(sb.String())
}

// FormatSprint summarizes the sprint and whether it can be closed.
func FormatSprint(v *app.View, canClose bool) string {
	if v == nil {
		return "No sprint loaded."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n", sprintName(v.Sprint)))
	sb.WriteString(fmt.Sprintf("**ID**: `%d` | **Status**: %s", v.Sprint.ID, label(string(v.Sprint.Status))))
	if v.Sprint.Deadline != nil {
		sb.WriteString(fmt.Sprintf(" | **Deadline**: %s", *v.Sprint.Deadline))
	}
	sb.WriteString("\n")
	weeks := 0
	for _, col := range v.Columns {
		if col.Week != nil {
			weeks++
		}
	}
	sb.WriteString(fmt.Sprintf("%d weeks, %d tasks (%d open, %d closed)\n", weeks, v.Stats.Total, v.Stats.Open, v.Stats.Closed))
	if v.Sprint.IsOpen() {
		if canClose {
			sb.WriteString("\n> Every task is closed; the sprint can be closed.\n")
		} else {
			sb.WriteString(fmt.Sprintf("\n> %d open tasks must be closed before the sprint can be closed.\n", v.Stats.Open))
		}
	}
	return strings.TrimSpace(sb.String())
}

// === Error Formatters ===

// FormatError returns a standardized Markdown error message.
// Use this for all MCP tool error responses to ensure consistency.
func FormatError(message string) string {
	return fmt.Sprintf("## ❌ Error\n\n**Details**: %s", message)
}

// FormatValidationError returns a Markdown error for validation failures.
func FormatValidationError(field, message string) string {
	return fmt.Sprintf("## ❌ Validation Error\n\n**Field**: `%s`\n**Details**: %s", field, message)
}

func taskLine(t task.Task) string {
	line := fmt.Sprintf("%s `%d` %s", statusIcon(t.Status), t.ID, truncate(noteOf(t), 120))
	var extra []string
	if t.DayOfWeek != nil {
		extra = append(extra, fmt.Sprintf("day %d", *t.DayOfWeek))
	}
	if t.PlannedHours != nil {
		extra = append(extra, fmt.Sprintf("%gh", *t.PlannedHours))
	}
	if t.Deadline != nil {
		extra = append(extra, "due "+*t.Deadline)
	}
	if len(extra) > 0 {
		line += " (" + strings.Join(extra, ", ") + ")"
	}
	return line
}

func noteOf(t task.Task) string {
	if t.Note == "" {
		return "(no note)"
	}
	return t.Note
}

func sprintName(s task.Sprint) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Sprint %d", s.ID)
}

// label title-cases an upper-case wire value.
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

// statusIcon returns an emoji for task status
func statusIcon(status task.TaskStatus) string {
	if status == task.StatusClosed {
		return "✅"
	}
	return "⬜"
}

// truncate shortens a string to maxLen and adds ellipsis
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
