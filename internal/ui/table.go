package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// RowState changes how a table row is drawn.
type RowState int

const (
	RowNormal RowState = iota
	RowMuted           // closed tasks and weeks
	RowCurrent         // the current week
)

// Table renders fixed-width columns for the terminal.
type Table struct {
	Headers  []string
	Rows     [][]string
	States   []RowState // parallel to Rows; missing entries are RowNormal
	MaxWidth int        // max width per column, 0 = auto
}

// AddRow appends a row drawn in state.
func (t *Table) AddRow(state RowState, cells ...string) {
	for len(t.States) < len(t.Rows) {
		t.States = append(t.States, RowNormal)
	}
	t.Rows = append(t.Rows, cells)
	t.States = append(t.States, state)
}

func (t *Table) rowStyle(i int) lipgloss.Style {
	state := RowNormal
	if i < len(t.States) {
		state = t.States[i]
	}
	switch state {
	case RowMuted:
		return lipgloss.NewStyle().Foreground(ColorSecondary)
	case RowCurrent:
		return lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	}
	return lipgloss.NewStyle().Foreground(ColorText)
}

// ColumnWidths calculates optimal column widths based on content.
func (t *Table) ColumnWidths() []int {
	widths := make([]int, len(t.Headers))

	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	if t.MaxWidth > 0 {
		for i := range widths {
			if widths[i] > t.MaxWidth {
				widths[i] = t.MaxWidth
			}
		}
	}
	return widths
}

// Render outputs the table to a string.
func (t *Table) Render() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.ColumnWidths()
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	ruleStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	var headerCells []string
	for i, h := range t.Headers {
		headerCells = append(headerCells, headerStyle.Render(padRight(h, widths[i])))
	}
	sb.WriteString(" " + strings.Join(headerCells, "  ") + "\n")

	var sepParts []string
	for _, w := range widths {
		sepParts = append(sepParts, ruleStyle.Render(strings.Repeat("─", w)))
	}
	sb.WriteString(" " + strings.Join(sepParts, "──") + "\n")

	for r, row := range t.Rows {
		cellStyle := t.rowStyle(r)
		var cells []string
		for i := range t.Headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			val = Truncate(val, widths[i])
			cells = append(cells, cellStyle.Render(padRight(val, widths[i])))
		}
		sb.WriteString(" " + strings.Join(cells, "  ") + "\n")
	}

	return sb.String()
}

// padRight pads s with spaces to width display columns.
func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// TaskTable lists tasks with their day, hours and status. weekStart dates
// the day column and is empty for the backlog. labels maps task ids to their
// carry-over note.
func TaskTable(tasks []task.Task, weekStart string, labels map[int64]string) *Table {
	t := &Table{
		Headers:  []string{"ID", "Day", "Note", "Hours", "Status", "Origin"},
		MaxWidth: 48,
	}
	for _, tk := range tasks {
		state := RowNormal
		if tk.IsDone() {
			state = RowMuted
		}
		t.AddRow(state,
			strconv.FormatInt(tk.ID, 10),
			DayLabel(weekStart, tk.DayOfWeek),
			tk.Note,
			hours(tk.PlannedHours),
			Label(string(tk.Status)),
			labels[tk.ID],
		)
	}
	return t
}

// DayLabel renders day n of the week starting at weekStart as "Wed 01-08".
// It falls back to "Day n" without a parseable start and to "-" without a day.
func DayLabel(weekStart string, day *int) string {
	if day == nil {
		return "-"
	}
	n := task.ClampDay(*day)
	start, err := time.Parse(task.DateLayout, weekStart)
	if err != nil {
		return fmt.Sprintf("Day %d", n)
	}
	return start.AddDate(0, 0, n-1).Format("Mon 01-02")
}

func hours(h *float64) string {
	if h == nil {
		return "-"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", *h), "0"), ".")
}
