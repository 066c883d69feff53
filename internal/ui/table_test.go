package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/task"
)

func weekTable() *Table {
	tbl := &Table{Headers: []string{"ID", "Start", "End", "Tasks", "State"}}
	tbl.AddRow(RowMuted, "3", "2024-12-30", "2025-01-05", "4", "closed")
	tbl.AddRow(RowCurrent, "4", "2025-01-06", "2025-01-12", "11", "open, current")
	return tbl
}

func TestTable_ColumnWidths(t *testing.T) {
	widths := weekTable().ColumnWidths()
	assert.Equal(t, []int{2, 10, 10, 5, 13}, widths)
}

func TestTable_ColumnWidths_CapsLongNotes(t *testing.T) {
	tbl := &Table{Headers: []string{"ID", "Note"}, MaxWidth: 12}
	tbl.AddRow(RowNormal, "9", "prepare the quarterly planning review")

	assert.Equal(t, []int{2, 12}, tbl.ColumnWidths())
	assert.Contains(t, tbl.Render(), "prepare t...")
}

func TestTable_AddRow_KeepsStatesAligned(t *testing.T) {
	tbl := &Table{Headers: []string{"ID"}, Rows: [][]string{{"1"}, {"2"}}}
	tbl.AddRow(RowMuted, "3")

	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []RowState{RowNormal, RowNormal, RowMuted}, tbl.States)
}

func TestTable_Render(t *testing.T) {
	out := weekTable().Render()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "Start")
	assert.Contains(t, lines[1], "─")
	assert.Contains(t, lines[2], "closed")
	assert.Contains(t, lines[3], "open, current")
}

func TestTable_Render_RowStateWithoutEntry(t *testing.T) {
	tbl := &Table{
		Headers: []string{"ID", "Note", "Status"},
		Rows:    [][]string{{"5", "standup"}},
	}

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "standup")
}

func TestTable_Render_NoHeaders(t *testing.T) {
	assert.Empty(t, (&Table{}).Render())
}

func TestTaskTable(t *testing.T) {
	week := task.Task{ID: 7, Note: "write report", DayOfWeek: task.Ptr(3), PlannedHours: task.Ptr(2.5), Status: task.StatusOpened}
	backlog := task.Task{ID: 8, Note: "later", Status: task.StatusClosed}

	tbl := TaskTable([]task.Task{week, backlog}, "2025-01-06", map[int64]string{7: "carried over from week of 2024-12-30"})
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"7", "Wed 01-08", "write report", "2.5", "Opened", "carried over from week of 2024-12-30"}, tbl.Rows[0])
	assert.Equal(t, []string{"8", "-", "later", "-", "Closed", ""}, tbl.Rows[1])
	assert.Equal(t, []RowState{RowNormal, RowMuted}, tbl.States)
}

func TestDayLabel(t *testing.T) {
	assert.Equal(t, "-", DayLabel("2025-01-06", nil))
	assert.Equal(t, "Mon 01-06", DayLabel("2025-01-06", task.Ptr(1)))
	assert.Equal(t, "Sun 01-12", DayLabel("2025-01-06", task.Ptr(7)))
	assert.Equal(t, "Mon 01-06", DayLabel("2025-01-06", task.Ptr(9)), "out of range clamps to 1")
	assert.Equal(t, "Day 2", DayLabel("", task.Ptr(2)))
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "Mon  ", padRight("Mon", 5))
	assert.Equal(t, "Opened", padRight("Opened", 3))
	assert.Equal(t, "   ", padRight("", 3))
}
