package mcp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/task"
)

func sampleView() *app.View {
	wid := int64(5)
	week := task.Week{ID: 5, WeekStart: "2025-01-06", WeekEnd: "2025-01-12", IsClosed: true}
	return &app.View{
		ProjectID: 1,
		Sprint:    task.Sprint{ID: 10, Name: "Q1", Status: task.SprintOpen},
		Columns: []app.Column{
			{Container: task.Backlog(), ID: "backlog", Title: "Backlog"},
			{
				Container: week.Container(),
				ID:        week.Container().String(),
				Title:     "Week of 2025-01-06",
				Week:      &week,
				Tasks: []task.Task{
					{ID: 7, WeekID: &wid, Note: "ship it", Status: task.StatusClosed, DayOfWeek: task.Ptr(2), PlannedHours: task.Ptr(1.5)},
					{ID: 8, WeekID: &wid, Note: "follow up", Status: task.StatusOpened},
				},
			},
		},
		Stats:  app.Stats{Total: 2, Open: 1, Closed: 1},
		Labels: map[int64]string{8: "carried over from week of 2024-12-30"},
	}
}

// === FormatBoard Tests ===

func TestFormatBoard_Nil(t *testing.T) {
	assert.Equal(t, "Board is empty.", FormatBoard(nil))
	assert.Equal(t, "Board is empty.", FormatBoard(&app.View{}))
}

func TestFormatBoard_Columns(t *testing.T) {
	out := FormatBoard(sampleView())

	assert.Contains(t, out, "# Q1 (Open)")
	assert.Contains(t, out, "2 tasks | 1 open | 1 closed")
	assert.Contains(t, out, "## Backlog\n_No tasks._")
	assert.Contains(t, out, "## Week of 2025-01-06 (id 5, 2025-01-06 → 2025-01-12) 🔒 closed")
	assert.Contains(t, out, "✅ `7` ship it (day 2, 1.5h)")
	assert.Contains(t, out, "⬜ `8` follow up _(carried over from week of 2024-12-30)_")
	assert.NotContains(t, out, "Offline")
}

func TestFormatBoard_OfflineAndError(t *testing.T) {
	v := sampleView()
	v.Offline = true
	v.SyncedAt = time.Date(2025, 1, 8, 9, 30, 0, 0, time.UTC)
	v.LastError = "move task: connection refused"

	out := FormatBoard(v)
	assert.Contains(t, out, "Offline copy from 2025-01-08 09:30 UTC")
	assert.Contains(t, out, "**Last error**: move task: connection refused")
}

// === FormatTask Tests ===

func TestFormatTask_Nil(t *testing.T) {
	assert.Equal(t, "No task information.", FormatTask(nil))
}

func TestFormatTask_Success(t *testing.T) {
	wid := int64(5)
	out := FormatTask(&app.TaskResult{
		Success: true,
		Message: "Task created.",
		Task:    &task.Task{ID: 42, WeekID: &wid, Note: "plan demo", Status: task.StatusOpened, Deadline: task.Ptr("2025-01-10")},
		Label:   "carried over from week of 2025-01-06",
	})

	assert.True(t, strings.HasPrefix(out, "Task created."))
	assert.Contains(t, out, "## ⬜ plan demo")
	assert.Contains(t, out, "**ID**: `42` | **Where**: week:5 | **Status**: Opened")
	assert.Contains(t, out, "**Deadline**: 2025-01-10")
	assert.Contains(t, out, "_carried over from week of 2025-01-06_")
}

func TestFormatTask_Failure(t *testing.T) {
	out := FormatTask(&app.TaskResult{
		Message: "create task: sprint is closed",
		Code:    task.CodeSprintClosed,
		Hint:    "the sprint or week is closed; nothing can change",
	})

	assert.Contains(t, out, "## ❌ Error")
	assert.Contains(t, out, "**Code**: `SPRINT_CLOSED`")
	assert.Contains(t, out, "> **Hint**: the sprint or week is closed")
}

// === Week Formatters ===

func TestFormatWeeks(t *testing.T) {
	assert.Contains(t, FormatWeeks(nil, task.Metadata{}), "No weeks yet")

	cur := int64(6)
	out := FormatWeeks([]task.Week{
		{ID: 5, WeekStart: "2025-01-06", WeekEnd: "2025-01-12", IsClosed: true},
		{ID: 6, WeekStart: "2025-01-13", WeekEnd: "2025-01-19"},
	}, task.Metadata{CurrentWeekID: &cur})

	assert.Contains(t, out, "## Weeks (2)")
	assert.Contains(t, out, "| 5 | 2025-01-06 | 2025-01-12 | closed |")
	assert.Contains(t, out, "| 6 | 2025-01-13 | 2025-01-19 | open, current |")
}

func TestFormatWeekClosed_WithCarryOver(t *testing.T) {
	week := task.Week{ID: 5, WeekStart: "2025-01-06"}
	closed := &app.WeekClosed{Week: week, Tasks: make([]task.Task, 3), OpenTasks: 2}
	carried := &app.CarryOverResult{
		Source:     week,
		Target:     "2025-01-13",
		Created:    []task.Task{{ID: 90, Note: "follow up", Status: task.StatusOpened}},
		UnknownIDs: []int64{4242},
	}

	out := FormatWeekClosed(closed, carried)
	assert.Contains(t, out, "Closed week of 2025-01-06 (`5`)")
	assert.Contains(t, out, "3 tasks, 2 unfinished.")
	assert.Contains(t, out, "## Carried over to week of 2025-01-13 (1)")
	assert.Contains(t, out, "`90` follow up")
	assert.Contains(t, out, "`4242`")
}

func TestFormatCarryOver_Empty(t *testing.T) {
	out := FormatCarryOver(&app.CarryOverResult{Source: task.Week{WeekStart: "2025-01-06"}})
	assert.Equal(t, "Nothing carried over from week of 2025-01-06.", out)
}

// === FormatSprint Tests ===

func TestFormatSprint(t *testing.T) {
	v := sampleView()
	out := FormatSprint(v, false)
	assert.Contains(t, out, "## Q1")
	assert.Contains(t, out, "1 weeks, 2 tasks (1 open, 1 closed)")
	assert.Contains(t, out, "1 open tasks must be closed")

	v.Sprint.Status = task.SprintClosed
	out = FormatSprint(v, true)
	assert.Contains(t, out, "**Status**: Closed")
	assert.NotContains(t, out, "can be closed")
}

// === Error Formatters ===

func TestFormatError(t *testing.T) {
	out := FormatError(errors.New("boom").Error())
	assert.Equal(t, "## ❌ Error\n\n**Details**: boom", out)
	assert.Contains(t, FormatValidationError("task_id", "required"), "**Field**: `task_id`")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll...", truncate("héllo world", 4))
}
