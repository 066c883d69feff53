package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josephgoksu/PlanWing/internal/task"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"empty", "", 10, ""},
		{"short note", "demo", 10, "demo"},
		{"exact length", "retro", 5, "retro"},
		{"needs truncation", "write release notes", 8, "write..."},
		{"very short max", "review", 3, "rev"},
		{"zero max", "review", 0, "review"},
		{"multibyte", "çalışma planı", 8, "çalış..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestSprintSummary(t *testing.T) {
	deadline := "2025-03-31"
	s := SprintSummary{
		Sprint: task.Sprint{ID: 10, Status: task.SprintOpen, Deadline: &deadline},
		Weeks:  3,
		Total:  5,
		Open:   2,
		Closed: 3,
	}

	t.Run("open with open tasks", func(t *testing.T) {
		out := s.Render()
		assert.Contains(t, out, "Sprint 10")
		assert.Contains(t, out, "deadline 2025-03-31")
		assert.Contains(t, out, "3 weeks · 5 tasks · 2 open · 3 closed")
		assert.Contains(t, out, "2 open task(s) must be closed")
	})

	t.Run("ready to close", func(t *testing.T) {
		ready := s
		ready.Sprint.Name = "Q1"
		ready.Open, ready.Closed, ready.CanClose = 0, 5, true
		out := ready.Render()
		assert.Contains(t, out, "Q1")
		assert.Contains(t, out, "planwing sprint close")
	})

	t.Run("closed sprint has no hint", func(t *testing.T) {
		closed := s
		closed.Sprint.Status = task.SprintClosed
		out := closed.Render()
		assert.NotContains(t, out, "must be closed")
		assert.NotContains(t, out, "planwing sprint close")
	})
}

func TestSkippedIDs(t *testing.T) {
	assert.Empty(t, SkippedIDs(nil))
	out := SkippedIDs([]int64{7, 4242})
	assert.Contains(t, out, "7, 4242")
}
