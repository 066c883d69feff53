package weekgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/task"
)

func weeks(starts ...string) []task.Week {
	out := make([]task.Week, len(starts))
	for i, s := range starts {
		out[i] = task.Week{ID: int64(i + 1), WeekStart: s}
	}
	return out
}

func TestNext(t *testing.T) {
	// Wednesday.
	today := time.Date(2025, 1, 8, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		existing []task.Week
		startDay int
		want     string
	}{
		{name: "no weeks aligns to monday", startDay: 1, want: "2025-01-06"},
		{name: "no weeks aligns to sunday", startDay: 0, want: "2025-01-05"},
		{name: "today is the start day", startDay: 3, want: "2025-01-08"},
		{name: "after latest", existing: weeks("2025-01-06"), startDay: 1, want: "2025-01-13"},
		{name: "unordered input", existing: weeks("2025-01-20", "2025-01-06", "2025-01-13"), startDay: 1, want: "2025-01-27"},
		{name: "unparseable start skipped", existing: weeks("garbage", "2025-01-06"), startDay: 1, want: "2025-01-13"},
		{name: "all unparseable falls back to today", existing: weeks("x"), startDay: 1, want: "2025-01-06"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.existing, tt.startDay, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_NeverRepeatsExistingStart(t *testing.T) {
	today := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	var existing []task.Week
	for i := 0; i < 30; i++ {
		got, err := Next(existing, 1, today)
		require.NoError(t, err)
		for _, w := range existing {
			assert.NotEqual(t, w.WeekStart, got)
		}
		existing = append(existing, task.Week{ID: int64(i + 1), WeekStart: got})
	}
}

func TestGenerator_UsesInjectedClock(t *testing.T) {
	g := &Generator{Now: func() time.Time { return time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC) }}
	req, err := g.Next(nil, 1)
	require.NoError(t, err)
	assert.Equal(t, Request{From: "2025-01-06", To: "2025-01-06"}, req)
}

func TestAlign(t *testing.T) {
	sat := time.Date(2025, 1, 11, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-06", Align(sat, 1).Format(task.DateLayout))
	assert.Equal(t, "2025-01-11", Align(sat, 6).Format(task.DateLayout))
	assert.Equal(t, "2025-01-06", Align(sat, 42).Format(task.DateLayout), "invalid weekday means monday")
}

func TestEnd(t *testing.T) {
	end, err := End("2025-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-12", end)

	_, err = End("nope")
	assert.Error(t, err)
}
