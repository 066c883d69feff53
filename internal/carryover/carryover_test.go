package carryover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
)

var key = cache.Key{ProjectID: 1, SprintID: 10}

type fakeServer struct {
	err      error
	calls    int
	gotIDs   []int64
	gotWeek  int64
	gotStart string
	nextID   int64
}

func (s *fakeServer) CarryOver(_ context.Context, _, weekID int64, target string, ids []int64) ([]task.Task, error) {
	s.calls++
	s.gotWeek, s.gotStart, s.gotIDs = weekID, target, ids
	if s.err != nil {
		return nil, s.err
	}
	out := make([]task.Task, 0, len(ids))
	for range ids {
		s.nextID++
		out = append(out, task.Task{ID: s.nextID, Note: "carried", Status: task.StatusOpened})
	}
	return out, nil
}

type fakeGate struct {
	closed   bool
	weeks    map[string]task.Week
	rejected int
}

func (g *fakeGate) CheckSprint() error {
	if g.closed {
		return task.NewError(task.CodeSprintClosed, "carry over", "sprint closed", nil)
	}
	return nil
}

func (g *fakeGate) ApplyRejection(error) bool {
	g.rejected++
	return false
}

func (g *fakeGate) WeekByStart(start string) (task.Week, bool) {
	w, ok := g.weeks[start]
	return w, ok
}

type memRecorder struct {
	origins []Origin
	err     error
}

func (r *memRecorder) RecordCarryOver(_ context.Context, origins []Origin) error {
	r.origins = append(r.origins, origins...)
	return r.err
}

var (
	week1 = task.Week{ID: 1, SprintID: 10, WeekStart: "2025-01-06", WeekEnd: "2025-01-12", IsClosed: true}
	week2 = task.Week{ID: 2, SprintID: 10, WeekStart: "2025-01-13", WeekEnd: "2025-01-19"}
)

func mk(id int64, status task.TaskStatus) task.Task {
	t := task.Task{ID: id, Note: "t", Status: status}
	t.Place(week1.Container())
	return t
}

func setup() (*Workflow, *cache.Cache, *fakeServer, *fakeGate, *memRecorder) {
	c := cache.New()
	srv := &fakeServer{nextID: 500}
	gate := &fakeGate{weeks: map[string]task.Week{week2.WeekStart: week2}}
	rec := &memRecorder{}
	w := New(1, func() cache.Key { return key }, c, srv, gate, WithRecorder(rec))
	return w, c, srv, gate, rec
}

func TestBegin_OffersOnlyUnfinishedTasks(t *testing.T) {
	w, _, _, _, _ := setup()
	tasks := []task.Task{mk(1, task.StatusOpened), mk(2, task.StatusClosed), mk(3, task.StatusOpened), mk(-1, task.StatusOpened)}

	s := w.Begin(week1, tasks, week2.WeekStart)

	assert.Equal(t, []int64{1, 3}, s.Selection())
	assert.Len(t, s.Candidates(), 2)
	assert.Equal(t, week2.WeekStart, s.Target())
}

func TestSession_Selection(t *testing.T) {
	w, _, _, _, _ := setup()
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened), mk(2, task.StatusOpened), mk(3, task.StatusOpened)}, week2.WeekStart)

	assert.True(t, s.Toggle(2))
	assert.Equal(t, []int64{1, 3}, s.Selection())
	assert.False(t, s.Toggle(99))

	s.SelectNone()
	assert.Empty(t, s.Selection())

	s.SelectAll()
	assert.Equal(t, []int64{1, 2, 3}, s.Selection())

	unknown := s.SelectOnly([]int64{3, 42})
	assert.Equal(t, []int64{42}, unknown)
	assert.Equal(t, []int64{3}, s.Selection())
}

func TestConfirm_CreatesNewTasksInTargetWeek(t *testing.T) {
	w, c, srv, _, rec := setup()
	originals := []task.Task{mk(1, task.StatusOpened), mk(2, task.StatusClosed)}
	c.Write(key, week1.Container(), originals)
	c.Write(key, week2.Container(), nil)

	s := w.Begin(week1, originals, week2.WeekStart)
	created, err := w.Confirm(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, created, 1)

	assert.Equal(t, int64(1), srv.gotWeek)
	assert.Equal(t, "2025-01-13", srv.gotStart)
	assert.Equal(t, []int64{1}, srv.gotIDs)

	carried := created[0]
	assert.NotEqual(t, int64(1), carried.ID)
	require.NotNil(t, carried.CarriedOverFromWeekID)
	assert.Equal(t, week1.ID, *carried.CarriedOverFromWeekID)

	// Originals untouched.
	assert.Equal(t, originals, c.Read(key, week1.Container()))

	target := c.Read(key, week2.Container())
	require.Len(t, target, 1)
	assert.Equal(t, carried.ID, target[0].ID)
	assert.Equal(t, week2.ID, *target[0].WeekID)
	assert.False(t, target[0].IsBacklog)

	assert.Equal(t, "carried over from week of 2025-01-06", w.Label(carried.ID))
	require.Len(t, rec.origins, 1)
	assert.Equal(t, "2025-01-06", rec.origins[0].SourceWeekStart)
	assert.NoError(t, w.LastError())
}

func TestConfirm_EmptySelectionIsNoop(t *testing.T) {
	w, _, srv, _, _ := setup()
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened)}, week2.WeekStart)
	s.SelectNone()

	created, err := w.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Zero(t, srv.calls)
}

func TestConfirm_RefusedWhenSprintClosed(t *testing.T) {
	w, _, srv, gate, _ := setup()
	gate.closed = true
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened)}, week2.WeekStart)

	_, err := w.Confirm(context.Background(), s)
	assert.True(t, errors.Is(err, task.ErrSprintClosed))
	assert.Zero(t, srv.calls)
	assert.Equal(t, err, w.LastError())
}

func TestConfirm_FailureLandsInLastError(t *testing.T) {
	w, c, srv, gate, rec := setup()
	srv.err = task.NewError(task.CodeNetwork, "carry over", "offline", nil)
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened)}, week2.WeekStart)

	_, err := w.Confirm(context.Background(), s)
	assert.True(t, task.IsCode(err, task.CodeNetwork))
	assert.True(t, task.IsCode(w.LastError(), task.CodeNetwork))
	assert.Equal(t, 1, gate.rejected)
	assert.Empty(t, c.Read(key, week2.Container()))
	assert.Empty(t, rec.origins)

	w.Dismiss()
	assert.NoError(t, w.LastError())
}

func TestConfirm_UnknownTargetWeekSkipsCache(t *testing.T) {
	w, c, _, _, _ := setup()
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened)}, "2025-02-03")

	created, err := w.Confirm(context.Background(), s)
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Empty(t, c.Sprint(key))
}

func TestConfirm_RecorderFailureIsNotFatal(t *testing.T) {
	w, _, _, _, rec := setup()
	rec.err = errors.New("disk full")
	s := w.Begin(week1, []task.Task{mk(1, task.StatusOpened)}, week2.WeekStart)

	created, err := w.Confirm(context.Background(), s)
	require.NoError(t, err)
	_, ok := w.Origin(created[0].ID)
	assert.True(t, ok)
}

func TestLoadOrigins(t *testing.T) {
	w, _, _, _, _ := setup()
	w.LoadOrigins([]Origin{{TaskID: 9, SourceWeekStart: "2025-01-06"}, {TaskID: 4, SourceWeekStart: "2024-12-30"}})

	got := w.Origins()
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].TaskID)
	assert.Empty(t, w.Label(1))
}
