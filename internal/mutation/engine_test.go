package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
)

var (
	key = cache.Key{ProjectID: 1, SprintID: 10}
	w1  = task.WeekContainer(100)
	w2  = task.WeekContainer(200)
)

// fakeServer answers with the request applied, or with err when set.
// When hold is non-nil every call waits for it to close first.
type fakeServer struct {
	mu     sync.Mutex
	nextID int64
	err    error
	hold   chan struct{}
	calls  []string
}

func (s *fakeServer) wait(name string) error {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	hold, err := s.hold, s.err
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return err
}

func (s *fakeServer) CreateTask(_ context.Context, _ int64, c task.ContainerID, d task.Draft) (task.Task, error) {
	if err := s.wait("create"); err != nil {
		return task.Task{}, err
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()
	return d.Provisional(id, c, time.Now()), nil
}

func (s *fakeServer) UpdateTask(_ context.Context, _, taskID int64, ch task.Changes) (task.Task, error) {
	if err := s.wait("update"); err != nil {
		return task.Task{}, err
	}
	out := task.Task{ID: taskID, Status: task.StatusOpened}
	if ch.Note != nil {
		out.Note = *ch.Note + " (server)"
	}
	out.Place(w1)
	return out, nil
}

func (s *fakeServer) MoveTask(_ context.Context, _, taskID int64, to task.ContainerID) (task.Task, error) {
	if err := s.wait("move"); err != nil {
		return task.Task{}, err
	}
	out := task.Task{ID: taskID, Note: "moved", Status: task.StatusOpened}
	out.Place(to)
	return out, nil
}

func (s *fakeServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeGate struct {
	mu       sync.Mutex
	closed   map[task.ContainerID]bool
	rejected []error
}

func (g *fakeGate) CheckContainer(c task.ContainerID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed[c] {
		return task.NewError(task.CodeSprintClosed, "check container", "closed", nil)
	}
	return nil
}

func (g *fakeGate) ApplyRejection(err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejected = append(g.rejected, err)
	return task.IsCode(err, task.CodeSprintClosed)
}

type fakeTracker struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeTracker) Track(event string, _ map[string]any) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakeTracker) list() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func setup(t *testing.T) (*Engine, *cache.Cache, *fakeServer, *fakeGate, *fakeTracker) {
	t.Helper()
	c := cache.New()
	srv := &fakeServer{nextID: 1000}
	gate := &fakeGate{closed: map[task.ContainerID]bool{}}
	tr := &fakeTracker{}
	return New(c, srv, gate, WithTracker(tr)), c, srv, gate, tr
}

func mk(id int64, c task.ContainerID) task.Task {
	t := task.Task{ID: id, Note: "t", Status: task.StatusOpened}
	t.Place(c)
	return t
}

func ids(tasks []task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func assertPlacement(t *testing.T, c *cache.Cache) {
	t.Helper()
	for _, ct := range c.Containers(key) {
		for _, tk := range c.Read(key, ct) {
			assert.Equal(t, tk.WeekID == nil, tk.IsBacklog, "task %d", tk.ID)
			assert.Equal(t, ct, tk.Container(), "task %d", tk.ID)
			if tk.IsBacklog {
				assert.Nil(t, tk.DayOfWeek, "task %d", tk.ID)
			}
		}
	}
}

func TestCreate_ReplacesPlaceholderInPlace(t *testing.T) {
	e, c, _, _, tr := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1), mk(2, w1)})

	p, err := e.StartCreate(context.Background(), key, w1, task.Draft{Note: "new", DayOfWeek: task.Ptr(3)})
	require.NoError(t, err)
	assert.True(t, p.Optimistic.IsPlaceholder())

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), got.ID)
	assert.Equal(t, []int64{1001, 1, 2}, ids(c.Read(key, w1)))
	assert.Equal(t, 3, *c.Read(key, w1)[0].DayOfWeek)
	assertPlacement(t, c)
	assert.Nil(t, e.LastError())
	assert.Equal(t, []string{EventTaskCreated}, tr.list())
}

func TestCreate_ShowsPlaceholderWhileInFlight(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	srv.hold = make(chan struct{})

	p, err := e.StartCreate(context.Background(), key, task.Backlog(), task.Draft{Note: "draft", DayOfWeek: task.Ptr(4)})
	require.NoError(t, err)

	front := c.Read(key, task.Backlog())
	require.Len(t, front, 1)
	assert.True(t, front[0].IsPlaceholder())
	assert.Nil(t, front[0].DayOfWeek)
	assertPlacement(t, c)

	close(srv.hold)
	_, err = p.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, c.Read(key, task.Backlog())[0].IsPlaceholder())
}

func TestCreate_NetworkFailureRollsBack(t *testing.T) {
	e, c, srv, gate, tr := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1), mk(2, w1)})
	before := c.Read(key, w1)
	srv.err = task.NewError(task.CodeNetwork, "create task", "connection refused", nil)

	_, err := e.Create(context.Background(), key, w1, task.Draft{Note: "lost"})
	require.Error(t, err)
	assert.True(t, task.IsCode(err, task.CodeNetwork))

	assert.Equal(t, before, c.Read(key, w1))
	assertPlacement(t, c)

	last := e.LastError()
	require.NotNil(t, last)
	assert.Equal(t, OpCreate, last.Op)
	assert.Equal(t, task.CodeNetwork, last.Code())
	assert.Len(t, gate.rejected, 1)
	assert.Equal(t, []string{EventRolledBack}, tr.list())
}

func TestCreate_ValidationFailsBeforeApply(t *testing.T) {
	e, c, srv, _, _ := setup(t)

	_, err := e.Create(context.Background(), key, w1, task.Draft{Note: "x", DayOfWeek: task.Ptr(9)})
	assert.True(t, task.IsCode(err, task.CodeValidation))
	assert.False(t, c.Has(key, w1))
	assert.Zero(t, srv.callCount())
	require.NotNil(t, e.LastError())
}

func TestMutations_RefusedWhenContainerClosed(t *testing.T) {
	e, c, srv, gate, _ := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1)})
	c.Write(key, task.Backlog(), []task.Task{mk(2, task.Backlog())})
	gate.closed[w1] = true
	before := c.Sprint(key)

	_, err := e.Create(context.Background(), key, w1, task.Draft{Note: "x"})
	assert.True(t, errors.Is(err, task.ErrSprintClosed))

	_, err = e.Update(context.Background(), key, w1, 1, task.Changes{Note: task.Ptr("y")})
	assert.True(t, errors.Is(err, task.ErrSprintClosed))

	_, err = e.Move(context.Background(), key, 2, task.Backlog(), w1)
	assert.True(t, errors.Is(err, task.ErrSprintClosed))

	_, err = e.Move(context.Background(), key, 1, w1, task.Backlog())
	assert.True(t, errors.Is(err, task.ErrSprintClosed))

	assert.Equal(t, before, c.Sprint(key))
	assert.Zero(t, srv.callCount())
	assert.Equal(t, task.CodeSprintClosed, e.LastError().Code())
}

func TestUpdate_CommitsServerTask(t *testing.T) {
	e, c, _, _, tr := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1), mk(2, w1)})

	p, err := e.StartUpdate(context.Background(), key, w1, 2, task.Changes{Note: task.Ptr("edited")})
	require.NoError(t, err)
	assert.Equal(t, "edited", p.Optimistic.Note)

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "edited (server)", got.Note)
	assert.Equal(t, []int64{1, 2}, ids(c.Read(key, w1)))
	assert.Equal(t, "edited (server)", c.Read(key, w1)[1].Note)
	assert.Equal(t, []string{EventTaskUpdated}, tr.list())
}

func TestUpdate_FailureRestoresOriginal(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1)})
	srv.err = task.NewError(task.CodeValidation, "update task", "note too long", nil)

	_, err := e.Update(context.Background(), key, w1, 1, task.Changes{Note: task.Ptr("edited")})
	assert.True(t, task.IsCode(err, task.CodeValidation))
	assert.Equal(t, "t", c.Read(key, w1)[0].Note)
}

func TestUpdate_Preconditions(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1), mk(-5, w1)})

	_, err := e.Update(context.Background(), key, w2, 1, task.Changes{Note: task.Ptr("x")})
	assert.True(t, task.IsCode(err, task.CodeNotFound))

	_, err = e.Update(context.Background(), key, w1, 99, task.Changes{Note: task.Ptr("x")})
	assert.True(t, task.IsCode(err, task.CodeNotFound))

	_, err = e.Update(context.Background(), key, w1, -5, task.Changes{Note: task.Ptr("x")})
	assert.True(t, task.IsCode(err, task.CodeConflict))

	got, err := e.Update(context.Background(), key, w1, 1, task.Changes{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Zero(t, srv.callCount())
}

func TestMove_AtomicOnSuccess(t *testing.T) {
	e, c, _, _, tr := setup(t)
	c.Write(key, task.Backlog(), []task.Task{mk(1, task.Backlog()), mk(2, task.Backlog())})
	c.Write(key, w1, []task.Task{mk(3, w1)})

	got, err := e.Move(context.Background(), key, 2, task.Backlog(), w1)
	require.NoError(t, err)
	assert.Equal(t, w1, got.Container())

	assert.Equal(t, []int64{1}, ids(c.Read(key, task.Backlog())))
	assert.Equal(t, []int64{2, 3}, ids(c.Read(key, w1)))
	assert.Equal(t, 1, *c.Read(key, w1)[0].DayOfWeek)
	assertPlacement(t, c)
	assert.Equal(t, []string{EventTaskMoved}, tr.list())
}

func TestMove_AtomicOnFailure(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, task.Backlog(), []task.Task{mk(1, task.Backlog()), mk(2, task.Backlog())})
	c.Write(key, w1, []task.Task{mk(3, w1)})
	backlog, week := c.Read(key, task.Backlog()), c.Read(key, w1)
	srv.hold = make(chan struct{})
	srv.err = task.NewError(task.CodeTimeout, "move task", "deadline exceeded", nil)

	p, err := e.StartMove(context.Background(), key, 2, task.Backlog(), w1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(c.Read(key, task.Backlog())))
	assert.Equal(t, []int64{2, 3}, ids(c.Read(key, w1)))

	close(srv.hold)
	_, err = p.Wait(context.Background())
	assert.True(t, task.IsCode(err, task.CodeTimeout))

	assert.Equal(t, backlog, c.Read(key, task.Backlog()))
	assert.Equal(t, week, c.Read(key, w1))
	assertPlacement(t, c)
	assert.Equal(t, OpMove, e.LastError().Op)
}

func TestMove_BacklogToWeekAndBack(t *testing.T) {
	e, c, _, _, _ := setup(t)
	c.Write(key, task.Backlog(), []task.Task{mk(7, task.Backlog())})
	c.Write(key, w1, nil)
	ctx := context.Background()

	_, err := e.Move(ctx, key, 7, task.Backlog(), w1)
	require.NoError(t, err)
	assertPlacement(t, c)

	got, err := e.Move(ctx, key, 7, w1, task.Backlog())
	require.NoError(t, err)
	assert.True(t, got.IsBacklog)
	assert.Nil(t, got.WeekID)
	assert.Nil(t, got.DayOfWeek)
	assert.Equal(t, []int64{7}, ids(c.Read(key, task.Backlog())))
	assert.Empty(t, c.Read(key, w1))
	assertPlacement(t, c)
}

func TestMove_SameContainerIsNoop(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1)})

	got, err := e.Move(context.Background(), key, 1, w1, w1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Zero(t, srv.callCount())
}

func TestMove_WrongSource(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1)})

	_, err := e.Move(context.Background(), key, 1, w2, task.Backlog())
	assert.True(t, task.IsCode(err, task.CodeNotFound))
	assert.Zero(t, srv.callCount())
}

func TestInvalidate_DiscardsInFlightResult(t *testing.T) {
	e, c, srv, _, tr := setup(t)
	c.Write(key, w1, []task.Task{mk(1, w1)})
	srv.hold = make(chan struct{})
	srv.err = task.NewError(task.CodeNetwork, "create task", "reset", nil)

	p, err := e.StartCreate(context.Background(), key, w1, task.Draft{Note: "x"})
	require.NoError(t, err)

	// Selection changed; the board reloads what the server has.
	e.Invalidate()
	c.Write(key, w1, []task.Task{mk(1, w1), mk(9, w1)})

	close(srv.hold)
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, []int64{1, 9}, ids(c.Read(key, w1)))
	assert.Nil(t, e.LastError())
	assert.Empty(t, tr.list())
}

func TestRetry(t *testing.T) {
	e, c, srv, _, _ := setup(t)
	c.Write(key, task.Backlog(), []task.Task{mk(1, task.Backlog())})
	srv.err = task.NewError(task.CodeNetwork, "move task", "offline", nil)

	_, err := e.Move(context.Background(), key, 1, task.Backlog(), w1)
	require.Error(t, err)
	require.NotNil(t, e.LastError())

	srv.mu.Lock()
	srv.err = nil
	srv.mu.Unlock()

	got, err := e.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, w1, got.Container())
	assert.Nil(t, e.LastError())
	assert.Equal(t, []int64{1}, ids(c.Read(key, w1)))

	_, err = e.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRetry)
}

func TestDismiss(t *testing.T) {
	e, _, _, _, _ := setup(t)
	_, err := e.Create(context.Background(), key, w1, task.Draft{Note: "x", PlannedHours: task.Ptr(-1.0)})
	require.Error(t, err)
	require.NotNil(t, e.LastError())

	e.Dismiss()
	assert.Nil(t, e.LastError())
}

func TestPending_WaitHonoursContext(t *testing.T) {
	p := newPending(task.Task{ID: -1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	p.finish(task.Task{ID: 4}, nil)
	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.ID)
}
