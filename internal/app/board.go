package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josephgoksu/PlanWing/internal/api"
	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/carryover"
	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/dnd"
	"github.com/josephgoksu/PlanWing/internal/lifecycle"
	"github.com/josephgoksu/PlanWing/internal/logger"
	"github.com/josephgoksu/PlanWing/internal/memory"
	"github.com/josephgoksu/PlanWing/internal/mutation"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	"github.com/josephgoksu/PlanWing/internal/util"
	"github.com/josephgoksu/PlanWing/internal/weekgen"
)

// refreshConcurrency bounds parallel week fetches during Refresh.
const refreshConcurrency = 4

var dateArg = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Board is one project's weekly planner: the current sprint, its weeks and
// backlog, and every operation on them.
// This is THE implementation - CLI, TUI and MCP all call these methods.
type Board struct {
	ctx    *Context
	cache  *cache.Cache
	life   *lifecycle.Controller
	engine *mutation.Engine
	carry  *carryover.Workflow
	drag   *dnd.Coordinator
	gen    *weekgen.Generator

	mu       sync.RWMutex
	syncedAt time.Time
	offline  bool
}

// NewBoard wires the planner components over appCtx. Nothing is loaded
// until Refresh or LoadOffline.
func NewBoard(appCtx *Context) *Board {
	b := &Board{
		ctx:   appCtx,
		cache: cache.New(),
		gen:   weekgen.New(),
	}

	var auth lifecycle.Authorizer
	if appCtx.Gate != nil {
		auth = appCtx.Gate
	}
	b.life = lifecycle.New(appCtx.ProjectID, appCtx.Server, auth)
	b.engine = mutation.New(b.cache, appCtx.Server, b.life, mutation.WithTracker(appCtx.Telemetry))

	opts := []carryover.Option{carryover.WithTracker(appCtx.Telemetry)}
	if appCtx.Store != nil {
		opts = append(opts, carryover.WithRecorder(appCtx.Store))
	}
	b.carry = carryover.New(appCtx.ProjectID, b.Key, b.cache, appCtx.Server, b.life, opts...)
	b.drag = dnd.NewCoordinator(boardMover{b}, b.life.SprintOpen)
	return b
}

// Key is the cache key of the current sprint.
func (b *Board) Key() cache.Key {
	return cache.Key{ProjectID: b.ctx.ProjectID, SprintID: b.life.Sprint().ID}
}

// Sprint returns the current sprint.
func (b *Board) Sprint() task.Sprint { return b.life.Sprint() }

// Weeks returns the weeks of the current sprint ordered by start.
func (b *Board) Weeks() []task.Week { return b.life.Weeks() }

// Metadata returns the last planning metadata.
func (b *Board) Metadata() task.Metadata { return b.life.Metadata() }

// Tasks returns the tasks of one container.
func (b *Board) Tasks(container task.ContainerID) []task.Task {
	return b.cache.Read(b.Key(), container)
}

// SprintTasks returns every task of the current sprint, backlog first.
func (b *Board) SprintTasks() []task.Task {
	return b.cache.Sprint(b.Key())
}

// Label is the "carried over from ..." note of a task, or "".
func (b *Board) Label(taskID int64) string { return b.carry.Label(taskID) }

// Drag returns the drag-and-drop coordinator of this board.
func (b *Board) Drag() *dnd.Coordinator { return b.drag }

// Subscribe registers fn for cache changes.
func (b *Board) Subscribe(fn cache.Listener) func() { return b.cache.Subscribe(fn) }

// SyncedAt is when the board was last loaded.
func (b *Board) SyncedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.syncedAt
}

// Offline reports whether the board came from the local snapshot.
func (b *Board) Offline() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offline
}

// Refresh reloads the current sprint, its weeks and every container from
// the server. In-flight mutation results become stale.
func (b *Board) Refresh(ctx context.Context) error {
	if b.ctx.Server == nil {
		return config.ErrMissingBaseURL
	}
	srv := b.ctx.Server
	pid := b.ctx.ProjectID

	sprint, err := srv.CurrentSprint(ctx, pid)
	if err != nil {
		return fmt.Errorf("load sprint: %w", err)
	}
	prev := b.Key()
	b.life.SetSprint(sprint)
	logger.SetSprint(sprint.ID)

	page, err := srv.ListAllWeeks(ctx, pid, b.ctx.PageSize)
	if err != nil {
		return fmt.Errorf("load weeks: %w", err)
	}
	b.applyWeeks(page)
	weeks := b.life.Weeks()

	var backlog []task.Task
	details := make([]api.WeekDetail, len(weeks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	g.Go(func() error {
		tasks, err := srv.ListBacklog(gctx, pid, sprint.ID)
		if err != nil {
			return fmt.Errorf("load backlog: %w", err)
		}
		backlog = tasks
		return nil
	})
	for i, w := range weeks {
		g.Go(func() error {
			d, err := srv.GetWeek(gctx, pid, w.ID)
			if err != nil {
				return fmt.Errorf("load week %s: %w", w.WeekStart, err)
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b.engine.Invalidate()
	key := b.Key()
	if prev.SprintID != 0 && prev != key {
		b.cache.Drop(prev)
	}
	b.cache.Write(key, task.Backlog(), backlog)
	for _, d := range details {
		b.life.ApplyWeek(d.Week, nil)
		b.cache.Write(key, d.Week.Container(), d.Week.Tasks)
	}

	b.loadOrigins(ctx)

	b.mu.Lock()
	b.syncedAt = time.Now()
	b.offline = false
	b.mu.Unlock()

	slog.Info("board refreshed", "project_id", pid, "sprint_id", sprint.ID, "weeks", len(weeks), "backlog", len(backlog))
	b.persist(ctx)
	return nil
}

// LoadOffline fills the board from the last stored snapshot. The board is
// read-only afterwards.
func (b *Board) LoadOffline(ctx context.Context) error {
	const op = "load offline board"
	store := b.ctx.Store
	if store == nil {
		return task.NewError(task.CodeInternal, op, "local store is unavailable", nil)
	}
	state, ok, err := store.LatestSprint(ctx, b.ctx.ProjectID)
	if err != nil {
		return err
	}
	if !ok {
		return task.NewError(task.CodeNotFound, op, fmt.Sprintf("no synced board for project %d (run 'planwing board' online first)", b.ctx.ProjectID), nil)
	}

	b.engine.Invalidate()
	b.life.SetSprint(state.Sprint)
	b.life.ApplyWeeks(state.Weeks, state.Metadata)
	synced, err := store.RestoreBoard(ctx, b.cache, b.Key())
	if err != nil {
		return err
	}
	if synced.IsZero() {
		synced = state.SyncedAt
	}
	b.loadOrigins(ctx)

	b.mu.Lock()
	b.syncedAt = synced
	b.offline = true
	b.mu.Unlock()
	return nil
}

func (b *Board) applyWeeks(page api.WeekPage) {
	meta := page.Metadata
	if meta.SprintID == 0 {
		// Response without metadata: keep what we know.
		meta = b.life.Metadata()
	}
	b.life.ApplyWeeks(page.Weeks, meta)
}

func (b *Board) loadOrigins(ctx context.Context) {
	if b.ctx.Store == nil {
		return
	}
	origins, err := b.ctx.Store.CarryOverOrigins(ctx, nil)
	if err != nil {
		slog.Warn("failed to load carry-over origins", "error", err)
		return
	}
	b.carry.LoadOrigins(origins)
}

// persist stores the board for offline use. Failures are logged only.
func (b *Board) persist(ctx context.Context) {
	store := b.ctx.Store
	if store == nil {
		return
	}
	key := b.Key()
	if err := store.SaveBoard(ctx, b.cache, key); err != nil {
		slog.Warn("failed to save board snapshot", "error", err)
		return
	}
	state := memory.SprintState{
		Sprint:   b.life.Sprint(),
		Weeks:    b.life.Weeks(),
		Metadata: b.life.Metadata(),
		SyncedAt: b.SyncedAt(),
	}
	if err := store.SaveSprint(ctx, key.ProjectID, state); err != nil {
		slog.Warn("failed to save sprint snapshot", "error", err)
	}
}

func (b *Board) writable(op string) error {
	if b.ctx.Server == nil {
		return task.NewError(task.CodeValidation, op, config.ErrMissingBaseURL.Error(), config.ErrMissingBaseURL)
	}
	if b.Offline() {
		return task.NewError(task.CodeNetwork, op, "board was loaded from the local snapshot and is read-only", nil)
	}
	return nil
}

func (b *Board) track(event string, props map[string]any) {
	b.ctx.Telemetry.Track(event, props)
}

// ContainerFor resolves a CLI or MCP container argument: "backlog", a week
// start date (YYYY-MM-DD), "week:<id>" or a bare week id.
func (b *Board) ContainerFor(arg string) (task.ContainerID, error) {
	if dateArg.MatchString(arg) {
		w, ok := b.life.WeekByStart(arg)
		if !ok {
			return task.ContainerID{}, task.NewError(task.CodeNotFound, "resolve container", fmt.Sprintf("no week starts on %s", arg), nil)
		}
		return w.Container(), nil
	}
	return task.ParseContainer(arg)
}

// WeekFor resolves a week by id or start date.
func (b *Board) WeekFor(arg string) (task.Week, error) {
	const op = "resolve week"
	if dateArg.MatchString(arg) {
		w, ok := b.life.WeekByStart(arg)
		if !ok {
			return task.Week{}, task.NewError(task.CodeNotFound, op, fmt.Sprintf("no week starts on %s", arg), nil)
		}
		return w, nil
	}
	id, err := util.ParseID("week", arg)
	if err != nil {
		return task.Week{}, err
	}
	w, ok := b.life.Week(id)
	if !ok {
		return task.Week{}, task.NewError(task.CodeNotFound, op, fmt.Sprintf("week %d is not part of the current sprint", id), nil)
	}
	return w, nil
}

// Locate finds a task and its container on the board.
func (b *Board) Locate(taskID int64) (task.ContainerID, task.Task, error) {
	container, t, ok := b.cache.Locate(b.Key(), taskID)
	if !ok {
		return task.ContainerID{}, task.Task{}, task.NewError(task.CodeNotFound, "locate task", fmt.Sprintf("task %d is not on the board", taskID), nil)
	}
	return container, t, nil
}

// weekStartDay returns the server's week start (0 = Sunday) or the
// configured fallback (1 = Monday ... 7 = Sunday).
func (b *Board) weekStartDay() int {
	if meta := b.life.Metadata(); meta.SprintID != 0 {
		return meta.WeekStartDay
	}
	day := b.ctx.WeekStartDay
	if day == 0 {
		day = config.DefaultWeekStartDay
	}
	return day % 7
}

// GenerateNextWeek creates the week after the latest one of the sprint.
func (b *Board) GenerateNextWeek(ctx context.Context) (task.Week, error) {
	const op = "generate week"
	if err := b.writable(op); err != nil {
		return task.Week{}, err
	}
	if err := b.life.CheckSprint(); err != nil {
		return task.Week{}, err
	}
	req, err := b.gen.Next(b.life.Weeks(), b.weekStartDay())
	if err != nil {
		if errors.Is(err, weekgen.ErrRetryBound) {
			return task.Week{}, task.NewError(task.CodeInternal, op, "could not find a free week start", err)
		}
		return task.Week{}, err
	}
	return b.generateWeek(ctx, req.From)
}

func (b *Board) generateWeek(ctx context.Context, start string) (task.Week, error) {
	const op = "generate week"
	page, err := b.ctx.Server.GenerateWeeks(ctx, b.ctx.ProjectID, start, start)
	if err != nil {
		b.life.ApplyRejection(err)
		return task.Week{}, fmt.Errorf("generate week %s: %w", start, err)
	}
	b.applyWeeks(page)

	key := b.Key()
	for _, w := range page.Weeks {
		if w.SprintID != 0 && w.SprintID != key.SprintID {
			continue
		}
		if !b.cache.Has(key, w.Container()) {
			b.cache.Write(key, w.Container(), nil)
		}
	}
	w, ok := b.life.WeekByStart(start)
	if !ok {
		return task.Week{}, task.NewError(task.CodeInternal, op, fmt.Sprintf("server did not return week %s", start), nil)
	}

	slog.Info("week generated", "week_id", w.ID, "week_start", w.WeekStart)
	b.track(telemetry.EventWeekGenerated, telemetry.Properties{"weeks": len(b.life.Weeks())})
	b.persist(ctx)
	return w, nil
}

// CloseSprint closes the current sprint when every task is CLOSED.
func (b *Board) CloseSprint(ctx context.Context) (task.Sprint, error) {
	if err := b.writable("close sprint"); err != nil {
		return task.Sprint{}, err
	}
	tasks := b.cache.Sprint(b.Key())
	sprint, err := b.life.CloseSprint(ctx, tasks)
	if err != nil {
		return task.Sprint{}, err
	}
	b.track(telemetry.EventSprintClosed, telemetry.Properties{"tasks": len(tasks), "weeks": len(b.life.Weeks())})
	b.persist(ctx)
	return sprint, nil
}

// CanCloseSprint reports whether every task of the sprint is CLOSED.
func (b *Board) CanCloseSprint() bool {
	return lifecycle.CanCloseSprint(b.cache.Sprint(b.Key()))
}
