package mutation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// Create inserts a task and blocks until the server confirmed or rejected it.
func (e *Engine) Create(ctx context.Context, key cache.Key, container task.ContainerID, draft task.Draft) (task.Task, error) {
	p, err := e.StartCreate(ctx, key, container, draft)
	if err != nil {
		return task.Task{}, err
	}
	return p.Wait(ctx)
}

// StartCreate validates the draft, shows a provisional task at the front of
// the container and sends the create request in the background.
func (e *Engine) StartCreate(ctx context.Context, key cache.Key, container task.ContainerID, draft task.Draft) (*Pending, error) {
	f := Failure{Op: OpCreate, Key: key, Container: container, Draft: draft}

	if err := e.gate.CheckContainer(container); err != nil {
		return nil, e.fail(withErr(f, err))
	}
	if err := task.ValidateStruct("create task", draft); err != nil {
		return nil, e.fail(withErr(f, err))
	}

	placeholder := e.ids.Next()
	provisional := draft.Provisional(placeholder, container, e.now())
	snap, err := e.cache.InsertAtFront(key, container, provisional)
	if err != nil {
		return nil, e.fail(withErr(f, err))
	}
	f.TaskID = placeholder

	epoch := e.epoch.Load()
	p := newPending(provisional)
	slog.Debug("optimistic create", "placeholder", placeholder, "container", container.String())

	go func() {
		created, err := e.server.CreateTask(ctx, key.ProjectID, container, draft)
		p.finish(e.complete(epoch, f, placeholder, created, err, snap))
	}()
	return p, nil
}

// Update merges changes into a task and blocks until the server answered.
func (e *Engine) Update(ctx context.Context, key cache.Key, container task.ContainerID, taskID int64, changes task.Changes) (task.Task, error) {
	p, err := e.StartUpdate(ctx, key, container, taskID, changes)
	if err != nil {
		return task.Task{}, err
	}
	return p.Wait(ctx)
}

// StartUpdate applies the changes in place and sends the update in the background.
func (e *Engine) StartUpdate(ctx context.Context, key cache.Key, container task.ContainerID, taskID int64, changes task.Changes) (*Pending, error) {
	f := Failure{Op: OpUpdate, Key: key, Container: container, TaskID: taskID, Changes: changes}

	if err := e.gate.CheckContainer(container); err != nil {
		return nil, e.fail(withErr(f, err))
	}
	current, err := e.lookup("update task", key, container, taskID)
	if err != nil {
		return nil, e.fail(withErr(f, err))
	}
	if err := task.ValidateStruct("update task", changes); err != nil {
		return nil, e.fail(withErr(f, err))
	}
	if changes.IsEmpty() {
		return resolved(current, nil), nil
	}

	merged := changes.Apply(current, e.now())
	snap, err := e.cache.ReplaceByID(key, container, taskID, merged)
	if err != nil {
		return nil, e.fail(withErr(f, err))
	}

	epoch := e.epoch.Load()
	p := newPending(merged)
	slog.Debug("optimistic update", "task_id", taskID, "container", container.String())

	go func() {
		updated, err := e.server.UpdateTask(ctx, key.ProjectID, taskID, changes)
		p.finish(e.complete(epoch, f, taskID, updated, err, snap))
	}()
	return p, nil
}

// Move reassigns a task to another container and blocks until the server answered.
func (e *Engine) Move(ctx context.Context, key cache.Key, taskID int64, from, to task.ContainerID) (task.Task, error) {
	p, err := e.StartMove(ctx, key, taskID, from, to)
	if err != nil {
		return task.Task{}, err
	}
	return p.Wait(ctx)
}

// StartMove moves the task in the cache and sends the reassignment in the
// background. Moving to the same container is a no-op without a network call.
func (e *Engine) StartMove(ctx context.Context, key cache.Key, taskID int64, from, to task.ContainerID) (*Pending, error) {
	f := Failure{Op: OpMove, Key: key, Container: from, To: to, TaskID: taskID}

	if err := e.gate.CheckContainer(to); err != nil {
		return nil, e.fail(withErr(f, err))
	}
	if err := e.gate.CheckContainer(from); err != nil {
		return nil, e.fail(withErr(f, err))
	}
	current, err := e.lookup("move task", key, from, taskID)
	if err != nil {
		return nil, e.fail(withErr(f, err))
	}
	if from == to {
		return resolved(current, nil), nil
	}

	moved := current.Clone()
	moved.Place(to)
	moved.UpdatedAt = e.now()
	src, dst, err := e.cache.Move(key, taskID, from, to, moved)
	if err != nil {
		return nil, e.fail(withErr(f, err))
	}

	epoch := e.epoch.Load()
	p := newPending(moved)
	slog.Debug("optimistic move", "task_id", taskID, "from", from.String(), "to", to.String())

	go func() {
		result, err := e.server.MoveTask(ctx, key.ProjectID, taskID, to)
		p.finish(e.complete(epoch, f, taskID, result, err, src, dst))
	}()
	return p, nil
}

// lookup returns the cached task, which must sit in container and be
// confirmed by the server.
func (e *Engine) lookup(op string, key cache.Key, container task.ContainerID, taskID int64) (task.Task, error) {
	at, t, ok := e.cache.Locate(key, taskID)
	if !ok || at != container {
		return task.Task{}, task.NewError(task.CodeNotFound, op, fmt.Sprintf("task %d not in %s", taskID, container), nil)
	}
	if t.IsPlaceholder() {
		return task.Task{}, task.NewError(task.CodeConflict, op, "task is still being created", nil)
	}
	return t, nil
}

// complete reconciles a finished server call. A stale epoch leaves the cache
// untouched; a failure restores every snapshot; a success commits the
// authoritative task by replace-by-id.
func (e *Engine) complete(epoch uint64, f Failure, cachedID int64, result task.Task, err error, snaps ...cache.Snapshot) (task.Task, error) {
	e.applyMu.Lock()
	if e.epoch.Load() != epoch {
		e.applyMu.Unlock()
		slog.Debug("discarding stale mutation result", "op", f.Op, "task_id", cachedID, "error", err)
		return task.Task{}, ErrStale
	}
	if err != nil {
		e.cache.Restore(snaps...)
		e.applyMu.Unlock()

		e.gate.ApplyRejection(err)
		slog.Warn("mutation rolled back", "op", f.Op, "task_id", cachedID, "code", task.CodeOf(err), "error", err)
		e.track(EventRolledBack, map[string]any{"op": string(f.Op), "code": string(task.CodeOf(err))})
		return task.Task{}, e.fail(withErr(f, err))
	}
	e.cache.Commit(f.Key, cachedID, result)
	e.applyMu.Unlock()

	props := map[string]any{"container": containerKind(result.Container())}
	switch f.Op {
	case OpCreate:
		slog.Info("task created", "task_id", result.ID, "container", result.Container().String())
		e.track(EventTaskCreated, props)
	case OpUpdate:
		slog.Info("task updated", "task_id", result.ID)
		e.track(EventTaskUpdated, props)
	case OpMove:
		slog.Info("task moved", "task_id", result.ID, "to", result.Container().String())
		props["from"] = containerKind(f.Container)
		e.track(EventTaskMoved, props)
	}
	return result, nil
}

func withErr(f Failure, err error) Failure {
	f.Err = err
	return f
}

func containerKind(c task.ContainerID) string {
	if c.IsBacklog() {
		return "backlog"
	}
	return "week"
}
