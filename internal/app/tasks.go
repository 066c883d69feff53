package app

import (
	"context"
	"fmt"

	"github.com/josephgoksu/PlanWing/internal/logger"
	"github.com/josephgoksu/PlanWing/internal/mutation"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// CreateTask creates a task at the front of container.
func (b *Board) CreateTask(ctx context.Context, container task.ContainerID, draft task.Draft) (task.Task, error) {
	if err := b.writable("create task"); err != nil {
		return task.Task{}, err
	}
	logger.SetLastMutation(fmt.Sprintf("create task in %s", container))
	return b.engine.Create(ctx, b.Key(), container, draft)
}

// StartCreateTask applies the optimistic task and returns before the server
// answered.
func (b *Board) StartCreateTask(ctx context.Context, container task.ContainerID, draft task.Draft) (*mutation.Pending, error) {
	if err := b.writable("create task"); err != nil {
		return nil, err
	}
	logger.SetLastMutation(fmt.Sprintf("create task in %s", container))
	return b.engine.StartCreate(ctx, b.Key(), container, draft)
}

// UpdateTask applies a partial update to a task wherever it lives.
func (b *Board) UpdateTask(ctx context.Context, taskID int64, changes task.Changes) (task.Task, error) {
	if err := b.writable("update task"); err != nil {
		return task.Task{}, err
	}
	container, _, err := b.Locate(taskID)
	if err != nil {
		return task.Task{}, err
	}
	logger.SetLastMutation(fmt.Sprintf("update task %d in %s", taskID, container))
	return b.engine.Update(ctx, b.Key(), container, taskID, changes)
}

// StartUpdateTask is the non-blocking form of UpdateTask.
func (b *Board) StartUpdateTask(ctx context.Context, taskID int64, changes task.Changes) (*mutation.Pending, error) {
	if err := b.writable("update task"); err != nil {
		return nil, err
	}
	container, _, err := b.Locate(taskID)
	if err != nil {
		return nil, err
	}
	logger.SetLastMutation(fmt.Sprintf("update task %d in %s", taskID, container))
	return b.engine.StartUpdate(ctx, b.Key(), container, taskID, changes)
}

// CompleteTask marks a task CLOSED.
func (b *Board) CompleteTask(ctx context.Context, taskID int64) (task.Task, error) {
	return b.UpdateTask(ctx, taskID, task.Changes{Status: task.Ptr(task.StatusClosed)})
}

// ReopenTask marks a task OPENED again.
func (b *Board) ReopenTask(ctx context.Context, taskID int64) (task.Task, error) {
	return b.UpdateTask(ctx, taskID, task.Changes{Status: task.Ptr(task.StatusOpened)})
}

// MoveTask moves a task from wherever it lives into to.
func (b *Board) MoveTask(ctx context.Context, taskID int64, to task.ContainerID) (task.Task, error) {
	if err := b.writable("move task"); err != nil {
		return task.Task{}, err
	}
	from, _, err := b.Locate(taskID)
	if err != nil {
		return task.Task{}, err
	}
	logger.SetLastMutation(fmt.Sprintf("move task %d from %s to %s", taskID, from, to))
	return b.engine.Move(ctx, b.Key(), taskID, from, to)
}

// StartMoveTask is the non-blocking form of MoveTask.
func (b *Board) StartMoveTask(ctx context.Context, taskID int64, to task.ContainerID) (*mutation.Pending, error) {
	if err := b.writable("move task"); err != nil {
		return nil, err
	}
	from, _, err := b.Locate(taskID)
	if err != nil {
		return nil, err
	}
	logger.SetLastMutation(fmt.Sprintf("move task %d from %s to %s", taskID, from, to))
	return b.engine.StartMove(ctx, b.Key(), taskID, from, to)
}

// LastError is the failed mutation awaiting retry or dismissal, or nil.
func (b *Board) LastError() *mutation.Failure { return b.engine.LastError() }

// Retry re-issues the failed mutation.
func (b *Board) Retry(ctx context.Context) (task.Task, error) {
	if err := b.writable("retry"); err != nil {
		return task.Task{}, err
	}
	return b.engine.Retry(ctx)
}

// Dismiss clears the mutation and carry-over error slots.
func (b *Board) Dismiss() {
	b.engine.Dismiss()
	b.carry.Dismiss()
}

// DropOn ends the in-flight drag on target.
func (b *Board) DropOn(ctx context.Context, target task.ContainerID) (task.Task, bool, error) {
	if err := b.writable("move task"); err != nil {
		b.drag.Cancel()
		return task.Task{}, false, err
	}
	return b.drag.Drop(ctx, target)
}

// StartDrop ends the in-flight drag on target with the non-blocking move,
// so the caller can render the optimistic state first. It reports false
// when the drop was a no-op.
func (b *Board) StartDrop(ctx context.Context, target task.ContainerID) (*mutation.Pending, bool, error) {
	cmd := b.drag.Resolve(target)
	b.drag.Cancel()
	if cmd == nil {
		return nil, false, nil
	}
	if err := b.writable("move task"); err != nil {
		return nil, false, err
	}
	logger.SetLastMutation(fmt.Sprintf("move task %d from %s to %s", cmd.TaskID, cmd.From, cmd.To))
	p, err := b.engine.StartMove(ctx, b.Key(), cmd.TaskID, cmd.From, cmd.To)
	return p, true, err
}

// boardMover adapts the mutation engine to the drag coordinator.
type boardMover struct {
	b *Board
}

func (m boardMover) Move(ctx context.Context, taskID int64, from, to task.ContainerID) (task.Task, error) {
	logger.SetLastMutation(fmt.Sprintf("move task %d from %s to %s", taskID, from, to))
	return m.b.engine.Move(ctx, m.b.Key(), taskID, from, to)
}
