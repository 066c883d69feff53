// Package dnd turns drag-and-drop gestures into task moves.
package dnd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/util"
)

// Payload is the task being dragged and the container it was picked from.
type Payload struct {
	TaskID int64
	From   task.ContainerID
}

func (p Payload) String() string {
	return fmt.Sprintf("task:%d@%s", p.TaskID, p.From)
}

// ParsePayload decodes "task:<id>@<container>", where container is
// "backlog", "week:<id>" or a bare week id.
func ParsePayload(s string) (Payload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "task:")
	if !ok {
		return Payload{}, task.NewError(task.CodeValidation, "parse payload", fmt.Sprintf("payload %q must start with \"task:\"", s), nil)
	}
	idPart, containerPart, ok := strings.Cut(rest, "@")
	if !ok {
		return Payload{}, task.NewError(task.CodeValidation, "parse payload", fmt.Sprintf("payload %q has no source container", s), nil)
	}
	id, err := util.ParseID("task", idPart)
	if err != nil {
		return Payload{}, task.NewError(task.CodeValidation, "parse payload", err.Error(), err)
	}
	from, err := task.ParseContainer(containerPart)
	if err != nil {
		return Payload{}, err
	}
	return Payload{TaskID: id, From: from}, nil
}

// MoveCommand is a resolved drop.
type MoveCommand struct {
	TaskID int64
	From   task.ContainerID
	To     task.ContainerID
}

// ResolveMove decides what a drop means. It returns nil when there is
// nothing to move, the target is missing, the sprint is closed, or the
// task would stay where it is.
func ResolveMove(payload *Payload, target *task.ContainerID, sprintOpen bool) *MoveCommand {
	if payload == nil || target == nil || !sprintOpen {
		return nil
	}
	if payload.From == *target {
		return nil
	}
	return &MoveCommand{TaskID: payload.TaskID, From: payload.From, To: *target}
}

// Mover performs the move. *mutation.Engine satisfies it through an adapter
// in the app layer.
type Mover interface {
	Move(ctx context.Context, taskID int64, from, to task.ContainerID) (task.Task, error)
}

// Coordinator holds the in-flight drag.
type Coordinator struct {
	mover      Mover
	sprintOpen func() bool

	mu      sync.Mutex
	payload *Payload
}

// NewCoordinator creates a coordinator. sprintOpen is read on every drop.
func NewCoordinator(mover Mover, sprintOpen func() bool) *Coordinator {
	return &Coordinator{mover: mover, sprintOpen: sprintOpen}
}

// Pick starts dragging a task, replacing any previous drag.
func (c *Coordinator) Pick(p Payload) {
	c.mu.Lock()
	c.payload = &p
	c.mu.Unlock()
	slog.Debug("drag started", "payload", p.String())
}

// Cancel drops the in-flight payload without moving anything.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.payload = nil
	c.mu.Unlock()
}

// InFlight returns the current payload.
func (c *Coordinator) InFlight() (Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return Payload{}, false
	}
	return *c.payload, true
}

// Resolve returns the move the drop onto target would perform without
// performing it. The drag stays in flight.
func (c *Coordinator) Resolve(target task.ContainerID) *MoveCommand {
	c.mu.Lock()
	p := c.payload
	c.mu.Unlock()
	return ResolveMove(p, &target, c.sprintOpen())
}

// Drop ends the drag on target. It reports false with a nil error when the
// drop was a no-op.
func (c *Coordinator) Drop(ctx context.Context, target task.ContainerID) (task.Task, bool, error) {
	c.mu.Lock()
	p := c.payload
	c.payload = nil
	c.mu.Unlock()

	cmd := ResolveMove(p, &target, c.sprintOpen())
	if cmd == nil {
		slog.Debug("drop ignored", "target", target.String())
		return task.Task{}, false, nil
	}
	moved, err := c.mover.Move(ctx, cmd.TaskID, cmd.From, cmd.To)
	if err != nil {
		return task.Task{}, true, err
	}
	return moved, true, nil
}
