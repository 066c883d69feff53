// Package lifecycle tracks the sprint and week open/closed state and gates
// every mutation entry point on it.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/josephgoksu/PlanWing/internal/api"
	"github.com/josephgoksu/PlanWing/internal/policy"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// Server is the subset of the planner API the controller calls.
type Server interface {
	CloseWeek(ctx context.Context, projectID, weekID int64) (api.WeekDetail, error)
	CloseSprint(ctx context.Context, sprintID int64) (task.Sprint, error)
}

// Authorizer is the role gate consulted before closing weeks and sprints.
type Authorizer interface {
	Authorize(ctx context.Context, req policy.Request) error
}

// Controller holds the current sprint, its known weeks and the planning
// metadata. It is safe for concurrent use.
type Controller struct {
	mu        sync.RWMutex
	projectID int64
	sprint    task.Sprint
	weeks     map[int64]task.Week
	meta      task.Metadata

	server Server
	auth   Authorizer
}

// New creates a controller for a project. auth may be nil.
func New(projectID int64, server Server, auth Authorizer) *Controller {
	return &Controller{
		projectID: projectID,
		weeks:     make(map[int64]task.Week),
		server:    server,
		auth:      auth,
	}
}

// ProjectID returns the project the controller is bound to.
func (c *Controller) ProjectID() int64 {
	return c.projectID
}

// SetSprint replaces the current sprint with the server's view and forgets
// weeks of any other sprint.
func (c *Controller) SetSprint(s task.Sprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.ID != c.sprint.ID {
		c.weeks = make(map[int64]task.Week)
		c.meta = task.Metadata{}
	}
	c.sprint = s
}

// Sprint returns the current sprint.
func (c *Controller) Sprint() task.Sprint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sprint
}

// SprintOpen reports whether the current sprint accepts mutations.
func (c *Controller) SprintOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sprint.ID != 0 && c.sprint.IsOpen()
}

// Metadata returns the last planning metadata received.
func (c *Controller) Metadata() task.Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.meta
	m.Roles = append([]string(nil), c.meta.Roles...)
	return m
}

// Weeks returns the known weeks ordered by start date.
func (c *Controller) Weeks() []task.Week {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]task.Week, 0, len(c.weeks))
	for _, w := range c.weeks {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekStart != out[j].WeekStart {
			return out[i].WeekStart < out[j].WeekStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Week returns a known week.
func (c *Controller) Week(id int64) (task.Week, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.weeks[id]
	return w, ok
}

// WeekByStart finds a known week by its start date.
func (c *Controller) WeekByStart(start string) (task.Week, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, w := range c.weeks {
		if w.WeekStart == start {
			return w, true
		}
	}
	return task.Week{}, false
}

// ApplyWeeks merges a week listing and its metadata. Weeks of other sprints
// are ignored.
func (c *Controller) ApplyWeeks(weeks []task.Week, meta task.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range weeks {
		c.putWeekLocked(w)
	}
	c.applyMetaLocked(meta)
}

// ApplyWeek records a single week (and its metadata when non-zero).
func (c *Controller) ApplyWeek(w task.Week, meta *task.Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putWeekLocked(w)
	if meta != nil {
		c.applyMetaLocked(*meta)
	}
}

func (c *Controller) putWeekLocked(w task.Week) {
	if w.SprintID != 0 && c.sprint.ID != 0 && w.SprintID != c.sprint.ID {
		return
	}
	// A closed week never reopens.
	if prev, ok := c.weeks[w.ID]; ok && prev.IsClosed && !w.IsClosed {
		w.IsClosed = true
		w.ClosedAt = prev.ClosedAt
	}
	w.Tasks = nil
	c.weeks[w.ID] = w
}

func (c *Controller) applyMetaLocked(meta task.Metadata) {
	if meta.SprintID != 0 && c.sprint.ID != 0 && meta.SprintID != c.sprint.ID {
		return
	}
	c.meta = meta
	if meta.SprintStatus == task.SprintClosed {
		c.sprint.Status = task.SprintClosed
	}
}

// ApplyRejection marks the sprint closed when the server rejected a
// mutation with SPRINT_CLOSED. It reports whether it did.
func (c *Controller) ApplyRejection(err error) bool {
	if !task.IsCode(err, task.CodeSprintClosed) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sprint.Status != task.SprintClosed {
		slog.Info("server reports sprint closed", "sprint_id", c.sprint.ID)
	}
	c.sprint.Status = task.SprintClosed
	return true
}

// CheckSprint fails with SPRINT_CLOSED unless the sprint is open.
func (c *Controller) CheckSprint() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkSprintLocked("check sprint")
}

func (c *Controller) checkSprintLocked(op string) error {
	if c.sprint.ID == 0 {
		return task.NewError(task.CodeSprintClosed, op, "no current sprint", nil)
	}
	if !c.sprint.IsOpen() {
		return task.NewError(task.CodeSprintClosed, op, fmt.Sprintf("sprint %d is closed", c.sprint.ID), nil)
	}
	return nil
}

// CheckContainer is the fail-closed gate for every mutation touching a
// container: the sprint must be open and a week target must be known and open.
func (c *Controller) CheckContainer(container task.ContainerID) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	const op = "check container"
	if err := c.checkSprintLocked(op); err != nil {
		return err
	}
	id, ok := container.WeekID()
	if !ok {
		return nil
	}
	w, known := c.weeks[id]
	if !known {
		return task.NewError(task.CodeNotFound, op, fmt.Sprintf("week %d is not part of sprint %d", id, c.sprint.ID), nil)
	}
	if w.IsClosed {
		return task.NewError(task.CodeSprintClosed, op, fmt.Sprintf("week %s is closed", w.WeekStart), nil)
	}
	return nil
}

// CloseWeek closes an open week after the role gate allowed it and returns
// the closed week with its tasks. tasks is the cached content of the week;
// the gate sees how many of them are unfinished.
func (c *Controller) CloseWeek(ctx context.Context, weekID int64, tasks []task.Task) (api.WeekDetail, error) {
	const op = "close week"

	c.mu.RLock()
	err := c.checkSprintLocked(op)
	w, known := c.weeks[weekID]
	sprintID := c.sprint.ID
	roles := append([]string(nil), c.meta.Roles...)
	c.mu.RUnlock()

	if err != nil {
		return api.WeekDetail{}, err
	}
	if !known {
		return api.WeekDetail{}, task.NewError(task.CodeNotFound, op, fmt.Sprintf("week %d is not part of sprint %d", weekID, sprintID), nil)
	}
	if w.IsClosed {
		return api.WeekDetail{}, task.NewError(task.CodeValidation, op, fmt.Sprintf("week %s is already closed", w.WeekStart), nil)
	}

	if c.auth != nil {
		req := policy.Request{
			Action:    policy.ActionCloseWeek,
			Roles:     roles,
			ProjectID: c.projectID,
			SprintID:  sprintID,
			WeekID:    &weekID,
			WeekStart: w.WeekStart,
			WeekEnd:   w.WeekEnd,
			OpenTasks: openCount(tasks),
		}
		if err := c.auth.Authorize(ctx, req); err != nil {
			return api.WeekDetail{}, err
		}
	}

	detail, err := c.server.CloseWeek(ctx, c.projectID, weekID)
	if err != nil {
		c.ApplyRejection(err)
		return api.WeekDetail{}, fmt.Errorf("close week %s: %w", w.WeekStart, err)
	}
	detail.Week.IsClosed = true

	closedTasks := detail.Week.Tasks
	c.ApplyWeek(detail.Week, &detail.Metadata)
	detail.Week.Tasks = closedTasks

	slog.Info("week closed", "week_id", weekID, "week_start", w.WeekStart, "tasks", len(closedTasks))
	return detail, nil
}

// CanCloseSprint reports whether every task is CLOSED.
func CanCloseSprint(tasks []task.Task) bool {
	return openCount(tasks) == 0
}

func openCount(tasks []task.Task) int {
	n := 0
	for _, t := range tasks {
		if !t.IsDone() {
			n++
		}
	}
	return n
}

// CloseSprint closes the sprint when every one of its tasks is CLOSED. On
// success every mutation gate starts failing with SPRINT_CLOSED.
func (c *Controller) CloseSprint(ctx context.Context, tasks []task.Task) (task.Sprint, error) {
	const op = "close sprint"

	c.mu.RLock()
	err := c.checkSprintLocked(op)
	sprint := c.sprint
	roles := append([]string(nil), c.meta.Roles...)
	c.mu.RUnlock()

	if err != nil {
		return task.Sprint{}, err
	}
	if open := openCount(tasks); open > 0 {
		return task.Sprint{}, task.NewError(task.CodeValidation, op, fmt.Sprintf("%d task(s) are not closed", open), nil)
	}

	if c.auth != nil {
		req := policy.Request{
			Action:    policy.ActionCloseSprint,
			Roles:     roles,
			ProjectID: c.projectID,
			SprintID:  sprint.ID,
		}
		if err := c.auth.Authorize(ctx, req); err != nil {
			return task.Sprint{}, err
		}
	}

	closed, err := c.server.CloseSprint(ctx, sprint.ID)
	if err != nil {
		c.ApplyRejection(err)
		return task.Sprint{}, fmt.Errorf("close sprint %d: %w", sprint.ID, err)
	}
	if closed.ID == 0 {
		closed = sprint
	}
	closed.Status = task.SprintClosed

	c.mu.Lock()
	if c.sprint.ID == closed.ID {
		c.sprint = closed
	}
	c.mu.Unlock()

	slog.Info("sprint closed", "sprint_id", closed.ID, "tasks", len(tasks))
	return closed, nil
}
