package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/josephgoksu/PlanWing/internal/carryover"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
)

// WeekClosed is the result of closing a week.
type WeekClosed struct {
	Week      task.Week   `json:"week"`
	Tasks     []task.Task `json:"tasks"`
	OpenTasks int         `json:"openTasks"`
	NextWeek  *task.Week  `json:"nextWeek,omitempty"`
}

// CloseWeek closes an open week of the current sprint and makes sure the
// following week exists, generating it if needed. Failing to generate it
// does not undo the close; NextWeek is then nil.
func (b *Board) CloseWeek(ctx context.Context, weekID int64) (WeekClosed, error) {
	if err := b.writable("close week"); err != nil {
		return WeekClosed{}, err
	}
	key := b.Key()
	detail, err := b.life.CloseWeek(ctx, weekID, b.cache.Read(key, task.WeekContainer(weekID)))
	if err != nil {
		return WeekClosed{}, err
	}

	container := detail.Week.Container()
	tasks := detail.Week.Tasks
	if tasks == nil {
		tasks = b.cache.Read(key, container)
	} else {
		b.cache.Write(key, container, tasks)
	}

	open := 0
	for _, t := range tasks {
		if !t.IsDone() {
			open++
		}
	}
	w, _ := b.life.Week(weekID)
	b.track(telemetry.EventWeekClosed, telemetry.Properties{"tasks": len(tasks), "open_tasks": open})
	b.persist(ctx)

	res := WeekClosed{Week: w, Tasks: tasks, OpenTasks: open}
	if next, err := b.ensureWeek(ctx, followingStart(w)); err != nil {
		slog.Warn("following week not generated", "week_start", w.WeekStart, "error", err)
	} else {
		res.NextWeek = &next
	}
	return res, nil
}

// followingStart is the start date seven days after w, or "" when w has no
// parseable start.
func followingStart(w task.Week) string {
	start, err := w.Start()
	if err != nil {
		return ""
	}
	return start.AddDate(0, 0, 7).Format(task.DateLayout)
}

// ensureWeek returns the sprint week starting at start, generating it when
// the sprint does not have it yet.
func (b *Board) ensureWeek(ctx context.Context, start string) (task.Week, error) {
	if start == "" {
		return task.Week{}, task.NewError(task.CodeInternal, "generate week", "no week start", nil)
	}
	if w, ok := b.life.WeekByStart(start); ok {
		return w, nil
	}
	if err := b.life.CheckSprint(); err != nil {
		return task.Week{}, err
	}
	slog.Debug("generating week", "week_start", start)
	return b.generateWeek(ctx, start)
}

// BeginCarryOver starts a carry-over from a closed week into the week
// starting seven days later. Every task that is not CLOSED is a
// pre-selected candidate.
func (b *Board) BeginCarryOver(weekID int64) (*carryover.Session, error) {
	const op = "carry over"
	w, ok := b.life.Week(weekID)
	if !ok {
		return nil, task.NewError(task.CodeNotFound, op, fmt.Sprintf("week %d is not part of the current sprint", weekID), nil)
	}
	if !w.IsClosed {
		return nil, task.NewError(task.CodeValidation, op, fmt.Sprintf("week %s is still open; close it first", w.WeekStart), nil)
	}
	target := followingStart(w)
	if target == "" {
		return nil, task.NewError(task.CodeInternal, op, fmt.Sprintf("week %d has an invalid start %q", w.ID, w.WeekStart), nil)
	}
	return b.carry.Begin(w, b.cache.Read(b.Key(), w.Container()), target), nil
}

// ConfirmCarryOver submits the session's selection. The target week is
// generated first when the sprint does not have it yet.
func (b *Board) ConfirmCarryOver(ctx context.Context, s *carryover.Session) ([]task.Task, error) {
	if err := b.writable("carry over"); err != nil {
		return nil, err
	}
	if len(s.Selection()) == 0 {
		return nil, nil
	}
	if _, err := b.ensureWeek(ctx, s.Target()); err != nil {
		return nil, err
	}
	created, err := b.carry.Confirm(ctx, s)
	if err != nil {
		return nil, err
	}
	b.persist(ctx)
	return created, nil
}

// CarryOverError is the failed carry-over awaiting dismissal, or nil.
func (b *Board) CarryOverError() error { return b.carry.LastError() }

// CarryOverResult is the outcome of a non-interactive carry-over.
type CarryOverResult struct {
	Source     task.Week   `json:"sourceWeek"`
	Target     string      `json:"targetWeekStart"`
	Created    []task.Task `json:"created"`
	UnknownIDs []int64     `json:"unknownIds,omitempty"`
}

// CarryOver carries the tasks of a closed week listed in ids, or every
// candidate when ids is empty. Ids that are not candidates are reported
// and skipped.
func (b *Board) CarryOver(ctx context.Context, weekID int64, ids []int64) (CarryOverResult, error) {
	s, err := b.BeginCarryOver(weekID)
	if err != nil {
		return CarryOverResult{}, err
	}
	res := CarryOverResult{Source: s.Source(), Target: s.Target()}
	if len(ids) > 0 {
		res.UnknownIDs = s.SelectOnly(ids)
	}
	created, err := b.ConfirmCarryOver(ctx, s)
	if err != nil {
		return res, err
	}
	res.Created = created
	return res, nil
}
