// Package mutation applies task create, update and move optimistically to
// the cache, then reconciles with the server or rolls back.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/util"
)

// ErrStale is returned when the selection changed while a request was in
// flight. The result was discarded and the cache left alone.
var ErrStale = errors.New("mutation result discarded: selection changed")

// ErrNothingToRetry is returned by Retry when the error slot is empty.
var ErrNothingToRetry = errors.New("no failed mutation to retry")

// Server is the subset of the planner API the engine calls.
type Server interface {
	CreateTask(ctx context.Context, projectID int64, container task.ContainerID, draft task.Draft) (task.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID int64, changes task.Changes) (task.Task, error)
	MoveTask(ctx context.Context, projectID, taskID int64, to task.ContainerID) (task.Task, error)
}

// Gate is the lifecycle check consulted before any optimistic apply.
type Gate interface {
	CheckContainer(container task.ContainerID) error
	ApplyRejection(err error) bool
}

// Tracker receives usage events.
type Tracker interface {
	Track(event string, properties map[string]any)
}

// Telemetry events.
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskMoved   = "task_moved"
	EventRolledBack  = "mutation_rolled_back"
)

// Op names a mutation kind.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpMove   Op = "move"
)

// Failure is the content of the last-error slot. It keeps the request so
// Retry can re-issue it.
type Failure struct {
	Op        Op
	Key       cache.Key
	Container task.ContainerID // create target, update container, move source
	To        task.ContainerID // move destination
	TaskID    int64
	Draft     task.Draft
	Changes   task.Changes
	Err       error
	At        time.Time
}

// Code returns the error code of the failure.
func (f Failure) Code() task.Code {
	return task.CodeOf(f.Err)
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed: %v", f.Op, f.Err)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracker sets the telemetry tracker.
func WithTracker(t Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithClock overrides time.Now for provisional timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs optimistic mutations against one cache.
type Engine struct {
	cache   *cache.Cache
	server  Server
	gate    Gate
	tracker Tracker
	now     func() time.Time
	ids     util.Placeholders

	// applyMu serialises result application against Invalidate.
	applyMu sync.Mutex
	epoch   atomic.Uint64

	slotMu sync.RWMutex
	last   *Failure
}

// New creates an engine.
func New(c *cache.Cache, server Server, gate Gate, opts ...Option) *Engine {
	e := &Engine{
		cache:  c,
		server: server,
		gate:   gate,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invalidate marks every in-flight mutation as stale. Call it when the
// project or sprint selection changes or the board is reloaded.
func (e *Engine) Invalidate() {
	e.applyMu.Lock()
	e.epoch.Add(1)
	e.applyMu.Unlock()
	slog.Debug("mutation epoch bumped", "epoch", e.epoch.Load())
}

// LastError returns the last failed mutation, or nil.
func (e *Engine) LastError() *Failure {
	e.slotMu.RLock()
	defer e.slotMu.RUnlock()
	if e.last == nil {
		return nil
	}
	f := *e.last
	return &f
}

// Dismiss clears the error slot.
func (e *Engine) Dismiss() {
	e.slotMu.Lock()
	e.last = nil
	e.slotMu.Unlock()
}

func (e *Engine) fail(f Failure) error {
	if errors.Is(f.Err, ErrStale) {
		return f.Err
	}
	f.At = e.now()
	e.slotMu.Lock()
	e.last = &f
	e.slotMu.Unlock()
	return f.Err
}

// Retry re-issues the failed mutation on user request.
func (e *Engine) Retry(ctx context.Context) (task.Task, error) {
	f := e.LastError()
	if f == nil {
		return task.Task{}, ErrNothingToRetry
	}
	e.Dismiss()
	slog.Info("retrying mutation", "op", f.Op, "task_id", f.TaskID, "code", f.Code())
	switch f.Op {
	case OpCreate:
		return e.Create(ctx, f.Key, f.Container, f.Draft)
	case OpUpdate:
		return e.Update(ctx, f.Key, f.Container, f.TaskID, f.Changes)
	case OpMove:
		return e.Move(ctx, f.Key, f.TaskID, f.Container, f.To)
	}
	return task.Task{}, fmt.Errorf("unknown mutation op %q", f.Op)
}

func (e *Engine) track(event string, props map[string]any) {
	if e.tracker != nil {
		e.tracker.Track(event, props)
	}
}
