// Package carryover re-homes unfinished tasks of a closed week into the
// next week as new tasks.
package carryover

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// EventConfirmed is the telemetry event sent after a successful carry-over.
const EventConfirmed = "carry_over_confirmed"

// Server submits the carry-over batch.
type Server interface {
	CarryOver(ctx context.Context, projectID, weekID int64, targetWeekStart string, taskIDs []int64) ([]task.Task, error)
}

// Gate reports whether the sprint still accepts changes.
type Gate interface {
	CheckSprint() error
	ApplyRejection(err error) bool
	WeekByStart(start string) (task.Week, bool)
}

// Recorder persists provenance of carried tasks.
type Recorder interface {
	RecordCarryOver(ctx context.Context, origins []Origin) error
}

// Tracker receives usage events.
type Tracker interface {
	Track(event string, properties map[string]any)
}

// Origin records where a carried task came from.
type Origin struct {
	TaskID          int64     `json:"taskId"`
	SourceWeekID    int64     `json:"sourceWeekId"`
	SourceWeekStart string    `json:"sourceWeekStart"`
	TargetWeekStart string    `json:"targetWeekStart"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Candidate is one task offered for carry-over.
type Candidate struct {
	Task     task.Task
	Selected bool
}

// Workflow runs carry-over sessions for one project.
type Workflow struct {
	projectID int64
	key       func() cache.Key
	cache     *cache.Cache
	server    Server
	gate      Gate
	recorder  Recorder
	tracker   Tracker

	mu      sync.RWMutex
	origins map[int64]Origin
	last    error
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithRecorder persists provenance in addition to the in-memory map.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) { w.recorder = r }
}

// WithTracker sets the telemetry tracker.
func WithTracker(t Tracker) Option {
	return func(w *Workflow) { w.tracker = t }
}

// New creates a workflow. key returns the cache key of the current selection.
func New(projectID int64, key func() cache.Key, c *cache.Cache, server Server, gate Gate, opts ...Option) *Workflow {
	w := &Workflow{
		projectID: projectID,
		key:       key,
		cache:     c,
		server:    server,
		gate:      gate,
		origins:   make(map[int64]Origin),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Session is the user's selection for one closed week.
type Session struct {
	source     task.Week
	target     string
	candidates []Candidate
	index      map[int64]int
}

// Begin offers every task of the source week that is not CLOSED, all
// pre-selected, for carrying into the week starting at targetWeekStart.
func (w *Workflow) Begin(source task.Week, tasks []task.Task, targetWeekStart string) *Session {
	s := &Session{source: source, target: targetWeekStart, index: make(map[int64]int)}
	for _, t := range tasks {
		if t.IsDone() || t.IsPlaceholder() {
			continue
		}
		if _, dup := s.index[t.ID]; dup {
			continue
		}
		s.index[t.ID] = len(s.candidates)
		s.candidates = append(s.candidates, Candidate{Task: t.Clone(), Selected: true})
	}
	slog.Debug("carry-over session started", "week_id", source.ID, "candidates", len(s.candidates), "target", targetWeekStart)
	return s
}

// Source returns the closed week.
func (s *Session) Source() task.Week { return s.source }

// Target returns the start date of the receiving week.
func (s *Session) Target() string { return s.target }

// Candidates returns the offered tasks in source order.
func (s *Session) Candidates() []Candidate {
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Toggle flips the selection of one task. Unknown ids return false.
func (s *Session) Toggle(taskID int64) bool {
	i, ok := s.index[taskID]
	if !ok {
		return false
	}
	s.candidates[i].Selected = !s.candidates[i].Selected
	return true
}

// Set selects or clears one task.
func (s *Session) Set(taskID int64, selected bool) bool {
	i, ok := s.index[taskID]
	if !ok {
		return false
	}
	s.candidates[i].Selected = selected
	return true
}

// SelectAll selects every candidate.
func (s *Session) SelectAll() {
	for i := range s.candidates {
		s.candidates[i].Selected = true
	}
}

// SelectNone clears the selection.
func (s *Session) SelectNone() {
	for i := range s.candidates {
		s.candidates[i].Selected = false
	}
}

// SelectOnly replaces the selection with ids. Ids that are not candidates
// are returned.
func (s *Session) SelectOnly(ids []int64) []int64 {
	s.SelectNone()
	var unknown []int64
	for _, id := range ids {
		if !s.Set(id, true) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Selection returns the selected task ids in source order.
func (s *Session) Selection() []int64 {
	var ids []int64
	for _, c := range s.candidates {
		if c.Selected {
			ids = append(ids, c.Task.ID)
		}
	}
	return ids
}

// Confirm submits the selection as one batch. The returned tasks are new;
// the source tasks are never touched. An empty selection does nothing.
func (w *Workflow) Confirm(ctx context.Context, s *Session) ([]task.Task, error) {
	ids := s.Selection()
	if len(ids) == 0 {
		slog.Debug("carry-over skipped: nothing selected", "week_id", s.source.ID)
		return nil, nil
	}
	if err := w.gate.CheckSprint(); err != nil {
		return nil, w.setLast(err)
	}

	created, err := w.server.CarryOver(ctx, w.projectID, s.source.ID, s.target, ids)
	if err != nil {
		w.gate.ApplyRejection(err)
		slog.Warn("carry-over failed", "week_id", s.source.ID, "target", s.target, "error", err)
		return nil, w.setLast(err)
	}

	now := time.Now().UTC()
	origins := make([]Origin, 0, len(created))
	for i := range created {
		if created[i].CarriedOverFromWeekID == nil {
			created[i].CarriedOverFromWeekID = task.Ptr(s.source.ID)
		}
		origins = append(origins, Origin{
			TaskID:          created[i].ID,
			SourceWeekID:    s.source.ID,
			SourceWeekStart: s.source.WeekStart,
			TargetWeekStart: s.target,
			CreatedAt:       now,
		})
	}

	w.insert(s.target, created)

	w.mu.Lock()
	for _, o := range origins {
		w.origins[o.TaskID] = o
	}
	w.last = nil
	w.mu.Unlock()

	if w.recorder != nil {
		if err := w.recorder.RecordCarryOver(ctx, origins); err != nil {
			// Provenance is display-only; the carry-over itself succeeded.
			slog.Warn("failed to persist carry-over provenance", "error", err)
		}
	}
	if w.tracker != nil {
		w.tracker.Track(EventConfirmed, map[string]any{"count": len(created)})
	}
	slog.Info("carried over tasks", "week_id", s.source.ID, "target", s.target, "count", len(created))
	return created, nil
}

// insert puts the new tasks at the front of the target week, if that week
// is known to the board.
func (w *Workflow) insert(target string, created []task.Task) {
	week, ok := w.gate.WeekByStart(target)
	if !ok {
		slog.Debug("carry-over target week not loaded; skipping cache insert", "target", target)
		return
	}
	container := week.Container()
	key := w.key()
	for i := len(created) - 1; i >= 0; i-- {
		t := created[i].Clone()
		t.Place(container)
		if _, err := w.cache.InsertAtFront(key, container, t); err != nil {
			slog.Debug("carry-over task already cached", "task_id", t.ID, "error", err)
		}
	}
}

// Origin returns the provenance of a carried task known to this process.
func (w *Workflow) Origin(taskID int64) (Origin, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	o, ok := w.origins[taskID]
	return o, ok
}

// LoadOrigins merges provenance read from the local store.
func (w *Workflow) LoadOrigins(origins []Origin) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range origins {
		w.origins[o.TaskID] = o
	}
}

// Origins returns every known provenance record ordered by task id.
func (w *Workflow) Origins() []Origin {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Origin, 0, len(w.origins))
	for _, o := range w.origins {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Label renders the "carried over from" note for a task, or "".
func (w *Workflow) Label(taskID int64) string {
	o, ok := w.Origin(taskID)
	if !ok {
		return ""
	}
	return fmt.Sprintf("carried over from week of %s", o.SourceWeekStart)
}

// LastError returns the last carry-over failure.
func (w *Workflow) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Dismiss clears the last failure.
func (w *Workflow) Dismiss() {
	w.mu.Lock()
	w.last = nil
	w.mu.Unlock()
}

func (w *Workflow) setLast(err error) error {
	w.mu.Lock()
	w.last = err
	w.mu.Unlock()
	return err
}
