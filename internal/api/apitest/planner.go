// Package apitest provides an in-memory planner server for tests of code
// built on package api.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/PlanWing/internal/api"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// Planner is an in-memory weekly planner server speaking the REST API of
// package api. Every call is serialized.
type Planner struct {
	mu        sync.Mutex
	projectID int64
	sprint    task.Sprint
	weeks     map[int64]*task.Week
	tasks     map[int64]*task.Task
	order     []int64 // task ids, newest first
	roles     []string
	nextWeek  int64
	nextTask  int64

	fail     map[string]int // route -> status of the next call
	mutating int            // mutating requests received
}

// NewPlanner returns an empty planner for project 1 with open sprint 10 and
// a MENTOR caller.
func NewPlanner() *Planner {
	return &Planner{
		projectID: 1,
		sprint:    task.Sprint{ID: 10, Name: "Sprint 10", Status: task.SprintOpen},
		weeks:     make(map[int64]*task.Week),
		tasks:     make(map[int64]*task.Task),
		roles:     []string{"MENTOR"},
		nextWeek:  100,
		nextTask:  1000,
		fail:      make(map[string]int),
	}
}

// AddWeek adds an open week of the current sprint.
func (p *Planner) AddWeek(start string) task.Week {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addWeekLocked(start)
}

func (p *Planner) addWeekLocked(start string) task.Week {
	p.nextWeek++
	w := &task.Week{ID: p.nextWeek, ProjectID: p.projectID, SprintID: p.sprint.ID, WeekStart: start}
	w.Normalize()
	p.weeks[w.ID] = w
	return *w
}

// AddTask adds a task at the front of container.
func (p *Planner) AddTask(container task.ContainerID, note string, status task.TaskStatus) task.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addTaskLocked(container, task.Task{Note: note, Status: status})
}

func (p *Planner) addTaskLocked(container task.ContainerID, t task.Task) task.Task {
	p.nextTask++
	t.ID = p.nextTask
	if t.Status == "" {
		t.Status = task.StatusOpened
	}
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	t.CreatedAt, t.UpdatedAt = now, now
	t.Place(container)
	p.tasks[t.ID] = &t
	p.order = append([]int64{t.ID}, p.order...)
	return t
}

// Task returns the server copy of a task.
func (p *Planner) Task(id int64) task.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks[id].Clone()
}

// WeekClosed reports whether the server closed the week.
func (p *Planner) WeekClosed(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.weeks[id].IsClosed
}

// FailNext makes the next call of a mutating route answer with status.
// Routes: generate, create, update, move, carry-over, close-week, close-sprint.
func (p *Planner) FailNext(route string, status int) {
	p.mu.Lock()
	p.fail[route] = status
	p.mu.Unlock()
}

// Mutations counts the mutating requests received so far.
func (p *Planner) Mutations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutating
}

func (p *Planner) metadataLocked() task.Metadata {
	return task.Metadata{
		WeekStartDay: 1,
		SprintID:     p.sprint.ID,
		SprintStatus: p.sprint.Status,
		Roles:        append([]string(nil), p.roles...),
		Total:        len(p.weeks),
	}
}

func (p *Planner) weeksLocked() []task.Week {
	out := make([]task.Week, 0, len(p.weeks))
	for _, w := range p.weeks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out
}

func (p *Planner) tasksInLocked(container task.ContainerID) []task.Task {
	out := []task.Task{}
	for _, id := range p.order {
		t := p.tasks[id]
		if t.Container() == container {
			out = append(out, t.Clone())
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code task.Code, msg string) {
	writeJSON(w, status, map[string]string{"code": string(code), "message": msg})
}

// guard handles injected failures and sprint closure for mutating routes.
// It reports whether the handler should continue.
func (p *Planner) guard(w http.ResponseWriter, route string) bool {
	p.mutating++
	if status, ok := p.fail[route]; ok {
		delete(p.fail, route)
		writeJSON(w, status, map[string]string{"message": "injected failure"})
		return false
	}
	if !p.sprint.IsOpen() {
		writeErr(w, http.StatusLocked, task.CodeSprintClosed, "sprint is closed")
		return false
	}
	return true
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id
}

// Handler returns the REST routes.
func (p *Planner) Handler() http.Handler {
	mux := http.NewServeMux()
	const base = "/projects/{pid}/weekly-planner"

	mux.HandleFunc("GET /projects/{pid}/sprints/current", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		writeJSON(w, http.StatusOK, p.sprint)
	})

	mux.HandleFunc("GET "+base+"/weeks", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		all := p.weeksLocked()
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset > len(all) {
			offset = len(all)
		}
		end := len(all)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		writeJSON(w, http.StatusOK, api.WeekPage{Weeks: all[offset:end], Metadata: p.metadataLocked()})
	})

	mux.HandleFunc("GET "+base+"/weeks/{wid}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		wk, ok := p.weeks[pathID(r, "wid")]
		if !ok {
			writeErr(w, http.StatusNotFound, task.CodeNotFound, "no such week")
			return
		}
		out := *wk
		out.Tasks = p.tasksInLocked(wk.Container())
		writeJSON(w, http.StatusOK, api.WeekDetail{Week: out, Metadata: p.metadataLocked()})
	})

	mux.HandleFunc("GET "+base+"/backlog", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		writeJSON(w, http.StatusOK, p.tasksInLocked(task.Backlog()))
	})

	mux.HandleFunc("POST "+base+"/weeks/generate", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "generate") {
			return
		}
		var body struct{ From, To string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, wk := range p.weeks {
			if wk.WeekStart == body.From {
				writeErr(w, http.StatusConflict, task.CodeConflict, "week exists")
				return
			}
		}
		p.addWeekLocked(body.From)
		writeJSON(w, http.StatusOK, api.WeekPage{Weeks: p.weeksLocked(), Metadata: p.metadataLocked()})
	})

	mux.HandleFunc("POST "+base+"/weeks/{seg}/tasks", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "create") {
			return
		}
		container := task.Backlog()
		if seg := r.PathValue("seg"); seg != "backlog" {
			container = task.WeekContainer(pathID(r, "seg"))
		}
		var d task.Draft
		_ = json.NewDecoder(r.Body).Decode(&d)
		t := task.Task{Note: d.Note, DayOfWeek: d.DayOfWeek, PlannedHours: d.PlannedHours}
		if d.Status != nil {
			t.Status = *d.Status
		}
		writeJSON(w, http.StatusCreated, p.addTaskLocked(container, t))
	})

	mux.HandleFunc("PATCH "+base+"/tasks/{tid}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "update") {
			return
		}
		t, ok := p.tasks[pathID(r, "tid")]
		if !ok {
			writeErr(w, http.StatusNotFound, task.CodeNotFound, "no such task")
			return
		}
		var ch task.Changes
		_ = json.NewDecoder(r.Body).Decode(&ch)
		*t = ch.Apply(*t, time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
		writeJSON(w, http.StatusOK, t.Clone())
	})

	mux.HandleFunc("PATCH "+base+"/tasks/{tid}/week", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "move") {
			return
		}
		t, ok := p.tasks[pathID(r, "tid")]
		if !ok {
			writeErr(w, http.StatusNotFound, task.CodeNotFound, "no such task")
			return
		}
		var body struct {
			WeekID *int64 `json:"weekId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.WeekID == nil {
			t.Place(task.Backlog())
		} else {
			t.Place(task.WeekContainer(*body.WeekID))
		}
		writeJSON(w, http.StatusOK, t.Clone())
	})

	mux.HandleFunc("POST "+base+"/weeks/{wid}/carry-over", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "carry-over") {
			return
		}
		source := pathID(r, "wid")
		var body struct {
			TargetWeekStart string  `json:"targetWeekStart"`
			TaskIDs         []int64 `json:"taskIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var target *task.Week
		for _, wk := range p.weeks {
			if wk.WeekStart == body.TargetWeekStart {
				target = wk
			}
		}
		if target == nil {
			writeErr(w, http.StatusNotFound, task.CodeNotFound, "no target week")
			return
		}
		created := []task.Task{}
		for _, id := range body.TaskIDs {
			orig := p.tasks[id]
			nt := task.Task{Note: orig.Note, DayOfWeek: orig.DayOfWeek, CarriedOverFromWeekID: task.Ptr(source)}
			created = append(created, p.addTaskLocked(target.Container(), nt))
		}
		writeJSON(w, http.StatusOK, created)
	})

	mux.HandleFunc("POST "+base+"/weeks/{wid}/close", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "close-week") {
			return
		}
		wk, ok := p.weeks[pathID(r, "wid")]
		if !ok {
			writeErr(w, http.StatusNotFound, task.CodeNotFound, "no such week")
			return
		}
		wk.IsClosed = true
		now := time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC)
		wk.ClosedAt = &now
		out := *wk
		out.Tasks = p.tasksInLocked(wk.Container())
		writeJSON(w, http.StatusOK, api.WeekDetail{Week: out, Metadata: p.metadataLocked()})
	})

	mux.HandleFunc("POST /sprints/{sid}/close", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.guard(w, "close-sprint") {
			return
		}
		for _, t := range p.tasks {
			if !t.IsDone() {
				writeErr(w, http.StatusUnprocessableEntity, task.CodeValidation, fmt.Sprintf("task %d is open", t.ID))
				return
			}
		}
		p.sprint.Status = task.SprintClosed
		writeJSON(w, http.StatusOK, p.sprint)
	})

	return mux
}

// ProjectID is the project the planner serves.
func (p *Planner) ProjectID() int64 {
	return p.projectID
}

// SetRoles replaces the caller roles reported in metadata.
func (p *Planner) SetRoles(roles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = roles
}

// SetSprintStatus changes the sprint status behind the client's back.
func (p *Planner) SetSprintStatus(s task.SprintStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sprint.Status = s
}

// Start serves p on a local httptest server closed at the end of the test.
// It returns the base URL.
func (p *Planner) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}
