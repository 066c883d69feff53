package app

import (
	"time"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// Column is one container of the board.
type Column struct {
	Container task.ContainerID `json:"-"`
	ID        string           `json:"container"`
	Title     string           `json:"title"`
	Week      *task.Week       `json:"week,omitempty"`
	Tasks     []task.Task      `json:"tasks"`
}

// Closed reports whether the column accepts no changes.
func (c Column) Closed() bool {
	return c.Week != nil && c.Week.IsClosed
}

// Stats counts tasks by status.
type Stats struct {
	Total  int `json:"total"`
	Open   int `json:"open"`
	Closed int `json:"closed"`
}

// View is a read-only rendering of the board. It is the canonical response
// type used by the CLI, the TUI and MCP.
type View struct {
	ProjectID int64            `json:"projectId"`
	Sprint    task.Sprint      `json:"sprint"`
	Metadata  task.Metadata    `json:"metadata"`
	Columns   []Column         `json:"columns"`
	Stats     Stats            `json:"stats"`
	Labels    map[int64]string `json:"carriedOver,omitempty"`
	SyncedAt  time.Time        `json:"syncedAt"`
	Offline   bool             `json:"offline"`
	LastError string           `json:"lastError,omitempty"`
}

// View renders the backlog followed by every week in start order.
func (b *Board) View() View {
	key := b.Key()
	v := View{
		ProjectID: key.ProjectID,
		Sprint:    b.life.Sprint(),
		Metadata:  b.life.Metadata(),
		SyncedAt:  b.SyncedAt(),
		Offline:   b.Offline(),
	}

	backlog := task.Backlog()
	v.Columns = append(v.Columns, Column{
		Container: backlog,
		ID:        backlog.String(),
		Title:     "Backlog",
		Tasks:     b.cache.Read(key, backlog),
	})
	for _, w := range b.life.Weeks() {
		w := w
		v.Columns = append(v.Columns, Column{
			Container: w.Container(),
			ID:        w.Container().String(),
			Title:     "Week of " + w.WeekStart,
			Week:      &w,
			Tasks:     b.cache.Read(key, w.Container()),
		})
	}

	for _, col := range v.Columns {
		for _, t := range col.Tasks {
			v.Stats.Total++
			if t.IsDone() {
				v.Stats.Closed++
			} else {
				v.Stats.Open++
			}
			if label := b.carry.Label(t.ID); label != "" {
				if v.Labels == nil {
					v.Labels = make(map[int64]string)
				}
				v.Labels[t.ID] = label
			}
		}
	}

	if f := b.engine.LastError(); f != nil {
		v.LastError = f.Error()
	} else if err := b.carry.LastError(); err != nil {
		v.LastError = err.Error()
	}
	return v
}

// TaskResult contains the result of a task operation.
// This is the canonical response type used by both CLI and MCP.
type TaskResult struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Task    *task.Task `json:"task,omitempty"`
	Label   string     `json:"carriedOver,omitempty"`
	Hint    string     `json:"hint,omitempty"`
	Code    task.Code  `json:"code,omitempty"`
}

// NewTaskResult builds the response for a finished task operation.
func (b *Board) NewTaskResult(message string, t task.Task, err error) TaskResult {
	if err != nil {
		res := TaskResult{Message: err.Error(), Code: task.CodeOf(err)}
		switch res.Code {
		case task.CodeSprintClosed:
			res.Hint = "the sprint or week is closed; nothing can change"
		case task.CodeNetwork, task.CodeTimeout:
			res.Hint = "the board was left unchanged; retry when the server is reachable"
		case task.CodeNotFound:
			res.Hint = "refresh the board, the task or week may be gone"
		}
		return res
	}
	return TaskResult{Success: true, Message: message, Task: &t, Label: b.carry.Label(t.ID)}
}
