package task

import (
	"time"
)

// DateLayout is the wire format for week starts and deadlines.
const DateLayout = "2006-01-02"

// TaskStatus represents the completion state of a task
type TaskStatus string

const (
	StatusOpened TaskStatus = "OPENED" // Work not finished
	StatusClosed TaskStatus = "CLOSED" // Work done
)

// SprintStatus represents the lifecycle state of a sprint
type SprintStatus string

const (
	SprintOpen   SprintStatus = "OPEN"   // Tasks and weeks may change
	SprintClosed SprintStatus = "CLOSED" // Terminal, everything is read-only
)

// Sprint is the top-level time-boxed container for a project's planning.
type Sprint struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Status   SprintStatus `json:"status"`
	Deadline *string      `json:"deadline,omitempty"`
}

// IsOpen reports whether the sprint still accepts mutations.
func (s Sprint) IsOpen() bool {
	return s.Status == SprintOpen
}

// Week is a 7-day scheduling unit within a sprint.
type Week struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"projectId"`
	SprintID  int64      `json:"sprintId"`
	WeekStart string     `json:"weekStart"`
	WeekEnd   string     `json:"weekEnd"`
	IsClosed  bool       `json:"isClosed"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`

	// Tasks is populated by the single-week endpoint only.
	Tasks []Task `json:"tasks,omitempty"`
}

// Start parses WeekStart.
func (w Week) Start() (time.Time, error) {
	return time.Parse(DateLayout, w.WeekStart)
}

// Normalize recomputes WeekEnd from WeekStart. The client never trusts an
// independently supplied end date.
func (w *Week) Normalize() {
	start, err := w.Start()
	if err != nil {
		return
	}
	w.WeekEnd = start.AddDate(0, 0, 6).Format(DateLayout)
	for i := range w.Tasks {
		w.Tasks[i].Normalize()
	}
}

// Container returns the cache container of this week.
func (w Week) Container() ContainerID {
	return WeekContainer(w.ID)
}

// Metadata is the planning metadata returned alongside week listings.
type Metadata struct {
	WeekStartDay  int          `json:"weekStartDay"`
	CurrentWeekID *int64       `json:"currentWeekId,omitempty"`
	SprintID      int64        `json:"sprintId"`
	SprintStatus  SprintStatus `json:"sprintStatus"`
	Roles         []string     `json:"roles,omitempty"`
	Total         int          `json:"total,omitempty"`
}

// Task is a unit of scheduled work, either in the backlog or in one week.
type Task struct {
	ID                    int64      `json:"id"`
	WeekID                *int64     `json:"weekId"`
	IsBacklog             bool       `json:"isBacklog"`
	DayOfWeek             *int       `json:"dayOfWeek"`
	Note                  string     `json:"note"`
	PlannedHours          *float64   `json:"plannedHours"`
	InternID              *int64     `json:"internId"`
	IssueID               *int64     `json:"issueId"`
	Status                TaskStatus `json:"status"`
	Deadline              *string    `json:"deadline,omitempty"`
	CarriedOverFromWeekID *int64     `json:"carriedOverFromWeekId,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// IsDone reports whether the task is completed.
func (t Task) IsDone() bool {
	return t.Status == StatusClosed
}

// IsPlaceholder reports whether the task carries a client-side id that the
// server has not confirmed yet.
func (t Task) IsPlaceholder() bool {
	return t.ID < 0
}

// Container returns the container the task claims to live in.
func (t Task) Container() ContainerID {
	if t.WeekID == nil {
		return Backlog()
	}
	return WeekContainer(*t.WeekID)
}

// Place sets WeekID, IsBacklog and DayOfWeek consistently for the given
// container. Entering the backlog clears the day; entering a week keeps a
// valid day or defaults it to 1.
func (t *Task) Place(c ContainerID) {
	if c.IsBacklog() {
		t.WeekID = nil
		t.IsBacklog = true
		t.DayOfWeek = nil
		return
	}
	id, _ := c.WeekID()
	t.WeekID = &id
	t.IsBacklog = false
	day := 1
	if t.DayOfWeek != nil {
		day = ClampDay(*t.DayOfWeek)
	}
	t.DayOfWeek = &day
}

// Normalize repairs a payload that breaks the backlog/week invariant.
// WeekID is authoritative.
func (t *Task) Normalize() {
	t.Place(t.Container())
	if t.Status == "" {
		t.Status = StatusOpened
	}
}

// Clone returns a deep copy so cached tasks never share pointers.
func (t Task) Clone() Task {
	c := t
	c.WeekID = clonePtr(t.WeekID)
	c.DayOfWeek = clonePtr(t.DayOfWeek)
	c.PlannedHours = clonePtr(t.PlannedHours)
	c.InternID = clonePtr(t.InternID)
	c.IssueID = clonePtr(t.IssueID)
	c.Deadline = clonePtr(t.Deadline)
	c.CarriedOverFromWeekID = clonePtr(t.CarriedOverFromWeekID)
	return c
}

// ClampDay maps any value outside 1..7 to 1.
func ClampDay(day int) int {
	if day < 1 || day > 7 {
		return 1
	}
	return day
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
