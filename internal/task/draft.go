package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Draft is the payload for creating a task in a week or the backlog.
type Draft struct {
	DayOfWeek    *int        `json:"dayOfWeek" validate:"omitempty,min=1,max=7"`
	Note         string      `json:"note" validate:"max=2000"`
	InternID     *int64      `json:"internId" validate:"omitempty,gt=0"`
	IssueID      *int64      `json:"issueId" validate:"omitempty,gt=0"`
	Deadline     *string     `json:"deadline" validate:"omitempty,datetime=2006-01-02"`
	PlannedHours *float64    `json:"plannedHours" validate:"omitempty,min=0,max=168"`
	Status       *TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=OPENED CLOSED"`
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	DayOfWeek    *int        `json:"dayOfWeek,omitempty" validate:"omitempty,min=1,max=7"`
	Note         *string     `json:"note,omitempty" validate:"omitempty,max=2000"`
	InternID     *int64      `json:"internId,omitempty" validate:"omitempty,gt=0"`
	IssueID      *int64      `json:"issueId,omitempty" validate:"omitempty,gt=0"`
	Deadline     *string     `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PlannedHours *float64    `json:"plannedHours,omitempty" validate:"omitempty,min=0,max=168"`
	Status       *TaskStatus `json:"status,omitempty" validate:"omitempty,oneof=OPENED CLOSED"`
}

// IsEmpty reports whether the update would change nothing.
func (c Changes) IsEmpty() bool {
	return c.DayOfWeek == nil && c.Note == nil && c.InternID == nil && c.IssueID == nil &&
		c.Deadline == nil && c.PlannedHours == nil && c.Status == nil
}

// Provisional builds the optimistic task shown while the create call is in flight.
func (d Draft) Provisional(id int64, c ContainerID, now time.Time) Task {
	t := Task{
		ID:           id,
		DayOfWeek:    clonePtr(d.DayOfWeek),
		Note:         d.Note,
		PlannedHours: clonePtr(d.PlannedHours),
		InternID:     clonePtr(d.InternID),
		IssueID:      clonePtr(d.IssueID),
		Deadline:     clonePtr(d.Deadline),
		Status:       StatusOpened,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if d.Status != nil {
		t.Status = *d.Status
	}
	t.Place(c)
	return t
}

// Apply merges the changes into a copy of t.
func (c Changes) Apply(t Task, now time.Time) Task {
	out := t.Clone()
	if c.DayOfWeek != nil && !out.IsBacklog {
		day := ClampDay(*c.DayOfWeek)
		out.DayOfWeek = &day
	}
	if c.Note != nil {
		out.Note = *c.Note
	}
	if c.InternID != nil {
		out.InternID = clonePtr(c.InternID)
	}
	if c.IssueID != nil {
		out.IssueID = clonePtr(c.IssueID)
	}
	if c.Deadline != nil {
		out.Deadline = clonePtr(c.Deadline)
	}
	if c.PlannedHours != nil {
		out.PlannedHours = clonePtr(c.PlannedHours)
	}
	if c.Status != nil {
		out.Status = *c.Status
	}
	out.UpdatedAt = now
	return out
}

// validate is a single instance of Validate, it caches struct info
var validate = validator.New()

// ValidateStruct validates any tagged struct and converts failures into a
// VALIDATION *Error with one message per field.
func ValidateStruct(op string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError(CodeValidation, op, err.Error(), err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s' (value: '%v')", e.Field(), e.Tag(), derefValue(e.Value())))
	}
	return NewError(CodeValidation, op, strings.Join(msgs, "; "), err)
}

func derefValue(v any) any {
	switch p := v.(type) {
	case *int:
		if p != nil {
			return *p
		}
	case *int64:
		if p != nil {
			return *p
		}
	case *float64:
		if p != nil {
			return *p
		}
	case *string:
		if p != nil {
			return *p
		}
	case *TaskStatus:
		if p != nil {
			return *p
		}
	}
	return v
}
