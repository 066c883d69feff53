package task

import (
	"fmt"
	"strconv"
	"strings"
)

const backlogName = "backlog"

// ContainerID identifies where a task lives: the sprint backlog or one week.
// The zero value is the backlog.
type ContainerID struct {
	weekID int64
}

// Backlog returns the backlog container.
func Backlog() ContainerID {
	return ContainerID{}
}

// WeekContainer returns the container of the week with the given id.
func WeekContainer(id int64) ContainerID {
	return ContainerID{weekID: id}
}

// IsBacklog reports whether c is the backlog.
func (c ContainerID) IsBacklog() bool {
	return c.weekID == 0
}

// WeekID returns the week id, or false for the backlog.
func (c ContainerID) WeekID() (int64, bool) {
	if c.IsBacklog() {
		return 0, false
	}
	return c.weekID, true
}

// WeekIDPtr returns the week id as the nullable wire value.
func (c ContainerID) WeekIDPtr() *int64 {
	if c.IsBacklog() {
		return nil
	}
	id := c.weekID
	return &id
}

func (c ContainerID) String() string {
	if c.IsBacklog() {
		return backlogName
	}
	return "week:" + strconv.FormatInt(c.weekID, 10)
}

// ParseContainer accepts "backlog", "week:<id>" or a bare week id.
func ParseContainer(s string) (ContainerID, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == backlogName {
		return Backlog(), nil
	}
	s = strings.TrimPrefix(s, "week:")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return ContainerID{}, NewError(CodeValidation, "parse container", fmt.Sprintf("invalid container %q (want \"backlog\" or a week id)", s), nil)
	}
	return WeekContainer(id), nil
}
