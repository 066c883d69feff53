// Package mcp provides types and utilities for the MCP server.
package mcp

// === Action Constants ===

// TaskAction defines the valid actions for the unified task tool.
type TaskAction string

const (
	TaskActionCreate   TaskAction = "create"
	TaskActionUpdate   TaskAction = "update"
	TaskActionMove     TaskAction = "move"
	TaskActionComplete TaskAction = "complete"
	TaskActionReopen   TaskAction = "reopen"
)

// ValidTaskActions returns all valid task actions.
func ValidTaskActions() []TaskAction {
	return []TaskAction{TaskActionCreate, TaskActionUpdate, TaskActionMove, TaskActionComplete, TaskActionReopen}
}

// IsValid checks if the action is a valid task action.
func (a TaskAction) IsValid() bool {
	switch a {
	case TaskActionCreate, TaskActionUpdate, TaskActionMove, TaskActionComplete, TaskActionReopen:
		return true
	}
	return false
}

// WeekAction defines the valid actions for the unified week tool.
type WeekAction string

const (
	WeekActionList      WeekAction = "list"
	WeekActionGenerate  WeekAction = "generate"
	WeekActionClose     WeekAction = "close"
	WeekActionCarryOver WeekAction = "carry_over"
)

// ValidWeekActions returns all valid week actions.
func ValidWeekActions() []WeekAction {
	return []WeekAction{WeekActionList, WeekActionGenerate, WeekActionClose, WeekActionCarryOver}
}

// IsValid checks if the action is a valid week action.
func (a WeekAction) IsValid() bool {
	switch a {
	case WeekActionList, WeekActionGenerate, WeekActionClose, WeekActionCarryOver:
		return true
	}
	return false
}

// SprintAction defines the valid actions for the sprint tool.
type SprintAction string

const (
	SprintActionShow  SprintAction = "show"
	SprintActionClose SprintAction = "close"
)

// IsValid checks if the action is a valid sprint action.
func (a SprintAction) IsValid() bool {
	return a == SprintActionShow || a == SprintActionClose
}

// === Unified Tool Parameters ===

// BoardToolParams defines the parameters for the board tool.
type BoardToolParams struct {
	// Refresh reloads the board from the server before rendering.
	// Optional (default: false, the board loaded at startup is shown)
	Refresh bool `json:"refresh,omitempty"`

	// Container limits the output to one column: "backlog", a week start
	// date (YYYY-MM-DD) or a week id.
	// Optional
	Container string `json:"container,omitempty"`
}

// TaskToolParams defines the parameters for the unified task tool.
type TaskToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: create, update, move, complete, reopen
	Action TaskAction `json:"action"`

	// TaskID is the task identifier.
	// Required for: update, move, complete, reopen
	TaskID int64 `json:"task_id,omitempty"`

	// Container is the target column: "backlog", a week start date or a week id.
	// Required for: create, move
	Container string `json:"container,omitempty"`

	// Note is the task text.
	// Required for: create. Optional for: update
	Note *string `json:"note,omitempty"`

	// Day is the day of the week, 1 = first day of the week ... 7.
	// Optional for: create, update
	Day *int `json:"day,omitempty"`

	// PlannedHours is the effort estimate.
	// Optional for: create, update
	PlannedHours *float64 `json:"planned_hours,omitempty"`

	// Deadline is a YYYY-MM-DD date.
	// Optional for: create, update
	Deadline *string `json:"deadline,omitempty"`
}

// WeekToolParams defines the parameters for the unified week tool.
type WeekToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: list, generate, close, carry_over
	Action WeekAction `json:"action"`

	// Week is the week id or start date (YYYY-MM-DD).
	// Required for: close, carry_over
	Week string `json:"week,omitempty"`

	// CarryOver carries unfinished tasks into the following week after closing.
	// Optional for: close (default: true)
	CarryOver *bool `json:"carry_over,omitempty"`

	// TaskIDs restricts the carry-over to these tasks.
	// Optional for: close, carry_over (default: every unfinished task)
	TaskIDs []int64 `json:"task_ids,omitempty"`
}

// SprintToolParams defines the parameters for the sprint tool.
type SprintToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: show, close
	Action SprintAction `json:"action"`
}

// ToolResult represents the response from a unified tool.
type ToolResult struct {
	Action  string `json:"action"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
