package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// HandleBoardTool renders the board, optionally reloading it first.
func HandleBoardTool(ctx context.Context, board *app.Board, params BoardToolParams) (*ToolResult, error) {
	if params.Refresh {
		if err := board.Refresh(ctx); err != nil {
			return &ToolResult{Action: "board", Error: err.Error()}, nil
		}
	}
	v := board.View()
	if params.Container == "" {
		return &ToolResult{Action: "board", Content: FormatBoard(&v)}, nil
	}

	container, err := board.ContainerFor(strings.TrimSpace(params.Container))
	if err != nil {
		return &ToolResult{Action: "board", Error: err.Error()}, nil
	}
	for _, col := range v.Columns {
		if col.Container == container {
			return &ToolResult{Action: "board", Content: strings.TrimSpace(FormatColumn(col, v.Labels))}, nil
		}
	}
	return &ToolResult{Action: "board", Error: fmt.Sprintf("container %s is not on the board", container)}, nil
}

// HandleTaskTool is the unified handler for task mutations.
// It routes to the appropriate board operation based on the action parameter.
func HandleTaskTool(ctx context.Context, board *app.Board, params TaskToolParams) (*ToolResult, error) {
	if !params.Action.IsValid() {
		return &ToolResult{
			Action: string(params.Action),
			Error:  fmt.Sprintf("invalid action %q, must be one of: create, update, move, complete, reopen", params.Action),
		}, nil
	}
	action := string(params.Action)

	if params.Action != TaskActionCreate && params.TaskID == 0 {
		return &ToolResult{Action: action, Error: "task_id is required for " + action}, nil
	}

	var (
		t       task.Task
		err     error
		message string
	)
	switch params.Action {
	case TaskActionCreate:
		if params.Container == "" {
			return &ToolResult{Action: action, Error: "container is required for create"}, nil
		}
		container, cerr := board.ContainerFor(params.Container)
		if cerr != nil {
			return &ToolResult{Action: action, Error: cerr.Error()}, nil
		}
		draft := task.Draft{
			DayOfWeek:    params.Day,
			Deadline:     params.Deadline,
			PlannedHours: params.PlannedHours,
		}
		if params.Note != nil {
			draft.Note = *params.Note
		}
		t, err = board.CreateTask(ctx, container, draft)
		message = "Task created."

	case TaskActionUpdate:
		changes := task.Changes{
			DayOfWeek:    params.Day,
			Note:         params.Note,
			Deadline:     params.Deadline,
			PlannedHours: params.PlannedHours,
		}
		if changes.IsEmpty() {
			return &ToolResult{Action: action, Error: "nothing to update: set note, day, planned_hours or deadline"}, nil
		}
		t, err = board.UpdateTask(ctx, params.TaskID, changes)
		message = "Task updated."

	case TaskActionMove:
		if params.Container == "" {
			return &ToolResult{Action: action, Error: "container is required for move"}, nil
		}
		container, cerr := board.ContainerFor(params.Container)
		if cerr != nil {
			return &ToolResult{Action: action, Error: cerr.Error()}, nil
		}
		t, err = board.MoveTask(ctx, params.TaskID, container)
		message = fmt.Sprintf("Task moved to %s.", container)

	case TaskActionComplete:
		t, err = board.CompleteTask(ctx, params.TaskID)
		message = "Task completed."

	case TaskActionReopen:
		t, err = board.ReopenTask(ctx, params.TaskID)
		message = "Task reopened."
	}

	result := board.NewTaskResult(message, t, err)
	return &ToolResult{Action: action, Content: FormatTask(&result)}, nil
}

// HandleWeekTool is the unified handler for week operations.
func HandleWeekTool(ctx context.Context, board *app.Board, params WeekToolParams) (*ToolResult, error) {
	if !params.Action.IsValid() {
		return &ToolResult{
			Action: string(params.Action),
			Error:  fmt.Sprintf("invalid action %q, must be one of: list, generate, close, carry_over", params.Action),
		}, nil
	}
	action := string(params.Action)

	switch params.Action {
	case WeekActionList:
		return &ToolResult{Action: action, Content: FormatWeeks(board.Weeks(), board.Metadata())}, nil

	case WeekActionGenerate:
		w, err := board.GenerateNextWeek(ctx)
		if err != nil {
			return &ToolResult{Action: action, Error: err.Error()}, nil
		}
		return &ToolResult{Action: action, Content: FormatWeekGenerated(w)}, nil
	}

	if strings.TrimSpace(params.Week) == "" {
		return &ToolResult{Action: action, Error: "week is required for " + action}, nil
	}
	w, err := board.WeekFor(strings.TrimSpace(params.Week))
	if err != nil {
		return &ToolResult{Action: action, Error: err.Error()}, nil
	}

	if params.Action == WeekActionCarryOver {
		res, err := board.CarryOver(ctx, w.ID, params.TaskIDs)
		if err != nil {
			return &ToolResult{Action: action, Error: err.Error()}, nil
		}
		return &ToolResult{Action: action, Content: FormatCarryOver(&res)}, nil
	}

	closed, err := board.CloseWeek(ctx, w.ID)
	if err != nil {
		return &ToolResult{Action: action, Error: err.Error()}, nil
	}
	if (params.CarryOver != nil && !*params.CarryOver) || closed.OpenTasks == 0 {
		return &ToolResult{Action: action, Content: FormatWeekClosed(&closed, nil)}, nil
	}
	res, err := board.CarryOver(ctx, w.ID, params.TaskIDs)
	if err != nil {
		// The week is closed either way; report the carry-over failure alongside.
		return &ToolResult{
			Action:  action,
			Content: FormatWeekClosed(&closed, nil),
			Error:   "carry-over failed: " + err.Error(),
		}, nil
	}
	return &ToolResult{Action: action, Content: FormatWeekClosed(&closed, &res)}, nil
}

// HandleSprintTool shows or closes the current sprint.
func HandleSprintTool(ctx context.Context, board *app.Board, params SprintToolParams) (*ToolResult, error) {
	if !params.Action.IsValid() {
		return &ToolResult{
			Action: string(params.Action),
			Error:  fmt.Sprintf("invalid action %q, must be one of: show, close", params.Action),
		}, nil
	}
	action := string(params.Action)

	if params.Action == SprintActionClose {
		if _, err := board.CloseSprint(ctx); err != nil {
			return &ToolResult{Action: action, Error: err.Error()}, nil
		}
	}
	v := board.View()
	return &ToolResult{Action: action, Content: FormatSprint(&v, board.CanCloseSprint())}, nil
}
