package mcp

import (
	"context"
	"testing"
)

func TestHandleTaskTool_InvalidAction(t *testing.T) {
	result, err := HandleTaskTool(context.Background(), nil, TaskToolParams{Action: "delete", TaskID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected error for invalid action")
	}
	if result.Action != "delete" {
		t.Errorf("expected action 'delete', got %q", result.Action)
	}
}

func TestHandleTaskTool_MissingTaskID(t *testing.T) {
	for _, action := range []TaskAction{TaskActionUpdate, TaskActionMove, TaskActionComplete, TaskActionReopen} {
		result, err := HandleTaskTool(context.Background(), nil, TaskToolParams{Action: action})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", action, err)
		}
		if result.Error != "task_id is required for "+string(action) {
			t.Errorf("%s: got error %q", action, result.Error)
		}
	}
}

func TestHandleTaskTool_CreateNeedsContainer(t *testing.T) {
	note := "x"
	result, err := HandleTaskTool(context.Background(), nil, TaskToolParams{Action: TaskActionCreate, Note: &note})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected error for missing container")
	}
}

func TestHandleWeekTool_Validation(t *testing.T) {
	result, err := HandleWeekTool(context.Background(), nil, WeekToolParams{Action: "reopen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected error for invalid action")
	}

	result, err = HandleWeekTool(context.Background(), nil, WeekToolParams{Action: WeekActionClose, Week: "  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "week is required for close" {
		t.Errorf("got error %q", result.Error)
	}
}

func TestHandleSprintTool_InvalidAction(t *testing.T) {
	result, err := HandleSprintTool(context.Background(), nil, SprintToolParams{Action: "reopen"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected error for invalid action")
	}
}
