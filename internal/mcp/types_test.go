package mcp

import "testing"

func TestTaskAction_IsValid(t *testing.T) {
	tests := []struct {
		action TaskAction
		want   bool
	}{
		{TaskActionCreate, true},
		{TaskActionUpdate, true},
		{TaskActionMove, true},
		{TaskActionComplete, true},
		{TaskActionReopen, true},
		{"delete", false},
		{"", false},
		{"MOVE", false}, // case-sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			if got := tt.action.IsValid(); got != tt.want {
				t.Errorf("TaskAction(%q).IsValid() = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestWeekAction_IsValid(t *testing.T) {
	for _, a := range ValidWeekActions() {
		if !a.IsValid() {
			t.Errorf("WeekAction(%q) should be valid", a)
		}
	}
	if WeekAction("reopen").IsValid() {
		t.Error("weeks cannot be reopened")
	}
}

func TestSprintAction_IsValid(t *testing.T) {
	if !SprintActionShow.IsValid() || !SprintActionClose.IsValid() {
		t.Error("show and close must be valid")
	}
	if SprintAction("open").IsValid() {
		t.Error("expected open to be invalid")
	}
}

func TestValidTaskActions_AllValid(t *testing.T) {
	actions := ValidTaskActions()
	if len(actions) != 5 {
		t.Fatalf("expected 5 task actions, got %d", len(actions))
	}
	for _, a := range actions {
		if !a.IsValid() {
			t.Errorf("ValidTaskActions returned invalid action %q", a)
		}
	}
}
