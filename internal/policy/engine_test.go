package policy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestEngine_Evaluate_NoPolicies(t *testing.T) {
	// When no policies are loaded, everything should be allowed
	engine := NewEngineWithPolicies()

	decision, err := engine.Evaluate(context.Background(), Request{Action: ActionCloseSprint})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Result != ResultAllow {
		t.Errorf("Result = %v, want %v", decision.Result, ResultAllow)
	}
	if decision.DecisionID == "" {
		t.Error("DecisionID should be set")
	}
}

func TestEngine_Evaluate_DefaultRolePolicy(t *testing.T) {
	engine := NewEngineWithPolicies(&PolicyFile{Name: "roles", Path: "roles.rego", Content: DefaultRolePolicy})

	tests := []struct {
		name       string
		req        Request
		wantResult string
	}{
		{
			name:       "mentor closes week",
			req:        Request{Action: ActionCloseWeek, Roles: []string{"MENTOR"}},
			wantResult: ResultAllow,
		},
		{
			name:       "roles are case-insensitive",
			req:        Request{Action: ActionCloseSprint, Roles: []string{" admin "}},
			wantResult: ResultAllow,
		},
		{
			name:       "intern closes sprint",
			req:        Request{Action: ActionCloseSprint, Roles: []string{"INTERN"}},
			wantResult: ResultDeny,
		},
		{
			name:       "no roles",
			req:        Request{Action: ActionCloseWeek},
			wantResult: ResultDeny,
		},
		{
			name:       "ungated action",
			req:        Request{Action: "create_task"},
			wantResult: ResultAllow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if decision.Result != tt.wantResult {
				t.Errorf("Result = %v, want %v (violations: %v)", decision.Result, tt.wantResult, decision.Violations)
			}
			if tt.wantResult == ResultDeny && len(decision.Violations) == 0 {
				t.Error("expected violations on deny")
			}
		})
	}
}

func TestEngine_Evaluate_WarnUsesBuiltin(t *testing.T) {
	restore := SetClock(func() time.Time { return time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) })
	defer restore()

	engine := NewEngineWithPolicies(&PolicyFile{Name: "roles", Path: "roles.rego", Content: DefaultRolePolicy})

	early, err := engine.Evaluate(context.Background(), Request{Action: ActionCloseWeek, Roles: []string{"MENTOR"}, WeekEnd: "2025-01-12"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !early.IsAllowed() || len(early.Warnings) != 1 {
		t.Errorf("early close: result=%s warnings=%v", early.Result, early.Warnings)
	}

	onTime, err := engine.Evaluate(context.Background(), Request{Action: ActionCloseWeek, Roles: []string{"MENTOR"}, WeekEnd: "2025-01-05"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(onTime.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", onTime.Warnings)
	}
}

func TestEngine_AddPolicyRecompiles(t *testing.T) {
	engine := NewEngineWithPolicies(&PolicyFile{Name: "roles", Path: "roles.rego", Content: DefaultRolePolicy})
	req := Request{Action: ActionCloseWeek, Roles: []string{"MENTOR"}, OpenTasks: 3}

	before, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !before.IsAllowed() {
		t.Fatalf("expected allow before AddPolicy, got %v", before.Violations)
	}

	engine.AddPolicy("freeze", `package planwing.policy

deny contains msg if {
	input.action == "close_week"
	input.open_tasks > 0
	msg := sprintf("%d tasks are still open", [input.open_tasks])
}
`)

	after, err := engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if after.IsAllowed() || len(after.Violations) != 1 || after.Violations[0] != "3 tasks are still open" {
		t.Errorf("expected the added rule to deny, got result=%s violations=%v", after.Result, after.Violations)
	}
	if got := engine.PolicyNames(); len(got) != 2 || got[1] != "freeze" {
		t.Errorf("PolicyNames() = %v", got)
	}
}

func TestEngine_Evaluate_CompileError(t *testing.T) {
	engine := NewEngineWithPolicies(&PolicyFile{Name: "broken", Path: "broken.rego", Content: "package planwing.policy\n deny contains"})
	if _, err := engine.Evaluate(context.Background(), Request{Action: ActionCloseWeek}); err == nil {
		t.Error("expected a compile error")
	}
}

func TestNewEngine_LoadsFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/cfg/policies/roles.rego", []byte(DefaultRolePolicy), 0644)
	_ = afero.WriteFile(fs, "/cfg/policies/roles_test.rego", []byte(DefaultRolePolicyTest), 0644)

	engine, err := NewEngine(EngineConfig{PoliciesDir: "/cfg/policies", Fs: fs})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine.PolicyCount() != 1 {
		t.Errorf("PolicyCount() = %d, want 1 (tests are not policies)", engine.PolicyCount())
	}

	missing, err := NewEngine(EngineConfig{PoliciesDir: "/nope", Fs: fs})
	if err != nil {
		t.Fatalf("NewEngine() with missing dir error = %v", err)
	}
	if missing.PolicyCount() != 0 {
		t.Errorf("PolicyCount() = %d, want 0", missing.PolicyCount())
	}
}

func TestValidatePolicy(t *testing.T) {
	if err := ValidatePolicy(DefaultRolePolicy); err != nil {
		t.Errorf("DefaultRolePolicy invalid: %v", err)
	}
	if err := ValidatePolicy("package x\n deny contains"); err == nil {
		t.Error("expected syntax error")
	}
}

func TestTestRunner_RunsDefaultPolicyTests(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/cfg/policies"
	_ = afero.WriteFile(fs, dir+"/"+DefaultRolePolicyFile, []byte(DefaultRolePolicy), 0644)
	_ = afero.WriteFile(fs, dir+"/"+DefaultRolePolicyTestFile, []byte(DefaultRolePolicyTest), 0644)

	summary, err := NewTestRunner(fs, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.Total != 2 || !summary.AllPassed() || summary.Counts[OutcomePass] != 2 {
		t.Errorf("expected 2 passing tests, got %+v", summary)
	}
	for _, r := range summary.Results {
		if r.Package != "planwing.policy_test" || r.File != DefaultRolePolicyTestFile {
			t.Errorf("unexpected result location %+v", r)
		}
	}

	only, err := NewTestRunner(fs, dir).Only("intern").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() with filter failed: %v", err)
	}
	if only.Total != 1 || only.Results[0].Name != "test_intern_may_not_close_sprint" {
		t.Errorf("filter kept %+v", only.Results)
	}

	empty, err := NewTestRunner(fs, "/empty").Run(context.Background())
	if err != nil {
		t.Fatalf("Run() on empty dir failed: %v", err)
	}
	if empty.FormatSummary() != "No tests found.\n" {
		t.Errorf("unexpected summary %q", empty.FormatSummary())
	}
}

func TestTestRunner_ReportsFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/cfg/policies"
	_ = afero.WriteFile(fs, dir+"/"+DefaultRolePolicyFile, []byte(DefaultRolePolicy), 0644)
	_ = afero.WriteFile(fs, dir+"/wrong_test.rego", []byte(`package planwing.wrong_test

import data.planwing.policy

test_intern_may_close_sprint if {
	count(policy.deny) == 0 with input as {"action": "close_sprint", "roles": ["INTERN"]}
}
`), 0644)

	summary, err := NewTestRunner(fs, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.AllPassed() || summary.Counts[OutcomeFail] != 1 {
		t.Fatalf("expected one failure, got %+v", summary.Counts)
	}
	if r := summary.Results[0]; r.Outcome != OutcomeFail || r.File != "wrong_test.rego" {
		t.Errorf("unexpected result %+v", r)
	}
	if got := summary.FormatSummary(); !strings.Contains(got, "1 tests, 0 passed, 1 failed") {
		t.Errorf("FormatSummary() = %q", got)
	}
}
