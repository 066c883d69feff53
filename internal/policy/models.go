// Package policy provides the OPA (Open Policy Agent) role gate for
// planner actions. Policies are Rego files that produce deny and warn
// messages for a Request.
package policy

import (
	"encoding/json"
	"strings"
	"time"
)

// Gated actions.
const (
	ActionCloseWeek   = "close_week"
	ActionCloseSprint = "close_sprint"
)

// Decision represents the outcome of evaluating a policy against a request.
// This is stored in the policy_decisions table for audit trail.
type Decision struct {
	ID          int64     `json:"id"`                   // Auto-increment primary key
	DecisionID  string    `json:"decisionId"`           // UUID for referencing
	PolicyPath  string    `json:"policyPath"`           // Rego package path (e.g., "planwing.policy")
	Action      string    `json:"action"`               // Gated action
	Result      string    `json:"result"`               // "allow" or "deny"
	Violations  []string  `json:"violations,omitempty"` // Deny messages from OPA
	Warnings    []string  `json:"warnings,omitempty"`   // Warn messages, never blocking
	Input       any       `json:"input"`                // The input that was evaluated
	ProjectID   int64     `json:"projectId,omitempty"`
	SprintID    int64     `json:"sprintId,omitempty"`
	WeekID      *int64    `json:"weekId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Result constants.
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// IsAllowed returns true if the decision was "allow".
func (d *Decision) IsAllowed() bool {
	return d.Result == ResultAllow
}

// ViolationsJSON returns the violations as a JSON string for storage.
func (d *Decision) ViolationsJSON() string {
	return stringsJSON(d.Violations)
}

// WarningsJSON returns the warnings as a JSON string for storage.
func (d *Decision) WarningsJSON() string {
	return stringsJSON(d.Warnings)
}

// InputJSON returns the input as a JSON string for storage.
func (d *Decision) InputJSON() string {
	if d.Input == nil {
		return "{}"
	}
	b, err := json.Marshal(d.Input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func stringsJSON(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ParseStrings parses a JSON array column.
func ParseStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

// Request is what Rego policies receive in the `input` variable.
type Request struct {
	Action    string   `json:"action"`
	Roles     []string `json:"roles"`
	ProjectID int64    `json:"project_id"`
	SprintID  int64    `json:"sprint_id"`
	WeekID    *int64   `json:"week_id,omitempty"`
	WeekStart string   `json:"week_start,omitempty"`
	WeekEnd   string   `json:"week_end,omitempty"`
	OpenTasks int      `json:"open_tasks"`
}

// normalized upper-cases roles so policies can compare them literally.
func (r Request) normalized() Request {
	roles := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		if role = strings.ToUpper(strings.TrimSpace(role)); role != "" {
			roles = append(roles, role)
		}
	}
	r.Roles = roles
	return r
}
