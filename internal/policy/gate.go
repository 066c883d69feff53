package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// DecisionRecorder persists decisions. *AuditStore implements it.
type DecisionRecorder interface {
	SaveDecision(ctx context.Context, d *Decision) error
}

// Gate turns engine decisions into planner errors. A nil Gate or a Gate
// without an engine allows everything.
type Gate struct {
	engine    *Engine
	recorder  DecisionRecorder
	sessionID string
}

// NewGate creates a gate. The recorder is optional - if nil, decisions
// won't be persisted.
func NewGate(engine *Engine, recorder DecisionRecorder, sessionID string) *Gate {
	return &Gate{engine: engine, recorder: recorder, sessionID: sessionID}
}

// Authorize evaluates the request and returns a FORBIDDEN error listing the
// violations when a deny rule fired.
func (g *Gate) Authorize(ctx context.Context, req Request) error {
	if g == nil || g.engine == nil {
		return nil
	}

	decision, err := g.engine.Evaluate(ctx, req)
	if err != nil {
		return task.NewError(task.CodeInternal, req.Action, "policy evaluation failed", err)
	}
	decision.SessionID = g.sessionID

	if g.recorder != nil {
		if err := g.recorder.SaveDecision(ctx, decision); err != nil {
			slog.Warn("failed to record policy decision", "decision_id", decision.DecisionID, "error", err)
		}
	}

	for _, w := range decision.Warnings {
		slog.Warn("policy warning", "action", req.Action, "warning", w)
	}
	slog.Debug("policy decision", "action", req.Action, "result", decision.Result, "decision_id", decision.DecisionID)

	if !decision.IsAllowed() {
		return task.NewError(task.CodeForbidden, req.Action,
			fmt.Sprintf("denied by policy: %s", strings.Join(decision.Violations, "; ")), nil)
	}
	return nil
}
