package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditSchema creates the policy_decisions table. The local memory store
// applies it together with its own tables.
const AuditSchema = `
CREATE TABLE IF NOT EXISTS policy_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id TEXT UNIQUE NOT NULL,
	policy_path TEXT NOT NULL,
	action TEXT NOT NULL,
	result TEXT NOT NULL,
	violations TEXT,
	warnings TEXT,
	input_json TEXT NOT NULL,
	project_id INTEGER NOT NULL DEFAULT 0,
	sprint_id INTEGER NOT NULL DEFAULT 0,
	week_id INTEGER,
	session_id TEXT,
	evaluated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policy_decisions_scope ON policy_decisions(project_id, sprint_id);
CREATE INDEX IF NOT EXISTS idx_policy_decisions_evaluated_at ON policy_decisions(evaluated_at);
`

const decisionColumns = `id, decision_id, policy_path, action, result, violations, warnings,
	input_json, project_id, sprint_id, week_id, session_id, evaluated_at`

// AuditStore keeps every week and sprint close decision in the SQLite
// database of the local memory store.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore wraps an open database that has AuditSchema applied.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// SaveDecision records d, filling in a decision id and timestamp if unset.
func (s *AuditStore) SaveDecision(ctx context.Context, d *Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if d.DecisionID == "" {
		d.DecisionID = uuid.NewString()
	}
	if d.EvaluatedAt.IsZero() {
		d.EvaluatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policy_decisions (decision_id, policy_path, action, result, violations, warnings,
			input_json, project_id, sprint_id, week_id, session_id, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DecisionID, d.PolicyPath, d.Action, d.Result,
		d.ViolationsJSON(), d.WarningsJSON(), d.InputJSON(),
		d.ProjectID, d.SprintID, nullInt(d.WeekID), nullString(d.SessionID),
		d.EvaluatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record %s decision: %w", d.Action, err)
	}
	return nil
}

// ListDecisionsOptions narrows ListDecisions. Zero values match everything.
type ListDecisionsOptions struct {
	Action    string
	Result    string // ResultAllow or ResultDeny
	ProjectID int64
	SprintID  int64
	WeekID    int64
	Since     time.Time
	Limit     int
}

func (o ListDecisionsOptions) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if o.Action != "" {
		add("action = ?", o.Action)
	}
	if o.Result != "" {
		add("result = ?", o.Result)
	}
	if o.ProjectID != 0 {
		add("project_id = ?", o.ProjectID)
	}
	if o.SprintID != 0 {
		add("sprint_id = ?", o.SprintID)
	}
	if o.WeekID != 0 {
		add("week_id = ?", o.WeekID)
	}
	if !o.Since.IsZero() {
		add("evaluated_at >= ?", o.Since.UTC().Format(time.RFC3339))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListDecisions returns matching decisions, newest first.
func (s *AuditStore) ListDecisions(ctx context.Context, opts ListDecisionsOptions) ([]*Decision, error) {
	where, args := opts.where()
	query := "SELECT " + decisionColumns + " FROM policy_decisions" + where + " ORDER BY evaluated_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query policy decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func scanDecision(rows *sql.Rows) (*Decision, error) {
	var (
		d                        Decision
		violations, warnings, in string
		evaluatedAt              string
		weekID                   sql.NullInt64
		sessionID                sql.NullString
	)
	if err := rows.Scan(&d.ID, &d.DecisionID, &d.PolicyPath, &d.Action, &d.Result,
		&violations, &warnings, &in, &d.ProjectID, &d.SprintID, &weekID, &sessionID, &evaluatedAt); err != nil {
		return nil, fmt.Errorf("scan policy decision: %w", err)
	}
	d.Violations = ParseStrings(violations)
	d.Warnings = ParseStrings(warnings)
	if in != "" && in != "{}" {
		var input map[string]any
		if json.Unmarshal([]byte(in), &input) == nil {
			d.Input = input
		}
	}
	if weekID.Valid {
		d.WeekID = &weekID.Int64
	}
	d.SessionID = sessionID.String
	d.EvaluatedAt, _ = time.Parse(time.RFC3339, evaluatedAt)
	return &d, nil
}

// Tally counts decisions per action.
type Tally struct {
	Action  string `json:"action"`
	Allowed int    `json:"allowed"`
	Denied  int    `json:"denied"`
}

// TallyDecisions counts the decisions matching opts by action. Limit is
// ignored.
func (s *AuditStore) TallyDecisions(ctx context.Context, opts ListDecisionsOptions) ([]Tally, error) {
	where, args := opts.where()
	rows, err := s.db.QueryContext(ctx, `
		SELECT action,
		       SUM(CASE WHEN result = 'allow' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN result = 'deny' THEN 1 ELSE 0 END)
		FROM policy_decisions`+where+`
		GROUP BY action ORDER BY action`, args...)
	if err != nil {
		return nil, fmt.Errorf("tally policy decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Tally
	for rows.Next() {
		var t Tally
		if err := rows.Scan(&t.Action, &t.Allowed, &t.Denied); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PruneOldDecisions deletes decisions evaluated more than olderThan ago.
func (s *AuditStore) PruneOldDecisions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, "DELETE FROM policy_decisions WHERE evaluated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune policy decisions: %w", err)
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
