package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/PlanWing/internal/carryover"
)

// RecordCarryOver upserts provenance rows in one transaction.
func (s *SQLiteStore) RecordCarryOver(ctx context.Context, origins []carryover.Origin) error {
	if len(origins) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO carryover_origins (task_id, source_week_id, source_week_start, target_week_start, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			source_week_id = excluded.source_week_id,
			source_week_start = excluded.source_week_start,
			target_week_start = excluded.target_week_start,
			created_at = excluded.created_at
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range origins {
		created := o.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, o.TaskID, o.SourceWeekID, o.SourceWeekStart, o.TargetWeekStart, created.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert origin %d: %w", o.TaskID, err)
		}
	}
	return tx.Commit()
}

// CarryOverOrigins returns provenance rows ordered by task id.
func (s *SQLiteStore) CarryOverOrigins(ctx context.Context, taskIDs []int64) ([]carryover.Origin, error) {
	query := `SELECT task_id, source_week_id, source_week_start, target_week_start, created_at FROM carryover_origins`
	var args []any
	if taskIDs != nil {
		if len(taskIDs) == 0 {
			return nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(taskIDs)), ",")
		query += " WHERE task_id IN (" + placeholders + ")"
		for _, id := range taskIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY task_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query origins: %w", err)
	}
	defer rows.Close()

	var out []carryover.Origin
	for rows.Next() {
		var o carryover.Origin
		var created string
		if err := rows.Scan(&o.TaskID, &o.SourceWeekID, &o.SourceWeekStart, &o.TargetWeekStart, &created); err != nil {
			return nil, fmt.Errorf("scan origin: %w", err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, o)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}
