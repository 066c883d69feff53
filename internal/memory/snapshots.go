package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// SaveSnapshot replaces the stored task list of one container.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, key cache.Key, container task.ContainerID, tasks []task.Task) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO board_snapshots (project_id, sprint_id, container, tasks_json, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, sprint_id, container) DO UPDATE SET
			tasks_json = excluded.tasks_json,
			synced_at = excluded.synced_at
	`, key.ProjectID, key.SprintID, container.String(), string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", container, err)
	}
	return nil
}

// SaveBoard stores every cached container of key.
func (s *SQLiteStore) SaveBoard(ctx context.Context, c *cache.Cache, key cache.Key) error {
	for _, container := range c.Containers(key) {
		if err := s.SaveSnapshot(ctx, key, container, c.Read(key, container)); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshots returns every stored container of a sprint, backlog first.
func (s *SQLiteStore) LoadSnapshots(ctx context.Context, key cache.Key) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT container, tasks_json, synced_at FROM board_snapshots
		WHERE project_id = ? AND sprint_id = ?
		ORDER BY CASE WHEN container = 'backlog' THEN 0 ELSE 1 END, container
	`, key.ProjectID, key.SprintID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var name, data, synced string
		if err := rows.Scan(&name, &data, &synced); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		container, err := task.ParseContainer(name)
		if err != nil {
			slog.Warn("skipping snapshot with bad container", "container", name, "error", err)
			continue
		}
		var tasks []task.Task
		if err := json.Unmarshal([]byte(data), &tasks); err != nil {
			slog.Warn("skipping corrupt snapshot", "container", name, "error", err)
			continue
		}
		for i := range tasks {
			tasks[i].Normalize()
		}
		snap := Snapshot{Container: container, Tasks: tasks}
		snap.SyncedAt, _ = time.Parse(time.RFC3339, synced)
		out = append(out, snap)
	}
	if err := checkRowsErr(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// RestoreBoard writes stored snapshots of key into c. It returns the oldest
// sync time, or the zero time when nothing was stored.
func (s *SQLiteStore) RestoreBoard(ctx context.Context, c *cache.Cache, key cache.Key) (time.Time, error) {
	snaps, err := s.LoadSnapshots(ctx, key)
	if err != nil {
		return time.Time{}, err
	}
	var oldest time.Time
	for _, snap := range snaps {
		c.Write(key, snap.Container, snap.Tasks)
		if oldest.IsZero() || snap.SyncedAt.Before(oldest) {
			oldest = snap.SyncedAt
		}
	}
	return oldest, nil
}

// DeleteSnapshots drops every stored container of key.
func (s *SQLiteStore) DeleteSnapshots(ctx context.Context, key cache.Key) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM board_snapshots WHERE project_id = ? AND sprint_id = ?`, key.ProjectID, key.SprintID)
	if err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	return nil
}

// syncLayout sorts lexically in time order.
const syncLayout = "2006-01-02T15:04:05.000000000Z"

// SaveSprint stores the sprint header, its weeks and metadata.
func (s *SQLiteStore) SaveSprint(ctx context.Context, projectID int64, state SprintState) error {
	weeks := make([]task.Week, len(state.Weeks))
	for i, w := range state.Weeks {
		w.Tasks = nil
		weeks[i] = w
	}
	sprintJSON, err := json.Marshal(state.Sprint)
	if err != nil {
		return fmt.Errorf("marshal sprint: %w", err)
	}
	weeksJSON, err := json.Marshal(weeks)
	if err != nil {
		return fmt.Errorf("marshal weeks: %w", err)
	}
	metaJSON, err := json.Marshal(state.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	synced := state.SyncedAt
	if synced.IsZero() {
		synced = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sprint_snapshots (project_id, sprint_id, sprint_json, weeks_json, metadata_json, synced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, sprint_id) DO UPDATE SET
			sprint_json = excluded.sprint_json,
			weeks_json = excluded.weeks_json,
			metadata_json = excluded.metadata_json,
			synced_at = excluded.synced_at
	`, projectID, state.Sprint.ID, string(sprintJSON), string(weeksJSON), string(metaJSON), synced.UTC().Format(syncLayout))
	if err != nil {
		return fmt.Errorf("save sprint %d: %w", state.Sprint.ID, err)
	}
	return nil
}

// LatestSprint returns the most recently synced sprint of a project.
func (s *SQLiteStore) LatestSprint(ctx context.Context, projectID int64) (SprintState, bool, error) {
	var sprintJSON, weeksJSON, metaJSON, synced string
	err := s.db.QueryRowContext(ctx, `
		SELECT sprint_json, weeks_json, metadata_json, synced_at FROM sprint_snapshots
		WHERE project_id = ?
		ORDER BY synced_at DESC LIMIT 1
	`, projectID).Scan(&sprintJSON, &weeksJSON, &metaJSON, &synced)
	if errors.Is(err, sql.ErrNoRows) {
		return SprintState{}, false, nil
	}
	if err != nil {
		return SprintState{}, false, fmt.Errorf("query sprint snapshot: %w", err)
	}

	var state SprintState
	if err := json.Unmarshal([]byte(sprintJSON), &state.Sprint); err != nil {
		return SprintState{}, false, fmt.Errorf("decode sprint snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(weeksJSON), &state.Weeks); err != nil {
		return SprintState{}, false, fmt.Errorf("decode week snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &state.Metadata); err != nil {
		return SprintState{}, false, fmt.Errorf("decode metadata snapshot: %w", err)
	}
	for i := range state.Weeks {
		state.Weeks[i].Normalize()
	}
	state.SyncedAt, _ = time.Parse(syncLayout, synced)
	return state, true, nil
}
