// Package memory is the local SQLite store: carry-over provenance, board
// snapshots for offline viewing and the policy decision audit trail.
package memory

import (
	"context"
	"time"

	"github.com/josephgoksu/PlanWing/internal/cache"
	"github.com/josephgoksu/PlanWing/internal/carryover"
	"github.com/josephgoksu/PlanWing/internal/task"
)

// Store defines the local persistence used by the board.
type Store interface {
	// RecordCarryOver upserts provenance rows for carried tasks.
	RecordCarryOver(ctx context.Context, origins []carryover.Origin) error

	// CarryOverOrigins returns provenance for the given task ids. Nil ids
	// returns every row.
	CarryOverOrigins(ctx context.Context, taskIDs []int64) ([]carryover.Origin, error)

	// SaveSnapshot replaces the stored task list of one container.
	SaveSnapshot(ctx context.Context, key cache.Key, container task.ContainerID, tasks []task.Task) error

	// LoadSnapshots returns every stored container of a sprint.
	LoadSnapshots(ctx context.Context, key cache.Key) ([]Snapshot, error)

	// SaveSprint stores the sprint header, its weeks and metadata.
	SaveSprint(ctx context.Context, projectID int64, state SprintState) error

	// LatestSprint returns the most recently synced sprint of a project.
	LatestSprint(ctx context.Context, projectID int64) (SprintState, bool, error)

	// Close releases the database.
	Close() error
}

// Snapshot is the last synced content of one container.
type Snapshot struct {
	Container task.ContainerID
	Tasks     []task.Task
	SyncedAt  time.Time
}

// SprintState is the sprint-level part of a synced board.
type SprintState struct {
	Sprint   task.Sprint
	Weeks    []task.Week
	Metadata task.Metadata
	SyncedAt time.Time
}

var _ Store = (*SQLiteStore)(nil)
