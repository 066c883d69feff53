// Package app provides the application layer that orchestrates the planner.
// This layer sits between CLI/TUI/MCP handlers and the planner packages,
// ensuring a single source of truth for all board operations. CLI and MCP
// become thin adapters over Board.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/josephgoksu/PlanWing/internal/api"
	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/memory"
	"github.com/josephgoksu/PlanWing/internal/policy"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
)

// Server is every planner endpoint the board calls. *api.Client implements it.
type Server interface {
	CurrentSprint(ctx context.Context, projectID int64) (task.Sprint, error)
	ListAllWeeks(ctx context.Context, projectID int64, pageSize int) (api.WeekPage, error)
	GetWeek(ctx context.Context, projectID, weekID int64) (api.WeekDetail, error)
	ListBacklog(ctx context.Context, projectID, sprintID int64) ([]task.Task, error)
	GenerateWeeks(ctx context.Context, projectID int64, from, to string) (api.WeekPage, error)
	CreateTask(ctx context.Context, projectID int64, container task.ContainerID, draft task.Draft) (task.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID int64, changes task.Changes) (task.Task, error)
	MoveTask(ctx context.Context, projectID, taskID int64, to task.ContainerID) (task.Task, error)
	CarryOver(ctx context.Context, projectID, weekID int64, targetWeekStart string, taskIDs []int64) ([]task.Task, error)
	CloseWeek(ctx context.Context, projectID, weekID int64) (api.WeekDetail, error)
	CloseSprint(ctx context.Context, sprintID int64) (task.Sprint, error)
}

var _ Server = (*api.Client)(nil)

// Context holds shared dependencies for all board operations.
// Store, Gate and Telemetry are optional.
type Context struct {
	ProjectID    int64
	Server       Server
	Store        *memory.SQLiteStore
	Gate         *policy.Gate
	Telemetry    *telemetry.Recorder
	WeekStartDay int // 1 = Monday ... 7 = Sunday, used until the server sends metadata
	PageSize     int
}

// NewContext builds the dependencies described by cfg. The server client is
// only created when api.base_url is set, so offline commands still work.
// The local store is best-effort: the board runs without provenance and
// snapshots when it cannot be opened. surface tags telemetry events with
// where the command runs.
func NewContext(cfg *config.Config, version, surface string) (*Context, error) {
	if cfg.Project.ID <= 0 {
		return nil, config.ErrMissingProject
	}
	appCtx := &Context{
		ProjectID:    cfg.Project.ID,
		WeekStartDay: cfg.Planner.WeekStartDay,
		PageSize:     cfg.Planner.PageSize,
	}

	if cfg.API.BaseURL != "" {
		client, err := api.New(api.Config{
			BaseURL: cfg.API.BaseURL,
			Token:   cfg.API.Token,
			Timeout: cfg.API.Timeout,
		})
		if err != nil {
			return nil, err
		}
		appCtx.Server = client
	}

	store, err := memory.NewSQLiteStore(cfg.MemoryBasePath())
	if err != nil {
		// Non-fatal: continue without local persistence
		slog.Warn("local store unavailable", "path", cfg.MemoryBasePath(), "error", err)
	} else {
		appCtx.Store = store
	}

	engine, err := policy.NewEngine(policy.EngineConfig{PoliciesDir: cfg.PoliciesDir()})
	if err != nil {
		_ = appCtx.Close()
		return nil, fmt.Errorf("policy: %w", err)
	}
	if appCtx.Store != nil {
		appCtx.Gate = policy.NewGate(engine, policy.NewAuditStore(appCtx.Store.DB()), uuid.NewString())
	} else {
		appCtx.Gate = policy.NewGate(engine, nil, uuid.NewString())
	}
	slog.Debug("policy engine ready", "policies", engine.PolicyCount(), "dir", cfg.PoliciesDir())

	appCtx.Telemetry = telemetry.NewRecorder(telemetry.New(telemetry.Settings{
		Enabled: cfg.Telemetry.Enabled,
		APIKey:  cfg.Telemetry.APIKey,
		Version: version,
		Surface: surface,
	}))
	return appCtx, nil
}

// Close releases the store and flushes telemetry.
func (c *Context) Close() error {
	var errs []error
	if err := c.Telemetry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	return errors.Join(errs...)
}
