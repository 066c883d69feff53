package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func isJSON() bool {
	return viper.GetBool("json")
}

func isQuiet() bool {
	return viper.GetBool("quiet")
}

func printJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// openBoard builds the app context and loads the board, from the server or,
// when offline, from the last local snapshot.
func openBoard(ctx context.Context, offline bool, surface string) (*app.Board, *app.Context, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if !offline {
		if err := c.RequireServer(); err != nil {
			return nil, nil, err
		}
	}

	appCtx, err := app.NewContext(c, version, surface)
	if err != nil {
		return nil, nil, err
	}
	board := app.NewBoard(appCtx)

	if offline {
		err = board.LoadOffline(ctx)
	} else {
		show := !isJSON() && !isQuiet() && ui.IsInteractive()
		err = ui.WithSpinner(os.Stderr, show, "Loading board...", func() error {
			return board.Refresh(ctx)
		})
	}
	if err != nil {
		closeContext(appCtx)
		return nil, nil, err
	}
	return board, appCtx, nil
}

func closeContext(appCtx *app.Context) {
	if err := appCtx.Close(); err != nil {
		LogError("close app context", err)
	}
}

// withBoard opens the board for cmd, runs fn and records a failure event
// carrying the error code.
func withBoard(cmd *cobra.Command, offline bool, fn func(ctx context.Context, board *app.Board) error) error {
	ctx := cmd.Context()
	board, appCtx, err := openBoard(ctx, offline, surfaceOf(cmd))
	if err != nil {
		return err
	}
	defer closeContext(appCtx)

	if err := fn(ctx, board); err != nil {
		appCtx.Telemetry.CommandError(cmd.CommandPath(), string(task.CodeOf(err)))
		return err
	}
	return nil
}

// surfaceOf reports where cmd runs for telemetry.
func surfaceOf(cmd *cobra.Command) string {
	if tui, err := cmd.Flags().GetBool("tui"); err == nil && tui {
		return telemetry.SurfaceTUI
	}
	return telemetry.SurfaceCLI
}

// weekStartOf returns the start date of the week holding t, or "" for the backlog.
func weekStartOf(board *app.Board, t task.Task) string {
	if t.WeekID == nil {
		return ""
	}
	for _, w := range board.Weeks() {
		if w.ID == *t.WeekID {
			return w.WeekStart
		}
	}
	return ""
}
