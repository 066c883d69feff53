/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/mcp"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd serves the board over the Model Context Protocol.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	Long: `Serve the sprint board to AI assistants over the Model Context Protocol.

Tools:
  board   render the board or one column
  task    create, update, move, complete or reopen a task
  week    list, generate, close (with carry-over) or carry over a week
  sprint  show or close the current sprint

The server speaks JSON-RPC on stdin/stdout; logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCPServer,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	board, appCtx, err := openBoard(ctx, false, telemetry.SurfaceMCP)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	defer closeContext(appCtx)

	server := newMCPServer(board)
	slog.Info("mcp server starting", "project", appCtx.ProjectID)
	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// newMCPServer registers the planner tools against board.
func newMCPServer(board *app.Board) *mcpsdk.Server {
	impl := &mcpsdk.Implementation{
		Name:    "planwing-mcp",
		Version: version,
	}

	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintf(os.Stderr, "✓ MCP connection established\n")
			if viper.GetBool("verbose") {
				fmt.Fprintf(os.Stderr, "[DEBUG] Client initialized\n")
			}
		},
	}

	server := mcpsdk.NewServer(impl, serverOpts)

	boardTool := &mcpsdk.Tool{
		Name:        "board",
		Description: `Render the sprint board as Markdown: the backlog and every week with their tasks. Use {"refresh":true} to reload from the server, {"container":"2025-01-06"} for one column ("backlog", a week start date or a week id).`,
	}
	mcpsdk.AddTool(server, boardTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.BoardToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpResponse(mcp.HandleBoardTool(ctx, board, params.Arguments))
	})

	taskTool := &mcpsdk.Tool{
		Name:        "task",
		Description: `Change a task. action: create (container, note, optional day/planned_hours/deadline), update (task_id plus fields), move (task_id, container), complete (task_id), reopen (task_id). A container is "backlog", a week start date or a week id.`,
	}
	mcpsdk.AddTool(server, taskTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.TaskToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpResponse(mcp.HandleTaskTool(ctx, board, params.Arguments))
	})

	weekTool := &mcpsdk.Tool{
		Name:        "week",
		Description: `Week operations. action: list, generate (the week after the last one), close (week; carries unfinished tasks into the next week unless carry_over is false; task_ids limits which), carry_over (week of a closed week, optional task_ids).`,
	}
	mcpsdk.AddTool(server, weekTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.WeekToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpResponse(mcp.HandleWeekTool(ctx, board, params.Arguments))
	})

	sprintTool := &mcpsdk.Tool{
		Name:        "sprint",
		Description: `Sprint operations. action: show (status and progress), close (only when every task is closed).`,
	}
	mcpsdk.AddTool(server, sprintTool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[mcp.SprintToolParams]) (*mcpsdk.CallToolResultFor[any], error) {
		return mcpResponse(mcp.HandleSprintTool(ctx, board, params.Arguments))
	})

	return server
}

// mcpResponse turns a handler result into an MCP tool result, with IsError
// set when the handler reported a failure.
func mcpResponse(res *mcp.ToolResult, err error) (*mcpsdk.CallToolResultFor[any], error) {
	if err != nil {
		return nil, err
	}
	if res.Error == "" {
		return &mcpsdk.CallToolResultFor[any]{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Content}},
		}, nil
	}

	text := mcp.FormatError(res.Error)
	if res.Content != "" {
		text = res.Content + "\n\n" + text
	}
	return &mcpsdk.CallToolResultFor[any]{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}, nil
}
