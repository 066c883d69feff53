/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/spf13/cobra"
)

// sprintCmd is the parent of the sprint commands.
var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Show or close the current sprint",
}

var sprintShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current sprint and its progress",
	Args:  cobra.NoArgs,
	RunE:  runSprintShow,
}

var sprintCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the current sprint",
	Long: `Close the current sprint. Every task of the sprint, in the backlog and
in every week, must be closed first.`,
	Args: cobra.NoArgs,
	RunE: runSprintClose,
}

func init() {
	rootCmd.AddCommand(sprintCmd)
	sprintCmd.AddCommand(sprintShowCmd, sprintCloseCmd)
}

// sprintOutput is the --json shape of the sprint commands.
type sprintOutput struct {
	Sprint   task.Sprint `json:"sprint"`
	Weeks    int         `json:"weeks"`
	Stats    app.Stats   `json:"stats"`
	CanClose bool        `json:"canClose"`
}

func runSprintShow(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		printSprint(board)
		return nil
	})
}

func runSprintClose(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		if _, err := board.CloseSprint(ctx); err != nil {
			return err
		}
		if !isJSON() && !isQuiet() {
			fmt.Println(ui.StyleSuccess.Render("✓ Sprint closed."))
		}
		printSprint(board)
		return nil
	})
}

func printSprint(board *app.Board) {
	v := board.View()
	out := sprintOutput{
		Sprint:   v.Sprint,
		Weeks:    len(board.Weeks()),
		Stats:    v.Stats,
		CanClose: board.CanCloseSprint(),
	}
	if isJSON() {
		_ = printJSON(out)
		return
	}
	if isQuiet() {
		fmt.Println(out.Sprint.Status)
		return
	}

	fmt.Println(ui.SprintSummary{
		Sprint:   out.Sprint,
		Weeks:    out.Weeks,
		Total:    out.Stats.Total,
		Open:     out.Stats.Open,
		Closed:   out.Stats.Closed,
		CanClose: out.CanClose,
	}.Render())
}
