/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/spf13/cobra"
)

var (
	boardOffline bool
	boardTUI     bool
)

// boardCmd shows the sprint board.
var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the sprint board",
	Long: `Show the backlog and every week of the current sprint.

With --tui the board opens as an interactive view: move with the arrow keys,
press space to pick a task and space again on another column to drop it.

With --offline the last board saved locally is shown. It is read-only.

Examples:
  planwing board
  planwing board --tui
  planwing board --offline --json`,
	Args: cobra.NoArgs,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().BoolVar(&boardOffline, "offline", false, "show the last locally saved board")
	boardCmd.Flags().BoolVar(&boardTUI, "tui", false, "open the interactive board")
}

func runBoard(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, boardOffline, func(ctx context.Context, board *app.Board) error {
		if boardTUI {
			if isJSON() || !ui.IsInteractive() {
				return errors.New("--tui needs a terminal")
			}
			return ui.RunBoard(ctx, board)
		}

		v := board.View()
		if isJSON() {
			return printJSON(v)
		}
		fmt.Print(ui.RenderBoard(v))
		return nil
	})
}
