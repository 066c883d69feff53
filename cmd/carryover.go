/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/josephgoksu/PlanWing/internal/util"
	"github.com/spf13/cobra"
)

var carryOverTasks string

// carryoverCmd copies unfinished tasks of a closed week into the next week.
var carryoverCmd = &cobra.Command{
	Use:   "carryover <week>",
	Short: "Carry unfinished tasks of a closed week into the next week",
	Long: `Copy the unfinished tasks of a closed week into the week after it.

The originals stay in the closed week; each copy remembers where it came
from. The next week is generated when it does not exist yet.

On a terminal a checklist lets you choose the tasks, all of them checked.
Otherwise every unfinished task is carried, or only those given with --tasks.

Examples:
  planwing carryover 2025-01-06
  planwing carryover 101 --tasks 1001,1003`,
	Args: cobra.ExactArgs(1),
	RunE: runCarryOver,
}

func init() {
	rootCmd.AddCommand(carryoverCmd)
	carryoverCmd.Flags().StringVar(&carryOverTasks, "tasks", "", "comma-separated task ids to carry over (default: all unfinished)")
}

func runCarryOver(cmd *cobra.Command, args []string) error {
	var ids []int64
	if strings.TrimSpace(carryOverTasks) != "" {
		parsed, err := util.ParseIDList("task", carryOverTasks)
		if err != nil {
			return err
		}
		ids = parsed
	}

	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		w, err := board.WeekFor(args[0])
		if err != nil {
			return err
		}
		res, ok, err := carryOverFrom(ctx, board, w.ID, ids)
		if err != nil {
			return err
		}
		if !ok {
			if !isJSON() {
				fmt.Println("Carry-over cancelled.")
			}
			return nil
		}
		return printCarryOver(board, res)
	})
}

// carryOverFrom carries the unfinished tasks of weekID forward. Without ids
// on a terminal the user picks them; ok is false when the picker was cancelled.
func carryOverFrom(ctx context.Context, board *app.Board, weekID int64, ids []int64) (app.CarryOverResult, bool, error) {
	if len(ids) > 0 || isJSON() || isQuiet() || !ui.IsInteractive() {
		res, err := board.CarryOver(ctx, weekID, ids)
		return res, err == nil, err
	}

	session, err := board.BeginCarryOver(weekID)
	if err != nil {
		return app.CarryOverResult{}, false, err
	}
	res := app.CarryOverResult{Source: session.Source(), Target: session.Target()}
	if len(session.Candidates()) == 0 {
		return res, true, nil
	}

	confirmed, err := ui.PromptCarryOver(session)
	if err != nil || !confirmed {
		return res, false, err
	}
	res.Created, err = board.ConfirmCarryOver(ctx, session)
	return res, err == nil, err
}

func printCarryOver(board *app.Board, res app.CarryOverResult) error {
	if isJSON() {
		return printJSON(res)
	}
	if isQuiet() {
		for _, t := range res.Created {
			fmt.Println(t.ID)
		}
		return nil
	}

	if len(res.Created) == 0 {
		fmt.Printf("Nothing carried over from week of %s.\n", res.Source.WeekStart)
	} else {
		fmt.Println(ui.StyleSuccess.Render(fmt.Sprintf("✓ Carried %d task(s) over to week of %s", len(res.Created), res.Target)))
		labels := make(map[int64]string, len(res.Created))
		for _, t := range res.Created {
			labels[t.ID] = board.Label(t.ID)
		}
		fmt.Println(ui.TaskTable(res.Created, res.Target, labels).Render())
	}
	if skipped := ui.SkippedIDs(res.UnknownIDs); skipped != "" {
		fmt.Println(skipped)
	}
	return nil
}
