/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/josephgoksu/PlanWing/internal/util"
	"github.com/spf13/cobra"
)

var (
	weekNoCarryOver bool
	weekCloseTasks  string
)

// weekCmd is the parent of the week commands.
var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "List, generate and close weeks",
	Long: `List, generate and close the weeks of the current sprint.

A week is given by its id or its start date (YYYY-MM-DD).

Examples:
  planwing week list
  planwing week generate
  planwing week close 2025-01-06
  planwing week close 101 --no-carry-over`,
}

var weekListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the weeks of the sprint",
	Args:  cobra.NoArgs,
	RunE:  runWeekList,
}

var weekGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the week after the last one",
	Args:  cobra.NoArgs,
	RunE:  runWeekGenerate,
}

var weekCloseCmd = &cobra.Command{
	Use:   "close <week>",
	Short: "Close a week and carry its unfinished tasks forward",
	Long: `Close a week. A closed week accepts no new tasks or edits.

Unfinished tasks are then carried into the following week, which is
generated when missing. On a terminal a checklist lets you pick them;
--no-carry-over skips this step.`,
	Args: cobra.ExactArgs(1),
	RunE: runWeekClose,
}

func init() {
	rootCmd.AddCommand(weekCmd)
	weekCmd.AddCommand(weekListCmd, weekGenerateCmd, weekCloseCmd)

	weekCloseCmd.Flags().BoolVar(&weekNoCarryOver, "no-carry-over", false, "close without carrying tasks over")
	weekCloseCmd.Flags().StringVar(&weekCloseTasks, "tasks", "", "comma-separated task ids to carry over (default: all unfinished)")
}

func runWeekList(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		weeks := board.Weeks()
		if isJSON() {
			return printJSON(weeks)
		}
		if len(weeks) == 0 {
			fmt.Println("No weeks yet. Run 'planwing week generate'.")
			return nil
		}

		meta := board.Metadata()
		tbl := &ui.Table{Headers: []string{"ID", "Start", "End", "Tasks", "State"}}
		for _, w := range weeks {
			label, row := "open", ui.RowNormal
			if w.IsClosed {
				label, row = "closed", ui.RowMuted
			}
			if meta.CurrentWeekID != nil && *meta.CurrentWeekID == w.ID {
				label += ", current"
				row = ui.RowCurrent
			}
			tbl.AddRow(row,
				strconv.FormatInt(w.ID, 10),
				w.WeekStart,
				w.WeekEnd,
				strconv.Itoa(len(board.Tasks(w.Container()))),
				label,
			)
		}
		fmt.Println(tbl.Render())
		return nil
	})
}

func runWeekGenerate(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		w, err := board.GenerateNextWeek(ctx)
		if err != nil {
			return err
		}
		if isJSON() {
			return printJSON(w)
		}
		if isQuiet() {
			fmt.Println(w.ID)
			return nil
		}
		fmt.Println(ui.StyleSuccess.Render(fmt.Sprintf("✓ Generated week %d: %s → %s", w.ID, w.WeekStart, w.WeekEnd)))
		return nil
	})
}

// weekCloseOutput is the --json shape of week close.
type weekCloseOutput struct {
	Closed    app.WeekClosed       `json:"closed"`
	CarryOver *app.CarryOverResult `json:"carryOver,omitempty"`
}

func runWeekClose(cmd *cobra.Command, args []string) error {
	var ids []int64
	if strings.TrimSpace(weekCloseTasks) != "" {
		parsed, err := util.ParseIDList("task", weekCloseTasks)
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
		closed, err := board.CloseWeek(ctx, w.ID)
		if err != nil {
			return err
		}
		if !isJSON() && !isQuiet() {
			fmt.Println(ui.StyleSuccess.Render(fmt.Sprintf("✓ Closed week of %s (%d tasks, %d unfinished)", closed.Week.WeekStart, len(closed.Tasks), closed.OpenTasks)))
			if closed.NextWeek != nil {
				fmt.Printf("Next week: %s to %s\n", closed.NextWeek.WeekStart, closed.NextWeek.WeekEnd)
			}
		}

		out := weekCloseOutput{Closed: closed}
		if weekNoCarryOver || closed.OpenTasks == 0 {
			if isJSON() {
				return printJSON(out)
			}
			return nil
		}

		res, ok, err := carryOverFrom(ctx, board, w.ID, ids)
		if err != nil {
			// The week stays closed; 'planwing carryover' can be run again.
			return fmt.Errorf("week closed, carry-over failed: %w", err)
		}
		if !ok {
			fmt.Println("Carry-over skipped. Run 'planwing carryover " + closed.Week.WeekStart + "' later.")
			return nil
		}
		if isJSON() {
			out.CarryOver = &res
			return printJSON(out)
		}
		return printCarryOver(board, res)
	})
}
