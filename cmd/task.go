/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/app"
	"github.com/josephgoksu/PlanWing/internal/task"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/josephgoksu/PlanWing/internal/util"
	"github.com/spf13/cobra"
)

// taskCmd is the parent of the task mutations.
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, edit and move tasks",
	Long: `Create, edit and move tasks on the sprint board.

A container is "backlog", a week start date (YYYY-MM-DD) or a week id.

Examples:
  planwing task add backlog "Write the report"
  planwing task add 2025-01-06 "Standup notes" --day 1 --hours 0.5
  planwing task update 42 --deadline 2025-01-10
  planwing task move 42 2025-01-13
  planwing task done 42`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <container> <note...>",
	Short: "Create a task in the backlog or a week",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTaskAdd,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Change a task's note, day, planned hours or deadline",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskUpdate,
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <task-id> <container>",
	Short: "Move a task to the backlog or another week",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskMove,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task closed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskReopenCmd = &cobra.Command{
	Use:   "reopen <task-id>",
	Short: "Mark a closed task open again",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskReopen,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd, taskUpdateCmd, taskMoveCmd, taskDoneCmd, taskReopenCmd)

	for _, c := range []*cobra.Command{taskAddCmd, taskUpdateCmd} {
		c.Flags().Int("day", 0, "day of the week, 1 = first day of the week")
		c.Flags().Float64("hours", 0, "planned hours")
		c.Flags().String("deadline", "", "deadline (YYYY-MM-DD)")
	}
	taskUpdateCmd.Flags().String("note", "", "new note")
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		container, err := board.ContainerFor(args[0])
		if err != nil {
			return err
		}
		draft := task.Draft{Note: strings.Join(args[1:], " ")}
		if cmd.Flags().Changed("day") {
			day, _ := cmd.Flags().GetInt("day")
			draft.DayOfWeek = task.Ptr(day)
		}
		if cmd.Flags().Changed("hours") {
			hours, _ := cmd.Flags().GetFloat64("hours")
			draft.PlannedHours = task.Ptr(hours)
		}
		if cmd.Flags().Changed("deadline") {
			deadline, _ := cmd.Flags().GetString("deadline")
			draft.Deadline = task.Ptr(deadline)
		}

		t, err := board.CreateTask(ctx, container, draft)
		return printTaskResult(board, "Task created.", t, err)
	})
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	id, err := util.ParseID("task", args[0])
	if err != nil {
		return err
	}
	var changes task.Changes
	if cmd.Flags().Changed("note") {
		note, _ := cmd.Flags().GetString("note")
		changes.Note = task.Ptr(note)
	}
	if cmd.Flags().Changed("day") {
		day, _ := cmd.Flags().GetInt("day")
		changes.DayOfWeek = task.Ptr(day)
	}
	if cmd.Flags().Changed("hours") {
		hours, _ := cmd.Flags().GetFloat64("hours")
		changes.PlannedHours = task.Ptr(hours)
	}
	if cmd.Flags().Changed("deadline") {
		deadline, _ := cmd.Flags().GetString("deadline")
		changes.Deadline = task.Ptr(deadline)
	}
	if changes.IsEmpty() {
		return fmt.Errorf("nothing to update: pass --note, --day, --hours or --deadline")
	}

	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		t, err := board.UpdateTask(ctx, id, changes)
		return printTaskResult(board, "Task updated.", t, err)
	})
}

func runTaskMove(cmd *cobra.Command, args []string) error {
	id, err := util.ParseID("task", args[0])
	if err != nil {
		return err
	}
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		container, err := board.ContainerFor(args[1])
		if err != nil {
			return err
		}
		t, err := board.MoveTask(ctx, id, container)
		return printTaskResult(board, fmt.Sprintf("Task moved to %s.", container), t, err)
	})
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := util.ParseID("task", args[0])
	if err != nil {
		return err
	}
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		t, err := board.CompleteTask(ctx, id)
		return printTaskResult(board, "Task completed.", t, err)
	})
}

func runTaskReopen(cmd *cobra.Command, args []string) error {
	id, err := util.ParseID("task", args[0])
	if err != nil {
		return err
	}
	return withBoard(cmd, false, func(ctx context.Context, board *app.Board) error {
		t, err := board.ReopenTask(ctx, id)
		return printTaskResult(board, "Task reopened.", t, err)
	})
}

// printTaskResult renders the outcome of a task mutation and passes err on
// so the exit code reflects it.
func printTaskResult(board *app.Board, message string, t task.Task, err error) error {
	result := board.NewTaskResult(message, t, err)
	if isJSON() {
		if jerr := printJSON(result); jerr != nil {
			return jerr
		}
		return err
	}
	if err != nil {
		if result.Hint != "" {
			fmt.Println(ui.StyleSubtle.Render("hint: " + result.Hint))
		}
		return err
	}
	if isQuiet() {
		fmt.Println(t.ID)
		return nil
	}

	fmt.Println(ui.StyleSuccess.Render("✓ " + message))
	fmt.Println(ui.TaskTable([]task.Task{t}, weekStartOf(board, t), map[int64]string{t.ID: result.Label}).Render())
	return nil
}
