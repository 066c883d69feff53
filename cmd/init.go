/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/memory"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	initBaseURL      string
	initWeekStartDay int
	initTelemetry    bool
	initNoPolicy     bool
	initForce        bool
	initGlobal       bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize PlanWing in the current directory",
	Long: `Write a starter configuration and prepare the local store.

This creates the .planwing directory with:
  • .planwing.yaml - server address, project id and planner defaults
  • policies/roles.rego - sample role policy (close_week and close_sprint
    need a MENTOR or ADMIN role) with its tests
  • memory/planner.db - carry-over history and the offline board

With --global the files go to ~/.planwing instead.

Examples:
  planwing init --base-url https://planner.example.com --project 12
  planwing init --global --week-start-day 7`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "planner server URL")
	initCmd.Flags().IntVar(&initWeekStartDay, "week-start-day", config.DefaultWeekStartDay, "first day of the week when the server sends none (1 = Monday ... 7 = Sunday)")
	initCmd.Flags().BoolVar(&initTelemetry, "telemetry", false, "enable anonymous usage events")
	initCmd.Flags().BoolVar(&initNoPolicy, "no-policy", false, "skip the sample role policy")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write to ~/.planwing instead of ./.planwing")
}

// initResult is the --json shape of init.
type initResult struct {
	ConfigFile  string   `json:"configFile"`
	PolicyFiles []string `json:"policyFiles,omitempty"`
	Store       string   `json:"store"`
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := config.ProjectDir
	if initGlobal {
		global, err := config.GetGlobalConfigDir()
		if err != nil {
			return fmt.Errorf("get global config dir: %w", err)
		}
		dir = global
	}

	written, err := config.WriteStarter(afero.NewOsFs(), dir, config.Starter{
		BaseURL:      initBaseURL,
		ProjectID:    viper.GetInt64("project.id"),
		WeekStartDay: initWeekStartDay,
		Telemetry:    initTelemetry,
		WithPolicy:   !initNoPolicy,
	}, initForce)
	if err != nil {
		var exists *config.ErrExists
		if errors.As(err, &exists) && !isJSON() {
			fmt.Println("✓ PlanWing already initialized:", exists.Path)
			fmt.Println("  Use --force to overwrite.")
			return nil
		}
		return err
	}

	storePath := filepath.Join(dir, "memory")
	store, err := memory.NewSQLiteStore(storePath)
	if err != nil {
		return fmt.Errorf("initialize local store: %w", err)
	}
	if err := store.Close(); err != nil {
		LogError("close local store", err)
	}

	if initTelemetry {
		state, err := telemetry.Load()
		if err == nil {
			state.Enable()
			err = state.Save()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save telemetry consent: %v\n", err)
		}
	}

	if isJSON() {
		return printJSON(initResult{ConfigFile: written.ConfigFile, PolicyFiles: written.PolicyFiles, Store: storePath})
	}

	fmt.Println("✓ PlanWing initialized")
	fmt.Println("")
	fmt.Println("Created:")
	fmt.Printf("  • %s\n", written.ConfigFile)
	for _, p := range written.PolicyFiles {
		fmt.Printf("  • %s\n", p)
	}
	fmt.Printf("  • %s\n", storePath)
	if initBaseURL == "" || viper.GetInt64("project.id") == 0 {
		fmt.Println("")
		fmt.Println("Next: set api.base_url and project.id in", written.ConfigFile)
	} else {
		fmt.Println("")
		fmt.Println("Next: planwing board")
	}
	return nil
}
