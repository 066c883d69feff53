/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/josephgoksu/PlanWing/internal/config"
	"github.com/josephgoksu/PlanWing/internal/logger"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	"github.com/josephgoksu/PlanWing/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// cfgFile is the path to the configuration file.
	cfgFile string
	// verbose enables verbose output.
	verbose bool
	// version is the application version.
	version = "0.3.0"

	// cfg is loaded once per invocation by the root PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "planwing",
	Short: "PlanWing - weekly sprint planning from the terminal",
	Long: `PlanWing plans a sprint week by week.

Tasks live in the sprint backlog or in a week. Drag them between weeks in
the board TUI, close a week and carry its unfinished tasks into the next
one, and close the sprint once everything is done.

Quick start:
  planwing init --base-url https://planner.example.com --project 12
  planwing board
  planwing board --tui`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.HandlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		HandleFatalError(err)
	}
}

// GetVersion returns the application version.
func GetVersion() string {
	return version
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./.planwing/.planwing.yaml, ./.planwing.yaml or $HOME/.planwing.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "output machine-readable JSON")
	rootCmd.PersistentFlags().Bool("quiet", false, "print only what scripts need")
	rootCmd.PersistentFlags().Int64("project", 0, "project id (overrides project.id)")
	bindFlags()
}

// bindFlags binds the persistent flags to Viper.
func bindFlags() {
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("project.id", rootCmd.PersistentFlags().Lookup("project"))
}

// initConfig reads the config sources, installs the logger and fills the
// crash context. Telemetry stays off unless both the config flag is set and
// the user consented.
func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	loaded, err := config.Load(v)
	if err != nil {
		return err
	}

	level := loaded.Log.Level
	if verbose {
		level = "debug"
	}
	if _, err := logger.Setup(level, loaded.Log.Format, os.Stderr); err != nil {
		return err
	}

	if dir, err := config.GetGlobalConfigDir(); err == nil {
		logger.SetBasePath(dir)
	}
	logger.SetVersion(version)
	logger.SetCommand(cmd.CommandPath())
	logger.SetLastInput(strings.Join(args, " "))
	logger.SetProject(loaded.Project.ID)

	if loaded.Telemetry.Enabled {
		loaded.Telemetry.Enabled = telemetryConsented()
	}
	cfg = loaded
	return nil
}

// telemetryConsented asks once on a terminal and otherwise reports the
// stored answer.
func telemetryConsented() bool {
	if isJSON() || isQuiet() || !ui.IsInteractive() {
		state, err := telemetry.Load()
		return err == nil && state.IsEnabled()
	}
	enabled, err := telemetry.CheckAndPromptConsent()
	if err != nil {
		LogError("telemetry consent", err)
		return false
	}
	return enabled
}
