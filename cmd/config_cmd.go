/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"

	"github.com/josephgoksu/PlanWing/internal/logger"
	"github.com/josephgoksu/PlanWing/internal/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configCmd is the parent config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage PlanWing configuration",
	Long:  `View the effective configuration and manage telemetry and crash logs.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		shown := *c
		if shown.API.Token != "" {
			shown.API.Token = "********"
		}
		if isJSON() {
			return printJSON(shown)
		}
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Printf("Config file:    %s\n", used)
		} else {
			fmt.Println("Config file:    (none, defaults and environment)")
		}
		fmt.Printf("Server:         %s\n", orDash(shown.API.BaseURL))
		fmt.Printf("Project:        %d\n", shown.Project.ID)
		fmt.Printf("Timeout:        %s\n", shown.API.Timeout)
		fmt.Printf("Week start day: %d\n", shown.Planner.WeekStartDay)
		fmt.Printf("Page size:      %d\n", shown.Planner.PageSize)
		fmt.Printf("Local store:    %s\n", c.MemoryBasePath())
		fmt.Printf("Policies:       %s\n", c.PoliciesDir())
		fmt.Printf("Telemetry:      %t\n", shown.Telemetry.Enabled)
		fmt.Printf("Log:            %s (%s)\n", shown.Log.Level, shown.Log.Format)
		return nil
	},
}

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "List crash logs, or print the newest with --last",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logs, err := logger.ListCrashLogs()
		if err != nil {
			return fmt.Errorf("list crash logs: %w", err)
		}
		if last, _ := cmd.Flags().GetBool("last"); last {
			if len(logs) == 0 {
				fmt.Println("No crash logs.")
				return nil
			}
			content, err := logger.ReadCrashLog(logs[len(logs)-1])
			if err != nil {
				return err
			}
			fmt.Print(content)
			return nil
		}
		if isJSON() {
			return printJSON(logs)
		}
		if len(logs) == 0 {
			fmt.Println("No crash logs.")
			return nil
		}
		for _, l := range logs {
			fmt.Println(l)
		}
		return nil
	},
}

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Manage telemetry settings",
	Long: `View and manage PlanWing's anonymous telemetry settings.

PlanWing can send anonymous usage events to improve the product. Task
notes, names and ids are never sent. Events are only sent when
telemetry.enabled is set in the config and you have opted in here.

Use 'planwing config telemetry status' to see current settings.`,
}

var telemetryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current telemetry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := telemetry.Load()
		if err != nil {
			return fmt.Errorf("failed to read telemetry status: %w", err)
		}
		if isJSON() {
			return printJSON(state)
		}

		if state.NeedsConsent() {
			fmt.Println("📊 Telemetry: not configured yet")
			fmt.Println("   To enable: planwing config telemetry enable")
			return nil
		}
		if state.IsEnabled() {
			fmt.Println("📊 Telemetry: enabled")
			fmt.Printf("   Anonymous ID: %s\n", state.AnonymousID)
			fmt.Println()
			fmt.Println("   To disable: planwing config telemetry disable")
		} else {
			fmt.Println("📊 Telemetry: disabled")
			fmt.Println()
			fmt.Println("   To enable: planwing config telemetry enable")
		}
		return nil
	},
}

var telemetryEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(true)
	},
}

var telemetryDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable anonymous telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTelemetry(false)
	},
}

func setTelemetry(enabled bool) error {
	state, err := telemetry.Load()
	if err != nil {
		return fmt.Errorf("failed to read telemetry status: %w", err)
	}
	if enabled {
		state.Enable()
	} else {
		state.Disable()
	}
	if err := state.Save(); err != nil {
		return fmt.Errorf("failed to save telemetry status: %w", err)
	}
	if enabled {
		fmt.Println("✅ Telemetry enabled. Thank you for helping improve PlanWing!")
	} else {
		fmt.Println("✅ Telemetry disabled.")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, crashesCmd, telemetryCmd)
	crashesCmd.Flags().Bool("last", false, "print the newest crash log")

	telemetryCmd.AddCommand(telemetryStatusCmd)
	telemetryCmd.AddCommand(telemetryEnableCmd)
	telemetryCmd.AddCommand(telemetryDisableCmd)
}
