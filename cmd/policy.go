/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/PlanWing/internal/memory"
	"github.com/josephgoksu/PlanWing/internal/policy"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// policyCmd represents the policy parent command
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and test the role policies",
	Long: `Manage the Open Policy Agent (OPA) policies that gate closing weeks
and sprints.

Policies are written in Rego, package planwing.policy, and stored in
.planwing/policies/*.rego. A deny rule blocks the action; a warn rule is
reported but never blocks.

Examples:
  planwing policy list
  planwing policy test
  planwing policy check --action close_week --role INTERN
  planwing policy decisions --result deny`,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded policies",
	Args:  cobra.NoArgs,
	RunE:  runPolicyList,
}

var policyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the *_test.rego policy tests",
	Args:  cobra.NoArgs,
	RunE:  runPolicyTest,
}

var policyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run an action against the policies",
	Long: `Evaluate a hypothetical action without touching the server.

Examples:
  planwing policy check --action close_sprint --role MENTOR
  planwing policy check --action close_week --role INTERN --week-end 2025-01-12`,
	Args: cobra.NoArgs,
	RunE: runPolicyCheck,
}

var policyDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show recorded policy decisions",
	Args:  cobra.NoArgs,
	RunE:  runPolicyDecisions,
}

var (
	policyCheckAction  string
	policyCheckRoles   []string
	policyCheckWeekEnd string

	policyTestRun string

	policyDecisionsAction string
	policyDecisionsResult string
	policyDecisionsSprint int64
	policyDecisionsWeek   int64
	policyDecisionsLimit  int
	policyDecisionsPrune  time.Duration
	policyDecisionsTally  bool
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyTestCmd, policyCheckCmd, policyDecisionsCmd)

	policyTestCmd.Flags().StringVar(&policyTestRun, "run", "", "only tests whose name matches this regular expression")

	policyCheckCmd.Flags().StringVar(&policyCheckAction, "action", policy.ActionCloseWeek, "action to evaluate (close_week, close_sprint)")
	policyCheckCmd.Flags().StringSliceVar(&policyCheckRoles, "role", nil, "caller role, repeatable")
	policyCheckCmd.Flags().StringVar(&policyCheckWeekEnd, "week-end", "", "week end date for close_week (YYYY-MM-DD)")

	policyDecisionsCmd.Flags().StringVar(&policyDecisionsAction, "action", "", "only this action")
	policyDecisionsCmd.Flags().StringVar(&policyDecisionsResult, "result", "", "only allow or deny")
	policyDecisionsCmd.Flags().Int64Var(&policyDecisionsSprint, "sprint", 0, "only decisions for this sprint id")
	policyDecisionsCmd.Flags().Int64Var(&policyDecisionsWeek, "week", 0, "only decisions for this week id")
	policyDecisionsCmd.Flags().IntVar(&policyDecisionsLimit, "limit", 20, "maximum number of decisions")
	policyDecisionsCmd.Flags().BoolVar(&policyDecisionsTally, "tally", false, "count allowed and denied decisions per action instead of listing them")
	policyDecisionsCmd.Flags().DurationVar(&policyDecisionsPrune, "prune", 0, "delete decisions older than this first, e.g. 720h")
}

func policiesDir() (string, error) {
	c, err := loadConfig()
	if err != nil {
		return "", err
	}
	return c.PoliciesDir(), nil
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	dir, err := policiesDir()
	if err != nil {
		return err
	}
	policies, err := policy.NewLoader(afero.NewOsFs(), dir).LoadAll()
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}

	if isJSON() {
		return printJSON(map[string]any{
			"policies_dir": dir,
			"count":        len(policies),
			"policies":     policies,
		})
	}

	if len(policies) == 0 {
		cmd.Println("No policies loaded - every action is allowed.")
		cmd.Println("Run 'planwing init' to create the sample role policy.")
		return nil
	}

	cmd.Printf("Policies directory: %s\n", dir)
	cmd.Printf("Loaded %d policy file(s):\n\n", len(policies))
	for _, p := range policies {
		cmd.Printf("  • %s [%s] (%s)\n", p.Name, p.Package, p.Path)
	}
	return nil
}

func runPolicyTest(cmd *cobra.Command, args []string) error {
	dir, err := policiesDir()
	if err != nil {
		return err
	}

	summary, err := policy.NewTestRunner(afero.NewOsFs(), dir).Only(policyTestRun).Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run tests: %w", err)
	}

	if isJSON() {
		if err := printJSON(summary); err != nil {
			return err
		}
	} else {
		for _, r := range summary.Results {
			switch r.Outcome {
			case policy.OutcomeError:
				cmd.Printf("  ✗ %s: %s\n", r.Name, r.Error)
			case policy.OutcomeFail:
				cmd.Printf("  ✗ %s (%s)\n", r.Name, r.File)
				for _, note := range r.Notes {
					cmd.Printf("      %s\n", note)
				}
			case policy.OutcomeSkip:
				cmd.Printf("  - %s (skipped)\n", r.Name)
			default:
				cmd.Printf("  ✓ %s\n", r.Name)
			}
		}
		cmd.Print(summary.FormatSummary())
	}

	if !summary.AllPassed() {
		return fmt.Errorf("policy tests failed: %d failed, %d errored",
			summary.Counts[policy.OutcomeFail], summary.Counts[policy.OutcomeError])
	}
	return nil
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := policy.NewEngine(policy.EngineConfig{PoliciesDir: c.PoliciesDir(), Fs: afero.NewOsFs()})
	if err != nil {
		return fmt.Errorf("create policy engine: %w", err)
	}

	decision, err := engine.Evaluate(cmd.Context(), policy.Request{
		Action:    policyCheckAction,
		Roles:     policyCheckRoles,
		ProjectID: c.Project.ID,
		WeekEnd:   policyCheckWeekEnd,
	})
	if err != nil {
		return fmt.Errorf("evaluate policies: %w", err)
	}

	if isJSON() {
		if err := printJSON(map[string]any{
			"status":      decision.Result,
			"mode":        "dry-run",
			"decision_id": decision.DecisionID,
			"action":      policyCheckAction,
			"roles":       policyCheckRoles,
			"violations":  decision.Violations,
			"warnings":    decision.Warnings,
		}); err != nil {
			return err
		}
	} else {
		cmd.Printf("Checking %s for roles [%s] against %d policy file(s)...\n\n",
			policyCheckAction, strings.Join(policyCheckRoles, ", "), engine.PolicyCount())
		for _, w := range decision.Warnings {
			cmd.Printf("  ⚠ %s\n", w)
		}
		if decision.IsAllowed() {
			cmd.Println("✓ Allowed")
			return nil
		}
		cmd.Println("✗ Denied:")
		for _, v := range decision.Violations {
			cmd.Printf("  %s\n", v)
		}
	}

	if !decision.IsAllowed() {
		return fmt.Errorf("policy check failed with %d violation(s)", len(decision.Violations))
	}
	return nil
}

func runPolicyDecisions(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := memory.NewSQLiteStore(c.MemoryBasePath())
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer func() { _ = store.Close() }()

	audit := policy.NewAuditStore(store.DB())
	ctx := cmd.Context()
	if policyDecisionsPrune > 0 {
		n, err := audit.PruneOldDecisions(ctx, policyDecisionsPrune)
		if err != nil {
			return fmt.Errorf("prune decisions: %w", err)
		}
		LogError(fmt.Sprintf("pruned %d decision(s)", n), nil)
	}

	opts := policy.ListDecisionsOptions{
		Action:    policyDecisionsAction,
		Result:    policyDecisionsResult,
		ProjectID: c.Project.ID,
		SprintID:  policyDecisionsSprint,
		WeekID:    policyDecisionsWeek,
		Limit:     policyDecisionsLimit,
	}
	if policyDecisionsTally {
		tally, err := audit.TallyDecisions(ctx, opts)
		if err != nil {
			return fmt.Errorf("tally decisions: %w", err)
		}
		if isJSON() {
			return printJSON(tally)
		}
		for _, t := range tally {
			cmd.Printf("%-14s ✓ %-4d ✗ %d\n", t.Action, t.Allowed, t.Denied)
		}
		return nil
	}

	decisions, err := audit.ListDecisions(ctx, opts)
	if err != nil {
		return fmt.Errorf("list decisions: %w", err)
	}

	if isJSON() {
		return printJSON(decisions)
	}
	if len(decisions) == 0 {
		cmd.Println("No policy decisions recorded.")
		return nil
	}
	for _, d := range decisions {
		mark := "✓"
		if !d.IsAllowed() {
			mark = "✗"
		}
		cmd.Printf("%s %s %-12s %s\n", mark, d.EvaluatedAt.Local().Format(time.DateTime), d.Action, d.DecisionID)
		for _, v := range d.Violations {
			cmd.Printf("    %s\n", v)
		}
	}
	return nil
}
