package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runClaim  string
	runOrg    string
	runFormat string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automation pipeline for one claim",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runClaim, "claim", "", "Claim ID (required)")
	runCmd.Flags().StringVar(&runOrg, "org", "", "Org ID (required)")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Output format: text or json")
	_ = runCmd.MarkFlagRequired("claim")
	_ = runCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, span := tracer.Start(cmd.Context(), "run")
	defer span.End()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.engine.Run(ctx, runClaim, runOrg)

	out := cmd.OutOrStdout()
	if runFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Claim %s: %d trigger(s), %d action(s) executed\n",
			result.ClaimID, len(result.Triggers), result.ActionsExecuted)
		for _, t := range result.Triggers {
			fmt.Fprintf(out, "  [%s] %s: %s\n", t.Severity, t.Type, t.Reason)
		}
		for _, r := range result.Results {
			fmt.Fprintf(out, "    %s -> %s", r.ActionType, r.Status)
			if r.Error != "" {
				fmt.Fprintf(out, " (%s)", r.Error)
			}
			fmt.Fprintln(out)
		}
	}

	if !result.Success {
		return fmt.Errorf("automation pipeline failed: %v", result.Errors)
	}
	return nil
}
