package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	scanOrg    string
	scanFormat string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan an org's open claims and run automation on each",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanOrg, "org", "", "Org ID (required)")
	scanCmd.Flags().StringVar(&scanFormat, "format", "text", "Output format: text or json")
	_ = scanCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, span := tracer.Start(cmd.Context(), "scan")
	defer span.End()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	results, err := a.engine.RunBatch(ctx, scanOrg)
	if err != nil {
		return fmt.Errorf("scanning org %s: %w", scanOrg, err)
	}

	out := cmd.OutOrStdout()
	if scanFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	claimIDs := make([]string, 0, len(results))
	for id := range results {
		claimIDs = append(claimIDs, id)
	}
	sort.Strings(claimIDs)

	fmt.Fprintf(out, "Org %s: %d claim(s) scanned\n", scanOrg, len(results))
	for _, id := range claimIDs {
		res := results[id]
		status := "ok"
		if !res.Success {
			status = "FAILED"
		}
		fmt.Fprintf(out, "  %s: %s, %d trigger(s), %d action(s)\n",
			id, status, len(res.Triggers), res.ActionsExecuted)
	}
	return nil
}
