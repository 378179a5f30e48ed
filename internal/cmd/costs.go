package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/claimpilot/internal/config"
	"github.com/dativo-io/claimpilot/internal/invoke"
)

var costsOrg string

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show AI spend for an org",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "costs")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		store, err := invoke.NewStore(cfg.InvocationsDBPath())
		if err != nil {
			return fmt.Errorf("opening invocation store: %w", err)
		}
		defer store.Close()

		now := time.Now().UTC()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0)

		daily, err := store.CostTotal(ctx, costsOrg, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("cost total daily: %w", err)
		}
		monthly, err := store.CostTotal(ctx, costsOrg, monthStart, monthEnd)
		if err != nil {
			return fmt.Errorf("cost total monthly: %w", err)
		}
		byRoute, err := store.CostByRoute(ctx, costsOrg, monthStart, monthEnd)
		if err != nil {
			return fmt.Errorf("cost by route: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "AI spend for org %s\n", costsOrg)
		fmt.Fprintf(out, "  today:      $%s\n", formatCost(daily))
		fmt.Fprintf(out, "  this month: $%s\n", formatCost(monthly))
		if len(byRoute) > 0 {
			fmt.Fprintln(out, "  by route (this month):")
			routes := make([]string, 0, len(byRoute))
			for r := range byRoute {
				routes = append(routes, r)
			}
			sort.Strings(routes)
			for _, r := range routes {
				fmt.Fprintf(out, "    %-28s $%s\n", r, formatCost(byRoute[r]))
			}
		}
		return nil
	},
}

func init() {
	costsCmd.Flags().StringVar(&costsOrg, "org", "", "Org ID (required)")
	_ = costsCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(costsCmd)
}
