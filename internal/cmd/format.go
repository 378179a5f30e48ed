package cmd

import "fmt"

// formatCost formats cost for display: "< 0.0001" for tiny positive amounts.
func formatCost(c float64) string {
	if c < 0.0001 && c > 0 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.6f", c)
}
