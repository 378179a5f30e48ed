package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelRate holds per-1K-token USD pricing for one model.
type ModelRate struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// RateTable maps model id to pricing. Injected at startup so rate changes
// don't require touching detection or mapping logic.
type RateTable map[string]ModelRate

// DefaultRateTable returns the built-in pricing with a high-accuracy tier
// and a low-cost tier.
func DefaultRateTable() RateTable {
	return RateTable{
		"gpt-4o":      {InputPer1K: 0.005, OutputPer1K: 0.015},
		"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	}
}

// Cost computes the USD cost for a call. Token counts are per-call totals;
// rates are per 1K tokens. Unknown models cost zero rather than erroring,
// so an unpriced model never blocks recording the invocation itself.
func (t RateTable) Cost(model string, tokensIn, tokensOut int) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1000*rate.InputPer1K + float64(tokensOut)/1000*rate.OutputPer1K
}

// LoadRateTable reads a YAML rate file of the form:
//
//	gpt-4o:
//	  input_per_1k: 0.005
//	  output_per_1k: 0.015
//
// Entries merge over the defaults, so a partial file only overrides the
// models it names.
func LoadRateTable(path string) (RateTable, error) {
	table := DefaultRateTable()
	if path == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rate table %s: %w", path, err)
	}

	var overrides RateTable
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing rate table %s: %w", path, err)
	}
	for model, rate := range overrides {
		table[model] = rate
	}
	return table, nil
}
