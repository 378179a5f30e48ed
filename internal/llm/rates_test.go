package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTable_Cost(t *testing.T) {
	rates := DefaultRateTable()

	// 1000 in at 0.005/1K + 500 out at 0.015/1K
	assert.InDelta(t, 0.0125, rates.Cost("gpt-4o", 1000, 500), 1e-9)
	assert.InDelta(t, 0.00045, rates.Cost("gpt-4o-mini", 1000, 500), 1e-9)
}

func TestRateTable_Cost_UnknownModelIsZero(t *testing.T) {
	rates := DefaultRateTable()
	assert.Equal(t, 0.0, rates.Cost("claude-nonexistent", 1000, 500))
}

func TestRateTable_Cost_ZeroTokens(t *testing.T) {
	rates := DefaultRateTable()
	assert.Equal(t, 0.0, rates.Cost("gpt-4o", 0, 0))
}

func TestLoadRateTable_EmptyPathReturnsDefaults(t *testing.T) {
	rates, err := LoadRateTable("")
	require.NoError(t, err)
	assert.InDelta(t, 0.0125, rates.Cost("gpt-4o", 1000, 500), 1e-9)
}

func TestLoadRateTable_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	content := "gpt-4o:\n  input_per_1k: 0.010\n  output_per_1k: 0.030\ncustom-model:\n  input_per_1k: 0.001\n  output_per_1k: 0.002\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rates, err := LoadRateTable(path)
	require.NoError(t, err)

	// Overridden model uses the file's pricing.
	assert.InDelta(t, 0.025, rates.Cost("gpt-4o", 1000, 500), 1e-9)
	// New model is priced.
	assert.InDelta(t, 0.002, rates.Cost("custom-model", 1000, 500), 1e-9)
	// Untouched default survives the merge.
	assert.InDelta(t, 0.00045, rates.Cost("gpt-4o-mini", 1000, 500), 1e-9)
}

func TestLoadRateTable_MissingFile(t *testing.T) {
	_, err := LoadRateTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRateTable_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o600))

	_, err := LoadRateTable(path)
	assert.Error(t, err)
}
