package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSweeps(t *testing.T) {
	viper.Set("sweeps", []map[string]interface{}{
		{"org_id": "org-1", "cron": "0 7 * * *", "description": "morning sweep"},
		{"org_id": "org-2", "cron": "0 19 * * *"},
	})
	defer viper.Set("sweeps", nil)

	sweeps, err := loadSweeps()
	require.NoError(t, err)
	require.Len(t, sweeps, 2)
	assert.Equal(t, "org-1", sweeps[0].OrgID)
	assert.Equal(t, "0 7 * * *", sweeps[0].Cron)
	assert.Equal(t, "morning sweep", sweeps[0].Description)
	assert.Empty(t, sweeps[1].Description)
}

func TestLoadSweeps_MissingFields(t *testing.T) {
	viper.Set("sweeps", []map[string]interface{}{
		{"org_id": "org-1"},
	})
	defer viper.Set("sweeps", nil)

	_, err := loadSweeps()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing org_id or cron")
}

func TestLoadSweeps_EmptySection(t *testing.T) {
	viper.Set("sweeps", nil)
	sweeps, err := loadSweeps()
	require.NoError(t, err)
	assert.Empty(t, sweeps)
}

func TestLoadOrgs(t *testing.T) {
	viper.Set("orgs", []map[string]interface{}{
		{
			"id":                  "org-1",
			"display_name":        "Acme Restoration",
			"prepaid_balance_usd": 250.0,
			"rate_limit":          10,
			"cache_ttl_days":      3,
		},
		{"id": "org-2"},
	})
	defer viper.Set("orgs", nil)

	orgs, err := loadOrgs()
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Acme Restoration", orgs[0].DisplayName)
	assert.Equal(t, 250.0, orgs[0].PrepaidBalanceUSD)
	assert.Equal(t, 10, orgs[0].RateLimit)
	assert.Equal(t, 3*24*time.Hour, orgs[0].CacheTTL)
	assert.Zero(t, orgs[1].CacheTTL)
}

func TestLoadOrgs_EntryWithoutID(t *testing.T) {
	viper.Set("orgs", []map[string]interface{}{
		{"display_name": "No ID Inc"},
	})
	defer viper.Set("orgs", nil)

	_, err := loadOrgs()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry without id")
}
