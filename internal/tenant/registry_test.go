package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCostReader struct {
	spent map[string]float64
	err   error
	from  time.Time
	to    time.Time
}

func (r *stubCostReader) CostTotal(_ context.Context, orgID string, from, to time.Time) (float64, error) {
	r.from, r.to = from, to
	if r.err != nil {
		return 0, r.err
	}
	return r.spent[orgID], nil
}

func testOrgs() []Org {
	return []Org{
		{ID: "org-1", DisplayName: "Acme Public Adjusting", PrepaidBalanceUSD: 50, RateLimit: 2},
		{ID: "org-2", DisplayName: "No Limit LLC", PrepaidBalanceUSD: 10},
		{ID: "org-3", CacheTTL: 12 * time.Hour},
		{ID: "org-4", CacheTTL: 90 * 24 * time.Hour},
	}
}

func TestRegistry_Org(t *testing.T) {
	r := NewRegistry(testOrgs(), nil)

	o, err := r.Org("org-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Public Adjusting", o.DisplayName)

	_, err = r.Org("nope")
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestRegistry_Allow(t *testing.T) {
	r := NewRegistry(testOrgs(), nil)

	// org-1 allows 2/s with a burst of 4.
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Allow("org-1"))
	}
	assert.ErrorIs(t, r.Allow("org-1"), ErrRateLimitExceeded)

	// No configured limit means unlimited.
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Allow("org-2"))
	}

	assert.ErrorIs(t, r.Allow("nope"), ErrOrgNotFound)
}

func TestRegistry_RemainingBalance(t *testing.T) {
	costs := &stubCostReader{spent: map[string]float64{"org-1": 12.5}}
	r := NewRegistry(testOrgs(), costs)
	fixed := time.Date(2025, time.March, 15, 9, 30, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return fixed })

	remaining, err := r.RemainingBalance(context.Background(), "org-1")
	require.NoError(t, err)
	assert.InDelta(t, 37.5, remaining, 1e-9)

	// Spend is windowed to the current calendar month, UTC.
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), costs.from)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), costs.to)
}

func TestRegistry_RemainingBalanceFloorsAtZero(t *testing.T) {
	costs := &stubCostReader{spent: map[string]float64{"org-2": 25}}
	r := NewRegistry(testOrgs(), costs)

	remaining, err := r.RemainingBalance(context.Background(), "org-2")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestRegistry_RemainingBalanceWithoutCostReader(t *testing.T) {
	r := NewRegistry(testOrgs(), nil)

	remaining, err := r.RemainingBalance(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, remaining)
}

func TestRegistry_RemainingBalanceErrors(t *testing.T) {
	r := NewRegistry(testOrgs(), &stubCostReader{err: errors.New("db locked")})

	_, err := r.RemainingBalance(context.Background(), "org-1")
	assert.EqualError(t, err, "db locked")

	_, err = r.RemainingBalance(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestRegistry_CacheTTL(t *testing.T) {
	r := NewRegistry(testOrgs(), nil)
	fallback := 7 * 24 * time.Hour

	assert.Equal(t, fallback, r.CacheTTL("org-1", fallback), "no override")
	assert.Equal(t, 12*time.Hour, r.CacheTTL("org-3", fallback))
	assert.Equal(t, MaxCacheTTL, r.CacheTTL("org-4", fallback), "override capped")
	assert.Equal(t, fallback, r.CacheTTL("nope", fallback), "unknown org")
}
