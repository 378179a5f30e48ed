// Package tenant provides the per-org registry: prepaid AI balances, request
// rate limits, and cache TTL overrides. The registry is the BalanceReader
// behind automatic model selection.
package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dativo-io/claimpilot/internal/invoke"
)

var (
	ErrOrgNotFound       = errors.New("org not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// MaxCacheTTL caps per-org cache TTL overrides.
const MaxCacheTTL = 30 * 24 * time.Hour

// Org holds per-org configuration.
type Org struct {
	ID                string
	DisplayName       string
	PrepaidBalanceUSD float64       // prepaid AI spend for the current month; 0 means unfunded
	RateLimit         int           // requests per second; 0 means no limit
	CacheTTL          time.Duration // AI cache TTL override; 0 means the default applies
}

// CostReader reports recorded AI spend for an org over a time window.
// Satisfied by *invoke.Store.
type CostReader interface {
	CostTotal(ctx context.Context, orgID string, from, to time.Time) (float64, error)
}

var _ CostReader = (*invoke.Store)(nil)

// Registry is an in-memory org registry. Orgs are loaded at startup; the
// registry answers balance, rate limit, and TTL questions at request time.
type Registry struct {
	orgs     map[string]*Org
	limiters map[string]*rate.Limiter
	costs    CostReader
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRegistry creates a registry over the given orgs. costs may be nil, in
// which case RemainingBalance reports the full prepaid amount.
func NewRegistry(orgs []Org, costs CostReader) *Registry {
	r := &Registry{
		orgs:     make(map[string]*Org),
		limiters: make(map[string]*rate.Limiter),
		costs:    costs,
		now:      time.Now,
	}
	for i := range orgs {
		o := &orgs[i]
		r.orgs[o.ID] = o
		if o.RateLimit > 0 {
			r.limiters[o.ID] = rate.NewLimiter(rate.Limit(o.RateLimit), o.RateLimit*2) // burst = 2s worth
		}
	}
	return r
}

// SetClock overrides the registry's notion of now. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Org returns the org config, or ErrOrgNotFound.
func (r *Registry) Org(orgID string) (*Org, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orgs[orgID]
	if !ok {
		return nil, ErrOrgNotFound
	}
	return o, nil
}

// Allow checks the org's request rate limit. Unknown orgs are rejected with
// ErrOrgNotFound; orgs without a configured limit always pass.
func (r *Registry) Allow(orgID string) error {
	r.mu.RLock()
	_, ok := r.orgs[orgID]
	lim := r.limiters[orgID]
	r.mu.RUnlock()
	if !ok {
		return ErrOrgNotFound
	}
	if lim != nil && !lim.Allow() {
		return ErrRateLimitExceeded
	}
	return nil
}

// RemainingBalance reports the org's prepaid balance minus the AI spend
// recorded so far this calendar month (UTC). It never goes below zero.
func (r *Registry) RemainingBalance(ctx context.Context, orgID string) (float64, error) {
	o, err := r.Org(orgID)
	if err != nil {
		return 0, err
	}
	if r.costs == nil {
		return o.PrepaidBalanceUSD, nil
	}

	now := r.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	spent, err := r.costs.CostTotal(ctx, orgID, monthStart, monthEnd)
	if err != nil {
		return 0, err
	}
	remaining := o.PrepaidBalanceUSD - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CacheTTL returns the org's cache TTL override capped at MaxCacheTTL, or
// fallback when the org has no override or does not exist.
func (r *Registry) CacheTTL(orgID string, fallback time.Duration) time.Duration {
	o, err := r.Org(orgID)
	if err != nil || o.CacheTTL <= 0 {
		return fallback
	}
	if o.CacheTTL > MaxCacheTTL {
		return MaxCacheTTL
	}
	return o.CacheTTL
}
