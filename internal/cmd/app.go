package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dativo-io/claimpilot/internal/automation"
	"github.com/dativo-io/claimpilot/internal/cache"
	"github.com/dativo-io/claimpilot/internal/claims"
	"github.com/dativo-io/claimpilot/internal/config"
	"github.com/dativo-io/claimpilot/internal/dedupe"
	"github.com/dativo-io/claimpilot/internal/email"
	"github.com/dativo-io/claimpilot/internal/invoke"
	"github.com/dativo-io/claimpilot/internal/llm"
	"github.com/dativo-io/claimpilot/internal/tenant"
	"github.com/dativo-io/claimpilot/internal/trigger"
)

// app bundles the assembled pipeline for CLI commands. Close releases the
// stores in reverse construction order.
type app struct {
	cfg        *config.Config
	claims     *claims.Store
	automation *automation.Store
	invokes    *invoke.Store
	cache      cache.Store
	registry   *tenant.Registry
	engine     *automation.Engine

	closers []func() error
}

// buildApp loads config and wires the full pipeline: stores, cache, dedupe,
// recorder, invoker, selector, executors, and engine. Redis being down is
// not fatal; the cache degrades to a no-op and every AI call goes to the
// provider.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	orgs, err := loadOrgs()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	a := &app{cfg: cfg}

	a.claims, err = claims.NewStore(cfg.ClaimsDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening claims store: %w", err)
	}
	a.closers = append(a.closers, a.claims.Close)

	a.automation, err = automation.NewStore(cfg.AutomationDBPath())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening automation store: %w", err)
	}
	a.closers = append(a.closers, a.automation.Close)

	a.invokes, err = invoke.NewStore(cfg.InvocationsDBPath())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening invocation store: %w", err)
	}
	a.closers = append(a.closers, a.invokes.Close)

	a.cache = buildCache(ctx, cfg)

	rates := llm.DefaultRateTable()
	if cfg.RatesFile != "" {
		rates, err = llm.LoadRateTable(cfg.RatesFile)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("loading rate table: %w", err)
		}
	}

	a.registry = tenant.NewRegistry(orgs, a.invokes)

	recorder := invoke.NewRecorder(a.invokes, rates)
	invoker := invoke.New(a.cache, dedupe.New(), recorder)
	selector := llm.NewSelector(cfg.CapableModel, cfg.CheapModel, cfg.BudgetThresholdUSD, a.registry)
	provider := buildProvider(cfg)
	sender := email.Sender(&email.LogSender{From: cfg.EmailFrom})

	executors := automation.NewExecutors(a.automation, a.claims, a.claims,
		invoker, selector, provider, sender)
	executors.SetCacheTTLResolver(func(orgID string) time.Duration {
		return a.registry.CacheTTL(orgID, cfg.CacheTTL)
	})
	registry, err := executors.Registry()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("building executor registry: %w", err)
	}

	detector := trigger.NewDetector(a.claims)
	a.engine = automation.NewEngine(detector, a.automation, registry, nil, cfg.ScanLimit)

	return a, nil
}

// orgConfig is one org entry in claimpilot.config.yaml:
//
//	orgs:
//	  - id: org-123
//	    display_name: Acme Restoration
//	    prepaid_balance_usd: 250
//	    rate_limit: 10
type orgConfig struct {
	ID                string  `mapstructure:"id"`
	DisplayName       string  `mapstructure:"display_name"`
	PrepaidBalanceUSD float64 `mapstructure:"prepaid_balance_usd"`
	RateLimit         int     `mapstructure:"rate_limit"`
	CacheTTLDays      int     `mapstructure:"cache_ttl_days"`
}

// loadOrgs reads the orgs section of the config file. An empty or missing
// section is fine; unknown orgs then fall back to capable-model defaults.
func loadOrgs() ([]tenant.Org, error) {
	var entries []orgConfig
	if err := viper.UnmarshalKey("orgs", &entries); err != nil {
		return nil, fmt.Errorf("parsing orgs config: %w", err)
	}
	orgs := make([]tenant.Org, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("orgs config: entry without id")
		}
		orgs = append(orgs, tenant.Org{
			ID:                e.ID,
			DisplayName:       e.DisplayName,
			PrepaidBalanceUSD: e.PrepaidBalanceUSD,
			RateLimit:         e.RateLimit,
			CacheTTL:          time.Duration(e.CacheTTLDays) * 24 * time.Hour,
		})
	}
	return orgs, nil
}

func buildCache(ctx context.Context, cfg *config.Config) cache.Store {
	if cfg.RedisAddr == "" {
		log.Debug().Msg("cache_disabled_no_redis_addr")
		return cache.Noop{}
	}
	c, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis_unavailable_cache_disabled")
		return cache.Noop{}
	}
	return c
}

func buildProvider(cfg *config.Config) llm.Provider {
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("openai_api_key not set, using static provider")
		return &llm.StaticProvider{}
	}
	return llm.NewOpenAIProvider(cfg.OpenAIAPIKey)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("store_close_failed")
		}
	}
}
