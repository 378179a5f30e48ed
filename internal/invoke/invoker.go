package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/claimpilot/internal/cache"
	"github.com/dativo-io/claimpilot/internal/dedupe"
)

// Default TTLs. Image-keyed entries may cache longer because the input
// artifact is immutable once uploaded.
const (
	DefaultTTL  = 7 * 24 * time.Hour
	MaxImageTTL = 30 * 24 * time.Hour
)

// Request describes one cache-worthy AI call.
type Request struct {
	Route      string
	OrgID      string
	LeadID     string
	ClaimID    string
	Input      any           // hashed into the deterministic key
	TTL        time.Duration // 0 = DefaultTTL; capped at MaxImageTTL for image-keyed calls
	ImageKeyed bool
}

// Result is the outcome of an Invoker.Do call.
type Result struct {
	Value  json.RawMessage
	Cached bool
	Key    string
}

// Invoker composes the control stack around a model call:
// cache (outer) → dedupe (inner) → recorder (wrapping the real call).
// Cache-outer means a hit never enters dedupe; dedupe-inner means concurrent
// misses on the same key dogpile into a single real call.
//
// Failure semantics: a failure inside fn propagates after being recorded.
// A failure in cache or key bookkeeping never propagates; the call degrades
// to invoking fn directly.
type Invoker struct {
	cache    cache.Store
	dedupe   *dedupe.Coordinator
	recorder *Recorder
}

// New creates an invoker. cacheStore may be cache.Noop{} when no backing
// store is configured; coordinator must be non-nil.
func New(cacheStore cache.Store, coordinator *dedupe.Coordinator, recorder *Recorder) *Invoker {
	if cacheStore == nil {
		cacheStore = cache.Noop{}
	}
	return &Invoker{cache: cacheStore, dedupe: coordinator, recorder: recorder}
}

// Do runs fn through the stack. On success the serialized result is cached
// for req's TTL; errors are never cached.
func (v *Invoker) Do(ctx context.Context, req Request, fn CallFunc) (*Result, error) {
	ctx, span := tracer.Start(ctx, "invoke.do",
		trace.WithAttributes(
			attribute.String("route", req.Route),
			attribute.String("org_id", req.OrgID),
		))
	defer span.End()

	meta := CallMeta{Route: req.Route, OrgID: req.OrgID, LeadID: req.LeadID, ClaimID: req.ClaimID}

	key, err := Key(req.Route, req.Input)
	if err != nil {
		// Keying is bookkeeping; degrade to an uncached, undeduped call.
		log.Warn().Err(err).Str("route", req.Route).Msg("key_build_failed_bypassing_cache")
		span.RecordError(err)
		result, err := v.recorder.Invoke(ctx, meta, fn)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, fmt.Errorf("call for route %s returned no result", req.Route)
		}
		return &Result{Value: result.Value}, nil
	}
	span.SetAttributes(attribute.String("invoke.key", key))

	start := time.Now()
	if cached, ok := v.cache.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		v.recorder.RecordCacheHit(ctx, meta, time.Since(start))
		return &Result{Value: cached, Cached: true, Key: key}, nil
	}

	val, joined, err := v.dedupe.Do(key, func() (any, error) {
		result, err := v.recorder.Invoke(ctx, meta, fn)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, fmt.Errorf("call for route %s returned no result", req.Route)
		}
		v.cache.Set(ctx, key, result.Value, v.ttlFor(req))
		return result.Value, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if joined {
		span.SetAttributes(attribute.Bool("dedupe_joined", true))
	}

	value, ok := val.(json.RawMessage)
	if !ok {
		// Can only happen if a shared in-flight call settled abnormally.
		err := fmt.Errorf("shared call for key %s yielded no value (%T)", key, val)
		span.RecordError(err)
		return nil, err
	}
	return &Result{Value: value, Key: key}, nil
}

// InvalidateRoute drops every cached entry for one route.
func (v *Invoker) InvalidateRoute(ctx context.Context, route string) int {
	return v.cache.InvalidateByPrefix(ctx, RoutePrefix(route))
}

// CacheStats exposes the hit/set counters for observability endpoints.
func (v *Invoker) CacheStats(ctx context.Context) cache.Stats {
	return v.cache.Stats(ctx)
}

func (v *Invoker) ttlFor(req Request) time.Duration {
	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if req.ImageKeyed && ttl > MaxImageTTL {
		ttl = MaxImageTTL
	}
	return ttl
}
