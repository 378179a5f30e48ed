package invoke

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dativo-io/claimpilot/internal/llm"
	cpotel "github.com/dativo-io/claimpilot/internal/otel"
)

// CallResult is what a wrapped model call yields: the serialized artifact
// plus the usage the callee reported.
type CallResult struct {
	Value     json.RawMessage
	Model     string
	TokensIn  int
	TokensOut int
}

// CallFunc is the real underlying call wrapped by the stack.
type CallFunc func(ctx context.Context) (*CallResult, error)

// CallMeta identifies one logical invocation for the audit record.
type CallMeta struct {
	Route   string
	OrgID   string
	LeadID  string
	ClaimID string
}

// Recorder wraps a timed invocation: wall-clock duration, token counts,
// cache-hit flag, and any error go into one persisted record per call.
// Cost is computed from the injected rate table at write time.
type Recorder struct {
	store *Store
	rates llm.RateTable
}

// NewRecorder creates a recorder persisting to store with the given rates.
func NewRecorder(store *Store, rates llm.RateTable) *Recorder {
	return &Recorder{store: store, rates: rates}
}

// Invoke runs fn, measures it, and persists one record regardless of outcome.
// Errors from fn propagate to the caller after being recorded; a persistence
// failure of the record itself is logged, not raised, so bookkeeping never
// breaks the call path.
func (r *Recorder) Invoke(ctx context.Context, meta CallMeta, fn CallFunc) (*CallResult, error) {
	start := time.Now()
	result, err := fn(ctx)
	duration := time.Since(start)

	rec := &Record{
		RouteName:  meta.Route,
		OrgID:      meta.OrgID,
		LeadID:     meta.LeadID,
		ClaimID:    meta.ClaimID,
		DurationMS: duration.Milliseconds(),
	}
	if result != nil {
		rec.Model = result.Model
		rec.TokensIn = result.TokensIn
		rec.TokensOut = result.TokensOut
		rec.CostUSD = r.rates.Cost(result.Model, result.TokensIn, result.TokensOut)
	}
	if err != nil {
		rec.Error = err.Error()
	}

	r.persist(ctx, rec)
	return result, err
}

// RecordCacheHit persists a record for a call served from cache. No tokens
// were spent, so cost is zero.
func (r *Recorder) RecordCacheHit(ctx context.Context, meta CallMeta, duration time.Duration) {
	r.persist(ctx, &Record{
		RouteName:  meta.Route,
		OrgID:      meta.OrgID,
		LeadID:     meta.LeadID,
		ClaimID:    meta.ClaimID,
		DurationMS: duration.Milliseconds(),
		CacheHit:   true,
	})
}

func (r *Recorder) persist(ctx context.Context, rec *Record) {
	if r.store != nil {
		if err := r.store.Insert(ctx, rec); err != nil {
			log.Warn().Err(err).
				Str("route", rec.RouteName).
				Func(cpotel.LogTraceFields(ctx)).
				Msg("invocation_record_persist_failed")
		}
	}
	llm.RecordCostMetrics(ctx, rec.CostUSD, rec.RouteName, rec.Model, rec.CacheHit)
}
