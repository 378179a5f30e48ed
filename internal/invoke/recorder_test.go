package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/claimpilot/internal/llm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "invocations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecorder_PersistsSuccessfulCall(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := NewRecorder(store, llm.DefaultRateTable())

	meta := CallMeta{Route: "financial-analysis", OrgID: "org-1", ClaimID: "c1"}
	result, err := rec.Invoke(ctx, meta, func(context.Context) (*CallResult, error) {
		return &CallResult{
			Value:     json.RawMessage(`{"analysis":"done"}`),
			Model:     "gpt-4o",
			TokensIn:  1000,
			TokensOut: 500,
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"analysis":"done"}`), result.Value)

	records, err := store.List(ctx, "org-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "financial-analysis", records[0].RouteName)
	assert.Equal(t, "c1", records[0].ClaimID)
	assert.Equal(t, "gpt-4o", records[0].Model)
	assert.Equal(t, 1000, records[0].TokensIn)
	assert.Equal(t, 500, records[0].TokensOut)
	assert.False(t, records[0].CacheHit)
	assert.Empty(t, records[0].Error)
	// Cost recomputed at write time: 1000/1K*0.005 + 500/1K*0.015
	assert.InDelta(t, 0.0125, records[0].CostUSD, 1e-9)
}

func TestRecorder_PersistsFailedCall(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := NewRecorder(store, llm.DefaultRateTable())

	wantErr := errors.New("model timeout")
	_, err := rec.Invoke(ctx, CallMeta{Route: "weather-forensics", OrgID: "org-1"},
		func(context.Context) (*CallResult, error) { return nil, wantErr })
	assert.ErrorIs(t, err, wantErr)

	// The failure is a record too.
	records, err := store.List(ctx, "org-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "model timeout", records[0].Error)
	assert.Equal(t, 0.0, records[0].CostUSD)
	assert.Empty(t, records[0].Model)
}

func TestRecorder_UnknownModelCostsZero(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := NewRecorder(store, llm.DefaultRateTable())

	_, err := rec.Invoke(ctx, CallMeta{Route: "r", OrgID: "org-1"},
		func(context.Context) (*CallResult, error) {
			return &CallResult{Value: json.RawMessage(`{}`), Model: "unpriced", TokensIn: 999, TokensOut: 999}, nil
		})
	require.NoError(t, err)

	records, err := store.List(ctx, "org-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].CostUSD)
}

func TestRecorder_RecordCacheHit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rec := NewRecorder(store, llm.DefaultRateTable())

	rec.RecordCacheHit(ctx, CallMeta{Route: "financial-analysis", OrgID: "org-1", ClaimID: "c1"}, 2*time.Millisecond)

	records, err := store.List(ctx, "org-1", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].CacheHit)
	assert.Equal(t, 0.0, records[0].CostUSD)
	assert.Equal(t, 0, records[0].TokensIn)
}

func TestStore_CostTotalWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, cost := range []float64{0.01, 0.02, 0.04} {
		require.NoError(t, store.Insert(ctx, &Record{
			RouteName: "r", OrgID: "org-1", Model: "gpt-4o", CostUSD: cost,
		}))
	}
	require.NoError(t, store.Insert(ctx, &Record{RouteName: "r", OrgID: "org-2", CostUSD: 100}))

	now := time.Now().UTC()
	total, err := store.CostTotal(ctx, "org-1", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.07, total, 1e-9)

	// Outside the window nothing matches.
	total, err = store.CostTotal(ctx, "org-1", now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestStore_CostByRoute(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Insert(ctx, &Record{RouteName: "financial-analysis", OrgID: "org-1", CostUSD: 0.05}))
	require.NoError(t, store.Insert(ctx, &Record{RouteName: "financial-analysis", OrgID: "org-1", CostUSD: 0.05}))
	require.NoError(t, store.Insert(ctx, &Record{RouteName: "weather-forensics", OrgID: "org-1", CostUSD: 0.01}))

	now := time.Now().UTC()
	byRoute, err := store.CostByRoute(ctx, "org-1", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.10, byRoute["financial-analysis"], 1e-9)
	assert.InDelta(t, 0.01, byRoute["weather-forensics"], 1e-9)
}
