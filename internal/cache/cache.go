// Package cache provides the namespaced, TTL-bound store for AI results.
//
// All implementations degrade rather than fail: a backend error is logged
// and surfaces as a cache miss (reads) or a silent no-op (writes), so the
// system falls back to calling the real function instead of erroring.
package cache

import (
	"context"
	"time"
)

// Store is the cache contract used by the invocation stack.
type Store interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Exists reports whether key is present without counting a hit.
	Exists(ctx context.Context, key string) bool
	// Invalidate removes one key.
	Invalidate(ctx context.Context, key string)
	// InvalidateByPrefix removes every key starting with prefix
	// (e.g. "ai:financial-analysis:" to drop one route's entries).
	InvalidateByPrefix(ctx context.Context, prefix string) int
	// Stats returns the monotonically increasing hit/set counters.
	Stats(ctx context.Context) Stats
}

// Stats holds the observability counters. Hit rate = hits / (hits + sets).
type Stats struct {
	Hits int64
	Sets int64
}

// HitRate returns hits/(hits+sets), or 0 when nothing has been recorded.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Sets
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Noop is the fallback when no backing store is configured: every read is
// a miss and every write succeeds silently.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Noop) Set(context.Context, string, []byte, time.Duration) {}

func (Noop) Exists(context.Context, string) bool { return false }

func (Noop) Invalidate(context.Context, string) {}

func (Noop) InvalidateByPrefix(context.Context, string) int { return 0 }

func (Noop) Stats(context.Context) Stats { return Stats{} }
