package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Key layout in Redis. Cache values live under the entry namespace so
// SCAN-based prefix invalidation never touches the counters.
const (
	redisEntryPrefix   = "claimpilot:cache:"
	redisHitsCounter   = "claimpilot:counters:cache-hits"
	redisSetsCounter   = "claimpilot:counters:cache-sets"
	redisScanBatchSize = 200
)

// Redis is the cross-instance Store. Every backend error degrades to a miss
// or a silent no-op with a warn log; callers never see Redis failures.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection with a ping.
// On ping failure the caller should fall back to Noop.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, redisEntryPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache_get_degraded_to_miss")
		return nil, false
	}
	if err := r.client.Incr(ctx, redisHitsCounter).Err(); err != nil {
		log.Warn().Err(err).Msg("cache_hit_counter_failed")
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, redisEntryPrefix+key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache_set_failed")
		return
	}
	if err := r.client.Incr(ctx, redisSetsCounter).Err(); err != nil {
		log.Warn().Err(err).Msg("cache_set_counter_failed")
	}
}

func (r *Redis) Exists(ctx context.Context, key string) bool {
	n, err := r.client.Exists(ctx, redisEntryPrefix+key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache_exists_failed")
		return false
	}
	return n > 0
}

func (r *Redis) Invalidate(ctx context.Context, key string) {
	if err := r.client.Del(ctx, redisEntryPrefix+key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache_invalidate_failed")
	}
}

func (r *Redis) InvalidateByPrefix(ctx context.Context, prefix string) int {
	removed := 0
	iter := r.client.Scan(ctx, 0, redisEntryPrefix+prefix+"*", redisScanBatchSize).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn().Err(err).Str("key", iter.Val()).Msg("cache_prefix_invalidate_failed")
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Str("prefix", prefix).Msg("cache_prefix_scan_failed")
	}
	return removed
}

func (r *Redis) Stats(ctx context.Context) Stats {
	hits, err := r.client.Get(ctx, redisHitsCounter).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("cache_stats_failed")
	}
	sets, err := r.client.Get(ctx, redisSetsCounter).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("cache_stats_failed")
	}
	return Stats{Hits: hits, Sets: sets}
}
