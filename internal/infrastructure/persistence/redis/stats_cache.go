package redis

import (
	"context"
	"errors"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/stats"
	"github.com/clipdeck/clipdeck/internal/infrastructure/metrics"
)

// KindChannelStats is the key kind of cached channel statistics.
const KindChannelStats = "stats"

// TTLChannelStats bounds staleness when an invalidation is lost.
const TTLChannelStats = 5 * time.Minute

// StatsCache caches stats.ChannelStats per channel owner.
type StatsCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewStatsCache creates a StatsCache. ttl <= 0 uses TTLChannelStats.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLChannelStats
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// GetChannelStats returns the cached stats or ErrCacheMiss.
func (s *StatsCache) GetChannelStats(ctx context.Context, ownerID string) (*stats.ChannelStats, error) {
	var st stats.ChannelStats
	if err := s.cache.Get(ctx, s.cache.Key(KindChannelStats, ownerID), &st); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			metrics.StatsCacheLookups.WithLabelValues("miss").Inc()
		} else {
			metrics.StatsCacheLookups.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
	return &st, nil
}

// SetChannelStats stores stats for ownerID.
func (s *StatsCache) SetChannelStats(ctx context.Context, ownerID string, st *stats.ChannelStats) error {
	if st == nil {
		return ErrCacheNilValue
	}
	return s.cache.Set(ctx, s.cache.Key(KindChannelStats, ownerID), st, s.ttl)
}

// InvalidateChannelStats drops the cached stats of ownerID.
func (s *StatsCache) InvalidateChannelStats(ctx context.Context, ownerID string) error {
	return s.cache.Delete(ctx, s.cache.Key(KindChannelStats, ownerID))
}
