package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/stats"
)

func unconnected(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheWithClient(client, "")
}

func TestCache_Key(t *testing.T) {
	c := unconnected(t)

	k1 := c.Key(KindChannelStats, "creator-a")
	k2 := c.Key(KindChannelStats, "creator-b")

	assert.True(t, strings.HasPrefix(k1, "clipdeck:stats:"))
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, c.Key(KindChannelStats, "creator-a"), "keys are stable")
	assert.Len(t, strings.TrimPrefix(k1, "clipdeck:stats:"), 32)
	assert.NotContains(t, k1, "creator-a")
}

func TestCache_ArgumentValidation(t *testing.T) {
	c := unconnected(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Second), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Second), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", &struct{}{}), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))

	_, err := c.DeleteKind(ctx, " ")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

// liveCache connects to REDIS_ADDR or skips the test.
func liveCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.Namespace = "clipdeck-test"
	c, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = c.DeleteKind(context.Background(), KindChannelStats)
		_ = c.Close()
	})
	return c
}

func TestStatsCache_RoundTrip(t *testing.T) {
	c := liveCache(t)
	sc := NewStatsCache(c, time.Minute)
	ctx := context.Background()

	_, err := sc.GetChannelStats(ctx, "creator-a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := &stats.ChannelStats{VideoCount: 3, TotalViews: 42, SubscriberCount: 7, LikeCount: 5, CommentCount: 1}
	require.NoError(t, sc.SetChannelStats(ctx, "creator-a", want))

	got, err := sc.GetChannelStats(ctx, "creator-a")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, sc.InvalidateChannelStats(ctx, "creator-a"))
	_, err = sc.GetChannelStats(ctx, "creator-a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStatsCache_DeleteKind(t *testing.T) {
	c := liveCache(t)
	sc := NewStatsCache(c, 0)
	ctx := context.Background()

	for _, owner := range []string{"a", "b", "c"} {
		require.NoError(t, sc.SetChannelStats(ctx, owner, &stats.ChannelStats{VideoCount: 1}))
	}
	n, err := c.DeleteKind(ctx, KindChannelStats)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
