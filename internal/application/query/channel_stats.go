package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/stats"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL STATS QUERY
// Пять независимых подзапросов выполняются параллельно; результат
// собирается после завершения всех. Канал без публикаций - все нули.
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache - необязательный кеш статистики (Redis).
type StatsCache interface {
	GetChannelStats(ctx context.Context, ownerID string) (*stats.ChannelStats, error)
	SetChannelStats(ctx context.Context, ownerID string, s *stats.ChannelStats) error
	InvalidateChannelStats(ctx context.Context, ownerID string) error
}

// GetChannelStatsQuery - параметры запроса статистики.
type GetChannelStatsQuery struct {
	OwnerID string

	// SkipCache - читать напрямую из хранилища.
	SkipCache bool
}

// Validate проверяет корректность параметров запроса.
func (q GetChannelStatsQuery) Validate() error {
	return shared.ValidateID("stats", "owner_id", q.OwnerID)
}

// ChannelStatsHandler обрабатывает запрос статистики канала.
type ChannelStatsHandler struct {
	source stats.Source
	cache  StatsCache
	log    *logger.Logger
}

// NewChannelStatsHandler создаёт обработчик. cache может быть nil.
func NewChannelStatsHandler(source stats.Source, cache StatsCache, log *logger.Logger) *ChannelStatsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ChannelStatsHandler{
		source: source,
		cache:  cache,
		log:    log.With(logger.Component("channel_stats")),
	}
}

// Handle выполняет запрос.
func (h *ChannelStatsHandler) Handle(ctx context.Context, q GetChannelStatsQuery) (*stats.ChannelStats, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("channel_stats: %w", err)
	}

	if h.cache != nil && !q.SkipCache {
		if cached, err := h.cache.GetChannelStats(ctx, q.OwnerID); err == nil && cached != nil {
			return cached, nil
		}
	}

	result, err := h.compute(ctx, q.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("channel_stats: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.SetChannelStats(ctx, q.OwnerID, result); err != nil {
			h.log.Warn("failed to cache channel stats", logger.ActorID(q.OwnerID), logger.Err(err))
		}
	}
	return result, nil
}

func (h *ChannelStatsHandler) compute(ctx context.Context, ownerID string) (*stats.ChannelStats, error) {
	var result stats.ChannelStats
	g, ctx := errgroup.WithContext(ctx)

	run := func(dst *int64, fn func(context.Context, string) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx, ownerID)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	run(&result.VideoCount, h.source.CountContent)
	run(&result.TotalViews, h.source.SumViews)
	run(&result.SubscriberCount, h.source.CountSubscribers)
	run(&result.LikeCount, h.source.CountContentLikes)
	run(&result.CommentCount, h.source.CountContentComments)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &result, nil
}
