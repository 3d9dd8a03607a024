// Package eventhandler содержит обработчики доменных событий.
// Обработчики - реактивная часть системы: они не меняют данные
// агрегатов, а поддерживают производные представления (кеши).
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// STATS INVALIDATION HANDLER
// Сбрасывает кеш статистики канала, когда меняется что-то, что в неё входит:
// подписки, лайки, публикации и комментарии.
// ═══════════════════════════════════════════════════════════════════════════

// StatsInvalidator - кеш, который умеет сбрасывать статистику канала.
type StatsInvalidator interface {
	InvalidateChannelStats(ctx context.Context, ownerID string) error
}

// StatsInvalidationConfig содержит конфигурацию обработчика.
type StatsInvalidationConfig struct {
	// Timeout - ограничение на один вызов кеша.
	Timeout time.Duration
}

// DefaultStatsInvalidationConfig возвращает конфигурацию по умолчанию.
func DefaultStatsInvalidationConfig() StatsInvalidationConfig {
	return StatsInvalidationConfig{Timeout: 2 * time.Second}
}

// StatsInvalidationHandler реагирует на события, влияющие на статистику.
type StatsInvalidationHandler struct {
	cache  StatsInvalidator
	logger *logger.Logger
	config StatsInvalidationConfig
}

// NewStatsInvalidationHandler создаёт обработчик.
func NewStatsInvalidationHandler(cache StatsInvalidator, log *logger.Logger, config StatsInvalidationConfig) *StatsInvalidationHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultStatsInvalidationConfig().Timeout
	}
	return &StatsInvalidationHandler{
		cache:  cache,
		logger: log.With(logger.Component("stats_invalidation")),
		config: config,
	}
}

// EventTypes - события, на которые подписывается обработчик.
func (h *StatsInvalidationHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventEdgeToggled,
		shared.EventContentCreated,
		shared.EventContentDeleted,
		shared.EventContentViewed,
		shared.EventCommentCreated,
		shared.EventCommentDeleted,
	}
}

// Register подписывает обработчик на шину.
func (h *StatsInvalidationHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range h.EventTypes() {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle реализует shared.EventHandler.
func (h *StatsInvalidationHandler) Handle(event shared.Event) error {
	ownerID := channelOf(event)
	if ownerID == "" {
		h.logger.Debug("event has no channel, skipping",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.cache.InvalidateChannelStats(ctx, ownerID); err != nil {
		// Кеш живёт с TTL, поэтому промах здесь не критичен.
		h.logger.Warn("failed to invalidate channel stats",
			logger.ActorID(ownerID),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return fmt.Errorf("invalidate stats for %s: %w", ownerID, err)
	}

	h.logger.Debug("channel stats invalidated",
		logger.ActorID(ownerID),
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}

// channelOf возвращает владельца канала, чью статистику затрагивает событие.
func channelOf(event shared.Event) string {
	switch e := event.(type) {
	case shared.EdgeToggledEvent:
		return e.ChannelID
	case shared.ContentChangedEvent:
		return e.OwnerID
	case shared.CommentChangedEvent:
		return e.ChannelID
	default:
		return ""
	}
}
