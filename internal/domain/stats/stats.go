// Package stats описывает агрегированную статистику канала и источник,
// из которого она считается.
package stats

import "context"

// ChannelStats - сводка по каналу владельца.
type ChannelStats struct {
	VideoCount      int64 `json:"videoCount"`
	TotalViews      int64 `json:"totalViews"`
	SubscriberCount int64 `json:"subscriberCount"`
	LikeCount       int64 `json:"likeCount"`
	CommentCount    int64 `json:"commentCount"`
}

// Source - пять независимых подзапросов статистики. Каждый метод
// только читает и может выполняться параллельно с остальными.
type Source interface {
	// CountContent - число публикаций владельца.
	CountContent(ctx context.Context, ownerID string) (int64, error)

	// SumViews - сумма просмотров публикаций владельца (0, если их нет).
	SumViews(ctx context.Context, ownerID string) (int64, error)

	// CountSubscribers - число рёбер FOLLOW, ведущих к владельцу.
	CountSubscribers(ctx context.Context, ownerID string) (int64, error)

	// CountContentLikes - число рёбер LIKE к любой публикации владельца.
	CountContentLikes(ctx context.Context, ownerID string) (int64, error)

	// CountContentComments - число комментариев к публикациям владельца.
	CountContentComments(ctx context.Context, ownerID string) (int64, error)
}
