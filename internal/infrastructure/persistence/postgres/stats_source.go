package postgres

import (
	"context"

	"github.com/clipdeck/clipdeck/internal/domain/stats"
)

// StatsSource implements stats.Source with one aggregate query per method.
type StatsSource struct {
	conn *Connection
}

// NewStatsSource creates a new StatsSource.
func NewStatsSource(conn *Connection) *StatsSource {
	return &StatsSource{conn: conn}
}

const (
	countContentQuery = `SELECT COUNT(*) FROM content_items WHERE owner_id = $1`

	sumViewsQuery = `SELECT COALESCE(SUM(views), 0)::BIGINT FROM content_items WHERE owner_id = $1`

	countSubscribersQuery = `SELECT COUNT(*) FROM edges WHERE kind = 'FOLLOW' AND target_id = $1`

	countContentLikesQuery = `
		SELECT COUNT(*) FROM edges e
		JOIN content_items c ON c.id = e.target_id
		WHERE e.kind = 'LIKE' AND e.target_type = 'content' AND c.owner_id = $1`

	countContentCommentsQuery = `
		SELECT COUNT(*) FROM comments m
		JOIN content_items c ON c.id = m.content_id
		WHERE c.owner_id = $1`
)

func (s *StatsSource) count(ctx context.Context, op, query, ownerID string) (int64, error) {
	var n int64
	if err := s.conn.QueryRow(ctx, query, []interface{}{ownerID}, &n); err != nil {
		return 0, translate("stats", op, err, nil)
	}
	return n, nil
}

// CountContent implements stats.Source.
func (s *StatsSource) CountContent(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, "CountContent", countContentQuery, ownerID)
}

// SumViews implements stats.Source.
func (s *StatsSource) SumViews(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, "SumViews", sumViewsQuery, ownerID)
}

// CountSubscribers implements stats.Source.
func (s *StatsSource) CountSubscribers(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, "CountSubscribers", countSubscribersQuery, ownerID)
}

// CountContentLikes implements stats.Source.
func (s *StatsSource) CountContentLikes(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, "CountContentLikes", countContentLikesQuery, ownerID)
}

// CountContentComments implements stats.Source.
func (s *StatsSource) CountContentComments(ctx context.Context, ownerID string) (int64, error) {
	return s.count(ctx, "CountContentComments", countContentCommentsQuery, ownerID)
}

var _ stats.Source = (*StatsSource)(nil)
