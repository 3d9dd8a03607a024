package query

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// GetCommentsQuery - комментарии к публикации.
type GetCommentsQuery struct {
	ViewerID  string
	ContentID string
	PageRequest
}

// CommentViews обслуживает запросы чтения комментариев.
type CommentViews struct {
	paginator *Paginator
	items     content.ItemRepository
}

// NewCommentViews создаёт CommentViews.
func NewCommentViews(paginator *Paginator, items content.ItemRepository) *CommentViews {
	return &CommentViews{paginator: paginator, items: items}
}

// List возвращает комментарии с профилем автора и лайками.
func (v *CommentViews) List(ctx context.Context, q GetCommentsQuery) (*Page, error) {
	if err := shared.ValidateID("query", "content_id", q.ContentID); err != nil {
		return nil, fmt.Errorf("list_comments: %w", err)
	}
	if _, err := v.items.GetByID(ctx, q.ContentID); err != nil {
		return nil, fmt.Errorf("list_comments: %w", err)
	}

	like := pipeline.Eq("kind", string(social.KindLike))
	p, err := pipeline.New(pipeline.Comments).
		Where("content_id", q.ContentID).
		JoinOwnerProfile().
		JoinCount(pipeline.Edges, "target_id", "likes_count", like).
		JoinPresence(pipeline.Edges, "target_id", "is_liked", like, pipeline.Eq("source_id", q.ViewerID)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("list_comments: %w", err)
	}
	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("list_comments: %w", err)
	}
	return page, nil
}
