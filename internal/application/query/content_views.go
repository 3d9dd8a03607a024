package query

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT VIEWS
// Лента публикаций, карточка публикации и понравившееся.
// Каждая публикация дополняется профилем владельца, счётчиками лайков и
// комментариев и флагом is_liked относительно зрителя.
// ══════════════════════════════════════════════════════════════════════════════

// GetContentFeedQuery - параметры ленты.
type GetContentFeedQuery struct {
	// ViewerID - текущий пользователь (может быть пустым).
	ViewerID string

	// Options - фильтры, поиск и сортировка из запроса.
	Options pipeline.Options

	PageRequest
}

// GetContentQuery - параметры карточки публикации.
type GetContentQuery struct {
	ViewerID  string
	ContentID string
}

// GetLikedContentQuery - публикации, которые лайкнул зритель.
type GetLikedContentQuery struct {
	ViewerID string
	PageRequest
}

// ContentViews обслуживает запросы чтения публикаций.
type ContentViews struct {
	paginator *Paginator
}

// NewContentViews создаёт ContentViews.
func NewContentViews(paginator *Paginator) *ContentViews {
	return &ContentViews{paginator: paginator}
}

// withEngagement добавляет к публикации профиль владельца и счётчики.
func withEngagement(b *pipeline.Builder, viewerID string) *pipeline.Builder {
	like := pipeline.Eq("kind", string(social.KindLike))
	return b.
		JoinOwnerProfile().
		JoinCount(pipeline.Edges, "target_id", "likes_count", like).
		JoinCount(pipeline.Comments, "content_id", "comments_count").
		JoinPresence(pipeline.Edges, "target_id", "is_liked", like, pipeline.Eq("source_id", viewerID))
}

// Feed возвращает страницу публикаций. Неопубликованные видны только
// их владельцу.
func (v *ContentViews) Feed(ctx context.Context, q GetContentFeedQuery) (*Page, error) {
	opts := q.Options
	if opts.OwnerID == "" || opts.OwnerID != q.ViewerID {
		opts.PublishedOnly = true
	}
	if opts.OwnerID != "" {
		if err := shared.ValidateID("query", "userId", opts.OwnerID); err != nil {
			return nil, fmt.Errorf("content_feed: %w", err)
		}
	}

	p, err := withEngagement(opts.Apply(pipeline.New(pipeline.ContentItems)), q.ViewerID).Build()
	if err != nil {
		return nil, fmt.Errorf("content_feed: %w", err)
	}
	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("content_feed: %w", err)
	}
	return page, nil
}

// Get возвращает одну публикацию. Чужая неопубликованная - NotFound.
func (v *ContentViews) Get(ctx context.Context, q GetContentQuery) (pipeline.Document, error) {
	if err := shared.ValidateID("query", "content_id", q.ContentID); err != nil {
		return nil, fmt.Errorf("get_content: %w", err)
	}
	base := pipeline.New(pipeline.ContentItems).Where("id", q.ContentID).VisibleTo(q.ViewerID)
	p, err := withEngagement(base, q.ViewerID).Build()
	if err != nil {
		return nil, fmt.Errorf("get_content: %w", err)
	}

	doc, err := v.paginator.First(ctx, p, shared.ErrContentNotFound)
	if err != nil {
		return nil, fmt.Errorf("get_content: %w", err)
	}
	return doc, nil
}

// Liked возвращает публикации, которые лайкнул зритель, от последнего лайка.
// Публикации, снятые владельцем с публикации, пропускаются; TotalItems
// считает лайки, а не видимые публикации.
func (v *ContentViews) Liked(ctx context.Context, q GetLikedContentQuery) (*Page, error) {
	if err := shared.ValidateID("query", "viewer_id", q.ViewerID); err != nil {
		return nil, fmt.Errorf("liked_content: %w", err)
	}
	p, err := pipeline.New(pipeline.Edges).
		Where("source_id", q.ViewerID).
		Where("kind", string(social.KindLike)).
		Where("target_type", string(social.TargetContent)).
		JoinExpandVisible("target_id", pipeline.ContentItems, q.ViewerID, pipeline.OwnerProfile("owner_id")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("liked_content: %w", err)
	}

	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("liked_content: %w", err)
	}

	items := make([]pipeline.Document, 0, len(page.Items))
	for _, edge := range page.Items {
		item := edge.Doc("target_id")
		if item == nil {
			continue
		}
		item = item.Clone()
		item["liked_at"] = edge["created_at"]
		items = append(items, item)
	}
	page.Items = items
	return page, nil
}
