package query

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL VIEWS
// Профиль канала, его подписчики и подписки актора.
// ══════════════════════════════════════════════════════════════════════════════

// GetChannelQuery - профиль канала по ID или handle.
type GetChannelQuery struct {
	ViewerID  string
	ChannelID string
	Handle    string
}

// ListEdgesQuery - подписчики канала или подписки актора.
type ListEdgesQuery struct {
	ActorID string
	PageRequest
}

// ChannelViews обслуживает запросы чтения каналов.
type ChannelViews struct {
	paginator *Paginator
}

// NewChannelViews создаёт ChannelViews.
func NewChannelViews(paginator *Paginator) *ChannelViews {
	return &ChannelViews{paginator: paginator}
}

var follow = pipeline.Eq("kind", string(social.KindFollow))

// Get возвращает профиль со счётчиками и флагом is_subscribed.
func (v *ChannelViews) Get(ctx context.Context, q GetChannelQuery) (pipeline.Document, error) {
	b := pipeline.New(pipeline.Actors)
	switch {
	case q.ChannelID != "":
		if err := shared.ValidateID("query", "channel_id", q.ChannelID); err != nil {
			return nil, fmt.Errorf("get_channel: %w", err)
		}
		b.Where("id", q.ChannelID)
	case q.Handle != "":
		b.Where("handle", q.Handle)
	default:
		return nil, fmt.Errorf("get_channel: %w", shared.NewDomainError("query", "Validate", shared.ErrInvalidInput, "channel id or handle is required"))
	}

	p, err := b.
		JoinCount(pipeline.Edges, "target_id", "subscribers_count", follow).
		JoinCount(pipeline.Edges, "source_id", "subscribed_to_count", follow).
		JoinPresence(pipeline.Edges, "target_id", "is_subscribed", follow, pipeline.Eq("source_id", q.ViewerID)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("get_channel: %w", err)
	}

	doc, err := v.paginator.First(ctx, p, shared.ErrActorNotFound)
	if err != nil {
		return nil, fmt.Errorf("get_channel: %w", err)
	}
	return doc, nil
}

// Subscribers возвращает подписчиков канала, от новых к старым.
func (v *ChannelViews) Subscribers(ctx context.Context, q ListEdgesQuery) (*Page, error) {
	if err := shared.ValidateID("query", "channel_id", q.ActorID); err != nil {
		return nil, fmt.Errorf("channel_subscribers: %w", err)
	}
	p, err := pipeline.New(pipeline.Edges).
		Where("target_id", q.ActorID).
		Where("kind", string(social.KindFollow)).
		JoinProfile("source_id", "subscriber").
		Project("target_id", "kind", "target_type").
		Build()
	if err != nil {
		return nil, fmt.Errorf("channel_subscribers: %w", err)
	}
	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("channel_subscribers: %w", err)
	}
	return page, nil
}

// Subscriptions возвращает каналы, на которые подписан актор.
func (v *ChannelViews) Subscriptions(ctx context.Context, q ListEdgesQuery) (*Page, error) {
	if err := shared.ValidateID("query", "subscriber_id", q.ActorID); err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	p, err := pipeline.New(pipeline.Edges).
		Where("source_id", q.ActorID).
		Where("kind", string(social.KindFollow)).
		JoinProfile("target_id", "channel").
		Project("source_id", "kind", "target_type").
		Build()
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("subscriptions: %w", err)
	}
	return page, nil
}
