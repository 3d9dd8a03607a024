package query

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// GetPlaylistsQuery - плейлисты владельца.
type GetPlaylistsQuery struct {
	OwnerID string
	Query   string
	PageRequest
}

// PlaylistViews обслуживает запросы чтения плейлистов.
type PlaylistViews struct {
	paginator *Paginator
}

// NewPlaylistViews создаёт PlaylistViews.
func NewPlaylistViews(paginator *Paginator) *PlaylistViews {
	return &PlaylistViews{paginator: paginator}
}

// ByOwner возвращает плейлисты владельца; элементы остаются списком ID.
func (v *PlaylistViews) ByOwner(ctx context.Context, q GetPlaylistsQuery) (*Page, error) {
	if err := shared.ValidateID("query", "owner_id", q.OwnerID); err != nil {
		return nil, fmt.Errorf("owner_playlists: %w", err)
	}
	p, err := pipeline.New(pipeline.Playlists).
		OwnedBy(q.OwnerID).
		Search(q.Query).
		JoinOwnerProfile().
		Build()
	if err != nil {
		return nil, fmt.Errorf("owner_playlists: %w", err)
	}
	page, err := v.paginator.Paginate(ctx, p, q.PageRequest)
	if err != nil {
		return nil, fmt.Errorf("owner_playlists: %w", err)
	}
	return page, nil
}

// GetPlaylistQuery - карточка плейлиста.
type GetPlaylistQuery struct {
	ViewerID   string
	PlaylistID string
}

// Get возвращает плейлист с развёрнутыми публикациями в порядке добавления.
// Чужие неопубликованные публикации пропускаются.
func (v *PlaylistViews) Get(ctx context.Context, q GetPlaylistQuery) (pipeline.Document, error) {
	if err := shared.ValidateID("query", "playlist_id", q.PlaylistID); err != nil {
		return nil, fmt.Errorf("get_playlist: %w", err)
	}
	p, err := pipeline.New(pipeline.Playlists).
		Where("id", q.PlaylistID).
		JoinOwnerProfile().
		JoinExpandVisible("items", pipeline.ContentItems, q.ViewerID, pipeline.OwnerProfile("owner_id")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("get_playlist: %w", err)
	}
	doc, err := v.paginator.First(ctx, p, shared.ErrPlaylistNotFound)
	if err != nil {
		return nil, fmt.Errorf("get_playlist: %w", err)
	}
	return doc, nil
}
