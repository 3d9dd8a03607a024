package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/ownership"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLIST COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlaylistCommand creates an empty playlist.
type CreatePlaylistCommand struct {
	OwnerID     string
	Name        string
	Description string
}

// UpdatePlaylistCommand renames a playlist. nil fields are kept.
type UpdatePlaylistCommand struct {
	CallerID    string
	PlaylistID  string
	Name        *string
	Description *string
}

// PlaylistItemCommand adds or removes one content item.
type PlaylistItemCommand struct {
	CallerID   string
	PlaylistID string
	ContentID  string
}

// Validate validates the command.
func (c PlaylistItemCommand) Validate() error {
	if err := shared.ValidateID("playlist", "playlist_id", c.PlaylistID); err != nil {
		return err
	}
	return shared.ValidateID("playlist", "content_id", c.ContentID)
}

// PlaylistHandler handles every playlist mutation.
type PlaylistHandler struct {
	playlists      content.PlaylistRepository
	items          content.ItemRepository
	guard          ownership.Guard
	eventPublisher shared.EventPublisher
}

// NewPlaylistHandler creates a new PlaylistHandler.
func NewPlaylistHandler(
	playlists content.PlaylistRepository,
	items content.ItemRepository,
	eventPublisher shared.EventPublisher,
) *PlaylistHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &PlaylistHandler{
		playlists:      playlists,
		items:          items,
		guard:          ownership.OwnerGuard{},
		eventPublisher: eventPublisher,
	}
}

func (h *PlaylistHandler) loadOwned(ctx context.Context, callerID, playlistID string) (*content.Playlist, error) {
	if err := shared.ValidateID("playlist", "playlist_id", playlistID); err != nil {
		return nil, err
	}
	p, err := h.playlists.GetByID(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if err := h.guard.Authorize(callerID, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *PlaylistHandler) publish(p *content.Playlist, action, contentID string) {
	_ = h.eventPublisher.Publish(shared.NewPlaylistChangedEvent(p.ID, p.OwnerID, action, contentID))
}

// Create creates a playlist.
func (h *PlaylistHandler) Create(ctx context.Context, cmd CreatePlaylistCommand) (*content.Playlist, error) {
	p, err := content.NewPlaylist(cmd.OwnerID, cmd.Name, cmd.Description)
	if err != nil {
		return nil, fmt.Errorf("create_playlist: %w", err)
	}
	if err := h.playlists.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create_playlist: failed to save: %w", err)
	}
	h.publish(p, "created", "")
	return p, nil
}

// Update renames a playlist.
func (h *PlaylistHandler) Update(ctx context.Context, cmd UpdatePlaylistCommand) (*content.Playlist, error) {
	p, err := h.loadOwned(ctx, cmd.CallerID, cmd.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("update_playlist: %w", err)
	}
	if err := p.Rename(cmd.Name, cmd.Description); err != nil {
		return nil, fmt.Errorf("update_playlist: %w", err)
	}
	if err := h.playlists.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update_playlist: failed to save: %w", err)
	}
	h.publish(p, "updated", "")
	return p, nil
}

// Delete deletes a playlist. The content items are untouched.
func (h *PlaylistHandler) Delete(ctx context.Context, callerID, playlistID string) error {
	p, err := h.loadOwned(ctx, callerID, playlistID)
	if err != nil {
		return fmt.Errorf("delete_playlist: %w", err)
	}
	if err := h.playlists.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("delete_playlist: %w", err)
	}
	h.publish(p, "deleted", "")
	return nil
}

// AddItem appends a content item. Adding an item twice fails with
// InvalidOperation and leaves the playlist unchanged. Another owner's
// unpublished item is reported as not found.
func (h *PlaylistHandler) AddItem(ctx context.Context, cmd PlaylistItemCommand) (*content.Playlist, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_playlist_item: validation failed: %w", err)
	}
	if _, err := h.loadOwned(ctx, cmd.CallerID, cmd.PlaylistID); err != nil {
		return nil, fmt.Errorf("add_playlist_item: %w", err)
	}
	item, err := h.items.GetByID(ctx, cmd.ContentID)
	if err != nil {
		return nil, fmt.Errorf("add_playlist_item: %w", err)
	}
	if !item.VisibleTo(cmd.CallerID) {
		return nil, fmt.Errorf("add_playlist_item: %w", shared.ErrContentNotFound)
	}
	p, err := h.playlists.AppendItem(ctx, cmd.PlaylistID, cmd.ContentID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("add_playlist_item: %w", err)
	}
	h.publish(p, "item_added", cmd.ContentID)
	return p, nil
}

// RemoveItem removes a content item.
func (h *PlaylistHandler) RemoveItem(ctx context.Context, cmd PlaylistItemCommand) (*content.Playlist, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_playlist_item: validation failed: %w", err)
	}
	if _, err := h.loadOwned(ctx, cmd.CallerID, cmd.PlaylistID); err != nil {
		return nil, fmt.Errorf("remove_playlist_item: %w", err)
	}
	p, err := h.playlists.RemoveItem(ctx, cmd.PlaylistID, cmd.ContentID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("remove_playlist_item: %w", err)
	}
	h.publish(p, "item_removed", cmd.ContentID)
	return p, nil
}
