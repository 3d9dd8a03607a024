package command

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/ownership"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE CONTENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateVideoCommand uploads a local file through the media collaborator
// and stores the resulting video.
type CreateVideoCommand struct {
	OwnerID       string
	Title         string
	Description   string
	VideoPath     string
	ThumbnailPath string
	Published     bool
}

// Validate validates the command.
func (c CreateVideoCommand) Validate() error {
	if err := shared.ValidateID("content", "owner_id", c.OwnerID); err != nil {
		return err
	}
	if c.VideoPath == "" {
		return shared.ErrMediaRequired
	}
	return nil
}

// CreatePostCommand creates a short text post.
type CreatePostCommand struct {
	OwnerID string
	Body    string
}

// Validate validates the command.
func (c CreatePostCommand) Validate() error {
	return shared.ValidateID("content", "owner_id", c.OwnerID)
}

// CreateContentHandler handles video and post creation.
type CreateContentHandler struct {
	actors         actor.Repository
	items          content.ItemRepository
	media          content.MediaStore
	eventPublisher shared.EventPublisher
}

// NewCreateContentHandler creates a new CreateContentHandler.
func NewCreateContentHandler(
	actors actor.Repository,
	items content.ItemRepository,
	media content.MediaStore,
	eventPublisher shared.EventPublisher,
) *CreateContentHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &CreateContentHandler{actors: actors, items: items, media: media, eventPublisher: eventPublisher}
}

func (h *CreateContentHandler) requireActor(ctx context.Context, id string) error {
	ok, err := h.actors.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrActorNotFound
	}
	return nil
}

// HandleVideo creates a video.
func (h *CreateContentHandler) HandleVideo(ctx context.Context, cmd CreateVideoCommand) (*content.Item, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_video: validation failed: %w", err)
	}
	if err := h.requireActor(ctx, cmd.OwnerID); err != nil {
		return nil, fmt.Errorf("create_video: %w", err)
	}
	if h.media == nil {
		return nil, fmt.Errorf("create_video: %w", shared.NewDomainError("content", "Upload", shared.ErrUnavailable, "media storage is not configured"))
	}

	asset, err := h.media.Upload(ctx, cmd.VideoPath, string(content.KindVideo))
	if err != nil {
		return nil, fmt.Errorf("create_video: media upload failed: %w", err)
	}
	var thumbnailURL string
	if cmd.ThumbnailPath != "" {
		thumb, err := h.media.Upload(ctx, cmd.ThumbnailPath, "image")
		if err != nil {
			return nil, fmt.Errorf("create_video: thumbnail upload failed: %w", err)
		}
		thumbnailURL = thumb.URL
	}

	item, err := content.NewVideo(cmd.OwnerID, cmd.Title, cmd.Description, asset, thumbnailURL, cmd.Published)
	if err != nil {
		return nil, fmt.Errorf("create_video: %w", err)
	}
	if err := h.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create_video: failed to save: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentCreated, item.ID, item.OwnerID, string(item.Kind)))
	return item, nil
}

// HandlePost creates a post.
func (h *CreateContentHandler) HandlePost(ctx context.Context, cmd CreatePostCommand) (*content.Item, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_post: validation failed: %w", err)
	}
	if err := h.requireActor(ctx, cmd.OwnerID); err != nil {
		return nil, fmt.Errorf("create_post: %w", err)
	}

	item, err := content.NewPost(cmd.OwnerID, cmd.Body)
	if err != nil {
		return nil, fmt.Errorf("create_post: %w", err)
	}
	if err := h.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create_post: failed to save: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentCreated, item.ID, item.OwnerID, string(item.Kind)))
	return item, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATE CONTENT COMMANDS
// Every mutation loads the item and passes the ownership guard first.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateContentCommand changes title, body, thumbnail or media.
type UpdateContentCommand struct {
	CallerID      string
	ContentID     string
	Title         *string
	Body          *string
	VideoPath     string
	ThumbnailPath string
}

// ContentMutationHandler handles update, publish toggle, view and delete.
type ContentMutationHandler struct {
	tx             shared.Transactor
	items          content.ItemRepository
	comments       content.CommentRepository
	playlists      content.PlaylistRepository
	edges          social.EdgeRepository
	media          content.MediaStore
	guard          ownership.Guard
	eventPublisher shared.EventPublisher
}

// NewContentMutationHandler creates a new ContentMutationHandler.
func NewContentMutationHandler(
	tx shared.Transactor,
	items content.ItemRepository,
	comments content.CommentRepository,
	playlists content.PlaylistRepository,
	edges social.EdgeRepository,
	media content.MediaStore,
	eventPublisher shared.EventPublisher,
) *ContentMutationHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &ContentMutationHandler{
		tx:             tx,
		items:          items,
		comments:       comments,
		playlists:      playlists,
		edges:          edges,
		media:          media,
		guard:          ownership.OwnerGuard{},
		eventPublisher: eventPublisher,
	}
}

func (h *ContentMutationHandler) loadOwned(ctx context.Context, callerID, contentID string) (*content.Item, error) {
	if err := shared.ValidateID("content", "content_id", contentID); err != nil {
		return nil, err
	}
	item, err := h.items.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if err := h.guard.Authorize(callerID, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Update applies a partial update. An update with no changes fails with
// InvalidOperation.
func (h *ContentMutationHandler) Update(ctx context.Context, cmd UpdateContentCommand) (*content.Item, error) {
	item, err := h.loadOwned(ctx, cmd.CallerID, cmd.ContentID)
	if err != nil {
		return nil, fmt.Errorf("update_content: %w", err)
	}

	upd := content.ItemUpdate{Title: cmd.Title, Body: cmd.Body}
	if cmd.VideoPath != "" || cmd.ThumbnailPath != "" {
		if h.media == nil {
			return nil, fmt.Errorf("update_content: %w", shared.NewDomainError("content", "Upload", shared.ErrUnavailable, "media storage is not configured"))
		}
	}
	if cmd.VideoPath != "" {
		asset, err := h.media.Upload(ctx, cmd.VideoPath, string(content.KindVideo))
		if err != nil {
			return nil, fmt.Errorf("update_content: media upload failed: %w", err)
		}
		upd.Media = &asset
	}
	if cmd.ThumbnailPath != "" {
		thumb, err := h.media.Upload(ctx, cmd.ThumbnailPath, "image")
		if err != nil {
			return nil, fmt.Errorf("update_content: thumbnail upload failed: %w", err)
		}
		upd.ThumbnailURL = &thumb.URL
	}

	if err := item.Apply(upd); err != nil {
		return nil, fmt.Errorf("update_content: %w", err)
	}
	if err := h.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update_content: failed to save: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentUpdated, item.ID, item.OwnerID, string(item.Kind)))
	return item, nil
}

// TogglePublish flips the published flag.
func (h *ContentMutationHandler) TogglePublish(ctx context.Context, callerID, contentID string) (*content.Item, error) {
	item, err := h.loadOwned(ctx, callerID, contentID)
	if err != nil {
		return nil, fmt.Errorf("toggle_publish: %w", err)
	}
	item.TogglePublish()
	if err := h.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("toggle_publish: failed to save: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentPublished, item.ID, item.OwnerID, string(item.Kind)))
	return item, nil
}

// RecordView increments the view counter. Any actor may view; no
// ownership check.
func (h *ContentMutationHandler) RecordView(ctx context.Context, contentID string) (int64, error) {
	if err := shared.ValidateID("content", "content_id", contentID); err != nil {
		return 0, fmt.Errorf("record_view: %w", err)
	}
	item, err := h.items.GetByID(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("record_view: %w", err)
	}
	views, err := h.items.IncrementViews(ctx, contentID)
	if err != nil {
		return 0, fmt.Errorf("record_view: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentViewed, item.ID, item.OwnerID, string(item.Kind)))
	return views, nil
}

// Delete removes the item and everything that depends on it: edges to the
// item and to its comments, the comments, and playlist memberships.
func (h *ContentMutationHandler) Delete(ctx context.Context, callerID, contentID string) error {
	var deleted *content.Item
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := h.loadOwned(ctx, callerID, contentID)
		if err != nil {
			return err
		}

		comments, err := h.comments.Find(ctx, content.CommentFilter{ContentID: item.ID})
		if err != nil {
			return err
		}
		targets := make([]string, 0, len(comments)+1)
		targets = append(targets, item.ID)
		for _, c := range comments {
			targets = append(targets, c.ID)
		}

		if _, err := h.edges.DeleteByTargets(ctx, targets); err != nil {
			return err
		}
		if _, err := h.comments.DeleteByContent(ctx, item.ID); err != nil {
			return err
		}
		if _, err := h.playlists.RemoveItemEverywhere(ctx, item.ID); err != nil {
			return err
		}
		if err := h.items.Delete(ctx, item.ID); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete_content: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewContentChangedEvent(shared.EventContentDeleted, deleted.ID, deleted.OwnerID, string(deleted.Kind)))
	return nil
}
