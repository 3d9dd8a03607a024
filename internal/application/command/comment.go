package command

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/ownership"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateCommentCommand adds a comment to a content item.
type CreateCommentCommand struct {
	OwnerID   string
	ContentID string
	Body      string
}

// CommentHandler handles comment create, edit and delete.
type CommentHandler struct {
	tx             shared.Transactor
	comments       content.CommentRepository
	items          content.ItemRepository
	edges          social.EdgeRepository
	guard          ownership.Guard
	eventPublisher shared.EventPublisher
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(
	tx shared.Transactor,
	comments content.CommentRepository,
	items content.ItemRepository,
	edges social.EdgeRepository,
	eventPublisher shared.EventPublisher,
) *CommentHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &CommentHandler{
		tx:             tx,
		comments:       comments,
		items:          items,
		edges:          edges,
		guard:          ownership.OwnerGuard{},
		eventPublisher: eventPublisher,
	}
}

func (h *CommentHandler) loadOwned(ctx context.Context, callerID, commentID string) (*content.Comment, error) {
	if err := shared.ValidateID("comment", "comment_id", commentID); err != nil {
		return nil, err
	}
	c, err := h.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := h.guard.Authorize(callerID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Create creates a comment on an existing content item.
func (h *CommentHandler) Create(ctx context.Context, cmd CreateCommentCommand) (*content.Comment, error) {
	c, err := content.NewComment(cmd.OwnerID, cmd.ContentID, cmd.Body)
	if err != nil {
		return nil, fmt.Errorf("create_comment: %w", err)
	}
	item, err := h.items.GetByID(ctx, cmd.ContentID)
	if err != nil {
		return nil, fmt.Errorf("create_comment: %w", err)
	}
	if !item.VisibleTo(cmd.OwnerID) {
		return nil, fmt.Errorf("create_comment: %w", shared.ErrContentNotFound)
	}
	if err := h.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create_comment: failed to save: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewCommentChangedEvent(shared.EventCommentCreated, c.ID, item.ID, c.OwnerID, item.OwnerID))
	return c, nil
}

// Update replaces the comment body.
func (h *CommentHandler) Update(ctx context.Context, callerID, commentID, body string) (*content.Comment, error) {
	c, err := h.loadOwned(ctx, callerID, commentID)
	if err != nil {
		return nil, fmt.Errorf("update_comment: %w", err)
	}
	if err := c.Edit(body); err != nil {
		return nil, fmt.Errorf("update_comment: %w", err)
	}
	if err := h.comments.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update_comment: failed to save: %w", err)
	}
	return c, nil
}

// Delete removes the comment and the likes pointing at it.
func (h *CommentHandler) Delete(ctx context.Context, callerID, commentID string) error {
	var deleted *content.Comment
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := h.loadOwned(ctx, callerID, commentID)
		if err != nil {
			return err
		}
		if _, err := h.edges.DeleteByTargets(ctx, []string{c.ID}); err != nil {
			return err
		}
		if err := h.comments.Delete(ctx, c.ID); err != nil {
			return err
		}
		deleted = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete_comment: %w", err)
	}

	channelID := ""
	if item, err := h.items.GetByID(ctx, deleted.ContentID); err == nil {
		channelID = item.OwnerID
	}
	_ = h.eventPublisher.Publish(shared.NewCommentChangedEvent(shared.EventCommentDeleted, deleted.ID, deleted.ContentID, deleted.OwnerID, channelID))
	return nil
}
