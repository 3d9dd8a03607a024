// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLE EDGE COMMAND
// Flips the presence of one (source, target, kind) edge: subscribe and
// unsubscribe, like and unlike. Two states, one transition.
// ══════════════════════════════════════════════════════════════════════════════

// ToggleEdgeCommand contains the data to toggle an edge.
type ToggleEdgeCommand struct {
	// CallerID is the authenticated actor; the edge source.
	CallerID string

	// TargetID is the actor, content item or comment.
	TargetID string

	// Kind is FOLLOW or LIKE.
	Kind social.EdgeKind

	// TargetType defaults to actor for FOLLOW and content for LIKE.
	TargetType social.TargetType

	// CorrelationID for tracing.
	CorrelationID string
}

func (c *ToggleEdgeCommand) normalize() {
	if c.TargetType != "" {
		return
	}
	switch c.Kind {
	case social.KindFollow:
		c.TargetType = social.TargetActor
	case social.KindLike:
		c.TargetType = social.TargetContent
	}
}

// Validate validates the command.
func (c ToggleEdgeCommand) Validate() error {
	if err := shared.ValidateID("social", "caller_id", c.CallerID); err != nil {
		return err
	}
	if err := shared.ValidateID("social", "target_id", c.TargetID); err != nil {
		return err
	}
	if !c.Kind.IsValid() {
		return shared.ErrInvalidEdgeKind
	}
	if !c.Kind.Accepts(c.TargetType) {
		return shared.ErrTargetMismatch
	}
	return nil
}

// ToggleEdgeResult contains the new presence state.
type ToggleEdgeResult struct {
	IsPresent  bool              `json:"isPresent"`
	Kind       social.EdgeKind   `json:"kind"`
	TargetID   string            `json:"targetId"`
	TargetType social.TargetType `json:"targetType"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ToggleEdgeHandler handles the ToggleEdgeCommand.
type ToggleEdgeHandler struct {
	actors         actor.Repository
	items          content.ItemRepository
	comments       content.CommentRepository
	edges          social.EdgeRepository
	eventPublisher shared.EventPublisher
}

// NewToggleEdgeHandler creates a new ToggleEdgeHandler.
func NewToggleEdgeHandler(
	actors actor.Repository,
	items content.ItemRepository,
	comments content.CommentRepository,
	edges social.EdgeRepository,
	eventPublisher shared.EventPublisher,
) *ToggleEdgeHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &ToggleEdgeHandler{
		actors:         actors,
		items:          items,
		comments:       comments,
		edges:          edges,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the toggle.
//
// Concurrent toggles on one triple race between the lookup and the write.
// The store's uniqueness constraint settles it: a create that loses reports
// present, a delete that finds nothing reports absent.
func (h *ToggleEdgeHandler) Handle(ctx context.Context, cmd ToggleEdgeCommand) (*ToggleEdgeResult, error) {
	cmd.normalize()
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("toggle_edge: validation failed: %w", err)
	}
	if cmd.Kind == social.KindFollow && cmd.CallerID == cmd.TargetID {
		return nil, fmt.Errorf("toggle_edge: %w", shared.ErrSelfFollow)
	}

	channelID, err := h.resolveTarget(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("toggle_edge: %w", err)
	}

	key := social.Key{SourceID: cmd.CallerID, TargetID: cmd.TargetID, Kind: cmd.Kind}

	current := social.Absent
	if _, err := h.edges.Get(ctx, key); err == nil {
		current = social.Present
	} else if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("toggle_edge: failed to look up edge: %w", err)
	}

	next := current.Toggle()
	switch next {
	case social.Present:
		edge, err := social.NewEdge(social.NewEdgeParams{
			SourceID:   cmd.CallerID,
			TargetID:   cmd.TargetID,
			Kind:       cmd.Kind,
			TargetType: cmd.TargetType,
		})
		if err != nil {
			return nil, fmt.Errorf("toggle_edge: %w", err)
		}
		if err := h.edges.Create(ctx, edge); err != nil && !errors.Is(err, social.ErrEdgeExists) {
			return nil, fmt.Errorf("toggle_edge: failed to create edge: %w", err)
		}
	case social.Absent:
		if _, err := h.edges.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("toggle_edge: failed to delete edge: %w", err)
		}
	}

	event := shared.NewEdgeToggledEvent(
		cmd.CallerID,
		cmd.TargetID,
		string(cmd.Kind),
		string(cmd.TargetType),
		bool(next),
		channelID,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &ToggleEdgeResult{
		IsPresent:  bool(next),
		Kind:       cmd.Kind,
		TargetID:   cmd.TargetID,
		TargetType: cmd.TargetType,
	}, nil
}

// resolveTarget checks the target exists and returns the channel whose
// statistics the edge affects.
func (h *ToggleEdgeHandler) resolveTarget(ctx context.Context, cmd ToggleEdgeCommand) (string, error) {
	switch cmd.TargetType {
	case social.TargetActor:
		ok, err := h.actors.Exists(ctx, cmd.TargetID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", shared.ErrActorNotFound
		}
		return cmd.TargetID, nil
	case social.TargetContent:
		item, err := h.items.GetByID(ctx, cmd.TargetID)
		if err != nil {
			return "", err
		}
		if !item.VisibleTo(cmd.CallerID) {
			return "", shared.ErrContentNotFound
		}
		return item.OwnerID, nil
	case social.TargetComment:
		c, err := h.comments.GetByID(ctx, cmd.TargetID)
		if err != nil {
			return "", err
		}
		return c.OwnerID, nil
	default:
		return "", shared.ErrTargetMismatch
	}
}
