package command

import (
	"context"
	"fmt"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT ACTOR COMMAND
// The identity collaborator owns profiles; this keeps the local copy used by
// profile joins in sync.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertActorCommand carries a profile snapshot.
type UpsertActorCommand struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	CoverURL    string
}

// UpsertActorHandler handles the UpsertActorCommand.
type UpsertActorHandler struct {
	actors actor.Repository
}

// NewUpsertActorHandler creates a new UpsertActorHandler.
func NewUpsertActorHandler(actors actor.Repository) *UpsertActorHandler {
	return &UpsertActorHandler{actors: actors}
}

// Handle validates and stores the profile.
func (h *UpsertActorHandler) Handle(ctx context.Context, cmd UpsertActorCommand) (*actor.Actor, error) {
	a := &actor.Actor{
		ID:          cmd.ID,
		Handle:      cmd.Handle,
		DisplayName: cmd.DisplayName,
		AvatarURL:   cmd.AvatarURL,
		CoverURL:    cmd.CoverURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("upsert_actor: validation failed: %w", err)
	}
	if err := h.actors.Upsert(ctx, a); err != nil {
		return nil, fmt.Errorf("upsert_actor: failed to save: %w", err)
	}
	return a, nil
}
