package memory

import (
	"context"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ActorRepository implements actor.Repository.
type ActorRepository struct {
	s *Store
}

// Upsert implements actor.Repository.
func (r *ActorRepository) Upsert(ctx context.Context, a *actor.Actor) error {
	if err := checkCtx(ctx, "actor", "Upsert"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	if existing, ok := r.s.t.actors[a.ID]; ok {
		a.CreatedAt = existing.a.CreatedAt
		existing.a = *a
		r.s.t.actors[a.ID] = existing
		return nil
	}
	r.s.t.actors[a.ID] = actorRow{seq: r.s.nextSeq(), a: *a}
	return nil
}

// GetByID implements actor.Repository.
func (r *ActorRepository) GetByID(ctx context.Context, id string) (*actor.Actor, error) {
	if err := checkCtx(ctx, "actor", "GetByID"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	row, ok := r.s.t.actors[id]
	if !ok {
		return nil, shared.ErrActorNotFound
	}
	a := row.a
	return &a, nil
}

// Exists implements actor.Repository.
func (r *ActorRepository) Exists(ctx context.Context, id string) (bool, error) {
	if err := checkCtx(ctx, "actor", "Exists"); err != nil {
		return false, err
	}
	defer r.s.rlock(ctx)()

	_, ok := r.s.t.actors[id]
	return ok, nil
}
