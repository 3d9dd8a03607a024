package postgres

import (
	"context"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ActorRepository implements actor.Repository for PostgreSQL.
type ActorRepository struct {
	conn *Connection
}

// NewActorRepository creates a new ActorRepository.
func NewActorRepository(conn *Connection) *ActorRepository {
	return &ActorRepository{conn: conn}
}

// Upsert implements actor.Repository. created_at is kept on conflict.
func (r *ActorRepository) Upsert(ctx context.Context, a *actor.Actor) error {
	query := `
		INSERT INTO actors (id, handle, display_name, avatar_url, cover_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			handle = EXCLUDED.handle,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			cover_url = EXCLUDED.cover_url
		RETURNING created_at
	`

	err := r.conn.QueryRow(ctx, query,
		[]interface{}{a.ID, a.Handle, a.DisplayName, a.AvatarURL, a.CoverURL, a.CreatedAt},
		&a.CreatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.WrapError("actor", "Upsert", shared.ErrInvalidOperation, "handle is already taken", err)
	}
	return translate("actor", "Upsert", err, nil)
}

// GetByID implements actor.Repository.
func (r *ActorRepository) GetByID(ctx context.Context, id string) (*actor.Actor, error) {
	query := `
		SELECT id, handle, display_name, avatar_url, cover_url, created_at
		FROM actors
		WHERE id = $1
	`

	var a actor.Actor
	err := r.conn.QueryRow(ctx, query, []interface{}{id},
		&a.ID, &a.Handle, &a.DisplayName, &a.AvatarURL, &a.CoverURL, &a.CreatedAt,
	)
	if err != nil {
		return nil, translate("actor", "GetByID", err, shared.ErrActorNotFound)
	}
	return &a, nil
}

// Exists implements actor.Repository.
func (r *ActorRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM actors WHERE id = $1)`, []interface{}{id}, &exists)
	if err != nil {
		return false, translate("actor", "Exists", err, nil)
	}
	return exists, nil
}

var _ actor.Repository = (*ActorRepository)(nil)

