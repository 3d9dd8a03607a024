package postgres

import (
	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// Store groups the repositories of one connection. It mirrors the memory
// engine so both can be wired the same way.
type Store struct {
	*Connection
}

// NewStore creates a Store over conn.
func NewStore(conn *Connection) *Store {
	return &Store{Connection: conn}
}

func (s *Store) Actors() actor.Repository              { return &ActorRepository{conn: s.Connection} }
func (s *Store) Items() content.ItemRepository         { return &ItemRepository{conn: s.Connection} }
func (s *Store) Playlists() content.PlaylistRepository { return &PlaylistRepository{conn: s.Connection} }
func (s *Store) Comments() content.CommentRepository   { return &CommentRepository{conn: s.Connection} }
func (s *Store) Edges() social.EdgeRepository          { return &EdgeRepository{conn: s.Connection} }

// Stats returns the stats source of the store.
func (s *Store) Stats() *StatsSource { return &StatsSource{conn: s.Connection} }

// Runner returns the pipeline runner of the store.
func (s *Store) Runner() *PipelineRunner { return &PipelineRunner{conn: s.Connection} }
