// Package memory provides an in-process storage engine with the same
// semantics as the postgres engine. It backs tests and --store=memory runs.
package memory

import (
	"context"
	"sync"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

type actorRow struct {
	seq int64
	a   actor.Actor
}

type edgeRow struct {
	seq int64
	e   social.Edge
}

type playlistRow struct {
	seq int64
	p   content.Playlist
}

type tables struct {
	actors    map[string]actorRow
	items     map[string]content.Item
	playlists map[string]playlistRow
	comments  map[string]content.Comment
	edges     map[social.Key]edgeRow
}

func newTables() tables {
	return tables{
		actors:    make(map[string]actorRow),
		items:     make(map[string]content.Item),
		playlists: make(map[string]playlistRow),
		comments:  make(map[string]content.Comment),
		edges:     make(map[social.Key]edgeRow),
	}
}

func (t tables) clone() tables {
	out := newTables()
	for k, v := range t.actors {
		out.actors[k] = v
	}
	for k, v := range t.items {
		out.items[k] = v
	}
	for k, v := range t.playlists {
		v.p.Items = append([]string(nil), v.p.Items...)
		out.playlists[k] = v
	}
	for k, v := range t.comments {
		out.comments[k] = v
	}
	for k, v := range t.edges {
		out.edges[k] = v
	}
	return out
}

// Store holds every collection behind one RWMutex.
type Store struct {
	mu  sync.RWMutex
	seq int64
	t   tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{t: newTables()}
}

// nextSeq must be called with mu held for writing.
func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) Actors() actor.Repository              { return &ActorRepository{s: s} }
func (s *Store) Items() content.ItemRepository         { return &ItemRepository{s: s} }
func (s *Store) Playlists() content.PlaylistRepository { return &PlaylistRepository{s: s} }
func (s *Store) Comments() content.CommentRepository   { return &CommentRepository{s: s} }
func (s *Store) Edges() social.EdgeRepository          { return &EdgeRepository{s: s} }

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

type txKey struct{}

// WithinTx runs fn holding the write lock for its whole duration. On error
// every table is restored to its state before fn ran; no other writer can
// have touched them in between. Nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	tx, _ := ctx.Value(txKey{}).(*Store)
	return tx == s
}

// lock takes mu for writing. Inside a transaction the lock is already held.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// rlock takes mu for reading. Inside a transaction the lock is already held.
func (s *Store) rlock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func checkCtx(ctx context.Context, domain, op string) error {
	if err := ctx.Err(); err != nil {
		return shared.Unavailable(domain, op, err)
	}
	return nil
}
