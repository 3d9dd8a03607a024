package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ITEMS
// ══════════════════════════════════════════════════════════════════════════════

// ItemRepository implements content.ItemRepository.
type ItemRepository struct {
	s *Store
}

// Create implements content.ItemRepository.
func (r *ItemRepository) Create(ctx context.Context, item *content.Item) error {
	if err := checkCtx(ctx, "content", "Create"); err != nil {
		return err
	}
	if item.OwnerID == "" {
		return shared.ErrContentOwnerEmpty
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.items[item.ID]; ok {
		return shared.NewDomainError("content", "Create", shared.ErrInvalidOperation, "content item already exists")
	}
	item.Seq = r.s.nextSeq()
	r.s.t.items[item.ID] = *item
	return nil
}

// GetByID implements content.ItemRepository.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*content.Item, error) {
	if err := checkCtx(ctx, "content", "GetByID"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	item, ok := r.s.t.items[id]
	if !ok {
		return nil, shared.ErrContentNotFound
	}
	return &item, nil
}

// Update implements content.ItemRepository.
func (r *ItemRepository) Update(ctx context.Context, item *content.Item) error {
	if err := checkCtx(ctx, "content", "Update"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	current, ok := r.s.t.items[item.ID]
	if !ok {
		return shared.ErrContentNotFound
	}
	// owner, kind, views and creation data are not updatable
	current.Title = item.Title
	current.Body = item.Body
	current.MediaURL = item.MediaURL
	current.ThumbnailURL = item.ThumbnailURL
	current.Duration = item.Duration
	current.Published = item.Published
	current.UpdatedAt = item.UpdatedAt
	r.s.t.items[item.ID] = current
	return nil
}

// IncrementViews implements content.ItemRepository.
func (r *ItemRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	if err := checkCtx(ctx, "content", "IncrementViews"); err != nil {
		return 0, err
	}
	defer r.s.lock(ctx)()

	item, ok := r.s.t.items[id]
	if !ok {
		return 0, shared.ErrContentNotFound
	}
	item.Views++
	r.s.t.items[id] = item
	return item.Views, nil
}

// Delete implements content.ItemRepository.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	if err := checkCtx(ctx, "content", "Delete"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.items[id]; !ok {
		return shared.ErrContentNotFound
	}
	delete(r.s.t.items, id)
	return nil
}

// Find implements content.ItemRepository.
func (r *ItemRepository) Find(ctx context.Context, f content.ItemFilter) ([]*content.Item, error) {
	if err := checkCtx(ctx, "content", "Find"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	out := make([]*content.Item, 0)
	for _, item := range r.s.t.items {
		if f.OwnerID != "" && item.OwnerID != f.OwnerID {
			continue
		}
		if f.Kind != "" && item.Kind != f.Kind {
			continue
		}
		if f.PublishedOnly && !item.Published {
			continue
		}
		item := item
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLISTS
// ══════════════════════════════════════════════════════════════════════════════

// PlaylistRepository implements content.PlaylistRepository.
type PlaylistRepository struct {
	s *Store
}

// Create implements content.PlaylistRepository.
func (r *PlaylistRepository) Create(ctx context.Context, p *content.Playlist) error {
	if err := checkCtx(ctx, "playlist", "Create"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	cp := *p
	cp.Items = slices.Clone(p.Items)
	r.s.t.playlists[p.ID] = playlistRow{seq: r.s.nextSeq(), p: cp}
	return nil
}

// GetByID implements content.PlaylistRepository.
func (r *PlaylistRepository) GetByID(ctx context.Context, id string) (*content.Playlist, error) {
	if err := checkCtx(ctx, "playlist", "GetByID"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	row, ok := r.s.t.playlists[id]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	p := row.p
	p.Items = slices.Clone(row.p.Items)
	return &p, nil
}

// Update implements content.PlaylistRepository.
func (r *PlaylistRepository) Update(ctx context.Context, p *content.Playlist) error {
	if err := checkCtx(ctx, "playlist", "Update"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	row, ok := r.s.t.playlists[p.ID]
	if !ok {
		return shared.ErrPlaylistNotFound
	}
	// membership changes go through AppendItem and RemoveItem
	row.p.Name = p.Name
	row.p.Description = p.Description
	row.p.UpdatedAt = p.UpdatedAt
	r.s.t.playlists[p.ID] = row
	return nil
}

// AppendItem implements content.PlaylistRepository.
func (r *PlaylistRepository) AppendItem(ctx context.Context, playlistID, contentID string, at time.Time) (*content.Playlist, error) {
	return r.mutateItems(ctx, "AppendItem", playlistID, func(p *content.Playlist) error {
		if err := p.AddItem(contentID); err != nil {
			return err
		}
		p.UpdatedAt = at
		return nil
	})
}

// RemoveItem implements content.PlaylistRepository.
func (r *PlaylistRepository) RemoveItem(ctx context.Context, playlistID, contentID string, at time.Time) (*content.Playlist, error) {
	return r.mutateItems(ctx, "RemoveItem", playlistID, func(p *content.Playlist) error {
		if err := p.RemoveItem(contentID); err != nil {
			return err
		}
		p.UpdatedAt = at
		return nil
	})
}

// mutateItems reads, changes and stores the item list under one write lock.
func (r *PlaylistRepository) mutateItems(ctx context.Context, op, playlistID string, fn func(*content.Playlist) error) (*content.Playlist, error) {
	if err := checkCtx(ctx, "playlist", op); err != nil {
		return nil, err
	}
	defer r.s.lock(ctx)()

	row, ok := r.s.t.playlists[playlistID]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	next := row.p
	next.Items = slices.Clone(row.p.Items)
	if err := fn(&next); err != nil {
		return nil, err
	}
	row.p = next
	r.s.t.playlists[playlistID] = row

	out := next
	out.Items = slices.Clone(next.Items)
	return &out, nil
}

// Delete implements content.PlaylistRepository.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	if err := checkCtx(ctx, "playlist", "Delete"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.playlists[id]; !ok {
		return shared.ErrPlaylistNotFound
	}
	delete(r.s.t.playlists, id)
	return nil
}

// FindByOwner implements content.PlaylistRepository.
func (r *PlaylistRepository) FindByOwner(ctx context.Context, ownerID string) ([]*content.Playlist, error) {
	if err := checkCtx(ctx, "playlist", "FindByOwner"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	rows := make([]playlistRow, 0)
	for _, row := range r.s.t.playlists {
		if row.p.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*content.Playlist, 0, len(rows))
	for _, row := range rows {
		p := row.p
		p.Items = slices.Clone(row.p.Items)
		out = append(out, &p)
	}
	return out, nil
}

// RemoveItemEverywhere implements content.PlaylistRepository.
func (r *PlaylistRepository) RemoveItemEverywhere(ctx context.Context, contentID string) (int64, error) {
	if err := checkCtx(ctx, "playlist", "RemoveItemEverywhere"); err != nil {
		return 0, err
	}
	defer r.s.lock(ctx)()

	var n int64
	for id, row := range r.s.t.playlists {
		idx := slices.Index(row.p.Items, contentID)
		if idx < 0 {
			continue
		}
		row.p.Items = slices.Delete(slices.Clone(row.p.Items), idx, idx+1)
		r.s.t.playlists[id] = row
		n++
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMENTS
// ══════════════════════════════════════════════════════════════════════════════

// CommentRepository implements content.CommentRepository.
type CommentRepository struct {
	s *Store
}

// Create implements content.CommentRepository.
func (r *CommentRepository) Create(ctx context.Context, c *content.Comment) error {
	if err := checkCtx(ctx, "comment", "Create"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	c.Seq = r.s.nextSeq()
	r.s.t.comments[c.ID] = *c
	return nil
}

// GetByID implements content.CommentRepository.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*content.Comment, error) {
	if err := checkCtx(ctx, "comment", "GetByID"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	c, ok := r.s.t.comments[id]
	if !ok {
		return nil, shared.ErrCommentNotFound
	}
	return &c, nil
}

// Update implements content.CommentRepository.
func (r *CommentRepository) Update(ctx context.Context, c *content.Comment) error {
	if err := checkCtx(ctx, "comment", "Update"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	current, ok := r.s.t.comments[c.ID]
	if !ok {
		return shared.ErrCommentNotFound
	}
	current.Body = c.Body
	current.UpdatedAt = c.UpdatedAt
	r.s.t.comments[c.ID] = current
	return nil
}

// Delete implements content.CommentRepository.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	if err := checkCtx(ctx, "comment", "Delete"); err != nil {
		return err
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.comments[id]; !ok {
		return shared.ErrCommentNotFound
	}
	delete(r.s.t.comments, id)
	return nil
}

// Find implements content.CommentRepository.
func (r *CommentRepository) Find(ctx context.Context, f content.CommentFilter) ([]*content.Comment, error) {
	if err := checkCtx(ctx, "comment", "Find"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	out := make([]*content.Comment, 0)
	for _, c := range r.s.t.comments {
		if f.ContentID != "" && c.ContentID != f.ContentID {
			continue
		}
		if f.OwnerID != "" && c.OwnerID != f.OwnerID {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// DeleteByContent implements content.CommentRepository.
func (r *CommentRepository) DeleteByContent(ctx context.Context, contentID string) ([]string, error) {
	if err := checkCtx(ctx, "comment", "DeleteByContent"); err != nil {
		return nil, err
	}
	defer r.s.lock(ctx)()

	ids := make([]string, 0)
	for id, c := range r.s.t.comments {
		if c.ContentID == contentID {
			ids = append(ids, id)
			delete(r.s.t.comments, id)
		}
	}
	return ids, nil
}
