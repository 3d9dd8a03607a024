package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// scanner is implemented by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ItemRepository implements content.ItemRepository for PostgreSQL.
type ItemRepository struct {
	conn *Connection
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(conn *Connection) *ItemRepository {
	return &ItemRepository{conn: conn}
}

const itemColumns = `id, owner_id, kind, title, body, media_url, thumbnail_url,
	duration, published, views, created_at, updated_at, seq`

func scanItem(row scanner) (*content.Item, error) {
	var i content.Item
	var kind string
	err := row.Scan(
		&i.ID, &i.OwnerID, &kind, &i.Title, &i.Body, &i.MediaURL, &i.ThumbnailURL,
		&i.Duration, &i.Published, &i.Views, &i.CreatedAt, &i.UpdatedAt, &i.Seq,
	)
	if err != nil {
		return nil, err
	}
	i.Kind = content.Kind(kind)
	return &i, nil
}

// Create implements content.ItemRepository.
func (r *ItemRepository) Create(ctx context.Context, item *content.Item) error {
	if item.OwnerID == "" {
		return shared.ErrContentOwnerEmpty
	}

	query := `
		INSERT INTO content_items (
			id, owner_id, kind, title, body, media_url, thumbnail_url,
			duration, published, views, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq
	`

	err := r.conn.QueryRow(ctx, query, []interface{}{
		item.ID, item.OwnerID, string(item.Kind), item.Title, item.Body,
		item.MediaURL, item.ThumbnailURL, item.Duration, item.Published,
		item.Views, item.CreatedAt, item.UpdatedAt,
	}, &item.Seq)
	if IsUniqueViolation(err) {
		return shared.WrapError("content", "Create", shared.ErrInvalidOperation, "content item already exists", err)
	}
	return translate("content", "Create", err, nil)
}

// GetByID implements content.ItemRepository.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*content.Item, error) {
	var item *content.Item
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			return pgx.ErrNoRows
		}
		var err error
		item, err = scanItem(rows)
		return err
	}, `SELECT `+itemColumns+` FROM content_items WHERE id = $1`, id)
	if err != nil {
		return nil, translate("content", "GetByID", err, shared.ErrContentNotFound)
	}
	return item, nil
}

// Update implements content.ItemRepository. Owner, kind, views and creation
// data are not updatable.
func (r *ItemRepository) Update(ctx context.Context, item *content.Item) error {
	query := `
		UPDATE content_items SET
			title = $1,
			body = $2,
			media_url = $3,
			thumbnail_url = $4,
			duration = $5,
			published = $6,
			updated_at = $7
		WHERE id = $8
	`

	result, err := r.conn.Exec(ctx, query,
		item.Title, item.Body, item.MediaURL, item.ThumbnailURL,
		item.Duration, item.Published, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return translate("content", "Update", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrContentNotFound
	}
	return nil
}

// IncrementViews implements content.ItemRepository.
func (r *ItemRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := r.conn.QueryRow(ctx,
		`UPDATE content_items SET views = views + 1 WHERE id = $1 RETURNING views`,
		[]interface{}{id}, &views,
	)
	if err != nil {
		return 0, translate("content", "IncrementViews", err, shared.ErrContentNotFound)
	}
	return views, nil
}

// Delete implements content.ItemRepository.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return translate("content", "Delete", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrContentNotFound
	}
	return nil
}

// Find implements content.ItemRepository.
func (r *ItemRepository) Find(ctx context.Context, f content.ItemFilter) ([]*content.Item, error) {
	var where []string
	var args []interface{}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.PublishedOnly {
		where = append(where, "published")
	}

	query := `SELECT ` + itemColumns + ` FROM content_items` + whereClause(where) + ` ORDER BY seq`

	out := make([]*content.Item, 0)
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	}, query, args...)
	if err != nil {
		return nil, translate("content", "Find", err, nil)
	}
	return out, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLIST REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PlaylistRepository implements content.PlaylistRepository for PostgreSQL.
type PlaylistRepository struct {
	conn *Connection
}

// NewPlaylistRepository creates a new PlaylistRepository.
func NewPlaylistRepository(conn *Connection) *PlaylistRepository {
	return &PlaylistRepository{conn: conn}
}

const playlistColumns = `id, owner_id, name, description, items, created_at, updated_at`

func scanPlaylist(row scanner) (*content.Playlist, error) {
	var p content.Playlist
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Items, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if p.Items == nil {
		p.Items = []string{}
	}
	return &p, nil
}

// Create implements content.PlaylistRepository.
func (r *PlaylistRepository) Create(ctx context.Context, p *content.Playlist) error {
	items := p.Items
	if items == nil {
		items = []string{}
	}
	_, err := r.conn.Exec(ctx, `
		INSERT INTO playlists (id, owner_id, name, description, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OwnerID, p.Name, p.Description, items, p.CreatedAt, p.UpdatedAt)
	return translate("playlist", "Create", err, nil)
}

// GetByID implements content.PlaylistRepository.
func (r *PlaylistRepository) GetByID(ctx context.Context, id string) (*content.Playlist, error) {
	var p *content.Playlist
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			return pgx.ErrNoRows
		}
		var err error
		p, err = scanPlaylist(rows)
		return err
	}, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id)
	if err != nil {
		return nil, translate("playlist", "GetByID", err, shared.ErrPlaylistNotFound)
	}
	return p, nil
}

// Update implements content.PlaylistRepository.
func (r *PlaylistRepository) Update(ctx context.Context, p *content.Playlist) error {
	result, err := r.conn.Exec(ctx, `
		UPDATE playlists SET name = $1, description = $2, updated_at = $3
		WHERE id = $4
	`, p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return translate("playlist", "Update", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrPlaylistNotFound
	}
	return nil
}

// AppendItem implements content.PlaylistRepository. The membership check
// and the append run as one statement.
func (r *PlaylistRepository) AppendItem(ctx context.Context, playlistID, contentID string, at time.Time) (*content.Playlist, error) {
	return r.mutateItems(ctx, "AppendItem", shared.ErrDuplicatePlaylistItem, `
		UPDATE playlists SET items = array_append(items, $2), updated_at = $3
		WHERE id = $1 AND NOT ($2 = ANY(items))
		RETURNING `+playlistColumns, playlistID, contentID, at)
}

// RemoveItem implements content.PlaylistRepository.
func (r *PlaylistRepository) RemoveItem(ctx context.Context, playlistID, contentID string, at time.Time) (*content.Playlist, error) {
	return r.mutateItems(ctx, "RemoveItem", shared.ErrPlaylistItemMissing, `
		UPDATE playlists SET items = array_remove(items, $2), updated_at = $3
		WHERE id = $1 AND $2 = ANY(items)
		RETURNING `+playlistColumns, playlistID, contentID, at)
}

// mutateItems runs a guarded UPDATE ... RETURNING. No row back means either
// the playlist is gone or the guard failed; conflict is returned for the latter.
func (r *PlaylistRepository) mutateItems(ctx context.Context, op string, conflict error, sql, playlistID, contentID string, at time.Time) (*content.Playlist, error) {
	var p *content.Playlist
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return pgx.ErrNoRows
		}
		var err error
		p, err = scanPlaylist(rows)
		return err
	}, sql, playlistID, contentID, at)
	if err == nil {
		return p, nil
	}
	if !IsNoRows(err) {
		return nil, translate("playlist", op, err, nil)
	}
	if _, err := r.GetByID(ctx, playlistID); err != nil {
		return nil, err
	}
	return nil, conflict
}

// Delete implements content.PlaylistRepository.
func (r *PlaylistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return translate("playlist", "Delete", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrPlaylistNotFound
	}
	return nil
}

// FindByOwner implements content.PlaylistRepository.
func (r *PlaylistRepository) FindByOwner(ctx context.Context, ownerID string) ([]*content.Playlist, error) {
	out := make([]*content.Playlist, 0)
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			p, err := scanPlaylist(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	}, `SELECT `+playlistColumns+` FROM playlists WHERE owner_id = $1 ORDER BY seq`, ownerID)
	if err != nil {
		return nil, translate("playlist", "FindByOwner", err, nil)
	}
	return out, nil
}

// RemoveItemEverywhere implements content.PlaylistRepository.
func (r *PlaylistRepository) RemoveItemEverywhere(ctx context.Context, contentID string) (int64, error) {
	result, err := r.conn.Exec(ctx, `
		UPDATE playlists SET items = array_remove(items, $1)
		WHERE $1 = ANY(items)
	`, contentID)
	if err != nil {
		return 0, translate("playlist", "RemoveItemEverywhere", err, nil)
	}
	return result.RowsAffected(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CommentRepository implements content.CommentRepository for PostgreSQL.
type CommentRepository struct {
	conn *Connection
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(conn *Connection) *CommentRepository {
	return &CommentRepository{conn: conn}
}

const commentColumns = `id, owner_id, content_id, body, created_at, updated_at, seq`

func scanComment(row scanner) (*content.Comment, error) {
	var c content.Comment
	if err := row.Scan(&c.ID, &c.OwnerID, &c.ContentID, &c.Body, &c.CreatedAt, &c.UpdatedAt, &c.Seq); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create implements content.CommentRepository.
func (r *CommentRepository) Create(ctx context.Context, c *content.Comment) error {
	err := r.conn.QueryRow(ctx, `
		INSERT INTO comments (id, owner_id, content_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, []interface{}{c.ID, c.OwnerID, c.ContentID, c.Body, c.CreatedAt, c.UpdatedAt}, &c.Seq)
	return translate("comment", "Create", err, nil)
}

// GetByID implements content.CommentRepository.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*content.Comment, error) {
	var c *content.Comment
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		if !rows.Next() {
			return pgx.ErrNoRows
		}
		var err error
		c, err = scanComment(rows)
		return err
	}, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	if err != nil {
		return nil, translate("comment", "GetByID", err, shared.ErrCommentNotFound)
	}
	return c, nil
}

// Update implements content.CommentRepository.
func (r *CommentRepository) Update(ctx context.Context, c *content.Comment) error {
	result, err := r.conn.Exec(ctx,
		`UPDATE comments SET body = $1, updated_at = $2 WHERE id = $3`,
		c.Body, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return translate("comment", "Update", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCommentNotFound
	}
	return nil
}

// Delete implements content.CommentRepository.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return translate("comment", "Delete", err, nil)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrCommentNotFound
	}
	return nil
}

// Find implements content.CommentRepository.
func (r *CommentRepository) Find(ctx context.Context, f content.CommentFilter) ([]*content.Comment, error) {
	var where []string
	var args []interface{}
	if f.ContentID != "" {
		args = append(args, f.ContentID)
		where = append(where, fmt.Sprintf("content_id = $%d", len(args)))
	}
	if f.OwnerID != "" {
		args = append(args, f.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	out := make([]*content.Comment, 0)
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			c, err := scanComment(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	}, `SELECT `+commentColumns+` FROM comments`+whereClause(where)+` ORDER BY seq`, args...)
	if err != nil {
		return nil, translate("comment", "Find", err, nil)
	}
	return out, nil
}

// DeleteByContent implements content.CommentRepository.
func (r *CommentRepository) DeleteByContent(ctx context.Context, contentID string) ([]string, error) {
	ids := make([]string, 0)
	err := r.conn.Query(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, `DELETE FROM comments WHERE content_id = $1 RETURNING id`, contentID)
	if err != nil {
		return nil, translate("comment", "DeleteByContent", err, nil)
	}
	return ids, nil
}

var (
	_ content.ItemRepository     = (*ItemRepository)(nil)
	_ content.PlaylistRepository = (*PlaylistRepository)(nil)
	_ content.CommentRepository  = (*CommentRepository)(nil)
)
