package content

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence (postgres, memory).
// Все методы принимают ctx; активная транзакция берётся из ctx.
// ══════════════════════════════════════════════════════════════════════════════

// ItemFilter - фильтр по равенству полей. Пустые поля не учитываются.
type ItemFilter struct {
	OwnerID       string
	Kind          Kind
	PublishedOnly bool
}

// ItemRepository определяет операции над публикациями.
type ItemRepository interface {
	// Create сохраняет публикацию и назначает Seq.
	Create(ctx context.Context, item *Item) error

	// GetByID возвращает публикацию или shared.ErrContentNotFound.
	GetByID(ctx context.Context, id string) (*Item, error)

	// Update сохраняет изменяемые поля (заголовок, текст, медиа, флаг публикации).
	Update(ctx context.Context, item *Item) error

	// IncrementViews атомарно увеличивает счётчик просмотров.
	IncrementViews(ctx context.Context, id string) (int64, error)

	// Delete удаляет публикацию. Каскад выполняет вызывающий код.
	Delete(ctx context.Context, id string) error

	// Find возвращает публикации по фильтру в порядке создания.
	Find(ctx context.Context, filter ItemFilter) ([]*Item, error)
}

// PlaylistRepository определяет операции над плейлистами.
type PlaylistRepository interface {
	Create(ctx context.Context, p *Playlist) error
	GetByID(ctx context.Context, id string) (*Playlist, error)

	// Update сохраняет название и описание. Список элементов не трогает.
	Update(ctx context.Context, p *Playlist) error

	// AppendItem атомарно добавляет публикацию в конец списка и возвращает
	// плейлист после изменения. Повтор - shared.ErrDuplicatePlaylistItem.
	AppendItem(ctx context.Context, playlistID, contentID string, at time.Time) (*Playlist, error)

	// RemoveItem атомарно убирает публикацию из списка.
	// Отсутствие - shared.ErrPlaylistItemMissing.
	RemoveItem(ctx context.Context, playlistID, contentID string, at time.Time) (*Playlist, error)

	Delete(ctx context.Context, id string) error
	FindByOwner(ctx context.Context, ownerID string) ([]*Playlist, error)

	// RemoveItemEverywhere убирает публикацию из всех плейлистов.
	RemoveItemEverywhere(ctx context.Context, contentID string) (int64, error)
}

// CommentFilter - фильтр комментариев.
type CommentFilter struct {
	ContentID string
	OwnerID   string
}

// CommentRepository определяет операции над комментариями.
type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id string) (*Comment, error)
	Update(ctx context.Context, c *Comment) error
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, filter CommentFilter) ([]*Comment, error)

	// DeleteByContent удаляет все комментарии публикации и возвращает их ID.
	DeleteByContent(ctx context.Context, contentID string) ([]string, error)
}
