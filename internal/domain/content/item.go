// Package content содержит доменную модель публикаций: видео и короткие
// посты, плейлисты и комментарии. Каждая сущность принадлежит ровно одному
// актору; изменять её может только владелец (см. пакет ownership).
package content

import (
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет вид публикации.
type Kind string

const (
	// KindVideo - видео с медиафайлом и длительностью.
	KindVideo Kind = "video"

	// KindPost - короткий текстовый пост без медиа.
	KindPost Kind = "post"
)

// IsValid проверяет корректность вида публикации.
func (k Kind) IsValid() bool {
	return k == KindVideo || k == KindPost
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxTitleLength - максимальная длина заголовка.
	MaxTitleLength = 200

	// MaxBodyLength - максимальная длина описания или текста поста.
	MaxBodyLength = 5000
)

// Item - публикация (видео или пост).
type Item struct {
	ID           string
	OwnerID      string
	Kind         Kind
	Title        string
	Body         string
	MediaURL     string
	ThumbnailURL string
	Duration     float64
	Published    bool
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Seq - порядковый номер вставки, назначается хранилищем.
	// Используется как tie-breaker при сортировке.
	Seq int64
}

// NewVideo создаёт видео. Медиафайл должен быть уже загружен.
func NewVideo(ownerID, title, description string, media MediaAsset, thumbnailURL string, published bool) (*Item, error) {
	if media.URL == "" {
		return nil, shared.ErrMediaRequired
	}
	now := time.Now().UTC()
	item := &Item{
		ID:           shared.NewID(),
		OwnerID:      ownerID,
		Kind:         KindVideo,
		Title:        strings.TrimSpace(title),
		Body:         strings.TrimSpace(description),
		MediaURL:     media.URL,
		ThumbnailURL: thumbnailURL,
		Duration:     media.Duration,
		Published:    published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if item.Title == "" {
		return nil, shared.ErrContentEmpty
	}
	return item, item.Validate()
}

// NewPost создаёт короткий пост. Посты публикуются сразу.
func NewPost(ownerID, body string) (*Item, error) {
	now := time.Now().UTC()
	item := &Item{
		ID:        shared.NewID(),
		OwnerID:   ownerID,
		Kind:      KindPost,
		Body:      strings.TrimSpace(body),
		Published: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return item, item.Validate()
}

// Validate проверяет структурные инварианты.
func (i *Item) Validate() error {
	if i.OwnerID == "" {
		return shared.ErrContentOwnerEmpty
	}
	if err := shared.ValidateID("content", "owner", i.OwnerID); err != nil {
		return err
	}
	if !i.Kind.IsValid() {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidInput, "invalid content kind")
	}
	if i.Title == "" && i.Body == "" {
		return shared.ErrContentEmpty
	}
	if len(i.Title) > MaxTitleLength {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidInput, "title is too long")
	}
	if len(i.Body) > MaxBodyLength {
		return shared.NewDomainError("content", "Validate", shared.ErrInvalidInput, "body is too long")
	}
	return nil
}

// OwnerRef реализует ownership.Owned.
func (i *Item) OwnerRef() string { return i.OwnerID }

// VisibleTo - неопубликованную публикацию видит только её владелец.
func (i *Item) VisibleTo(viewerID string) bool {
	return i.Published || (viewerID != "" && i.OwnerID == viewerID)
}

// ItemUpdate - частичное обновление публикации. nil означает "не менять".
type ItemUpdate struct {
	Title        *string
	Body         *string
	ThumbnailURL *string
	Media        *MediaAsset
}

// IsEmpty возвращает true, если обновление ничего не меняет.
func (u ItemUpdate) IsEmpty() bool {
	return u.Title == nil && u.Body == nil && u.ThumbnailURL == nil && u.Media == nil
}

// Apply применяет обновление. Пустое обновление - ErrEmptyUpdate.
func (i *Item) Apply(u ItemUpdate) error {
	if u.IsEmpty() {
		return shared.ErrEmptyUpdate
	}
	next := *i
	if u.Title != nil {
		next.Title = strings.TrimSpace(*u.Title)
	}
	if u.Body != nil {
		next.Body = strings.TrimSpace(*u.Body)
	}
	if u.ThumbnailURL != nil {
		next.ThumbnailURL = *u.ThumbnailURL
	}
	if u.Media != nil {
		if i.Kind != KindVideo {
			return shared.NewDomainError("content", "Update", shared.ErrInvalidOperation, "posts have no media")
		}
		next.MediaURL = u.Media.URL
		next.Duration = u.Media.Duration
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*i = next
	return nil
}

// TogglePublish переключает флаг публикации и возвращает новое значение.
func (i *Item) TogglePublish() bool {
	i.Published = !i.Published
	i.UpdatedAt = time.Now().UTC()
	return i.Published
}
