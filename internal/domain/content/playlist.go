package content

import (
	"slices"
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// Playlist - упорядоченный набор публикаций без повторов.
type Playlist struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Items       []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewPlaylist создаёт пустой плейлист.
func NewPlaylist(ownerID, name, description string) (*Playlist, error) {
	now := time.Now().UTC()
	p := &Playlist{
		ID:          shared.NewID(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Items:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return p, p.Validate()
}

// Validate проверяет структурные инварианты.
func (p *Playlist) Validate() error {
	if err := shared.ValidateID("playlist", "owner", p.OwnerID); err != nil {
		return err
	}
	if p.Name == "" {
		return shared.ErrPlaylistNameRequired
	}
	return nil
}

// OwnerRef реализует ownership.Owned.
func (p *Playlist) OwnerRef() string { return p.OwnerID }

// Contains проверяет, входит ли публикация в плейлист.
func (p *Playlist) Contains(contentID string) bool {
	return slices.Contains(p.Items, contentID)
}

// AddItem добавляет публикацию в конец. Повтор - ErrDuplicatePlaylistItem.
func (p *Playlist) AddItem(contentID string) error {
	if p.Contains(contentID) {
		return shared.ErrDuplicatePlaylistItem
	}
	p.Items = append(p.Items, contentID)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// RemoveItem удаляет публикацию, сохраняя порядок остальных.
func (p *Playlist) RemoveItem(contentID string) error {
	idx := slices.Index(p.Items, contentID)
	if idx < 0 {
		return shared.ErrPlaylistItemMissing
	}
	p.Items = slices.Delete(p.Items, idx, idx+1)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Rename обновляет название и описание.
func (p *Playlist) Rename(name, description *string) error {
	if name == nil && description == nil {
		return shared.ErrEmptyUpdate
	}
	next := *p
	if name != nil {
		next.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		next.Description = strings.TrimSpace(*description)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*p = next
	return nil
}
