// Package actor содержит ссылку на профиль пользователя (канала).
// Профили выпускает внешний сервис идентификации; ядро их только читает
// и хранит копию для денормализованных представлений.
package actor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)

// Actor представляет пользователя, который публикует контент и подписывается
// на другие каналы.
type Actor struct {
	ID          string
	Handle      string
	DisplayName string
	AvatarURL   string
	CoverURL    string
	CreatedAt   time.Time
}

// Validate проверяет структурную корректность профиля.
func (a *Actor) Validate() error {
	if err := shared.ValidateID("actor", "id", a.ID); err != nil {
		return err
	}
	a.Handle = strings.ToLower(strings.TrimSpace(a.Handle))
	if !handlePattern.MatchString(a.Handle) {
		return shared.ErrInvalidHandle
	}
	return nil
}

// Repository определяет операции над копией профилей.
type Repository interface {
	// Upsert создаёт или обновляет профиль. CreatedAt не перезаписывается.
	Upsert(ctx context.Context, a *Actor) error

	// GetByID возвращает профиль или shared.ErrActorNotFound.
	GetByID(ctx context.Context, id string) (*Actor, error)

	// Exists проверяет наличие профиля.
	Exists(ctx context.Context, id string) (bool, error)
}
