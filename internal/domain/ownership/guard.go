// Package ownership содержит единственную проверку прав на изменение:
// сущность может менять только её владелец.
package ownership

import (
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// Owned - любая сущность с владельцем (публикация, плейлист, комментарий).
type Owned interface {
	OwnerRef() string
}

// Authorize возвращает ErrForbidden, если actorID не владелец entity.
func Authorize(actorID string, entity Owned) error {
	if actorID == "" || entity == nil || entity.OwnerRef() != actorID {
		return shared.ErrNotOwner
	}
	return nil
}

// Guard - проверка прав в виде зависимости для обработчиков команд.
type Guard interface {
	Authorize(actorID string, entity Owned) error
}

// OwnerGuard реализует Guard через Authorize.
type OwnerGuard struct{}

// Authorize реализует Guard.
func (OwnerGuard) Authorize(actorID string, entity Owned) error {
	return Authorize(actorID, entity)
}
