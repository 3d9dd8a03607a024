package social

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// Хранилище обеспечивает уникальность тройки; бизнес-правила (самоподписка,
// существование цели) проверяет движок переключения.
// ══════════════════════════════════════════════════════════════════════════════

// EdgeFilter - фильтр по равенству. Пустые поля не учитываются.
type EdgeFilter struct {
	SourceID   string
	TargetID   string
	Kind       EdgeKind
	TargetType TargetType
}

// EdgeRepository определяет операции над рёбрами.
type EdgeRepository interface {
	// Create сохраняет ребро.
	// Возвращает ErrEdgeExists, если тройка уже занята.
	Create(ctx context.Context, e *Edge) error

	// Get возвращает ребро по тройке или shared.ErrEdgeNotFound.
	Get(ctx context.Context, key Key) (*Edge, error)

	// Delete удаляет ребро по тройке и сообщает, было ли что удалять.
	// Повторное удаление не является ошибкой.
	Delete(ctx context.Context, key Key) (bool, error)

	// Find возвращает рёбра по фильтру в порядке создания.
	Find(ctx context.Context, filter EdgeFilter) ([]*Edge, error)

	// Count возвращает количество рёбер по фильтру.
	Count(ctx context.Context, filter EdgeFilter) (int64, error)

	// DeleteByTargets удаляет все рёбра, ведущие к любой из целей.
	DeleteByTargets(ctx context.Context, targetIDs []string) (int64, error)
}
