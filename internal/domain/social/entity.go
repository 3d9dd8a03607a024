// Package social содержит доменную модель социального графа: направленные
// рёбра FOLLOW (подписка на канал) и LIKE (лайк публикации или комментария).
// Ребро никому не принадлежит; оно идентифицируется тройкой
// (источник, цель, вид), и для каждой тройки существует не более одного ребра.
package social

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// EdgeKind определяет вид связи.
type EdgeKind string

const (
	// KindFollow - подписка актора на канал другого актора.
	KindFollow EdgeKind = "FOLLOW"

	// KindLike - лайк публикации или комментария.
	KindLike EdgeKind = "LIKE"
)

// IsValid проверяет корректность вида связи.
func (k EdgeKind) IsValid() bool {
	return k == KindFollow || k == KindLike
}

// ParseEdgeKind разбирает вид связи без учёта регистра.
func ParseEdgeKind(s string) (EdgeKind, error) {
	k := EdgeKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.ErrInvalidEdgeKind
	}
	return k, nil
}

// TargetType определяет тип цели ребра.
type TargetType string

const (
	TargetActor   TargetType = "actor"
	TargetContent TargetType = "content"
	TargetComment TargetType = "comment"
)

// IsValid проверяет корректность типа цели.
func (t TargetType) IsValid() bool {
	switch t {
	case TargetActor, TargetContent, TargetComment:
		return true
	default:
		return false
	}
}

// ParseTargetType разбирает тип цели; "video" и "post" считаются контентом.
func ParseTargetType(s string) (TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "actor", "channel":
		return TargetActor, nil
	case "content", "video", "post":
		return TargetContent, nil
	case "comment":
		return TargetComment, nil
	default:
		return "", shared.NewDomainError("social", "Validate", shared.ErrInvalidInput, "unknown target type")
	}
}

// Accepts проверяет, что вид связи допускает такую цель:
// FOLLOW - только актор, LIKE - публикация или комментарий.
func (k EdgeKind) Accepts(t TargetType) bool {
	switch k {
	case KindFollow:
		return t == TargetActor
	case KindLike:
		return t == TargetContent || t == TargetComment
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// Presence - состояние тройки: ребро есть или его нет.
// Единственный переход - Toggle; состояния "обновлено" не существует.
type Presence bool

const (
	Absent  Presence = false
	Present Presence = true
)

// Toggle возвращает следующее состояние.
func (p Presence) Toggle() Presence {
	return !p
}

// String возвращает строковое представление.
func (p Presence) String() string {
	if p {
		return "present"
	}
	return "absent"
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrEdgeExists возвращается хранилищем, когда создание проиграло гонку
// уникальности. Движок переключения трактует это как "ребро есть".
var ErrEdgeExists = errors.New("edge already exists")

// ══════════════════════════════════════════════════════════════════════════════
// EDGE
// ══════════════════════════════════════════════════════════════════════════════

// Edge - направленная связь между актором и целью.
type Edge struct {
	SourceID   string
	TargetID   string
	Kind       EdgeKind
	TargetType TargetType
	CreatedAt  time.Time
}

// NewEdgeParams содержит параметры для создания ребра.
type NewEdgeParams struct {
	SourceID   string
	TargetID   string
	Kind       EdgeKind
	TargetType TargetType
}

// NewEdge создаёт ребро с проверкой структурных инвариантов.
func NewEdge(params NewEdgeParams) (*Edge, error) {
	e := &Edge{
		SourceID:   params.SourceID,
		TargetID:   params.TargetID,
		Kind:       params.Kind,
		TargetType: params.TargetType,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate проверяет структурные инварианты ребра.
func (e *Edge) Validate() error {
	if err := shared.ValidateID("social", "source", e.SourceID); err != nil {
		return err
	}
	if err := shared.ValidateID("social", "target", e.TargetID); err != nil {
		return err
	}
	if !e.Kind.IsValid() {
		return shared.ErrInvalidEdgeKind
	}
	if !e.Kind.Accepts(e.TargetType) {
		return shared.ErrTargetMismatch
	}
	if e.Kind == KindFollow && e.SourceID == e.TargetID {
		return shared.ErrSelfFollow
	}
	return nil
}

// Key возвращает уникальный ключ тройки.
func (e *Edge) Key() Key {
	return Key{SourceID: e.SourceID, TargetID: e.TargetID, Kind: e.Kind}
}

// String возвращает строковое представление.
func (e *Edge) String() string {
	return fmt.Sprintf("Edge{%s -%s-> %s}", e.SourceID, e.Kind, e.TargetID)
}

// Key - тройка, уникально идентифицирующая ребро.
type Key struct {
	SourceID string
	TargetID string
	Kind     EdgeKind
}
