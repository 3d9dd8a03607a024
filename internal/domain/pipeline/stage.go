// Package pipeline описывает декларативные конвейеры чтения: упорядоченный
// список стадий над именованной коллекцией. Пакет ничего не выполняет,
// хранилища реализуют Runner.
package pipeline

import (
	"context"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// СТАДИИ
// ══════════════════════════════════════════════════════════════════════════════

// StageKind - вид стадии.
type StageKind int

const (
	StageMatch StageKind = iota + 1
	StageSearch
	StageSort
	StageJoin
	StageProject
)

func (k StageKind) String() string {
	switch k {
	case StageMatch:
		return "match"
	case StageSearch:
		return "search"
	case StageSort:
		return "sort"
	case StageJoin:
		return "join"
	case StageProject:
		return "project"
	default:
		return "unknown"
	}
}

// Direction - направление сортировки.
type Direction int

const (
	Desc Direction = iota
	Asc
)

// ParseDirection принимает asc/desc/1/-1, остальное - по убыванию.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "1":
		return Asc
	default:
		return Desc
	}
}

func (d Direction) String() string {
	if d == Asc {
		return "asc"
	}
	return "desc"
}

// Condition - условие равенства по одному полю.
type Condition struct {
	Field string
	Value any
}

// Eq создаёт Condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Value: value}
}

// SearchSpec - поиск подстроки без учёта регистра хотя бы в одном из Fields.
type SearchSpec struct {
	Query  string
	Fields []string
}

// SortSpec сортирует по Field, при равенстве по SeqField в том же направлении.
type SortSpec struct {
	Field     string
	Direction Direction
}

// JoinKind - вид join.
type JoinKind int

const (
	// JoinProfile заменяет LocalField кратким профилем в поле As.
	JoinProfile JoinKind = iota + 1
	// JoinCount кладёт в As число подходящих внешних документов.
	JoinCount
	// JoinPresence кладёт в As признак наличия подходящего документа.
	JoinPresence
	// JoinExpand разворачивает id (или список id) из LocalField в документы
	// с сохранением порядка и применяет к каждому Nested.
	JoinExpand
)

func (k JoinKind) String() string {
	switch k {
	case JoinProfile:
		return "profile"
	case JoinCount:
		return "count"
	case JoinPresence:
		return "presence"
	case JoinExpand:
		return "expand"
	default:
		return "unknown"
	}
}

// JoinSpec описывает join. Внешний документ подходит, если
// foreign[ForeignField] == local[LocalField] и выполнены все Filters.
type JoinSpec struct {
	Kind         JoinKind
	Collection   string
	LocalField   string
	ForeignField string
	As           string
	Filters      []Condition
	Fields       []string // проекция внешнего документа, nil - все поля
	Nested       []JoinSpec
	Visibility   *Visibility
}

// Visibility скрывает чужие неопубликованные документы: документ проходит,
// если PublishedField истинно или OwnerField равно Viewer. Пустой Viewer
// пропускает только опубликованные.
type Visibility struct {
	PublishedField string
	OwnerField     string
	Viewer         string
}

// Allows проверяет документ по правилу видимости. nil пропускает всё.
func (v *Visibility) Allows(d Document) bool {
	if v == nil {
		return true
	}
	if d.Bool(v.PublishedField) {
		return true
	}
	return v.Viewer != "" && d.String(v.OwnerField) == v.Viewer
}

// ProjectSpec убирает поля из результата.
type ProjectSpec struct {
	Exclude []string
}

// Stage - вариант по Kind: заполнено только поле этого вида.
type Stage struct {
	Kind    StageKind
	Match   []Condition
	// Visibility дополняет Match правилом видимости; может быть nil.
	Visibility *Visibility
	Search  *SearchSpec
	Sort    *SortSpec
	Join    *JoinSpec
	Project *ProjectSpec
}

// ══════════════════════════════════════════════════════════════════════════════
// КОНВЕЙЕР И ВЫПОЛНЕНИЕ
// ══════════════════════════════════════════════════════════════════════════════

// Pipeline - собранный список стадий, не зависящий от хранилища.
type Pipeline struct {
	Collection string
	Stages     []Stage
}

// Window - окно результата.
type Window struct {
	Offset int
	Limit  int
}

// Result - документы окна и размер всей выборки.
type Result struct {
	Documents []Document
	Total     int64
}

// Runner выполняет конвейер в хранилище.
type Runner interface {
	Run(ctx context.Context, p *Pipeline, w Window) (*Result, error)
}
