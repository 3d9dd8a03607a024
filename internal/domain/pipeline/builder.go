package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUILDER
// Опции задаются в любом порядке, стадии всегда идут в одном:
// match, search, sort, joins (в порядке вызова), projection.
// ══════════════════════════════════════════════════════════════════════════════

// Builder собирает Pipeline. Первую ошибку опций возвращает Build.
type Builder struct {
	schema  *Schema
	match   []Condition
	visible *Visibility
	search  *SearchSpec
	sort    *SortSpec
	joins   []JoinSpec
	exclude []string
	err     error
}

// New начинает конвейер над коллекцией.
func New(collection string) *Builder {
	b := &Builder{}
	s, ok := SchemaOf(collection)
	if !ok {
		b.fail("unknown collection %q", collection)
		b.schema = &Schema{Collection: collection}
		return b
	}
	b.schema = s
	return b
}

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = shared.NewDomainError("pipeline", "Build", shared.ErrInvalidInput, fmt.Sprintf(format, args...))
	}
}

// PublishedOnly оставляет только опубликованные документы.
func (b *Builder) PublishedOnly() *Builder {
	if b.schema.PublishedField == "" {
		b.fail("%s has no published flag", b.schema.Collection)
		return b
	}
	return b.Where(b.schema.PublishedField, true)
}

// OwnedBy оставляет документы владельца ownerID.
func (b *Builder) OwnedBy(ownerID string) *Builder {
	if b.schema.OwnerField == "" {
		b.fail("%s has no owner", b.schema.Collection)
		return b
	}
	return b.Where(b.schema.OwnerField, ownerID)
}

// VisibleTo оставляет опубликованные документы и неопубликованные
// документы viewerID.
func (b *Builder) VisibleTo(viewerID string) *Builder {
	if b.schema.PublishedField == "" || b.schema.OwnerField == "" {
		b.fail("%s has no visibility rule", b.schema.Collection)
		return b
	}
	b.visible = &Visibility{
		PublishedField: b.schema.PublishedField,
		OwnerField:     b.schema.OwnerField,
		Viewer:         viewerID,
	}
	return b
}

// Where добавляет фильтр по равенству.
func (b *Builder) Where(field string, value any) *Builder {
	c, err := condition(b.schema, field, value)
	if err != nil {
		b.fail("%v", err)
		return b
	}
	b.match = append(b.match, c)
	return b
}

// Search ищет подстроку без учёта регистра по текстовым полям коллекции.
// Пустой запрос игнорируется.
func (b *Builder) Search(q string) *Builder {
	q = strings.TrimSpace(q)
	if q == "" {
		return b
	}
	if len(b.schema.SearchFields) == 0 {
		b.fail("%s is not searchable", b.schema.Collection)
		return b
	}
	b.search = &SearchSpec{Query: q, Fields: b.schema.SearchFields}
	return b
}

// SortBy задаёт сортировку. Пустое поле оставляет порядок по умолчанию.
func (b *Builder) SortBy(field string, dir Direction) *Builder {
	field = NormalizeField(field)
	if field == "" {
		return b
	}
	f, ok := b.schema.Fields[field]
	if !ok || !f.Sortable {
		b.fail("cannot sort %s by %q", b.schema.Collection, field)
		return b
	}
	b.sort = &SortSpec{Field: field, Direction: dir}
	return b
}

// JoinOwnerProfile заменяет ссылку на владельца его кратким профилем
// в поле "owner".
func (b *Builder) JoinOwnerProfile() *Builder {
	if b.schema.OwnerField == "" {
		b.fail("%s has no owner", b.schema.Collection)
		return b
	}
	return b.join(OwnerProfile(b.schema.OwnerField))
}

// JoinProfile заменяет localField кратким профилем пользователя в поле as.
func (b *Builder) JoinProfile(localField, as string) *Builder {
	return b.join(Profile(localField, as))
}

// JoinCount добавляет число документов collection, у которых foreignField
// равно id документа.
func (b *Builder) JoinCount(collection, foreignField, as string, filters ...Condition) *Builder {
	return b.join(CountOf(collection, foreignField, as, filters...))
}

// JoinPresence добавляет признак, что такой документ есть.
func (b *Builder) JoinPresence(collection, foreignField, as string, filters ...Condition) *Builder {
	return b.join(PresenceOf(collection, foreignField, as, filters...))
}

// JoinExpand разворачивает id или список id в поле field в документы
// collection на том же месте и применяет к каждому вложенные join.
func (b *Builder) JoinExpand(field, collection string, nested ...JoinSpec) *Builder {
	return b.join(Expand(field, collection, nested...))
}

// JoinExpandVisible - JoinExpand, который пропускает чужие неопубликованные
// документы так, будто их нет.
func (b *Builder) JoinExpandVisible(field, collection, viewerID string, nested ...JoinSpec) *Builder {
	j, err := VisibleTo(Expand(field, collection, nested...), viewerID)
	if err != nil {
		b.fail("%v", err)
		return b
	}
	return b.join(j)
}

// Project убирает поля из результата.
func (b *Builder) Project(exclude ...string) *Builder {
	b.exclude = append(b.exclude, exclude...)
	return b
}

func (b *Builder) join(j JoinSpec) *Builder {
	if err := validateJoin(b.schema, j); err != nil {
		b.fail("%v", err)
		return b
	}
	b.joins = append(b.joins, j)
	return b
}

// Build проверяет и возвращает конвейер.
func (b *Builder) Build() (*Pipeline, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Pipeline{Collection: b.schema.Collection}

	if len(b.match) > 0 || b.visible != nil {
		p.Stages = append(p.Stages, Stage{Kind: StageMatch, Match: b.match, Visibility: b.visible})
	}
	if b.search != nil {
		p.Stages = append(p.Stages, Stage{Kind: StageSearch, Search: b.search})
	}
	sort := b.sort
	if sort == nil {
		sort = &SortSpec{Field: b.schema.DefaultSort, Direction: Desc}
	}
	p.Stages = append(p.Stages, Stage{Kind: StageSort, Sort: sort})
	for i := range b.joins {
		p.Stages = append(p.Stages, Stage{Kind: StageJoin, Join: &b.joins[i]})
	}
	if len(b.exclude) > 0 {
		p.Stages = append(p.Stages, Stage{Kind: StageProject, Project: &ProjectSpec{Exclude: b.exclude}})
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Конструкторы join, годятся и как вложенные join для JoinExpand.
// ─────────────────────────────────────────────────────────────────────────────

// OwnerProfile присоединяет владельца из ownerField как "owner".
func OwnerProfile(ownerField string) JoinSpec {
	return Profile(ownerField, "owner")
}

// Profile присоединяет пользователя из localField под именем as.
func Profile(localField, as string) JoinSpec {
	return JoinSpec{
		Kind:         JoinProfile,
		Collection:   Actors,
		LocalField:   localField,
		ForeignField: "id",
		As:           as,
		Fields:       ProfileFields,
	}
}

// CountOf считает внешние документы, ссылающиеся на id документа.
func CountOf(collection, foreignField, as string, filters ...Condition) JoinSpec {
	return JoinSpec{
		Kind:         JoinCount,
		Collection:   collection,
		LocalField:   "id",
		ForeignField: foreignField,
		As:           as,
		Filters:      filters,
	}
}

// PresenceOf проверяет, есть ли внешний документ со ссылкой на id.
func PresenceOf(collection, foreignField, as string, filters ...Condition) JoinSpec {
	j := CountOf(collection, foreignField, as, filters...)
	j.Kind = JoinPresence
	return j
}

// Expand разворачивает id из field в документы collection.
func Expand(field, collection string, nested ...JoinSpec) JoinSpec {
	return JoinSpec{
		Kind:         JoinExpand,
		Collection:   collection,
		LocalField:   field,
		ForeignField: "id",
		As:           field,
		Nested:       nested,
	}
}

// VisibleTo ограничивает join документами, которые видит viewerID.
// Коллекция join должна иметь владельца и флаг публикации.
func VisibleTo(j JoinSpec, viewerID string) (JoinSpec, error) {
	foreign, ok := SchemaOf(j.Collection)
	if !ok {
		return j, fmt.Errorf("unknown join collection %q", j.Collection)
	}
	if foreign.PublishedField == "" || foreign.OwnerField == "" {
		return j, fmt.Errorf("%s has no visibility rule", foreign.Collection)
	}
	j.Visibility = &Visibility{
		PublishedField: foreign.PublishedField,
		OwnerField:     foreign.OwnerField,
		Viewer:         viewerID,
	}
	return j, nil
}

func validateJoin(local *Schema, j JoinSpec) error {
	foreign, ok := SchemaOf(j.Collection)
	if !ok {
		return fmt.Errorf("unknown join collection %q", j.Collection)
	}
	lf, ok := local.Fields[j.LocalField]
	if !ok {
		return fmt.Errorf("%s has no field %q", local.Collection, j.LocalField)
	}
	if !foreign.Has(j.ForeignField) {
		return fmt.Errorf("%s has no field %q", foreign.Collection, j.ForeignField)
	}
	if j.As == "" {
		return fmt.Errorf("join into %s needs an output name", j.Collection)
	}
	for _, f := range j.Filters {
		if _, err := condition(foreign, f.Field, f.Value); err != nil {
			return err
		}
	}
	if v := j.Visibility; v != nil && (!foreign.Has(v.PublishedField) || !foreign.Has(v.OwnerField)) {
		return fmt.Errorf("%s has no visibility rule", foreign.Collection)
	}
	switch j.Kind {
	case JoinProfile:
		if lf.Type != TypeString {
			return fmt.Errorf("profile join needs a scalar reference, %q is not", j.LocalField)
		}
	case JoinCount, JoinPresence:
	case JoinExpand:
		if lf.Type != TypeString && lf.Type != TypeStringList {
			return fmt.Errorf("cannot expand %q", j.LocalField)
		}
		for _, n := range j.Nested {
			if err := validateJoin(foreign, n); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown join kind %d", j.Kind)
	}
	return nil
}

// condition проверяет, что поле есть и значение подходит по типу.
// Целые приводятся к int64.
func condition(s *Schema, field string, value any) (Condition, error) {
	field = NormalizeField(field)
	f, ok := s.Fields[field]
	if !ok {
		return Condition{}, fmt.Errorf("%s has no field %q", s.Collection, field)
	}
	bad := func() (Condition, error) {
		return Condition{}, fmt.Errorf("bad value %v for %s.%s", value, s.Collection, field)
	}
	switch f.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return bad()
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return bad()
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
			value = int64(v)
		case int64:
		default:
			return bad()
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
		case int:
			value = float64(v)
		default:
			return bad()
		}
	case TypeTime:
		if _, ok := value.(time.Time); !ok {
			return bad()
		}
	default:
		return bad()
	}
	return Condition{Field: field, Value: value}, nil
}
