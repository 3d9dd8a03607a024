package pipeline

import (
	"strings"
	"unicode"
)

// Коллекции, известные Builder.
const (
	Actors       = "actors"
	ContentItems = "content_items"
	Edges        = "edges"
	Playlists    = "playlists"
	Comments     = "comments"
)

// SeqField - порядковый номер вставки. В результат не попадает, только
// разрешает равенство при сортировке.
const SeqField = "seq"

// FieldType определяет сравнение и сортировку поля.
type FieldType int

const (
	TypeString FieldType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeTime
	TypeStringList
)

// Field описывает поле документа.
type Field struct {
	Name     string
	Type     FieldType
	Sortable bool
}

// Schema описывает коллекцию.
type Schema struct {
	Collection     string
	Fields         map[string]Field
	SearchFields   []string
	OwnerField     string
	PublishedField string
	DefaultSort    string
}

// Has проверяет наличие поля.
func (s *Schema) Has(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

func schema(collection string, owner, published, defaultSort string, search []string, fields ...Field) *Schema {
	s := &Schema{
		Collection:     collection,
		Fields:         make(map[string]Field, len(fields)),
		SearchFields:   search,
		OwnerField:     owner,
		PublishedField: published,
		DefaultSort:    defaultSort,
	}
	for _, f := range fields {
		s.Fields[f.Name] = f
	}
	return s
}

func str(name string) Field       { return Field{Name: name, Type: TypeString, Sortable: true} }
func text(name string) Field      { return Field{Name: name, Type: TypeString} }
func boolean(name string) Field   { return Field{Name: name, Type: TypeBool} }
func integer(name string) Field   { return Field{Name: name, Type: TypeInt, Sortable: true} }
func float(name string) Field     { return Field{Name: name, Type: TypeFloat, Sortable: true} }
func timestamp(name string) Field { return Field{Name: name, Type: TypeTime, Sortable: true} }

var schemas = map[string]*Schema{
	Actors: schema(Actors, "", "", "created_at", []string{"handle", "display_name"},
		str("id"), str("handle"), str("display_name"), text("avatar_url"), text("cover_url"),
		timestamp("created_at"),
	),
	ContentItems: schema(ContentItems, "owner_id", "published", "created_at", []string{"title", "body"},
		str("id"), str("owner_id"), str("kind"), str("title"), text("body"),
		text("media_url"), text("thumbnail_url"), float("duration"), boolean("published"),
		integer("views"), timestamp("created_at"), timestamp("updated_at"),
	),
	Edges: schema(Edges, "source_id", "", "created_at", nil,
		str("source_id"), str("target_id"), str("kind"), str("target_type"), timestamp("created_at"),
	),
	Playlists: schema(Playlists, "owner_id", "", "created_at", []string{"name", "description"},
		str("id"), str("owner_id"), str("name"), text("description"),
		Field{Name: "items", Type: TypeStringList},
		timestamp("created_at"), timestamp("updated_at"),
	),
	Comments: schema(Comments, "owner_id", "", "created_at", []string{"body"},
		str("id"), str("owner_id"), str("content_id"), text("body"),
		timestamp("created_at"), timestamp("updated_at"),
	),
}

// SchemaOf возвращает схему известной коллекции.
func SchemaOf(collection string) (*Schema, bool) {
	s, ok := schemas[collection]
	return s, ok
}

// NormalizeField приводит написание из запроса (createdAt, created_at)
// к имени поля в хранилище.
func NormalizeField(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ProfileFields - поля краткого профиля для profile join.
var ProfileFields = []string{"id", "handle", "display_name", "avatar_url"}
