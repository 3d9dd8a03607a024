package pipeline

// Options - параметры запроса чтения. Каждое поле соответствует одной
// опции Builder.
type Options struct {
	PublishedOnly bool
	OwnerID       string
	Query         string
	SortBy        string
	SortDirection string
}

// Apply добавляет опции в b.
func (o Options) Apply(b *Builder) *Builder {
	if o.PublishedOnly {
		b.PublishedOnly()
	}
	if o.OwnerID != "" {
		b.OwnedBy(o.OwnerID)
	}
	if o.Query != "" {
		b.Search(o.Query)
	}
	if o.SortBy != "" {
		b.SortBy(o.SortBy, ParseDirection(o.SortDirection))
	} else if o.SortDirection != "" {
		b.SortBy(b.schema.DefaultSort, ParseDirection(o.SortDirection))
	}
	return b
}
