// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Read views are described as pipelines and executed by the Paginator.
package query

import (
	"context"
	"fmt"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAGINATOR
// Выполняет pipeline один раз: движок возвращает окно и точный размер
// выборки. Страница за пределами totalPages - пустой список, а не ошибка.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultPage - страница по умолчанию.
	DefaultPage = 1

	// DefaultPageLimit - размер страницы по умолчанию.
	DefaultPageLimit = 10

	// MaxPageLimit - верхняя граница размера страницы.
	MaxPageLimit = 100
)

// PageRequest - номер страницы и её размер.
type PageRequest struct {
	Page  int
	Limit int
}

// Validate подставляет значения по умолчанию и ограничивает limit.
// Отрицательные значения - InvalidInput.
func (r *PageRequest) Validate() error {
	if r.Page < 0 {
		return shared.NewDomainError("query", "Paginate", shared.ErrInvalidInput, "page cannot be negative")
	}
	if r.Limit < 0 {
		return shared.NewDomainError("query", "Paginate", shared.ErrInvalidInput, "limit cannot be negative")
	}
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.Limit == 0 {
		r.Limit = DefaultPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
	return nil
}

// Offset возвращает смещение окна.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

// Page - результат пагинации.
type Page struct {
	// Items - документы окна; никогда не nil.
	Items []pipeline.Document `json:"items"`

	// TotalItems - размер всей выборки.
	TotalItems int64 `json:"totalItems"`

	// TotalPages - ceil(TotalItems / Limit).
	TotalPages int `json:"totalPages"`

	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// Paginator выполняет pipeline через Runner.
type Paginator struct {
	runner pipeline.Runner
}

// NewPaginator создаёт Paginator.
func NewPaginator(runner pipeline.Runner) *Paginator {
	return &Paginator{runner: runner}
}

// Paginate выполняет pipeline и возвращает страницу.
func (p *Paginator) Paginate(ctx context.Context, pl *pipeline.Pipeline, req PageRequest) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := p.runner.Run(ctx, pl, pipeline.Window{Offset: req.Offset(), Limit: req.Limit})
	if err != nil {
		return nil, fmt.Errorf("paginate %s: %w", pl.Collection, err)
	}

	items := res.Documents
	if items == nil {
		items = []pipeline.Document{}
	}
	totalPages := int((res.Total + int64(req.Limit) - 1) / int64(req.Limit))

	return &Page{
		Items:       items,
		TotalItems:  res.Total,
		TotalPages:  totalPages,
		Page:        req.Page,
		Limit:       req.Limit,
		HasNextPage: req.Page < totalPages,
		HasPrevPage: req.Page > 1,
	}, nil
}

// First выполняет pipeline и возвращает первый документ или notFound.
func (p *Paginator) First(ctx context.Context, pl *pipeline.Pipeline, notFound error) (pipeline.Document, error) {
	res, err := p.runner.Run(ctx, pl, pipeline.Window{Offset: 0, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("first %s: %w", pl.Collection, err)
	}
	if len(res.Documents) == 0 {
		return nil, notFound
	}
	return res.Documents[0], nil
}
