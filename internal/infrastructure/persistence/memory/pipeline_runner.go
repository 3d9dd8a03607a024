package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

type row struct {
	seq int64
	doc pipeline.Document
}

// Run implements pipeline.Runner. Joins never drop rows, so they are
// evaluated only for the selected window.
func (s *Store) Run(ctx context.Context, p *pipeline.Pipeline, w pipeline.Window) (*pipeline.Result, error) {
	if err := checkCtx(ctx, "pipeline", "Run"); err != nil {
		return nil, err
	}
	defer s.rlock(ctx)()

	cache := make(map[string][]row)
	rows, err := s.collection(cache, p.Collection)
	if err != nil {
		return nil, err
	}
	rows = append([]row(nil), rows...)

	var joins []*pipeline.JoinSpec
	var exclude []string
	for _, st := range p.Stages {
		switch st.Kind {
		case pipeline.StageMatch:
			rows = filterRows(rows, func(d pipeline.Document) bool {
				return matchAll(d, st.Match) && st.Visibility.Allows(d)
			})
		case pipeline.StageSearch:
			rows = filterRows(rows, func(d pipeline.Document) bool { return searchMatch(d, st.Search) })
		case pipeline.StageSort:
			sortRows(rows, st.Sort)
		case pipeline.StageJoin:
			joins = append(joins, st.Join)
		case pipeline.StageProject:
			exclude = append(exclude, st.Project.Exclude...)
		default:
			return nil, shared.NewDomainError("pipeline", "Run", shared.ErrInvalidInput, fmt.Sprintf("unsupported stage %s", st.Kind))
		}
	}

	total := int64(len(rows))
	start := min(max(w.Offset, 0), len(rows))
	end := len(rows)
	if w.Limit > 0 {
		end = min(start+w.Limit, len(rows))
	}

	docs := make([]pipeline.Document, 0, end-start)
	for _, r := range rows[start:end] {
		doc := r.doc.Clone()
		for _, j := range joins {
			if err := s.applyJoin(cache, doc, j); err != nil {
				return nil, err
			}
		}
		for _, f := range exclude {
			delete(doc, f)
		}
		docs = append(docs, doc)
	}
	return &pipeline.Result{Documents: docs, Total: total}, nil
}

func filterRows(rows []row, keep func(pipeline.Document) bool) []row {
	out := rows[:0]
	for _, r := range rows {
		if keep(r.doc) {
			out = append(out, r)
		}
	}
	return out
}

func matchAll(d pipeline.Document, conds []pipeline.Condition) bool {
	for _, c := range conds {
		if !equal(d[c.Field], c.Value) {
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func searchMatch(d pipeline.Document, s *pipeline.SearchSpec) bool {
	q := strings.ToLower(s.Query)
	for _, f := range s.Fields {
		if strings.Contains(strings.ToLower(d.String(f)), q) {
			return true
		}
	}
	return false
}

func compare(a, b any) int {
	switch va := a.(type) {
	case string:
		return strings.Compare(va, b.(string))
	case int64:
		vb := b.(int64)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case float64:
		vb := b.(float64)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	case time.Time:
		return va.Compare(b.(time.Time))
	case bool:
		vb := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		}
		return 1
	default:
		return 0
	}
}

func sortRows(rows []row, spec *pipeline.SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i].doc[spec.Field], rows[j].doc[spec.Field])
		if c == 0 {
			c = compare(rows[i].seq, rows[j].seq)
		}
		if spec.Direction == pipeline.Asc {
			return c < 0
		}
		return c > 0
	})
}

func (s *Store) applyJoin(cache map[string][]row, doc pipeline.Document, j *pipeline.JoinSpec) error {
	foreign, err := s.collection(cache, j.Collection)
	if err != nil {
		return err
	}
	local := doc[j.LocalField]

	matches := func(f pipeline.Document) bool {
		return equal(f[j.ForeignField], local) && matchAll(f, j.Filters) && j.Visibility.Allows(f)
	}

	switch j.Kind {
	case pipeline.JoinProfile:
		var profile pipeline.Document
		for _, r := range foreign {
			if matches(r.doc) {
				profile = r.doc.Pick(j.Fields)
				break
			}
		}
		if j.As != j.LocalField {
			delete(doc, j.LocalField)
		}
		if profile == nil {
			doc[j.As] = nil
		} else {
			doc[j.As] = profile
		}

	case pipeline.JoinCount, pipeline.JoinPresence:
		var n int64
		for _, r := range foreign {
			if matches(r.doc) {
				n++
				if j.Kind == pipeline.JoinPresence {
					break
				}
			}
		}
		if j.Kind == pipeline.JoinCount {
			doc[j.As] = n
		} else {
			doc[j.As] = n > 0
		}

	case pipeline.JoinExpand:
		resolve := func(id string) (pipeline.Document, error) {
			for _, r := range foreign {
				if r.doc[j.ForeignField] == id && matchAll(r.doc, j.Filters) && j.Visibility.Allows(r.doc) {
					out := r.doc.Pick(j.Fields)
					for i := range j.Nested {
						if err := s.applyJoin(cache, out, &j.Nested[i]); err != nil {
							return nil, err
						}
					}
					return out, nil
				}
			}
			return nil, nil
		}

		switch v := local.(type) {
		case string:
			d, err := resolve(v)
			if err != nil {
				return err
			}
			if d == nil {
				doc[j.As] = nil
			} else {
				doc[j.As] = d
			}
		case []string:
			list := make([]pipeline.Document, 0, len(v))
			for _, id := range v {
				d, err := resolve(id)
				if err != nil {
					return err
				}
				if d != nil {
					list = append(list, d)
				}
			}
			doc[j.As] = list
		default:
			doc[j.As] = nil
		}

	default:
		return shared.NewDomainError("pipeline", "Run", shared.ErrInvalidInput, fmt.Sprintf("unsupported join %s", j.Kind))
	}
	return nil
}

// collection materializes a collection as documents. Must be called with
// mu held; results are cached per run.
func (s *Store) collection(cache map[string][]row, name string) ([]row, error) {
	if rows, ok := cache[name]; ok {
		return rows, nil
	}
	var rows []row
	switch name {
	case pipeline.Actors:
		for _, r := range s.t.actors {
			a := r.a
			rows = append(rows, row{seq: r.seq, doc: pipeline.Document{
				"id":           a.ID,
				"handle":       a.Handle,
				"display_name": a.DisplayName,
				"avatar_url":   a.AvatarURL,
				"cover_url":    a.CoverURL,
				"created_at":   a.CreatedAt,
			}})
		}
	case pipeline.ContentItems:
		for _, i := range s.t.items {
			rows = append(rows, row{seq: i.Seq, doc: pipeline.Document{
				"id":            i.ID,
				"owner_id":      i.OwnerID,
				"kind":          string(i.Kind),
				"title":         i.Title,
				"body":          i.Body,
				"media_url":     i.MediaURL,
				"thumbnail_url": i.ThumbnailURL,
				"duration":      i.Duration,
				"published":     i.Published,
				"views":         i.Views,
				"created_at":    i.CreatedAt,
				"updated_at":    i.UpdatedAt,
			}})
		}
	case pipeline.Edges:
		for _, r := range s.t.edges {
			e := r.e
			rows = append(rows, row{seq: r.seq, doc: pipeline.Document{
				"source_id":   e.SourceID,
				"target_id":   e.TargetID,
				"kind":        string(e.Kind),
				"target_type": string(e.TargetType),
				"created_at":  e.CreatedAt,
			}})
		}
	case pipeline.Playlists:
		for _, r := range s.t.playlists {
			p := r.p
			rows = append(rows, row{seq: r.seq, doc: pipeline.Document{
				"id":          p.ID,
				"owner_id":    p.OwnerID,
				"name":        p.Name,
				"description": p.Description,
				"items":       append([]string{}, p.Items...),
				"created_at":  p.CreatedAt,
				"updated_at":  p.UpdatedAt,
			}})
		}
	case pipeline.Comments:
		for _, c := range s.t.comments {
			rows = append(rows, row{seq: c.Seq, doc: pipeline.Document{
				"id":         c.ID,
				"owner_id":   c.OwnerID,
				"content_id": c.ContentID,
				"body":       c.Body,
				"created_at": c.CreatedAt,
				"updated_at": c.UpdatedAt,
			}})
		}
	default:
		return nil, shared.NewDomainError("pipeline", "Run", shared.ErrInvalidInput, fmt.Sprintf("unknown collection %q", name))
	}
	// map iteration order is random; seq gives a stable base order
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	cache[name] = rows
	return rows, nil
}
