package memory

import (
	"context"
	"sort"

	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// EdgeRepository implements social.EdgeRepository. The map key is the
// (source, target, kind) triple, so a second create for the same triple
// always loses.
type EdgeRepository struct {
	s *Store
}

// Create implements social.EdgeRepository.
func (r *EdgeRepository) Create(ctx context.Context, e *social.Edge) error {
	if err := checkCtx(ctx, "social", "CreateEdge"); err != nil {
		return err
	}
	if !e.Kind.IsValid() {
		return shared.ErrInvalidEdgeKind
	}
	defer r.s.lock(ctx)()

	key := e.Key()
	if _, ok := r.s.t.edges[key]; ok {
		return social.ErrEdgeExists
	}
	r.s.t.edges[key] = edgeRow{seq: r.s.nextSeq(), e: *e}
	return nil
}

// Get implements social.EdgeRepository.
func (r *EdgeRepository) Get(ctx context.Context, key social.Key) (*social.Edge, error) {
	if err := checkCtx(ctx, "social", "GetEdge"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	row, ok := r.s.t.edges[key]
	if !ok {
		return nil, shared.ErrEdgeNotFound
	}
	e := row.e
	return &e, nil
}

// Delete implements social.EdgeRepository.
func (r *EdgeRepository) Delete(ctx context.Context, key social.Key) (bool, error) {
	if err := checkCtx(ctx, "social", "DeleteEdge"); err != nil {
		return false, err
	}
	defer r.s.lock(ctx)()

	if _, ok := r.s.t.edges[key]; !ok {
		return false, nil
	}
	delete(r.s.t.edges, key)
	return true, nil
}

func matchEdge(e social.Edge, f social.EdgeFilter) bool {
	return (f.SourceID == "" || e.SourceID == f.SourceID) &&
		(f.TargetID == "" || e.TargetID == f.TargetID) &&
		(f.Kind == "" || e.Kind == f.Kind) &&
		(f.TargetType == "" || e.TargetType == f.TargetType)
}

// Find implements social.EdgeRepository.
func (r *EdgeRepository) Find(ctx context.Context, f social.EdgeFilter) ([]*social.Edge, error) {
	if err := checkCtx(ctx, "social", "FindEdges"); err != nil {
		return nil, err
	}
	defer r.s.rlock(ctx)()

	rows := make([]edgeRow, 0)
	for _, row := range r.s.t.edges {
		if matchEdge(row.e, f) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]*social.Edge, 0, len(rows))
	for _, row := range rows {
		e := row.e
		out = append(out, &e)
	}
	return out, nil
}

// Count implements social.EdgeRepository.
func (r *EdgeRepository) Count(ctx context.Context, f social.EdgeFilter) (int64, error) {
	if err := checkCtx(ctx, "social", "CountEdges"); err != nil {
		return 0, err
	}
	defer r.s.rlock(ctx)()

	var n int64
	for _, row := range r.s.t.edges {
		if matchEdge(row.e, f) {
			n++
		}
	}
	return n, nil
}

// DeleteByTargets implements social.EdgeRepository.
func (r *EdgeRepository) DeleteByTargets(ctx context.Context, targetIDs []string) (int64, error) {
	if err := checkCtx(ctx, "social", "DeleteByTargets"); err != nil {
		return 0, err
	}
	targets := make(map[string]struct{}, len(targetIDs))
	for _, id := range targetIDs {
		targets[id] = struct{}{}
	}

	defer r.s.lock(ctx)()

	var n int64
	for key := range r.s.t.edges {
		if _, ok := targets[key.TargetID]; ok {
			delete(r.s.t.edges, key)
			n++
		}
	}
	return n, nil
}
