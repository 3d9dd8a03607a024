package memory

import (
	"context"

	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// StatsSource implements stats.Source by scanning the tables.
type StatsSource struct {
	s *Store
}

// Stats returns the stats source of the store.
func (s *Store) Stats() *StatsSource { return &StatsSource{s: s} }

// ownedItems must be called with mu held.
func (src *StatsSource) ownedItems(ownerID string) map[string]struct{} {
	ids := make(map[string]struct{})
	for id, item := range src.s.t.items {
		if item.OwnerID == ownerID {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// CountContent implements stats.Source.
func (src *StatsSource) CountContent(ctx context.Context, ownerID string) (int64, error) {
	if err := checkCtx(ctx, "stats", "CountContent"); err != nil {
		return 0, err
	}
	defer src.s.rlock(ctx)()
	return int64(len(src.ownedItems(ownerID))), nil
}

// SumViews implements stats.Source.
func (src *StatsSource) SumViews(ctx context.Context, ownerID string) (int64, error) {
	if err := checkCtx(ctx, "stats", "SumViews"); err != nil {
		return 0, err
	}
	defer src.s.rlock(ctx)()

	var total int64
	for _, item := range src.s.t.items {
		if item.OwnerID == ownerID {
			total += item.Views
		}
	}
	return total, nil
}

// CountSubscribers implements stats.Source.
func (src *StatsSource) CountSubscribers(ctx context.Context, ownerID string) (int64, error) {
	if err := checkCtx(ctx, "stats", "CountSubscribers"); err != nil {
		return 0, err
	}
	defer src.s.rlock(ctx)()

	var n int64
	for key := range src.s.t.edges {
		if key.Kind == social.KindFollow && key.TargetID == ownerID {
			n++
		}
	}
	return n, nil
}

// CountContentLikes implements stats.Source.
func (src *StatsSource) CountContentLikes(ctx context.Context, ownerID string) (int64, error) {
	if err := checkCtx(ctx, "stats", "CountContentLikes"); err != nil {
		return 0, err
	}
	defer src.s.rlock(ctx)()

	owned := src.ownedItems(ownerID)
	var n int64
	for key := range src.s.t.edges {
		if key.Kind != social.KindLike {
			continue
		}
		if _, ok := owned[key.TargetID]; ok {
			n++
		}
	}
	return n, nil
}

// CountContentComments implements stats.Source.
func (src *StatsSource) CountContentComments(ctx context.Context, ownerID string) (int64, error) {
	if err := checkCtx(ctx, "stats", "CountContentComments"); err != nil {
		return 0, err
	}
	defer src.s.rlock(ctx)()

	owned := src.ownedItems(ownerID)
	var n int64
	for _, c := range src.s.t.comments {
		if _, ok := owned[c.ContentID]; ok {
			n++
		}
	}
	return n, nil
}
