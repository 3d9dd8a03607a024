package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

func seedActor(t *testing.T, s *Store, handle string) *actor.Actor {
	t.Helper()
	a := &actor.Actor{ID: shared.NewID(), Handle: handle, DisplayName: handle, CreatedAt: time.Now()}
	require.NoError(t, s.Actors().Upsert(context.Background(), a))
	return a
}

func seedVideo(t *testing.T, s *Store, owner, title string, at time.Time) *content.Item {
	t.Helper()
	item, err := content.NewVideo(owner, title, "", content.MediaAsset{URL: "https://cdn/" + title}, "", true)
	require.NoError(t, err)
	item.CreatedAt = at
	require.NoError(t, s.Items().Create(context.Background(), item))
	return item
}

func TestEdgeRepository_UniqueTriple(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	a, b := shared.NewID(), shared.NewID()
	e := &social.Edge{SourceID: a, TargetID: b, Kind: social.KindFollow, TargetType: social.TargetActor}

	require.NoError(t, s.Edges().Create(ctx, e))
	assert.ErrorIs(t, s.Edges().Create(ctx, e), social.ErrEdgeExists)

	// same pair, other kind is a different triple
	like := *e
	like.Kind = social.KindLike
	like.TargetType = social.TargetContent
	require.NoError(t, s.Edges().Create(ctx, &like))

	deleted, err := s.Edges().Delete(ctx, e.Key())
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Edges().Delete(ctx, e.Key())
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Edges().Get(ctx, e.Key())
	assert.True(t, shared.IsNotFound(err))
}

func TestEdgeRepository_ConcurrentCreate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	e := &social.Edge{SourceID: shared.NewID(), TargetID: shared.NewID(), Kind: social.KindLike, TargetType: social.TargetContent}

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Edges().Create(ctx, e); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	n, err := s.Edges().Count(ctx, social.EdgeFilter{TargetID: e.TargetID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	owner := seedActor(t, s, "owner")
	item := seedVideo(t, s, owner.ID, "v", time.Now())

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Items().Delete(ctx, item.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Items().GetByID(context.Background(), item.ID)
	assert.NoError(t, err)
}

func TestWithinTx_RollbackKeepsOutsideWrites(t *testing.T) {
	s := NewStore()
	owner := seedActor(t, s, "owner")
	item := seedVideo(t, s, owner.ID, "v", time.Now())
	fan := shared.NewID()

	inTx := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(context.Background(), func(ctx context.Context) error {
			close(inTx)
			time.Sleep(20 * time.Millisecond)
			return errors.New("boom")
		})
	}()
	<-inTx

	// blocks until the transaction has rolled back
	like := &social.Edge{SourceID: fan, TargetID: item.ID, Kind: social.KindLike, TargetType: social.TargetContent}
	require.NoError(t, s.Edges().Create(context.Background(), like))
	require.Error(t, <-done)

	_, err := s.Edges().Get(context.Background(), like.Key())
	assert.NoError(t, err)
}

func TestPlaylistRepository_AppendAndRemoveItem(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p, err := content.NewPlaylist(shared.NewID(), "p", "")
	require.NoError(t, err)
	require.NoError(t, s.Playlists().Create(ctx, p))

	ids := make([]string, 16)
	var wg sync.WaitGroup
	for i := range ids {
		ids[i] = shared.NewID()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Playlists().AppendItem(ctx, p.ID, id, time.Now())
			assert.NoError(t, err)
		}(ids[i])
	}
	wg.Wait()

	got, err := s.Playlists().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got.Items)

	_, err = s.Playlists().AppendItem(ctx, p.ID, ids[0], time.Now())
	assert.ErrorIs(t, err, shared.ErrDuplicatePlaylistItem)

	got, err = s.Playlists().RemoveItem(ctx, p.ID, ids[0], time.Now())
	require.NoError(t, err)
	assert.Len(t, got.Items, len(ids)-1)

	_, err = s.Playlists().RemoveItem(ctx, p.ID, ids[0], time.Now())
	assert.ErrorIs(t, err, shared.ErrPlaylistItemMissing)

	_, err = s.Playlists().AppendItem(ctx, shared.NewID(), ids[0], time.Now())
	assert.True(t, shared.IsNotFound(err))
}

func TestCancelledContext_Unavailable(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Items().GetByID(ctx, shared.NewID())
	assert.True(t, shared.IsRetryable(err))
}

func TestPlaylistRepository_RemoveItemEverywhere(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := shared.NewID()
	v := shared.NewID()

	for i := 0; i < 2; i++ {
		p, err := content.NewPlaylist(owner, "p", "")
		require.NoError(t, err)
		require.NoError(t, p.AddItem(v))
		require.NoError(t, p.AddItem(shared.NewID()))
		require.NoError(t, s.Playlists().Create(ctx, p))
	}

	n, err := s.Playlists().RemoveItemEverywhere(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	lists, err := s.Playlists().FindByOwner(ctx, owner)
	require.NoError(t, err)
	for _, p := range lists {
		assert.False(t, p.Contains(v))
		assert.Len(t, p.Items, 1)
	}
}

func TestRun_SortAndWindow(t *testing.T) {
	s := NewStore()
	owner := seedActor(t, s, "owner")
	base := time.Now().Add(-time.Hour)
	same := base.Add(time.Minute)

	first := seedVideo(t, s, owner.ID, "a", base)
	tieOld := seedVideo(t, s, owner.ID, "b", same)
	tieNew := seedVideo(t, s, owner.ID, "c", same)

	p, err := pipeline.New(pipeline.ContentItems).Build()
	require.NoError(t, err)

	res, err := s.Run(context.Background(), p, pipeline.Window{Offset: 0, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	require.Len(t, res.Documents, 3)
	// created_at desc, ties broken by insertion order in the same direction
	assert.Equal(t, tieNew.ID, res.Documents[0].String("id"))
	assert.Equal(t, tieOld.ID, res.Documents[1].String("id"))
	assert.Equal(t, first.ID, res.Documents[2].String("id"))

	res, err = s.Run(context.Background(), p, pipeline.Window{Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)
}

func TestRun_SearchAndJoins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedActor(t, s, "owner")
	viewer := seedActor(t, s, "viewer")
	cats := seedVideo(t, s, owner.ID, "Funny CATS", time.Now())
	seedVideo(t, s, owner.ID, "dogs", time.Now())

	require.NoError(t, s.Edges().Create(ctx, &social.Edge{SourceID: viewer.ID, TargetID: cats.ID, Kind: social.KindLike, TargetType: social.TargetContent}))
	c, err := content.NewComment(viewer.ID, cats.ID, "lol")
	require.NoError(t, err)
	require.NoError(t, s.Comments().Create(ctx, c))

	p, err := pipeline.New(pipeline.ContentItems).
		Search("cats").
		JoinOwnerProfile().
		JoinCount(pipeline.Edges, "target_id", "likes_count", pipeline.Eq("kind", "LIKE")).
		JoinCount(pipeline.Comments, "content_id", "comments_count").
		JoinPresence(pipeline.Edges, "target_id", "is_liked", pipeline.Eq("kind", "LIKE"), pipeline.Eq("source_id", viewer.ID)).
		Project("media_url").
		Build()
	require.NoError(t, err)

	res, err := s.Run(ctx, p, pipeline.Window{Limit: 10})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	doc := res.Documents[0]
	assert.Equal(t, int64(1), doc.Int("likes_count"))
	assert.Equal(t, int64(1), doc.Int("comments_count"))
	assert.True(t, doc.Bool("is_liked"))
	assert.Equal(t, "owner", doc.Doc("owner").String("handle"))
	assert.NotContains(t, doc, "owner_id")
	assert.NotContains(t, doc, "media_url")
}

func TestRun_ExpandPreservesOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner := seedActor(t, s, "owner")
	v1 := seedVideo(t, s, owner.ID, "one", time.Now())
	v2 := seedVideo(t, s, owner.ID, "two", time.Now())

	pl, err := content.NewPlaylist(owner.ID, "mix", "")
	require.NoError(t, err)
	require.NoError(t, pl.AddItem(v2.ID))
	require.NoError(t, pl.AddItem(shared.NewID())) // dangling id is skipped
	require.NoError(t, pl.AddItem(v1.ID))
	require.NoError(t, s.Playlists().Create(ctx, pl))

	p, err := pipeline.New(pipeline.Playlists).
		Where("id", pl.ID).
		JoinExpand("items", pipeline.ContentItems, pipeline.OwnerProfile("owner_id")).
		Build()
	require.NoError(t, err)

	res, err := s.Run(ctx, p, pipeline.Window{Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	items, ok := res.Documents[0]["items"].([]pipeline.Document)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, v2.ID, items[0].String("id"))
	assert.Equal(t, v1.ID, items[1].String("id"))
	assert.Equal(t, "owner", items[0].Doc("owner").String("handle"))
}
