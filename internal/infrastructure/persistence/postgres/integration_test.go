package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

// liveStore connects to CLIPDECK_TEST_DATABASE_URL, migrates and truncates,
// or skips the test.
func liveStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("CLIPDECK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CLIPDECK_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.URL = url
	conn, err := NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `TRUNCATE actors, content_items, playlists, comments, edges`)
	require.NoError(t, err)

	return NewStore(conn)
}

func TestEdgeRepository_ConcurrentCreateKeepsOneEdge(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()

	edge := &social.Edge{
		SourceID: shared.NewID(), TargetID: shared.NewID(),
		Kind: social.KindLike, TargetType: social.TargetContent, CreatedAt: time.Now().UTC(),
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Edges().Create(ctx, edge)
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, social.ErrEdgeExists)
	}
	assert.Equal(t, 1, created)

	n, err := s.Edges().Count(ctx, social.EdgeFilter{TargetID: edge.TargetID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := s.Edges().Delete(ctx, edge.Key())
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.Edges().Delete(ctx, edge.Key())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPipelineRunner_PagesAndCount(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()
	owner := shared.NewID()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		item := &content.Item{
			ID: shared.NewID(), OwnerID: owner, Kind: content.KindPost,
			Title: fmt.Sprintf("post %02d", i), Published: true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute), UpdatedAt: base,
		}
		require.NoError(t, s.Items().Create(ctx, item))
	}

	p, err := pipeline.New(pipeline.ContentItems).PublishedOnly().Build()
	require.NoError(t, err)

	res, err := s.Runner().Run(ctx, p, pipeline.Window{Offset: 20, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Total)
	require.Len(t, res.Documents, 5)
	assert.Equal(t, "post 04", res.Documents[0].String("title"))

	res, err = s.Runner().Run(ctx, p, pipeline.Window{Offset: 30, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Total)
	assert.Empty(t, res.Documents)
}

func TestWithinTx_RollsBack(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()
	item := &content.Item{
		ID: shared.NewID(), OwnerID: shared.NewID(), Kind: content.KindPost, Title: "x",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}

	boom := fmt.Errorf("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Items().Create(ctx, item))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Items().GetByID(ctx, item.ID)
	assert.True(t, shared.IsNotFound(err))
}

func TestPlaylistRepository_ConcurrentAppend(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()
	p, err := content.NewPlaylist(shared.NewID(), "mix", "")
	require.NoError(t, err)
	require.NoError(t, s.Playlists().Create(ctx, p))

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		ids[i] = shared.NewID()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Playlists().AppendItem(ctx, p.ID, id, time.Now().UTC())
			assert.NoError(t, err)
		}(ids[i])
	}
	wg.Wait()

	got, err := s.Playlists().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got.Items)

	_, err = s.Playlists().AppendItem(ctx, p.ID, ids[0], time.Now().UTC())
	assert.True(t, shared.IsInvalidOperation(err))
	_, err = s.Playlists().RemoveItem(ctx, p.ID, shared.NewID(), time.Now().UTC())
	assert.True(t, shared.IsInvalidOperation(err))
	_, err = s.Playlists().AppendItem(ctx, shared.NewID(), ids[0], time.Now().UTC())
	assert.True(t, shared.IsNotFound(err))
}
