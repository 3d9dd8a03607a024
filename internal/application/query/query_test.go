package query

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
	"github.com/clipdeck/clipdeck/internal/domain/stats"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/memory"
)

func newActor(t *testing.T, s *memory.Store, handle string) string {
	t.Helper()
	id := shared.NewID()
	require.NoError(t, s.Actors().Upsert(context.Background(), &actor.Actor{ID: id, Handle: handle, DisplayName: handle}))
	return id
}

func newVideo(t *testing.T, s *memory.Store, owner string, published bool, at time.Time) *content.Item {
	t.Helper()
	item, err := content.NewVideo(owner, "video", "", content.MediaAsset{URL: "u"}, "", published)
	require.NoError(t, err)
	item.CreatedAt = at
	require.NoError(t, s.Items().Create(context.Background(), item))
	return item
}

func like(t *testing.T, s *memory.Store, who, what string) {
	t.Helper()
	require.NoError(t, s.Edges().Create(context.Background(), &social.Edge{
		SourceID: who, TargetID: what, Kind: social.KindLike, TargetType: social.TargetContent, CreatedAt: time.Now(),
	}))
}

// ─────────────────────────────────────────────────────────────────────────────
// Paginator
// ─────────────────────────────────────────────────────────────────────────────

func TestPageRequest_Validate(t *testing.T) {
	r := PageRequest{}
	require.NoError(t, r.Validate())
	assert.Equal(t, PageRequest{Page: 1, Limit: DefaultPageLimit}, r)

	r = PageRequest{Page: 2, Limit: 5000}
	require.NoError(t, r.Validate())
	assert.Equal(t, MaxPageLimit, r.Limit)

	r = PageRequest{Page: -1}
	assert.True(t, shared.IsInvalidInput(r.Validate()))
	r = PageRequest{Limit: -1}
	assert.True(t, shared.IsInvalidInput(r.Validate()))
}

func TestPaginate_TwentyFiveItems(t *testing.T) {
	s := memory.NewStore()
	owner := newActor(t, s, "owner")
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		newVideo(t, s, owner, true, base.Add(time.Duration(i)*time.Second))
	}

	p, err := pipeline.New(pipeline.ContentItems).Build()
	require.NoError(t, err)
	pg := NewPaginator(s)

	page3, err := pg.Paginate(context.Background(), p, PageRequest{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page3.Items, 5)
	assert.Equal(t, int64(25), page3.TotalItems)
	assert.Equal(t, 3, page3.TotalPages)
	assert.False(t, page3.HasNextPage)
	assert.True(t, page3.HasPrevPage)

	page4, err := pg.Paginate(context.Background(), p, PageRequest{Page: 4, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, page4.Items)
	assert.Len(t, page4.Items, 0)
	assert.Equal(t, int64(25), page4.TotalItems)
	assert.Equal(t, 3, page4.TotalPages)
}

func TestPaginate_EmptySet(t *testing.T) {
	s := memory.NewStore()
	p, err := pipeline.New(pipeline.Comments).Build()
	require.NoError(t, err)

	page, err := NewPaginator(s).Paginate(context.Background(), p, PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalPages)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNextPage)
}

func TestPaginate_CreatedAtDescending(t *testing.T) {
	s := memory.NewStore()
	owner := newActor(t, s, "owner")
	rng := rand.New(rand.NewSource(7))
	base := time.Now()
	for i := 0; i < 40; i++ {
		// duplicates on purpose to exercise the tie-breaker
		newVideo(t, s, owner, true, base.Add(-time.Duration(rng.Intn(10))*time.Minute))
	}

	p, err := pipeline.New(pipeline.ContentItems).Build()
	require.NoError(t, err)
	pg := NewPaginator(s)

	var seen []time.Time
	ids := map[string]bool{}
	for page := 1; page <= 4; page++ {
		res, err := pg.Paginate(context.Background(), p, PageRequest{Page: page, Limit: 10})
		require.NoError(t, err)
		for _, d := range res.Items {
			seen = append(seen, d.Time("created_at"))
			ids[d.String("id")] = true
		}
	}
	require.Len(t, seen, 40)
	assert.Len(t, ids, 40, "pages must not overlap")
	for i := 1; i < len(seen); i++ {
		assert.False(t, seen[i].After(seen[i-1]), "position %d", i)
	}
}

type failingRunner struct{}

func (failingRunner) Run(context.Context, *pipeline.Pipeline, pipeline.Window) (*pipeline.Result, error) {
	return nil, shared.Unavailable("pipeline", "Run", errors.New("timeout"))
}

func TestPaginate_StoreFailureIsRetryable(t *testing.T) {
	p, err := pipeline.New(pipeline.ContentItems).Build()
	require.NoError(t, err)
	_, err = NewPaginator(failingRunner{}).Paginate(context.Background(), p, PageRequest{})
	assert.True(t, shared.IsRetryable(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Views
// ─────────────────────────────────────────────────────────────────────────────

func TestContentViews_Feed(t *testing.T) {
	s := memory.NewStore()
	owner, viewer := newActor(t, s, "owner"), newActor(t, s, "viewer")
	pub := newVideo(t, s, owner, true, time.Now())
	hidden := newVideo(t, s, owner, false, time.Now())
	like(t, s, viewer, pub.ID)

	views := NewContentViews(NewPaginator(s))

	page, err := views.Feed(context.Background(), GetContentFeedQuery{ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	doc := page.Items[0]
	assert.Equal(t, pub.ID, doc.String("id"))
	assert.True(t, doc.Bool("is_liked"))
	assert.Equal(t, int64(1), doc.Int("likes_count"))
	assert.Equal(t, "owner", doc.Doc("owner").String("handle"))

	// the owner sees their unpublished item on their own channel
	page, err = views.Feed(context.Background(), GetContentFeedQuery{
		ViewerID: owner,
		Options:  pipeline.Options{OwnerID: owner},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalItems)

	_, err = views.Get(context.Background(), GetContentQuery{ViewerID: viewer, ContentID: hidden.ID})
	assert.True(t, shared.IsNotFound(err))
	doc, err = views.Get(context.Background(), GetContentQuery{ViewerID: owner, ContentID: hidden.ID})
	require.NoError(t, err)
	assert.False(t, doc.Bool("is_liked"))

	_, err = views.Feed(context.Background(), GetContentFeedQuery{Options: pipeline.Options{SortBy: "nope"}})
	assert.True(t, shared.IsInvalidInput(err))
}

func TestContentViews_Liked(t *testing.T) {
	s := memory.NewStore()
	owner, viewer := newActor(t, s, "owner"), newActor(t, s, "viewer")
	v1 := newVideo(t, s, owner, true, time.Now())
	v2 := newVideo(t, s, owner, true, time.Now())
	like(t, s, viewer, v1.ID)
	time.Sleep(time.Millisecond)
	like(t, s, viewer, v2.ID)

	page, err := NewContentViews(NewPaginator(s)).Liked(context.Background(), GetLikedContentQuery{ViewerID: viewer})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, v2.ID, page.Items[0].String("id"))
	assert.Equal(t, v1.ID, page.Items[1].String("id"))
	assert.Contains(t, page.Items[0], "liked_at")
}

func TestContentViews_LikedSkipsUnpublished(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	owner, viewer := newActor(t, s, "owner"), newActor(t, s, "viewer")
	v := newVideo(t, s, owner, true, time.Now())
	like(t, s, viewer, v.ID)
	like(t, s, owner, v.ID)

	// the owner takes the video down after it was liked
	v.Published = false
	require.NoError(t, s.Items().Update(ctx, v))

	views := NewContentViews(NewPaginator(s))

	page, err := views.Liked(ctx, GetLikedContentQuery{ViewerID: viewer})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = views.Liked(ctx, GetLikedContentQuery{ViewerID: owner})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, v.ID, page.Items[0].String("id"))
}

func TestContentViews_GetOwnDraftWithoutProfile(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	// no actor row: the owner profile join comes back empty
	owner := shared.NewID()
	draft := newVideo(t, s, owner, false, time.Now())

	views := NewContentViews(NewPaginator(s))

	doc, err := views.Get(ctx, GetContentQuery{ViewerID: owner, ContentID: draft.ID})
	require.NoError(t, err)
	assert.Equal(t, draft.ID, doc.String("id"))
	assert.Nil(t, doc.Doc("owner"))

	_, err = views.Get(ctx, GetContentQuery{ContentID: draft.ID})
	assert.True(t, shared.IsNotFound(err))
}

func TestChannelViews(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	channel, fan := newActor(t, s, "channel"), newActor(t, s, "fan")
	require.NoError(t, s.Edges().Create(ctx, &social.Edge{SourceID: fan, TargetID: channel, Kind: social.KindFollow, TargetType: social.TargetActor}))

	views := NewChannelViews(NewPaginator(s))

	doc, err := views.Get(ctx, GetChannelQuery{ViewerID: fan, Handle: "channel"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Int("subscribers_count"))
	assert.Equal(t, int64(0), doc.Int("subscribed_to_count"))
	assert.True(t, doc.Bool("is_subscribed"))

	_, err = views.Get(ctx, GetChannelQuery{ChannelID: shared.NewID()})
	assert.True(t, shared.IsNotFound(err))

	subs, err := views.Subscribers(ctx, ListEdgesQuery{ActorID: channel})
	require.NoError(t, err)
	require.Len(t, subs.Items, 1)
	assert.Equal(t, "fan", subs.Items[0].Doc("subscriber").String("handle"))
	assert.NotContains(t, subs.Items[0], "source_id")

	subscriptions, err := views.Subscriptions(ctx, ListEdgesQuery{ActorID: fan})
	require.NoError(t, err)
	require.Len(t, subscriptions.Items, 1)
	assert.Equal(t, "channel", subscriptions.Items[0].Doc("channel").String("handle"))
}

func TestCommentViews(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	owner := newActor(t, s, "owner")
	v := newVideo(t, s, owner, true, time.Now())
	c, err := content.NewComment(owner, v.ID, "first")
	require.NoError(t, err)
	require.NoError(t, s.Comments().Create(ctx, c))

	views := NewCommentViews(NewPaginator(s), s.Items())
	page, err := views.List(ctx, GetCommentsQuery{ContentID: v.ID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "owner", page.Items[0].Doc("owner").String("handle"))

	_, err = views.List(ctx, GetCommentsQuery{ContentID: shared.NewID()})
	assert.True(t, shared.IsNotFound(err))
}

func TestPlaylistViews(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	owner := newActor(t, s, "owner")
	v1 := newVideo(t, s, owner, true, time.Now())
	v2 := newVideo(t, s, owner, true, time.Now())

	pl, err := content.NewPlaylist(owner, "Road trip", "")
	require.NoError(t, err)
	require.NoError(t, pl.AddItem(v2.ID))
	require.NoError(t, pl.AddItem(v1.ID))
	require.NoError(t, s.Playlists().Create(ctx, pl))

	views := NewPlaylistViews(NewPaginator(s))

	page, err := views.ByOwner(ctx, GetPlaylistsQuery{OwnerID: owner, Query: "road"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalItems)

	doc, err := views.Get(ctx, GetPlaylistQuery{ViewerID: owner, PlaylistID: pl.ID})
	require.NoError(t, err)
	items, ok := doc["items"].([]pipeline.Document)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, v2.ID, items[0].String("id"))

	_, err = views.Get(ctx, GetPlaylistQuery{PlaylistID: shared.NewID()})
	assert.True(t, shared.IsNotFound(err))
}

func TestPlaylistViews_HidesOthersUnpublishedItems(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	curator, author := newActor(t, s, "curator"), newActor(t, s, "author")
	pub := newVideo(t, s, author, true, time.Now())
	draft := newVideo(t, s, author, false, time.Now())
	own := newVideo(t, s, curator, false, time.Now())

	pl, err := content.NewPlaylist(curator, "mix", "")
	require.NoError(t, err)
	for _, id := range []string{draft.ID, pub.ID, own.ID} {
		require.NoError(t, pl.AddItem(id))
	}
	require.NoError(t, s.Playlists().Create(ctx, pl))

	views := NewPlaylistViews(NewPaginator(s))
	ids := func(viewer string) []string {
		doc, err := views.Get(ctx, GetPlaylistQuery{ViewerID: viewer, PlaylistID: pl.ID})
		require.NoError(t, err)
		out := []string{}
		for _, d := range doc["items"].([]pipeline.Document) {
			out = append(out, d.String("id"))
		}
		return out
	}

	assert.Equal(t, []string{pub.ID, own.ID}, ids(curator))
	assert.Equal(t, []string{draft.ID, pub.ID}, ids(author))
	assert.Equal(t, []string{pub.ID}, ids(""))
}

// ─────────────────────────────────────────────────────────────────────────────
// Channel stats
// ─────────────────────────────────────────────────────────────────────────────

func TestChannelStats_ZeroContent(t *testing.T) {
	s := memory.NewStore()
	owner := newActor(t, s, "owner")

	got, err := NewChannelStatsHandler(s.Stats(), nil, nil).Handle(context.Background(), GetChannelStatsQuery{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, stats.ChannelStats{}, *got)
}

func TestChannelStats_Counts(t *testing.T) {
	s := memory.NewStore()
	ctx := context.Background()
	owner, fan, other := newActor(t, s, "owner"), newActor(t, s, "fan"), newActor(t, s, "other")
	v1 := newVideo(t, s, owner, true, time.Now())
	newVideo(t, s, owner, false, time.Now())
	foreign := newVideo(t, s, other, true, time.Now())

	_, err := s.Items().IncrementViews(ctx, v1.ID)
	require.NoError(t, err)
	_, err = s.Items().IncrementViews(ctx, v1.ID)
	require.NoError(t, err)
	like(t, s, fan, v1.ID)
	like(t, s, fan, foreign.ID)
	require.NoError(t, s.Edges().Create(ctx, &social.Edge{SourceID: fan, TargetID: owner, Kind: social.KindFollow, TargetType: social.TargetActor}))
	c, err := content.NewComment(fan, v1.ID, "nice")
	require.NoError(t, err)
	require.NoError(t, s.Comments().Create(ctx, c))

	got, err := NewChannelStatsHandler(s.Stats(), nil, nil).Handle(ctx, GetChannelStatsQuery{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, stats.ChannelStats{
		VideoCount:      2,
		TotalViews:      2,
		SubscriberCount: 1,
		LikeCount:       1,
		CommentCount:    1,
	}, *got)
}

type mapCache struct {
	data        map[string]*stats.ChannelStats
	invalidated []string
}

func (c *mapCache) GetChannelStats(_ context.Context, id string) (*stats.ChannelStats, error) {
	if v, ok := c.data[id]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (c *mapCache) SetChannelStats(_ context.Context, id string, s *stats.ChannelStats) error {
	c.data[id] = s
	return nil
}

func (c *mapCache) InvalidateChannelStats(_ context.Context, id string) error {
	delete(c.data, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

func TestChannelStats_UsesCache(t *testing.T) {
	s := memory.NewStore()
	owner := newActor(t, s, "owner")
	cache := &mapCache{data: map[string]*stats.ChannelStats{}}
	h := NewChannelStatsHandler(s.Stats(), cache, nil)

	_, err := h.Handle(context.Background(), GetChannelStatsQuery{OwnerID: owner})
	require.NoError(t, err)
	require.Contains(t, cache.data, owner)

	cache.data[owner] = &stats.ChannelStats{VideoCount: 99}
	got, err := h.Handle(context.Background(), GetChannelStatsQuery{OwnerID: owner})
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.VideoCount)

	got, err = h.Handle(context.Background(), GetChannelStatsQuery{OwnerID: owner, SkipCache: true})
	require.NoError(t, err)
	assert.Zero(t, got.VideoCount)
}

func TestChannelStats_InvalidOwner(t *testing.T) {
	_, err := NewChannelStatsHandler(memory.NewStore().Stats(), nil, nil).Handle(context.Background(), GetChannelStatsQuery{OwnerID: "x"})
	assert.True(t, shared.IsInvalidInput(err))
}
