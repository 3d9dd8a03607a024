package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
)

func mustBuild(t *testing.T, b *pipeline.Builder) *pipeline.Pipeline {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestCompile_FeedQuery(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.ContentItems).
		PublishedOnly().
		Search("road_trip").
		JoinOwnerProfile().
		JoinCount(pipeline.Edges, "target_id", "likes_count", pipeline.Eq("kind", string(social.KindLike))).
		Project("body"))

	c, err := compile(p, pipeline.Window{Offset: 20, Limit: 10})
	require.NoError(t, err)

	assert.Contains(t, c.query, `t0."published" = $1`)
	assert.Contains(t, c.query, `t0."title" ILIKE $2 OR t0."body" ILIKE $2`)
	assert.Contains(t, c.query, `COUNT(*) OVER() AS total__`)
	assert.Contains(t, c.query, `ORDER BY t0."created_at" DESC, t0."seq" DESC LIMIT $3 OFFSET $4`)
	assert.Contains(t, c.query, ` - 'owner_id')`, "profile join drops the reference")
	assert.Contains(t, c.query, `jsonb_build_object('owner', (SELECT`)
	assert.Contains(t, c.query, `(SELECT COUNT(*) FROM "edges" j2 WHERE j2."target_id" = t0."id" AND j2."kind" = $5)`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(c.query), `t0."seq" DESC`))
	assert.Contains(t, c.query, ` - 'body')`)

	assert.Equal(t, []interface{}{true, `%road\_trip%`, 10, 20, "LIKE"}, c.args)
	assert.Equal(t, `SELECT COUNT(*) FROM "content_items" t0 WHERE t0."published" = $1 AND (t0."title" ILIKE $2 OR t0."body" ILIKE $2)`, c.countQuery)
	assert.Equal(t, []interface{}{true, `%road\_trip%`}, c.countArgs)
}

func TestCompile_SortAscendingStringsBytewise(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.ContentItems).SortBy("title", pipeline.Asc))

	c, err := compile(p, pipeline.Window{})
	require.NoError(t, err)
	assert.Contains(t, c.query, `t0."title" COLLATE "C" ASC, t0."seq" ASC`)
	assert.NotContains(t, c.query, "LIMIT")
	assert.Empty(t, c.args)
}

func TestCompile_ExpandList(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.Playlists).
		Where("id", "pl-1").
		JoinExpand("items", pipeline.ContentItems, pipeline.OwnerProfile("owner_id")))

	c, err := compile(p, pipeline.Window{Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, c.query, `unnest(t0."items") WITH ORDINALITY AS u(ref, ord)`)
	assert.Contains(t, c.query, `jsonb_agg(x.doc ORDER BY x.ord)`)
	assert.Contains(t, c.query, `j2."id" = j1."owner_id"`, "nested join is evaluated against the expanded item")
}

func TestCompile_VisibleExpandAndMatch(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.Playlists).
		Where("id", "pl-1").
		JoinExpandVisible("items", pipeline.ContentItems, "viewer-1"))

	c, err := compile(p, pipeline.Window{Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, c.query, `(j1."published" OR j1."owner_id" = $3)`)
	assert.Equal(t, []interface{}{"pl-1", 1, "viewer-1"}, c.args)

	p = mustBuild(t, pipeline.New(pipeline.ContentItems).Where("id", "c-1").VisibleTo(""))
	c, err = compile(p, pipeline.Window{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "content_items" t0 WHERE t0."id" = $1 AND t0."published"`, c.countQuery)
}

func TestCompile_PresenceAndUnknownCollection(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.Actors).
		JoinPresence(pipeline.Edges, "target_id", "is_subscribed",
			pipeline.Eq("source_id", "viewer"), pipeline.Eq("kind", string(social.KindFollow))))

	c, err := compile(p, pipeline.Window{})
	require.NoError(t, err)
	assert.Contains(t, c.query, `EXISTS (SELECT 1 FROM "edges" j1 WHERE j1."target_id" = t0."id" AND j1."source_id" = $1 AND j1."kind" = $2)`)

	_, err = compile(&pipeline.Pipeline{Collection: "nope"}, pipeline.Window{})
	assert.True(t, shared.IsInvalidInput(err))
}

func TestDecode_RestoresTypes(t *testing.T) {
	p := mustBuild(t, pipeline.New(pipeline.Playlists).
		JoinOwnerProfile().
		JoinCount(pipeline.Edges, "target_id", "likes_count"))
	c, err := compile(p, pipeline.Window{})
	require.NoError(t, err)

	raw := []byte(`{
		"id": "pl-1", "name": "Trips", "items": ["a", "b"],
		"created_at": "2024-05-01T10:00:00.123456+00:00",
		"owner": {"id": "u1", "handle": "alice"},
		"likes_count": 3
	}`)
	doc, err := c.decode(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, doc["items"])
	assert.Equal(t, int64(3), doc["likes_count"])
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), doc["created_at"])
	assert.Equal(t, "alice", doc.Doc("owner").String("handle"))

	doc, err = c.decode([]byte(`{"id": "pl-2", "owner": null, "items": []}`))
	require.NoError(t, err)
	assert.Nil(t, doc["owner"])
	assert.Equal(t, []string{}, doc["items"])
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("content", "Get", nil, shared.ErrContentNotFound))
	assert.Equal(t, shared.ErrContentNotFound, translate("content", "Get", pgx.ErrNoRows, shared.ErrContentNotFound))

	err := translate("content", "Get", context.DeadlineExceeded, nil)
	assert.True(t, shared.IsRetryable(err))

	err = translate("content", "Get", fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "08006"}), nil)
	assert.True(t, shared.IsRetryable(err))

	domainErr := shared.ErrPlaylistNotFound
	assert.Same(t, domainErr, translate("playlist", "Get", domainErr, nil))

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
