package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/internal/application/command"
	"github.com/clipdeck/clipdeck/internal/application/query"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/memory"
	"github.com/clipdeck/clipdeck/internal/interface/http/handlers"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

const testSecret = "test-secret-test-secret-test-secret"

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(*Config, *Dependencies)) *testAPI {
	t.Helper()
	s := memory.NewStore()
	paginator := query.NewPaginator(s)

	cfg := DefaultConfig()
	cfg.RateLimitRPS = 0
	cfg.EnableMetrics = false
	cfg.UploadDir = t.TempDir()
	cfg.Auth = AuthConfig{Secret: testSecret, Leeway: time.Second}

	deps := Dependencies{
		UpsertActor:      command.NewUpsertActorHandler(s.Actors()),
		ToggleEdge:       command.NewToggleEdgeHandler(s.Actors(), s.Items(), s.Comments(), s.Edges(), nil),
		CreateContent:    command.NewCreateContentHandler(s.Actors(), s.Items(), nil, nil),
		ContentMutations: command.NewContentMutationHandler(s, s.Items(), s.Comments(), s.Playlists(), s.Edges(), nil, nil),
		Playlists:        command.NewPlaylistHandler(s.Playlists(), s.Items(), nil),
		Comments:         command.NewCommentHandler(s, s.Comments(), s.Items(), s.Edges(), nil),
		ContentViews:     query.NewContentViews(paginator),
		ChannelViews:     query.NewChannelViews(paginator),
		CommentViews:     query.NewCommentViews(paginator, s.Items()),
		PlaylistViews:    query.NewPlaylistViews(paginator),
		ChannelStats:     query.NewChannelStatsHandler(s.Stats(), nil, logger.Nop()),
		Logger:           logger.Nop(),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{t: t, handler: srv.Handler()}
}

func token(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Kind       string          `json:"kind"`
	Success    bool            `json:"success"`
}

func (a *testAPI) do(method, path, caller string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+token(a.t, caller, time.Hour))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (a *testAPI) actor(handle string) string {
	a.t.Helper()
	id := shared.NewID()
	code, env := a.do(http.MethodPut, "/api/v1/actors/me", id, map[string]string{"handle": handle})
	require.Equal(a.t, http.StatusOK, code, env.Message)
	return id
}

func (a *testAPI) post(owner, body string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/v1/content/posts", owner, map[string]string{"body": body})
	require.Equal(a.t, http.StatusCreated, code, env.Message)
	var item struct {
		ID string `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &item))
	return item.ID
}

func TestLikeToggle_FlipsAndCounts(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")
	bob := api.actor("bob")
	postID := api.post(alice, "hello")

	var result struct {
		IsPresent bool `json:"isPresent"`
	}

	code, env := api.do(http.MethodPost, "/api/v1/likes/content/"+postID, bob, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.IsPresent)

	code, env = api.do(http.MethodGet, "/api/v1/content/"+postID, bob, nil)
	require.Equal(t, http.StatusOK, code)
	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.EqualValues(t, 1, detail["likes_count"])
	assert.Equal(t, true, detail["is_liked"])
	assert.Equal(t, "alice", detail["owner"].(map[string]interface{})["handle"])

	code, env = api.do(http.MethodPost, "/api/v1/likes/video/"+postID, bob, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.False(t, result.IsPresent)
}

func TestSubscription_SelfFollowIsInvalidOperation(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")

	code, env := api.do(http.MethodPost, "/api/v1/subscriptions/"+alice, alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, kindInvalidOperation, env.Kind)
	assert.False(t, env.Success)
}

func TestAuth_RequiredAndInvalidTokens(t *testing.T) {
	api := newTestServer(t, nil)

	code, env := api.do(http.MethodPost, "/api/v1/content/posts", "", map[string]string{"body": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, kindUnauthorized, env.Kind)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/content", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, shared.NewID(), -time.Hour))
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "an expired token is rejected even on public routes")

	auth := NewAuthenticator(AuthConfig{Secret: testSecret})
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: shared.NewID()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Verify(none)
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))

	_, err = auth.Verify(token(t, "not-a-uuid", time.Hour))
	assert.True(t, errors.Is(err, shared.ErrUnauthorized))
}

func TestOwnership_ForbiddenForEveryEntity(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")
	mallory := api.actor("mallory")
	postID := api.post(alice, "mine")

	code, env := api.do(http.MethodDelete, "/api/v1/content/"+postID, mallory, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, kindForbidden, env.Kind)

	code, env = api.do(http.MethodPost, "/api/v1/content/"+postID+"/comments", alice, map[string]string{"body": "first"})
	require.Equal(t, http.StatusCreated, code)
	var comment struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &comment))
	code, _ = api.do(http.MethodPatch, "/api/v1/comments/"+comment.ID, mallory, map[string]string{"body": "edited"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodPost, "/api/v1/playlists", alice, map[string]string{"name": "mix"})
	require.Equal(t, http.StatusCreated, code)
	var playlist struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &playlist))
	code, _ = api.do(http.MethodDelete, "/api/v1/playlists/"+playlist.ID, mallory, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodDelete, "/api/v1/content/"+postID, alice, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodGet, "/api/v1/content/"+postID, alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, kindNotFound, env.Kind)
}

func TestPlaylist_DuplicateItemIsInvalidOperation(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")
	postID := api.post(alice, "song")

	_, env := api.do(http.MethodPost, "/api/v1/playlists", alice, map[string]string{"name": "mix"})
	var playlist struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &playlist))

	path := fmt.Sprintf("/api/v1/playlists/%s/items/%s", playlist.ID, postID)
	code, _ := api.do(http.MethodPost, path, alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodPost, path, alice, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, kindInvalidOperation, env.Kind)

	code, env = api.do(http.MethodGet, "/api/v1/playlists/"+playlist.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var detail struct {
		Items []map[string]interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.Len(t, detail.Items, 1)
	assert.Equal(t, postID, detail.Items[0]["id"])
}

func TestFeed_PaginatesTwentyFiveItems(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")
	for i := 0; i < 25; i++ {
		api.post(alice, fmt.Sprintf("post %02d", i))
	}

	var page struct {
		Items       []map[string]interface{} `json:"items"`
		TotalItems  int64                    `json:"totalItems"`
		TotalPages  int                      `json:"totalPages"`
		HasNextPage bool                     `json:"hasNextPage"`
		HasPrevPage bool                     `json:"hasPrevPage"`
	}

	code, env := api.do(http.MethodGet, "/api/v1/content?page=3&limit=10", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 5)
	assert.EqualValues(t, 25, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)
	assert.Equal(t, "post 04", page.Items[0]["body"], "newest first")

	code, env = api.do(http.MethodGet, "/api/v1/content?page=4&limit=10", "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)

	code, env = api.do(http.MethodGet, "/api/v1/content?page=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, kindInvalidInput, env.Kind)

	code, _ = api.do(http.MethodGet, "/api/v1/content?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChannelStats_ZeroForEmptyChannel(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")

	code, env := api.do(http.MethodGet, "/api/v1/channels/"+alice+"/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"videoCount":0,"totalViews":0,"subscriberCount":0,"likeCount":0,"commentCount":0}`, string(env.Data))

	code, env = api.do(http.MethodGet, "/api/v1/channels/alice", "", nil)
	require.Equal(t, http.StatusOK, code)
	var channel map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &channel))
	assert.Equal(t, alice, channel["id"])
	assert.Equal(t, false, channel["is_subscribed"])
}

func TestValidation_ReportsJSONFieldName(t *testing.T) {
	api := newTestServer(t, nil)
	alice := api.actor("alice")

	code, env := api.do(http.MethodPost, "/api/v1/playlists", alice, map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "name")
}

func TestRateLimit_RejectsBurst(t *testing.T) {
	api := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 1
	})

	code, _ := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, env := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, kindRateLimited, env.Kind)
}

func TestReady_ReportsFailingDependency(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(context.Context) error { return errors.New("down") })
	api := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthChecker = checker
	})

	code, env := api.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "database")
}

func TestErrorBody_HidesInternals(t *testing.T) {
	body := errorBody(shared.Unavailable("content", "Get", errors.New("dial tcp 10.0.0.3:5432: refused")))
	assert.Equal(t, http.StatusServiceUnavailable, body.StatusCode)
	assert.Equal(t, kindUnavailable, body.Kind)
	assert.NotContains(t, body.Message, "10.0.0.3")

	body = errorBody(errors.New("something unexpected"))
	assert.Equal(t, http.StatusServiceUnavailable, body.StatusCode)

	body = errorBody(fmt.Errorf("toggle: %w", shared.ErrSelfFollow))
	assert.Equal(t, http.StatusUnprocessableEntity, body.StatusCode)
	assert.Equal(t, "cannot follow yourself", body.Message)
}
