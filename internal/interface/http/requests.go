package http

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clipdeck/clipdeck/internal/application/query"
	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type createPostRequest struct {
	Body string `json:"body" form:"body" validate:"required,max=5000"`
}

type updateContentRequest struct {
	Title *string `json:"title" form:"title" validate:"omitempty,max=200"`
	Body  *string `json:"body" form:"body" validate:"omitempty,max=5000"`
}

type createPlaylistRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type updatePlaylistRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type commentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

type upsertActorRequest struct {
	Handle      string `json:"handle" validate:"required"`
	DisplayName string `json:"displayName" validate:"max=100"`
	AvatarURL   string `json:"avatarUrl" validate:"omitempty,url"`
	CoverURL    string `json:"coverUrl" validate:"omitempty,url"`
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-VIEW QUERY PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

// pageRequest reads page and limit from the query string.
func pageRequest(c echo.Context) (query.PageRequest, error) {
	var req query.PageRequest
	err := echo.QueryParamsBinder(c).
		Int("page", &req.Page).
		Int("limit", &req.Limit).
		BindError()
	if err != nil {
		return req, shared.WrapError("http", "Bind", shared.ErrInvalidInput, "page and limit must be integers", err)
	}
	return req, nil
}

// viewOptions reads query, sortBy, sortType, userId and publishedOnly.
func viewOptions(c echo.Context) (pipeline.Options, error) {
	var opts pipeline.Options
	err := echo.QueryParamsBinder(c).
		String("query", &opts.Query).
		String("sortBy", &opts.SortBy).
		String("sortType", &opts.SortDirection).
		String("userId", &opts.OwnerID).
		Bool("publishedOnly", &opts.PublishedOnly).
		BindError()
	if err != nil {
		return opts, shared.WrapError("http", "Bind", shared.ErrInvalidInput, "invalid read-view parameters", err)
	}
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY PRESENTERS
// Write paths return the entity in the same snake_case shape the read
// views produce.
// ══════════════════════════════════════════════════════════════════════════════

type itemResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Kind         string    `json:"kind"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	MediaURL     string    `json:"media_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     float64   `json:"duration"`
	Published    bool      `json:"published"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func presentItem(i *content.Item) itemResponse {
	return itemResponse{
		ID:           i.ID,
		OwnerID:      i.OwnerID,
		Kind:         string(i.Kind),
		Title:        i.Title,
		Body:         i.Body,
		MediaURL:     i.MediaURL,
		ThumbnailURL: i.ThumbnailURL,
		Duration:     i.Duration,
		Published:    i.Published,
		Views:        i.Views,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

type playlistResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Items       []string  `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func presentPlaylist(p *content.Playlist) playlistResponse {
	items := p.Items
	if items == nil {
		items = []string{}
	}
	return playlistResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Items:       items,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type commentResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ContentID string    `json:"content_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func presentComment(m *content.Comment) commentResponse {
	return commentResponse{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		ContentID: m.ContentID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type actorResponse struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
	CoverURL    string    `json:"cover_url"`
	CreatedAt   time.Time `json:"created_at"`
}

func presentActor(a *actor.Actor) actorResponse {
	return actorResponse{
		ID:          a.ID,
		Handle:      a.Handle,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		CoverURL:    a.CoverURL,
		CreatedAt:   a.CreatedAt,
	}
}
