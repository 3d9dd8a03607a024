package http

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clipdeck/clipdeck/internal/application/command"
	"github.com/clipdeck/clipdeck/internal/application/query"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT
// ══════════════════════════════════════════════════════════════════════════════

// handleContentFeed serves GET /api/v1/content.
func (s *Server) handleContentFeed(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	opts, err := viewOptions(c)
	if err != nil {
		return err
	}

	result, err := s.deps.ContentViews.Feed(c.Request().Context(), query.GetContentFeedQuery{
		ViewerID:    callerID(c),
		Options:     opts,
		PageRequest: page,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Content fetched successfully")
}

// handleGetContent serves GET /api/v1/content/:id.
func (s *Server) handleGetContent(c echo.Context) error {
	doc, err := s.deps.ContentViews.Get(c.Request().Context(), query.GetContentQuery{
		ViewerID:  callerID(c),
		ContentID: c.Param("id"),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, doc, "Content fetched successfully")
}

// handleLikedContent serves GET /api/v1/content/liked.
func (s *Server) handleLikedContent(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := s.deps.ContentViews.Liked(c.Request().Context(), query.GetLikedContentQuery{
		ViewerID:    callerID(c),
		PageRequest: page,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Liked content fetched successfully")
}

// handleCreateVideo serves POST /api/v1/content/videos (multipart).
func (s *Server) handleCreateVideo(c echo.Context) error {
	videoPath, err := s.saveUpload(c, "videoFile")
	if err != nil {
		return err
	}
	defer s.removeUpload(videoPath)
	if videoPath == "" {
		return shared.ErrMediaRequired
	}
	thumbPath, err := s.saveUpload(c, "thumbnail")
	if err != nil {
		return err
	}
	defer s.removeUpload(thumbPath)

	published := true
	if raw := c.FormValue("published"); raw != "" {
		if published, err = strconv.ParseBool(raw); err != nil {
			return shared.WrapError("http", "Bind", shared.ErrInvalidInput, "published must be a boolean", err)
		}
	}

	item, err := s.deps.CreateContent.HandleVideo(c.Request().Context(), command.CreateVideoCommand{
		OwnerID:       callerID(c),
		Title:         c.FormValue("title"),
		Description:   c.FormValue("description"),
		VideoPath:     videoPath,
		ThumbnailPath: thumbPath,
		Published:     published,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, presentItem(item), "Video published successfully")
}

// handleCreatePost serves POST /api/v1/content/posts.
func (s *Server) handleCreatePost(c echo.Context) error {
	var req createPostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	item, err := s.deps.CreateContent.HandlePost(c.Request().Context(), command.CreatePostCommand{
		OwnerID: callerID(c),
		Body:    req.Body,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, presentItem(item), "Post created successfully")
}

// handleUpdateContent serves PATCH /api/v1/content/:id. Multipart requests
// may replace the video and thumbnail files.
func (s *Server) handleUpdateContent(c echo.Context) error {
	var req updateContentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	videoPath, err := s.saveUpload(c, "videoFile")
	if err != nil {
		return err
	}
	defer s.removeUpload(videoPath)
	thumbPath, err := s.saveUpload(c, "thumbnail")
	if err != nil {
		return err
	}
	defer s.removeUpload(thumbPath)

	item, err := s.deps.ContentMutations.Update(c.Request().Context(), command.UpdateContentCommand{
		CallerID:      callerID(c),
		ContentID:     c.Param("id"),
		Title:         req.Title,
		Body:          req.Body,
		VideoPath:     videoPath,
		ThumbnailPath: thumbPath,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentItem(item), "Content updated successfully")
}

// handleTogglePublish serves PATCH /api/v1/content/:id/publish.
func (s *Server) handleTogglePublish(c echo.Context) error {
	item, err := s.deps.ContentMutations.TogglePublish(c.Request().Context(), callerID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]bool{"published": item.Published}, "Publish status toggled")
}

// handleRecordView serves POST /api/v1/content/:id/views.
func (s *Server) handleRecordView(c echo.Context) error {
	views, err := s.deps.ContentMutations.RecordView(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]int64{"views": views}, "View recorded")
}

// handleDeleteContent serves DELETE /api/v1/content/:id.
func (s *Server) handleDeleteContent(c echo.Context) error {
	if err := s.deps.ContentMutations.Delete(c.Request().Context(), callerID(c), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]string{"id": c.Param("id")}, "Content deleted successfully")
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMENTS
// ══════════════════════════════════════════════════════════════════════════════

// handleListComments serves GET /api/v1/content/:id/comments.
func (s *Server) handleListComments(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := s.deps.CommentViews.List(c.Request().Context(), query.GetCommentsQuery{
		ViewerID:    callerID(c),
		ContentID:   c.Param("id"),
		PageRequest: page,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Comments fetched successfully")
}

// handleCreateComment serves POST /api/v1/content/:id/comments.
func (s *Server) handleCreateComment(c echo.Context) error {
	var req commentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	comment, err := s.deps.Comments.Create(c.Request().Context(), command.CreateCommentCommand{
		OwnerID:   callerID(c),
		ContentID: c.Param("id"),
		Body:      req.Body,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, presentComment(comment), "Comment added successfully")
}

// handleUpdateComment serves PATCH /api/v1/comments/:id.
func (s *Server) handleUpdateComment(c echo.Context) error {
	var req commentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	comment, err := s.deps.Comments.Update(c.Request().Context(), callerID(c), c.Param("id"), req.Body)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentComment(comment), "Comment updated successfully")
}

// handleDeleteComment serves DELETE /api/v1/comments/:id.
func (s *Server) handleDeleteComment(c echo.Context) error {
	if err := s.deps.Comments.Delete(c.Request().Context(), callerID(c), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]string{"id": c.Param("id")}, "Comment deleted successfully")
}

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLES
// ══════════════════════════════════════════════════════════════════════════════

// handleToggleLike serves POST /api/v1/likes/:kind/:targetId where kind is
// content (video, post) or comment.
func (s *Server) handleToggleLike(c echo.Context) error {
	targetType, err := social.ParseTargetType(c.Param("kind"))
	if err != nil {
		return err
	}
	return s.toggle(c, command.ToggleEdgeCommand{
		CallerID:   callerID(c),
		TargetID:   c.Param("targetId"),
		Kind:       social.KindLike,
		TargetType: targetType,
	})
}

// handleToggleSubscription serves POST /api/v1/subscriptions/:channelId.
func (s *Server) handleToggleSubscription(c echo.Context) error {
	return s.toggle(c, command.ToggleEdgeCommand{
		CallerID:   callerID(c),
		TargetID:   c.Param("channelId"),
		Kind:       social.KindFollow,
		TargetType: social.TargetActor,
	})
}

func (s *Server) toggle(c echo.Context, cmd command.ToggleEdgeCommand) error {
	cmd.CorrelationID = c.Response().Header().Get(echo.HeaderXRequestID)
	result, err := s.deps.ToggleEdge.Handle(c.Request().Context(), cmd)
	if err != nil {
		return err
	}
	msg := "Removed successfully"
	if result.IsPresent {
		msg = "Added successfully"
	}
	return respond(c, http.StatusOK, result, msg)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNELS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetChannel serves GET /api/v1/channels/:ref where ref is an actor
// id or a handle.
func (s *Server) handleGetChannel(c echo.Context) error {
	q := query.GetChannelQuery{ViewerID: callerID(c)}
	ref := c.Param("ref")
	if _, err := uuid.Parse(ref); err == nil {
		q.ChannelID = ref
	} else {
		q.Handle = ref
	}

	doc, err := s.deps.ChannelViews.Get(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, doc, "Channel fetched successfully")
}

// handleChannelStats serves GET /api/v1/channels/:ref/stats.
func (s *Server) handleChannelStats(c echo.Context) error {
	stats, err := s.deps.ChannelStats.Handle(c.Request().Context(), query.GetChannelStatsQuery{OwnerID: c.Param("ref")})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats, "Channel stats fetched successfully")
}

// handleChannelSubscribers serves GET /api/v1/channels/:ref/subscribers.
func (s *Server) handleChannelSubscribers(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := s.deps.ChannelViews.Subscribers(c.Request().Context(), query.ListEdgesQuery{ActorID: c.Param("ref"), PageRequest: page})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Subscribers fetched successfully")
}

// handleChannelSubscriptions serves GET /api/v1/channels/:ref/subscriptions.
func (s *Server) handleChannelSubscriptions(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := s.deps.ChannelViews.Subscriptions(c.Request().Context(), query.ListEdgesQuery{ActorID: c.Param("ref"), PageRequest: page})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Subscriptions fetched successfully")
}

// handleChannelPlaylists serves GET /api/v1/channels/:ref/playlists.
func (s *Server) handleChannelPlaylists(c echo.Context) error {
	page, err := pageRequest(c)
	if err != nil {
		return err
	}
	result, err := s.deps.PlaylistViews.ByOwner(c.Request().Context(), query.GetPlaylistsQuery{
		OwnerID:     c.Param("ref"),
		Query:       c.QueryParam("query"),
		PageRequest: page,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, result, "Playlists fetched successfully")
}

// handleUpsertActor serves PUT /api/v1/actors/me. The identity service
// pushes the caller's profile here.
func (s *Server) handleUpsertActor(c echo.Context) error {
	var req upsertActorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := s.deps.UpsertActor.Handle(c.Request().Context(), command.UpsertActorCommand{
		ID:          callerID(c),
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentActor(a), "Profile saved successfully")
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYLISTS
// ══════════════════════════════════════════════════════════════════════════════

// handleCreatePlaylist serves POST /api/v1/playlists.
func (s *Server) handleCreatePlaylist(c echo.Context) error {
	var req createPlaylistRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := s.deps.Playlists.Create(c.Request().Context(), command.CreatePlaylistCommand{
		OwnerID:     callerID(c),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, presentPlaylist(p), "Playlist created successfully")
}

// handleGetPlaylist serves GET /api/v1/playlists/:id.
func (s *Server) handleGetPlaylist(c echo.Context) error {
	doc, err := s.deps.PlaylistViews.Get(c.Request().Context(), query.GetPlaylistQuery{
		ViewerID:   callerID(c),
		PlaylistID: c.Param("id"),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, doc, "Playlist fetched successfully")
}

// handleUpdatePlaylist serves PATCH /api/v1/playlists/:id.
func (s *Server) handleUpdatePlaylist(c echo.Context) error {
	var req updatePlaylistRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := s.deps.Playlists.Update(c.Request().Context(), command.UpdatePlaylistCommand{
		CallerID:    callerID(c),
		PlaylistID:  c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentPlaylist(p), "Playlist updated successfully")
}

// handleDeletePlaylist serves DELETE /api/v1/playlists/:id.
func (s *Server) handleDeletePlaylist(c echo.Context) error {
	if err := s.deps.Playlists.Delete(c.Request().Context(), callerID(c), c.Param("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, map[string]string{"id": c.Param("id")}, "Playlist deleted successfully")
}

// handleAddPlaylistItem serves POST /api/v1/playlists/:id/items/:contentId.
func (s *Server) handleAddPlaylistItem(c echo.Context) error {
	p, err := s.deps.Playlists.AddItem(c.Request().Context(), s.playlistItem(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentPlaylist(p), "Added to playlist")
}

// handleRemovePlaylistItem serves DELETE /api/v1/playlists/:id/items/:contentId.
func (s *Server) handleRemovePlaylistItem(c echo.Context) error {
	p, err := s.deps.Playlists.RemoveItem(c.Request().Context(), s.playlistItem(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, presentPlaylist(p), "Removed from playlist")
}

func (s *Server) playlistItem(c echo.Context) command.PlaylistItemCommand {
	return command.PlaylistItemCommand{
		CallerID:   callerID(c),
		PlaylistID: c.Param("id"),
		ContentID:  c.Param("contentId"),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth serves the liveness probe.
func (s *Server) handleHealth(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	}, "OK")
}

// handleReady serves the readiness probe; 503 while any dependency fails.
func (s *Server) handleReady(c echo.Context) error {
	if s.deps.HealthChecker == nil {
		return respond(c, http.StatusOK, map[string]bool{"ready": true}, "OK")
	}
	status := s.deps.HealthChecker.Check(c.Request().Context())
	if !status.Ready {
		return c.JSON(http.StatusServiceUnavailable, Envelope{
			StatusCode: http.StatusServiceUnavailable,
			Data:       status,
			Message:    status.Message,
			Success:    false,
		})
	}
	return respond(c, http.StatusOK, status, status.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOADS
// ══════════════════════════════════════════════════════════════════════════════

// saveUpload copies a multipart file into a temp file and returns its path.
// A missing field or a non-multipart request yields "".
func (s *Server) saveUpload(c echo.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", shared.WrapError("http", "Upload", shared.ErrInvalidInput, "invalid multipart upload", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", shared.WrapError("http", "Upload", shared.ErrInvalidInput, "unreadable upload", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.config.UploadDir, "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", shared.WrapError("http", "Upload", shared.ErrUnavailable, "cannot buffer upload", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		s.removeUpload(dst.Name())
		return "", shared.WrapError("http", "Upload", shared.ErrUnavailable, "cannot buffer upload", err)
	}
	return dst.Name(), nil
}

// removeUpload deletes a buffered upload. The media client may already have
// removed it.
func (s *Server) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", logger.String("path", path), logger.Err(err))
	}
}
