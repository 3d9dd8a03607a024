// Package http exposes the ClipDeck read views, toggles and ownership-guarded
// mutations as a JSON API on echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/clipdeck/clipdeck/internal/application/command"
	"github.com/clipdeck/clipdeck/internal/application/query"
	"github.com/clipdeck/clipdeck/internal/interface/http/handlers"
	"github.com/clipdeck/clipdeck/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to bind, e.g. ":8080".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxUploadBytes caps request bodies (video uploads included).
	MaxUploadBytes int64

	// UploadDir buffers multipart files; empty means os.TempDir.
	UploadDir string

	// AllowedOrigins for CORS.
	AllowedOrigins []string

	// EnableMetrics serves Prometheus metrics on /metrics.
	EnableMetrics bool

	// RateLimitRPS - requests per second per IP (0 = disabled).
	RateLimitRPS   float64
	RateLimitBurst int

	// Auth verifies identity tokens.
	Auth AuthConfig

	// Version is reported by the probes.
	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxUploadBytes: 512 << 20,
		AllowedOrigins: []string{"*"},
		EnableMetrics:  true,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		Auth:           AuthConfig{Leeway: 30 * time.Second},
		Version:        "dev",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	UpsertActor      *command.UpsertActorHandler
	ToggleEdge       *command.ToggleEdgeHandler
	CreateContent    *command.CreateContentHandler
	ContentMutations *command.ContentMutationHandler
	Playlists        *command.PlaylistHandler
	Comments         *command.CommentHandler

	// Query Handlers (CQRS Read Side)
	ContentViews  *query.ContentViews
	ChannelViews  *query.ChannelViews
	CommentViews  *query.CommentViews
	PlaylistViews *query.PlaylistViews
	ChannelStats  *query.ChannelStatsHandler

	// Readiness checks; nil reports ready.
	HealthChecker handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	echo       *echo.Echo
	handler    http.Handler
	httpServer *http.Server
	logger     *logger.Logger
	auth       *Authenticator

	rateLimiter *ipRateLimiter

	// Server state
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		echo:   echo.New(),
		logger: deps.Logger,
		auth:   NewAuthenticator(config.Auth),
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	s.logger = s.logger.With(logger.Component("http"))

	if config.RateLimitRPS > 0 {
		s.rateLimiter = newIPRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = errorHandler(s.logger)
	s.echo.Validator = newRequestValidator()
	s.echo.Pre(middleware.RemoveTrailingSlash())
	s.buildMiddlewareChain()
	s.setupRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins:   config.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, "traceparent", "baggage"},
		ExposedHeaders:   []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           86400,
	}).Handler(s.echo)

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain installs middleware in execution order.
func (s *Server) buildMiddlewareChain() {
	s.echo.Use(
		recoveryMiddleware(s.logger),
		requestIDMiddleware(s.logger),
		tracingMiddleware(),
		loggingMiddleware(s.logger),
		metricsMiddleware(),
	)
	if s.rateLimiter != nil {
		s.echo.Use(s.rateLimiter.middleware())
	}
	if s.config.MaxUploadBytes > 0 {
		s.echo.Use(middleware.BodyLimit(fmt.Sprintf("%dB", s.config.MaxUploadBytes)))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/ready", s.handleReady)
	if s.config.EnableMetrics {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	optional := s.auth.Optional()
	required := s.auth.Required()
	v1 := s.echo.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Content
	// ─────────────────────────────────────────────────────────────────────────
	v1.GET("/content", s.handleContentFeed, optional)
	v1.GET("/content/liked", s.handleLikedContent, required)
	v1.POST("/content/videos", s.handleCreateVideo, required)
	v1.POST("/content/posts", s.handleCreatePost, required)
	v1.GET("/content/:id", s.handleGetContent, optional)
	v1.PATCH("/content/:id", s.handleUpdateContent, required)
	v1.PATCH("/content/:id/publish", s.handleTogglePublish, required)
	v1.POST("/content/:id/views", s.handleRecordView, optional)
	v1.DELETE("/content/:id", s.handleDeleteContent, required)

	// ─────────────────────────────────────────────────────────────────────────
	// Comments
	// ─────────────────────────────────────────────────────────────────────────
	v1.GET("/content/:id/comments", s.handleListComments, optional)
	v1.POST("/content/:id/comments", s.handleCreateComment, required)
	v1.PATCH("/comments/:id", s.handleUpdateComment, required)
	v1.DELETE("/comments/:id", s.handleDeleteComment, required)

	// ─────────────────────────────────────────────────────────────────────────
	// Toggles
	// ─────────────────────────────────────────────────────────────────────────
	v1.POST("/likes/:kind/:targetId", s.handleToggleLike, required)
	v1.POST("/subscriptions/:channelId", s.handleToggleSubscription, required)

	// ─────────────────────────────────────────────────────────────────────────
	// Channels & Profiles
	// ─────────────────────────────────────────────────────────────────────────
	v1.PUT("/actors/me", s.handleUpsertActor, required)
	v1.GET("/channels/:ref", s.handleGetChannel, optional)
	v1.GET("/channels/:ref/stats", s.handleChannelStats, optional)
	v1.GET("/channels/:ref/subscribers", s.handleChannelSubscribers, optional)
	v1.GET("/channels/:ref/subscriptions", s.handleChannelSubscriptions, optional)
	v1.GET("/channels/:ref/playlists", s.handleChannelPlaylists, optional)

	// ─────────────────────────────────────────────────────────────────────────
	// Playlists
	// ─────────────────────────────────────────────────────────────────────────
	v1.POST("/playlists", s.handleCreatePlaylist, required)
	v1.GET("/playlists/:id", s.handleGetPlaylist, optional)
	v1.PATCH("/playlists/:id", s.handleUpdatePlaylist, required)
	v1.DELETE("/playlists/:id", s.handleDeletePlaylist, required)
	v1.POST("/playlists/:id/items/:contentId", s.handleAddPlaylistItem, required)
	v1.DELETE("/playlists/:id/items/:contentId", s.handleRemovePlaylistItem, required)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Handler returns the full handler chain, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Addr
}
