package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/clipdeck/clipdeck/config"
	"github.com/clipdeck/clipdeck/pkg/logger"
	"github.com/clipdeck/clipdeck/pkg/tracing"

	// Domain layer
	"github.com/clipdeck/clipdeck/internal/domain/actor"
	"github.com/clipdeck/clipdeck/internal/domain/content"
	"github.com/clipdeck/clipdeck/internal/domain/pipeline"
	"github.com/clipdeck/clipdeck/internal/domain/shared"
	"github.com/clipdeck/clipdeck/internal/domain/social"
	"github.com/clipdeck/clipdeck/internal/domain/stats"

	// Application layer
	"github.com/clipdeck/clipdeck/internal/application/command"
	"github.com/clipdeck/clipdeck/internal/application/eventhandler"
	"github.com/clipdeck/clipdeck/internal/application/query"

	// Infrastructure layer
	"github.com/clipdeck/clipdeck/internal/infrastructure/media"
	"github.com/clipdeck/clipdeck/internal/infrastructure/messaging"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/memory"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/postgres"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/redis"

	// Interface layer
	httpapi "github.com/clipdeck/clipdeck/internal/interface/http"
	"github.com/clipdeck/clipdeck/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func newServeCommand(opts *rootOptions) *cobra.Command {
	var store string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Флаг сильнее переменной окружения STORE
			if cmd.Flags().Changed("store") {
				if err := os.Setenv("STORE", store); err != nil {
					return err
				}
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&store, "store", config.StorePostgres, "storage engine: memory or postgres")
	return cmd
}

// storage - набор репозиториев выбранного движка.
type storage struct {
	actors    actor.Repository
	items     content.ItemRepository
	playlists content.PlaylistRepository
	comments  content.CommentRepository
	edges     social.EdgeRepository
	tx        shared.Transactor
	runner    pipeline.Runner
	stats     stats.Source

	// check - nil для памяти: проверять нечего.
	check handlers.HealthCheckFunc
	close func()
}

func run(ctx context.Context, opts *rootOptions) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(opts.envFiles...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ И ТРАССИРОВКИ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting ClipDeck",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("store", cfg.App.Store),
	)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Observability.TracingEndpoint,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		SampleRatio: cfg.Observability.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", logger.Err(err))
		}
	}()
	tracingEnabled := cfg.Observability.TracingEndpoint != ""

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, tracingEnabled, log)
	if err != nil {
		return err
	}
	defer store.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КЕШ СТАТИСТИКИ (Redis, опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		statsCache query.StatsCache
		redisCache *redis.Cache
		redisStats *redis.StatsCache
	)
	if !cfg.Redis.Disabled {
		redisCache, err = redis.NewCache(ctx, redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Namespace:    cfg.App.Name,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			Tracing:      tracingEnabled,
		})
		if err != nil {
			// Без кеша статистика считается на каждый запрос
			log.Warn("redis unavailable, stats cache disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer func() {
				log.Info("closing redis connection...")
				_ = redisCache.Close()
			}()
			redisStats = redis.NewStatsCache(redisCache, cfg.Redis.StatsTTL)
			statsCache = redisStats
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. СОБЫТИЯ (локальная шина + NATS)
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         log,
	})
	defer func() {
		log.Info("closing event bus...")
		if err := bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	}()

	var publisher shared.EventPublisher = bus
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.App.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer func() {
			log.Info("draining nats connection...")
			_ = nc.Drain()
		}()

		publisher = messaging.NewFanOutPublisher(bus, log,
			messaging.NewNATSPublisher(nc, messaging.NATSPublisherConfig{
				SubjectPrefix: cfg.NATS.SubjectPrefix,
				Timeout:       cfg.NATS.Timeout,
				Logger:        log,
			}),
		)
		log.Info("publishing events to nats", logger.String("subject_prefix", cfg.NATS.SubjectPrefix))
	}

	if redisStats != nil {
		invalidation := eventhandler.NewStatsInvalidationHandler(redisStats, log, eventhandler.DefaultStatsInvalidationConfig())
		if err := invalidation.Register(bus); err != nil {
			return fmt.Errorf("failed to register stats invalidation: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. МЕДИА-ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	var mediaStore content.MediaStore
	if cfg.Media.BaseURL != "" {
		mediaCfg := media.DefaultClientConfig(cfg.Media.BaseURL)
		mediaCfg.APIKey = cfg.Media.APIKey
		mediaCfg.Timeout = cfg.Media.Timeout
		mediaCfg.RequestsPerSecond = cfg.Media.RequestsPerSecond
		mediaCfg.Logger = log
		mediaStore = media.NewClient(mediaCfg)
	} else {
		log.Warn("MEDIA_BASE_URL not set, video uploads are disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	paginator := query.NewPaginator(store.runner)

	deps := httpapi.Dependencies{
		UpsertActor:      command.NewUpsertActorHandler(store.actors),
		ToggleEdge:       command.NewToggleEdgeHandler(store.actors, store.items, store.comments, store.edges, publisher),
		CreateContent:    command.NewCreateContentHandler(store.actors, store.items, mediaStore, publisher),
		ContentMutations: command.NewContentMutationHandler(store.tx, store.items, store.comments, store.playlists, store.edges, mediaStore, publisher),
		Playlists:        command.NewPlaylistHandler(store.playlists, store.items, publisher),
		Comments:         command.NewCommentHandler(store.tx, store.comments, store.items, store.edges, publisher),

		ContentViews:  query.NewContentViews(paginator),
		ChannelViews:  query.NewChannelViews(paginator),
		CommentViews:  query.NewCommentViews(paginator, store.items),
		PlaylistViews: query.NewPlaylistViews(paginator),
		ChannelStats:  query.NewChannelStatsHandler(store.stats, statsCache, log),

		Logger: log,
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if store.check != nil {
		health.AddCheck("database", store.check)
	}
	if redisCache != nil {
		health.AddOptionalCheck("cache", handlers.NewPingCheck(redisCache))
	}
	deps.HealthChecker = health

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		UploadDir:      cfg.HTTP.UploadDir,
		AllowedOrigins: cfg.HTTP.CORSOrigins,
		EnableMetrics:  cfg.Observability.MetricsEnabled,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		Auth: httpapi.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
			Leeway: cfg.Auth.Leeway,
		},
		Version: cfg.App.Version,
	}, deps)

	serverErr := server.StartAsync()
	log.Info("ClipDeck is running", logger.String("address", server.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОЖИДАНИЕ СИГНАЛА ЗАВЕРШЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("shutdown timeout exceeded, some requests were cut off")
		} else {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
	}

	log.Info("ClipDeck stopped gracefully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// openStorage подключает выбранный движок хранения.
func openStorage(ctx context.Context, cfg *config.Config, tracingEnabled bool, log *logger.Logger) (*storage, error) {
	if cfg.App.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &storage{
			actors:    s.Actors(),
			items:     s.Items(),
			playlists: s.Playlists(),
			comments:  s.Comments(),
			edges:     s.Edges(),
			tx:        s,
			runner:    s,
			stats:     s.Stats(),
			close:     func() {},
		}, nil
	}

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database, tracingEnabled))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		ran, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("migrations applied", logger.Int("count", ran))
	}

	s := postgres.NewStore(conn)
	return &storage{
		actors:    s.Actors(),
		items:     s.Items(),
		playlists: s.Playlists(),
		comments:  s.Comments(),
		edges:     s.Edges(),
		tx:        s,
		runner:    s.Runner(),
		stats:     s.Stats(),
		check:     databaseCheck(conn),
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

// databaseCheck - готовность PostgreSQL: пинг проходит и в пуле есть
// свободные соединения.
func databaseCheck(conn *postgres.Connection) handlers.HealthCheckFunc {
	return func(ctx context.Context) error {
		status, err := conn.Health(ctx)
		if err != nil {
			return err
		}
		if !status.Healthy {
			return errors.New(status.Error)
		}
		if status.MaxConns > 0 && status.AcquiredConns >= status.MaxConns {
			return fmt.Errorf("connection pool exhausted (%d/%d)", status.AcquiredConns, status.MaxConns)
		}
		return nil
	}
}

// setupLogger создаёт логгер по настройкам окружения.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stdout
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
