package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naperu/wabarelay/internal/api"
	"github.com/naperu/wabarelay/internal/gateway"
	"github.com/naperu/wabarelay/internal/media"
	"github.com/naperu/wabarelay/internal/repository"
	"github.com/naperu/wabarelay/internal/service"
	"github.com/naperu/wabarelay/internal/storage"
	"github.com/naperu/wabarelay/internal/transcode"
	"github.com/naperu/wabarelay/internal/ws"
	"github.com/naperu/wabarelay/pkg/cache"
	"github.com/naperu/wabarelay/pkg/config"
	"github.com/naperu/wabarelay/pkg/database"
	"github.com/naperu/wabarelay/pkg/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Module composes the relay: config, stores, services and the HTTP server.
func Module() fx.Option {
	return fx.Module("wabarelay",
		fx.Provide(
			config.Load,
			provideLogger,
			provideDatabase,
			provideRepositories,
			provideCache,
			provideArchive,
			provideTranscoder,
			provideMediaStore,
			provideGateway,
			provideHub,
			provideServices,
			api.NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// WithLogger routes fx's own events through the application logger.
func WithLogger() fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}

func provideLogger(cfg *config.Config) *zap.Logger {
	return logging.New(cfg.LogLevel, cfg.Env)
}

// provideDatabase returns nil when no DATABASE_URL is set.
func provideDatabase(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		return nil, nil
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("database ready")
	lc.Append(fx.StopHook(db.Close))
	return db, nil
}

func provideRepositories(db *pgxpool.Pool) *repository.Repositories {
	if db == nil {
		return repository.NewMemoryRepositories()
	}
	return repository.NewRepositories(db)
}

// provideCache returns nil when Redis is not configured or unreachable;
// webhook de-duplication is then disabled.
func provideCache(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *cache.Cache {
	if cfg.RedisURL == "" {
		return nil
	}
	c, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, delivery de-duplication disabled", zap.Error(err))
		return nil
	}
	logger.Info("redis connected")
	lc.Append(fx.StopHook(c.Close))
	return c
}

// provideArchive returns a nil interface when MinIO is not configured.
func provideArchive(cfg *config.Config, logger *zap.Logger) media.Archive {
	if cfg.MinioEndpoint == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Warn("minio unavailable, archive mirror disabled", zap.Error(err))
		return nil
	}
	logger.Info("minio archive ready", zap.String("endpoint", cfg.MinioEndpoint), zap.String("bucket", cfg.MinioBucket))
	return s
}

func provideTranscoder(cfg *config.Config, logger *zap.Logger) transcode.Transcoder {
	return transcode.NewFFmpeg(transcode.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Timeout:     cfg.TranscodeTimeout,
	}, logger.Named("transcode"))
}

func provideMediaStore(cfg *config.Config, tc transcode.Transcoder, archive media.Archive, logger *zap.Logger) (*media.Store, error) {
	return media.NewStore(media.Config{Root: cfg.UploadDir, BaseURL: cfg.PublicBaseURL}, tc, archive, logger.Named("media"))
}

func provideGateway(cfg *config.Config, logger *zap.Logger) *gateway.Client {
	gw := gateway.NewClient(gateway.Config{
		MessagesURL:    cfg.MessagesURL(),
		MediaUploadURL: cfg.MediaUploadURL(),
		GraphURL:       cfg.GraphAPIURL,
		AccessToken:    cfg.AccessToken,
	})
	if !gw.Configured() {
		logger.Warn("gateway credentials missing, outbound messages are stored but not sent")
	}
	return gw
}

func provideHub(cfg *config.Config, logger *zap.Logger) *ws.Hub {
	return ws.NewHub(cfg.SubscriberBuffer, logger.Named("hub"))
}

func provideServices(cfg *config.Config, repos *repository.Repositories, store *media.Store, gw *gateway.Client, hub *ws.Hub, c *cache.Cache, logger *zap.Logger) *service.Services {
	var guard service.DeliveryGuard
	if c != nil {
		guard = c
	}
	return service.NewServices(repos, store, gw, hub, guard, service.Options{
		SelfID:        cfg.SelfID,
		AutoReplyText: cfg.AutoReplyText,
		UploadMedia:   cfg.GatewayUploadMedia,
	}, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *api.Server, hub *ws.Hub, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				logger.Info("HTTP server listening", zap.String("port", cfg.Port))
				if err := srv.Listen(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("HTTP server shutdown", zap.Error(err))
			}
			logger.Info("server stopped")
			return nil
		},
	})
}
