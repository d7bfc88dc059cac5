package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/teamchat/internal/api"
	"github.com/lalith-99/teamchat/internal/blob"
	"github.com/lalith-99/teamchat/internal/config"
	"github.com/lalith-99/teamchat/internal/db"
	"github.com/lalith-99/teamchat/internal/linkpreview"
	"github.com/lalith-99/teamchat/internal/metrics"
	"github.com/lalith-99/teamchat/internal/middleware"
	"github.com/lalith-99/teamchat/internal/observ"
	"github.com/lalith-99/teamchat/internal/ratelimit"
	"github.com/lalith-99/teamchat/internal/realtime"
	"github.com/lalith-99/teamchat/internal/repository"
	"github.com/lalith-99/teamchat/internal/repository/memstore"
	"github.com/lalith-99/teamchat/internal/repository/postgres"
	"github.com/lalith-99/teamchat/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 15 * time.Second
	previewCacheTTL = 6 * time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Startup has no request deadline; each HTTP request later gets its own.
	store, health, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var rdb *redis.Client
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The limiter fails open, so a missing Redis degrades quotas only.
			logger.Warn("redis unreachable at startup", zap.Error(err))
		}
		limiter = ratelimit.NewRedisLimiter(rdb, ratelimit.DefaultRules(), logger)
	} else {
		logger.Warn("REDIS_URL not set, per-user rate limits disabled")
	}

	var storage blob.Storage
	if cfg.MinioEndpoint != "" {
		m, err := blob.NewMinio(blob.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
			URLTTL:    cfg.BlobURLTTL,
		})
		if err != nil {
			return fmt.Errorf("create blob storage: %w", err)
		}
		if err := m.EnsureBucket(ctx); err != nil {
			logger.Warn("could not ensure upload bucket", zap.String("bucket", cfg.MinioBucket), zap.Error(err))
		}
		storage = m
	}

	var fetcher linkpreview.Fetcher = linkpreview.NewHTTPFetcher(cfg.LinkPreviewTimeout)
	if rdb != nil {
		fetcher = linkpreview.NewCachedFetcher(fetcher, rdb, previewCacheTTL, logger)
	}
	previews := linkpreview.NewResolver(fetcher, cfg.LinkPreviewTimeout, logger)

	hub := realtime.NewHub(logger, cfg.CORSOrigins)

	svc := service.New(service.Deps{
		Store:     store,
		Limiter:   limiter,
		Blob:      storage,
		Previews:  previews,
		Publisher: hub,
		Logger:    logger,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	})

	ipLimiter := middleware.NewIPLimiter(rate.Limit(cfg.HTTPRatePerSecond), cfg.HTTPRateBurst, 10*time.Minute)
	go ipLimiter.Run()
	defer ipLimiter.Stop()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		observ.RequestLogger(logger),
		metrics.GinMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ipLimiter.Middleware(),
	)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	api.Register(router, api.RouterConfig{
		Service:     svc,
		Hub:         hub,
		JWTSecret:   cfg.JWTSecret,
		Logger:      logger,
		HealthCheck: health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting teamchat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Shutdown does not track hijacked websocket connections, so close
	// them explicitly; clients reconnect to another instance.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore picks the repository implementation named by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(context.Context) error, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), nil, func() {}, nil
	}
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return postgres.New(database.Pool()), database.Health, database.Close, nil
}
