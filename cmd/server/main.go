// Command server runs the authoritative sync store for bolso clients.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/bolsoapp/bolso/internal/adapter/http"
	"github.com/bolsoapp/bolso/internal/adapter/http/handler"
	postgresRepo "github.com/bolsoapp/bolso/internal/adapter/repository/postgres"
	redisRepo "github.com/bolsoapp/bolso/internal/adapter/repository/redis"
	"github.com/bolsoapp/bolso/internal/infrastructure/auth"
	"github.com/bolsoapp/bolso/internal/infrastructure/config"
	"github.com/bolsoapp/bolso/internal/infrastructure/logger"
	"github.com/bolsoapp/bolso/internal/infrastructure/metrics"
	"github.com/bolsoapp/bolso/internal/infrastructure/postgres"
	"github.com/bolsoapp/bolso/internal/infrastructure/redis"
	"github.com/bolsoapp/bolso/internal/syncserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Repositories and services
	retrier := postgresRepo.NewRetrier(log)
	itemRepo := postgresRepo.NewItemRepository(pool, retrier)
	userRepo := postgresRepo.NewUserRepository(pool, retrier)
	deviceRepo := postgresRepo.NewDeviceRepository(pool, retrier)
	txManager := postgresRepo.NewTxManager(pool)
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	service := syncserver.NewService(itemRepo, deviceRepo, txManager, log)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	m := metrics.New()

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		SyncHandler:      handler.NewSyncHandler(service, cache, m),
		AuthHandler:      handler.NewAuthHandler(userRepo, service, jwtManager, m),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		JWTManager:       jwtManager,
		IdempotencyStore: idempotencyStore,
		Metrics:          m,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
