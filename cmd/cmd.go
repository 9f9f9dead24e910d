package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ourapp-backend/internal/config"
	"ourapp-backend/internal/handlers"
	"ourapp-backend/internal/repository"
	"ourapp-backend/internal/services"
	"ourapp-backend/internal/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	path := os.Getenv("OURAPP_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	// Open persistence providers
	local, closeLocal, err := openLocalStore(ctx, cfg.Storage.Local)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer closeLocal()

	remote, closeRemote := openRemoteStore(ctx, cfg.Storage.Remote)
	defer closeRemote()

	shared := store.NewFallback(remote, local)

	loc, err := cfg.Daily.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Daily.Timezone).Msg("Failed to load timezone")
	}

	// Initialize repositories
	codeRepo := repository.NewCodeRepository(shared, cfg.Storage.Remote.Root)
	sessionRepo := repository.NewSessionRepository(local)
	journalRepo := repository.NewJournalRepository(local)

	// Initialize services
	userService := services.NewUserService(sessionRepo, journalRepo, codeRepo, cfg.JWT.Secret)
	pairService := services.NewPairService(codeRepo, sessionRepo, newNotifier(cfg.APNs))
	dailyService := services.NewDailyService(sessionRepo, journalRepo, loc)
	wsHub := services.NewWSHub()

	// Setup router
	r := handlers.NewRouter(handlers.Services{
		Users: userService,
		Pairs: pairService,
		Daily: dailyService,
		Hub:   wsHub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Bool("remote", shared.HasRemote()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openLocalStore(ctx context.Context, cfg config.LocalStorageConfig) (store.Store, func(), error) {
	if cfg.Driver == "sqlite" {
		s, err := store.NewSQLite(ctx, cfg.Path, cfg.PollInterval)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.Path).Msg("SQLite local store opened")
		return s, func() { s.Close() }, nil
	}
	return store.NewMemory(cfg.PollInterval), func() {}, nil
}

// openRemoteStore connects the shared store. Missing configuration or a
// failed connection both leave the service in local-only mode.
func openRemoteStore(ctx context.Context, cfg config.RemoteStorageConfig) (store.Store, func()) {
	noop := func() {}

	switch cfg.Driver {
	case "":
		return nil, noop
	case "redis":
		s, err := store.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running local-only")
			return nil, noop
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis remote store connected")
		return s, func() { s.Close() }
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Database.DSN())
		if err != nil {
			log.Warn().Err(err).Msg("Database unavailable, running local-only")
			return nil, noop
		}
		log.Info().Msg("Database connection established")
		return s, s.Close
	case "s3":
		s, err := store.NewS3(ctx, store.S3Options{
			Region:       cfg.AWS.Region,
			Bucket:       cfg.AWS.S3Bucket,
			AccessKey:    cfg.AWS.AccessKey,
			SecretKey:    cfg.AWS.SecretKey,
			Endpoint:     cfg.AWS.Endpoint,
			PollInterval: cfg.PollInterval,
		})
		if err != nil {
			log.Warn().Err(err).Msg("S3 unavailable, running local-only")
			return nil, noop
		}
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("S3 remote store configured")
		return s, noop
	default:
		log.Warn().Str("driver", cfg.Driver).Msg("Unknown remote store, running local-only")
		return nil, noop
	}
}

func newNotifier(cfg config.APNsConfig) services.Notifier {
	if !cfg.Enabled {
		return services.NoopNotifier{}
	}
	n, err := services.NewAPNsNotifier(cfg.KeyFile, cfg.KeyID, cfg.TeamID, cfg.Topic, cfg.Production)
	if err != nil {
		log.Warn().Err(err).Msg("APNs unavailable, push notifications disabled")
		return services.NoopNotifier{}
	}
	return n
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
