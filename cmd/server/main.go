package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kasmeter/kasmeter-server/internal/config"
	"github.com/kasmeter/kasmeter-server/internal/database"
	"github.com/kasmeter/kasmeter-server/internal/handler"
	"github.com/kasmeter/kasmeter-server/internal/jobs"
	"github.com/kasmeter/kasmeter-server/internal/kaspa"
	"github.com/kasmeter/kasmeter-server/internal/middleware"
	"github.com/kasmeter/kasmeter-server/internal/redis"
	"github.com/kasmeter/kasmeter-server/internal/repository"
	"github.com/kasmeter/kasmeter-server/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	outpointRepo := repository.NewSeenOutpointRepository(db.DB)

	ledger := kaspa.NewClient(cfg.KaspaAPIBase)

	sessionService := service.NewSessionService(
		sessionRepo, cfg.ReceiverAddress, cfg.CheckpointSecondsDefault, cfg.RateKasPerMinuteDefault,
	)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	createLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.CreateSessionRateLimit, config.CreateSessionRateWindow, "session-create",
	)

	sessionHandler := handler.NewSessionHandler(sessionService, createLimitMiddleware.Handler)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Mount("/", sessionHandler.Routes())
	})

	watcher := jobs.NewWatcherJob(
		db, sessionRepo, outpointRepo, ledger, cfg.ReceiverAddress, cfg.WatchInterval(),
	)
	watcher.Start()
	defer watcher.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("address", cfg.ReceiverAddress).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
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
