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
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ternary-app/link-server/internal/config"
	"github.com/ternary-app/link-server/internal/database"
	"github.com/ternary-app/link-server/internal/handler"
	"github.com/ternary-app/link-server/internal/jobs"
	"github.com/ternary-app/link-server/internal/middleware"
	"github.com/ternary-app/link-server/internal/redis"
	"github.com/ternary-app/link-server/internal/repository"
	"github.com/ternary-app/link-server/internal/service"
	"github.com/ternary-app/link-server/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("ENVIRONMENT") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

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
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	hasher := util.NewTokenHasher(cfg.TokenSalt)

	linkRepo := repository.NewDeviceLinkRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	tokenRepo := repository.NewAppTokenRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)

	linkingService := service.NewLinkingService(db, linkRepo, deviceRepo, tokenRepo, hasher, cfg)
	tokenService := service.NewTokenService(tokenRepo, deviceRepo, hasher)
	deviceService := service.NewDeviceService(deviceRepo, tokenRepo)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	sessionMiddleware := middleware.NewSessionMiddleware(userRepo, hasher)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	initLimiter := middleware.NewIPRateLimitMiddleware(rateLimiter, cfg.InitRateLimitPerMin, time.Minute, "link-init")
	pollLimiter := middleware.NewIPRateLimitMiddleware(rateLimiter, cfg.PollRateLimitPerMin, time.Minute, "link-poll")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	linkHandler := handler.NewLinkHandler(linkingService, sessionMiddleware, initLimiter.Handler, pollLimiter.Handler)
	deviceHandler := handler.NewDeviceHandler(deviceService, sessionMiddleware)
	appHandler := handler.NewAppHandler(userRepo, authMiddleware)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The pairing device is a desktop app, not a browser tab on our origin;
	// every /link endpoint must answer cross-origin preflights.
	r.Route("/link", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}))
		r.Mount("/", linkHandler.Routes())
	})

	r.Route("/devices", func(r chi.Router) {
		r.Mount("/", deviceHandler.Routes())
	})

	r.Route("/app", func(r chi.Router) {
		r.Mount("/", appHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(linkRepo, userRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
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
