package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/account-server-go/internal/codegen"
	"github.com/openclaw/account-server-go/internal/config"
	"github.com/openclaw/account-server-go/internal/database"
	"github.com/openclaw/account-server-go/internal/handler"
	"github.com/openclaw/account-server-go/internal/jobs"
	"github.com/openclaw/account-server-go/internal/middleware"
	"github.com/openclaw/account-server-go/internal/redis"
	"github.com/openclaw/account-server-go/internal/repository"
	"github.com/openclaw/account-server-go/internal/security"
	"github.com/openclaw/account-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.LogFormat)
	setLogLevel(cfg.LogLevel)

	isProduction := cfg.IsProduction()
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
	log.Info().Str("dialect", string(db.Dialect)).Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	var loginLimiter middleware.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
		loginLimiter = service.NewRateLimiter(redisClient.Client)
	} else {
		log.Info().Msg("REDIS_URL not set: login throttling is per instance")
		loginLimiter = service.NewLocalRateLimiter()
	}

	codeRepo := repository.NewActivationCodeRepository(db.DB)
	accountRepo := repository.NewAccountRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)

	activationService := service.NewActivationService(db, codeRepo, codegen.NewRandom(), cfg.GracePeriod())
	sessionService := service.NewSessionService(db, sessionRepo, accountRepo)
	accountService := service.NewAccountService(
		db, accountRepo, codeRepo, activationService, sessionService,
		security.NewHasher(cfg.BcryptCost),
		service.AccountServiceConfig{
			SessionTTL:       cfg.SessionTTL(),
			RefreshThreshold: cfg.RefreshThreshold(),
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(accountService)
	operatorMiddleware := middleware.NewOperatorAuthMiddleware(cfg.OperatorToken)
	loginRateLimiter := middleware.NewLoginRateLimiter(loginLimiter, cfg.LoginRateLimitPerMin, config.LoginRateLimitWindow)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodySize)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	codeHandler := handler.NewCodeHandler(activationService)
	authHandler := handler.NewAuthHandler(accountService, authMiddleware.Handler, loginRateLimiter.Handler)
	healthHandler := handler.NewHealthHandler(db)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		if cfg.OperatorToken != "" {
			r.Route("/codes", func(r chi.Router) {
				r.Use(operatorMiddleware.Handler)
				r.Mount("/", codeHandler.Routes())
			})
		} else {
			log.Warn().Msg("OPERATOR_TOKEN not set: code management routes disabled")
		}
		r.Mount("/auth", authHandler.Routes())
	})

	if interval := cfg.CleanupInterval(); interval > 0 {
		cleanupJob := jobs.NewCleanupJob(sessionService, cfg.SessionRetention(), interval)
		cleanupJob.Start()
		defer cleanupJob.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerRequestTimeout + config.ServerReadTimeout,
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

func setupLogger(format string) {
	if strings.EqualFold(format, "console") {
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
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
