package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "go.pilab.hu/presence/api/echo"
	"go.pilab.hu/presence/api/ws"
	"go.pilab.hu/presence/cache"
	redcache "go.pilab.hu/presence/cache/redis"
	"go.pilab.hu/presence/config"
	"go.pilab.hu/presence/domain"
	"go.pilab.hu/presence/internal/metrics"
	"go.pilab.hu/presence/mongodb"
	"go.pilab.hu/presence/presence"
	"go.pilab.hu/presence/services"
	"go.pilab.hu/presence/tracing"
)

var tracerProvider *sdktrace.TracerProvider

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Dur("heartbeat_timeout", cfg.HeartbeatTimeout()).
		Dur("sweep_interval", cfg.SweepInterval()).
		Str("stats_timezone", cfg.StatsTimezone).
		Msg("Starting presence server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}
	tracerProvider = tp

	loc, err := cfg.Location()
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.StatsTimezone).
			Msg("Unknown stats timezone, falling back to UTC")
		loc = time.UTC
	}

	// The store is optional by design: a failed init degrades persistence
	// to no-ops and reads to zero/unavailable, the service keeps running.
	ctx := context.Background()
	var (
		dailyUserRepo domain.DailyUserRepository
		sessionRepo   domain.SessionRepository
		visitRepo     domain.VisitRepository
		summaryRepo   domain.DailySummaryRepository
		feedbackRepo  domain.FeedbackRepository
	)
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		log.Warn().Err(initErr).Msg("MongoDB unavailable, continuing without persistence")
	} else {
		db := mongodb.GetDB()
		if dailyUserRepo, err = mongodb.NewDailyUserRepositoryMongo(ctx, db); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize DailyUserRepository")
		}
		if sessionRepo, err = mongodb.NewSessionRepositoryMongo(ctx, db); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize SessionRepository")
		}
		if visitRepo, err = mongodb.NewVisitRepositoryMongo(ctx, db); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize VisitRepository")
		}
		if summaryRepo, err = mongodb.NewDailySummaryRepositoryMongo(ctx, db); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize DailySummaryRepository")
		}
		if feedbackRepo, err = mongodb.NewFeedbackRepositoryMongo(ctx, db); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize FeedbackRepository")
		}
	}

	metrics.Register(prometheus.DefaultRegisterer)

	statsCache := newStatsCache(cfg)
	if statsCache != nil {
		defer statsCache.Close()
	}

	// Presence wiring: hub broadcasts counts, tracker owns the in-memory
	// authority, monitor evicts stale connections.
	hub := ws.NewHub()
	tracker := presence.NewTracker(sessionRepo, dailyUserRepo, hub, loc)
	monitor := presence.NewMonitor(tracker, cfg.SweepInterval(), cfg.HeartbeatTimeout())

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	statsService := services.NewStatsService(
		tracker, dailyUserRepo, sessionRepo, visitRepo, summaryRepo, statsCache, loc)
	feedbackService := services.NewFeedbackService(feedbackRepo)

	wsHandler := ws.NewHandler(tracker, hub, cfg.HeartbeatTimeout())
	api := echoapi.NewStatsAPI(statsService, feedbackService, tracker, wsHandler)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	api.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down presence server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stopMonitor()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("TracerProvider shutdown failed")
		}
	}
	mongodb.CloseMongoDB(shutdownCtx)
	log.Info().Msg("Shutdown complete")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

//nolint:ireturn
func newStatsCache(cfg *config.ServerConfig) cache.StatsCache {
	switch cfg.CacheBackend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis stats cache")
		return redcache.NewStatsCache(client, cfg.RedisPrefix)
	case "none":
		return nil
	default:
		return cache.NewMemoryStatsCache(time.Minute)
	}
}
