package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/events"
	"github.com/emilythestrangee/stackit/backend/internal/forum"
	"github.com/emilythestrangee/stackit/backend/internal/live"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/metrics"
	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/server"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}
	defer st.Close()

	registry := metrics.NewRegistry()
	m := metrics.New(registry, "forum")

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewAsync(events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic), events.AsyncOptions{
			Buffer:  1024,
			Timeout: 5 * time.Second,
			Dropped: m.EventsDropped,
			Log:     log,
		})
		log.WithFields(logrus.Fields{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.Topic}).Info("publishing vote events to kafka")
	}
	defer publisher.Close()

	limiter, closeLimiter := openLimiter(ctx, cfg, log)
	defer closeLimiter()

	hub := live.NewHub(log)
	go hub.Run(ctx)
	gate := auth.NewJWTGate(cfg.JWT.Secret, cfg.JWT.TTL, st)

	svc := forum.New(forum.Deps{
		Store:   st,
		Tokens:  gate,
		Metrics: m,
		Events:  publisher,
		Live:    hub,
		Log:     log,
	})

	srv := server.New(server.Options{
		Config:   *cfg,
		Service:  svc,
		Gate:     gate,
		Hub:      hub,
		Limiter:  limiter,
		Metrics:  m,
		Registry: registry,
		Log:      log,
	}).NewServer()

	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

func openStore(cfg *config.Config, log *logrus.Logger) (store.Store, error) {
	switch cfg.Store {
	case "postgres":
		log.WithFields(logrus.Fields{"driver": cfg.Database.Driver, "dsn": cfg.Database.Redacted()}).Info("connecting to postgres")
		db, err := database.Open(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		log.WithField("path", cfg.SQLitePath).Info("opening sqlite database")
		db, err := database.OpenSQLite(cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		log.Info("using in-memory store")
		return store.NewMemory(), nil
	}
}

// openLimiter prefers Redis and falls back to a per-process limiter when
// Redis is not configured or unreachable.
func openLimiter(ctx context.Context, cfg *config.Config, log *logrus.Logger) (middleware.Limiter, func()) {
	if cfg.RateLimit.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		rl, err := middleware.NewRedisLimiter(pingCtx, cfg.RateLimit.RedisURL, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		if err == nil {
			log.Info("rate limiting through redis")
			return rl, func() { rl.Close() }
		}
		log.WithError(err).Warn("redis unavailable, using in-process rate limiter")
	}

	ml := middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go ml.Cleanup(ctx)
	return ml, func() {}
}
