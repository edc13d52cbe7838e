package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/estate-chat/internal/application"
	appchat "github.com/bryanwahyu/estate-chat/internal/application/chat"
	"github.com/bryanwahyu/estate-chat/internal/config"
	"github.com/bryanwahyu/estate-chat/internal/infra/backend"
	"github.com/bryanwahyu/estate-chat/internal/infra/httpserver"
	"github.com/bryanwahyu/estate-chat/internal/infra/memory"
	minioStore "github.com/bryanwahyu/estate-chat/internal/infra/storage"
	"github.com/bryanwahyu/estate-chat/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := backend.NewClient(cfg.Backend.URL, &http.Client{Timeout: cfg.Backend.Timeout})
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	store := memory.NewSessionStore()
	svc := &appchat.Service{
		Store:   store,
		Backend: client,
		Clock:   application.SystemClock{},
		Logger:  logger,
	}

	checks := map[string]middleware.HealthChecker{
		"backend": &middleware.BackendHealthChecker{Backend: client, Timeout: 3 * time.Second},
	}
	if cfg.Minio.Enabled {
		archive, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Minio.Prefix,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		svc.Archive = archive
		checks["archive"] = middleware.CheckerFunc(archive.Ping)
		logger.Info("archiving uploads", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.BucketName)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	middleware.SetSessionGauge(store.Len)

	handler, err := httpserver.NewRouter(httpserver.Options{
		Chat:           svc,
		Backend:        client,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Limiter:        limiter,
		Health:         checks,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Session.SweepSchedule, func() {
		svc.Sweep(cfg.Session.MaxIdle)
		if n := limiter.Cleanup(time.Now().Add(-cfg.Session.MaxIdle)); n > 0 {
			logger.Debug("rate limit buckets dropped", "removed", n)
		}
	}); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", cfg.Session.SweepSchedule, err)
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr, "backend", client.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweeper.Start()
		<-gctx.Done()
		logger.Info("shutting down server...")
		<-sweeper.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
