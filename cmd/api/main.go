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

	"go.uber.org/zap"
	"gorm.io/gorm"

	"pixelforge/internal/config"
	"pixelforge/internal/database"
	"pixelforge/internal/logging"
	"pixelforge/internal/metrics"
	"pixelforge/internal/server"
	"pixelforge/internal/services"
	"pixelforge/internal/storage"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 60 * time.Second
	statsInterval   = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(&cfg.Log, cfg.App.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := validateConfig(cfg); err != nil {
		if !cfg.App.Debug {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		log.Warn("insecure configuration allowed in debug mode", zap.Error(err))
	}

	log.Info("starting",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.Bool("debug", cfg.App.Debug),
		zap.String("host", cfg.App.Host),
		zap.String("port", cfg.App.Port))

	if err := database.Init(&cfg.Database, log); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info("closing database connections")
		if err := database.Close(); err != nil {
			log.Warn("error closing database", zap.Error(err))
		}
	}()
	db := database.GetDB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	assets, err := storage.NewAssetStore(ctx, &cfg.Assets)
	if err != nil {
		return err
	}

	renderer, err := services.NewRenderer(cfg.App.Name, cfg.Email.SiteURL)
	if err != nil {
		return err
	}
	mailer := services.NewEmailService(&cfg.Email, log)
	notifier := services.NewNotifier(log)
	outbox := services.NewOutbox(mailer, renderer, notifier)
	sms := services.NewSMSService(&cfg.SMS, log)

	newsletter := services.NewNewsletterService(db, mailer, renderer, outbox, cfg.Newsletter.SendConcurrency, log)
	svc := server.Services{
		Gate:       services.NewAuthGate(db, &cfg.Auth),
		Auth:       services.NewAuthService(db, &cfg.Auth, outbox, log),
		Users:      services.NewUserService(db, log),
		Contact:    services.NewContactService(db, outbox, cfg.Email.AdminEmail, log),
		Quote:      services.NewQuoteService(db, outbox, sms, cfg.Email.AdminEmail, log),
		Newsletter: newsletter,
		Project:    services.NewProjectService(db, assets, log),
		Health:     services.NewHealthService(db, cfg.App.Name, cfg.App.Version),
	}
	srv := server.New(cfg, svc, log)

	go reportDBStats(ctx, db, log)
	if cfg.Newsletter.SchedulerIntervalSeconds > 0 {
		go runScheduler(ctx, newsletter, time.Duration(cfg.Newsletter.SchedulerIntervalSeconds)*time.Second, log)
	}

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     zap.NewStdLog(log.Named("http")),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("error during graceful shutdown", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			_ = httpServer.Close()
		}
	}

	log.Info("waiting for in-flight notifications")
	drained := make(chan struct{})
	go func() {
		notifier.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn("notifications still in flight at shutdown")
	}

	log.Info("server shutdown complete")
	return nil
}

// validateConfig validates critical configuration values
func validateConfig(cfg *config.Config) error {
	if cfg.Auth.SecretKey == "" || cfg.Auth.SecretKey == "your-secret-key-change-in-production" {
		return fmt.Errorf("SECRET_KEY must be set and changed from default value")
	}
	if len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 characters for security")
	}
	return nil
}

// runScheduler sends due scheduled campaigns every interval.
func runScheduler(ctx context.Context, newsletter *services.NewsletterService, interval time.Duration, log *zap.Logger) {
	log = log.Named("scheduler")
	log.Info("newsletter scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent, err := newsletter.DispatchDue(ctx)
			if err != nil {
				log.Error("dispatch failed", zap.Error(err))
				continue
			}
			if sent > 0 {
				log.Info("scheduled campaigns sent", zap.Int("count", sent))
			}
		}
	}
}

// reportDBStats keeps the connection pool gauges current.
func reportDBStats(ctx context.Context, db *gorm.DB, log *zap.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := database.GetStats(db)
			if err != nil {
				log.Debug("failed to read db stats", zap.Error(err))
				continue
			}
			metrics.UpdateDBConnections(stats.InUse, stats.Idle)
		}
	}
}
