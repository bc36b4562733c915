package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shindakun/diuportal/internal/app"
	"github.com/shindakun/diuportal/internal/auth"
	"github.com/shindakun/diuportal/internal/config"
	"github.com/shindakun/diuportal/internal/metrics"
	"github.com/shindakun/diuportal/internal/notifications"
	"github.com/shindakun/diuportal/internal/storage"
	"github.com/shindakun/diuportal/internal/tracing"
	"github.com/shindakun/diuportal/internal/version"
	"github.com/shindakun/diuportal/internal/web/handlers"
	webmiddleware "github.com/shindakun/diuportal/internal/web/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const sessionPurgeInterval = time.Hour

func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("APP_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	// Initialize logger
	logger := newLogger()
	defer logger.Sync()
	logger.Info("starting DIU portal", zap.String("version", version.GetFullVersion()))

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("configuration loaded",
		zap.String("path", configPath),
		zap.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "diuportal", cfg.Tracing)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}

	// Initialize database
	logger.Info("initializing database", zap.String("path", cfg.Database.Path))
	db, err := storage.InitDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	sessionManager := auth.InitSessions(cfg.Session.Secret, cfg.Session.Lifetime, cfg.CookieSecure(), cfg.CookieSameSite(), db)

	// Boot before the OAuth manager so redirect URIs use the final base URL
	container := app.Register(cfg, logger)
	ns := notifications.NewService(db, logger, 0)
	composer := container.Boot(ns)

	oauthManager := auth.InitOAuth(cfg, sessionManager)
	logger.Info("oauth providers configured",
		zap.Strings("providers", oauthManager.Providers()),
		zap.String("base_url", cfg.GetBaseURL()))

	h, err := handlers.New(handlers.Deps{
		Config:        cfg,
		DB:            db,
		Sessions:      sessionManager,
		OAuth:         oauthManager,
		Drive:         container,
		Composer:      composer,
		Notifications: ns,
		Metrics:       metrics.New(),
		Limiter:       webmiddleware.NewRateLimiter(cfg.RateLimit),
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize handlers", zap.Error(err))
	}

	// Initialize router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(webmiddleware.LoggingMiddleware(logger))
	r.Use(webmiddleware.Recover(logger, h.RenderError))
	r.Use(webmiddleware.SecurityHeaders(cfg))
	r.Use(webmiddleware.MaxBytesMiddleware(cfg.Server.Security.MaxRequestBytes))
	r.Use(middleware.Timeout(60 * time.Second))
	if cfg.Server.Security.CSRFEnabled {
		r.Use(webmiddleware.CSRFProtection([]byte(cfg.Session.Secret), cfg.CookieSecure(), cfg.Server.Security.CSRFFieldName))
	}
	r.Use(webmiddleware.LoadSession(sessionManager, logger))

	h.Routes(r)

	// HTTP server configuration
	srv := &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      otelhttp.NewHandler(r, "diuportal"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go purgeSessions(ctx, db, logger)

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("url", cfg.GetBaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
	logger.Info("server exited")
}

// purgeSessions deletes expired sessions every sessionPurgeInterval until
// ctx is done
func purgeSessions(ctx context.Context, db *sql.DB, logger *zap.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := storage.PurgeExpiredSessions(db, now)
			if err != nil {
				logger.Warn("failed to purge sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", zap.Int64("count", n))
			}
		}
	}
}
