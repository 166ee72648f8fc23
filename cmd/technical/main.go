package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/relife-project/technical-service/internal/api"
	"github.com/relife-project/technical-service/internal/auth"
	"github.com/relife-project/technical-service/internal/config"
	"github.com/relife-project/technical-service/internal/events"
	"github.com/relife-project/technical-service/internal/storage"
	"github.com/relife-project/technical-service/internal/store"
)

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Authentication
	var strategies []auth.Strategy
	var roles auth.RoleFetcher
	if cfg.Auth.SupabaseEnabled() {
		strategies = append(strategies, auth.NewSupabaseStrategy(cfg.Auth.SupabaseURL, cfg.Auth.SupabaseKey))
	}
	if cfg.Auth.KeycloakEnabled() {
		strategies = append(strategies, auth.NewKeycloakStrategy(cfg.Auth.KeycloakRealmURL, cfg.Auth.KeycloakClientID, logger))
		if cfg.Auth.KeycloakClientSecret != "" {
			roles = auth.NewKeycloakRoles(cfg.Auth.KeycloakRealmURL, cfg.Auth.KeycloakClientID, cfg.Auth.KeycloakClientSecret)
		}
	}
	if len(strategies) == 0 {
		logger.Warn("no authentication providers configured, protected endpoints will reject every request")
	}
	authenticator := auth.NewAuthenticator(roles, logger, strategies...)
	logger.Info("authentication configured",
		"supabase", cfg.Auth.SupabaseEnabled(),
		"keycloak", cfg.Auth.KeycloakEnabled(),
		"roles", roles != nil,
	)

	// Events (optional)
	var publisher events.Publisher
	if cfg.Events.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to nats, running without events", "error", err)
		} else {
			publisher = nc
			defer nc.Close()
			logger.Info("connected to nats")
		}
	}

	// Storage (optional)
	var files storage.Client
	if cfg.Auth.SupabaseEnabled() {
		sc := storage.NewHTTPClient(cfg.Auth.SupabaseURL, cfg.Auth.SupabaseKey, cfg.Storage.BucketName)
		files = sc
		logger.Info("storage configured", "bucket", sc.Bucket())
	}

	// Database (optional)
	var tables store.TableReader
	if cfg.Database.URL != "" {
		db, err := store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.RLSRole, cfg.Database.MaxRows)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		tables = db
		logger.Info("connected to database", "rls_role", cfg.Database.RLSRole)
	}

	// API server
	router := api.NewRouter(api.Deps{
		Auth:               authenticator,
		Storage:            files,
		Tables:             tables,
		Events:             publisher,
		AdminRole:          cfg.Auth.AdminRoleName,
		RequestTimeout:     cfg.RequestTimeout(),
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Logger:             logger,
		TrustProxyHeaders:  cfg.Server.TrustProxyHeaders,
	})
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
