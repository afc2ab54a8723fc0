package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"looplib/internal/auth"
	"looplib/internal/config"
	database "looplib/internal/db"
	"looplib/internal/ingest"
	"looplib/internal/library"
	"looplib/internal/logging"
	"looplib/internal/profile"
	"looplib/internal/storage"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "looplib/internal/api/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting looplib API Server...")

	// 1. Setup Configuration
	cfg := config.Load()

	logger := logging.Setup(logging.Options{
		Service:     "looplib-api",
		Environment: cfg.Server.Environment,
		Level:       cfg.Log.Level,
		FilePath:    cfg.Log.FilePath,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Accounts database + migrations
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(cfg.Profiles.Backend == "sql"); err != nil {
		log.Fatalf("%v", err)
	}

	// 3. Profile documents
	var profiles profile.Store
	switch cfg.Profiles.Backend {
	case "sql":
		profiles = profile.NewSQLStore(db.DB)
	default:
		mongoClient, err := profile.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		profiles = profile.NewMongoStore(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
	}

	// 4. Storage + services
	store := storage.New(cfg)

	lib := library.New(store, library.Options{
		FetchConcurrency: cfg.Library.FetchConcurrency,
		ListTimeout:      cfg.Library.ListTimeout,
		CacheTTL:         cfg.Library.CacheTTL,
	}, logger)

	limits := ingest.DefaultLimits()
	limits.MaxFileSize = cfg.Upload.MaxFileSizeMB << 20
	if err := os.MkdirAll(cfg.Server.TempDir, 0o755); err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	uploader := ingest.New(store, lib, limits, cfg.Server.TempDir, logger)

	provider := auth.NewProvider(db.DB, profiles, auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), logger)
	provider.OnAuthStateChanged(func(ev auth.Event) {
		logger.Info("auth state changed", "event", ev.Kind, "uid", ev.UID)
		if ev.Kind == auth.SignedOut {
			lib.Invalidate(ev.UID)
		}
	})
	if cfg.Server.Environment == "development" {
		seedDemoAccount(ctx, cfg, provider)
	}

	// 5. Setup Metrics
	library.RegisterMetrics()
	ingest.RegisterMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/_metrics", promhttp.Handler())
		log.Printf("Metrics exposed at http://localhost%s/_metrics", cfg.Server.MetricsPort)
		srv := &http.Server{Addr: cfg.Server.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// 6. Start Server
	srv := apiserver.New(cfg, apiserver.Deps{
		Auth:     provider,
		Profiles: profiles,
		Library:  lib,
		Uploader: uploader,
		Logger:   logger,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("API Server starting on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
	log.Println("API Server stopped")
}

func seedDemoAccount(ctx context.Context, cfg *config.Config, provider *auth.Provider) {
	if cfg.Auth.DemoEmail == "" || cfg.Auth.DemoPassword == "" {
		return
	}
	if _, err := provider.SeedAccount(ctx, cfg.Auth.DemoEmail, cfg.Auth.DemoPassword, "demo"); err != nil {
		slog.Error("failed to seed demo account", "error", err)
	}
}
