package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"machine-fleet-backend/config"
	"machine-fleet-backend/internal/advisor"
	"machine-fleet-backend/internal/api"
	"machine-fleet-backend/internal/db"
	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/notification"
	"machine-fleet-backend/internal/reminder"
	"machine-fleet-backend/internal/session"
	"machine-fleet-backend/internal/store"
	"machine-fleet-backend/internal/telemetry"
)

func main() {
	logger := log.New(os.Stdout, "fleet-backend ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatalf("failed to initialize tracing: %v", err)
	}

	sessions, err := newSessionProvider(&cfg.Auth)
	if err != nil {
		logger.Fatalf("failed to configure sessions: %v", err)
	}

	if cfg.Reminder.Enabled && (cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "") {
		logger.Fatalf("VAPID keys must be configured when maintenance reminders are enabled.")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	appStore := store.NewGormStore(gormDB)
	drafts := draft.NewRegistry(appStore, cfg.Drafts.TTL)
	advisorClient := advisor.NewClient(cfg.Advisor)
	if !advisorClient.Enabled() {
		logger.Println("advisor is not configured; suggestions are disabled")
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, &webpushOptions)
	if cfg.Reminder.Enabled {
		pool.Start(ctx)
	}
	reminderSvc := reminder.NewService(cfg.Reminder, appStore, pool)
	go reminderSvc.Run(ctx)

	handler := api.NewHandler(appStore, drafts, advisorClient, sessions, &webpushOptions)
	unwatch := handler.WatchSessions()
	defer unwatch()

	router := api.NewRouter(cfg.Server, handler)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// newSessionProvider prefers JWT verification and falls back to static
// development tokens.
func newSessionProvider(cfg *config.AuthConfig) (session.Provider, error) {
	if cfg.JWTSecret != "" {
		return session.NewJWTProvider(cfg.JWTSecret, cfg.Issuer, cfg.Audience), nil
	}
	if len(cfg.StaticTokens) > 0 {
		log.Printf("Warning: using %d static development tokens", len(cfg.StaticTokens))
		tokens := make(map[string]session.User, len(cfg.StaticTokens))
		for token, u := range cfg.StaticTokens {
			tokens[token] = session.User{ID: u.UserID, Email: u.Email, FullName: u.Name}
		}
		return session.NewStatic(tokens), nil
	}
	return nil, errors.New("auth.jwt_secret or auth.static_tokens must be set")
}
