package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/veriqo/server/internal/auth"
	"github.com/veriqo/server/internal/config"
	"github.com/veriqo/server/internal/db"
	httphandler "github.com/veriqo/server/internal/http"
	"github.com/veriqo/server/internal/http/handlers"
	"github.com/veriqo/server/internal/logging"
	"github.com/veriqo/server/internal/notify"
	"github.com/veriqo/server/internal/repo"
	"github.com/veriqo/server/internal/storage"
	"github.com/veriqo/server/internal/verification"
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.ErrorLogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	userRepo := repo.NewUserRepo(database)
	sink := notify.NewClient(cfg.Twilio, cfg.Resend)
	assets := storage.NewCloudinaryStore(cfg.Cloudinary)

	creds := auth.NewCredentialStore()
	tokens := auth.NewTokenIssuer()
	otp := auth.NewOTPLifecycle(creds, cfg.DevMode)
	if cfg.DevMode {
		logger.Warn("dev mode is on: fixed OTP bypass code is accepted")
	}

	authService := auth.NewService(userRepo, sink, creds, tokens, otp, cfg.JWTSecret, cfg.FrontendURL, logger)
	workflow := verification.NewWorkflow(userRepo, sink, assets, logger)

	authHandler := handlers.NewAuthHandler(authService, cfg.ErrorLogPath, logger)
	profileHandler := handlers.NewProfileHandler(workflow, logger)

	router := httphandler.NewRouter(authHandler, profileHandler, authService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
