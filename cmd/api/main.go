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
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/ecomauth/server/internal/auth"
	"github.com/ecomauth/server/internal/config"
	"github.com/ecomauth/server/internal/db"
	"github.com/ecomauth/server/internal/email"
	httphandler "github.com/ecomauth/server/internal/http"
	"github.com/ecomauth/server/internal/http/handlers"
	"github.com/ecomauth/server/internal/repo"
)

func main() {
	// Load .env from CWD if present (env vars override)
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	roleRepo := repo.NewRoleRepo(database)
	codeRepo := repo.NewVerificationCodeRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	refreshRepo := repo.NewRefreshTokenRepo(database)

	// Email dispatch
	var sender email.Sender
	if cfg.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.OTPTTL)
	} else {
		logrus.Warn("RESEND_API_KEY not set; OTP emails will be suppressed")
		sender = email.LogSender{}
	}

	// Auth core, wired explicitly so the dependency graph stays visible
	hasher := auth.NewHasher()
	codec := auth.NewTokenCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	codes := auth.NewCodeStore(codeRepo)
	twoFactor := auth.NewTwoFactor(cfg.AppName)
	sessions := auth.NewSessionRegistry(codec, deviceRepo, refreshRepo)
	roles := auth.NewRoleCache(roleRepo)
	service := auth.NewService(hasher, codes, twoFactor, sessions, userRepo, roles, sender, cfg.OTPTTL)

	var google *auth.GoogleBridge
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleBridge(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, service)
	}

	authHandler := handlers.NewAuthHandler(service, google)
	router := httphandler.NewRouter(authHandler, codec, userRepo, google != nil)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server exited")
}

// runMigrations runs the embedded database migrations using goose
func runMigrations(database *sql.DB) error {
	goose.SetBaseFS(db.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(database, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
