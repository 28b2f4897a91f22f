package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"asset-catalog/internal/db"
	"asset-catalog/internal/logging"
	"asset-catalog/internal/server"
	"asset-catalog/internal/storage"
)

func main() {
	settings, err := server.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "config_load_failed", err)
		os.Exit(1)
	}
	// Safety: refuse to start on an incomplete configuration.
	if err := settings.Validate(); err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}

	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "service=backend msg=%q err=%v\n", "logger_init_failed", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.With(zap.String("service", "backend"))

	if err := run(settings, log); err != nil {
		log.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(settings server.Settings, log *zap.Logger) error {
	ctx := context.Background()

	// Database
	dbConn, err := db.Open(settings.DSN())
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = dbConn.Close() }()

	log.Info("running migrations")
	if err := db.RunMigrations(ctx, dbConn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations complete")

	accounts := db.NewAccounts(dbConn)
	created, err := provisionAdmin(ctx, accounts, settings.AdminEmail, settings.AdminPassword, server.PasswordCost)
	if err != nil {
		return err
	}
	if created {
		log.Info("admin account created", zap.String("email", settings.AdminEmail))
	}

	store, err := storage.Open(ctx, settings.StorageConfig())
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	srv, err := server.New(server.Config{
		Addr:           settings.Addr(),
		Version:        settings.Version,
		Accounts:       accounts,
		Catalog:        db.NewImages(dbConn),
		Store:          store,
		DB:             dbConn,
		JWTSecret:      settings.JWTSecret,
		SessionTTL:     settings.JWTExpiresIn,
		MaxUploadBytes: settings.MaxUploadBytes,
		CORSOrigins:    settings.CORSOrigins,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	// Start the HTTP server in a background goroutine so signals can be
	// handled while it runs.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting",
			zap.String("env", settings.Environment()),
			zap.String("version", settings.Version),
			zap.String("storage", store.Backend()))
		errCh <- srv.Start()
	}()

	// Graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (container stop).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("shutdown complete")
		return nil
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}

type adminStore interface {
	EnsureAdmin(ctx context.Context, email, passwordDigest string) (bool, error)
}

// provisionAdmin seeds the initial admin account when a password is
// configured. An existing account is left untouched.
func provisionAdmin(ctx context.Context, admins adminStore, email, password string, cost int) (bool, error) {
	if password == "" {
		return false, nil
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	created, err := admins.EnsureAdmin(ctx, strings.TrimSpace(email), string(digest))
	if err != nil {
		return false, fmt.Errorf("provision admin: %w", err)
	}
	return created, nil
}
