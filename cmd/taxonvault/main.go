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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crenwick/taxonvault/internal/backup"
	"github.com/crenwick/taxonvault/internal/config"
	"github.com/crenwick/taxonvault/internal/database"
	"github.com/crenwick/taxonvault/internal/handlers"
	"github.com/crenwick/taxonvault/internal/middleware"
	"github.com/crenwick/taxonvault/internal/repository/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	backupRepo := sqlite.NewBackupRepository(db)
	provider := sqlite.NewDatasetProvider(db)

	store := backup.NewStore(backupRepo)
	builder := backup.NewBuilder(provider, store)
	engine := backup.NewEngine(store, builder, provider)
	exchange := backup.NewExchange(store)
	scheduler := backup.NewScheduler(store, builder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedSettings(ctx, cfg, store); err != nil {
		return err
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/backups", handlers.BackupsHandler(store, builder))
	mux.HandleFunc("/api/backups/", handlers.BackupByIDHandler(store, engine, exchange))
	mux.HandleFunc("/api/backups/import", handlers.ImportHandler(exchange, cfg.MaxImportSize))
	mux.HandleFunc("/api/backups/trigger", handlers.TriggerHandler(scheduler))
	mux.HandleFunc("/api/backups/settings", handlers.SettingsHandler(store, scheduler))
	mux.HandleFunc("/health", handlers.HealthHandler(db, engine))
	mux.Handle("/metrics", promhttp.Handler())

	handler := middleware.Recovery(middleware.Logging(middleware.Metrics(mux)))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port, "db_path", cfg.DBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// seedSettings applies environment overrides to the persisted backup
// settings on startup. Only variables explicitly set in the environment are
// applied; otherwise the database row is authoritative.
func seedSettings(ctx context.Context, cfg *config.Config, store *backup.Store) error {
	var upd backup.SettingsUpdate
	if _, ok := os.LookupEnv("MAX_BACKUPS"); ok {
		upd.MaxBackups = &cfg.MaxBackups
	}
	if _, ok := os.LookupEnv("AUTO_BACKUP_INTERVAL_HOURS"); ok {
		upd.AutoBackupIntervalHours = &cfg.AutoBackupIntervalHours
	}
	if upd.MaxBackups == nil && upd.AutoBackupIntervalHours == nil {
		return nil
	}

	settings, err := store.UpdateSettings(ctx, upd)
	if err != nil {
		return fmt.Errorf("failed to apply backup settings from environment: %w", err)
	}
	slog.Info("backup settings applied from environment",
		"max_backups", settings.MaxBackups,
		"auto_backup_interval_hours", settings.AutoBackupIntervalHours)
	return nil
}
