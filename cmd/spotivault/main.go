package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/api"
	"github.com/spotivault/spotivault/internal/config"
	"github.com/spotivault/spotivault/internal/download"
	apperrors "github.com/spotivault/spotivault/internal/errors"
	"github.com/spotivault/spotivault/internal/library"
	"github.com/spotivault/spotivault/internal/metadata"
	"github.com/spotivault/spotivault/internal/monitoring"
	"github.com/spotivault/spotivault/internal/server"
)

// version is set at build time
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spotivault: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := monitoring.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting spotivault",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("download_root", cfg.Sync.DownloadRoot))

	// canceled on SIGINT/SIGTERM; downloader processes inherit it and are
	// killed on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Sync.DownloadRoot, 0755); err != nil {
		return fmt.Errorf("failed to create download root: %w", err)
	}

	spotify := api.NewSpotifyClient(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, 30*time.Second)
	registry := library.NewRegistry(cfg.Sync.DownloadRoot)
	reconciler := library.NewReconciler(registry, spotify, logger)
	launcher := download.NewCLI(cfg.Downloader.Executable, cfg.Downloader.ExtraArgs)
	supervisor := download.NewSupervisor(registry, launcher, reconciler, logger)
	jobs := download.NewJobRegistry(cfg.Sync.DownloadRoot, launcher, logger)

	covers, err := metadata.NewCoverCache(filepath.Join(cfg.Sync.DataDir, "covers"))
	if err != nil {
		return fmt.Errorf("failed to create cover cache: %w", err)
	}

	health := monitoring.NewHealthChecker(version, cfg.Sync.DownloadRoot)
	tasks := apperrors.NewTaskGroup(logger)

	seedPlaylists(ctx, cfg, registry, reconciler, tasks, logger)

	cleaner := library.NewCleaner(cfg.ContentTTL(), logger, registry, jobs)
	go refreshLoop(ctx, cfg.MetadataRefreshInterval(), reconciler, logger)
	go scanLoop(ctx, cfg.DownloadScanInterval(), reconciler)
	go cleanupLoop(ctx, cleaner, logger)

	handler := server.NewHandler(ctx, registry, reconciler, supervisor, jobs, covers, health, tasks, logger)
	router := server.NewRouter(handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	tasks.Wait()
	logger.Info("shutdown complete")
	return nil
}

// seedPlaylists registers the configured playlists and fires their first
// metadata refresh without blocking startup
func seedPlaylists(ctx context.Context, cfg *config.Config, registry *library.Registry, reconciler *library.Reconciler, tasks *apperrors.TaskGroup, logger *zap.Logger) {
	for _, url := range cfg.Playlists() {
		id, err := api.ExtractPlaylistID(url)
		if err != nil {
			logger.Warn("skipping configured playlist with invalid url",
				zap.String("url", url),
				zap.Error(err))
			continue
		}
		registry.GetOrCreate(id, url, false)
		tasks.Go("refresh-"+id, func() error {
			return reconciler.RefreshMetadata(ctx, id)
		})
	}
	logger.Info("seeded playlists from configuration", zap.Int("count", registry.Count()))
}

// refreshLoop periodically refreshes metadata for all tracked playlists
func refreshLoop(ctx context.Context, interval time.Duration, reconciler *library.Reconciler, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("periodic metadata refresh disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconciler.RefreshAll(ctx)
		}
	}
}

// scanLoop periodically rescans download directories so files written by
// out-of-band downloader runs are picked up
func scanLoop(ctx context.Context, interval time.Duration, reconciler *library.Reconciler) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reconciler.ReconcileAll()
		}
	}
}

// cleanupLoop periodically evicts content past its time-to-live
func cleanupLoop(ctx context.Context, cleaner *library.Cleaner, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := cleaner.RunOnce(time.Now()); evicted > 0 {
				logger.Info("cleanup sweep finished", zap.Int("evicted", evicted))
			}
		}
	}
}
