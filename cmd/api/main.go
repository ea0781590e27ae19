//	@title			File Gateway API
//	@version		1.0
//	@description	Upload, download, delete and list files in an S3-compatible object store.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radif/filegateway/internal/config"
	"github.com/radif/filegateway/internal/gateway"
	"github.com/radif/filegateway/internal/keys"
	"github.com/radif/filegateway/internal/logger"
	"github.com/radif/filegateway/internal/storage"

	_ "github.com/radif/filegateway/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, flush := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.AppEnv,
	}, logger.RequestID)
	defer flush()
	slog.SetDefault(lg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	backend, err := newStore(ctx, cfg)
	cancel()
	if err != nil {
		lg.Error("object storage init failed", slog.String("driver", cfg.StorageDriver), slog.String("error", err.Error()))
		flush()
		os.Exit(1)
	}

	store, err := storage.Instrumented(backend, prometheus.DefaultRegisterer)
	if err != nil {
		lg.Error("metrics registration failed", slog.String("error", err.Error()))
		flush()
		os.Exit(1)
	}

	// Wire dependencies: store → service → handler
	svc := gateway.NewService(store, keys.NewDeriver(), gateway.Config{
		Bucket:          cfg.StorageBucket,
		Region:          cfg.StorageRegion,
		PublicBase:      cfg.StoragePublicBase,
		DefaultListKeys: cfg.ListDefaultKeys,
		MaxListKeys:     cfg.ListMaxKeys,
	}, lg)

	// Upload and download bodies move at the client's pace, so only the
	// headers get a deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, svc, lg, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.AppEnv),
			slog.String("driver", cfg.StorageDriver),
			slog.String("bucket", cfg.StorageBucket),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server error", slog.String("error", err.Error()))
			flush()
			os.Exit(1)
		}
	}()

	<-quit
	lg.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("forced shutdown", slog.String("error", err.Error()))
		return
	}

	lg.Info("server stopped")
}
