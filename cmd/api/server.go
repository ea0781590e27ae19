package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/radif/filegateway/internal/config"
	"github.com/radif/filegateway/internal/gateway"
	"github.com/radif/filegateway/internal/handler"
	appMiddleware "github.com/radif/filegateway/internal/middleware"
	"github.com/radif/filegateway/internal/response"
	"github.com/radif/filegateway/internal/storage"
)

// newStore opens the backend selected by STORAGE_DRIVER.
func newStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.DriverMinio:
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:      cfg.EndpointHost(),
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Bucket:        cfg.StorageBucket,
			Region:        cfg.StorageRegion,
			UseSSL:        cfg.StorageUseSSL,
			PathStyle:     cfg.StoragePathStyle,
			EnsureBucket:  cfg.StorageEnsureBucket,
			Timeout:       cfg.StorageTimeout,
			UploadTimeout: cfg.StorageUploadTimeout,
			PartSize:      uint64(cfg.StoragePartSize),
			MaxRetries:    cfg.StorageMaxRetries,
		})
	case config.DriverS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:      cfg.EndpointURL(),
			Region:        cfg.StorageRegion,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Bucket:        cfg.StorageBucket,
			PathStyle:     cfg.StoragePathStyle,
			MaxRetries:    cfg.StorageMaxRetries,
			Timeout:       cfg.StorageTimeout,
			UploadTimeout: cfg.StorageUploadTimeout,
		})
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newRouter(cfg *config.Config, svc *gateway.Service, lg *slog.Logger, metrics prometheus.Gatherer) http.Handler {
	h := handler.NewHandler(svc, lg, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(lg))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w)
	})

	// Swagger UI at /swagger/index.html, outside production only
	if !cfg.IsProduction() {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	// File endpoints share the rate limiter; health and metrics do not.
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		h.Routes(r)
	})

	return r
}
