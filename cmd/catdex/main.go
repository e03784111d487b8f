package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/config"
	dbredis "github.com/opalgrove/catdex/internal/db/redis"
	logpkg "github.com/opalgrove/catdex/internal/logger"
	"github.com/opalgrove/catdex/internal/metrics"
	"github.com/opalgrove/catdex/internal/repository/embcache"
	storerepo "github.com/opalgrove/catdex/internal/repository/store"
	catalogTransport "github.com/opalgrove/catdex/internal/transport/catalog"
	chiTransport "github.com/opalgrove/catdex/internal/transport/chi"
	openaiTransport "github.com/opalgrove/catdex/internal/transport/openai"
	healthuc "github.com/opalgrove/catdex/internal/usecase/health"
	indexinguc "github.com/opalgrove/catdex/internal/usecase/indexing"
	searchuc "github.com/opalgrove/catdex/internal/usecase/search"
	"github.com/opalgrove/catdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting catdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// rueidis speaks RESP to both valkey and redis, so one store serves
	// both drivers; the config driver only labels the deployment.
	store, err := dbredis.NewStore(dbredis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterIndexingMetrics()

	embedder := openaiTransport.NewClient(&openaiTransport.Config{
		APIKey:      cfg.Embedding.APIKey,
		BaseURL:     cfg.Embedding.BaseURL,
		Model:       cfg.Embedding.Model,
		VisionModel: cfg.Embedding.VisionModel,
		Dimensions:  cfg.Embedding.Dimensions,
		User:        cfg.Embedding.User,
		Provider:    cfg.Embedding.Provider,
		Logger:      logger,
	})
	logger.Info("Embedding client created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.String("vision_model", cfg.Embedding.VisionModel),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Cache query embeddings in the store; repeated searches skip the provider.
	cachedEmbedder := embcache.New(embedder, store, metrics.EmbeddingCacheTotal, logger)

	catalogClient := catalogTransport.NewClient(&catalogTransport.Config{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: time.Duration(cfg.Catalog.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	repo := storerepo.New(store, cfg.Embedding.Dimensions, cfg.Indexing.ImageDimensions)

	indexSvc := indexinguc.New(catalogClient, repo, cachedEmbedder, indexinguc.Config{
		BatchSize:      cfg.Indexing.BatchSize,
		Workers:        cfg.Indexing.Workers,
		EmbedImages:    cfg.Indexing.EmbedImages,
		RetryAttempts:  cfg.Indexing.RetryAttempts,
		RetryBaseDelay: time.Duration(cfg.Indexing.RetryBaseDelayMs) * time.Millisecond,
	}, logger)

	searchSvc := searchuc.New(repo, cachedEmbedder, embedder, embedder, searchuc.Config{
		ScorerTimeout:  time.Duration(cfg.Search.ScorerTimeoutSec) * time.Second,
		RetryAttempts:  cfg.Search.RetryAttempts,
		RetryBaseDelay: time.Duration(cfg.Search.RetryBaseDelayMs) * time.Millisecond,
	}, logger)

	healthSvc := healthuc.New(store, repo, cachedEmbedder)

	server := chiTransport.NewServer(searchSvc, indexSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
