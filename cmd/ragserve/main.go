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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/chunker"
	"github.com/calder-labs/ragserve/internal/config"
	dbRedis "github.com/calder-labs/ragserve/internal/db/redis"
	"github.com/calder-labs/ragserve/internal/domain"
	"github.com/calder-labs/ragserve/internal/extract"
	logpkg "github.com/calder-labs/ragserve/internal/logger"
	"github.com/calder-labs/ragserve/internal/metrics"
	collectionrepo "github.com/calder-labs/ragserve/internal/repository/collection"
	"github.com/calder-labs/ragserve/internal/repository/embcache"
	recordrepo "github.com/calder-labs/ragserve/internal/repository/record"
	searchrepo "github.com/calder-labs/ragserve/internal/repository/search"
	chiTransport "github.com/calder-labs/ragserve/internal/transport/chi"
	openaiEmb "github.com/calder-labs/ragserve/internal/transport/openai"
	embeddinguc "github.com/calder-labs/ragserve/internal/usecase/embedding"
	healthuc "github.com/calder-labs/ragserve/internal/usecase/health"
	ingestuc "github.com/calder-labs/ragserve/internal/usecase/ingest"
	resetuc "github.com/calder-labs/ragserve/internal/usecase/reset"
	retrieveuc "github.com/calder-labs/ragserve/internal/usecase/retrieve"
	"github.com/calder-labs/ragserve/internal/version"
)

func main() {
	// .env is optional; real deployments set variables directly
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragserve API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("collection", cfg.Ingest.Collection),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterMetrics()

	// Build embedder chain — composition root
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	// Ingestion path: batching with retry on transient provider failures.
	batchEmbedder := embeddinguc.NewClient(base, embeddinguc.Config{
		Model:        cfg.Embedding.Model,
		MaxBatch:     cfg.Embedding.MaxBatch,
		BatchTimeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		Retry: embeddinguc.RetrySettings{
			MaxAttempts: cfg.Embedding.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Embedding.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Embedding.Retry.MaxDelayMS) * time.Millisecond,
			JitterPct:   cfg.Embedding.Retry.JitterPct,
		},
	}, logger)

	// Query path: single-text embeddings, cached when a TTL is configured.
	var queryEmbedder domain.Embedder = base
	if cfg.Embedding.CacheTTLSec > 0 {
		queryEmbedder = embcache.New(
			base, store,
			cfg.Embedding.Model,
			time.Duration(cfg.Embedding.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal,
			logger,
		)
	}
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("max_batch", cfg.Embedding.MaxBatch),
		zap.Bool("query_cache", cfg.Embedding.CacheTTLSec > 0),
	)

	// Repositories (domain-native, no adapters)
	collRepo := collectionrepo.New(store, cfg.Ingest.Collection, cfg.Embedding.Dimensions, cfg.Embedding.Model).
		WithHNSW(collectionrepo.HNSWConfig{
			M:           cfg.Ingest.HNSWM,
			EFConstruct: cfg.Ingest.HNSWEFCon,
		})
	recordRepo := recordrepo.New(store, cfg.Ingest.Collection)
	searchRepo := searchrepo.New(store, cfg.Ingest.Collection)

	chunk, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	// One guard serializes reset against all ingestion and retrieval.
	guard := domain.NewGuard()

	storeTimeout := time.Duration(cfg.Database.TimeoutSec) * time.Second
	ingestSvc := ingestuc.New(chunk, batchEmbedder, collRepo, recordRepo, guard, logger).
		WithStoreTimeout(storeTimeout)
	retrieveSvc := retrieveuc.New(queryEmbedder, searchRepo, guard, logger).
		WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK).
		WithStoreTimeout(storeTimeout)
	resetSvc := resetuc.New(collRepo, guard, logger).
		WithStoreTimeout(storeTimeout)
	healthSvc := healthuc.New(store, base)

	server := chiTransport.NewServer(
		ingestSvc, retrieveSvc, resetSvc, healthSvc,
		extract.New(),
		cfg.Ingest.Collection,
		logger,
	).WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
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
						"error": "internal error",
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
