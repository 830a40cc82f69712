package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickcart-search/internal/api"
	"quickcart-search/internal/cache"
	"quickcart-search/internal/config"
	"quickcart-search/internal/database"
	"quickcart-search/internal/experiment"
	"quickcart-search/internal/search"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	// ── Infrastructure ─────────────────────────────────────────────────────────

	db, err := database.Connect(cfg.PostgresDSN)
	if err != nil {
		slog.Error("postgres connect failed", "component", "api", "error", err)
		os.Exit(1)
	}

	// The result cache is an optimization: start without it if Redis is down.
	var resultCache search.ResultCache
	var assignmentCache experiment.AssignmentCache
	redisClient, err := cache.New(cfg.RedisAddr)
	if err != nil {
		slog.Warn("redis connect failed, running without cache", "component", "api", "error", err)
	} else {
		resultCache = redisClient
		assignmentCache = redisClient
	}

	// An unreachable cluster starts the client degraded instead of failing:
	// search returns empty results until the backend comes back.
	searchClient, err := search.NewClient(
		elasticsearch.Config{Addresses: []string{cfg.ElasticsearchURL}},
		db,
		search.WithIndexName(cfg.SearchIndex),
		search.WithBatchSize(cfg.ReindexBatchSize),
	)
	if err != nil {
		slog.Error("elasticsearch init failed", "component", "api", "error", err)
		os.Exit(1)
	}
	if err := searchClient.EnsureIndex(context.Background()); err != nil {
		slog.Error("ensure index failed", "component", "api", "error", err)
		os.Exit(1)
	}

	// ── Experiments ────────────────────────────────────────────────────────────

	var rankings search.RankingSource
	if cfg.ExperimentsFile != "" {
		experiments, err := experiment.Load(cfg.ExperimentsFile)
		if err != nil {
			slog.Error("experiments load failed", "component", "api", "file", cfg.ExperimentsFile, "error", err)
			os.Exit(1)
		}
		rankings = experiment.NewAssigner(experiments, assignmentCache, nil)
		slog.Info("experiments loaded", "component", "api", "count", len(experiments))
	}

	// ── HTTP server ────────────────────────────────────────────────────────────

	h := &api.Handler{
		Search: search.NewService(searchClient, resultCache, rankings),
		Index:  searchClient,
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // admin reindex responds synchronously
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api started", "component", "api", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "component", "api", "error", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	//
	// Shutdown order matters:
	//  1. Stop accepting new HTTP requests (srv.Shutdown) — in-flight requests finish.
	//  2. Close infrastructure clients in reverse init order.

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutdown signal received", "component", "api")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "component", "api", "error", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}
	db.Conn.Close()

	slog.Info("shutdown complete", "component", "api")
}
