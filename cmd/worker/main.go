package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quickcart-search/internal/config"
	"quickcart-search/internal/database"
	"quickcart-search/internal/events"
	"quickcart-search/internal/search"
	"quickcart-search/internal/worker"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()

	// ── Infrastructure ─────────────────────────────────────────────────────────

	db, err := database.Connect(cfg.PostgresDSN)
	if err != nil {
		slog.Error("postgres connect failed", "component", "worker", "error", err)
		os.Exit(1)
	}

	searchClient, err := search.NewClient(
		elasticsearch.Config{Addresses: []string{cfg.ElasticsearchURL}},
		db,
		search.WithIndexName(cfg.SearchIndex),
		search.WithBatchSize(cfg.ReindexBatchSize),
	)
	if err != nil {
		slog.Error("elasticsearch init failed", "component", "worker", "error", err)
		os.Exit(1)
	}
	if err := searchClient.EnsureIndex(context.Background()); err != nil {
		slog.Error("ensure index failed", "component", "worker", "error", err)
		os.Exit(1)
	}

	consumer, err := events.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		slog.Error("rabbitmq connect failed", "component", "worker", "error", err)
		os.Exit(1)
	}

	// ── Background cron ────────────────────────────────────────────────────────
	//
	// The scheduled full reindex is the safety net for any events that were
	// lost or mishandled: it re-derives every document from Postgres.

	cronScheduler, err := worker.StartCronJobs(searchClient, cfg.ReindexSchedule)
	if err != nil {
		slog.Error("invalid cron schedule", "schedule", cfg.ReindexSchedule, "error", err)
		os.Exit(1)
	}

	// ── Run ────────────────────────────────────────────────────────────────────
	//
	// ctx is cancelled on SIGINT/SIGTERM, which causes worker.Run to drain the
	// current in-flight message and return cleanly before we close connections.

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(searchClient, consumer)
	if err := w.Run(ctx); err != nil {
		slog.Error("worker error", "component", "worker", "error", err)
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	//
	// Run() has returned — the consume loop is done.
	// cron.Stop() blocks until a running reindex (if any) finishes.

	<-cronScheduler.Stop().Done()
	consumer.Close()
	db.Conn.Close()

	slog.Info("worker stopped", "component", "worker")
}
