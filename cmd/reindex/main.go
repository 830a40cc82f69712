// Command reindex is the operator CLI for rebuilding the search index.
//
// Usage:
//
//	reindex -all                      full pass over the catalog
//	reindex -all -dry-run             count documents without writing
//	reindex -product <id>             one product
//	reindex -category <id>            every product in a category subtree
//	reindex -brand <id>               every product of a brand
//	reindex -seller <id>              every product of a seller
//	reindex -all -batch-size 1000     override the page size
//
// An operator explicitly triggered this and is waiting on the outcome, so
// failures exit non-zero instead of degrading silently.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"quickcart-search/internal/config"
	"quickcart-search/internal/database"
	"quickcart-search/internal/events"
	"quickcart-search/internal/search"

	"github.com/elastic/go-elasticsearch/v8"
	_ "github.com/lib/pq"
)

func main() {
	var (
		all        = flag.Bool("all", false, "reindex the whole catalog")
		productID  = flag.String("product", "", "reindex one product id")
		categoryID = flag.String("category", "", "reindex a category subtree")
		brandID    = flag.String("brand", "", "reindex one brand")
		sellerID   = flag.String("seller", "", "reindex one seller")
		batchSize  = flag.Int("batch-size", 0, "bulk page size (default from REINDEX_BATCH_SIZE)")
		dryRun     = flag.Bool("dry-run", false, "count documents without writing")
		timeout    = flag.Duration("timeout", 30*time.Minute, "overall run timeout")
	)
	flag.Parse()

	scopes := 0
	for _, set := range []bool{*all, *productID != "", *categoryID != "", *brandID != "", *sellerID != ""} {
		if set {
			scopes++
		}
	}
	if scopes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -all, -product, -category, -brand or -seller is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.PostgresDSN)
	if err != nil {
		slog.Error("postgres connect failed", "component", "reindex", "error", err)
		os.Exit(1)
	}
	defer db.Conn.Close()

	searchClient, err := search.NewClient(
		elasticsearch.Config{Addresses: []string{cfg.ElasticsearchURL}},
		db,
		search.WithIndexName(cfg.SearchIndex),
		search.WithBatchSize(cfg.ReindexBatchSize),
	)
	if err != nil {
		slog.Error("elasticsearch init failed", "component", "reindex", "error", err)
		os.Exit(1)
	}
	if !*dryRun {
		if err := searchClient.EnsureIndex(context.Background()); err != nil {
			slog.Error("ensure index failed", "component", "reindex", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var count int
	switch {
	case *all:
		count, err = searchClient.ReindexAll(ctx, search.ReindexOptions{
			BatchSize: *batchSize,
			DryRun:    *dryRun,
		})
	case *productID != "":
		err = searchClient.IndexProduct(ctx, *productID)
		count = 1
	case *categoryID != "":
		count, err = searchClient.ReindexCategory(ctx, *categoryID)
	case *brandID != "":
		count, err = searchClient.ReindexBrand(ctx, *brandID)
	case *sellerID != "":
		count, err = searchClient.ReindexSeller(ctx, *sellerID)
	}
	if err != nil {
		slog.Error("reindex failed", "component", "reindex", "error", err)
		os.Exit(1)
	}

	slog.Info("reindex done",
		"component", "reindex",
		"documents", count,
		"dry_run", *dryRun,
		"took", time.Since(start).Round(time.Millisecond),
	)

	if *dryRun {
		return
	}

	// Best-effort completion event; downstream consumers may care, the
	// operator's run already succeeded either way.
	publisher, err := events.NewPublisher(cfg.RabbitMQURL)
	if err != nil {
		slog.Warn("rabbitmq connect failed, skipping completion event", "component", "reindex", "error", err)
		return
	}
	defer publisher.Close()

	if err := publisher.Publish(ctx, events.NewEvent(events.TypeReindexCompleted, "")); err != nil {
		slog.Warn("completion event publish failed", "component", "reindex", "error", err)
	}
}
