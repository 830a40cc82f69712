// Package worker consumes catalog events and keeps the search index in
// sync. Each event type maps to exactly one narrow handler: reindex one
// product, remove one product, or fan out over a category/brand. Handlers
// are independent and never assume ordering relative to each other.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quickcart-search/internal/events"
	"quickcart-search/internal/metrics"
)

// perEventTimeout caps one handler run. Category fan-outs project and bulk
// write many documents, so this is generous compared to a single upsert.
const perEventTimeout = 2 * time.Minute

// Indexer is the slice of the search client the worker drives.
type Indexer interface {
	IndexProduct(ctx context.Context, id string) error
	RemoveProduct(ctx context.Context, id string) error
	ReindexCategory(ctx context.Context, categoryID string) (int, error)
	ReindexBrand(ctx context.Context, brandID string) (int, error)
}

// Worker consumes catalog events from RabbitMQ and reindexes documents.
type Worker struct {
	indexer  Indexer
	consumer *events.Consumer
}

// New constructs a Worker. All dependencies are injected — no globals.
func New(indexer Indexer, consumer *events.Consumer) *Worker {
	return &Worker{indexer: indexer, consumer: consumer}
}

// Run starts consuming events and blocks until ctx is cancelled.
// On cancellation it drains any in-flight message before returning,
// so the caller's deferred Close() calls happen after the loop is clean.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Consume()
	if err != nil {
		return err
	}

	slog.Info("indexer worker started", "component", "worker")

	for {
		select {
		case <-ctx.Done():
			slog.Info("indexer worker shutting down", "component", "worker")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				slog.Warn("delivery channel closed", "component", "worker")
				return nil
			}
			w.process(delivery)
		}
	}
}

// process runs the handler for one delivery. Handler failures are logged
// and the message acked anyway: indexing is idempotent and a poison event
// must not wedge the queue or block unrelated events behind it. Unknown
// event types are discarded.
func (w *Worker) process(d events.Delivery) {
	evt := d.Event

	ctx, cancel := context.WithTimeout(context.Background(), perEventTimeout)
	defer cancel()

	err := w.handle(ctx, evt)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues(evt.Type, "error").Inc()
		slog.Error("event handler failed",
			"component", "worker",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"entity_id", evt.EntityID,
			"error", err,
		)
	} else {
		metrics.EventsProcessed.WithLabelValues(evt.Type, "ok").Inc()
	}

	if ackErr := d.Ack(); ackErr != nil {
		slog.Error("ack failed",
			"component", "worker",
			"event_id", evt.ID,
			"error", ackErr,
		)
	}
}

// handle maps one event type to its reindex action.
func (w *Worker) handle(ctx context.Context, evt events.Event) error {
	switch evt.Type {
	case events.TypeProductCreated,
		events.TypeProductUpdated,
		events.TypeVariantUpdated,
		events.TypePriceUpdated,
		events.TypeInventoryUpdated:
		return w.indexer.IndexProduct(ctx, evt.EntityID)

	case events.TypeProductDeleted:
		return w.indexer.RemoveProduct(ctx, evt.EntityID)

	case events.TypeCategoryUpdated:
		n, err := w.indexer.ReindexCategory(ctx, evt.EntityID)
		if err == nil {
			slog.Info("category fan-out reindexed",
				"component", "worker",
				"category_id", evt.EntityID,
				"documents", n,
			)
		}
		return err

	case events.TypeBrandUpdated:
		n, err := w.indexer.ReindexBrand(ctx, evt.EntityID)
		if err == nil {
			slog.Info("brand fan-out reindexed",
				"component", "worker",
				"brand_id", evt.EntityID,
				"documents", n,
			)
		}
		return err

	default:
		return fmt.Errorf("worker: unknown event type %q", evt.Type)
	}
}
