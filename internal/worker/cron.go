package worker

import (
	"context"
	"log/slog"
	"time"

	"quickcart-search/internal/search"

	"github.com/robfig/cron/v3"
)

// reindexTimeout bounds one scheduled full pass over the catalog.
const reindexTimeout = 30 * time.Minute

// FullReindexer is the scheduled-reindex contract.
type FullReindexer interface {
	ReindexAll(ctx context.Context, opts search.ReindexOptions) (int, error)
}

// StartCronJobs registers the periodic full reindex on the given schedule
// and starts the scheduler. Returns an error if the schedule string is
// invalid so main() can fail fast with a clear message instead of a buried
// panic.
//
// The returned *cron.Cron must be stopped on shutdown:
//
//	c, err := StartCronJobs(indexer, cfg.ReindexSchedule)
//	defer c.Stop()  // waits for any running job to finish before returning
func StartCronJobs(indexer FullReindexer, schedule string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		slog.Info("scheduled full reindex started", "component", "cron")

		ctx, cancel := context.WithTimeout(context.Background(), reindexTimeout)
		defer cancel()

		n, err := indexer.ReindexAll(ctx, search.ReindexOptions{})
		if err != nil {
			slog.Error("scheduled full reindex failed", "component", "cron", "error", err)
		} else {
			slog.Info("scheduled full reindex done", "component", "cron", "documents", n)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	slog.Info("cron scheduler started", "component", "cron", "schedule", schedule)
	return c, nil
}
