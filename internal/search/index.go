// Package search is the product search pipeline: it projects catalog rows
// into denormalized documents, keeps the Elasticsearch index in sync, and
// translates structured search requests into boolean queries with boosting
// and faceted aggregations.
//
// Postgres remains the source of truth; the index is a read-optimised
// projection. Every write re-derives the full document — there is no
// partial-update path, so replaying any event is idempotent (last write
// wins).
//
// When the cluster is unreachable the pipeline degrades instead of failing:
// searches return empty results, index calls become no-ops, and a cooldown
// probe decides when to try again. Core catalog functionality must keep
// working while search is down.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"quickcart-search/internal/database"
	"quickcart-search/internal/metrics"
	"quickcart-search/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultIndexName   = "quickcart_products"
	defaultBatchSize   = 500
	healthCooldown     = 30 * time.Second
	healthCheckTimeout = 2 * time.Second

	// Concurrent projections per reindex page. Pages themselves run
	// sequentially to bound backend load.
	projectionWorkers = 8
)

// ErrUnavailable is returned by operator-facing paths when the backend is
// degraded. Request-facing paths never surface it; they short-circuit to
// empty results instead.
var ErrUnavailable = errors.New("search: backend unavailable")

// Source is the slice of the relational repository the index manager needs.
type Source interface {
	GetProductAggregate(ctx context.Context, id string) (*models.ProductAggregate, error)
	ListProductIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	ProductIDsByCategory(ctx context.Context, categoryID string) ([]string, error)
	ProductIDsByBrand(ctx context.Context, brandID string) ([]string, error)
	ProductIDsBySeller(ctx context.Context, sellerID string) ([]string, error)
	CountActiveProducts(ctx context.Context) (int, error)
}

// Client wraps the Elasticsearch client with domain-level index and query
// operations plus the degraded-mode health state.
type Client struct {
	es     *elasticsearch.Client
	src    Source
	health *HealthState

	index     string
	batchSize int
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithIndexName(name string) Option {
	return func(c *Client) { c.index = name }
}

func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithClock injects the time source used for IndexedAt stamps and the
// health cooldown. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds the search client and probes connectivity once. An
// unreachable cluster does not fail construction: the client starts in
// degraded mode and recovers on a later successful call, so the host
// process keeps serving its non-search endpoints.
func NewClient(cfg elasticsearch.Config, src Source, opts ...Option) (*Client, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("search: create client: %w", err)
	}

	c := &Client{
		es:        es,
		src:       src,
		index:     defaultIndexName,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.health = NewHealthState(healthCooldown, c.now)

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		slog.Warn("elasticsearch unreachable, starting degraded",
			"component", "search",
			"error", err,
		)
	}
	return c, nil
}

// Ping checks cluster reachability with its own short timeout so a
// degraded backend cannot stall liveness reporting. It updates the health
// state either way.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		c.health.MarkDown()
		return fmt.Errorf("search: ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		c.health.MarkDown()
		return fmt.Errorf("search: ping status %s", res.Status())
	}
	c.health.MarkUp()
	return nil
}

// Available reports whether calls should be attempted right now.
func (c *Client) Available() bool { return c.health.Available() }

// Healthy reports the advisory health flag for readiness endpoints.
func (c *Client) Healthy() bool { return c.health.Healthy() }

// EnsureIndex creates the product index with its mapping and analyzers if
// it does not exist yet. Idempotent; it never alters an existing index's
// mapping. Connectivity failures degrade instead of erroring so startup
// cannot crash on a red cluster.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		c.health.MarkDown()
		slog.Warn("index existence check failed, degrading",
			"component", "search",
			"index", c.index,
			"error", err,
		)
		return nil
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("search: index exists check status %s", res.Status())
	}

	createRes, err := c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping()))),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		c.health.MarkDown()
		slog.Warn("index create failed, degrading",
			"component", "search",
			"index", c.index,
			"error", err,
		)
		return nil
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		body, _ := io.ReadAll(createRes.Body)
		return fmt.Errorf("search: create index [%s]: %s", createRes.Status(), body)
	}

	slog.Info("search index created", "component", "search", "index", c.index)
	return nil
}

// IndexProduct re-derives and upserts the document for one product. A
// missing or inactive product removes the document instead. While the
// backend is degraded the call is a silent no-op — indexing is replayed by
// the next full reindex pass.
func (c *Client) IndexProduct(ctx context.Context, id string) error {
	if !c.Available() {
		metrics.DegradedSkips.WithLabelValues("index").Inc()
		return nil
	}

	timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("index"))
	defer timer.ObserveDuration()

	agg, err := c.src.GetProductAggregate(ctx, id)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("search: load product %s: %w", id, err)
	}

	doc := Project(agg, c.now())
	if doc == nil {
		return c.RemoveProduct(ctx, id)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("search: marshal document %s: %w", id, err)
	}

	// The product id doubles as the document id, so replays upsert
	// rather than duplicate.
	res, err := c.es.Index(c.index,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(doc.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		c.health.MarkDown()
		slog.Warn("index write failed, degrading",
			"component", "search",
			"product_id", id,
			"error", err,
		)
		return nil
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: index %s [%s]: %s", id, res.Status(), body)
	}

	c.health.MarkUp()
	metrics.DocumentsIndexed.Inc()
	return nil
}

// RemoveProduct deletes a document. A 404 is success: the document was
// already gone.
func (c *Client) RemoveProduct(ctx context.Context, id string) error {
	if !c.Available() {
		metrics.DegradedSkips.WithLabelValues("delete").Inc()
		return nil
	}

	res, err := c.es.Delete(c.index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		c.health.MarkDown()
		slog.Warn("index delete failed, degrading",
			"component", "search",
			"product_id", id,
			"error", err,
		)
		return nil
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: delete %s [%s]: %s", id, res.Status(), body)
	}
	return nil
}

// BulkIndex writes a batch of documents in one _bulk request. Individual
// document failures inside the response are logged and counted but not
// retried; the batch is treated as mostly-succeeded. A transport failure
// fails the whole call — the operator-facing reindex paths want that.
func (c *Client) BulkIndex(ctx context.Context, docs []*SearchDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if !c.Available() {
		metrics.DegradedSkips.WithLabelValues("bulk").Inc()
		return ErrUnavailable
	}

	timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("bulk"))
	defer timer.ObserveDuration()

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := map[string]any{"index": map[string]any{"_index": c.index, "_id": doc.ID}}
		if err := json.NewEncoder(&buf).Encode(meta); err != nil {
			return err
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return err
		}
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithIndex(c.index),
		c.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		c.health.MarkDown()
		return fmt.Errorf("search: bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: bulk [%s]: %s", res.Status(), body)
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("search: decode bulk response: %w", err)
	}

	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			for _, op := range item {
				if op.Status >= 300 {
					metrics.BulkItemFailures.Inc()
					slog.Error("bulk item failed",
						"component", "search",
						"document_id", op.ID,
						"status", op.Status,
						"error", string(op.Error),
					)
				}
			}
		}
	}

	c.health.MarkUp()
	metrics.DocumentsIndexed.Add(float64(len(docs)))
	return nil
}

// ReindexOptions control a reindex pass.
type ReindexOptions struct {
	// BatchSize overrides the default page size when > 0.
	BatchSize int
	// DryRun computes the count of documents a pass would write, without
	// writing anything.
	DryRun bool
}

// ReindexAll walks the whole catalog in fixed-size id pages and bulk-writes
// each page. Pages run sequentially; projection within a page runs
// concurrently since documents are independent. There is no checkpointing —
// a crash mid-run restarts from the first page.
//
// This is the one operator-triggered path where errors propagate hard.
func (c *Client) ReindexAll(ctx context.Context, opts ReindexOptions) (int, error) {
	if opts.DryRun {
		return c.src.CountActiveProducts(ctx)
	}
	if !c.Available() {
		return 0, ErrUnavailable
	}

	timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("reindex"))
	defer timer.ObserveDuration()

	batch := c.batchSize
	if opts.BatchSize > 0 {
		batch = opts.BatchSize
	}

	total := 0
	afterID := ""
	for {
		ids, err := c.src.ListProductIDs(ctx, afterID, batch)
		if err != nil {
			return total, fmt.Errorf("search: list product page after %q: %w", afterID, err)
		}
		if len(ids) == 0 {
			break
		}

		docs, err := c.projectIDs(ctx, ids)
		if err != nil {
			return total, err
		}
		if err := c.BulkIndex(ctx, docs); err != nil {
			return total, err
		}

		total += len(docs)
		afterID = ids[len(ids)-1]
		slog.Info("reindex page done",
			"component", "search",
			"after_id", afterID,
			"indexed", total,
		)
	}
	return total, nil
}

// ReindexCategory re-derives every product in the category subtree, using
// the bulk path rather than one index call per product.
func (c *Client) ReindexCategory(ctx context.Context, categoryID string) (int, error) {
	ids, err := c.src.ProductIDsByCategory(ctx, categoryID)
	if err != nil {
		return 0, fmt.Errorf("search: products for category %s: %w", categoryID, err)
	}
	return c.reindexIDs(ctx, ids)
}

// ReindexBrand re-derives every product of one brand.
func (c *Client) ReindexBrand(ctx context.Context, brandID string) (int, error) {
	ids, err := c.src.ProductIDsByBrand(ctx, brandID)
	if err != nil {
		return 0, fmt.Errorf("search: products for brand %s: %w", brandID, err)
	}
	return c.reindexIDs(ctx, ids)
}

// ReindexSeller re-derives every product of one seller.
func (c *Client) ReindexSeller(ctx context.Context, sellerID string) (int, error) {
	ids, err := c.src.ProductIDsBySeller(ctx, sellerID)
	if err != nil {
		return 0, fmt.Errorf("search: products for seller %s: %w", sellerID, err)
	}
	return c.reindexIDs(ctx, ids)
}

func (c *Client) reindexIDs(ctx context.Context, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += c.batchSize {
		end := min(start+c.batchSize, len(ids))
		docs, err := c.projectIDs(ctx, ids[start:end])
		if err != nil {
			return total, err
		}
		if err := c.BulkIndex(ctx, docs); err != nil {
			return total, err
		}
		total += len(docs)
	}
	return total, nil
}

// projectIDs loads and projects a page of products concurrently, preserving
// id order in the output. Inactive or vanished products project to nil and
// are skipped; their removal is driven by deletion events, not reindex.
func (c *Client) projectIDs(ctx context.Context, ids []string) ([]*SearchDocument, error) {
	slots := make([]*SearchDocument, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(projectionWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			agg, err := c.src.GetProductAggregate(gctx, id)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return fmt.Errorf("search: load product %s: %w", id, err)
			}
			slots[i] = Project(agg, c.now())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]*SearchDocument, 0, len(slots))
	for _, doc := range slots {
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Execute runs a built query body against the index and returns the raw
// response for the formatter. Connectivity failures flip the health state
// and surface as ErrUnavailable.
func (c *Client) Execute(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		c.health.MarkDown()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		if res.StatusCode >= 500 {
			c.health.MarkDown()
			return nil, fmt.Errorf("%w: status %s", ErrUnavailable, res.Status())
		}
		return nil, fmt.Errorf("search: query [%s]: %s", res.Status(), raw)
	}

	c.health.MarkUp()
	return io.ReadAll(res.Body)
}

// isNotFound matches the repository's not-found sentinel. Not-found is a
// deletion signal, never an infrastructure failure.
func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
