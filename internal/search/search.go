package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quickcart-search/internal/metrics"
	"quickcart-search/internal/ranking"

	"github.com/prometheus/client_golang/prometheus"
)

// ResultCache memoizes formatted results for a few minutes. Failures are
// never user-visible: a broken cache just means every query hits the
// backend.
type ResultCache interface {
	GetResult(ctx context.Context, key string) (*SearchResult, error)
	SetResult(ctx context.Context, key string, res *SearchResult) error
}

// RankingSource resolves the effective ranking configuration for a session,
// merging any active experiment variants over the defaults.
type RankingSource interface {
	ConfigFor(ctx context.Context, sessionKey string) ranking.Config
}

// Service is the request-facing search surface: experiment-aware query
// construction, execution, formatting and caching.
type Service struct {
	client   *Client
	cache    ResultCache   // nil disables memoization
	rankings RankingSource // nil means control configuration for everyone
	now      func() time.Time
}

// NewService wires the search service. cache and rankings may be nil.
func NewService(client *Client, cache ResultCache, rankings RankingSource) *Service {
	return &Service{
		client:   client,
		cache:    cache,
		rankings: rankings,
		now:      client.now,
	}
}

// Search runs one query end to end. A degraded backend yields an empty
// result with total 0 rather than an error, so catalog pages stay usable
// when search is down.
func (s *Service) Search(ctx context.Context, q SearchQuery, sessionKey string) (*SearchResult, error) {
	q = q.Normalize()

	timer := prometheus.NewTimer(metrics.SearchDuration.WithLabelValues("search"))
	defer timer.ObserveDuration()

	if !s.client.Available() {
		metrics.DegradedSkips.WithLabelValues("search").Inc()
		return EmptyResult(q), nil
	}

	cfg := ranking.Default()
	if s.rankings != nil {
		cfg = s.rankings.ConfigFor(ctx, sessionKey)
	}

	key := cacheKey(q, cfg)
	if s.cache != nil {
		if res, err := s.cache.GetResult(ctx, key); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return res, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	raw, err := s.client.Execute(ctx, BuildQuery(q, cfg, s.now()))
	if errors.Is(err, ErrUnavailable) {
		slog.Warn("search degraded, returning empty result",
			"component", "search",
			"term", q.Term,
			"error", err,
		)
		metrics.DegradedSkips.WithLabelValues("search").Inc()
		return EmptyResult(q), nil
	}
	if err != nil {
		return nil, err
	}

	res, err := FormatResponse(raw, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetResult(ctx, key, res); err != nil {
			slog.Warn("result cache write failed", "component", "search", "error", err)
		}
	}
	return res, nil
}

// cacheKey hashes the normalized query together with the effective ranking
// config, so two sessions in different experiment variants never share a
// cached result.
func cacheKey(q SearchQuery, cfg ranking.Config) string {
	payload, err := json.Marshal(struct {
		Query   SearchQuery    `json:"q"`
		Ranking ranking.Config `json:"r"`
	}{q, cfg})
	if err != nil {
		// Both types marshal cleanly; reaching this means a programming error.
		return fmt.Sprintf("q:%v", q)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}
