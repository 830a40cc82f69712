// Package cache provides the Redis-backed memoization layer for the search
// pipeline: formatted query results for a few minutes, and experiment
// assignments with a short TTL.
//
// Nothing here is a system of record. Results are re-derived from
// Elasticsearch on a miss, assignments are recomputed from the same stable
// hash — a cold or broken Redis only costs latency.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quickcart-search/internal/search"

	"github.com/redis/go-redis/v9"
)

const (
	resultKeyPrefix     = "search:q:"
	resultTTL           = 3 * time.Minute
	assignmentKeyPrefix = "search:ab:"
	assignmentTTL       = 10 * time.Minute
)

// ErrNotFound is returned when a key does not exist in the cache.
var ErrNotFound = errors.New("cache: key not found")

// Client wraps the Redis client and exposes domain-level operations.
type Client struct {
	rdb *redis.Client
}

// New creates a Redis client and verifies the connection with a PING.
func New(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

// Close shuts down the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetResult fetches a memoized search result by query hash.
// Returns ErrNotFound when the key does not exist or has expired.
func (c *Client) GetResult(ctx context.Context, key string) (*search.SearchResult, error) {
	data, err := c.rdb.Get(ctx, resultKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var res search.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetResult memoizes a formatted search result for a few minutes.
func (c *Client) SetResult(ctx context.Context, key string, res *search.SearchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, resultKeyPrefix+key, data, resultTTL).Err()
}

// GetAssignments fetches a session's experiment-variant map.
func (c *Client) GetAssignments(ctx context.Context, key string) (map[string]string, error) {
	data, err := c.rdb.Get(ctx, assignmentKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var assignments map[string]string
	if err := json.Unmarshal(data, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// SetAssignments stores a session's experiment-variant map with a short TTL.
func (c *Client) SetAssignments(ctx context.Context, key string, assignments map[string]string) error {
	data, err := json.Marshal(assignments)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, assignmentKeyPrefix+key, data, assignmentTTL).Err()
}
