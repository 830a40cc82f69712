package experiment

import (
	"context"
	"hash/fnv"
	"time"

	"quickcart-search/internal/ranking"
)

// AssignmentCache stores a session's variant map with a short TTL. It is
// recomputed on every miss; assignment is deterministic so the cache only
// saves the hashing work.
type AssignmentCache interface {
	GetAssignments(ctx context.Context, key string) (map[string]string, error)
	SetAssignments(ctx context.Context, key string, assignments map[string]string) error
}

// Assigner buckets sessions into experiment variants by stable hashing.
type Assigner struct {
	experiments []Experiment
	cache       AssignmentCache // nil disables caching
	now         func() time.Time
}

// NewAssigner builds an Assigner over validated experiments. cache may be
// nil; now defaults to time.Now and is injectable for tests.
func NewAssigner(experiments []Experiment, cache AssignmentCache, now func() time.Time) *Assigner {
	if now == nil {
		now = time.Now
	}
	return &Assigner{experiments: experiments, cache: cache, now: now}
}

// bucket maps a string onto 0..99 with FNV-1a. The same input always lands
// in the same bucket, and distinct keys spread close to uniformly, which is
// what makes traffic percentages hold in the long run.
func bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % 100)
}

// Assign returns the variant for (key, experiment), or ok=false when the
// session is outside the experiment: not running, beyond the traffic
// allocation, or past the end of the variant splits (rounding remainder
// goes to control). Idempotent while the definition is unchanged.
func (a *Assigner) Assign(key string, exp Experiment) (string, bool) {
	if !exp.RunningAt(a.now()) {
		return "", false
	}

	// First hash decides inclusion against the traffic allocation.
	if bucket(key+exp.ID) >= exp.Allocation {
		return "", false
	}

	// Second, independent hash walks the cumulative variant splits.
	point := bucket(key + exp.ID + ":variant")
	cum := 0
	for _, v := range exp.Variants {
		cum += v.Split
		if point < cum {
			return v.ID, true
		}
	}
	return "", false
}

// Assignments returns the variant per active experiment for one session,
// consulting the cache first.
func (a *Assigner) Assignments(ctx context.Context, key string) map[string]string {
	if a.cache != nil {
		if cached, err := a.cache.GetAssignments(ctx, key); err == nil {
			return cached
		}
	}

	assignments := map[string]string{}
	for _, exp := range a.experiments {
		if variantID, ok := a.Assign(key, exp); ok {
			assignments[exp.ID] = variantID
		}
	}

	if a.cache != nil {
		_ = a.cache.SetAssignments(ctx, key, assignments)
	}
	return assignments
}

// ConfigFor merges the assigned variants' ranking overrides over the
// control configuration. Experiments apply in definition order; a later
// experiment's sections override an earlier one's. Implements the search
// service's RankingSource.
func (a *Assigner) ConfigFor(ctx context.Context, sessionKey string) ranking.Config {
	cfg := ranking.Default()
	if sessionKey == "" {
		return cfg
	}

	assignments := a.Assignments(ctx, sessionKey)
	for _, exp := range a.experiments {
		variantID, ok := assignments[exp.ID]
		if !ok {
			continue
		}
		for _, v := range exp.Variants {
			if v.ID == variantID {
				cfg = v.Ranking.Apply(cfg)
				break
			}
		}
	}
	return cfg
}
