package search

import (
	"fmt"
	"sort"
	"time"

	"quickcart-search/internal/ranking"
)

// SortKey selects the primary ordering of search results.
type SortKey string

const (
	SortRelevance   SortKey = "relevance"
	SortPriceAsc    SortKey = "price_asc"
	SortPriceDesc   SortKey = "price_desc"
	SortRating      SortKey = "rating"
	SortPopularity  SortKey = "popularity"
	SortNewest      SortKey = "newest"
	SortBestSelling SortKey = "best_selling"
	SortNameAsc     SortKey = "name_asc"
	SortNameDesc    SortKey = "name_desc"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// sortFields maps each sort key to its primary index field. Relevance is
// the special _score pseudo-field.
var sortFields = map[SortKey]struct {
	field string
	order string
}{
	SortRelevance:   {"_score", "desc"},
	SortPriceAsc:    {"pricing.min_price", "asc"},
	SortPriceDesc:   {"pricing.min_price", "desc"},
	SortRating:      {"popularity.avg_rating", "desc"},
	SortPopularity:  {"popularity.score", "desc"},
	SortNewest:      {"created_at", "desc"},
	SortBestSelling: {"popularity.order_count", "desc"},
	SortNameAsc:     {"name.keyword", "asc"},
	SortNameDesc:    {"name.keyword", "desc"},
}

// SearchQuery is the request value object. It is immutable per request and
// never persisted.
type SearchQuery struct {
	Term       string              `json:"q,omitempty"`
	CategoryID string              `json:"category,omitempty"`
	BrandIDs   []string            `json:"brands,omitempty"`
	SellerID   string              `json:"seller,omitempty"`
	PriceMin   *float64            `json:"price_min,omitempty"`
	PriceMax   *float64            `json:"price_max,omitempty"`
	RatingMin  *float64            `json:"rating_min,omitempty"`
	InStock    *bool               `json:"in_stock,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
	Locale     string              `json:"locale,omitempty"`
	Sort       SortKey             `json:"sort,omitempty"`
	Page       int                 `json:"page,omitempty"`
	PageSize   int                 `json:"page_size,omitempty"`
}

// Normalize clamps pagination and replaces an unknown sort key with
// relevance. Bad input degrades to defaults instead of being rejected.
func (q SearchQuery) Normalize() SearchQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if _, ok := sortFields[q.Sort]; !ok {
		q.Sort = SortRelevance
	}
	return q
}

// priceRanges are the five fixed facet buckets for pricing.min_price.
// Keys double as bucket identifiers in the formatted response.
var priceRanges = []map[string]any{
	{"key": "0-500", "to": 500.0},
	{"key": "500-1000", "from": 500.0, "to": 1000.0},
	{"key": "1000-5000", "from": 1000.0, "to": 5000.0},
	{"key": "5000-10000", "from": 5000.0, "to": 10000.0},
	{"key": "10000+", "from": 10000.0},
}

// ratingRanges are the four fixed floor buckets for popularity.avg_rating.
var ratingRanges = []map[string]any{
	{"key": "4+", "from": 4.0},
	{"key": "3+", "from": 3.0},
	{"key": "2+", "from": 2.0},
	{"key": "1+", "from": 1.0},
}

// BuildQuery translates a SearchQuery and an effective ranking config into
// the Elasticsearch request body. Pure function: no I/O, no hidden clock —
// now is only used as the origin of the recency decay so tests can pin it.
// For a fixed input the output marshals to byte-identical JSON
// (encoding/json sorts map keys).
func BuildQuery(q SearchQuery, cfg ranking.Config, now time.Time) map[string]any {
	q = q.Normalize()

	body := map[string]any{
		"from":             (q.Page - 1) * q.PageSize,
		"size":             q.PageSize,
		"track_total_hits": true,
		"query": map[string]any{
			"function_score": map[string]any{
				"query":      boolQuery(q, cfg),
				"functions":  scoreFunctions(cfg, now),
				"score_mode": "multiply",
				"boost_mode": "multiply",
			},
		},
		"sort": sortClauses(q.Sort),
		"aggs": aggregations(q, cfg),
	}

	if q.Term != "" {
		body["highlight"] = map[string]any{
			"fields": map[string]any{
				"name":        map[string]any{},
				"description": map[string]any{"fragment_size": 120, "number_of_fragments": 1},
			},
		}
		body["suggest"] = map[string]any{
			"name_suggest": map[string]any{
				"text": q.Term,
				"term": map[string]any{"field": "name", "suggest_mode": "missing"},
			},
		}
	}

	return body
}

func boolQuery(q SearchQuery, cfg ranking.Config) map[string]any {
	b := map[string]any{}

	if q.Term == "" {
		// No term: match everything, filtered only.
		b["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	} else {
		b["must"] = []any{map[string]any{
			"multi_match": map[string]any{
				"query": q.Term,
				"type":  "best_fields",
				"fields": []string{
					fmt.Sprintf("name^%g", cfg.Boosts.Name),
					fmt.Sprintf("brand.name^%g", cfg.Boosts.Brand),
					fmt.Sprintf("category.name^%g", cfg.Boosts.Category),
					fmt.Sprintf("description^%g", cfg.Boosts.Description),
					"search_text",
					"tags",
				},
				"fuzziness":            cfg.Text.Fuzziness,
				"minimum_should_match": cfg.Text.MinimumShouldMatch,
			},
		}}
		// Boost ladder for precision matches: exact > phrase > prefix.
		b["should"] = []any{
			map[string]any{"term": map[string]any{
				"name.keyword": map[string]any{"value": q.Term, "boost": cfg.Boosts.ExactMatch},
			}},
			map[string]any{"match_phrase": map[string]any{
				"name": map[string]any{"query": q.Term, "boost": cfg.Boosts.PhraseMatch},
			}},
			map[string]any{"match_phrase_prefix": map[string]any{
				"name": map[string]any{"query": q.Term, "boost": cfg.Boosts.PrefixMatch},
			}},
		}
	}

	b["filter"] = filterClauses(q)
	return b
}

// filterClauses builds the AND-combined filter list in a fixed order so the
// request body is reproducible. Only active documents are ever searchable.
func filterClauses(q SearchQuery) []any {
	filters := []any{
		map[string]any{"term": map[string]any{"status": "active"}},
	}

	if q.CategoryID != "" {
		// path_ids holds the full ancestor chain, so filtering by a parent
		// category includes every descendant.
		filters = append(filters, map[string]any{
			"term": map[string]any{"category.path_ids": q.CategoryID},
		})
	}
	if len(q.BrandIDs) == 1 {
		filters = append(filters, map[string]any{
			"term": map[string]any{"brand.id": q.BrandIDs[0]},
		})
	} else if len(q.BrandIDs) > 1 {
		filters = append(filters, map[string]any{
			"terms": map[string]any{"brand.id": q.BrandIDs},
		})
	}
	if q.SellerID != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"seller.id": q.SellerID},
		})
	}
	if q.PriceMin != nil || q.PriceMax != nil {
		bounds := map[string]any{}
		if q.PriceMin != nil {
			bounds["gte"] = *q.PriceMin
		}
		if q.PriceMax != nil {
			bounds["lte"] = *q.PriceMax
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"pricing.min_price": bounds},
		})
	}
	if q.RatingMin != nil {
		filters = append(filters, map[string]any{
			"range": map[string]any{"popularity.avg_rating": map[string]any{"gte": *q.RatingMin}},
		})
	}
	if q.InStock != nil {
		filters = append(filters, map[string]any{
			"term": map[string]any{"inventory.in_stock": *q.InStock},
		})
	}
	for _, slug := range sortedKeys(q.Attributes) {
		values := q.Attributes[slug]
		field := "attributes." + slug
		if len(values) == 1 {
			filters = append(filters, map[string]any{
				"term": map[string]any{field: values[0]},
			})
		} else if len(values) > 1 {
			filters = append(filters, map[string]any{
				"terms": map[string]any{field: values},
			})
		}
	}
	if q.Locale != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"locale": q.Locale},
		})
	}

	return filters
}

// sortClauses maps the sort key to its primary clause and appends the
// popularity / recency / id tie-breaks, skipping any that would duplicate
// the primary field. Equal primary values therefore always order the same
// way regardless of shard iteration order.
func sortClauses(key SortKey) []any {
	primary := sortFields[key]

	clauses := []any{
		map[string]any{primary.field: map[string]any{"order": primary.order}},
	}
	for _, tie := range []struct {
		field string
		order string
	}{
		{"popularity.score", "desc"},
		{"created_at", "desc"},
		{"id", "asc"},
	} {
		if tie.field == primary.field {
			continue
		}
		clauses = append(clauses, map[string]any{tie.field: map[string]any{"order": tie.order}})
	}
	return clauses
}

func aggregations(q SearchQuery, cfg ranking.Config) map[string]any {
	aggs := map[string]any{
		"categories": map[string]any{
			"terms": map[string]any{"field": "category.id", "size": cfg.Facets.MaxValues},
			"aggs": map[string]any{
				"name": map[string]any{
					"terms": map[string]any{"field": "category.name.keyword", "size": 1},
				},
			},
		},
		"brands": map[string]any{
			"terms": map[string]any{"field": "brand.id", "size": cfg.Facets.MaxValues},
			"aggs": map[string]any{
				"name": map[string]any{
					"terms": map[string]any{"field": "brand.name.keyword", "size": 1},
				},
			},
		},
		"price_ranges": map[string]any{
			"range": map[string]any{"field": "pricing.min_price", "ranges": priceRanges},
		},
		"ratings": map[string]any{
			"range": map[string]any{"field": "popularity.avg_rating", "ranges": ratingRanges},
		},
		"availability": map[string]any{
			"terms": map[string]any{"field": "inventory.in_stock"},
		},
	}

	// Attribute facets are unbounded across the whole catalog, so they are
	// only added once a category filter narrows the result set.
	if q.CategoryID != "" {
		slugs := map[string]bool{}
		for _, s := range cfg.Facets.Attributes {
			slugs[s] = true
		}
		for s := range q.Attributes {
			slugs[s] = true
		}
		for _, slug := range sortedKeys(slugs) {
			aggs["attr_"+slug] = map[string]any{
				"terms": map[string]any{"field": "attributes." + slug, "size": cfg.Facets.MaxValues},
			}
		}
	}

	return aggs
}

// scoreFunctions builds the multiplicative boost chain. Every factor
// multiplies the base relevance; none can zero out an otherwise-relevant
// result on its own.
func scoreFunctions(cfg ranking.Config, now time.Time) []any {
	return []any{
		map[string]any{
			"filter": map[string]any{"term": map[string]any{"featured": true}},
			"weight": cfg.Boosts.Featured,
		},
		map[string]any{
			"filter": map[string]any{"term": map[string]any{"promoted": true}},
			"weight": cfg.Boosts.Promoted,
		},
		map[string]any{
			"filter": map[string]any{"term": map[string]any{"seller.verified": true}},
			"weight": cfg.Boosts.VerifiedSeller,
		},
		map[string]any{
			"filter": map[string]any{"range": map[string]any{"popularity.avg_rating": map[string]any{"gte": 4.0}}},
			"weight": cfg.Boosts.HighRating,
		},
		map[string]any{
			"exp": map[string]any{
				"created_at": map[string]any{
					"origin": now.UTC().Format(time.RFC3339),
					"scale":  cfg.Text.RecencyScale,
					"decay":  cfg.Text.RecencyDecay,
				},
			},
		},
		map[string]any{
			"field_value_factor": map[string]any{
				"field":    "popularity.score",
				"modifier": "log1p",
				"factor":   1.0,
				"missing":  0.0,
			},
		},
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
