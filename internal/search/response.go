package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// SearchResult is the normalized search response returned to callers.
type SearchResult struct {
	Hits        []Hit    `json:"hits"`
	Total       int64    `json:"total"`
	Page        int      `json:"page"`
	PageSize    int      `json:"page_size"`
	TookMs      int64    `json:"took_ms"`
	Facets      Facets   `json:"facets"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Hit is one matched document with its backend-assigned relevance score.
type Hit struct {
	Document   SearchDocument      `json:"document"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// Facets groups the bucketed counts per dimension.
type Facets struct {
	Categories   []FacetBucket            `json:"categories,omitempty"`
	Brands       []FacetBucket            `json:"brands,omitempty"`
	PriceRanges  []FacetBucket            `json:"price_ranges,omitempty"`
	Ratings      []FacetBucket            `json:"ratings,omitempty"`
	Availability []FacetBucket            `json:"availability,omitempty"`
	Attributes   map[string][]FacetBucket `json:"attributes,omitempty"`
}

// FacetBucket is one filterable count: machine key, display label, count.
type FacetBucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// EmptyResult is what a degraded search subsystem returns: no hits,
// total zero, never an error. Catalog pages stay usable while search is down.
func EmptyResult(q SearchQuery) *SearchResult {
	q = q.Normalize()
	return &SearchResult{
		Hits:     []Hit{},
		Total:    0,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

// Fixed label tables for the range facets.
var priceRangeLabels = map[string]string{
	"0-500":      "Under 500",
	"500-1000":   "500 to 1,000",
	"1000-5000":  "1,000 to 5,000",
	"5000-10000": "5,000 to 10,000",
	"10000+":     "Over 10,000",
}

var ratingLabels = map[string]string{
	"4+": "4 stars & above",
	"3+": "3 stars & above",
	"2+": "2 stars & above",
	"1+": "1 star & above",
}

var availabilityLabels = map[string]string{
	"true":  "In stock",
	"false": "Out of stock",
}

// Raw Elasticsearch response shapes. Only the parts the formatter reads.
type esEnvelope struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string              `json:"_id"`
			Score     *float64            `json:"_score"`
			Source    SearchDocument      `json:"_source"`
			Highlight map[string][]string `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]esAgg       `json:"aggregations"`
	Suggest      map[string][]esSuggest `json:"suggest"`
}

type esSuggest struct {
	Options []struct {
		Text string `json:"text"`
	} `json:"options"`
}

type esAgg struct {
	Buckets []esBucket `json:"buckets"`
}

type esBucket struct {
	Key         any    `json:"key"`
	KeyAsString string `json:"key_as_string"`
	DocCount    int64  `json:"doc_count"`
	Name        *esAgg `json:"name"`
}

// bucketKey normalizes the untyped aggregation key. Boolean terms come back
// as 0/1 with a key_as_string; numbers are formatted without a trailing ".0".
func (b esBucket) key() string {
	if b.KeyAsString != "" {
		return b.KeyAsString
	}
	switch k := b.Key.(type) {
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(k)
	default:
		return fmt.Sprintf("%v", k)
	}
}

// label returns the display name for a bucket: the name sub-aggregation if
// one was requested (category/brand), otherwise a table lookup, otherwise
// the key itself.
func (b esBucket) label(table map[string]string) string {
	if b.Name != nil && len(b.Name.Buckets) > 0 {
		return b.Name.Buckets[0].key()
	}
	if table != nil {
		if l, ok := table[b.key()]; ok {
			return l
		}
	}
	return b.key()
}

// FormatResponse maps a raw backend response and the originating query into
// a SearchResult. Pure and deterministic: the same raw body always formats
// to the same result, with facets stably sorted by descending count.
func FormatResponse(raw []byte, q SearchQuery) (*SearchResult, error) {
	q = q.Normalize()

	var env esEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	res := &SearchResult{
		Hits:     make([]Hit, 0, len(env.Hits.Hits)),
		Total:    env.Hits.Total.Value,
		Page:     q.Page,
		PageSize: q.PageSize,
		TookMs:   env.Took,
	}

	for _, h := range env.Hits.Hits {
		hit := Hit{Document: h.Source, Highlights: h.Highlight}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		if hit.Document.ID == "" {
			hit.Document.ID = h.ID
		}
		res.Hits = append(res.Hits, hit)
	}

	res.Facets = formatFacets(env.Aggregations)
	res.Suggestions = formatSuggestions(env.Suggest)
	return res, nil
}

func formatFacets(aggs map[string]esAgg) Facets {
	f := Facets{
		Categories:   formatBuckets(aggs["categories"], nil),
		Brands:       formatBuckets(aggs["brands"], nil),
		PriceRanges:  formatBuckets(aggs["price_ranges"], priceRangeLabels),
		Ratings:      formatBuckets(aggs["ratings"], ratingLabels),
		Availability: formatBuckets(aggs["availability"], availabilityLabels),
	}

	for name, agg := range aggs {
		if len(name) <= len("attr_") || name[:len("attr_")] != "attr_" {
			continue
		}
		if f.Attributes == nil {
			f.Attributes = map[string][]FacetBucket{}
		}
		f.Attributes[name[len("attr_"):]] = formatBuckets(agg, nil)
	}
	return f
}

func formatBuckets(agg esAgg, labels map[string]string) []FacetBucket {
	if len(agg.Buckets) == 0 {
		return nil
	}
	buckets := make([]FacetBucket, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		buckets = append(buckets, FacetBucket{
			Key:   b.key(),
			Label: b.label(labels),
			Count: b.DocCount,
		})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

func formatSuggestions(suggest map[string][]esSuggest) []string {
	if len(suggest) == 0 {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, name := range sortedKeys(suggest) {
		for _, entry := range suggest[name] {
			for _, opt := range entry.Options {
				if opt.Text != "" && !seen[opt.Text] {
					seen[opt.Text] = true
					out = append(out, opt.Text)
				}
			}
		}
	}
	return out
}
