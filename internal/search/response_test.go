package search

import (
	"reflect"
	"testing"
)

const cannedResponse = `{
  "took": 7,
  "hits": {
    "total": {"value": 42},
    "hits": [
      {
        "_id": "p1",
        "_score": 9.5,
        "_source": {"id": "p1", "name": "Red Phone Case", "status": "active"},
        "highlight": {"name": ["<em>Red</em> Phone Case"]}
      },
      {
        "_id": "p2",
        "_score": 4.2,
        "_source": {"name": "Blue Phone Case", "status": "active"}
      }
    ]
  },
  "aggregations": {
    "categories": {
      "buckets": [
        {"key": "cat_phones", "doc_count": 30, "name": {"buckets": [{"key": "Phones", "doc_count": 30}]}},
        {"key": "cat_audio", "doc_count": 12, "name": {"buckets": [{"key": "Audio", "doc_count": 12}]}}
      ]
    },
    "price_ranges": {
      "buckets": [
        {"key": "0-500", "doc_count": 5},
        {"key": "500-1000", "doc_count": 20},
        {"key": "10000+", "doc_count": 5}
      ]
    },
    "ratings": {
      "buckets": [{"key": "4+", "doc_count": 11}]
    },
    "availability": {
      "buckets": [
        {"key": 1, "key_as_string": "true", "doc_count": 40},
        {"key": 0, "key_as_string": "false", "doc_count": 2}
      ]
    },
    "attr_color": {
      "buckets": [
        {"key": "red", "doc_count": 8},
        {"key": "blue", "doc_count": 8}
      ]
    }
  },
  "suggest": {
    "name_suggest": [
      {"options": [{"text": "phone case"}, {"text": "phone cover"}]}
    ],
    "term_suggest": [
      {"options": [{"text": "phone case"}]}
    ]
  }
}`

func TestFormatResponseHits(t *testing.T) {
	res, err := FormatResponse([]byte(cannedResponse), SearchQuery{Page: 2, PageSize: 20})
	if err != nil {
		t.Fatal(err)
	}

	if res.Total != 42 || res.TookMs != 7 || res.Page != 2 || res.PageSize != 20 {
		t.Errorf("envelope = total %d took %d page %d size %d", res.Total, res.TookMs, res.Page, res.PageSize)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(res.Hits))
	}
	first := res.Hits[0]
	if first.Document.Name != "Red Phone Case" || first.Score != 9.5 {
		t.Errorf("first hit = %q score %v", first.Document.Name, first.Score)
	}
	if got := first.Highlights["name"]; len(got) != 1 || got[0] != "<em>Red</em> Phone Case" {
		t.Errorf("highlights = %v", got)
	}
	// _source without an id falls back to the hit's _id.
	if res.Hits[1].Document.ID != "p2" {
		t.Errorf("second hit id = %q, want p2", res.Hits[1].Document.ID)
	}
}

func TestFormatResponseFacetLabels(t *testing.T) {
	res, err := FormatResponse([]byte(cannedResponse), SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}

	cats := res.Facets.Categories
	if len(cats) != 2 || cats[0].Key != "cat_phones" || cats[0].Label != "Phones" {
		t.Errorf("category facets = %+v", cats)
	}

	wantPrices := []FacetBucket{
		{Key: "500-1000", Label: "500 to 1,000", Count: 20},
		{Key: "0-500", Label: "Under 500", Count: 5},
		{Key: "10000+", Label: "Over 10,000", Count: 5},
	}
	if !reflect.DeepEqual(res.Facets.PriceRanges, wantPrices) {
		t.Errorf("price facets = %+v, want %+v", res.Facets.PriceRanges, wantPrices)
	}

	if got := res.Facets.Ratings[0].Label; got != "4 stars & above" {
		t.Errorf("rating label = %q", got)
	}
}

func TestFormatResponseBucketOrdering(t *testing.T) {
	res, err := FormatResponse([]byte(cannedResponse), SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}
	// Equal counts break ties on key ascending.
	colors := res.Facets.Attributes["color"]
	if len(colors) != 2 || colors[0].Key != "blue" || colors[1].Key != "red" {
		t.Errorf("attribute buckets = %+v, want blue before red", colors)
	}
}

func TestFormatResponseBooleanAvailability(t *testing.T) {
	res, err := FormatResponse([]byte(cannedResponse), SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}
	avail := res.Facets.Availability
	if len(avail) != 2 {
		t.Fatalf("availability buckets = %d, want 2", len(avail))
	}
	if avail[0].Key != "true" || avail[0].Label != "In stock" || avail[0].Count != 40 {
		t.Errorf("in-stock bucket = %+v", avail[0])
	}
	if avail[1].Key != "false" || avail[1].Label != "Out of stock" {
		t.Errorf("out-of-stock bucket = %+v", avail[1])
	}
}

func TestFormatResponseSuggestionsDeduped(t *testing.T) {
	res, err := FormatResponse([]byte(cannedResponse), SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"phone case", "phone cover"}
	if !reflect.DeepEqual(res.Suggestions, want) {
		t.Errorf("suggestions = %v, want %v", res.Suggestions, want)
	}
}

func TestFormatResponseEmptyBody(t *testing.T) {
	res, err := FormatResponse([]byte(`{"took": 1, "hits": {"total": {"value": 0}, "hits": []}}`), SearchQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 0 || res.Total != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if res.Hits == nil {
		t.Error("hits should be an empty slice, not nil, so it serialises as []")
	}
}

func TestFormatResponseMalformedBody(t *testing.T) {
	if _, err := FormatResponse([]byte(`{nope`), SearchQuery{}); err == nil {
		t.Error("malformed backend body should surface an error")
	}
}

func TestEmptyResultKeepsPaging(t *testing.T) {
	res := EmptyResult(SearchQuery{Page: 4, PageSize: 50})
	if res.Total != 0 || len(res.Hits) != 0 {
		t.Errorf("empty result = %+v", res)
	}
	if res.Page != 4 || res.PageSize != 50 {
		t.Errorf("paging = %d/%d, want 4/50", res.Page, res.PageSize)
	}
}
