package search

// indexMapping returns the full settings + mappings JSON for the product
// index. Three custom analyzers: product_text for general matching
// (stopwords, synonyms, stemming), and an edge-n-gram pair for the name
// autocomplete sub-field. The mapping is created once and never altered in
// place — schema changes go through a reindex-to-new-index-and-alias-swap
// procedure outside this service.
func indexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 1,
    "analysis": {
      "analyzer": {
        "product_text": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "product_stop", "product_synonyms", "product_stemmer"]
        },
        "autocomplete_index": {
          "type": "custom",
          "tokenizer": "autocomplete_tokenizer",
          "filter": ["lowercase"]
        },
        "autocomplete_search": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase"]
        }
      },
      "tokenizer": {
        "autocomplete_tokenizer": {
          "type": "edge_ngram",
          "min_gram": 2,
          "max_gram": 20,
          "token_chars": ["letter", "digit"]
        }
      },
      "filter": {
        "product_stop": {
          "type": "stop",
          "stopwords": "_english_"
        },
        "product_synonyms": {
          "type": "synonym_graph",
          "synonyms": [
            "mobile, phone, smartphone",
            "tv, television",
            "laptop, notebook"
          ]
        },
        "product_stemmer": {
          "type": "stemmer",
          "language": "english"
        }
      }
    }
  },
  "mappings": {
    "dynamic_templates": [
      {
        "attributes_as_keywords": {
          "path_match": "attributes.*",
          "mapping": { "type": "keyword" }
        }
      },
      {
        "variant_attributes_as_keywords": {
          "path_match": "variants.attributes.*",
          "mapping": { "type": "keyword" }
        }
      }
    ],
    "properties": {
      "id":          { "type": "keyword" },
      "type":        { "type": "keyword" },
      "name": {
        "type": "text",
        "analyzer": "product_text",
        "fields": {
          "keyword":      { "type": "keyword", "ignore_above": 256 },
          "autocomplete": { "type": "text", "analyzer": "autocomplete_index", "search_analyzer": "autocomplete_search" }
        }
      },
      "description": { "type": "text", "analyzer": "product_text" },
      "slug":        { "type": "keyword" },
      "category": {
        "properties": {
          "id":       { "type": "keyword" },
          "name":     { "type": "text", "analyzer": "product_text", "fields": { "keyword": { "type": "keyword" } } },
          "path":     { "type": "text", "analyzer": "product_text" },
          "path_ids": { "type": "keyword" },
          "level":    { "type": "integer" }
        }
      },
      "brand": {
        "properties": {
          "id":   { "type": "keyword" },
          "name": { "type": "text", "analyzer": "product_text", "fields": { "keyword": { "type": "keyword" } } },
          "slug": { "type": "keyword" }
        }
      },
      "seller": {
        "properties": {
          "id":       { "type": "keyword" },
          "name":     { "type": "text", "analyzer": "product_text", "fields": { "keyword": { "type": "keyword" } } },
          "verified": { "type": "boolean" },
          "location": { "type": "geo_point" }
        }
      },
      "pricing": {
        "properties": {
          "min_price":   { "type": "double" },
          "max_price":   { "type": "double" },
          "currency":    { "type": "keyword" },
          "on_discount": { "type": "boolean" }
        }
      },
      "inventory": {
        "properties": {
          "total_quantity": { "type": "integer" },
          "in_stock":       { "type": "boolean" },
          "low_stock":      { "type": "boolean" }
        }
      },
      "variants": {
        "type": "nested",
        "properties": {
          "id":       { "type": "keyword" },
          "sku":      { "type": "keyword" },
          "price":    { "type": "double" },
          "quantity": { "type": "integer" }
        }
      },
      "images":      { "type": "keyword", "index": false },
      "tags":        { "type": "keyword" },
      "search_text": { "type": "text", "analyzer": "product_text" },
      "popularity": {
        "properties": {
          "view_count":   { "type": "long" },
          "order_count":  { "type": "long" },
          "review_count": { "type": "long" },
          "avg_rating":   { "type": "float" },
          "score":        { "type": "float" }
        }
      },
      "featured":   { "type": "boolean" },
      "promoted":   { "type": "boolean" },
      "status":     { "type": "keyword" },
      "visible":    { "type": "boolean" },
      "locale":     { "type": "keyword" },
      "created_at": { "type": "date" },
      "updated_at": { "type": "date" },
      "indexed_at": { "type": "date" }
    }
  }
}`
}
