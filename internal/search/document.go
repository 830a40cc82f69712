package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SearchDocument is the flattened, denormalized projection of one product
// held in the search index. It is always re-derived in full on every index
// write; there is no partial-update path.
type SearchDocument struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`

	Category CategoryPath `json:"category"`
	Brand    *BrandRef    `json:"brand,omitempty"`
	Seller   SellerRef    `json:"seller"`

	Pricing   PriceRange    `json:"pricing"`
	Inventory InventoryInfo `json:"inventory"`

	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
	Variants   []VariantSummary          `json:"variants,omitempty"`
	Images     []string                  `json:"images,omitempty"`
	Tags       []string                  `json:"tags,omitempty"`

	// SearchText is the concatenated full-text blob: name, description,
	// category, brand, seller and attribute display values.
	SearchText string `json:"search_text"`

	Popularity PopularityMetrics `json:"popularity"`

	Featured bool   `json:"featured"`
	Promoted bool   `json:"promoted"`
	Status   string `json:"status"`
	Visible  bool   `json:"visible"`
	Locale   string `json:"locale"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IndexedAt time.Time `json:"indexed_at"`
}

// CategoryPath embeds the category hierarchy into the document. PathIDs
// lists every ancestor down to the category itself, so a filter on any
// ancestor id matches the whole subtree.
type CategoryPath struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Path    []string `json:"path"`
	PathIDs []string `json:"path_ids"`
	Level   int      `json:"level"`
}

type BrandRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type SellerRef struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Verified bool      `json:"verified"`
	Location *GeoPoint `json:"location,omitempty"`
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PriceRange aggregates variant selling prices.
type PriceRange struct {
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	Currency   string  `json:"currency"`
	OnDiscount bool    `json:"on_discount"`
}

// InventoryInfo aggregates variant stock.
type InventoryInfo struct {
	TotalQuantity int  `json:"total_quantity"`
	InStock       bool `json:"in_stock"`
	LowStock      bool `json:"low_stock"`
}

type VariantSummary struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku"`
	Price      float64           `json:"price"`
	Quantity   int               `json:"quantity"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// PopularityMetrics is zeroed at projection time until the analytics feed
// is wired in; see the popularity package for the intended score contract.
type PopularityMetrics struct {
	ViewCount   int64   `json:"view_count"`
	OrderCount  int64   `json:"order_count"`
	ReviewCount int64   `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
	Score       float64 `json:"score"`
}

// ---------------------------------------------------------------------------
// Attribute values
// ---------------------------------------------------------------------------

// AttributeKind discriminates the scalar type of an attribute value.
type AttributeKind int

const (
	AttributeString AttributeKind = iota
	AttributeNumber
	AttributeBool
)

// AttributeValue is a tagged union of the scalar types an attribute can
// hold. It marshals to the bare scalar so the index can filter on
// attributes.<slug> directly.
type AttributeValue struct {
	Kind AttributeKind
	Str  string
	Num  float64
	Bool bool
}

func StringValue(s string) AttributeValue {
	return AttributeValue{Kind: AttributeString, Str: s}
}

func NumberValue(f float64) AttributeValue {
	return AttributeValue{Kind: AttributeNumber, Num: f}
}

func BoolValue(b bool) AttributeValue {
	return AttributeValue{Kind: AttributeBool, Bool: b}
}

// Display returns the human-readable form used in the full-text blob.
func (v AttributeValue) Display() string {
	switch v.Kind {
	case AttributeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case AttributeBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AttributeNumber:
		return json.Marshal(v.Num)
	case AttributeBool:
		return json.Marshal(v.Bool)
	default:
		return json.Marshal(v.Str)
	}
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case string:
		*v = StringValue(val)
	case float64:
		*v = NumberValue(val)
	case bool:
		*v = BoolValue(val)
	default:
		return fmt.Errorf("search: attribute value must be string, number or bool, got %T", raw)
	}
	return nil
}
