package search

import (
	"strings"
	"time"

	"quickcart-search/internal/models"
)

// lowStockThreshold marks documents whose total quantity is at or below
// this as low-stock, so the storefront can surface urgency badges.
const lowStockThreshold = 10

// Project derives exactly one SearchDocument from a product aggregate.
// It returns nil when the product is missing or not active — callers must
// treat nil as a deletion signal, not an error.
//
// Projection is pure apart from the injected clock: projecting the same
// unchanged aggregate twice yields documents equal in every field except
// IndexedAt.
func Project(agg *models.ProductAggregate, now time.Time) *SearchDocument {
	if agg == nil || !agg.Product.Active() {
		return nil
	}
	p := agg.Product

	doc := &SearchDocument{
		ID:          p.ID,
		Type:        "product",
		Name:        p.Name,
		Description: p.Description,
		Slug:        p.Slug,
		Category: CategoryPath{
			ID:      agg.Category.ID,
			Name:    agg.Category.Name,
			Path:    agg.Category.PathNames,
			PathIDs: agg.Category.PathIDs,
			Level:   agg.Category.Level,
		},
		Seller: SellerRef{
			ID:       agg.Seller.ID,
			Name:     agg.Seller.DisplayName,
			Verified: agg.Seller.Verified,
		},
		Images:    agg.Images,
		Tags:      p.Tags,
		Featured:  p.Featured,
		Promoted:  p.Promoted,
		Status:    p.Status,
		Visible:   true,
		Locale:    p.Locale,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}

	if agg.Brand != nil {
		doc.Brand = &BrandRef{ID: agg.Brand.ID, Name: agg.Brand.Name, Slug: agg.Brand.Slug}
	}
	if agg.Seller.Latitude.Valid && agg.Seller.Longitude.Valid {
		doc.Seller.Location = &GeoPoint{
			Lat: agg.Seller.Latitude.Float64,
			Lon: agg.Seller.Longitude.Float64,
		}
	}

	doc.Pricing = projectPricing(agg.Variants)
	doc.Inventory = projectInventory(agg.Variants)
	doc.Attributes = projectAttributes(agg.Attributes)
	doc.Variants = projectVariants(agg.Variants)
	doc.SearchText = searchBlob(agg, doc.Attributes)

	// Popularity counters stay zeroed until the analytics feed lands.
	// TODO: feed popularity.Score output from the analytics counters here.
	doc.Popularity = PopularityMetrics{}

	// IndexedAt must never lag the source entity's UpdatedAt.
	doc.IndexedAt = now
	if doc.IndexedAt.Before(p.UpdatedAt) {
		doc.IndexedAt = p.UpdatedAt
	}

	return doc
}

// projectPricing takes the min/max selling price across variants.
// A product with no priced variants falls back to zero.
func projectPricing(variants []models.Variant) PriceRange {
	pr := PriceRange{}
	for i, v := range variants {
		if i == 0 || v.Price < pr.MinPrice {
			pr.MinPrice = v.Price
		}
		if v.Price > pr.MaxPrice {
			pr.MaxPrice = v.Price
		}
		if pr.Currency == "" {
			pr.Currency = v.Currency
		}
		if v.MRP > 0 && v.Price < v.MRP {
			pr.OnDiscount = true
		}
	}
	return pr
}

func projectInventory(variants []models.Variant) InventoryInfo {
	total := 0
	for _, v := range variants {
		total += v.Quantity
	}
	return InventoryInfo{
		TotalQuantity: total,
		InStock:       total > 0,
		LowStock:      total > 0 && total <= lowStockThreshold,
	}
}

// projectAttributes flattens attribute rows into a map keyed by slug.
// Rows arrive in position order; later rows win per slug.
func projectAttributes(rows []models.AttributeRow) map[string]AttributeValue {
	if len(rows) == 0 {
		return nil
	}
	attrs := make(map[string]AttributeValue, len(rows))
	for _, row := range rows {
		switch {
		case row.StringValue.Valid:
			attrs[row.Slug] = StringValue(row.StringValue.String)
		case row.NumberValue.Valid:
			attrs[row.Slug] = NumberValue(row.NumberValue.Float64)
		case row.BoolValue.Valid:
			attrs[row.Slug] = BoolValue(row.BoolValue.Bool)
		}
	}
	return attrs
}

func projectVariants(variants []models.Variant) []VariantSummary {
	if len(variants) == 0 {
		return nil
	}
	out := make([]VariantSummary, len(variants))
	for i, v := range variants {
		out[i] = VariantSummary{
			ID:         v.ID,
			SKU:        v.SKU,
			Price:      v.Price,
			Quantity:   v.Quantity,
			Attributes: v.Attributes,
		}
	}
	return out
}

// searchBlob concatenates every text field worth matching into one
// space-joined string; empty values are skipped.
func searchBlob(agg *models.ProductAggregate, attrs map[string]AttributeValue) string {
	parts := []string{
		agg.Product.Name,
		agg.Product.Description,
		agg.Category.Name,
	}
	if agg.Brand != nil {
		parts = append(parts, agg.Brand.Name)
	}
	parts = append(parts, agg.Seller.DisplayName)
	for _, row := range agg.Attributes {
		if row.DisplayValue != "" {
			parts = append(parts, row.DisplayValue)
		} else if v, ok := attrs[row.Slug]; ok {
			parts = append(parts, v.Display())
		}
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
