package search

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"quickcart-search/internal/models"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testAggregate() *models.ProductAggregate {
	created := testNow.Add(-30 * 24 * time.Hour)
	return &models.ProductAggregate{
		Product: models.Product{
			ID:          "p1",
			Name:        "Red Phone Case",
			Description: "Slim case",
			Slug:        "red-phone-case",
			CategoryID:  "cat_phones",
			SellerID:    "s1",
			Status:      "active",
			Locale:      "en",
			CreatedAt:   created,
			UpdatedAt:   created,
		},
		Category: models.Category{
			ID:        "cat_phones",
			Name:      "Phones",
			Slug:      "phones",
			PathIDs:   []string{"cat_electronics", "cat_phones"},
			PathNames: []string{"Electronics", "Phones"},
			Level:     2,
		},
		Brand:  &models.Brand{ID: "b1", Name: "Acme", Slug: "acme"},
		Seller: models.Seller{ID: "s1", DisplayName: "Gadget Hub", Verified: true},
		Variants: []models.Variant{
			{ID: "v1", SKU: "RC-1", Price: 300, MRP: 400, Currency: "INR", Quantity: 5},
			{ID: "v2", SKU: "RC-2", Price: 1200, MRP: 1200, Currency: "INR", Quantity: 3},
		},
		Attributes: []models.AttributeRow{
			{Slug: "color", Name: "Colour", StringValue: sql.NullString{String: "red", Valid: true}, DisplayValue: "Red"},
		},
		Images: []string{"https://cdn.example.com/p1.jpg"},
	}
}

func TestProjectAggregatesPricing(t *testing.T) {
	doc := Project(testAggregate(), testNow)
	if doc == nil {
		t.Fatal("expected a document for an active product")
	}
	if doc.Pricing.MinPrice != 300 || doc.Pricing.MaxPrice != 1200 {
		t.Errorf("price range = [%v, %v], want [300, 1200]", doc.Pricing.MinPrice, doc.Pricing.MaxPrice)
	}
	if doc.Pricing.Currency != "INR" {
		t.Errorf("currency = %q, want INR", doc.Pricing.Currency)
	}
	if !doc.Pricing.OnDiscount {
		t.Error("v1 sells under MRP, document should be on discount")
	}
}

func TestProjectNoVariantsFallsBackToZero(t *testing.T) {
	agg := testAggregate()
	agg.Variants = nil

	doc := Project(agg, testNow)
	if doc.Pricing.MinPrice != 0 || doc.Pricing.MaxPrice != 0 {
		t.Errorf("price range = [%v, %v], want [0, 0]", doc.Pricing.MinPrice, doc.Pricing.MaxPrice)
	}
	if doc.Inventory.InStock {
		t.Error("no variants means nothing in stock")
	}
}

func TestProjectInventory(t *testing.T) {
	tests := []struct {
		name       string
		quantities []int
		total      int
		inStock    bool
		lowStock   bool
	}{
		{"plenty", []int{5, 20}, 25, true, false},
		{"boundary is low", []int{7, 3}, 10, true, true},
		{"single unit", []int{1}, 1, true, true},
		{"sold out", []int{0, 0}, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := testAggregate()
			agg.Variants = agg.Variants[:0]
			for i, qty := range tt.quantities {
				agg.Variants = append(agg.Variants, models.Variant{
					ID: string(rune('a' + i)), Price: 100, Quantity: qty,
				})
			}
			doc := Project(agg, testNow)
			inv := doc.Inventory
			if inv.TotalQuantity != tt.total || inv.InStock != tt.inStock || inv.LowStock != tt.lowStock {
				t.Errorf("inventory = %+v, want total=%d inStock=%v lowStock=%v",
					inv, tt.total, tt.inStock, tt.lowStock)
			}
		})
	}
}

func TestProjectAttributeLastWriteWins(t *testing.T) {
	agg := testAggregate()
	agg.Attributes = []models.AttributeRow{
		{Slug: "color", StringValue: sql.NullString{String: "red", Valid: true}},
		{Slug: "weight", NumberValue: sql.NullFloat64{Float64: 0.2, Valid: true}},
		{Slug: "color", StringValue: sql.NullString{String: "crimson", Valid: true}},
		{Slug: "wireless", BoolValue: sql.NullBool{Bool: true, Valid: true}},
	}

	doc := Project(agg, testNow)
	if got := doc.Attributes["color"]; got != StringValue("crimson") {
		t.Errorf("color = %+v, want last write crimson", got)
	}
	if got := doc.Attributes["weight"]; got != NumberValue(0.2) {
		t.Errorf("weight = %+v, want 0.2", got)
	}
	if got := doc.Attributes["wireless"]; got != BoolValue(true) {
		t.Errorf("wireless = %+v, want true", got)
	}
}

func TestProjectSearchBlobSkipsEmptyValues(t *testing.T) {
	agg := testAggregate()
	agg.Product.Description = ""

	doc := Project(agg, testNow)
	want := "Red Phone Case Phones Acme Gadget Hub Red"
	if doc.SearchText != want {
		t.Errorf("search blob = %q, want %q", doc.SearchText, want)
	}
}

func TestProjectCategoryPathEmbedded(t *testing.T) {
	doc := Project(testAggregate(), testNow)
	wantIDs := []string{"cat_electronics", "cat_phones"}
	if !reflect.DeepEqual(doc.Category.PathIDs, wantIDs) {
		t.Errorf("path ids = %v, want %v", doc.Category.PathIDs, wantIDs)
	}
	if doc.Category.Level != 2 {
		t.Errorf("level = %d, want 2", doc.Category.Level)
	}
}

func TestProjectIdempotentExceptIndexedAt(t *testing.T) {
	agg := testAggregate()
	first := Project(agg, testNow)
	second := Project(agg, testNow.Add(time.Hour))

	if first.IndexedAt.Equal(second.IndexedAt) {
		t.Fatal("IndexedAt should track the injected clock")
	}
	first.IndexedAt = time.Time{}
	second.IndexedAt = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("projections differ beyond IndexedAt:\n%+v\n%+v", first, second)
	}
}

func TestProjectIndexedAtNeverLagsUpdatedAt(t *testing.T) {
	agg := testAggregate()
	agg.Product.UpdatedAt = testNow.Add(time.Hour) // source updated "in the future"

	doc := Project(agg, testNow)
	if doc.IndexedAt.Before(agg.Product.UpdatedAt) {
		t.Errorf("IndexedAt %v lags UpdatedAt %v", doc.IndexedAt, agg.Product.UpdatedAt)
	}
}

func TestProjectMissingOrInactiveIsDeletionSignal(t *testing.T) {
	if Project(nil, testNow) != nil {
		t.Error("nil aggregate should project to no document")
	}

	agg := testAggregate()
	agg.Product.Status = "archived"
	if Project(agg, testNow) != nil {
		t.Error("inactive product should project to no document")
	}
}
