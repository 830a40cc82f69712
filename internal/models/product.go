// Package models holds the relational read model for the product catalog.
// Postgres is the source of truth; the search index is a projection of these rows.
package models

import (
	"database/sql"
	"time"
)

// Product is one row of the products table.
type Product struct {
	ID          string
	Name        string
	Description string
	Slug        string
	CategoryID  string
	BrandID     sql.NullString
	SellerID    string
	Status      string // "active", "draft", "archived"
	Locale      string
	Tags        []string
	Featured    bool
	Promoted    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the product should be visible in search.
func (p *Product) Active() bool { return p.Status == "active" }

// Category carries the materialized path of a catalog category.
// PathIDs[0] is the root ancestor, PathIDs[len-1] is the category itself,
// so filtering on any PathIDs element selects the whole subtree.
type Category struct {
	ID        string
	Name      string
	Slug      string
	PathIDs   []string
	PathNames []string
	Level     int
}

// Brand is one row of the brands table.
type Brand struct {
	ID   string
	Name string
	Slug string
}

// Seller is the seller summary embedded into search documents.
type Seller struct {
	ID          string
	DisplayName string
	Verified    bool
	Latitude    sql.NullFloat64
	Longitude   sql.NullFloat64
}

// Variant is a sellable unit of a product with its own price and stock.
type Variant struct {
	ID         string
	SKU        string
	Price      float64 // selling price
	MRP        float64 // list price; Price < MRP means discounted
	Currency   string
	Quantity   int
	Attributes map[string]string // e.g. size -> "XL"
}

// AttributeRow is one product_attribute_values row. Exactly one of the
// three value columns is expected to be set; DisplayValue is the
// human-readable form used in the full-text blob.
type AttributeRow struct {
	Slug         string
	Name         string
	StringValue  sql.NullString
	NumberValue  sql.NullFloat64
	BoolValue    sql.NullBool
	DisplayValue string
}

// ProductAggregate is everything the document projector needs about one
// product, loaded in a single repository call.
type ProductAggregate struct {
	Product    Product
	Category   Category
	Brand      *Brand
	Seller     Seller
	Variants   []Variant
	Attributes []AttributeRow
	Images     []string
}
