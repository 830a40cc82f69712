// Package database is the read side of the product catalog in Postgres.
// The search pipeline only ever reads from here: products are written by the
// catalog service, and every index write re-derives the full document from
// these tables.
package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"quickcart-search/internal/models"

	"github.com/lib/pq"
)

// Operation timeouts.
// These cap how long a single DB call can hold a connection / wait on a lock.
const (
	readTimeout = 5 * time.Second
	pageTimeout = 30 * time.Second // id pages during reindex can scan more rows
)

// ErrNotFound is returned when a product id does not exist.
// Callers must treat this as a deletion signal for the search index,
// not as an infrastructure failure.
var ErrNotFound = errors.New("database: product not found")

type DB struct {
	Conn *sql.DB
}

// Connect opens and verifies a Postgres connection.
func Connect(connStr string) (*DB, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	slog.Info("postgres connected")
	return &DB{Conn: conn}, nil
}

// GetProductAggregate loads one product with everything the document
// projector needs: category path, brand, seller, variants with their
// attributes, product attribute values and image URLs.
func (db *DB) GetProductAggregate(ctx context.Context, id string) (*models.ProductAggregate, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	agg := &models.ProductAggregate{}
	var brandID, brandName, brandSlug sql.NullString

	err := db.Conn.QueryRowContext(ctx, `
		SELECT p.id, p.name, COALESCE(p.description, ''), p.slug,
		       p.category_id, p.brand_id, p.seller_id,
		       p.status, p.locale, p.tags, p.featured, p.promoted,
		       p.created_at, p.updated_at,
		       c.id, c.name, c.slug, c.path_ids, c.path_names, c.level,
		       b.id, b.name, b.slug,
		       s.id, s.display_name, s.verified, s.latitude, s.longitude
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN brands b ON b.id = p.brand_id
		JOIN sellers s ON s.id = p.seller_id
		WHERE p.id = $1`,
		id,
	).Scan(
		&agg.Product.ID, &agg.Product.Name, &agg.Product.Description, &agg.Product.Slug,
		&agg.Product.CategoryID, &agg.Product.BrandID, &agg.Product.SellerID,
		&agg.Product.Status, &agg.Product.Locale, pq.Array(&agg.Product.Tags),
		&agg.Product.Featured, &agg.Product.Promoted,
		&agg.Product.CreatedAt, &agg.Product.UpdatedAt,
		&agg.Category.ID, &agg.Category.Name, &agg.Category.Slug,
		pq.Array(&agg.Category.PathIDs), pq.Array(&agg.Category.PathNames), &agg.Category.Level,
		&brandID, &brandName, &brandSlug,
		&agg.Seller.ID, &agg.Seller.DisplayName, &agg.Seller.Verified,
		&agg.Seller.Latitude, &agg.Seller.Longitude,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if brandID.Valid {
		agg.Brand = &models.Brand{ID: brandID.String, Name: brandName.String, Slug: brandSlug.String}
	}

	if agg.Variants, err = db.loadVariants(ctx, id); err != nil {
		return nil, err
	}
	if agg.Attributes, err = db.loadAttributes(ctx, id); err != nil {
		return nil, err
	}
	if agg.Images, err = db.loadImages(ctx, id); err != nil {
		return nil, err
	}
	return agg, nil
}

func (db *DB) loadVariants(ctx context.Context, productID string) ([]models.Variant, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT v.id, v.sku, v.price, v.mrp, v.currency, v.quantity
		FROM product_variants v
		WHERE v.product_id = $1
		ORDER BY v.id`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []models.Variant
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.SKU, &v.Price, &v.MRP, &v.Currency, &v.Quantity); err != nil {
			return nil, err
		}
		v.Attributes = map[string]string{}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Variant attributes in one pass instead of a query per variant.
	attrRows, err := db.Conn.QueryContext(ctx, `
		SELECT va.variant_id, va.slug, va.value
		FROM variant_attributes va
		JOIN product_variants v ON v.id = va.variant_id
		WHERE v.product_id = $1
		ORDER BY va.variant_id, va.slug`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer attrRows.Close()

	byID := make(map[string]*models.Variant, len(variants))
	for i := range variants {
		byID[variants[i].ID] = &variants[i]
	}
	for attrRows.Next() {
		var variantID, slug, value string
		if err := attrRows.Scan(&variantID, &slug, &value); err != nil {
			return nil, err
		}
		if v, ok := byID[variantID]; ok {
			v.Attributes[slug] = value
		}
	}
	return variants, attrRows.Err()
}

func (db *DB) loadAttributes(ctx context.Context, productID string) ([]models.AttributeRow, error) {
	// Position order matters: the projector applies last-write-wins per slug.
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT a.slug, a.name, av.string_value, av.number_value, av.bool_value,
		       COALESCE(av.display_value, '')
		FROM product_attribute_values av
		JOIN attributes a ON a.id = av.attribute_id
		WHERE av.product_id = $1
		ORDER BY av.position, a.slug`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attrs []models.AttributeRow
	for rows.Next() {
		var a models.AttributeRow
		if err := rows.Scan(&a.Slug, &a.Name, &a.StringValue, &a.NumberValue, &a.BoolValue, &a.DisplayValue); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

func (db *DB) loadImages(ctx context.Context, productID string) ([]string, error) {
	rows, err := db.Conn.QueryContext(ctx, `
		SELECT url FROM product_images
		WHERE product_id = $1
		ORDER BY position`,
		productID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ListProductIDs returns up to limit product ids strictly after afterID,
// in id order. Keyset pagination: an empty result means the scan is done.
func (db *DB) ListProductIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	rows, err := db.Conn.QueryContext(ctx,
		"SELECT id FROM products WHERE id > $1 ORDER BY id LIMIT $2",
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ProductIDsByCategory returns the ids of all products in the category
// subtree rooted at categoryID. The @> containment check against path_ids
// covers descendants without a recursive query.
func (db *DB) ProductIDsByCategory(ctx context.Context, categoryID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	rows, err := db.Conn.QueryContext(ctx, `
		SELECT p.id FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE c.path_ids @> ARRAY[$1]::text[]
		ORDER BY p.id`,
		categoryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ProductIDsByBrand returns the ids of all products of one brand.
func (db *DB) ProductIDsByBrand(ctx context.Context, brandID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	rows, err := db.Conn.QueryContext(ctx,
		"SELECT id FROM products WHERE brand_id = $1 ORDER BY id",
		brandID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ProductIDsBySeller returns the ids of all products of one seller.
func (db *DB) ProductIDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	rows, err := db.Conn.QueryContext(ctx,
		"SELECT id FROM products WHERE seller_id = $1 ORDER BY id",
		sellerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CountActiveProducts is used by reindex dry runs to report how many
// documents a full pass would write.
func (db *DB) CountActiveProducts(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var n int
	err := db.Conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE status = 'active'",
	).Scan(&n)
	return n, err
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
