package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/catalogcrawler/internal/model"
)

// GetProduct loads a stored product with its images and variants ordered
// as they were written. It returns ErrProductNotFound for unknown ids.
func (s *Store) GetProduct(ctx context.Context, productID string) (*model.CanonicalProduct, error) {
	query := `
	SELECT product_id, source_site, source_product_url, source_product_id, title, brand,
		categories, tags, description_short, description_long, price, currency,
		compare_at_price, is_on_sale, ratings, reviews_count, last_synced_at,
		source_hash, meta
	FROM products
	WHERE product_id = ?
	`

	var (
		p                 model.CanonicalProduct
		sourceProductID   sql.NullString
		brand             sql.NullString
		descriptionLong   sql.NullString
		compareAtPrice    sql.NullFloat64
		ratings           sql.NullFloat64
		reviewsCount      sql.NullInt64
		categoriesJSON    string
		tagsJSON          string
		metaJSON          string
		lastSyncedAtValue string
	)

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), productID).Scan(
		&p.ProductID,
		&p.SourceSite,
		&p.SourceProductURL,
		&sourceProductID,
		&p.Title,
		&brand,
		&categoriesJSON,
		&tagsJSON,
		&p.DescriptionShort,
		&descriptionLong,
		&p.Price,
		&p.Currency,
		&compareAtPrice,
		&p.IsOnSale,
		&ratings,
		&reviewsCount,
		&lastSyncedAtValue,
		&p.SourceHash,
		&metaJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, persistErr("get product", productID, err)
	}

	p.SourceProductID = nullString(sourceProductID)
	p.Brand = nullString(brand)
	p.DescriptionLong = nullString(descriptionLong)
	p.CompareAtPrice = nullFloat(compareAtPrice)
	p.Ratings = nullFloat(ratings)
	p.ReviewsCount = nullInt(reviewsCount)
	p.LastSyncedAt = parseTimestamp(lastSyncedAtValue)

	if err := decodeJSON(categoriesJSON, &p.Categories); err != nil {
		return nil, persistErr("decode categories", productID, err)
	}
	if err := decodeJSON(tagsJSON, &p.Tags); err != nil {
		return nil, persistErr("decode tags", productID, err)
	}
	if err := decodeJSON(metaJSON, &p.Meta); err != nil {
		return nil, persistErr("decode meta", productID, err)
	}

	if p.Images, err = s.loadImages(ctx, productID); err != nil {
		return nil, persistErr("get images", productID, err)
	}
	if p.Variants, err = s.loadVariants(ctx, productID); err != nil {
		return nil, persistErr("get variants", productID, err)
	}
	return &p, nil
}

func (s *Store) loadImages(ctx context.Context, productID string) ([]model.ProductImage, error) {
	query := `
	SELECT image_id, source_image_url, alt_text, licensed_for_use, width, height, cdn_url
	FROM product_images
	WHERE product_id = ?
	ORDER BY position, image_id
	`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]model.ProductImage, 0)
	for rows.Next() {
		var (
			img     model.ProductImage
			alt     sql.NullString
			license string
			width   sql.NullInt64
			height  sql.NullInt64
			cdnURL  sql.NullString
		)
		if err := rows.Scan(&img.ImageID, &img.SourceImageURL, &alt, &license, &width, &height, &cdnURL); err != nil {
			return nil, err
		}
		status, err := model.ParseLicenseStatus(license)
		if err != nil {
			return nil, err
		}
		img.AltText = nullString(alt)
		img.LicensedForUse = status
		img.Width = nullInt(width)
		img.Height = nullInt(height)
		img.CDNURL = nullString(cdnURL)
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *Store) loadVariants(ctx context.Context, productID string) ([]model.ProductVariant, error) {
	query := `
	SELECT variant_id, sku, attributes, price, available, inventory_count, image_ids
	FROM product_variants
	WHERE product_id = ?
	ORDER BY position, variant_id
	`

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	variants := make([]model.ProductVariant, 0)
	for rows.Next() {
		var (
			v         model.ProductVariant
			sku       sql.NullString
			attrs     string
			available sql.NullBool
			inventory sql.NullInt64
			imageIDs  string
		)
		if err := rows.Scan(&v.VariantID, &sku, &attrs, &v.Price, &available, &inventory, &imageIDs); err != nil {
			return nil, err
		}
		if err := decodeJSON(attrs, &v.Attributes); err != nil {
			return nil, err
		}
		if err := decodeJSON(imageIDs, &v.ImageIDs); err != nil {
			return nil, err
		}
		v.SKU = nullString(sku)
		if available.Valid {
			b := available.Bool
			v.Available = &b
		}
		v.InventoryCount = nullInt(inventory)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// CountProducts returns the number of product rows.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	n, err := s.count(ctx, "products")
	if err != nil {
		return 0, persistErr("count products", "", err)
	}
	return n, nil
}

// Stats returns row counts for all three tables.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Products, err = s.count(ctx, "products"); err != nil {
		return Stats{}, persistErr("count products", "", err)
	}
	if st.Images, err = s.count(ctx, "product_images"); err != nil {
		return Stats{}, persistErr("count images", "", err)
	}
	if st.Variants, err = s.count(ctx, "product_variants"); err != nil {
		return Stats{}, persistErr("count variants", "", err)
	}
	return st, nil
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n) //nolint:gosec // table names are constants
	return n, err
}

// timestampLayouts covers the text forms the drivers produce.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a stored timestamp into UTC, or returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func decodeJSON(text string, v any) error {
	if text == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("invalid JSON column: %w", err)
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
