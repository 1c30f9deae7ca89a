package catalog

import (
	"context"
	"fmt"
)

// columnTypes are the dialect-specific type names used by the schema.
type columnTypes struct {
	float string
	time  string
}

func (d Dialect) types() columnTypes {
	if d == DialectPostgres {
		return columnTypes{float: "DOUBLE PRECISION", time: "TIMESTAMPTZ"}
	}
	return columnTypes{float: "REAL", time: "DATETIME"}
}

// schemaStatements returns the DDL for the three catalog tables.
// Structured values (categories, tags, attributes, meta, image_ids) are
// stored as JSON text.
func (d Dialect) schemaStatements() []string {
	t := d.types()
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			source_site TEXT NOT NULL,
			source_product_url TEXT NOT NULL,
			source_product_id TEXT,
			title TEXT NOT NULL,
			brand TEXT,
			categories TEXT NOT NULL,
			tags TEXT NOT NULL,
			description_short TEXT NOT NULL,
			description_long TEXT,
			price %[1]s NOT NULL,
			currency TEXT NOT NULL,
			compare_at_price %[1]s,
			is_on_sale BOOLEAN NOT NULL DEFAULT FALSE,
			ratings %[1]s,
			reviews_count INTEGER,
			last_synced_at %[2]s NOT NULL,
			source_hash TEXT NOT NULL,
			content_fingerprint TEXT NOT NULL DEFAULT '',
			meta TEXT NOT NULL
		)`, t.float, t.time),
		`CREATE INDEX IF NOT EXISTS idx_products_source_url ON products(source_product_url)`,
		`CREATE TABLE IF NOT EXISTS product_images (
			image_id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			source_image_url TEXT NOT NULL,
			alt_text TEXT,
			licensed_for_use TEXT NOT NULL DEFAULT 'unknown',
			width INTEGER,
			height INTEGER,
			cdn_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_product_images_product ON product_images(product_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS product_variants (
			variant_id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(product_id) ON DELETE CASCADE,
			position INTEGER NOT NULL DEFAULT 0,
			sku TEXT,
			attributes TEXT NOT NULL,
			price %[1]s NOT NULL,
			available BOOLEAN,
			inventory_count INTEGER,
			image_ids TEXT NOT NULL
		)`, t.float),
		`CREATE INDEX IF NOT EXISTS idx_product_variants_product ON product_variants(product_id)`,
	}
}

// EnsureSchema creates the catalog tables and indexes when absent.
// It is safe to call on every run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return persistErr("ensure schema", "", err)
		}
	}
	s.logger.Debug("catalog schema ready", "dialect", s.dialect.String())
	return nil
}
