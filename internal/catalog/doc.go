// Package catalog provides relational storage for canonical products.
//
// The schema has three tables: products keyed by product_id, and
// product_images and product_variants keyed by their own ids with a
// foreign key to the product. Both SQLite (modernc.org/sqlite, pure Go)
// and PostgreSQL (pgx) are supported behind database/sql; the dialect is
// chosen from the connection string.
//
// # Upsert semantics
//
// UpsertProduct is a row-level upsert inside one transaction: the product
// row and every image and variant row are inserted or updated on their
// primary key. Child rows missing from a newer crawl are kept unless
// WithChildReconciliation is set.
//
// Because product_id is regenerated on every extraction, WithURLIdentity
// resolves a record to the row already stored for the same
// source_product_url, reusing the stored product, image and variant ids.
//
// # Usage
//
//	store, err := catalog.Open(ctx, os.Getenv("CATALOG_DATABASE_URL"), catalog.WithURLIdentity(true))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	if err := store.EnsureSchema(ctx); err != nil {
//		return err
//	}
//	res, err := store.UpsertProduct(ctx, product)
package catalog
