package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/catalogcrawler/internal/model"
)

// Store persists canonical products into the products, product_images and
// product_variants tables of a SQLite or PostgreSQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger

	// urlIdentity maps a re-crawled product onto the row already stored
	// for its source URL instead of inserting a new product_id.
	urlIdentity bool

	// reconcile deletes child rows that are absent from the latest crawl.
	reconcile bool
}

// Option configures a Store.
type Option func(*Store)

// WithURLIdentity enables identity resolution by source_product_url.
// A product whose URL is already stored keeps the stored product_id, and
// images and variants keep their stored ids when they match by image URL
// or by attributes.
func WithURLIdentity(enabled bool) Option {
	return func(s *Store) {
		s.urlIdentity = enabled
	}
}

// WithChildReconciliation deletes image and variant rows of an upserted
// product that the new record no longer contains. Without it child rows
// are only ever inserted or updated.
func WithChildReconciliation(enabled bool) Option {
	return func(s *Store) {
		s.reconcile = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// UpsertResult describes what UpsertProduct did.
type UpsertResult struct {
	// ProductID is the id the product was stored under. It differs from the
	// input record's id when URL identity matched an existing row.
	ProductID string

	// Inserted is true when no row existed before.
	Inserted bool

	// Changed is false when the stored content was already identical,
	// ignoring generated ids and the sync timestamp.
	Changed bool

	// Removed counts child rows deleted by reconciliation.
	Removed int64
}

// Stats holds row counts of the catalog tables.
type Stats struct {
	Products int
	Images   int
	Variants int
}

// Open connects to the database named by dsn. See ParseDSN for the
// accepted forms. The schema is not created; call EnsureSchema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	dialect, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, persistErr("open", "", err)
	}

	var db *sql.DB
	switch dialect {
	case DialectPostgres:
		cfg, err := pgx.ParseConfig(driverDSN)
		if err != nil {
			return nil, persistErr("open", "", fmt.Errorf("parse postgres DSN %s: %w", redactDSN(driverDSN), err))
		}
		db = stdlib.OpenDB(*cfg)
	default:
		db, err = openSQLite(ctx, driverDSN)
		if err != nil {
			return nil, persistErr("open", "", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, persistErr("connect", "", err)
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// openSQLite opens a SQLite database with foreign keys enforced.
func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	memory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !memory && !strings.HasPrefix(dsn, "file:") {
		path := dsn
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", dsn+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if !memory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	return db, nil
}

// Dialect returns the SQL flavor of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// prior is what the store already holds for a product.
type prior struct {
	productID   string
	fingerprint string
	images      map[string]priorImage // keyed by source_image_url
	variants    map[string]string     // attributes JSON -> variant_id
}

// priorImage is a stored image row reused by URL identity.
type priorImage struct {
	id      string
	license model.LicenseStatus
}

// UpsertProduct writes p and its images and variants in one transaction.
// Rows are matched on their ids and updated in place. Image review
// columns (licensed_for_use, width, height, cdn_url) are only set on
// insert so that manual review results survive re-crawls.
func (s *Store) UpsertProduct(ctx context.Context, p *model.CanonicalProduct) (UpsertResult, error) {
	if p == nil {
		return UpsertResult{}, persistErr("upsert product", "", errors.New("nil product"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, persistErr("begin transaction", p.ProductID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	record := p
	var existing *prior
	if s.urlIdentity {
		existing, err = s.loadPrior(ctx, tx,
			"SELECT product_id, content_fingerprint FROM products WHERE source_product_url = ? ORDER BY last_synced_at DESC LIMIT 1",
			p.SourceProductURL, true)
		if err != nil {
			return UpsertResult{}, persistErr("resolve identity", p.ProductID, err)
		}
		if existing != nil {
			if record, err = adoptIdentity(p, existing); err != nil {
				return UpsertResult{}, persistErr("resolve identity", p.ProductID, err)
			}
		}
	} else {
		existing, err = s.loadPrior(ctx, tx,
			"SELECT product_id, content_fingerprint FROM products WHERE product_id = ?",
			p.ProductID, false)
		if err != nil {
			return UpsertResult{}, persistErr("load product", p.ProductID, err)
		}
	}

	fingerprint, err := contentFingerprint(record)
	if err != nil {
		return UpsertResult{}, persistErr("fingerprint product", record.ProductID, err)
	}

	result := UpsertResult{
		ProductID: record.ProductID,
		Inserted:  existing == nil,
		Changed:   existing == nil || existing.fingerprint != fingerprint,
	}

	if err := s.writeProduct(ctx, tx, record, fingerprint); err != nil {
		return UpsertResult{}, persistErr("upsert product", record.ProductID, err)
	}
	for i, img := range record.Images {
		if err := s.writeImage(ctx, tx, record.ProductID, i, img); err != nil {
			return UpsertResult{}, persistErr("upsert image", record.ProductID, err)
		}
	}
	for i, v := range record.Variants {
		if err := s.writeVariant(ctx, tx, record.ProductID, i, v); err != nil {
			return UpsertResult{}, persistErr("upsert variant", record.ProductID, err)
		}
	}

	if s.reconcile {
		removed, err := s.reconcileChildren(ctx, tx, record)
		if err != nil {
			return UpsertResult{}, persistErr("reconcile children", record.ProductID, err)
		}
		result.Removed = removed
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, persistErr("commit", record.ProductID, err)
	}

	s.logger.Debug("product upserted",
		"product_id", result.ProductID,
		"url", record.SourceProductURL,
		"inserted", result.Inserted,
		"changed", result.Changed,
	)
	return result, nil
}

// loadPrior runs query (selecting product_id and content_fingerprint) and,
// when children is set, loads the stored image and variant ids.
func (s *Store) loadPrior(ctx context.Context, tx *sql.Tx, query, arg string, children bool) (*prior, error) {
	var pr prior
	err := tx.QueryRowContext(ctx, s.dialect.rebind(query), arg).Scan(&pr.productID, &pr.fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !children {
		return &pr, nil
	}

	pr.images, err = s.imageIndex(ctx, tx, pr.productID)
	if err != nil {
		return nil, err
	}
	pr.variants, err = s.idIndex(ctx, tx, "SELECT attributes, variant_id FROM product_variants WHERE product_id = ?", pr.productID)
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

// idIndex maps the first selected column to the second.
func (s *Store) idIndex(ctx context.Context, tx *sql.Tx, query, productID string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, s.dialect.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]string)
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		index[key] = id
	}
	return index, rows.Err()
}

// imageIndex maps stored image URLs to their ids and review status.
func (s *Store) imageIndex(ctx context.Context, tx *sql.Tx, productID string) (map[string]priorImage, error) {
	query := "SELECT source_image_url, image_id, licensed_for_use FROM product_images WHERE product_id = ?"
	rows, err := tx.QueryContext(ctx, s.dialect.rebind(query), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]priorImage)
	for rows.Next() {
		var url, id, license string
		if err := rows.Scan(&url, &id, &license); err != nil {
			return nil, err
		}
		status, err := model.ParseLicenseStatus(license)
		if err != nil {
			return nil, err
		}
		index[url] = priorImage{id: id, license: status}
	}
	return index, rows.Err()
}

// adoptIdentity returns a resealed copy of p that carries the stored ids
// and the stored review status of matching images.
func adoptIdentity(p *model.CanonicalProduct, pr *prior) (*model.CanonicalProduct, error) {
	out := *p
	out.ProductID = pr.productID

	remapped := make(map[string]string, len(p.Images))
	out.Images = make([]model.ProductImage, len(p.Images))
	for i, img := range p.Images {
		if stored, ok := pr.images[img.SourceImageURL]; ok {
			remapped[img.ImageID] = stored.id
			img.ImageID = stored.id
			img.LicensedForUse = stored.license
		}
		out.Images[i] = img
	}

	out.Variants = make([]model.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		key, err := attributesJSON(v.Attributes)
		if err != nil {
			return nil, err
		}
		if id, ok := pr.variants[key]; ok {
			v.VariantID = id
		}
		ids := make([]string, len(v.ImageIDs))
		for j, imageID := range v.ImageIDs {
			if mapped, ok := remapped[imageID]; ok {
				imageID = mapped
			}
			ids[j] = imageID
		}
		v.ImageIDs = ids
		out.Variants[i] = v
	}

	if err := out.Seal(); err != nil {
		return nil, err
	}
	return &out, nil
}

// contentFingerprint hashes p without generated ids, review status and the
// sync time, so two crawls of unchanged content share a fingerprint.
func contentFingerprint(p *model.CanonicalProduct) (string, error) {
	c := *p
	c.ProductID = ""
	c.SourceHash = ""
	c.LastSyncedAt = time.Time{}

	c.Images = make([]model.ProductImage, len(p.Images))
	for i, img := range p.Images {
		img.ImageID = ""
		img.LicensedForUse = ""
		c.Images[i] = img
	}
	c.Variants = make([]model.ProductVariant, len(p.Variants))
	for i, v := range p.Variants {
		v.VariantID = ""
		v.ImageIDs = []string{}
		c.Variants[i] = v
	}

	data, err := model.CanonicalJSON(&c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func attributesJSON(attrs map[string]string) (string, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) writeProduct(ctx context.Context, tx *sql.Tx, p *model.CanonicalProduct, fingerprint string) error {
	categories, err := jsonText(nonNil(p.Categories))
	if err != nil {
		return err
	}
	tags, err := jsonText(nonNil(p.Tags))
	if err != nil {
		return err
	}
	meta := p.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := jsonText(meta)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO products (
		product_id, source_site, source_product_url, source_product_id, title, brand,
		categories, tags, description_short, description_long, price, currency,
		compare_at_price, is_on_sale, ratings, reviews_count, last_synced_at,
		source_hash, content_fingerprint, meta
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(product_id) DO UPDATE SET
		source_site = excluded.source_site,
		source_product_url = excluded.source_product_url,
		source_product_id = excluded.source_product_id,
		title = excluded.title,
		brand = excluded.brand,
		categories = excluded.categories,
		tags = excluded.tags,
		description_short = excluded.description_short,
		description_long = excluded.description_long,
		price = excluded.price,
		currency = excluded.currency,
		compare_at_price = excluded.compare_at_price,
		is_on_sale = excluded.is_on_sale,
		ratings = excluded.ratings,
		reviews_count = excluded.reviews_count,
		last_synced_at = excluded.last_synced_at,
		source_hash = excluded.source_hash,
		content_fingerprint = excluded.content_fingerprint,
		meta = excluded.meta
	`

	_, err = tx.ExecContext(ctx, s.dialect.rebind(query),
		p.ProductID,
		p.SourceSite,
		p.SourceProductURL,
		p.SourceProductID,
		p.Title,
		p.Brand,
		categories,
		tags,
		p.DescriptionShort,
		p.DescriptionLong,
		p.Price,
		p.Currency,
		p.CompareAtPrice,
		p.IsOnSale,
		p.Ratings,
		p.ReviewsCount,
		p.LastSyncedAt.UTC(),
		p.SourceHash,
		fingerprint,
		metaJSON,
	)
	return err
}

func (s *Store) writeImage(ctx context.Context, tx *sql.Tx, productID string, position int, img model.ProductImage) error {
	license := img.LicensedForUse
	if license == "" {
		license = model.LicenseUnknown
	}

	query := `
	INSERT INTO product_images (
		image_id, product_id, position, source_image_url, alt_text,
		licensed_for_use, width, height, cdn_url
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	-- review columns (licensed_for_use, width, height, cdn_url) are set on insert only
	ON CONFLICT(image_id) DO UPDATE SET
		product_id = excluded.product_id,
		position = excluded.position,
		source_image_url = excluded.source_image_url,
		alt_text = excluded.alt_text
	`

	_, err := tx.ExecContext(ctx, s.dialect.rebind(query),
		img.ImageID,
		productID,
		position,
		img.SourceImageURL,
		img.AltText,
		license.String(),
		img.Width,
		img.Height,
		img.CDNURL,
	)
	return err
}

func (s *Store) writeVariant(ctx context.Context, tx *sql.Tx, productID string, position int, v model.ProductVariant) error {
	attrs, err := attributesJSON(v.Attributes)
	if err != nil {
		return err
	}
	imageIDs, err := jsonText(nonNil(v.ImageIDs))
	if err != nil {
		return err
	}

	query := `
	INSERT INTO product_variants (
		variant_id, product_id, position, sku, attributes, price,
		available, inventory_count, image_ids
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(variant_id) DO UPDATE SET
		product_id = excluded.product_id,
		position = excluded.position,
		sku = excluded.sku,
		attributes = excluded.attributes,
		price = excluded.price,
		available = excluded.available,
		inventory_count = excluded.inventory_count,
		image_ids = excluded.image_ids
	`

	_, err = tx.ExecContext(ctx, s.dialect.rebind(query),
		v.VariantID,
		productID,
		position,
		v.SKU,
		attrs,
		v.Price,
		v.Available,
		v.InventoryCount,
		imageIDs,
	)
	return err
}

// reconcileChildren deletes image and variant rows of p that p no longer lists.
func (s *Store) reconcileChildren(ctx context.Context, tx *sql.Tx, p *model.CanonicalProduct) (int64, error) {
	imageIDs := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		imageIDs = append(imageIDs, img.ImageID)
	}
	variantIDs := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		variantIDs = append(variantIDs, v.VariantID)
	}

	removedImages, err := s.deleteMissing(ctx, tx, "product_images", "image_id", p.ProductID, imageIDs)
	if err != nil {
		return 0, err
	}
	removedVariants, err := s.deleteMissing(ctx, tx, "product_variants", "variant_id", p.ProductID, variantIDs)
	if err != nil {
		return 0, err
	}
	return removedImages + removedVariants, nil
}

func (s *Store) deleteMissing(ctx context.Context, tx *sql.Tx, table, idColumn, productID string, keep []string) (int64, error) {
	query := "DELETE FROM " + table + " WHERE product_id = ?" //nolint:gosec // table and column names are constants
	args := make([]any, 0, len(keep)+1)
	args = append(args, productID)
	if len(keep) > 0 {
		query += " AND " + idColumn + " NOT IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(keep)), ", ") + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
