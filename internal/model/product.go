package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extraction caps applied after deduplication.
const (
	// MaxImages is the maximum number of images kept per product.
	MaxImages = 8

	// MaxCategories is the maximum number of categories kept per product.
	MaxCategories = 6

	// MaxDescriptionWords is the word cap for DescriptionShort.
	MaxDescriptionWords = 25

	// DefaultCurrency is used when no currency can be resolved from the page.
	DefaultCurrency = "INR"
)

// LicenseStatus records whether an image may be reused downstream.
// Every image starts as LicenseUnknown and is moved by a manual review.
type LicenseStatus string

const (
	// LicenseUnknown means nobody has reviewed the image yet.
	LicenseUnknown LicenseStatus = "unknown"
	// LicensePermissionGranted means the rights holder allowed reuse.
	LicensePermissionGranted LicenseStatus = "permission_granted"
	// LicensePermissionDenied means reuse was refused.
	LicensePermissionDenied LicenseStatus = "permission_denied"
	// LicensePendingReview means a request for permission is outstanding.
	LicensePendingReview LicenseStatus = "pending_review"
)

// IsValid reports whether s is one of the known license statuses.
func (s LicenseStatus) IsValid() bool {
	switch s {
	case LicenseUnknown, LicensePermissionGranted, LicensePermissionDenied, LicensePendingReview:
		return true
	default:
		return false
	}
}

// String returns the wire value of the status.
func (s LicenseStatus) String() string {
	return string(s)
}

// ParseLicenseStatus converts a stored string into a LicenseStatus.
// An empty string maps to LicenseUnknown.
func ParseLicenseStatus(s string) (LicenseStatus, error) {
	if s == "" {
		return LicenseUnknown, nil
	}
	status := LicenseStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return LicenseUnknown, fmt.Errorf("unknown license status %q", s)
	}
	return status, nil
}

// ProductImage is an image referenced by a product page.
type ProductImage struct {
	// ImageID is a random UUID assigned at extraction time.
	ImageID string `json:"image_id"`

	// SourceImageURL is the absolute URL of the image on the source site.
	SourceImageURL string `json:"source_image_url"`

	// AltText is the alt attribute of the first <img> that referenced the URL.
	AltText *string `json:"alt_text"`

	// LicensedForUse drives the manual licensing review workflow.
	LicensedForUse LicenseStatus `json:"licensed_for_use"`

	// Width, Height and CDNURL are filled by post-processing (CDN mirroring).
	// They are always nil at crawl time.
	Width  *int    `json:"width"`
	Height *int    `json:"height"`
	CDNURL *string `json:"cdn_url"`
}

// NewProductImage creates an image record with a fresh ID and unknown license.
func NewProductImage(sourceURL, altText string) ProductImage {
	img := ProductImage{
		ImageID:        uuid.NewString(),
		SourceImageURL: sourceURL,
		LicensedForUse: LicenseUnknown,
	}
	if altText != "" {
		img.AltText = &altText
	}
	return img
}

// ProductVariant is one purchasable variation of a product (e.g. a size).
type ProductVariant struct {
	VariantID      string            `json:"variant_id"`
	SKU            *string           `json:"sku"`
	Attributes     map[string]string `json:"attributes"`
	Price          float64           `json:"price"`
	Available      *bool             `json:"available"`
	InventoryCount *int              `json:"inventory_count"`

	// ImageIDs references entries in the owning product's Images.
	// Always empty until image-to-variant association exists.
	ImageIDs []string `json:"image_ids"`
}

// NewSizeVariant creates an available variant for a size token,
// inheriting the page-level price.
func NewSizeVariant(size string, price float64) ProductVariant {
	available := true
	return ProductVariant{
		VariantID:  uuid.NewString(),
		Attributes: map[string]string{"size": size},
		Price:      price,
		Available:  &available,
		ImageIDs:   []string{},
	}
}

// CanonicalProduct is the normalized record produced for one product page.
//
// ProductID and all nested IDs are assigned once at extraction time.
// SourceHash is derived from every other field; call Seal after the last
// mutation so the two never disagree.
type CanonicalProduct struct {
	ProductID        string  `json:"product_id"`
	SourceSite       string  `json:"source_site"`
	SourceProductURL string  `json:"source_product_url"`
	SourceProductID  *string `json:"source_product_id"`

	Title      string   `json:"title"`
	Brand      *string  `json:"brand"`
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`

	DescriptionShort string  `json:"description_short"`
	DescriptionLong  *string `json:"description_long"`

	Price          float64  `json:"price"`
	Currency       string   `json:"currency"`
	CompareAtPrice *float64 `json:"compare_at_price"`
	IsOnSale       bool     `json:"is_on_sale"`

	Variants []ProductVariant `json:"variants"`
	Images   []ProductImage   `json:"images"`

	Ratings      *float64 `json:"ratings"`
	ReviewsCount *int     `json:"reviews_count"`

	LastSyncedAt time.Time `json:"last_synced_at"`
	SourceHash   string    `json:"source_hash"`

	Meta map[string]any `json:"meta"`
}

// NewCanonicalProduct creates an empty product for the given page URL.
// It assigns a fresh ProductID, derives SourceSite from the URL host and
// initializes every collection so that JSON output never contains null
// arrays.
func NewCanonicalProduct(sourceURL string, syncedAt time.Time) *CanonicalProduct {
	return &CanonicalProduct{
		ProductID:        uuid.NewString(),
		SourceSite:       SiteOf(sourceURL),
		SourceProductURL: sourceURL,
		Categories:       []string{},
		Tags:             []string{},
		Currency:         DefaultCurrency,
		Variants:         []ProductVariant{},
		Images:           []ProductImage{},
		LastSyncedAt:     syncedAt.UTC().Truncate(time.Millisecond),
		Meta:             map[string]any{},
	}
}

// Seal recomputes SourceHash from the current field values.
func (p *CanonicalProduct) Seal() error {
	hash, err := ComputeSourceHash(p)
	if err != nil {
		return err
	}
	p.SourceHash = hash
	return nil
}

// HasUnlicensedImages reports whether any image lacks permission_granted.
func (p *CanonicalProduct) HasUnlicensedImages() bool {
	for _, img := range p.Images {
		if img.LicensedForUse != LicensePermissionGranted {
			return true
		}
	}
	return false
}

// HasLongDescription reports whether a long-form description was found.
func (p *CanonicalProduct) HasLongDescription() bool {
	return p.DescriptionLong != nil && strings.TrimSpace(*p.DescriptionLong) != ""
}

// SiteOf returns the lowercased host of rawURL, or an empty string when
// the URL cannot be parsed.
func SiteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
