package model

// LicensingEntry is one row of the licensing report handed to the manual
// image rights review.
type LicensingEntry struct {
	// SourceProductURL identifies the product page.
	SourceProductURL string `json:"source_product_url"`

	// Title is the extracted product title.
	Title string `json:"title"`

	// ImagesFlagged is true when any image lacks permission_granted.
	ImagesFlagged bool `json:"images_flagged"`

	// DescriptionLongPresent is true when a long description was captured.
	DescriptionLongPresent bool `json:"description_long_present"`

	// RightsHints lists copyright or author strings embedded in the images.
	// Only populated when image inspection is enabled.
	RightsHints []RightsHint `json:"rights_hints,omitempty"`
}

// RightsHint is a rights-related metadata value read from one image.
type RightsHint struct {
	ImageURL string `json:"image_url"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
}

// NewLicensingEntry derives the report row for a product.
func NewLicensingEntry(p *CanonicalProduct) LicensingEntry {
	return LicensingEntry{
		SourceProductURL:       p.SourceProductURL,
		Title:                  p.Title,
		ImagesFlagged:          p.HasUnlicensedImages(),
		DescriptionLongPresent: p.HasLongDescription(),
	}
}

// LicensingSummary aggregates the licensing report for human readers.
type LicensingSummary struct {
	Products         int `json:"products"`
	FlaggedProducts  int `json:"flagged_products"`
	ImagesReviewed   int `json:"images_reviewed"`
	ProductsWithHint int `json:"products_with_hints"`
}

// SummarizeLicensing counts flagged products and rights hints.
func SummarizeLicensing(entries []LicensingEntry, products []*CanonicalProduct) LicensingSummary {
	s := LicensingSummary{Products: len(entries)}
	for _, e := range entries {
		if e.ImagesFlagged {
			s.FlaggedProducts++
		}
		if len(e.RightsHints) > 0 {
			s.ProductsWithHint++
		}
	}
	for _, p := range products {
		s.ImagesReviewed += len(p.Images)
	}
	return s
}
