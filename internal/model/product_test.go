package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedProduct returns a product with deterministic IDs for hashing tests.
func fixedProduct() *CanonicalProduct {
	p := NewCanonicalProduct("https://example.test/products/a",
		time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC))
	p.ProductID = "p1"
	return p
}

// TestCanonicalJSON tests the exact canonical serialization.
func TestCanonicalJSON(t *testing.T) {
	t.Parallel()

	got, err := CanonicalJSON(fixedProduct())
	require.NoError(t, err)

	want := `{"brand":null,"categories":[],"compare_at_price":null,"currency":"INR",` +
		`"description_long":null,"description_short":"","images":[],"is_on_sale":false,` +
		`"last_synced_at":"2024-01-02T03:04:05.678Z","meta":{},"price":0,"product_id":"p1",` +
		`"ratings":null,"reviews_count":null,"source_product_id":null,` +
		`"source_product_url":"https://example.test/products/a","source_site":"example.test",` +
		`"tags":[],"title":"","variants":[]}`
	assert.Equal(t, want, string(got))
}

// TestComputeSourceHash tests hash determinism and sensitivity.
func TestComputeSourceHash(t *testing.T) {
	t.Parallel()

	t.Run("identical fields yield identical hashes", func(t *testing.T) {
		t.Parallel()

		a, b := fixedProduct(), fixedProduct()
		a.Title, b.Title = "Shirt", "Shirt"
		a.Meta["raw_html_bytes"] = 1024
		b.Meta["raw_html_bytes"] = 1024

		ha, err := ComputeSourceHash(a)
		require.NoError(t, err)
		hb, err := ComputeSourceHash(b)
		require.NoError(t, err)
		assert.Equal(t, ha, hb)
		assert.Len(t, ha, 64)
	})

	t.Run("changing price changes the hash", func(t *testing.T) {
		t.Parallel()

		a, b := fixedProduct(), fixedProduct()
		b.Price = 19.99

		ha, _ := ComputeSourceHash(a)
		hb, _ := ComputeSourceHash(b)
		assert.NotEqual(t, ha, hb)
	})

	t.Run("existing source_hash does not affect the result", func(t *testing.T) {
		t.Parallel()

		a, b := fixedProduct(), fixedProduct()
		b.SourceHash = "stale"

		ha, _ := ComputeSourceHash(a)
		hb, _ := ComputeSourceHash(b)
		assert.Equal(t, ha, hb, "source_hash must be excluded from the digest")
	})

	t.Run("html characters are not escaped", func(t *testing.T) {
		t.Parallel()

		p := fixedProduct()
		p.Title = "Tee <Black> & White"

		got, err := CanonicalJSON(p)
		require.NoError(t, err)
		assert.Contains(t, string(got), `"title":"Tee <Black> & White"`)
	})

	t.Run("seal stores the hash", func(t *testing.T) {
		t.Parallel()

		p := fixedProduct()
		require.NoError(t, p.Seal())
		want, _ := ComputeSourceHash(p)
		assert.Equal(t, want, p.SourceHash)
	})
}

// TestNewCanonicalProduct tests constructor defaults.
func TestNewCanonicalProduct(t *testing.T) {
	t.Parallel()

	p := NewCanonicalProduct("https://Shop.Example.test/products/x", time.Now())

	assert.NotEmpty(t, p.ProductID)
	assert.Equal(t, "shop.example.test", p.SourceSite)
	assert.Equal(t, DefaultCurrency, p.Currency)
	assert.False(t, p.IsOnSale)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	for _, key := range []string{`"tags":[]`, `"images":[]`, `"variants":[]`, `"description_long":null`} {
		assert.Contains(t, string(data), key)
	}
}

// TestLicenseStatus tests parsing and validation of license statuses.
func TestLicenseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    LicenseStatus
		wantErr bool
	}{
		{name: "empty is unknown", input: "", want: LicenseUnknown},
		{name: "granted", input: "permission_granted", want: LicensePermissionGranted},
		{name: "case insensitive", input: "Pending_Review", want: LicensePendingReview},
		{name: "invalid", input: "maybe", want: LicenseUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseLicenseStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestNewLicensingEntry tests licensing flag derivation.
func TestNewLicensingEntry(t *testing.T) {
	t.Parallel()

	t.Run("unknown image is flagged", func(t *testing.T) {
		t.Parallel()

		p := fixedProduct()
		p.Images = append(p.Images, NewProductImage("https://cdn.example.test/a.jpg", ""))

		e := NewLicensingEntry(p)
		assert.True(t, e.ImagesFlagged)
		assert.False(t, e.DescriptionLongPresent)
	})

	t.Run("granted images are not flagged", func(t *testing.T) {
		t.Parallel()

		p := fixedProduct()
		img := NewProductImage("https://cdn.example.test/a.jpg", "front")
		img.LicensedForUse = LicensePermissionGranted
		p.Images = append(p.Images, img)
		long := "A long description"
		p.DescriptionLong = &long

		e := NewLicensingEntry(p)
		assert.False(t, e.ImagesFlagged)
		assert.True(t, e.DescriptionLongPresent)
	})

	t.Run("product without images is not flagged", func(t *testing.T) {
		t.Parallel()

		assert.False(t, NewLicensingEntry(fixedProduct()).ImagesFlagged)
	})
}
