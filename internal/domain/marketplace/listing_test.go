package marketplace

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resell/backend/internal/domain/catalog"
)

func strPtr(s string) *string { return &s }

func testResolver() *catalog.Resolver {
	fit := strPtr("Skinny")
	return catalog.NewResolver([]catalog.CategoryMapping{
		{ID: uuid.New(), Category: "jeans", Gender: "men", MarketplaceCategoryID: "vinted-257", IsDefault: true},
		{ID: uuid.New(), Category: "jeans", Gender: "men", Fit: fit, MarketplaceCategoryID: "vinted-258"},
	})
}

func validProduct() *ProductRecord {
	return &ProductRecord{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		Title:     "Levi's 511 Jeans",
		Price:     decimal.NewFromFloat(34.5),
		Currency:  "EUR",
		ImageURLs: []string{"https://img.example/1.jpg"},
		Category:  "jeans",
		Gender:    "men",
		Brand:     "Levi's",
		Size:      "32/32",
		Condition: "very_good",
	}
}

func TestBuildListingPayload(t *testing.T) {
	product := validProduct()
	product.Attributes = catalog.Attributes{Fit: "Skinny"}

	raw, err := BuildListingPayload(testResolver(), product)
	require.NoError(t, err)

	var payload ListingPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, product.ID, payload.ProductID)
	assert.Equal(t, "34.50", payload.Price)
	assert.Equal(t, "vinted-258", payload.CategoryID)
	assert.Equal(t, "Levi's", payload.Brand)
}

func TestBuildListingPayload_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProductRecord)
	}{
		{"missing title", func(p *ProductRecord) { p.Title = "" }},
		{"zero price", func(p *ProductRecord) { p.Price = decimal.Zero }},
		{"negative price", func(p *ProductRecord) { p.Price = decimal.NewFromInt(-1) }},
		{"no images", func(p *ProductRecord) { p.ImageURLs = nil }},
		{"missing category", func(p *ProductRecord) { p.Category = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			product := validProduct()
			tt.mutate(product)

			_, err := BuildListingPayload(testResolver(), product)
			assert.ErrorIs(t, err, ErrProductInvalid)
		})
	}
}

func TestBuildListingPayload_UnmappableCategory(t *testing.T) {
	product := validProduct()
	product.Category = "kilt"

	_, err := BuildListingPayload(testResolver(), product)
	assert.ErrorIs(t, err, catalog.ErrNoCategoryMapping)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected error
	}{
		{200, nil},
		{201, nil},
		{400, ErrAdapterRejected},
		{401, ErrAdapterAuthFailed},
		{403, ErrAdapterAuthFailed},
		{404, ErrAdapterRejected},
		{429, ErrAdapterRateLimited},
		{500, ErrAdapterUnavailable},
		{503, ErrAdapterUnavailable},
	}

	for _, tt := range tests {
		err := ClassifyStatus(tt.status)
		if tt.expected == nil {
			assert.NoError(t, err, tt.status)
		} else {
			assert.ErrorIs(t, err, tt.expected, tt.status)
		}
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrAdapterUnavailable))
	assert.True(t, Retryable(ErrAdapterRateLimited))
	assert.True(t, Retryable(ErrAdapterAuthFailed))
	assert.True(t, Retryable(ErrCredentialsNotFound))
	assert.False(t, Retryable(ErrAdapterRejected))
	assert.False(t, Retryable(ErrProductInvalid))
}
