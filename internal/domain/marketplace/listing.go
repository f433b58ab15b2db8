package marketplace

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/catalog"
)

var (
	ErrProductInvalid = errors.New("marketplace: product record is invalid for listing")
)

// ProductRecord is the read-only product collaborator consumed when building
// outbound payloads. The pipeline does not own or mutate product rows.
type ProductRecord struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	Currency    string
	ImageURLs   []string
	Category    string
	Gender      string
	Attributes  catalog.Attributes
	Brand       string
	Size        string
	Condition   string
}

// Validate checks the fields every marketplace requires before publishing.
func (p *ProductRecord) Validate() error {
	if p.Title == "" || p.Category == "" || p.Gender == "" {
		return ErrProductInvalid
	}
	if p.Price.IsNegative() || p.Price.IsZero() {
		return ErrProductInvalid
	}
	if len(p.ImageURLs) == 0 {
		return ErrProductInvalid
	}
	return nil
}

// ListingPayload is the outbound publish/update body sent to an adapter.
type ListingPayload struct {
	ProductID   uuid.UUID `json:"product_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	CategoryID  string    `json:"category_id"`
	ImageURLs   []string  `json:"image_urls"`
	Brand       string    `json:"brand,omitempty"`
	Size        string    `json:"size,omitempty"`
	Condition   string    `json:"condition,omitempty"`
}

// BuildListingPayload validates the product, resolves its marketplace
// category and assembles the outbound payload. It is invoked synchronously
// before the job is enqueued; a validation or resolution failure here is
// permanent and must not burn the job's retry budget.
func BuildListingPayload(resolver *catalog.Resolver, product *ProductRecord) ([]byte, error) {
	if err := product.Validate(); err != nil {
		return nil, err
	}

	categoryID, err := resolver.Resolve(product.Category, product.Gender, product.Attributes)
	if err != nil {
		return nil, err
	}

	payload := ListingPayload{
		ProductID:   product.ID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price.StringFixed(2),
		Currency:    product.Currency,
		CategoryID:  categoryID,
		ImageURLs:   product.ImageURLs,
		Brand:       product.Brand,
		Size:        product.Size,
		Condition:   product.Condition,
	}
	return json.Marshal(payload)
}
