package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoCategoryMapping = errors.New("catalog: no category mapping found")
	ErrInvalidMapping    = errors.New("catalog: invalid category mapping")
)

// Attribute match weights. Fit, length and rise identify the garment shape
// and dominate; the remaining descriptors refine within a shape.
const (
	weightFit          = 10
	weightLength       = 10
	weightRise         = 10
	weightMaterial     = 5
	weightPattern      = 3
	weightNeckline     = 3
	weightSleeveLength = 2
)

// CategoryMapping is one reference row translating an internal category plus
// descriptive attributes into a marketplace-specific category identifier.
// Rows are edited out of band and read-only to the pipeline. A nil attribute
// field means "any".
type CategoryMapping struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// Category is the internal category key, e.g. "jeans"
	Category string
	// Gender is the internal gender key, e.g. "men"
	Gender       string
	Fit          *string
	Length       *string
	Rise         *string
	Material     *string
	Pattern      *string
	Neckline     *string
	SleeveLength *string
	// MarketplaceCategoryID is the target category identifier
	MarketplaceCategoryID string
	// IsDefault flags the fallback row for its (category, gender) pair
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the mapping's required fields.
func (m *CategoryMapping) Validate() error {
	if m.Category == "" || m.Gender == "" || m.MarketplaceCategoryID == "" {
		return ErrInvalidMapping
	}
	return nil
}

// Attributes is the optional descriptor set of a resolver query. Empty
// fields are treated as not provided.
type Attributes struct {
	Fit          string
	Length       string
	Rise         string
	Material     string
	Pattern      string
	Neckline     string
	SleeveLength string
}

// compatible reports whether a row field accepts the queried value: a nil
// row field means "any", otherwise the values must match exactly.
func compatible(rowValue *string, queried string) bool {
	if queried == "" || rowValue == nil {
		return true
	}
	return *rowValue == queried
}

// matches reports whether a row field matches (not merely accepts) the
// queried value. Only matches contribute to the score.
func matches(rowValue *string, queried string) bool {
	return queried != "" && rowValue != nil && *rowValue == queried
}

// score sums the weights of the row's matching attributes for the query.
func (m *CategoryMapping) score(attrs Attributes) int {
	s := 0
	if matches(m.Fit, attrs.Fit) {
		s += weightFit
	}
	if matches(m.Length, attrs.Length) {
		s += weightLength
	}
	if matches(m.Rise, attrs.Rise) {
		s += weightRise
	}
	if matches(m.Material, attrs.Material) {
		s += weightMaterial
	}
	if matches(m.Pattern, attrs.Pattern) {
		s += weightPattern
	}
	if matches(m.Neckline, attrs.Neckline) {
		s += weightNeckline
	}
	if matches(m.SleeveLength, attrs.SleeveLength) {
		s += weightSleeveLength
	}
	return s
}

// compatibleWith reports whether the row is compatible with every provided
// attribute of the query.
func (m *CategoryMapping) compatibleWith(attrs Attributes) bool {
	return compatible(m.Fit, attrs.Fit) &&
		compatible(m.Length, attrs.Length) &&
		compatible(m.Rise, attrs.Rise) &&
		compatible(m.Material, attrs.Material) &&
		compatible(m.Pattern, attrs.Pattern) &&
		compatible(m.Neckline, attrs.Neckline) &&
		compatible(m.SleeveLength, attrs.SleeveLength)
}
