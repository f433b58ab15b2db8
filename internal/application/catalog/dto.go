package catalog

import "github.com/resell/backend/internal/domain/catalog"

// ResolveCategoryRequest represents a diagnostic category resolution query
type ResolveCategoryRequest struct {
	Category     string `json:"category" form:"category" binding:"required"`
	Gender       string `json:"gender" form:"gender" binding:"required"`
	Fit          string `json:"fit" form:"fit"`
	Length       string `json:"length" form:"length"`
	Rise         string `json:"rise" form:"rise"`
	Material     string `json:"material" form:"material"`
	Pattern      string `json:"pattern" form:"pattern"`
	Neckline     string `json:"neckline" form:"neckline"`
	SleeveLength string `json:"sleeve_length" form:"sleeve_length"`
}

func (r ResolveCategoryRequest) attributes() catalog.Attributes {
	return catalog.Attributes{
		Fit:          r.Fit,
		Length:       r.Length,
		Rise:         r.Rise,
		Material:     r.Material,
		Pattern:      r.Pattern,
		Neckline:     r.Neckline,
		SleeveLength: r.SleeveLength,
	}
}

// ResolveCategoryResponse represents a successful resolution
type ResolveCategoryResponse struct {
	Category              string `json:"category"`
	Gender                string `json:"gender"`
	MarketplaceCategoryID string `json:"marketplace_category_id"`
}

// DefaultViolationResponse represents one single-default invariant violation
type DefaultViolationResponse struct {
	Category string `json:"category"`
	Gender   string `json:"gender"`
	// Kind is NO_DEFAULT or MULTIPLE_DEFAULTS
	Kind string `json:"kind"`
}
