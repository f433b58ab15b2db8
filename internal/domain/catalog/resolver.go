package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Resolver maps (category, gender, optional descriptors) to a marketplace
// category identifier by weighted best-match scoring over an in-memory
// snapshot of the mapping table. The snapshot is immutable after
// construction, so Resolve is pure and safe to call concurrently from many
// dispatcher workers.
type Resolver struct {
	// byKey indexes mapping rows by (category, gender)
	byKey map[string][]CategoryMapping
}

// NewResolver builds a resolver over a snapshot of mapping rows.
func NewResolver(mappings []CategoryMapping) *Resolver {
	byKey := make(map[string][]CategoryMapping)
	for _, m := range mappings {
		k := mappingKey(m.Category, m.Gender)
		byKey[k] = append(byKey[k], m)
	}
	return &Resolver{byKey: byKey}
}

func mappingKey(category, gender string) string {
	return strings.ToLower(category) + "|" + strings.ToLower(gender)
}

// Resolve returns the marketplace category identifier for the query, or
// ErrNoCategoryMapping when neither a scored candidate nor a default row
// exists. The caller must not guess a category on failure.
func (r *Resolver) Resolve(category, gender string, attrs Attributes) (string, error) {
	rows := r.byKey[mappingKey(category, gender)]
	if len(rows) == 0 {
		return "", ErrNoCategoryMapping
	}

	var (
		best      *CategoryMapping
		bestScore = -1
	)
	for i := range rows {
		row := &rows[i]
		if !row.compatibleWith(attrs) {
			continue
		}
		s := row.score(attrs)
		if s > bestScore || (s == bestScore && best != nil && row.IsDefault && !best.IsDefault) {
			best = row
			bestScore = s
		}
	}

	if best != nil {
		return best.MarketplaceCategoryID, nil
	}

	// No row survived filtering: fall back to the default row for the pair.
	for i := range rows {
		if rows[i].IsDefault {
			return rows[i].MarketplaceCategoryID, nil
		}
	}
	return "", ErrNoCategoryMapping
}

// DefaultViolation describes a data-quality problem in the mapping snapshot:
// a (category, gender) pair without exactly one default row.
type DefaultViolation struct {
	Category string
	Gender   string
	// Kind is NO_DEFAULT or MULTIPLE_DEFAULTS
	Kind string
}

func (v DefaultViolation) String() string {
	return fmt.Sprintf("%s: (%s, %s)", v.Kind, v.Category, v.Gender)
}

// ValidateDefaults reports every (category, gender) pair violating the
// single-default invariant. A data-quality check, not a runtime guarantee:
// Resolve still works over a violating snapshot.
func (r *Resolver) ValidateDefaults() []DefaultViolation {
	var out []DefaultViolation
	for _, rows := range r.byKey {
		defaults := 0
		for i := range rows {
			if rows[i].IsDefault {
				defaults++
			}
		}
		if defaults == 1 {
			continue
		}
		kind := "NO_DEFAULT"
		if defaults > 1 {
			kind = "MULTIPLE_DEFAULTS"
		}
		out = append(out, DefaultViolation{
			Category: rows[0].Category,
			Gender:   rows[0].Gender,
			Kind:     kind,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Gender < out[j].Gender
	})
	return out
}
