// Package variant holds the wildcard-or-equal predicate shared by variant
// matching and alert evaluation.
package variant

import (
	"strings"

	"smartshop/price-service/internal/model"
)

// Filter selects variants by color, RAM and storage. A nil dimension is a
// wildcard; a set dimension must equal the candidate's value (color
// case-insensitively).
type Filter struct {
	Color     *string
	RAMGB     *int
	StorageGB *int
}

// Matches reports whether a variant with the given attributes satisfies f.
func (f Filter) Matches(color string, ramGB, storageGB int) bool {
	if f.Color != nil && !strings.EqualFold(strings.TrimSpace(*f.Color), strings.TrimSpace(color)) {
		return false
	}
	if f.RAMGB != nil && *f.RAMGB != ramGB {
		return false
	}
	if f.StorageGB != nil && *f.StorageGB != storageGB {
		return false
	}
	return true
}

// IsWildcard reports whether f places no constraint at all.
func (f Filter) IsWildcard() bool {
	return f.Color == nil && f.RAMGB == nil && f.StorageGB == nil
}

// FindMatchingVariant returns the first variant, in stored order, that
// satisfies f. Variants that differ only by store are disambiguated by the
// caller before matching.
func FindMatchingVariant(variants []model.PriceVariant, f Filter) (*model.PriceVariant, bool) {
	for i := range variants {
		v := &variants[i]
		if f.Matches(v.Color, v.RAMGB, v.StorageGB) {
			return v, true
		}
	}
	return nil, false
}

// ForAlert returns the filter stored on an alert.
func ForAlert(a model.PriceAlert) Filter {
	return Filter{Color: a.Color, RAMGB: a.RAMGB, StorageGB: a.StorageGB}
}

// String returns a pointer to s, for building filters inline.
func String(s string) *string { return &s }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
