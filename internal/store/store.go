// Package store defines the errors and filters shared by the persistence
// backends (store/postgres, store/sqlite).
package store

import "errors"

var (
	// ErrNotFound is returned when a product, variant or alert does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateVariant is returned by InsertVariant when the unique
	// (product, color, ram, storage, store, link) index rejects the row.
	ErrDuplicateVariant = errors.New("duplicate price variant")
)

// ProductFilter selects a single product by id or, when ID is zero, by exact
// name (case-insensitive).
type ProductFilter struct {
	ID   int64
	Name string
}

// HistoryLimit caps history listings served to the API.
const HistoryLimit = 200
