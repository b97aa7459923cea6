package driven

import "github.com/custodia-labs/vetrina/internal/core/domain"

// CatalogStore exposes the ordered product records of one catalog build.
// The record at position i describes the vector at position i.
type CatalogStore interface {
	// Get returns the record at position. Fails with domain.ErrOutOfRange
	// when position is negative or not below Size.
	Get(position int) (domain.ProductRecord, error)

	// Size returns the number of records.
	Size() int

	// All returns every record in catalog order. Callers must not modify it.
	All() []domain.ProductRecord
}
