package driven

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// VectorIndex provides nearest-neighbour search over a fixed set of vectors.
// Positions are dense, starting at zero, and line up with CatalogStore positions.
// Implementations are read-only once loaded and safe for concurrent Search calls.
type VectorIndex interface {
	// Search returns up to k hits ordered best first. Ties are broken by
	// ascending position. Fails with domain.ErrDimensionMismatch when the
	// query length differs from Dimensions, and domain.ErrIndexUnavailable
	// when the index is not loaded.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Size returns the number of vectors.
	Size() int

	// Dimensions returns the vector length.
	Dimensions() int

	// Metric returns the native scoring of Score values.
	Metric() domain.Metric

	// Close releases resources. Subsequent searches fail with domain.ErrIndexUnavailable.
	Close() error
}

// VectorHit represents a nearest-neighbour result.
type VectorHit struct {
	// Position is the vector's slot, equal to its catalog position.
	Position int

	// Score is the raw backend score in the index's Metric.
	Score float64
}
