package driven

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// CatalogWriter persists a paired index and metadata artifact.
// Implementations must replace both files or neither, so a serving
// process never observes a half-written pair.
type CatalogWriter interface {
	// Write stores vectors and products, position-aligned, into dir and
	// returns the paths of the index and metadata files.
	Write(ctx context.Context, dir string, products []domain.ProductRecord, vectors [][]float32) (indexPath, dataPath string, err error)
}
