package driving

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// CatalogBuilder produces a paired index and metadata artifact from raw products.
type CatalogBuilder interface {
	// Build embeds products and writes the artifact into dir.
	// Either both files are replaced or neither is.
	Build(ctx context.Context, products []domain.ProductRecord, dir string) (*BuildReport, error)
}

// BuildReport summarises a catalog build.
type BuildReport struct {
	Products   int
	Dimensions int
	Model      string
	IndexPath  string
	DataPath   string
}
