package driving

import (
	"context"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// SearchService retrieves products for a natural-language query.
type SearchService interface {
	// Search returns at most opts.TopK products: keyword matches first in
	// catalog order, then semantic matches by descending similarity.
	// An empty slice with a nil error means nothing qualified.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.ProductRecord, error)

	// Product returns the catalog record with the given ID, or
	// domain.ErrNotFound.
	Product(ctx context.Context, id string) (domain.ProductRecord, error)

	// Stats describes the catalog currently serving queries.
	Stats() domain.CatalogStats
}
