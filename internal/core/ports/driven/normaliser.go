package driven

import "github.com/custodia-labs/vetrina/internal/core/domain"

// ProductNormaliser cleans scraped product text before it is embedded and stored.
// Implementations must not change the product ID.
type ProductNormaliser interface {
	// Normalise returns a cleaned copy of p.
	Normalise(p domain.ProductRecord) domain.ProductRecord
}
