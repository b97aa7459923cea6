package services

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// CatalogOptions configures LoadIndexedCatalog.
type CatalogOptions struct {
	// ExpectedDimensions fails the load when the index dimension differs. Zero skips the check.
	ExpectedDimensions int

	// ExtraBrands are curated names added to the catalog's brand vocabulary.
	ExtraBrands []string

	// CategoryKeywords replaces DefaultCategoryKeywords when non-empty.
	CategoryKeywords []string

	// Backend names the vector index implementation for stats.
	Backend string
}

// IndexedCatalog pairs one VectorIndex with one CatalogStore.
// It is immutable after LoadIndexedCatalog returns and safe for concurrent use.
type IndexedCatalog struct {
	index     driven.VectorIndex
	store     driven.CatalogStore
	brands    []string
	extractor *FilterExtractor
	backend   string
}

// LoadIndexedCatalog verifies the pair and derives the brand vocabulary.
// It fails with domain.ErrIndexCorrupt when the vector count and record count
// differ and with domain.ErrDimensionMismatch when the index dimension is not
// the expected one. A catalog is never returned half-ready.
func LoadIndexedCatalog(
	index driven.VectorIndex, store driven.CatalogStore, opts CatalogOptions,
) (*IndexedCatalog, error) {
	if index == nil {
		return nil, domain.NewError("load catalog", "index", domain.ErrIndexUnavailable, nil)
	}
	if store == nil {
		return nil, domain.NewError("load catalog", "metadata", domain.ErrNotFound, nil)
	}

	if index.Size() != store.Size() {
		return nil, domain.NewError("load catalog", "", domain.ErrIndexCorrupt,
			fmt.Errorf("index has %d vectors, metadata has %d records", index.Size(), store.Size()))
	}
	if opts.ExpectedDimensions > 0 && index.Dimensions() != opts.ExpectedDimensions {
		return nil, domain.NewError("load catalog", "dimensions", domain.ErrDimensionMismatch,
			fmt.Errorf("index is %d-dimensional, expected %d", index.Dimensions(), opts.ExpectedDimensions))
	}

	brands := KnownBrands(store.All(), opts.ExtraBrands)
	cat := &IndexedCatalog{
		index:     index,
		store:     store,
		brands:    brands,
		extractor: NewFilterExtractor(brands, opts.CategoryKeywords),
		backend:   opts.Backend,
	}

	logger.Info("Catalog loaded: %d products, %d brands, %d dimensions",
		store.Size(), len(brands), index.Dimensions())

	return cat, nil
}

// Index returns the vector index.
func (c *IndexedCatalog) Index() driven.VectorIndex { return c.index }

// Store returns the catalog store.
func (c *IndexedCatalog) Store() driven.CatalogStore { return c.store }

// Brands returns the lowercased brand vocabulary in sorted order.
func (c *IndexedCatalog) Brands() []string { return c.brands }

// Extractor returns the filter extractor bound to this catalog's vocabulary.
func (c *IndexedCatalog) Extractor() *FilterExtractor { return c.extractor }

// Verify re-checks index and store parity.
func (c *IndexedCatalog) Verify() error {
	if n, m := c.index.Size(), c.store.Size(); n != m {
		return domain.NewError("verify catalog", "", domain.ErrIndexCorrupt,
			fmt.Errorf("index has %d vectors, metadata has %d records", n, m))
	}
	return nil
}

// Stats describes the catalog. ModelName is filled in by the caller.
func (c *IndexedCatalog) Stats() domain.CatalogStats {
	return domain.CatalogStats{
		TotalProducts: c.store.Size(),
		IndexSize:     c.index.Size(),
		Loaded:        true,
		KnownBrands:   len(c.brands),
		Dimensions:    c.index.Dimensions(),
		Backend:       c.backend,
		Metric:        c.index.Metric(),
	}
}

// Close releases the vector index.
func (c *IndexedCatalog) Close() error {
	return c.index.Close()
}

// KnownBrands returns the distinct, trimmed, lowercased brand values of
// records plus extra, sorted.
func KnownBrands(records []domain.ProductRecord, extra []string) []string {
	seen := make(map[string]struct{})
	for i := range records {
		if b := normaliseBrand(records[i].Brand); b != "" {
			seen[b] = struct{}{}
		}
	}
	for _, b := range extra {
		if b = normaliseBrand(b); b != "" {
			seen[b] = struct{}{}
		}
	}

	brands := make([]string, 0, len(seen))
	for b := range seen {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	return brands
}

func normaliseBrand(b string) string {
	return strings.Join(strings.Fields(strings.ToLower(b)), " ")
}

// CatalogHolder publishes the IndexedCatalog currently serving queries.
// Readers take one snapshot per query; a rebuilt catalog replaces the old one
// in a single atomic store, so no reader sees a mixed pair.
type CatalogHolder struct {
	current atomic.Pointer[IndexedCatalog]
}

// NewCatalogHolder creates a holder. cat may be nil until the first load.
func NewCatalogHolder(cat *IndexedCatalog) *CatalogHolder {
	h := &CatalogHolder{}
	if cat != nil {
		h.current.Store(cat)
	}
	return h
}

// Current returns the serving catalog, or nil before the first load.
func (h *CatalogHolder) Current() *IndexedCatalog {
	return h.current.Load()
}

// Swap installs cat and returns the catalog it replaced.
func (h *CatalogHolder) Swap(cat *IndexedCatalog) *IndexedCatalog {
	return h.current.Swap(cat)
}

// Loaded reports whether a catalog is serving.
func (h *CatalogHolder) Loaded() bool {
	return h.current.Load() != nil
}
