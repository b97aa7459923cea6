package domain

// Search defaults.
const (
	// DefaultTopK is the number of products returned when the caller does not say.
	DefaultTopK = 20

	// DefaultMinSimilarity keeps every semantic match.
	DefaultMinSimilarity = 0.0
)

// SearchOptions configures a retrieval. Explicit Brand, Category and PriceMax
// take precedence over values extracted from the query text.
type SearchOptions struct {
	// TopK is the maximum number of results. Must be at least 1.
	TopK int

	// MinSimilarity drops semantic matches below this score. In [0,1].
	MinSimilarity float64

	// PriceMax is an inclusive price ceiling. Records with unknown price are excluded.
	PriceMax *float64

	// Category restricts results to categories containing this value.
	Category string

	// Brand restricts results to brands containing this value.
	Brand string
}

// DefaultSearchOptions returns options with the documented defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:          DefaultTopK,
		MinSimilarity: DefaultMinSimilarity,
	}
}

// HasExplicitFilters reports whether the caller passed any post-filter.
func (o SearchOptions) HasExplicitFilters() bool {
	return o.PriceMax != nil || o.Category != "" || o.Brand != ""
}

// CatalogStats describes the loaded catalog.
type CatalogStats struct {
	// TotalProducts is the catalog store size.
	TotalProducts int `json:"total_products"`

	// IndexSize is the vector count.
	IndexSize int `json:"index_size"`

	// ModelName is the embedding model used at query time.
	ModelName string `json:"model_name"`

	// Loaded is false until a paired catalog has been verified.
	Loaded bool `json:"loaded"`

	// KnownBrands is the size of the brand vocabulary.
	KnownBrands int `json:"known_brands"`

	// Dimensions is the vector dimension.
	Dimensions int `json:"dimensions"`

	// Backend names the vector index implementation.
	Backend string `json:"backend,omitempty"`

	// Metric is the index's native metric.
	Metric Metric `json:"metric,omitempty"`
}

// Float64 returns a pointer to v. Handy for optional filter values.
func Float64(v float64) *float64 {
	return &v
}
