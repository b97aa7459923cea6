package domain

// FilterSet holds the structural signals found in a query.
// All string values are lowercased.
type FilterSet struct {
	// Brand is matched against catalog brands by substring containment.
	Brand string

	// CategoryKeywords narrow keyword-phase matching only.
	CategoryKeywords []string

	// PriceMax is an inclusive price ceiling.
	PriceMax *float64
}

// IsEmpty reports whether no signal was found.
func (f FilterSet) IsEmpty() bool {
	return f.Brand == "" && len(f.CategoryKeywords) == 0 && f.PriceMax == nil
}

// HasBrand reports whether a brand filter is present.
func (f FilterSet) HasBrand() bool {
	return f.Brand != ""
}
