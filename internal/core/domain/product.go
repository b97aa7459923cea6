package domain

// MatchType records which retrieval phase produced a result.
type MatchType string

// Retrieval phases.
const (
	// MatchTypeKeyword marks an attribute match (brand, category). Always certain.
	MatchTypeKeyword MatchType = "keyword"

	// MatchTypeSemantic marks a nearest-neighbour match from the vector index.
	MatchTypeSemantic MatchType = "semantic"
)

// String returns the string representation.
func (m MatchType) String() string {
	return string(m)
}

// KeywordScore is the similarity attached to every keyword-phase match.
const KeywordScore = 1.0

// ProductRecord is one catalog entry. The record at catalog position i
// describes the vector at index position i.
type ProductRecord struct {
	// ID is unique and stable across catalog rebuilds.
	ID string `json:"id"`

	// URL is the product page.
	URL string `json:"url,omitempty"`

	// Brand is free-form and often carries a sub-line qualifier ("Wella SP").
	Brand string `json:"brand"`

	// Category is the product category as published by the shop.
	Category string `json:"category"`

	// Subcategory is optional.
	Subcategory string `json:"subcategory,omitempty"`

	// Price is the selling price. Zero means unknown.
	Price float64 `json:"price"`

	// RegularPrice is the list price before promotions.
	RegularPrice float64 `json:"regular_price,omitempty"`

	// PromoPrice is the discounted price, if any.
	PromoPrice float64 `json:"promo_price,omitempty"`

	// DiscountPercent is the advertised discount.
	DiscountPercent float64 `json:"discount_percent,omitempty"`

	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Ingredients       string `json:"ingredients,omitempty"`
	UsageInstructions string `json:"usage_instructions,omitempty"`
	Benefits          string `json:"benefits,omitempty"`
	Technologies      string `json:"technologies,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`

	// SimilarityScore is set at query time. 1.0 for keyword matches,
	// cosine similarity in [0,1] for semantic matches.
	SimilarityScore float64 `json:"similarity_score,omitempty"`

	// MatchType is set at query time.
	MatchType MatchType `json:"match_type,omitempty"`
}

// HasPrice reports whether the record carries a known price.
func (p *ProductRecord) HasPrice() bool {
	return p.Price > 0
}

// EffectivePrice returns the promo price when one is set, otherwise the price.
func (p *ProductRecord) EffectivePrice() float64 {
	if p.PromoPrice > 0 && p.PromoPrice < p.Price {
		return p.PromoPrice
	}
	return p.Price
}

// WithMatch returns a copy of the record annotated with a score and match type.
func (p ProductRecord) WithMatch(score float64, match MatchType) ProductRecord {
	p.SimilarityScore = score
	p.MatchType = match
	return p
}

// PriceRange returns the coarse price bucket used in embedding text
// and stats: "0-20", "20-50", "50-100" or "100+".
func PriceRange(price float64) string {
	switch {
	case price < 20:
		return "0-20"
	case price < 50:
		return "20-50"
	case price < 100:
		return "50-100"
	default:
		return "100+"
	}
}
