package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

// Character budgets for long text fields in the model context.
const (
	descriptionBudget  = 500
	ingredientsBudget  = 300
	usageBudget        = 200
	truncationEllipsis = "..."
)

// NoProductsText is the context rendered for an empty result.
const NoProductsText = "No products found."

// FormatProductsForContext renders products as numbered text blocks for a
// language model. At most maxProducts are rendered; maxProducts <= 0 renders all.
func FormatProductsForContext(products []domain.ProductRecord, maxProducts int) string {
	if len(products) == 0 {
		return NoProductsText
	}
	if maxProducts > 0 && len(products) > maxProducts {
		products = products[:maxProducts]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# AVAILABLE PRODUCTS (%d results)\n\n", len(products))

	for i := range products {
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeProduct(&b, i+1, &products[i])
	}
	return b.String()
}

func writeProduct(b *strings.Builder, n int, p *domain.ProductRecord) {
	fmt.Fprintf(b, "%d. **%s** (ID: %s)\n", n, p.Name, p.ID)
	fmt.Fprintf(b, "   Brand: %s\n", p.Brand)
	fmt.Fprintf(b, "   Category: %s\n", p.Category)
	if p.Subcategory != "" {
		fmt.Fprintf(b, "   Subcategory: %s\n", p.Subcategory)
	}

	if p.HasPrice() {
		fmt.Fprintf(b, "   Price: €%.2f\n", p.Price)
	} else {
		b.WriteString("   Price: n/a\n")
	}
	if p.PromoPrice > 0 {
		fmt.Fprintf(b, "   Promo price: €%.2f\n", p.PromoPrice)
		if p.DiscountPercent > 0 {
			fmt.Fprintf(b, "   Discount: %g%%\n", p.DiscountPercent)
		}
	}

	writeField(b, "Description", p.Description, descriptionBudget)
	writeField(b, "Ingredients", p.Ingredients, ingredientsBudget)
	writeField(b, "Usage", p.UsageInstructions, usageBudget)

	if p.ImageURL != "" {
		fmt.Fprintf(b, "   Image: %s\n", p.ImageURL)
	}
	fmt.Fprintf(b, "   Link: %s\n", p.URL)
	fmt.Fprintf(b, "   Relevance: %.2f (%s)", p.SimilarityScore, matchLabel(p.MatchType))
}

func writeField(b *strings.Builder, label, value string, budget int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, "   **%s:** %s\n", label, Truncate(value, budget))
}

func matchLabel(m domain.MatchType) string {
	if m == "" {
		return "unknown"
	}
	return m.String()
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - len(truncationEllipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + truncationEllipsis
}
