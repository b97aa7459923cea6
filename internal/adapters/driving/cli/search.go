package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

var (
	searchTopK          int
	searchMinSimilarity float64
	searchPriceMax      float64
	searchCategory      string
	searchBrand         string
	searchJSON          bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the product catalog",
	Long: `Performs hybrid retrieval over the product catalog.
Brand names in the query select products by attribute first (keyword
matches); semantic search over product embeddings fills the remaining slots.

Examples:
  vetrina search "shampoo wella per capelli ricci"
  vetrina search "maschera nutriente" --price-max 30 -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "maximum number of products (default from settings)")
	searchCmd.Flags().Float64Var(&searchMinSimilarity, "min-similarity", 0, "drop semantic matches below this score")
	searchCmd.Flags().Float64Var(&searchPriceMax, "price-max", 0, "maximum price in euro")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only categories containing this text")
	searchCmd.Flags().StringVar(&searchBrand, "brand", "", "only brands containing this text")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := searchDefaults()
	if cmd.Flags().Changed("top-k") {
		opts.TopK = searchTopK
	}
	if cmd.Flags().Changed("min-similarity") {
		opts.MinSimilarity = searchMinSimilarity
	}
	if cmd.Flags().Changed("price-max") {
		opts.PriceMax = domain.Float64(searchPriceMax)
	}
	opts.Category = searchCategory
	opts.Brand = searchBrand

	results, err := searchService.Search(cmd.Context(), args[0], opts)
	if err != nil {
		return describeSearchError(err)
	}

	if searchJSON {
		return outputJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

// searchDefaults reads top_k and min_similarity from settings when available.
func searchDefaults() domain.SearchOptions {
	opts := domain.DefaultSearchOptions()
	if settingsService == nil {
		return opts
	}
	settings, err := settingsService.Get()
	if err != nil {
		return opts
	}
	if settings.Search.TopK > 0 {
		opts.TopK = settings.Search.TopK
	}
	opts.MinSimilarity = settings.Search.MinSimilarity
	return opts
}

// describeSearchError keeps "nothing found" and "could not search" apart.
func describeSearchError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return fmt.Errorf("invalid query: %w", err)
	case errors.Is(err, domain.ErrCatalogNotLoaded):
		return fmt.Errorf("no catalog loaded, run 'vetrina catalog build' first: %w", err)
	default:
		return fmt.Errorf("search temporarily unavailable: %w", err)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.ProductRecord) error {
	if len(results) == 0 {
		cmd.Println("No products found.")
		return nil
	}

	cmd.Printf("Found %d products:\n", len(results))
	cmd.Println()
	printProducts(cmd, results)
	return nil
}

func printProducts(cmd *cobra.Command, results []domain.ProductRecord) {
	for i := range results {
		p := &results[i]
		cmd.Printf("  [%d] %s (%s)\n", i+1, p.Name, p.Brand)
		cmd.Printf("      %s | %s | %s %.2f\n", p.Category, formatEuro(p), p.MatchType, p.SimilarityScore)
		cmd.Printf("      ID: %s\n", p.ID)
		if p.URL != "" {
			cmd.Printf("      %s\n", p.URL)
		}
		cmd.Println()
	}
}

// formatEuro shows the list price, which price filters compare against,
// with any discount alongside.
func formatEuro(p *domain.ProductRecord) string {
	if !p.HasPrice() {
		return "price n/a"
	}
	if promo := p.EffectivePrice(); promo != p.Price {
		return fmt.Sprintf("€%.2f (promo €%.2f)", p.Price, promo)
	}
	return fmt.Sprintf("€%.2f", p.Price)
}
