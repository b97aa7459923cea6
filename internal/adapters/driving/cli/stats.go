package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output stats as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	stats := searchService.Stats()
	if statsJSON {
		return outputJSON(cmd, stats)
	}

	if !stats.Loaded {
		cmd.Println("Catalog: not loaded")
		cmd.Println("Run 'vetrina catalog build <products.json>' to create one.")
		return nil
	}

	cmd.Println("Catalog")
	cmd.Println("=======")
	cmd.Printf("  Products:     %d\n", stats.TotalProducts)
	cmd.Printf("  Index size:   %d\n", stats.IndexSize)
	cmd.Printf("  Brands:       %d\n", stats.KnownBrands)
	cmd.Printf("  Dimensions:   %d\n", stats.Dimensions)
	cmd.Printf("  Backend:      %s (%s)\n", stats.Backend, stats.Metric)
	cmd.Printf("  Model:        %s\n", stats.ModelName)
	return nil
}
