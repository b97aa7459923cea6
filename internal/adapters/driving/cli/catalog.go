package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var catalogOut string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build and check the product catalog",
}

var catalogBuildCmd = &cobra.Command{
	Use:   "build [products.json]",
	Short: "Embed products and write the index and metadata",
	Long: `Reads a JSON array of products, embeds each one with the configured
embedding model and writes the vector index and the product metadata.
Either both files are replaced or neither is, so a running server can
reload the new catalog safely.`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogBuild,
}

var catalogVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Load the catalog from disk and check it",
	RunE:  runCatalogVerify,
}

func init() {
	catalogBuildCmd.Flags().StringVarP(&catalogOut, "out", "o", "", "output directory (default from settings)")
	catalogCmd.AddCommand(catalogBuildCmd)
	catalogCmd.AddCommand(catalogVerifyCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogBuild(cmd *cobra.Command, args []string) error {
	if catalogBuilder == nil || loadProducts == nil {
		return errors.New("catalog builder not configured: check embedding settings")
	}

	products, err := loadProducts(args[0])
	if err != nil {
		return fmt.Errorf("read products: %w", err)
	}

	dir := catalogOut
	if dir == "" {
		dir = catalogDir
	}
	if dir == "" {
		return errors.New("no output directory: pass --out or set catalog.dir")
	}

	cmd.Printf("Embedding %d products...\n", len(products))
	report, err := catalogBuilder.Build(cmd.Context(), products, dir)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	cmd.Println("Catalog built.")
	cmd.Printf("  Products:   %d\n", report.Products)
	cmd.Printf("  Model:      %s (%d dimensions)\n", report.Model, report.Dimensions)
	cmd.Printf("  Index:      %s\n", report.IndexPath)
	cmd.Printf("  Metadata:   %s\n", report.DataPath)
	return nil
}

func runCatalogVerify(cmd *cobra.Command, _ []string) error {
	if verifyCatalog == nil {
		return errors.New("catalog verification not configured")
	}

	stats, err := verifyCatalog(cmd.Context())
	if err != nil {
		return fmt.Errorf("catalog is not usable: %w", err)
	}

	cmd.Printf("Catalog OK: %d products, %d vectors of %d dimensions (%s)\n",
		stats.TotalProducts, stats.IndexSize, stats.Dimensions, stats.Backend)
	return nil
}
