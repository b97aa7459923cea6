package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change catalog, search, embedding, LLM and session settings.

Settings live in config.toml inside the config directory. API keys can
also come from VETRINA_EMBEDDING_API_KEY and VETRINA_LLM_API_KEY.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Change a single setting by its dotted key. Lists are comma separated.

Examples:
  vetrina settings set search.top_k 10
  vetrina settings set catalog.backend qdrant
  vetrina settings set search.extra_brands "Alfaparf Milano, Olaplex"`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Restore a setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsUnset,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Long:  "List every setting key. Keys with a stored value are marked with *.",
	RunE:  runSettingsKeys,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Catalog]")
	cmd.Printf("  Directory: %s\n", orUnset(settings.Catalog.Dir))
	cmd.Printf("  Index file: %s\n", settings.Catalog.IndexFile)
	cmd.Printf("  Metadata file: %s\n", settings.Catalog.MetadataFile)
	cmd.Printf("  Dimensions: %d\n", settings.Catalog.Dimensions)
	cmd.Printf("  Backend: %s\n", settings.Catalog.Backend.Description())
	if settings.Catalog.Backend == "qdrant" {
		cmd.Printf("  Qdrant: %s/%s\n", settings.Qdrant.Address, settings.Qdrant.Collection)
	}
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Top K: %d\n", settings.Search.TopK)
	cmd.Printf("  Min similarity: %.2f\n", settings.Search.MinSimilarity)
	if len(settings.Search.ExtraBrands) > 0 {
		cmd.Printf("  Extra brands: %s\n", strings.Join(settings.Search.ExtraBrands, ", "))
	}
	if len(settings.Search.CategoryKeywords) > 0 {
		cmd.Printf("  Category keywords: %s\n", strings.Join(settings.Search.CategoryKeywords, ", "))
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider)
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider)
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	cmd.Printf("  API Key: %s\n", describeKey(settings.LLM.APIKey))
	cmd.Printf("  Max tokens: %d\n", settings.LLM.MaxTokens)
	cmd.Printf("  Temperature: %.2f\n", settings.LLM.Temperature)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Session]")
	cmd.Printf("  Lifetime: %s\n", settings.Session.Lifetime)
	cmd.Printf("  Max history: %d\n", settings.Session.MaxHistory)

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, "api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runSettingsUnset(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to unset %s: %w", args[0], err)
	}
	cmd.Printf("%s restored to default\n", args[0])
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	stored := make(map[string]bool)
	for _, k := range settingsService.Overrides() {
		stored[k] = true
	}
	for _, k := range settingsService.Keys() {
		if stored[k] {
			cmd.Printf("%s *\n", k)
			continue
		}
		cmd.Println(k)
	}
	return nil
}

// Helper functions.

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func describeKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
