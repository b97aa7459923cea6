// Package cli provides the cobra command tree for Vetrina.
package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
)

// Runner is a long-running background task such as the catalog reloader.
type Runner interface {
	Run(ctx context.Context) error
}

// Services holds everything the commands need. Optional fields may be nil;
// commands that need them report that they are not configured.
type Services struct {
	Search    driving.SearchService
	Chat      driving.ChatService
	Settings  driving.SettingsService
	Builder   driving.CatalogBuilder
	Scheduler driving.Scheduler

	// Reloader watches the catalog directory for `mcp serve --watch`.
	Reloader Runner

	// Metrics serves Prometheus metrics on the HTTP transport.
	Metrics http.Handler

	// LoadProducts reads raw products for `catalog build`.
	LoadProducts func(path string) ([]domain.ProductRecord, error)

	// VerifyCatalog loads the artifact from disk and checks it.
	VerifyCatalog func(ctx context.Context) (domain.CatalogStats, error)

	// CatalogDir is where `catalog build` writes by default.
	CatalogDir string
}

// ServiceFactory builds the services for the given config directory.
// The returned cleanup releases them.
type ServiceFactory func(configDir string) (*Services, func(), error)

// Services used by commands. Set by the factory or directly in tests.
var (
	searchService   driving.SearchService
	chatService     driving.ChatService
	settingsService driving.SettingsService
	catalogBuilder  driving.CatalogBuilder
	scheduler       driving.Scheduler
	reloader        Runner
	metricsHandler  http.Handler
	loadProducts    func(path string) ([]domain.ProductRecord, error)
	verifyCatalog   func(ctx context.Context) (domain.CatalogStats, error)
	catalogDir      string
)

var (
	factory ServiceFactory
	cleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "vetrina",
	Short: "Hybrid product search and shop assistant",
	Long: `Vetrina finds hair-care products in a shop catalog by brand, category,
price and free-text need, and answers shoppers with an LLM grounded on the
products it found.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print retrieval details to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.vetrina)")
}

// SetServiceFactory registers how services are built once flags are parsed.
func SetServiceFactory(f ServiceFactory) {
	factory = f
}

// SetServices installs services directly.
func SetServices(s *Services) {
	searchService = s.Search
	chatService = s.Chat
	settingsService = s.Settings
	catalogBuilder = s.Builder
	scheduler = s.Scheduler
	reloader = s.Reloader
	metricsHandler = s.Metrics
	loadProducts = s.LoadProducts
	verifyCatalog = s.VerifyCatalog
	catalogDir = s.CatalogDir
}

// SetVersion sets the version reported by `vetrina version`.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command and releases services afterwards.
func Execute() error {
	defer func() {
		if cleanup != nil {
			cleanup()
			cleanup = nil
		}
	}()
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if factory == nil || cmd == versionCmd {
		return nil
	}

	s, release, err := factory(configDir)
	if err != nil {
		return err
	}
	SetServices(s)
	cleanup = release
	return nil
}
