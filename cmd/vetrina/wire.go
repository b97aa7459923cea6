package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/ai"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/catalog/artifact"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/catalog/jsonfile"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/config/file"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/tokens/tiktoken"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/vetrina/internal/adapters/driving/cli"
	"github.com/custodia-labs/vetrina/internal/adapters/driving/watch"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/services"
	"github.com/custodia-labs/vetrina/internal/logger"
	"github.com/custodia-labs/vetrina/internal/normalisers/html"
)

// buildServices wires adapters to core services. Missing optional pieces
// (embedding, LLM, catalog) degrade the matching commands instead of failing.
func buildServices(configDir string) (*cli.Services, func(), error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".vetrina")
	}

	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("read settings: %w", err)
	}
	if settings.Catalog.Dir == "" {
		settings.Catalog.Dir = filepath.Join(configDir, "catalog")
	}

	var closers []func() error
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Shutdown: %v", err)
			}
		}
	}

	observer := prometheus.NewObserver()

	var embedder driven.EmbeddingService
	if svc, err := ai.CreateEmbeddingService(&settings.Embedding, settings.Catalog.Dimensions); err != nil {
		logger.Warn("Embedding disabled: %v", err)
	} else {
		embedder = svc
		closers = append(closers, svc.Close)
	}

	catalogOpts := services.CatalogOptions{
		ExpectedDimensions: settings.Catalog.Dimensions,
		ExtraBrands:        settings.Search.ExtraBrands,
		CategoryKeywords:   settings.Search.CategoryKeywords,
		Backend:            settings.Catalog.Backend.String(),
	}
	loadCatalog := func(ctx context.Context) (*services.IndexedCatalog, error) {
		index, store, err := artifact.Load(ctx, settings.Catalog, settings.Qdrant)
		if err != nil {
			return nil, err
		}
		cat, err := services.LoadIndexedCatalog(index, store, catalogOpts)
		if err != nil {
			index.Close()
			return nil, err
		}
		return cat, nil
	}

	holder := services.NewCatalogHolder(nil)
	if cat, err := loadCatalog(context.Background()); err != nil {
		logger.Warn("Catalog not loaded: %v", err)
		observer.ObserveReload(0, err)
	} else {
		holder.Swap(cat)
		observer.ObserveReload(cat.Store().Size(), nil)
	}
	closers = append(closers, func() error {
		if cat := holder.Current(); cat != nil {
			return cat.Close()
		}
		return nil
	})

	searchService := services.NewSearchService(holder, embedder, observer)

	var builder *services.CatalogBuilder
	if embedder != nil {
		writer, closeWriter, err := catalogWriter(settings)
		if err != nil {
			logger.Warn("Catalog builder disabled: %v", err)
		} else {
			closers = append(closers, closeWriter)
			builder = services.NewCatalogBuilder(embedder, writer, services.BuilderConfig{
				Normaliser: html.New(),
			})
		}
	}

	sessions := openSessions(configDir, &closers)

	var chatService *services.ChatService
	if llm, err := ai.CreateLLMService(&settings.LLM); err != nil {
		logger.Debug("Chat disabled: %v", err)
	} else {
		closers = append(closers, llm.Close)
		prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
		if err != nil {
			release()
			return nil, nil, err
		}
		conversation := services.NewConversationManager(0, tiktoken.NewCounter(tiktoken.DefaultEncoding))
		chatService = services.NewChatService(searchService, llm, sessions, prompts, conversation, services.ChatConfig{
			TopK:            settings.Search.TopK,
			MaxHistory:      settings.Session.MaxHistory,
			SessionLifetime: settings.Session.Lifetime,
			MaxTokens:       settings.LLM.MaxTokens,
			Temperature:     settings.LLM.Temperature,
		})
	}

	s := &cli.Services{
		Search:    searchService,
		Settings:  settingsService,
		Scheduler: services.NewScheduler(sessions, settings.Session.Lifetime, 0),
		Reloader: watch.New(holder, loadCatalog, observer, watch.Config{
			Dir:   settings.Catalog.Dir,
			Files: []string{settings.Catalog.IndexFile, settings.Catalog.MetadataFile},
		}),
		Metrics: observer.Handler(),
		LoadProducts: func(path string) ([]domain.ProductRecord, error) {
			store, err := jsonfile.Load(path)
			if err != nil {
				return nil, err
			}
			return store.All(), nil
		},
		VerifyCatalog: func(ctx context.Context) (domain.CatalogStats, error) {
			cat, err := loadCatalog(ctx)
			if err != nil {
				return domain.CatalogStats{}, err
			}
			defer cat.Close()
			if err := cat.Verify(); err != nil {
				return domain.CatalogStats{}, err
			}
			stats := cat.Stats()
			if embedder != nil {
				stats.ModelName = embedder.ModelName()
			}
			return stats, nil
		},
		CatalogDir: settings.Catalog.Dir,
	}
	// Leave interface fields nil rather than holding typed nil pointers.
	if builder != nil {
		s.Builder = builder
	}
	if chatService != nil {
		s.Chat = chatService
	}

	return s, release, nil
}

// catalogWriter returns the artifact writer for the configured backend.
func catalogWriter(settings *domain.AppSettings) (driven.CatalogWriter, func() error, error) {
	if settings.Catalog.Backend != domain.VectorBackendQdrant {
		return artifact.NewFlatWriter(settings.Catalog), func() error { return nil }, nil
	}
	index, err := qdrant.Dial(settings.Qdrant.Address, settings.Qdrant.Collection)
	if err != nil {
		return nil, nil, err
	}
	return &artifact.QdrantWriter{Index: index, MetadataFile: settings.Catalog.MetadataFile}, index.Close, nil
}

// openSessions prefers the SQLite store and falls back to memory.
func openSessions(configDir string, closers *[]func() error) driven.SessionStore {
	store, err := sqlite.NewStore(filepath.Join(configDir, "data"))
	if err != nil {
		logger.Warn("Session database unavailable, sessions will not persist: %v", err)
		return memory.NewSessionStore()
	}
	*closers = append(*closers, store.Close)
	return store.SessionStore()
}
