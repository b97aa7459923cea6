package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyCatalogDir        = "catalog.dir"
	keyCatalogIndexFile  = "catalog.index_file"
	keyCatalogDataFile   = "catalog.metadata_file"
	keyCatalogDims       = "catalog.dimensions"
	keyCatalogBackend    = "catalog.backend"
	keyQdrantAddress     = "qdrant.address"
	keyQdrantCollection  = "qdrant.collection"
	keySearchTopK        = "search.top_k"
	keySearchMinSim      = "search.min_similarity"
	keySearchExtraBrands = "search.extra_brands"
	keySearchCategories  = "search.category_keywords"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMMaxTokens      = "llm.max_tokens"
	keyLLMTemperature    = "llm.temperature"
	keySessionLifetime   = "session.lifetime_minutes"
	keySessionMaxHistory = "session.max_history"
)

// Environment overrides for secrets.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvEmbeddingAPIKey = "VETRINA_EMBEDDING_API_KEY"
	EnvLLMAPIKey       = "VETRINA_LLM_API_KEY"
)

// settingKind describes how a key's string value is parsed.
type settingKind int

const (
	kindString settingKind = iota
	kindInt
	kindFloat
	kindList
)

var settingKinds = map[string]settingKind{
	keyCatalogDir:        kindString,
	keyCatalogIndexFile:  kindString,
	keyCatalogDataFile:   kindString,
	keyCatalogDims:       kindInt,
	keyCatalogBackend:    kindString,
	keyQdrantAddress:     kindString,
	keyQdrantCollection:  kindString,
	keySearchTopK:        kindInt,
	keySearchMinSim:      kindFloat,
	keySearchExtraBrands: kindList,
	keySearchCategories:  kindList,
	keyEmbedProvider:     kindString,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keyLLMProvider:       kindString,
	keyLLMModel:          kindString,
	keyLLMAPIKey:         kindString,
	keyLLMMaxTokens:      kindInt,
	keyLLMTemperature:    kindFloat,
	keySessionLifetime:   kindInt,
	keySessionMaxHistory: kindInt,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings, with defaults for unset keys.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Catalog: domain.CatalogSettings{
			Dir:          s.getString(keyCatalogDir, d.Catalog.Dir),
			IndexFile:    s.getString(keyCatalogIndexFile, d.Catalog.IndexFile),
			MetadataFile: s.getString(keyCatalogDataFile, d.Catalog.MetadataFile),
			Dimensions:   s.getInt(keyCatalogDims, d.Catalog.Dimensions),
			Backend:      domain.VectorBackend(s.getString(keyCatalogBackend, d.Catalog.Backend.String())),
		},
		Qdrant: domain.QdrantSettings{
			Address:    s.getString(keyQdrantAddress, d.Qdrant.Address),
			Collection: s.getString(keyQdrantCollection, d.Qdrant.Collection),
		},
		Search: domain.SearchSettings{
			TopK:             s.getInt(keySearchTopK, d.Search.TopK),
			MinSimilarity:    s.getFloat(keySearchMinSim, d.Search.MinSimilarity),
			ExtraBrands:      s.configStore.GetStringSlice(keySearchExtraBrands),
			CategoryKeywords: s.configStore.GetStringSlice(keySearchCategories),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.getString(keyEmbedBaseURL, d.Embedding.BaseURL),
			APIKey:   s.secret(keyEmbedAPIKey, EnvEmbeddingAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:       s.getString(keyLLMModel, d.LLM.Model),
			APIKey:      s.secret(keyLLMAPIKey, EnvLLMAPIKey),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
		},
		Session: domain.SessionSettings{
			Lifetime:   time.Duration(s.getInt(keySessionLifetime, int(d.Session.Lifetime/time.Minute))) * time.Minute,
			MaxHistory: s.getInt(keySessionMaxHistory, d.Session.MaxHistory),
		},
	}

	if !settings.Catalog.Backend.IsValid() {
		return nil, fmt.Errorf("%w: %s must be flat or qdrant, got %q",
			domain.ErrInvalidInput, keyCatalogBackend, settings.Catalog.Backend)
	}

	return settings, nil
}

// Set parses value according to key and persists it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number: %v", domain.ErrInvalidInput, key, err)
		}
		parsed = f
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	default:
		parsed = value
	}

	if err := validateSetting(key, parsed); err != nil {
		return err
	}
	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Unset removes a stored value so its default applies again.
func (s *SettingsService) Unset(key string) error {
	if _, ok := settingKinds[key]; !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
	if err := s.configStore.Unset(key); err != nil {
		return fmt.Errorf("unset %s: %w", key, err)
	}
	return nil
}

// Overrides lists the recognised keys that have a stored value.
func (s *SettingsService) Overrides() []string {
	var keys []string
	for _, k := range s.configStore.Keys() {
		if _, ok := settingKinds[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Keys lists the recognised setting keys in sorted order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func validateSetting(key string, value any) error {
	switch key {
	case keyCatalogBackend:
		if !domain.VectorBackend(value.(string)).IsValid() {
			return fmt.Errorf("%w: %s must be flat or qdrant", domain.ErrInvalidInput, key)
		}
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value.(string)).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, value)
		}
	case keySearchTopK, keySessionMaxHistory, keyLLMMaxTokens:
		if value.(int) < 1 {
			return fmt.Errorf("%w: %s must be at least 1", domain.ErrInvalidInput, key)
		}
	case keySearchMinSim:
		if v := value.(float64); v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1]", domain.ErrInvalidInput, key)
		}
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if v, ok := s.configStore.GetFloat(key); ok {
		return v
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

// secret prefers the environment over the config file.
func (s *SettingsService) secret(key, env string) string {
	if v := s.getenv(env); v != "" {
		return v
	}
	return s.configStore.GetString(key)
}
