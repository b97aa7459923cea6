package domain

import (
	"maps"
	"time"
)

// VectorBackend names where catalog vectors are searched.
type VectorBackend string

const (
	// VectorBackendFlat scans the index file in process, exactly.
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendQdrant queries a Qdrant collection over gRPC.
	VectorBackendQdrant VectorBackend = "qdrant"
)

var backendLabels = map[VectorBackend]string{
	VectorBackendFlat:   "Flat (exact, in-process)",
	VectorBackendQdrant: "Qdrant (remote)",
}

func (b VectorBackend) IsValid() bool {
	_, ok := backendLabels[b]
	return ok
}

func (b VectorBackend) String() string { return string(b) }

// Description is the label shown by "settings show".
func (b VectorBackend) Description() string {
	if label, ok := backendLabels[b]; ok {
		return label
	}
	return "Unknown"
}

// AIProvider names a hosted or local model provider.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

// providerTraits records what each provider can do and needs.
var providerTraits = map[AIProvider]struct {
	local, embeds, chats bool
}{
	AIProviderOllama:    {local: true, embeds: true},
	AIProviderOpenAI:    {embeds: true},
	AIProviderAnthropic: {chats: true},
}

func (p AIProvider) IsValid() bool {
	_, ok := providerTraits[p]
	return ok
}

// RequiresAPIKey reports whether the provider is a hosted API.
func (p AIProvider) RequiresAPIKey() bool { return p.IsValid() && !p.IsLocal() }

// IsLocal reports whether the provider runs on this machine.
func (p AIProvider) IsLocal() bool { return providerTraits[p].local }

func (p AIProvider) String() string { return string(p) }

// CatalogSettings locate the paired index and metadata files.
type CatalogSettings struct {
	Dir          string
	IndexFile    string
	MetadataFile string

	// Dimensions is the expected vector length; zero skips the check.
	Dimensions int

	Backend VectorBackend
}

// QdrantSettings point at the remote backend: a gRPC host:port and a
// collection holding one point per catalog position.
type QdrantSettings struct {
	Address    string
	Collection string
}

// SearchSettings are retrieval defaults applied when a caller leaves
// options unset.
type SearchSettings struct {
	TopK          int
	MinSimilarity float64

	// ExtraBrands are added to the brand vocabulary learned from the catalog.
	ExtraBrands []string

	// CategoryKeywords, when non-empty, replace the built-in category words.
	CategoryKeywords []string
}

// EmbeddingSettings select the model that embeds queries and catalog text.
// BaseURL applies to Ollama, APIKey to OpenAI.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether an embedder can be built from e.
func (e EmbeddingSettings) IsConfigured() bool {
	if !providerTraits[e.Provider].embeds {
		return false
	}
	return !e.Provider.RequiresAPIKey() || e.APIKey != ""
}

// LLMSettings configure the assistant's language model.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// IsConfigured reports whether chat can be enabled.
func (l LLMSettings) IsConfigured() bool {
	return providerTraits[l.Provider].chats && l.APIKey != ""
}

// SessionSettings control conversation retention. Lifetime is the idle
// time before a session expires; MaxHistory is how many past messages are
// replayed to the model.
type SessionSettings struct {
	Lifetime   time.Duration
	MaxHistory int
}

// AppSettings is the resolved configuration of one run.
type AppSettings struct {
	Catalog   CatalogSettings
	Qdrant    QdrantSettings
	Search    SearchSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Session   SessionSettings
}

// embeddingModels maps known embedding models to their vector length.
var embeddingModels = map[string]int{
	"paraphrase-multilingual": 768,
	"nomic-embed-text":        768,
	"mxbai-embed-large":       1024,
	"text-embedding-3-small":  1536,
	"text-embedding-3-large":  3072,
}

// DefaultAppSettings embed with a local Ollama and leave chat off until an
// Anthropic key is supplied.
func DefaultAppSettings() AppSettings {
	embedModel := DefaultEmbeddingModels()[AIProviderOllama]
	return AppSettings{
		Catalog: CatalogSettings{
			IndexFile:    "products.index",
			MetadataFile: "products_metadata.json",
			Dimensions:   embeddingModels[embedModel],
			Backend:      VectorBackendFlat,
		},
		Qdrant: QdrantSettings{Address: "localhost:6334", Collection: "products"},
		Search: SearchSettings{TopK: DefaultTopK, MinSimilarity: DefaultMinSimilarity},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    embedModel,
			BaseURL:  "http://localhost:11434",
		},
		LLM: LLMSettings{
			Provider:    AIProviderAnthropic,
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		Session: SessionSettings{Lifetime: 30 * time.Minute, MaxHistory: 10},
	}
}

// DefaultEmbeddingModels returns the model used per embedding provider when
// none is configured.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "paraphrase-multilingual",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns a copy of the known model sizes.
func EmbeddingDimensions() map[string]int {
	return maps.Clone(embeddingModels)
}
