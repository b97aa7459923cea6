package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/catalog/jsonfile"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

// --- Fixtures ---

const testDims = 4

func basis(i int) []float32 {
	v := make([]float32, testDims)
	v[i] = 1
	return v
}

// testProducts is a small catalog. Vectors line up by position.
func testProducts() []domain.ProductRecord {
	return []domain.ProductRecord{
		{ID: "p0", Brand: "Wella SP", Category: "Shampoo", Name: "Hydrate Shampoo", Price: 18.5, URL: "https://shop.test/p0"},
		{ID: "p1", Brand: "Wella", Category: "Olio", Name: "Oil Reflections Olio", Price: 35, URL: "https://shop.test/p1"},
		{ID: "p2", Brand: "Davines", Category: "Maschera", Name: "Nounou Maschera", Price: 32, URL: "https://shop.test/p2"},
		{ID: "p3", Brand: "Kerastase", Category: "Olio", Name: "Elixir Ultime", Price: 55, URL: "https://shop.test/p3"},
		{ID: "p4", Brand: "Tangle Teezer", Category: "Spazzola", Name: "Original Spazzola", URL: "https://shop.test/p4"},
	}
}

func testVectors() [][]float32 {
	half := float32(1 / math.Sqrt2)
	return [][]float32{
		basis(0),
		basis(1),
		basis(2),
		{0, half, 0, half},
		basis(3),
	}
}

func newTestCatalog(t *testing.T) *IndexedCatalog {
	t.Helper()
	return newCatalogFrom(t, testProducts(), testVectors(), CatalogOptions{})
}

func newCatalogFrom(
	t *testing.T, products []domain.ProductRecord, vectors [][]float32, opts CatalogOptions,
) *IndexedCatalog {
	t.Helper()
	index, err := flat.New(domain.MetricInnerProduct, testDims, vectors)
	require.NoError(t, err)
	store, err := jsonfile.NewStore(products)
	require.NoError(t, err)
	cat, err := LoadIndexedCatalog(index, store, opts)
	require.NoError(t, err)
	return cat
}

func ids(records []domain.ProductRecord) []string {
	out := make([]string, len(records))
	for i := range records {
		out[i] = records[i].ID
	}
	return out
}

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts found in vectors get that vector; anything else gets fallback.
type mockEmbeddingService struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	embedErr error
	dims     int
	calls    []string
	batches  [][]string
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, texts)
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = m.vectorFor(text)
	}
	return out, nil
}

func (m *mockEmbeddingService) vectorFor(text string) []float32 {
	src, ok := m.vectors[text]
	if !ok {
		src = m.fallback
	}
	// Callers normalise in place.
	v := make([]float32, len(src))
	copy(v, src)
	return v
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return testDims
}

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

// recordingObserver implements driven.SearchObserver for testing.
type recordingObserver struct {
	mu     sync.Mutex
	events []driven.SearchEvent
}

func (o *recordingObserver) ObserveSearch(e driven.SearchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) last() driven.SearchEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		return driven.SearchEvent{}
	}
	return o.events[len(o.events)-1]
}

// stubIndex implements driven.VectorIndex with canned hits.
type stubIndex struct {
	size int
	hits []driven.VectorHit
	err  error
}

func (s *stubIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *stubIndex) Size() int { return s.size }

func (s *stubIndex) Dimensions() int { return testDims }

func (s *stubIndex) Metric() domain.Metric { return domain.MetricInnerProduct }

func (s *stubIndex) Close() error { return nil }

// mockSearchService implements driving.SearchService for chat tests.
type mockSearchService struct {
	mu       sync.Mutex
	results  []domain.ProductRecord
	err      error
	queries  []string
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockSearchService) Stats() domain.CatalogStats { return domain.CatalogStats{} }

func (m *mockSearchService) Product(_ context.Context, id string) (domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.results {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.ProductRecord{}, domain.ErrNotFound
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu       sync.Mutex
	reply    string
	err      error
	systems  []string
	messages [][]driven.ChatMessage
	opts     []driven.ChatOptions
}

func (m *mockLLMService) Chat(
	_ context.Context, system string, messages []driven.ChatMessage, opts driven.ChatOptions,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systems = append(m.systems, system)
	m.messages = append(m.messages, messages)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", errors.New("unknown prompt")
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// wordCounter implements driven.TokenCounter as one token per word.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}
