package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// filterSearchFactor inflates the semantic search size when post-filters
// are active, to make up for candidates the filters will drop.
const filterSearchFactor = 3

// CatalogSource yields the catalog serving the current query.
// *CatalogHolder is the production implementation.
type CatalogSource interface {
	Current() *IndexedCatalog
}

// SearchService is the hybrid product retriever. It runs an attribute
// keyword phase when the query names a brand, tops up with a semantic
// phase, and merges the two without duplicates.
type SearchService struct {
	catalogs CatalogSource
	embedder driven.EmbeddingService
	observer driven.SearchObserver
	tracer   trace.Tracer
}

// NewSearchService creates a new search service.
// The observer is optional (can be nil).
func NewSearchService(
	catalogs CatalogSource,
	embedder driven.EmbeddingService,
	observer driven.SearchObserver,
) *SearchService {
	return &SearchService{
		catalogs: catalogs,
		embedder: embedder,
		observer: observer,
		tracer:   otel.Tracer("github.com/custodia-labs/vetrina/internal/core/services"),
	}
}

// searchRun carries the state of a single query.
type searchRun struct {
	cat     *IndexedCatalog
	query   string
	opts    domain.SearchOptions
	filters domain.FilterSet
	event   driven.SearchEvent
}

// Search retrieves at most opts.TopK products for query.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (results []domain.ProductRecord, err error) {
	ctx, span := s.tracer.Start(ctx, "vetrina.search")
	defer span.End()

	run := &searchRun{query: strings.TrimSpace(query), opts: opts}
	start := time.Now()
	defer func() {
		run.event.Duration = time.Since(start)
		run.event.Outcome = outcomeOf(results, err)
		span.SetAttributes(
			attribute.Int("vetrina.results.keyword", run.event.KeywordHits),
			attribute.Int("vetrina.results.semantic", run.event.SemanticHits),
			attribute.Bool("vetrina.brand_fallback", run.event.BrandFallback),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if s.observer != nil {
			s.observer.ObserveSearch(run.event)
		}
	}()

	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	if err := validateSearch(run.query, opts); err != nil {
		logger.Debug("Rejected query: %v", err)
		return nil, err
	}

	run.cat = s.catalogs.Current()
	if run.cat == nil {
		return nil, domain.NewError("search", "", domain.ErrCatalogNotLoaded, nil)
	}
	if err := run.cat.Verify(); err != nil {
		logger.Warn("Catalog integrity check failed: %v", err)
		return nil, err
	}

	run.filters = resolveFilters(run.cat.Extractor().Extract(run.query), opts)
	logger.Debug("Filters: brand=%q categories=%v priceMax=%v",
		run.filters.Brand, run.filters.CategoryKeywords, formatPrice(run.filters.PriceMax))
	span.SetAttributes(
		attribute.String("vetrina.filter.brand", run.filters.Brand),
		attribute.Int("vetrina.top_k", opts.TopK),
	)

	var keyword []domain.ProductRecord
	if run.filters.HasBrand() {
		keyword = keywordPhase(run.cat.Store(), run.filters, opts.TopK)
		logger.Debug("Keyword phase: %d matches for brand %q", len(keyword), run.filters.Brand)
		if len(keyword) == 0 {
			run.event.BrandFallback = true
			logger.Info("No products for brand %q, falling back to semantic search", run.filters.Brand)
		}
	}
	run.event.KeywordHits = len(keyword)

	results = keyword
	if !run.filters.HasBrand() || len(keyword) < opts.TopK {
		semantic, err := s.semanticPhase(ctx, run, keyword)
		if err != nil {
			return nil, err
		}
		run.event.SemanticHits = len(semantic)
		results = append(results, semantic...)
	}

	if results == nil {
		results = []domain.ProductRecord{}
	}
	logger.Info("Final results: %d (%d keyword, %d semantic)",
		len(results), run.event.KeywordHits, run.event.SemanticHits)

	return results, nil
}

// Product looks a record up by ID in the serving catalog.
func (s *SearchService) Product(_ context.Context, id string) (domain.ProductRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ProductRecord{}, domain.NewError("product", "id", domain.ErrInvalidInput, nil)
	}
	cat := s.catalogs.Current()
	if cat == nil {
		return domain.ProductRecord{}, domain.NewError("product", id, domain.ErrCatalogNotLoaded, nil)
	}
	for _, rec := range cat.Store().All() {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.ProductRecord{}, domain.NewError("product", id, domain.ErrNotFound, nil)
}

// Stats describes the catalog currently serving queries.
func (s *SearchService) Stats() domain.CatalogStats {
	var stats domain.CatalogStats
	if cat := s.catalogs.Current(); cat != nil {
		stats = cat.Stats()
	}
	if s.embedder != nil {
		stats.ModelName = s.embedder.ModelName()
	}
	return stats
}

// validateSearch rejects a query before any index or embedding work.
func validateSearch(query string, opts domain.SearchOptions) error {
	switch {
	case query == "":
		return domain.NewError("search", "query", domain.ErrInvalidQuery, errors.New("query is empty"))
	case opts.TopK < 1:
		return domain.NewError("search", "top_k", domain.ErrInvalidQuery,
			fmt.Errorf("top_k must be at least 1, got %d", opts.TopK))
	case math.IsNaN(opts.MinSimilarity) || opts.MinSimilarity < 0 || opts.MinSimilarity > 1:
		return domain.NewError("search", "min_similarity", domain.ErrInvalidQuery,
			fmt.Errorf("min_similarity must be in [0,1], got %v", opts.MinSimilarity))
	case opts.PriceMax != nil && (math.IsNaN(*opts.PriceMax) || *opts.PriceMax < 0):
		return domain.NewError("search", "price_max", domain.ErrInvalidQuery,
			fmt.Errorf("price_max must be non-negative, got %v", *opts.PriceMax))
	}
	return nil
}

// resolveFilters overlays explicit caller arguments on the extracted filters,
// field by field.
func resolveFilters(extracted domain.FilterSet, opts domain.SearchOptions) domain.FilterSet {
	f := extracted
	if opts.Brand != "" {
		f.Brand = normaliseBrand(opts.Brand)
	}
	if opts.Category != "" {
		f.CategoryKeywords = []string{strings.ToLower(strings.TrimSpace(opts.Category))}
	}
	if opts.PriceMax != nil {
		f.PriceMax = opts.PriceMax
	}
	return f
}

// keywordPhase scans the whole store in catalog order and keeps records whose
// brand contains the brand filter and, when category keywords are present,
// whose name or category contains one of them. Matches are certain.
func keywordPhase(store driven.CatalogStore, f domain.FilterSet, limit int) []domain.ProductRecord {
	var matches []domain.ProductRecord
	for _, rec := range store.All() {
		if len(matches) >= limit {
			break
		}
		if !strings.Contains(normaliseBrand(rec.Brand), f.Brand) {
			continue
		}
		if !matchesCategoryKeywords(&rec, f.CategoryKeywords) {
			continue
		}
		if !withinPrice(&rec, f.PriceMax) {
			continue
		}
		matches = append(matches, rec.WithMatch(domain.KeywordScore, domain.MatchTypeKeyword))
	}
	return matches
}

func matchesCategoryKeywords(rec *domain.ProductRecord, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	name := strings.ToLower(rec.Name)
	category := strings.ToLower(rec.Category)
	for _, kw := range keywords {
		if strings.Contains(name, kw) || strings.Contains(category, kw) {
			return true
		}
	}
	return false
}

// withinPrice excludes records with an unknown price once a ceiling is set.
func withinPrice(rec *domain.ProductRecord, priceMax *float64) bool {
	if priceMax == nil {
		return true
	}
	return rec.HasPrice() && rec.Price <= *priceMax
}

// semanticPhase embeds the original query, searches the index and returns
// the candidates that survive the threshold and post-filters, best first,
// skipping ids already returned by the keyword phase.
func (s *SearchService) semanticPhase(
	ctx context.Context, run *searchRun, keyword []domain.ProductRecord,
) ([]domain.ProductRecord, error) {
	if s.embedder == nil {
		return nil, domain.NewError("search", "", domain.ErrEmbeddingUnavailable, nil)
	}
	defer logger.Timed("Semantic phase")()

	budget := run.opts.TopK - len(keyword)
	if budget <= 0 {
		return nil, nil
	}

	index := run.cat.Index()
	searchK := run.opts.TopK
	if run.filters.PriceMax != nil || run.opts.Category != "" || run.opts.Brand != "" {
		searchK *= filterSearchFactor
	}
	searchK += len(keyword)
	if searchK > index.Size() {
		searchK = index.Size()
	}
	if searchK == 0 {
		return nil, nil
	}

	vec, err := s.embedQuery(ctx, run.query, index.Dimensions())
	if err != nil {
		return nil, err
	}

	hits, err := index.Search(ctx, vec, searchK)
	if err != nil {
		logger.Warn("Vector index search failed: %v", err)
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	logger.Debug("Semantic phase: %d hits (k=%d)", len(hits), searchK)

	seen := make(map[string]struct{}, len(keyword))
	for i := range keyword {
		seen[keyword[i].ID] = struct{}{}
	}

	// A brand with no catalog products must not empty the semantic phase too.
	applyBrand := run.opts.Brand != "" && !run.event.BrandFallback

	metric := index.Metric()
	type candidate struct {
		rec      domain.ProductRecord
		position int
	}
	candidates := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		rec, err := run.cat.Store().Get(hit.Position)
		if err != nil {
			if errors.Is(err, domain.ErrOutOfRange) {
				run.event.SkippedHits++
				logger.Warn("Skipping vector hit at position %d: %v", hit.Position, err)
				continue
			}
			return nil, fmt.Errorf("hydrate hit %d: %w", hit.Position, err)
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}

		sim := metric.Similarity(hit.Score)
		if sim < run.opts.MinSimilarity {
			continue
		}
		if !withinPrice(&rec, run.filters.PriceMax) {
			continue
		}
		if run.opts.Category != "" && !containsFold(rec.Category, run.opts.Category) {
			continue
		}
		if applyBrand && !strings.Contains(normaliseBrand(rec.Brand), normaliseBrand(run.opts.Brand)) {
			continue
		}

		seen[rec.ID] = struct{}{}
		candidates = append(candidates, candidate{
			rec:      rec.WithMatch(sim, domain.MatchTypeSemantic),
			position: hit.Position,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.rec.SimilarityScore != b.rec.SimilarityScore {
			return a.rec.SimilarityScore > b.rec.SimilarityScore
		}
		return a.position < b.position
	})

	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	results := make([]domain.ProductRecord, len(candidates))
	for i := range candidates {
		results[i] = candidates[i].rec
	}
	return results, nil
}

// embedQuery embeds and unit-normalises the query.
func (s *SearchService) embedQuery(ctx context.Context, query string, dims int) ([]float32, error) {
	logger.Debug("Generating query embedding...")
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, domain.NewError("search", "", domain.ErrEmbeddingUnavailable, err)
	}
	if len(vec) != dims {
		return nil, domain.NewError("search", "embedding", domain.ErrDimensionMismatch,
			fmt.Errorf("model returned %d dimensions, index has %d", len(vec), dims))
	}
	if !Normalise(vec) {
		return nil, domain.NewError("search", "embedding", domain.ErrEmbeddingUnavailable,
			errors.New("model returned a zero vector"))
	}
	return vec, nil
}

// Normalise scales v to unit length in place. It reports false for a zero vector.
func Normalise(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

func formatPrice(p *float64) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *p)
}

// outcomeOf labels a finished search for metrics.
func outcomeOf(results []domain.ProductRecord, err error) string {
	switch {
	case err == nil && len(results) == 0:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, domain.ErrIndexCorrupt):
		return "index_corrupt"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "embedding_unavailable"
	case errors.Is(err, domain.ErrCatalogNotLoaded):
		return "not_loaded"
	default:
		return "error"
	}
}
