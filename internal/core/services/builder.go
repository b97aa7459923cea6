package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/core/ports/driving"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure CatalogBuilder implements the interface.
var _ driving.CatalogBuilder = (*CatalogBuilder)(nil)

// Builder defaults.
const (
	DefaultBuildBatchSize      = 100
	DefaultBuildRequestsPerSec = 2.0
)

// Embedding text budgets, in runes.
const (
	embedDescriptionBudget = 500
	embedIngredientsBudget = 300
	embedBenefitsBudget    = 200
)

// BuilderConfig holds catalog builder settings.
type BuilderConfig struct {
	// BatchSize is the number of products per embedding request.
	BatchSize int

	// RequestsPerSecond throttles embedding requests. Zero selects the default.
	RequestsPerSecond float64

	// Normaliser cleans product text before embedding. Optional.
	Normaliser driven.ProductNormaliser
}

// CatalogBuilder embeds products and writes a paired artifact.
type CatalogBuilder struct {
	embedder driven.EmbeddingService
	writer   driven.CatalogWriter
	limiter  *rate.Limiter
	cfg      BuilderConfig
}

// NewCatalogBuilder creates a catalog builder.
func NewCatalogBuilder(embedder driven.EmbeddingService, writer driven.CatalogWriter, cfg BuilderConfig) *CatalogBuilder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBuildBatchSize
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultBuildRequestsPerSec
	}
	return &CatalogBuilder{
		embedder: embedder,
		writer:   writer,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:      cfg,
	}
}

// Build embeds every product and writes the artifact into dir.
// Vectors are unit-normalised so inner product equals cosine similarity.
func (b *CatalogBuilder) Build(
	ctx context.Context, products []domain.ProductRecord, dir string,
) (*driving.BuildReport, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("build catalog: %w: no products", domain.ErrInvalidInput)
	}
	if err := validateProducts(products); err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	if b.cfg.Normaliser != nil {
		cleaned := make([]domain.ProductRecord, len(products))
		for i := range products {
			cleaned[i] = b.cfg.Normaliser.Normalise(products[i])
		}
		products = cleaned
	}

	logger.Section("Catalog Build")
	logger.Info("Embedding %d products with %s", len(products), b.embedder.ModelName())
	defer logger.Timed("Catalog build")()

	vectors := make([][]float32, 0, len(products))
	for start := 0; start < len(products); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(products))

		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}

		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, EmbeddingText(&products[i]))
		}

		batch, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed products %d-%d: %w", start, end-1, errors.Join(domain.ErrEmbeddingUnavailable, err))
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed products %d-%d: got %d vectors for %d texts",
				start, end-1, len(batch), len(texts))
		}

		for i, vec := range batch {
			if len(vec) != b.embedder.Dimensions() {
				return nil, domain.NewError("build catalog", products[start+i].ID, domain.ErrDimensionMismatch,
					fmt.Errorf("got %d dimensions, model reports %d", len(vec), b.embedder.Dimensions()))
			}
			if !Normalise(vec) {
				return nil, domain.NewError("build catalog", products[start+i].ID, domain.ErrEmbeddingUnavailable,
					errors.New("zero vector"))
			}
			vectors = append(vectors, vec)
		}
		logger.Debug("Embedded %d/%d products", end, len(products))
	}

	indexPath, dataPath, err := b.writer.Write(ctx, dir, products, vectors)
	if err != nil {
		return nil, fmt.Errorf("write catalog: %w", err)
	}
	logger.Info("Catalog written: %s, %s", indexPath, dataPath)

	return &driving.BuildReport{
		Products:   len(products),
		Dimensions: b.embedder.Dimensions(),
		Model:      b.embedder.ModelName(),
		IndexPath:  indexPath,
		DataPath:   dataPath,
	}, nil
}

// validateProducts requires a unique, non-empty id on every record.
func validateProducts(products []domain.ProductRecord) error {
	seen := make(map[string]int, len(products))
	for i := range products {
		id := products[i].ID
		if id == "" {
			return domain.NewError("validate products", fmt.Sprintf("products[%d].id", i), domain.ErrInvalidInput,
				errors.New("missing id"))
		}
		if prev, dup := seen[id]; dup {
			return domain.NewError("validate products", fmt.Sprintf("products[%d].id", i), domain.ErrInvalidInput,
				fmt.Errorf("duplicate id %q (first at %d)", id, prev))
		}
		seen[id] = i
	}
	return nil
}

// EmbeddingText composes the text embedded for a product: name, brand,
// category, then truncated description, ingredients and benefits,
// technologies and list price.
func EmbeddingText(p *domain.ProductRecord) string {
	parts := []string{
		p.Name,
		"Brand: " + p.Brand,
		"Category: " + p.Category,
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		parts = append(parts, cut(d, embedDescriptionBudget))
	}
	if v := strings.TrimSpace(p.Ingredients); v != "" {
		parts = append(parts, "Ingredients: "+cut(v, embedIngredientsBudget))
	}
	if v := strings.TrimSpace(p.Benefits); v != "" {
		parts = append(parts, "Benefits: "+cut(v, embedBenefitsBudget))
	}
	if v := strings.TrimSpace(p.Technologies); v != "" {
		parts = append(parts, "Technologies: "+v)
	}

	price := p.RegularPrice
	if price <= 0 {
		price = p.Price
	}
	if price > 0 {
		parts = append(parts, fmt.Sprintf("Price: €%.2f (%s)", price, domain.PriceRange(price)))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// cut keeps the first n runes of s.
func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
