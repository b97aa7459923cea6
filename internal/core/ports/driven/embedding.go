package driven

import "context"

// EmbeddingService turns text into vectors. Queries must be embedded with
// the model that built the catalog, or similarities are meaningless; the
// catalog records the model name so the mismatch can be reported.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order. The catalog builder uses it;
	// implementations split oversized batches themselves.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every returned vector.
	Dimensions() int

	ModelName() string

	// Ping fails when the provider is unreachable or lacks the model.
	Ping(ctx context.Context) error

	Close() error
}
