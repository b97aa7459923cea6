package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/vetrina/internal/adapters/driven/catalog/jsonfile"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/vectorindex/flat"
	"github.com/custodia-labs/vetrina/internal/adapters/driven/vectorindex/qdrant"
	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure writers implement the interface.
var (
	_ driven.CatalogWriter = (*FlatWriter)(nil)
	_ driven.CatalogWriter = (*QdrantWriter)(nil)
)

// Paths returns the index and metadata paths for settings.
func Paths(s domain.CatalogSettings) (indexPath, dataPath string) {
	return filepath.Join(s.Dir, s.IndexFile), filepath.Join(s.Dir, s.MetadataFile)
}

// FlatWriter writes a flat index file next to the metadata file.
type FlatWriter struct {
	IndexFile    string
	MetadataFile string
	Metric       domain.Metric
}

// NewFlatWriter creates a writer using the configured file names.
func NewFlatWriter(s domain.CatalogSettings) *FlatWriter {
	return &FlatWriter{IndexFile: s.IndexFile, MetadataFile: s.MetadataFile, Metric: domain.MetricInnerProduct}
}

// Write stores the index first and the metadata last. Both files are
// replaced atomically and the index header carries the digest of the
// metadata it belongs to, so a reader that sees only one of them rejects the
// pair instead of serving mismatched positions.
func (w *FlatWriter) Write(
	ctx context.Context, dir string, products []domain.ProductRecord, vectors [][]float32,
) (string, string, error) {
	if err := checkPair(products, vectors); err != nil {
		return "", "", err
	}
	ix, err := flat.New(w.Metric, len(vectors[0]), vectors)
	if err != nil {
		return "", "", fmt.Errorf("build index: %w", err)
	}
	data, err := jsonfile.Marshal(products)
	if err != nil {
		return "", "", err
	}
	ix.SetPair(jsonfile.Digest(data))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create catalog dir: %w", err)
	}
	indexPath := filepath.Join(dir, w.IndexFile)
	dataPath := filepath.Join(dir, w.MetadataFile)
	if err := ix.WriteFile(indexPath); err != nil {
		return "", "", err
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if err := jsonfile.WriteEncoded(dataPath, data); err != nil {
		return "", "", err
	}
	return indexPath, dataPath, nil
}

// QdrantWriter uploads vectors to a collection and writes the metadata file.
type QdrantWriter struct {
	Index        *qdrant.Index
	MetadataFile string
}

// Write publishes a stamped collection generation, then the metadata file.
func (w *QdrantWriter) Write(
	ctx context.Context, dir string, products []domain.ProductRecord, vectors [][]float32,
) (string, string, error) {
	if err := checkPair(products, vectors); err != nil {
		return "", "", err
	}
	data, err := jsonfile.Marshal(products)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create catalog dir: %w", err)
	}
	if err := w.Index.Publish(ctx, vectors, jsonfile.Digest(data)); err != nil {
		return "", "", err
	}
	dataPath := filepath.Join(dir, w.MetadataFile)
	if err := jsonfile.WriteEncoded(dataPath, data); err != nil {
		return "", "", err
	}
	return "qdrant:" + w.Index.Collection(), dataPath, nil
}

func checkPair(products []domain.ProductRecord, vectors [][]float32) error {
	if len(products) == 0 {
		return domain.NewError("write catalog", "products", domain.ErrInvalidInput, errors.New("no products"))
	}
	if len(products) != len(vectors) {
		return domain.NewError("write catalog", "vectors", domain.ErrInvalidInput,
			fmt.Errorf("%d products, %d vectors", len(products), len(vectors)))
	}
	return nil
}

// Load opens the vector index and metadata store described by settings.
// The caller owns the returned index and must Close it.
func Load(
	ctx context.Context, catalog domain.CatalogSettings, q domain.QdrantSettings,
) (driven.VectorIndex, driven.CatalogStore, error) {
	indexPath, dataPath := Paths(catalog)

	store, err := jsonfile.Load(dataPath)
	if err != nil {
		return nil, nil, err
	}

	switch catalog.Backend {
	case domain.VectorBackendQdrant:
		ix, err := qdrant.Dial(q.Address, q.Collection)
		if err != nil {
			return nil, nil, domain.NewError("load catalog", "qdrant", domain.ErrIndexUnavailable, err)
		}
		if err := ix.Open(ctx); err != nil {
			ix.Close()
			return nil, nil, err
		}
		if err := matchPair(ix.Pair(), store, "qdrant:"+ix.Target()); err != nil {
			ix.Close()
			return nil, nil, err
		}
		return ix, store, nil
	default:
		ix, err := flat.Open(indexPath)
		if err != nil {
			return nil, nil, err
		}
		if err := matchPair(ix.Pair(), store, indexPath); err != nil {
			ix.Close()
			return nil, nil, err
		}
		return ix, store, nil
	}
}

// matchPair rejects an index stamped for other metadata. Unstamped indexes
// predate the stamp and are accepted on size checks alone.
func matchPair(stamp [32]byte, store *jsonfile.Store, where string) error {
	if stamp == ([32]byte{}) {
		logger.Warn("Index %s carries no metadata stamp; rebuild to enable pairing checks", where)
		return nil
	}
	if stamp != store.Digest() {
		return domain.NewError("load catalog", "pair", domain.ErrIndexCorrupt,
			fmt.Errorf("%s was built for different metadata", where))
	}
	return nil
}
