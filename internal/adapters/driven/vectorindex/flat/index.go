package flat

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var (
	magicV1 = [8]byte{'V', 'T', 'R', 'N', 'I', 'D', 'X', '1'}
	magicV2 = [8]byte{'V', 'T', 'R', 'N', 'I', 'D', 'X', '2'}
)

// Pair identifies the metadata file an index was built with.
type Pair [32]byte

// IsZero reports whether no pair was recorded.
func (p Pair) IsZero() bool { return p == Pair{} }

type header struct {
	Magic  [8]byte
	Metric uint32
	Dims   uint32
	Count  uint64
}

// headerSize is the encoded size of a v2 header: header plus Pair.
const headerSize = 24 + 32

const (
	metricCodeInnerProduct uint32 = 0
	metricCodeL2           uint32 = 1

	// maxDimensions guards allocation when reading a damaged header.
	maxDimensions = 1 << 16
)

// Index is an exact nearest-neighbour index over unit vectors.
// It is safe for concurrent Search calls.
type Index struct {
	metric domain.Metric
	dims   int
	data   []float32 // count*dims, row-major
	count  int
	pair   Pair
	closed atomic.Bool
}

// New builds an index from vectors. Every vector must have dims components.
func New(metric domain.Metric, dims int, vectors [][]float32) (*Index, error) {
	if metric != domain.MetricInnerProduct && metric != domain.MetricL2 {
		return nil, fmt.Errorf("flat: unsupported metric %q", metric)
	}
	if dims <= 0 {
		return nil, errors.New("flat: dimension must be positive")
	}

	data := make([]float32, 0, len(vectors)*dims)
	for i, v := range vectors {
		if len(v) != dims {
			return nil, domain.NewError("flat", fmt.Sprintf("vectors[%d]", i), domain.ErrDimensionMismatch,
				fmt.Errorf("got %d components, want %d", len(v), dims))
		}
		data = append(data, v...)
	}

	return &Index{metric: metric, dims: dims, data: data, count: len(vectors)}, nil
}

// Open loads an index file. A missing file fails with domain.ErrNotFound and
// a damaged one with domain.ErrCorruptData.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewError("open index", path, domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	ix, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ix, nil
}

// Read decodes an index from r. Version 1 files carry no pair and read back
// with a zero Pair.
func Read(r io.Reader) (*Index, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, corrupt("header", err)
	}
	var pair Pair
	switch h.Magic {
	case magicV1:
	case magicV2:
		if _, err := io.ReadFull(r, pair[:]); err != nil {
			return nil, corrupt("pair", err)
		}
	default:
		return nil, corrupt("magic", errors.New("not a vetrina index file"))
	}

	var metric domain.Metric
	switch h.Metric {
	case metricCodeInnerProduct:
		metric = domain.MetricInnerProduct
	case metricCodeL2:
		metric = domain.MetricL2
	default:
		return nil, corrupt("metric", fmt.Errorf("unknown metric code %d", h.Metric))
	}
	if h.Dims == 0 || h.Dims > maxDimensions {
		return nil, corrupt("dimensions", fmt.Errorf("invalid dimension %d", h.Dims))
	}

	dims := int(h.Dims)
	count := int(h.Count)
	if h.Count > math.MaxInt32 {
		return nil, corrupt("count", fmt.Errorf("invalid count %d", h.Count))
	}

	buf := make([]byte, 4*dims)
	data := make([]float32, 0, min(count*dims, 1<<24))
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, corrupt("vectors", fmt.Errorf("vector %d of %d: %w", i, count, err))
		}
		for j := 0; j < dims; j++ {
			data = append(data, math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:])))
		}
	}

	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, corrupt("vectors", errors.New("trailing data after last vector"))
	}

	return &Index{metric: metric, dims: dims, data: data, count: count, pair: pair}, nil
}

func corrupt(field string, err error) error {
	return domain.NewError("read index", field, domain.ErrCorruptData, err)
}

// SetPair records the metadata digest written into the header.
func (ix *Index) SetPair(p Pair) { ix.pair = p }

// Pair returns the recorded metadata digest, zero for version 1 files.
func (ix *Index) Pair() Pair { return ix.pair }

// WriteTo encodes the index to w in the version 2 layout.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	code := metricCodeInnerProduct
	if ix.metric == domain.MetricL2 {
		code = metricCodeL2
	}

	bw := bufio.NewWriter(w)
	h := header{magicV2, code, uint32(ix.dims), uint64(ix.count)}
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	if _, err := bw.Write(ix.pair[:]); err != nil {
		return 0, err
	}

	buf := make([]byte, 4)
	for _, f := range ix.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := bw.Write(buf); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(headerSize + 4*len(ix.data)), nil
}

// WriteFile writes the index to path through a temporary file and a rename,
// so readers never see a partial file.
func (ix *Index) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := ix.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Search scores every vector against query and returns the best k,
// ties broken by ascending position.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if ix.closed.Load() {
		return nil, domain.ErrIndexUnavailable
	}
	if len(query) != ix.dims {
		return nil, domain.NewError("search index", "query", domain.ErrDimensionMismatch,
			fmt.Errorf("got %d components, index has %d", len(query), ix.dims))
	}
	if k <= 0 || ix.count == 0 {
		return []driven.VectorHit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, ix.count)
	for i := 0; i < ix.count; i++ {
		hits[i] = driven.VectorHit{Position: i, Score: ix.score(query, ix.data[i*ix.dims:(i+1)*ix.dims])}
	}

	higher := ix.metric.HigherIsCloser()
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score == hits[b].Score {
			return hits[a].Position < hits[b].Position
		}
		if higher {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Score < hits[b].Score
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *Index) score(q, v []float32) float64 {
	var s float64
	if ix.metric == domain.MetricL2 {
		for i := range q {
			d := float64(q[i]) - float64(v[i])
			s += d * d
		}
		return s
	}
	for i := range q {
		s += float64(q[i]) * float64(v[i])
	}
	return s
}

// Vector returns a copy of the vector at position.
func (ix *Index) Vector(position int) ([]float32, error) {
	if position < 0 || position >= ix.count {
		return nil, domain.ErrOutOfRange
	}
	v := make([]float32, ix.dims)
	copy(v, ix.data[position*ix.dims:])
	return v, nil
}

// Size returns the number of vectors.
func (ix *Index) Size() int { return ix.count }

// Dimensions returns the vector length.
func (ix *Index) Dimensions() int { return ix.dims }

// Metric returns the index metric.
func (ix *Index) Metric() domain.Metric { return ix.metric }

// Close marks the index unavailable. The vectors are released with the Index.
func (ix *Index) Close() error {
	ix.closed.Store(true)
	return nil
}
