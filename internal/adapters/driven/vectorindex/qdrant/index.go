package qdrant

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

const (
	// upsertBatch caps the number of points per upsert request.
	upsertBatch = 256

	// pairKey is the point 0 payload field holding the metadata digest.
	pairKey = "catalog_pair"

	generationInfix = "_v"
	generationLen   = 12
)

// PointsAPI is the subset of pb.PointsClient used by the index.
type PointsAPI interface {
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
}

// CollectionsAPI is the subset of pb.CollectionsClient used by the index.
type CollectionsAPI interface {
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	UpdateAliases(ctx context.Context, in *pb.ChangeAliases, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	ListAliases(ctx context.Context, in *pb.ListAliasesRequest, opts ...grpc.CallOption) (*pb.ListAliasesResponse, error)
}

// Index searches a Qdrant collection. The configured name is an alias over
// generation collections named <name>_v<id>; Open pins the generation the
// alias points at, so a later Publish never changes what an open Index
// serves.
type Index struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	target      string
	generation  func() string

	size   int
	dims   int
	pair   [32]byte
	closed atomic.Bool
}

// Dial connects to Qdrant at the given gRPC address.
func Dial(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	ix := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	ix.conn = conn
	return ix, nil
}

// NewWithClients creates an index over existing clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *Index {
	return &Index{
		points:      points,
		collections: collections,
		collection:  collection,
		target:      collection,
		generation: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:generationLen]
		},
	}
}

// Open resolves the alias, then reads the size, vector dimension and pair
// stamp of the collection behind it. A plain collection with the configured
// name is opened directly and reads back with a zero pair. A missing
// collection fails with domain.ErrNotFound, an unreachable server with
// domain.ErrIndexUnavailable.
func (ix *Index) Open(ctx context.Context) error {
	target, err := ix.aliasTarget(ctx)
	if err != nil {
		return domain.NewError("open qdrant collection", ix.collection, domain.ErrIndexUnavailable, err)
	}
	if target == "" {
		target = ix.collection
	}

	resp, err := ix.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: target})
	if err != nil {
		exists, lerr := ix.exists(ctx, target)
		if lerr == nil && !exists {
			return domain.NewError("open qdrant collection", ix.collection, domain.ErrNotFound, err)
		}
		return domain.NewError("open qdrant collection", ix.collection, domain.ErrIndexUnavailable, err)
	}

	info := resp.GetResult()
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.GetSize() == 0 {
		return domain.NewError("open qdrant collection", ix.collection, domain.ErrCorruptData,
			errors.New("collection has no single unnamed vector config"))
	}

	pair, err := ix.readPair(ctx, target)
	if err != nil {
		return err
	}

	ix.target = target
	ix.dims = int(params.GetSize())
	ix.size = int(info.GetPointsCount())
	ix.pair = pair

	logger.Debug("Qdrant collection %q (%s): %d points, %d dimensions", ix.collection, target, ix.size, ix.dims)
	return nil
}

// readPair reads the stamp carried by point 0.
func (ix *Index) readPair(ctx context.Context, target string) ([32]byte, error) {
	var pair [32]byte
	resp, err := ix.points.Get(ctx, &pb.GetPoints{
		CollectionName: target,
		Ids:            []*pb.PointId{pointID(0)},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return pair, domain.NewError("open qdrant collection", ix.collection, domain.ErrIndexUnavailable, err)
	}
	for _, p := range resp.GetResult() {
		stamp := p.GetPayload()[pairKey].GetStringValue()
		if stamp == "" {
			continue
		}
		raw, err := hex.DecodeString(stamp)
		if err != nil || len(raw) != len(pair) {
			return pair, domain.NewError("open qdrant collection", "pair", domain.ErrCorruptData,
				fmt.Errorf("malformed %s payload %q", pairKey, stamp))
		}
		copy(pair[:], raw)
	}
	return pair, nil
}

// aliasTarget returns the collection the alias points at, or "" when no
// alias with the configured name exists.
func (ix *Index) aliasTarget(ctx context.Context) (string, error) {
	resp, err := ix.collections.ListAliases(ctx, &pb.ListAliasesRequest{})
	if err != nil {
		return "", err
	}
	for _, a := range resp.GetAliases() {
		if a.GetAliasName() == ix.collection {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

func (ix *Index) exists(ctx context.Context, name string) (bool, error) {
	list, err := ix.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, err
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// Search returns the k nearest points by cosine similarity.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if ix.closed.Load() {
		return nil, domain.ErrIndexUnavailable
	}
	if ix.dims > 0 && len(query) != ix.dims {
		return nil, domain.NewError("search index", "query", domain.ErrDimensionMismatch,
			fmt.Errorf("got %d components, index has %d", len(query), ix.dims))
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	resp, err := ix.points.Search(ctx, &pb.SearchPoints{
		CollectionName: ix.target,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, domain.NewError("search index", ix.target, domain.ErrIndexUnavailable, err)
	}

	hits := make([]driven.VectorHit, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		id, ok := p.GetId().GetPointIdOptions().(*pb.PointId_Num)
		if !ok {
			logger.Warn("Ignoring qdrant point with non-numeric id %v", p.GetId())
			continue
		}
		hits = append(hits, driven.VectorHit{Position: int(id.Num), Score: float64(p.GetScore())})
	}
	return hits, nil
}

// Size returns the point count read by Open.
func (ix *Index) Size() int { return ix.size }

// Dimensions returns the vector size read by Open.
func (ix *Index) Dimensions() int { return ix.dims }

// Metric returns domain.MetricCosine.
func (ix *Index) Metric() domain.Metric { return domain.MetricCosine }

// Close releases the gRPC connection.
func (ix *Index) Close() error {
	if ix.closed.Swap(true) || ix.conn == nil {
		return nil
	}
	return ix.conn.Close()
}

// Pair returns the stamp read by Open or written by Publish.
func (ix *Index) Pair() [32]byte { return ix.pair }

// Publish uploads vectors into a new generation stamped with pair, then
// moves the alias onto it in a single alias update. Collections pinned by
// open readers stay intact until the next Publish prunes them: only the new
// generation and the one it replaced survive.
func (ix *Index) Publish(ctx context.Context, vectors [][]float32, pair [32]byte) error {
	if len(vectors) == 0 {
		return domain.NewError("publish qdrant collection", "vectors", domain.ErrInvalidInput,
			errors.New("no vectors"))
	}
	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return domain.NewError("publish qdrant collection", fmt.Sprintf("vectors[%d]", i),
				domain.ErrDimensionMismatch, fmt.Errorf("got %d, want %d", len(v), dims))
		}
	}

	previous, err := ix.aliasTarget(ctx)
	if err != nil {
		return fmt.Errorf("list aliases: %w", err)
	}

	name := ix.collection + generationInfix + ix.generation()
	_, err = ix.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if err := ix.upload(ctx, name, vectors, pair); err != nil {
		ix.drop(ctx, name)
		return err
	}
	if err := ix.switchAlias(ctx, name, previous); err != nil {
		ix.drop(ctx, name)
		return err
	}
	ix.prune(ctx, name, previous)

	ix.target = name
	ix.size = len(vectors)
	ix.dims = dims
	ix.pair = pair
	logger.Info("Published %d vectors to qdrant collection %q (%s)", len(vectors), ix.collection, name)
	return nil
}

func (ix *Index) upload(ctx context.Context, name string, vectors [][]float32, pair [32]byte) error {
	wait := true
	stamp := map[string]*pb.Value{
		pairKey: {Kind: &pb.Value_StringValue{StringValue: hex.EncodeToString(pair[:])}},
	}
	for start := 0; start < len(vectors); start += upsertBatch {
		end := min(start+upsertBatch, len(vectors))
		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			p := &pb.PointStruct{
				Id:      pointID(uint64(i)),
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}}},
			}
			if i == 0 {
				p.Payload = stamp
			}
			points = append(points, p)
		}
		if _, err := ix.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// switchAlias points the alias at name. A plain collection squatting on the
// alias name is deleted first; the alias update itself is atomic.
func (ix *Index) switchAlias(ctx context.Context, name, previous string) error {
	var actions []*pb.AliasOperations
	if previous != "" {
		actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_DeleteAlias{
			DeleteAlias: &pb.DeleteAlias{AliasName: ix.collection},
		}})
	} else {
		plain, err := ix.exists(ctx, ix.collection)
		if err != nil {
			return fmt.Errorf("list collections: %w", err)
		}
		if plain {
			logger.Warn("Replacing plain qdrant collection %q with an alias", ix.collection)
			if _, err := ix.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: ix.collection}); err != nil {
				return fmt.Errorf("delete collection %s: %w", ix.collection, err)
			}
		}
	}
	actions = append(actions, &pb.AliasOperations{Action: &pb.AliasOperations_CreateAlias{
		CreateAlias: &pb.CreateAlias{CollectionName: name, AliasName: ix.collection},
	}})

	if _, err := ix.collections.UpdateAliases(ctx, &pb.ChangeAliases{Actions: actions}); err != nil {
		return fmt.Errorf("switch alias %s to %s: %w", ix.collection, name, err)
	}
	return nil
}

// prune deletes generations other than keep and previous.
func (ix *Index) prune(ctx context.Context, keep, previous string) {
	list, err := ix.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		logger.Warn("Listing qdrant collections for cleanup: %v", err)
		return
	}
	for _, c := range list.GetCollections() {
		n := c.GetName()
		if !ix.isGeneration(n) || n == keep || n == previous {
			continue
		}
		ix.drop(ctx, n)
	}
}

// isGeneration reports whether name was created by Publish for this alias.
func (ix *Index) isGeneration(name string) bool {
	id, ok := strings.CutPrefix(name, ix.collection+generationInfix)
	if !ok || len(id) != generationLen {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func (ix *Index) drop(ctx context.Context, name string) {
	if _, err := ix.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		logger.Warn("Deleting qdrant collection %q: %v", name, err)
	}
}

func pointID(n uint64) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
}

// Collection returns the configured collection name, which is the alias.
func (ix *Index) Collection() string { return ix.collection }

// Target returns the generation collection the index searches.
func (ix *Index) Target() string { return ix.target }
