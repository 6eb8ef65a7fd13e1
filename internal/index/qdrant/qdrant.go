// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Codesage Contributors

// Package qdrant keeps the similarity index in a Qdrant collection over
// gRPC. Points are keyed by catalog row and use Euclid distance.
package qdrant

import (
	"context"
	"sync"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/codesage-dev/codesage/internal/index"
	sageerr "github.com/codesage-dev/codesage/pkg/errors"
)

const (
	DefaultCollection = "codesage_catalog"
	upsertBatch       = 256
)

func init() {
	index.RegisterBackend("qdrant", func(cfg index.Config) (index.Backend, error) {
		if cfg.QdrantAddr == "" {
			return nil, sageerr.New(sageerr.CodeConfigValidateInvalidValue, "qdrant index backend requires index.qdrant.addr")
		}
		return New(cfg.QdrantAddr, cfg.QdrantCollection)
	})
}

// PointsAPI is the subset of pb.PointsClient the backend uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of pb.CollectionsClient the backend uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
}

// Store is the sole owner of Qdrant operations for the index.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string

	mu   sync.RWMutex
	rows int
	dims int
}

var (
	_ index.Backend    = (*Store)(nil)
	_ index.Persistent = (*Store)(nil)
)

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: dial %s", addr)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	s.conn = conn
	return s, nil
}

// NewWithClients builds a Store on existing clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{points: points, collections: collections, collection: collection}
}

func (s *Store) Name() string { return "qdrant" }

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Store) exists(ctx context.Context) (bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: list collections")
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// Build recreates the collection and uploads every vector with its row as
// the point id.
func (s *Store) Build(ctx context.Context, vectors [][]float32) error {
	dims, err := index.CheckVectors(vectors)
	if err != nil {
		return err
	}

	found, err := s.exists(ctx)
	if err != nil {
		return err
	}
	if found {
		if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
			return sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: delete collection %s", s.collection)
		}
	}

	if dims > 0 {
		_, err = s.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     uint64(dims),
						Distance: pb.Distance_Euclid,
					},
				},
			},
		})
		if err != nil {
			return sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: create collection %s", s.collection)
		}

		wait := true
		for start := 0; start < len(vectors); start += upsertBatch {
			end := min(start+upsertBatch, len(vectors))
			points := make([]*pb.PointStruct, 0, end-start)
			for row := start; row < end; row++ {
				points = append(points, &pb.PointStruct{
					Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(row)}},
					Vectors: &pb.Vectors{
						VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[row]}},
					},
				})
			}
			_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
				CollectionName: s.collection,
				Wait:           &wait,
				Points:         points,
			})
			if err != nil {
				return sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: upsert rows %d-%d", start, end-1)
			}
		}
	}

	s.mu.Lock()
	s.rows = len(vectors)
	s.dims = dims
	s.mu.Unlock()
	return nil
}

// Restore reads the point count and vector size of an existing collection.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	found, err := s.exists(ctx)
	if err != nil || !found {
		return false, err
	}

	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return false, sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: get collection %s", s.collection)
	}
	res := info.GetResult()
	params := res.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params.GetDistance() != pb.Distance_Euclid {
		return false, sageerr.Errorf(sageerr.CodeIndexFormatInvalid,
			"qdrant: collection %s uses %s distance, want Euclid", s.collection, params.GetDistance())
	}

	s.mu.Lock()
	s.rows = int(res.GetPointsCount())
	s.dims = int(params.GetSize())
	s.mu.Unlock()
	return s.rows > 0, nil
}

// Save is a no-op; Qdrant persists on upsert.
func (s *Store) Save(context.Context) error { return nil }

// Search returns the k nearest rows. Qdrant reports plain Euclidean
// distance as the score, which is squared here.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]index.Neighbor, error) {
	s.mu.RLock()
	rows, dims := s.rows, s.dims
	s.mu.RUnlock()

	if rows == 0 {
		return nil, sageerr.New(sageerr.CodeIndexNotReady, "index is empty or has not been built", sageerr.FieldBackend("qdrant"))
	}
	if len(query) != dims {
		return nil, sageerr.Errorf(sageerr.CodeIndexQueryInvalid, "query has %d dimensions, index has %d", len(query), dims)
	}
	k = max(0, min(k, rows))
	if k == 0 {
		return []index.Neighbor{}, nil
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         query,
		Limit:          uint64(k),
	})
	if err != nil {
		return nil, sageerr.Wrapf(err, sageerr.CodeIndexUpstreamFailure, "qdrant: search")
	}

	out := make([]index.Neighbor, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		d := float64(p.GetScore())
		out = append(out, index.Neighbor{Row: int(p.GetId().GetNum()), Distance: d * d})
	}
	index.SortNeighbors(out)
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows
}

func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}
