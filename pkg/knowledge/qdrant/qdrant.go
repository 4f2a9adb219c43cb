// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package qdrant stores knowledge vectors in a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/knowledge"
)

// Store implements knowledge.VectorStore.
type Store struct {
	conn        *grpc.ClientConn
	service     pb.QdrantClient
	points      pb.PointsClient
	collections pb.CollectionsClient
}

// New connects to the Qdrant gRPC endpoint at addr (host:6334).
func New(addr string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		service:     pb.NewQdrantClient(conn),
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
	}, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.conn.Close() }

// Check implements core.HealthChecker with Qdrant's health RPC.
func (s *Store) Check(ctx context.Context) core.HealthResult {
	reply, err := s.service.HealthCheck(ctx, &pb.HealthCheckRequest{})
	if err != nil {
		return core.HealthResult{Status: core.HealthUnhealthy, Message: "qdrant unreachable", Error: err}
	}
	return core.HealthResult{Status: core.HealthHealthy, Message: "qdrant " + reply.GetVersion()}
}

// CreateCollection creates a cosine collection unless it already exists.
func (s *Store) CreateCollection(ctx context.Context, name string, vectorSize uint64) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: name})
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// Upsert writes points with their text, source and position as payload.
func (s *Store) Upsert(ctx context.Context, collection string, points []knowledge.Point) error {
	structs := make([]*pb.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &pb.PointStruct{
			Id:      pb.NewIDUUID(p.ID),
			Vectors: pb.NewVectors(p.Vector...),
			Payload: pb.NewValueMap(map[string]any{
				"text":   p.Text,
				"source": p.Source,
				"seq":    int64(p.Seq),
			}),
		})
	}
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           pb.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

// Search returns the closest points at or above scoreThreshold.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]knowledge.SearchResult, error) {
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	results := make([]knowledge.SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		id := r.GetId().GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", r.GetId().GetNum())
		}
		payload := r.GetPayload()
		results[i] = knowledge.SearchResult{
			ID:    id,
			Score: r.GetScore(),
			Point: knowledge.Point{
				ID:     id,
				Text:   payload["text"].GetStringValue(),
				Source: payload["source"].GetStringValue(),
				Seq:    int(payload["seq"].GetIntegerValue()),
			},
		}
	}
	return results, nil
}

var (
	_ knowledge.VectorStore = (*Store)(nil)
	_ core.HealthChecker    = (*Store)(nil)
)
