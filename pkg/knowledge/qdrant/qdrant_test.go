// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package qdrant

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/knowledge"
)

type fakeQdrant struct {
	pb.UnimplementedQdrantServer
}

func (fakeQdrant) HealthCheck(context.Context, *pb.HealthCheckRequest) (*pb.HealthCheckReply, error) {
	return &pb.HealthCheckReply{Title: "qdrant", Version: "1.16.0"}, nil
}

type fakePoints struct {
	pb.UnimplementedPointsServer
	mu      sync.Mutex
	upserts []*pb.UpsertPoints
}

func (f *fakePoints) Upsert(_ context.Context, req *pb.UpsertPoints) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, req)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, req *pb.SearchPoints) (*pb.SearchResponse, error) {
	return &pb.SearchResponse{Result: []*pb.ScoredPoint{{
		Id:    pb.NewIDUUID("6f1d3c1e-8c53-5e6b-9f3e-0d0a3c6b7a10"),
		Score: 0.9,
		Payload: pb.NewValueMap(map[string]any{
			"text":   "A capital do Brasil é Brasília.",
			"source": "corpus.txt",
			"seq":    int64(1),
		}),
	}}}, nil
}

func startFake(t *testing.T) (*Store, *fakePoints) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	points := &fakePoints{}
	srv := grpc.NewServer()
	pb.RegisterQdrantServer(srv, fakeQdrant{})
	pb.RegisterPointsServer(srv, points)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	store, err := New(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store, points
}

func TestStoreCheck(t *testing.T) {
	store, _ := startFake(t)
	res := store.Check(context.Background())
	if res.Status != core.HealthHealthy || res.Message != "qdrant 1.16.0" {
		t.Errorf("Check() = %+v", res)
	}
}

func TestStoreUpsertAndSearch(t *testing.T) {
	store, points := startFake(t)
	ctx := context.Background()

	err := store.Upsert(ctx, "sabia", []knowledge.Point{{
		ID:     "6f1d3c1e-8c53-5e6b-9f3e-0d0a3c6b7a10",
		Vector: []float32{0.1, 0.2},
		Text:   "A capital do Brasil é Brasília.",
		Source: "corpus.txt",
		Seq:    1,
	}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(points.upserts) != 1 || len(points.upserts[0].GetPoints()) != 1 {
		t.Fatalf("upserts = %v", points.upserts)
	}
	got := points.upserts[0].GetPoints()[0]
	if got.GetPayload()["source"].GetStringValue() != "corpus.txt" || !points.upserts[0].GetWait() {
		t.Errorf("unexpected point %v", got)
	}

	results, err := store.Search(ctx, "sabia", []float32{0.1, 0.2}, 3, 0.3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Point.Text != "A capital do Brasil é Brasília." || results[0].Point.Seq != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestStoreCheckUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := lis.Addr().String()
	lis.Close()

	store, err := New(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := store.Check(ctx).Status; got != core.HealthUnhealthy {
		t.Errorf("status = %s, want UNHEALTHY", got)
	}
}
