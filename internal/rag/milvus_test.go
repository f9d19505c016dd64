package rag

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// TestMilvusStore_EmptyRecords tests that empty records are a no-op
func TestMilvusStore_EmptyRecords(t *testing.T) {
	store := &MilvusStore{config: DefaultMilvusConfig()}

	if err := store.Insert(context.Background(), []ExampleRecord{}); err != nil {
		t.Errorf("Expected nil for empty records, got: %v", err)
	}
}

func TestMilvusStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	store := &MilvusStore{config: DefaultMilvusConfig()}

	err := store.Insert(ctx, []ExampleRecord{{Position: 0, Input: "a", Embedding: []float32{1, 2, 3}}})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension on insert, got %v", err)
	}

	_, err = store.Search(ctx, []float32{1, 2, 3}, 3)
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension on search, got %v", err)
	}
}

func TestNewMilvusStore_InvalidDimension(t *testing.T) {
	config := DefaultMilvusConfig()
	config.Dimension = 0

	if _, err := NewMilvusStore(context.Background(), config); err != ErrInvalidDimension {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}
}

// TestDefaultMilvusConfig tests default configuration
func TestDefaultMilvusConfig(t *testing.T) {
	config := DefaultMilvusConfig()

	if config.Address == "" {
		t.Error("Expected non-empty address")
	}
	if config.CollectionName == "" {
		t.Error("Expected non-empty collection name")
	}
	if config.Dimension != 384 {
		t.Errorf("Expected dimension 384, got %d", config.Dimension)
	}
	if config.M != 16 || config.EfConstruction != 256 {
		t.Errorf("unexpected HNSW params M=%d ef=%d", config.M, config.EfConstruction)
	}
}

func TestExampleSchema(t *testing.T) {
	schema := exampleSchema("examples", 384)

	if schema.CollectionName != "examples" {
		t.Errorf("unexpected collection name %s", schema.CollectionName)
	}

	names := make(map[string]bool)
	for _, f := range schema.Fields {
		names[f.Name] = true
		if f.Name == "position" && !f.PrimaryKey {
			t.Error("position should be the primary key")
		}
		if f.Name == "embedding" && f.TypeParams["dim"] != "384" {
			t.Errorf("embedding dim = %s, want 384", f.TypeParams["dim"])
		}
	}
	for _, want := range []string{"position", "input", "answer", "fingerprint", "embedding"} {
		if !names[want] {
			t.Errorf("schema missing field %s", want)
		}
	}
}

// Integration test: Insert, Search, Reset against a live Milvus
func TestMilvusStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	addr := os.Getenv("MILVUS_ADDRESS")
	if addr == "" {
		t.Skip("MILVUS_ADDRESS not set")
	}

	ctx := context.Background()
	config := DefaultMilvusConfig()
	config.Address = addr
	config.Dimension = 2
	config.CollectionName = "fewshot_test_integration"

	store, err := NewMilvusStore(ctx, config)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	records := []ExampleRecord{
		{Position: 0, Input: "north", Answer: "up", Embedding: []float32{0, 1}, Fingerprint: "abc"},
		{Position: 1, Input: "east", Answer: "right", Embedding: []float32{1, 0}, Fingerprint: "abc"},
	}
	if err := store.Insert(ctx, records); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	matches, err := store.Search(ctx, []float32{0.1, 1}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Input != "north" {
		t.Errorf("unexpected matches: %+v", matches)
	}

	fp, err := store.Fingerprint(ctx)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fp != "abc" {
		t.Errorf("Fingerprint = %q, want abc", fp)
	}
}

func TestFingerprintFromColumn(t *testing.T) {
	tests := []struct {
		name    string
		column  entity.Column
		want    string
		wantErr bool
	}{
		{"nil column", nil, "", false},
		{"empty", entity.NewColumnVarChar("fingerprint", nil), "", false},
		{"uniform", entity.NewColumnVarChar("fingerprint", []string{"f1", "f1", "f1"}), "f1", false},
		{"mixed", entity.NewColumnVarChar("fingerprint", []string{"f1", "f2"}), "", false},
		{"wrong type", entity.NewColumnInt64("fingerprint", []int64{1}), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fingerprintFromColumn(tt.column)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
