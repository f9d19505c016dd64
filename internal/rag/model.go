// Package rag embeds the few-shot example collection into a vector store and
// selects the examples most similar to a query.
package rag

import (
	"context"
	"errors"

	"github.com/Yates-Labs/fewshot/internal/examples"
)

// Common errors for selection
var (
	ErrModelUnavailable = errors.New("embedding model unavailable")
	ErrNotIndexed       = errors.New("examples have not been indexed")
	ErrEmptyQuery       = errors.New("query cannot be empty")
)

// ExampleRecord is an example with its input-text embedding, as stored in a
// vector store.
type ExampleRecord struct {
	Position  int       `json:"position"`
	Input     string    `json:"input"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"embedding"`

	// Fingerprint identifies the collection and model the record was
	// indexed from (see CollectionFingerprint)
	Fingerprint string `json:"fingerprint"`
}

// Match is one vector search hit. Score is cosine similarity, higher is
// closer.
type Match struct {
	Position int     `json:"position"`
	Input    string  `json:"input"`
	Answer   string  `json:"answer"`
	Score    float32 `json:"score"`
}

// SelectedExample is an example ranked for one query. Rank starts at 1.
type SelectedExample struct {
	examples.Example
	Rank  int     `json:"rank"`
	Score float32 `json:"score"`
}

// VectorStore defines the interface for vector storage and similarity search
// over example records.
type VectorStore interface {
	// Insert adds example records to the store
	Insert(ctx context.Context, records []ExampleRecord) error

	// Search returns up to topK records closest to queryVector
	Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)

	// Fingerprint returns the fingerprint of the stored records, or "" when
	// the store is empty or the records disagree
	Fingerprint(ctx context.Context) (string, error)

	// Reset removes every stored record
	Reset(ctx context.Context) error

	// Close releases resources and closes connections
	Close() error
}
