package rag

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

const (
	metaPosition    = "position"
	metaAnswer      = "answer"
	metaFingerprint = "fingerprint"
)

// ChromemStore implements VectorStore with an in-process chromem-go
// collection. Similarity is cosine.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embed      chromem.EmbeddingFunc

	// fingerprint shared by every stored record, "" if empty or mixed
	fingerprint string
}

// NewChromemStore creates an in-memory store. The embedder is only consulted
// by chromem for documents inserted without a vector, which this package
// never does, but chromem requires one per collection.
func NewChromemStore(name string, embedder Embedder) (*ChromemStore, error) {
	if name == "" {
		name = "examples"
	}

	s := &ChromemStore{
		db:    chromem.NewDB(),
		name:  name,
		embed: embeddingFunc(embedder),
	}

	coll, err := s.db.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection: %w", err)
	}
	s.collection = coll

	return s, nil
}

func embeddingFunc(embedder Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if embedder == nil {
			return nil, fmt.Errorf("%w: no embedder configured", ErrModelUnavailable)
		}
		recs, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return recs[0].Embedding, nil
	}
}

// Insert adds example records to the collection.
func (s *ChromemStore) Insert(ctx context.Context, records []ExampleRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("%w: example %d has no embedding", ErrInsertFailed, rec.Position)
		}
		docs[i] = chromem.Document{
			ID:        documentID(rec.Position),
			Content:   rec.Input,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				metaPosition:    strconv.Itoa(rec.Position),
				metaAnswer:      rec.Answer,
				metaFingerprint: rec.Fingerprint,
			},
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	empty := s.collection.Count() == 0
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	fingerprint := records[0].Fingerprint
	for _, rec := range records[1:] {
		if rec.Fingerprint != fingerprint {
			fingerprint = ""
			break
		}
	}
	if empty {
		s.fingerprint = fingerprint
	} else if s.fingerprint != fingerprint {
		s.fingerprint = ""
	}
	return nil
}

// Search returns up to topK records by descending cosine similarity.
func (s *ChromemStore) Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := s.collection.Count()
	if count == 0 {
		return []Match{}, nil
	}
	// chromem rejects requests for more results than it holds
	if topK > count {
		topK = count
	}

	results, err := s.collection.QueryEmbedding(ctx, queryVector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	matches := make([]Match, 0, len(results))
	for _, res := range results {
		pos, err := strconv.Atoi(res.Metadata[metaPosition])
		if err != nil {
			return nil, fmt.Errorf("%w: document %s: %v", ErrMissingMetadata, res.ID, err)
		}
		matches = append(matches, Match{
			Position: pos,
			Input:    res.Content,
			Answer:   res.Metadata[metaAnswer],
			Score:    res.Similarity,
		})
	}

	return matches, nil
}

// Count returns the number of stored records.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count(), nil
}

// Fingerprint returns the fingerprint shared by the stored records.
func (s *ChromemStore) Fingerprint(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection.Count() == 0 {
		return "", nil
	}
	return s.fingerprint, nil
}

// Reset drops and recreates the collection.
func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to delete chromem collection: %w", err)
	}
	coll, err := s.db.CreateCollection(s.name, nil, s.embed)
	if err != nil {
		return fmt.Errorf("failed to recreate chromem collection: %w", err)
	}
	s.collection = coll
	s.fingerprint = ""
	return nil
}

// Close is a no-op for the in-memory store.
func (s *ChromemStore) Close() error {
	return nil
}

func documentID(position int) string {
	return fmt.Sprintf("example-%04d", position)
}
