package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Yates-Labs/fewshot/internal/examples"
)

// DefaultBatchSize is how many example inputs are embedded per request.
const DefaultBatchSize = 32

// Selector ranks the example collection against a query by embedding
// similarity. Examples are embedded once by Index; after that the store is
// only read, so Select is safe for concurrent use.
type Selector struct {
	embedder  Embedder
	store     VectorStore
	logger    *slog.Logger
	batchSize int

	mu      sync.RWMutex
	indexed []examples.Example
}

// NewSelector creates a Selector over the given embedder and store.
func NewSelector(embedder Embedder, store VectorStore, logger *slog.Logger) (*Selector, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Selector{
		embedder:  embedder,
		store:     store,
		logger:    logger.With(slog.String("module", "selector")),
		batchSize: DefaultBatchSize,
	}, nil
}

// Index embeds every example input and stores it. Repeated calls with the
// same collection are no-ops. A persistent store whose records carry the
// same CollectionFingerprint is reused without re-embedding; any other
// populated store is reset first.
func (s *Selector) Index(ctx context.Context, exs []examples.Example) error {
	return s.index(ctx, exs, false)
}

// Reindex discards stored records and embeds the collection again.
func (s *Selector) Reindex(ctx context.Context, exs []examples.Example) error {
	return s.index(ctx, exs, true)
}

func (s *Selector) index(ctx context.Context, exs []examples.Example, force bool) error {
	if len(exs) == 0 {
		return fmt.Errorf("%w: no examples", ErrNotIndexed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && sameCollection(s.indexed, exs) {
		return nil
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count stored examples: %w", err)
	}

	fingerprint := CollectionFingerprint(s.embedder.GetModel(), s.embedder.GetDimension(), exs)

	if !force && s.indexed == nil && count == len(exs) {
		stored, err := s.store.Fingerprint(ctx)
		switch {
		case err != nil:
			s.logger.Warn("could not read stored fingerprint, re-indexing", slog.String("error", err.Error()))
		case stored == fingerprint:
			s.logger.Info("reusing stored example embeddings", slog.Int("count", count))
			s.indexed = exs
			return nil
		default:
			s.logger.Info("stored examples are out of date, re-indexing",
				slog.String("stored", stored),
				slog.String("current", fingerprint))
		}
	}

	if count > 0 {
		if err := s.store.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset vector store: %w", err)
		}
	}

	s.logger.Info("indexing examples",
		slog.Int("count", len(exs)),
		slog.String("model", s.embedder.GetModel()))

	for start := 0; start < len(exs); start += s.batchSize {
		end := min(start+s.batchSize, len(exs))
		batch := exs[start:end]

		texts := make([]string, len(batch))
		for i, ex := range batch {
			texts[i] = ex.Input
		}

		embedded, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return modelUnavailable(fmt.Errorf("failed to embed examples %d-%d: %w", start, end-1, err))
		}

		records := make([]ExampleRecord, len(batch))
		for i, ex := range batch {
			records[i] = ExampleRecord{
				Position:    ex.Position,
				Input:       ex.Input,
				Answer:      ex.Answer,
				Embedding:   embedded[i].Embedding,
				Fingerprint: fingerprint,
			}
		}

		if err := s.store.Insert(ctx, records); err != nil {
			return fmt.Errorf("failed to insert examples %d-%d: %w", start, end-1, err)
		}
	}

	s.indexed = exs
	return nil
}

// Select returns the k examples most similar to query, best first. Equal
// scores are ordered by example position so the result is deterministic.
// When k exceeds the collection size the whole collection is returned.
func (s *Selector) Select(ctx context.Context, query string, k int) ([]SelectedExample, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	indexed := s.indexed
	s.mu.RUnlock()

	if len(indexed) == 0 {
		return nil, ErrNotIndexed
	}

	embedded, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, modelUnavailable(fmt.Errorf("failed to embed query: %w", err))
	}

	// Ask for every record so ties at the k boundary are broken here rather
	// than by the store's internal ordering.
	matches, err := s.store.Search(ctx, embedded[0].Embedding, len(indexed))
	if err != nil {
		return nil, fmt.Errorf("failed to search examples: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Position < matches[j].Position
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	selected := make([]SelectedExample, len(matches))
	for i, m := range matches {
		selected[i] = SelectedExample{
			Example: examples.Example{
				Input:    m.Input,
				Answer:   m.Answer,
				Position: m.Position,
			},
			Rank:  i + 1,
			Score: m.Score,
		}
	}

	s.logger.Debug("selected examples",
		slog.Int("k", k),
		slog.Int("returned", len(selected)))

	return selected, nil
}

// modelUnavailable tags an embedding failure with ErrModelUnavailable unless
// the embedder already did.
func modelUnavailable(err error) error {
	if errors.Is(err, ErrModelUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
}

func sameCollection(a, b []examples.Example) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
