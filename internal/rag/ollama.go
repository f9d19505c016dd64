package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaEmbedder implements the Embedder interface against an Ollama server.
// The default model, all-minilm, is sentence-transformers/all-MiniLM-L6-v2.
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
}

// NewOllamaEmbedder creates an embedder for the Ollama server at host.
func NewOllamaEmbedder(host, model string, dimension int) (*OllamaEmbedder, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if model == "" {
		model = "all-minilm"
	}

	return &OllamaEmbedder{
		client:    api.NewClient(u, &http.Client{Timeout: 60 * time.Second}),
		model:     model,
		dimension: dimension,
	}, nil
}

// GetModel returns the embedding model identifier
func (e *OllamaEmbedder) GetModel() string {
	return e.model
}

// GetDimension returns the configured embedding dimension
func (e *OllamaEmbedder) GetDimension() int {
	return e.dimension
}

// Embed generates embeddings for texts with a single batch request.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelUnavailable, e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts", ErrModelUnavailable, e.model, len(resp.Embeddings), len(texts))
	}

	records := make([]EmbeddingRecord, len(texts))
	for i, vec := range resp.Embeddings {
		if e.dimension > 0 && len(vec) != e.dimension {
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, e.dimension, len(vec))
		}
		records[i] = EmbeddingRecord{
			Text:      texts[i],
			Embedding: vec,
			Index:     i,
			Model:     e.model,
		}
	}

	return records, nil
}
