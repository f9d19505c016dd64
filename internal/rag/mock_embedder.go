package rag

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockEmbedder is a deterministic bag-of-words Embedder for tests. Each
// lowercased word is hashed into one of Dimension buckets, so texts sharing
// words are close under cosine similarity.
type MockEmbedder struct {
	// Dimension is the vector length; 0 means 256.
	Dimension int

	// Model is reported by GetModel; empty means "mock-bow".
	Model string

	// Error, if set, is returned by Embed instead of vectors.
	Error error

	// Calls counts the texts passed to Embed.
	Calls int
}

// NewMockEmbedder returns a MockEmbedder with the default dimension.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

func (m *MockEmbedder) GetModel() string {
	if m.Model == "" {
		return "mock-bow"
	}
	return m.Model
}

func (m *MockEmbedder) GetDimension() int {
	if m.Dimension <= 0 {
		return 256
	}
	return m.Dimension
}

// Embed hashes each text into a word-count vector.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}
	m.Calls += len(texts)

	dim := m.GetDimension()
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for _, word := range tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%uint32(dim)]++
		}
		// keep the vector non-zero for texts with no words
		vec[dim-1] += 0.01
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: vec,
			Index:     i,
			Model:     m.GetModel(),
		}
	}
	return records, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
