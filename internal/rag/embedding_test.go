package rag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestNewOpenAIEmbedder_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder("", "text-embedding-3-small", 1536)
	if err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestNewOpenAIEmbedder_ExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	embedder, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-large", 3072)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.GetModel() != "text-embedding-3-large" {
		t.Errorf("GetModel() = %q, want %q", embedder.GetModel(), "text-embedding-3-large")
	}
	if embedder.GetDimension() != 3072 {
		t.Errorf("GetDimension() = %d, want %d", embedder.GetDimension(), 3072)
	}
}

func TestOpenAIEmbedder_EmptyTexts(t *testing.T) {
	embedder, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-small", 1536)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), []string{})
	if err != ErrEmptyTexts {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	// Skip if no API key
	if os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	embedder, err := NewOpenAIEmbedder("", "text-embedding-3-small", 1536)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	texts := []string{"What is EC2?", "What is S3?"}
	records, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	for i, record := range records {
		if record.Text != texts[i] {
			t.Errorf("record[%d].Text = %q, want %q", i, record.Text, texts[i])
		}
		if len(record.Embedding) != 1536 {
			t.Errorf("record[%d] embedding dimension = %d, want 1536", i, len(record.Embedding))
		}
	}
}

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	var gotModel string
	var gotInput []string

	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = req.Model
		gotInput = req.Input

		embeddings := make([][]float32, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float32{float32(i), 1, 0}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":      req.Model,
			"embeddings": embeddings,
		})
	})

	embedder, err := NewOllamaEmbedder(srv.URL, "all-minilm", 3)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	records, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if gotModel != "all-minilm" {
		t.Errorf("server saw model %q, want all-minilm", gotModel)
	}
	if len(gotInput) != 2 || gotInput[0] != "first" || gotInput[1] != "second" {
		t.Errorf("server saw input %v", gotInput)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Text != "second" || records[1].Embedding[0] != 1 || records[1].Index != 1 {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"all-minilm\" not found, try pulling it first"}`))
	})

	embedder, err := NewOllamaEmbedder(srv.URL, "all-minilm", 384)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"all-minilm","embeddings":[[0.1,0.2]]}`))
	})

	embedder, err := NewOllamaEmbedder(srv.URL, "all-minilm", 384)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Fatalf("expected ErrInvalidDimension, got %v", err)
	}
}

func TestOllamaEmbedder_DefaultModel(t *testing.T) {
	embedder, err := NewOllamaEmbedder("http://localhost:11434", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.GetModel() != "all-minilm" {
		t.Errorf("expected default model all-minilm, got %s", embedder.GetModel())
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()

	a, err := m.Embed(context.Background(), []string{"What is EC2?"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Embed(context.Background(), []string{"what is ec2"})
	if err != nil {
		t.Fatal(err)
	}

	for i := range a[0].Embedding {
		if a[0].Embedding[i] != b[0].Embedding[i] {
			t.Fatalf("vectors differ at %d: case and punctuation should not matter", i)
		}
	}
	if m.Calls != 2 {
		t.Errorf("expected 2 embedded texts, got %d", m.Calls)
	}
}
