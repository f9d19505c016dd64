package examples

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestLoad_Success(t *testing.T) {
	path := writeFile(t, `
- input: What is EC2?
  answer: EC2 is a compute service.
- input: What is S3?
  answer: S3 is an object storage service.
`)

	exs, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exs) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(exs))
	}
	if exs[0].Input != "What is EC2?" || exs[0].Answer != "EC2 is a compute service." {
		t.Errorf("unexpected first example: %+v", exs[0])
	}
	for i, ex := range exs {
		if ex.Position != i {
			t.Errorf("example %d has position %d", i, ex.Position)
		}
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("expected the fs.ErrNotExist cause to be preserved")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"not yaml", "- input: [broken", ErrParse},
		{"mapping instead of list", "input: What?\nanswer: That.", ErrParse},
		{"answer without input", "- answer: orphan", ErrParse},
		{"empty document", "", ErrEmpty},
		{"only blanks", "- input: ''\n  answer: '  '\n", ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParse_FiltersBlankEntries(t *testing.T) {
	// Consecutive blanks used to be skipped when entries were removed in place.
	content := `
- input: ""
  answer: ""
- input: ""
  answer: ""
- input: first
  answer: one
- input: " "
  answer: ""
- input: second
  answer: two
`
	exs, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exs) != 2 {
		t.Fatalf("expected 2 examples after filtering, got %d", len(exs))
	}
	if exs[0].Input != "first" || exs[0].Position != 0 {
		t.Errorf("unexpected first example: %+v", exs[0])
	}
	if exs[1].Input != "second" || exs[1].Position != 1 {
		t.Errorf("unexpected second example: %+v", exs[1])
	}
}

func TestCache_ReusesSuccessfulLoad(t *testing.T) {
	path := writeFile(t, "- input: a\n  answer: b\n")
	cache := NewCache()

	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Removing the file proves the second call does not touch disk.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("expected cached result, got %v", err)
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Errorf("cached examples differ: %+v vs %+v", first, second)
	}
}

func TestCache_DoesNotCacheFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.yaml")
	cache := NewCache()

	if _, err := cache.Load(path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := os.WriteFile(path, []byte("- input: a\n  answer: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	exs, err := cache.Load(path)
	if err != nil {
		t.Fatalf("expected load to succeed once the file exists: %v", err)
	}
	if len(exs) != 1 {
		t.Errorf("expected 1 example, got %d", len(exs))
	}
}
