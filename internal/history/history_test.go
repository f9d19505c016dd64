package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRead_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Present() {
		t.Error("empty file should not report history")
	}
	if h.String() != NoHistory {
		t.Errorf("expected %q, got %q", NoHistory, h.String())
	}
}

func TestRead_Verbatim(t *testing.T) {
	content := "Human: hi\n\nAssistant: hello\n\n"
	path := filepath.Join(t.TempDir(), "chat_history.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Present() {
		t.Error("expected history to be present")
	}
	if h.String() != content {
		t.Errorf("content not returned verbatim: %q", h.String())
	}
}

func TestRead_Missing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected underlying not-exist cause")
	}
}

func TestZeroValue(t *testing.T) {
	var h History
	if h.String() != "None" {
		t.Errorf("zero History should render None, got %q", h.String())
	}
}

func TestAppendAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.txt")

	if err := Append(path, "What is S3?", "Object storage."); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := Append(path, " What is EC2? ", "Compute.\n"); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	h, err := Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Human: What is S3?\n\nAssistant: Object storage.\n\n" +
		"Human: What is EC2?\n\nAssistant: Compute.\n\n"
	if h.String() != want {
		t.Errorf("unexpected transcript:\n%q\nwant:\n%q", h.String(), want)
	}

	if err := Clear(path); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	h, err = Read(path)
	if err != nil {
		t.Fatalf("unexpected error after clear: %v", err)
	}
	if h.Present() {
		t.Error("expected no history after clear")
	}
}

func TestAppend_Unwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "chat_history.txt")
	if err := Append(path, "q", "a"); !errors.Is(err, ErrUnwritable) {
		t.Fatalf("expected ErrUnwritable, got %v", err)
	}
}
