// Package examples loads the static few-shot example collection: an ordered
// list of question/answer pairs kept in a YAML file.
package examples

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrNotFound = errors.New("example file not found")
	ErrParse    = errors.New("example file is malformed")
	ErrEmpty    = errors.New("example file contains no examples")
)

// Example is one worked question/answer pair. Position is its 0-based index
// in the collection after blank entries are dropped and is the example's
// identity.
type Example struct {
	Input    string `yaml:"input" json:"input"`
	Answer   string `yaml:"answer" json:"answer"`
	Position int    `yaml:"-" json:"position"`
}

// IsBlank reports whether the example carries no text at all.
func (e Example) IsBlank() bool {
	return strings.TrimSpace(e.Input) == "" && strings.TrimSpace(e.Answer) == ""
}

// Load reads the example collection from path, in stored order.
func Load(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return nil, fmt.Errorf("read examples %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a YAML sequence of {input, answer} mappings.
func Parse(data []byte) ([]Example, error) {
	var raw []Example
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	out := make([]Example, 0, len(raw))
	for i, ex := range raw {
		if ex.IsBlank() {
			continue
		}
		if strings.TrimSpace(ex.Input) == "" {
			return nil, fmt.Errorf("%w: entry %d has an answer but no input", ErrParse, i)
		}
		ex.Position = len(out)
		out = append(out, ex)
	}

	if len(out) == 0 {
		return nil, ErrEmpty
	}

	return out, nil
}

// Cache memoises Load per path. The example file does not change while the
// process runs, so a successful load is reused; failures are not cached.
type Cache struct {
	mu     sync.Mutex
	loaded map[string][]Example
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{loaded: make(map[string][]Example)}
}

// Load returns the cached collection for path, reading it on first use.
// Callers must treat the returned slice as read-only.
func (c *Cache) Load(path string) ([]Example, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if exs, ok := c.loaded[path]; ok {
		return exs, nil
	}

	exs, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.loaded[path] = exs
	return exs, nil
}
