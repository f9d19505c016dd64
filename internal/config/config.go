// Package config defines the runtime configuration for the few-shot
// prompting pipeline. Values come from built-in defaults, an optional YAML
// file, and environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("config file is malformed")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Provider, store and embedder names accepted in configuration.
const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"

	StoreChromem = "chromem"
	StoreMilvus  = "milvus"

	EmbedderOllama = "ollama"
	EmbedderOpenAI = "openai"
)

// Config is the root configuration document.
type Config struct {
	Examples ExamplesConfig `yaml:"examples"`
	History  HistoryConfig  `yaml:"history"`
	Selector SelectorConfig `yaml:"selector"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	LLM      LLMConfig      `yaml:"llm"`
	Log      LogConfig      `yaml:"log"`
}

// ExamplesConfig locates the few-shot example collection.
type ExamplesConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig locates the chat transcript.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// SelectorConfig controls similarity selection.
type SelectorConfig struct {
	// TopK is the number of examples placed in the prompt
	TopK int `yaml:"top_k"`
}

// EmbedderConfig selects and configures the embedding model.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	Host      string `yaml:"host"` // Ollama base URL
	APIKey    string `yaml:"-"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"`
	Milvus  MilvusConfig `yaml:"milvus"`
}

// MilvusConfig configures the optional Milvus backend.
type MilvusConfig struct {
	Address        string `yaml:"address"`
	CollectionName string `yaml:"collection"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
}

// CacheConfig configures the optional Redis embedding cache.
// An empty Addr disables caching.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// LLMConfig configures the remote completion endpoint.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	// Bedrock connection settings
	Profile string `yaml:"profile"`
	Region  string `yaml:"region"`
	// Endpoint overrides the regional endpoint; empty derives it from Region
	Endpoint string `yaml:"endpoint"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   float64  `yaml:"temperature"`
	TopK          int      `yaml:"top_k"`
	TopP          float64  `yaml:"top_p"`
	StopSequences []string `yaml:"stop_sequences"`

	APIKey string `yaml:"-"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration the pipeline runs with when nothing
// else is supplied.
func Default() Config {
	return Config{
		Examples: ExamplesConfig{Path: "sample_prompts/generic_samples.yaml"},
		History:  HistoryConfig{Path: "chat_history.txt"},
		Selector: SelectorConfig{TopK: 3},
		Embedder: EmbedderConfig{
			Provider:  EmbedderOllama,
			Model:     "all-minilm",
			Dimension: 384,
			Host:      "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend: StoreChromem,
			Milvus: MilvusConfig{
				Address:        "localhost:19530",
				CollectionName: "fewshot_examples",
				M:              16,
				EfConstruction: 256,
			},
		},
		Cache: CacheConfig{
			TTL:    240 * time.Hour,
			Prefix: "fewshot:emb",
		},
		LLM: LLMConfig{
			Provider:       ProviderBedrock,
			Model:          "anthropic.claude-v2",
			Region:         "us-east-1",
			ConnectTimeout: 120 * time.Second,
			ReadTimeout:    120 * time.Second,
			MaxTokens:      8191,
			Temperature:    0,
			TopK:           250,
			TopP:           0.5,
			StopSequences:  []string{},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrConfigParse, path, err)
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables on the config. Unset variables
// leave the current value in place.
func (c *Config) ApplyEnv() {
	// profile_name is the variable name older deployments used in their .env
	if v := firstEnv("profile_name", "AWS_PROFILE"); v != "" {
		c.LLM.Profile = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.LLM.Region = v
	}
	if v := os.Getenv("BEDROCK_ENDPOINT"); v != "" {
		c.LLM.Endpoint = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.APIKey = v
		c.Embedder.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embedder.Host = v
	}
	if v := os.Getenv("MILVUS_ADDRESS"); v != "" {
		c.Store.Milvus.Address = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the config for values the pipeline cannot run with.
func (c Config) Validate() error {
	return joinProblems(append(c.retrievalProblems(), c.llmProblems()...))
}

// ValidateRetrieval checks only the sections example selection needs, so a
// broken llm section does not block it.
func (c Config) ValidateRetrieval() error {
	return joinProblems(c.retrievalProblems())
}

func (c Config) retrievalProblems() []string {
	var problems []string

	if c.Examples.Path == "" {
		problems = append(problems, "examples.path is required")
	}
	if c.History.Path == "" {
		problems = append(problems, "history.path is required")
	}
	if c.Selector.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("selector.top_k must be positive, got %d", c.Selector.TopK))
	}

	switch c.Embedder.Provider {
	case EmbedderOllama, EmbedderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("unknown embedder provider %q", c.Embedder.Provider))
	}
	if c.Embedder.Model == "" {
		problems = append(problems, "embedder.model is required")
	}

	switch c.Store.Backend {
	case StoreChromem:
	case StoreMilvus:
		if c.Embedder.Dimension <= 0 {
			problems = append(problems, "embedder.dimension must be positive for the milvus store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	return problems
}

func (c Config) llmProblems() []string {
	var problems []string

	switch c.LLM.Provider {
	case ProviderBedrock, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model is required")
	}
	if c.LLM.ConnectTimeout <= 0 || c.LLM.ReadTimeout <= 0 {
		problems = append(problems, "llm timeouts must be positive")
	}
	if c.LLM.MaxTokens < 0 {
		problems = append(problems, fmt.Sprintf("llm.max_tokens must not be negative, got %d", c.LLM.MaxTokens))
	}
	return problems
}

func joinProblems(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
