// Package llm sends composed prompts to a hosted text-completion model and
// returns the completion. It defines a provider-agnostic LLM interface with
// an Amazon Bedrock implementation, an OpenAI implementation, and a
// deterministic mock for testing.
package llm

import (
	"context"
	"errors"
	"time"
)

// Error kinds surfaced by providers. The provider's own error stays in the
// chain, so callers can match either.
var (
	ErrLLMFailed         = errors.New("LLM request failed")
	ErrInvalidConfig     = errors.New("invalid LLM configuration")
	ErrTimeout           = errors.New("LLM request timed out")
	ErrAuth              = errors.New("LLM authentication failed")
	ErrTransport         = errors.New("LLM transport error")
	ErrMalformedResponse = errors.New("malformed LLM response")
)

// LLM defines the interface for interacting with language models.
// Implementations must be stateless and thread-safe.
type LLM interface {
	// Generate sends the prompt as-is and returns the completion text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Parameters are the generation settings sent with every request.
type Parameters struct {
	MaxTokens     int
	Temperature   float64
	TopK          int
	TopP          float64
	StopSequences []string
}

// LLMConfig holds configuration shared by LLM providers.
type LLMConfig struct {
	// Model specifies the model identifier (e.g., "anthropic.claude-v2")
	Model string

	Params Parameters

	// Profile, Region and Endpoint select the Bedrock account and endpoint.
	// An empty Endpoint is derived from Region.
	Profile  string
	Region   string
	Endpoint string

	// ConnectTimeout bounds dialing; ReadTimeout bounds the wait for a response
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// APIKey is the authentication key for key-based providers
	APIKey string
}

// DefaultLLMConfig returns the Claude v2 on Bedrock settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Model: "anthropic.claude-v2",
		Params: Parameters{
			MaxTokens:     8191,
			Temperature:   0,
			TopK:          250,
			TopP:          0.5,
			StopSequences: []string{},
		},
		Region:         "us-east-1",
		ConnectTimeout: 120 * time.Second,
		ReadTimeout:    120 * time.Second,
	}
}
