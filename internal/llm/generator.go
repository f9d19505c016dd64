package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Answer is the model's reply to a composed prompt.
type Answer struct {
	// Text is the completion exactly as returned by the model
	Text string `json:"text"`

	// Model is the LLM model used to generate this answer
	Model string `json:"model"`

	// GeneratedAt is when this answer was created
	GeneratedAt time.Time `json:"generated_at"`
}

// Generator produces answers from composed prompts using an LLM.
// It must not perform retrieval or prompt construction.
type Generator struct {
	llm   LLM
	model string
}

// NewGenerator creates an answer generator with the given LLM implementation.
func NewGenerator(llm LLM, model string) *Generator {
	return &Generator{
		llm:   llm,
		model: model,
	}
}

// Generate invokes the LLM once with an already-assembled prompt. Provider
// errors keep their kind (ErrAuth, ErrTimeout, ...) in the chain.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Answer, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: LLM is required", ErrGenerationFailed)
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrGenerationFailed)
	}

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	return &Answer{
		Text:        text,
		Model:       g.model,
		GeneratedAt: time.Now(),
	}, nil
}
