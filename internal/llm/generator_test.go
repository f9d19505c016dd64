package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const samplePrompt = "\n\nHuman: What is EC2? \n\nAssistant: EC2 is a compute service.\n\n" +
	"Chat History: None\n\nHuman: How do I resize an EC2 instance?\n\nAssistant:"

func TestGenerator_Generate_Success(t *testing.T) {
	mockLLM := NewMockLLM("Stop the instance, change its type, then start it.")
	gen := NewGenerator(mockLLM, "test-model")

	ctx := context.Background()
	answer, err := gen.Generate(ctx, samplePrompt)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer == nil {
		t.Fatal("answer is nil")
	}

	if answer.Text != "Stop the instance, change its type, then start it." {
		t.Errorf("unexpected answer text: %s", answer.Text)
	}

	if answer.Model != "test-model" {
		t.Errorf("expected model test-model, got %s", answer.Model)
	}

	if answer.GeneratedAt.IsZero() {
		t.Error("generated timestamp is zero")
	}

	// The prompt must reach the model unchanged
	if mockLLM.LastPrompt() != samplePrompt {
		t.Errorf("mock LLM received altered prompt: %q", mockLLM.LastPrompt())
	}
}

func TestGenerator_Generate_EmptyPrompt(t *testing.T) {
	mockLLM := NewMockLLM("test")
	gen := NewGenerator(mockLLM, "test-model")

	_, err := gen.Generate(context.Background(), "")

	if err == nil {
		t.Fatal("expected error for empty prompt")
	}

	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}

	if mockLLM.Calls() != 0 {
		t.Errorf("LLM should not be called, got %d calls", mockLLM.Calls())
	}
}

func TestGenerator_Generate_NilLLM(t *testing.T) {
	gen := NewGenerator(nil, "test-model")

	_, err := gen.Generate(context.Background(), samplePrompt)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestGenerator_Generate_LLMErrorKeepsKind(t *testing.T) {
	cause := errors.New("connection reset by peer")
	mockLLM := NewMockLLMWithError(classifyBedrockError(cause))
	gen := NewGenerator(mockLLM, "test-model")

	_, err := gen.Generate(context.Background(), samplePrompt)

	if err == nil {
		t.Fatal("expected error from LLM")
	}

	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected provider cause in chain, got %v", err)
	}
}

func TestMockLLM_Generate(t *testing.T) {
	tests := []struct {
		name     string
		mock     *MockLLM
		prompt   string
		wantErr  bool
		wantText string
	}{
		{
			name:     "fixed response",
			mock:     NewMockLLM("Fixed answer text"),
			prompt:   "Any prompt",
			wantErr:  false,
			wantText: "Fixed answer text",
		},
		{
			name:    "error response",
			mock:    NewMockLLMWithError(errors.New("mock error")),
			prompt:  "Any prompt",
			wantErr: true,
		},
		{
			name:     "auto-generated response",
			mock:     &MockLLM{},
			prompt:   samplePrompt,
			wantErr:  false,
			wantText: `"How do I resize an EC2 instance?" using 1 examples`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			text, err := tt.mock.Generate(ctx, tt.prompt)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if tt.wantText != "" && !strings.Contains(text, tt.wantText) {
				t.Errorf("expected text to contain %q, got %q", tt.wantText, text)
			}

			if tt.mock.LastPrompt() != tt.prompt {
				t.Errorf("expected LastPrompt to be %q, got %q", tt.prompt, tt.mock.LastPrompt())
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	mockLLM := NewMockLLM("test")

	gen := NewGenerator(mockLLM, "anthropic.claude-v2")

	if gen == nil {
		t.Fatal("generator is nil")
	}

	if gen.llm != mockLLM {
		t.Error("LLM not set correctly")
	}

	if gen.model != "anthropic.claude-v2" {
		t.Errorf("expected model anthropic.claude-v2, got %s", gen.model)
	}
}

func TestDefaultLLMConfig(t *testing.T) {
	cfg := DefaultLLMConfig()

	if cfg.Model != "anthropic.claude-v2" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Region != "us-east-1" {
		t.Errorf("Region = %q", cfg.Region)
	}
	if cfg.Endpoint != "" {
		t.Errorf("Endpoint = %q, want it derived from the region", cfg.Endpoint)
	}
	if got := BedrockEndpoint(cfg.Region); got != "https://bedrock-runtime.us-east-1.amazonaws.com" {
		t.Errorf("BedrockEndpoint = %q", got)
	}
	if cfg.Params.MaxTokens != 8191 || cfg.Params.TopK != 250 || cfg.Params.TopP != 0.5 || cfg.Params.Temperature != 0 {
		t.Errorf("unexpected params: %+v", cfg.Params)
	}
	if cfg.Params.StopSequences == nil || len(cfg.Params.StopSequences) != 0 {
		t.Errorf("StopSequences = %#v, want empty non-nil", cfg.Params.StopSequences)
	}
}
