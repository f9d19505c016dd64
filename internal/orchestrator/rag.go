package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Yates-Labs/fewshot/internal/examples"
	"github.com/Yates-Labs/fewshot/internal/history"
	"github.com/Yates-Labs/fewshot/internal/llm"
	"github.com/Yates-Labs/fewshot/internal/prompt"
	"github.com/Yates-Labs/fewshot/internal/rag"
)

var (
	ErrEmptyQuery    = errors.New("question cannot be empty")
	ErrMissingDeps   = errors.New("pipeline dependency missing")
	ErrInvalidTopK   = errors.New("top-k must be positive")
	ErrRecordHistory = errors.New("failed to record chat history")
)

// Deps are the collaborators a Pipeline runs on. Embedder and Store are
// required. Without an LLM the pipeline can select and preview but Ask
// fails with ErrMissingDeps; everything else has a default.
type Deps struct {
	Embedder rag.Embedder
	Store    rag.VectorStore
	LLM      llm.LLM

	// Model is stamped on generated answers
	Model string

	ExamplesPath string
	HistoryPath  string

	// TopK is the number of examples placed in each prompt (default 3)
	TopK int

	// Examples memoises the example file; a fresh cache is used if nil
	Examples *examples.Cache

	Logger *slog.Logger

	// Closers are released by Close after the store
	Closers []io.Closer
}

// AskOptions tune a single call.
type AskOptions struct {
	// TopK overrides the pipeline's K when positive
	TopK int

	// Record appends the question and answer to the chat history
	Record bool
}

// Result is the outcome of one question.
type Result struct {
	Query string `json:"query"`

	// Answer is nil for a Preview
	Answer *llm.Answer `json:"answer,omitempty"`

	// Selected are the examples placed in the prompt, in rank order
	Selected []rag.SelectedExample `json:"selected"`

	// Trace holds one "Prompt N:" block per selected example
	Trace string `json:"trace"`

	// Prompt is the exact text sent to the model
	Prompt string `json:"prompt"`

	HistoryPresent bool `json:"history_present"`
}

// Pipeline orchestrates few-shot answering:
// load examples -> index -> read history -> select -> compose -> generate.
// It is safe for concurrent use; per-call values are local.
type Pipeline struct {
	store     rag.VectorStore
	selector  *rag.Selector
	generator *llm.Generator
	examples  *examples.Cache
	logger    *slog.Logger
	closers   []io.Closer

	// appendHistory records a turn; history.Append outside tests
	appendHistory func(path, query, answer string) error

	examplesPath string
	historyPath  string
	topK         int
}

// NewPipelineWith creates a pipeline from already-built collaborators.
func NewPipelineWith(deps Deps) (*Pipeline, error) {
	if deps.Embedder == nil || deps.Store == nil {
		return nil, fmt.Errorf("%w: embedder and store are required", ErrMissingDeps)
	}
	if deps.ExamplesPath == "" {
		return nil, fmt.Errorf("%w: examples path", ErrMissingDeps)
	}
	if deps.TopK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, deps.TopK)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	selector, err := rag.NewSelector(deps.Embedder, deps.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create selector: %w", err)
	}

	cache := deps.Examples
	if cache == nil {
		cache = examples.NewCache()
	}

	topK := deps.TopK
	if topK == 0 {
		topK = 3
	}

	var generator *llm.Generator
	if deps.LLM != nil {
		generator = llm.NewGenerator(deps.LLM, deps.Model)
	}

	return &Pipeline{
		store:         deps.Store,
		selector:      selector,
		generator:     generator,
		examples:      cache,
		logger:        logger.With(slog.String("module", "pipeline")),
		closers:       deps.Closers,
		appendHistory: history.Append,
		examplesPath:  deps.ExamplesPath,
		historyPath:   deps.HistoryPath,
		topK:          topK,
	}, nil
}

// Close releases resources held by the pipeline.
func (p *Pipeline) Close() error {
	var errs []error
	if p.store != nil {
		errs = append(errs, p.store.Close())
	}
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Ask answers a question with the pipeline's defaults.
func (p *Pipeline) Ask(ctx context.Context, query string) (*Result, error) {
	return p.AskWithOptions(ctx, query, AskOptions{})
}

// AskWithOptions answers a question. A failure before the answer is
// generated aborts the call with a nil result. If only recording the turn
// fails, the answered result is returned together with an error wrapping
// ErrRecordHistory.
func (p *Pipeline) AskWithOptions(ctx context.Context, query string, opts AskOptions) (*Result, error) {
	if p.generator == nil {
		return nil, fmt.Errorf("%w: no LLM configured", ErrMissingDeps)
	}

	res, err := p.prepare(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("generating answer", slog.Int("prompt_chars", len(res.Prompt)))
	answer, err := p.generator.Generate(ctx, res.Prompt)
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}
	res.Answer = answer

	p.logger.Info("answered question",
		slog.Int("examples", len(res.Selected)),
		slog.Int("answer_chars", len(answer.Text)))

	if opts.Record && p.historyPath != "" {
		if err := p.appendHistory(p.historyPath, query, answer.Text); err != nil {
			p.logger.Warn("answer not recorded", slog.String("error", err.Error()))
			return res, fmt.Errorf("%w: %w", ErrRecordHistory, err)
		}
	}
	return res, nil
}

// Preview runs every stage except generation and returns the prompt that
// would be sent.
func (p *Pipeline) Preview(ctx context.Context, query string, opts AskOptions) (*Result, error) {
	return p.prepare(ctx, query, opts)
}

// SelectExamples returns the k examples closest to query, indexing the
// collection first if needed. k <= 0 uses the pipeline's K.
func (p *Pipeline) SelectExamples(ctx context.Context, query string, k int) ([]rag.SelectedExample, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = p.topK
	}
	if err := p.ensureIndexed(ctx); err != nil {
		return nil, err
	}
	selected, err := p.selector.Select(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("example selection failed: %w", err)
	}
	return selected, nil
}

// Reindex re-reads the example file and rebuilds the vector store.
func (p *Pipeline) Reindex(ctx context.Context) error {
	exs, err := p.examples.Load(p.examplesPath)
	if err != nil {
		return fmt.Errorf("failed to load examples: %w", err)
	}
	if err := p.selector.Reindex(ctx, exs); err != nil {
		return fmt.Errorf("failed to index examples: %w", err)
	}
	return nil
}

// HistoryPath returns the chat history file the pipeline reads.
func (p *Pipeline) HistoryPath() string {
	return p.historyPath
}

func (p *Pipeline) ensureIndexed(ctx context.Context) error {
	exs, err := p.examples.Load(p.examplesPath)
	if err != nil {
		return fmt.Errorf("failed to load examples: %w", err)
	}
	if err := p.selector.Index(ctx, exs); err != nil {
		return fmt.Errorf("failed to index examples: %w", err)
	}
	return nil
}

func (p *Pipeline) prepare(ctx context.Context, query string, opts AskOptions) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	k := p.topK
	if opts.TopK > 0 {
		k = opts.TopK
	}

	// Stage 1: examples and index
	if err := p.ensureIndexed(ctx); err != nil {
		return nil, err
	}

	// Stage 2: history
	var h history.History
	if p.historyPath != "" {
		var err error
		h, err = history.Read(p.historyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read chat history: %w", err)
		}
	}

	// Stage 3: selection
	selected, err := p.selector.Select(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("example selection failed: %w", err)
	}
	p.logger.Debug("selected examples", slog.Int("k", k), slog.Int("selected", len(selected)))

	// Stage 4: prompt
	text, err := prompt.Compose(selected, h, query)
	if err != nil {
		return nil, fmt.Errorf("prompt assembly failed: %w", err)
	}

	return &Result{
		Query:          query,
		Selected:       selected,
		Trace:          prompt.Trace(selected),
		Prompt:         text,
		HistoryPresent: h.Present(),
	}, nil
}
