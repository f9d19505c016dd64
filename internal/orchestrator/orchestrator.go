package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Yates-Labs/fewshot/internal/config"
	"github.com/Yates-Labs/fewshot/internal/llm"
	"github.com/Yates-Labs/fewshot/internal/rag"
)

// chromemCollection names the in-process example collection.
const chromemCollection = "fewshot-examples"

// NewPipeline builds every collaborator from cfg and returns a ready
// pipeline. Nothing is read from ambient global state: the embedder, store
// and model client are all constructed here.
func NewPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return buildPipeline(ctx, cfg, logger, true)
}

// NewRetrievalPipeline builds a pipeline without a model client. It can
// index, select and preview but not answer, and it does not need AWS or
// OpenAI credentials for the llm section.
func NewRetrievalPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.ValidateRetrieval(); err != nil {
		return nil, err
	}
	return buildPipeline(ctx, cfg, logger, false)
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger, withLLM bool) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []io.Closer

	embedder, cacheCloser, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cacheCloser != nil {
		closers = append(closers, cacheCloser)
	}

	store, err := newVectorStore(ctx, cfg, embedder)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	var model llm.LLM
	if withLLM {
		model, err = newLLM(ctx, cfg.LLM)
		if err != nil {
			_ = store.Close()
			closeAll(closers)
			return nil, err
		}
	}

	logger.Debug("pipeline components ready",
		slog.String("embedder", cfg.Embedder.Provider),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("llm", withLLM))

	p, err := NewPipelineWith(Deps{
		Embedder:     embedder,
		Store:        store,
		LLM:          model,
		Model:        cfg.LLM.Model,
		ExamplesPath: cfg.Examples.Path,
		HistoryPath:  cfg.History.Path,
		TopK:         cfg.Selector.TopK,
		Logger:       logger,
		Closers:      closers,
	})
	if err != nil {
		_ = store.Close()
		closeAll(closers)
		return nil, err
	}
	return p, nil
}

// newEmbedder dispatches on the configured provider and wraps the result in
// the Redis cache when one is configured.
func newEmbedder(cfg config.Config, logger *slog.Logger) (rag.Embedder, io.Closer, error) {
	var embedder rag.Embedder
	var err error

	switch cfg.Embedder.Provider {
	case config.EmbedderOllama:
		embedder, err = rag.NewOllamaEmbedder(cfg.Embedder.Host, cfg.Embedder.Model, cfg.Embedder.Dimension)
	case config.EmbedderOpenAI:
		embedder, err = rag.NewOpenAIEmbedder(cfg.Embedder.APIKey, cfg.Embedder.Model, cfg.Embedder.Dimension)
	default:
		return nil, nil, fmt.Errorf("%w: unknown embedder %q", config.ErrInvalidConfig, cfg.Embedder.Provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.Cache.Addr == "" {
		return embedder, nil, nil
	}

	cache, err := rag.NewRedisEmbeddingCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL, cfg.Cache.Prefix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return rag.NewCachedEmbedder(embedder, cache, logger), cache, nil
}

func newVectorStore(ctx context.Context, cfg config.Config, embedder rag.Embedder) (rag.VectorStore, error) {
	switch cfg.Store.Backend {
	case config.StoreChromem:
		store, err := rag.NewChromemStore(chromemCollection, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		return store, nil
	case config.StoreMilvus:
		store, err := rag.NewMilvusStore(ctx, rag.MilvusConfig{
			Address:        cfg.Store.Milvus.Address,
			CollectionName: cfg.Store.Milvus.CollectionName,
			Dimension:      embedder.GetDimension(),
			M:              cfg.Store.Milvus.M,
			EfConstruction: cfg.Store.Milvus.EfConstruction,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store.Backend)
	}
}

func newLLM(ctx context.Context, cfg config.LLMConfig) (llm.LLM, error) {
	llmCfg := LLMConfigFrom(cfg)

	var model llm.LLM
	var err error
	switch cfg.Provider {
	case config.ProviderBedrock:
		model, err = llm.NewBedrockLLM(ctx, llmCfg)
	case config.ProviderOpenAI:
		model, err = llm.NewOpenAILLM(llmCfg)
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", config.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	return model, nil
}

// LLMConfigFrom converts the file/env LLM section to provider settings.
func LLMConfigFrom(cfg config.LLMConfig) llm.LLMConfig {
	stop := cfg.StopSequences
	if stop == nil {
		stop = []string{}
	}
	return llm.LLMConfig{
		Model: cfg.Model,
		Params: llm.Parameters{
			MaxTokens:     cfg.MaxTokens,
			Temperature:   cfg.Temperature,
			TopK:          cfg.TopK,
			TopP:          cfg.TopP,
			StopSequences: stop,
		},
		Profile:        cfg.Profile,
		Region:         cfg.Region,
		Endpoint:       cfg.Endpoint,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		APIKey:         cfg.APIKey,
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
