package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Yates-Labs/fewshot/internal/config"
	"github.com/Yates-Labs/fewshot/internal/orchestrator"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile   string
	logLevel     string
	examplesFile string
	historyFile  string
)

var rootCmd = &cobra.Command{
	Use:   "fewshot",
	Short: "fewshot - Few-shot question answering over a curated example set",
	Long: `fewshot answers questions with a hosted LLM, grounding each prompt in the
stored question/answer examples most similar to the question.

It embeds the example set, picks the closest examples, folds in the chat
history transcript, and sends the composed prompt to the model.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&examplesFile, "examples", "", "Path to the example prompts YAML file")
	rootCmd.PersistentFlags().StringVar(&historyFile, "history", "", "Path to the chat history transcript")
}

// loadConfig resolves configuration in order: defaults, config file,
// environment, then command-line flags. Only the sections every command
// needs are validated here; NewPipeline checks the llm section.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if examplesFile != "" {
		cfg.Examples.Path = examplesFile
	}
	if historyFile != "" {
		cfg.History.Path = historyFile
	}

	return cfg, cfg.ValidateRetrieval()
}

// newPipeline loads configuration and builds the answering pipeline with a
// logger writing to stderr.
func newPipeline(ctx context.Context) (*orchestrator.Pipeline, error) {
	return buildPipeline(ctx, orchestrator.NewPipeline)
}

// newRetrievalPipeline is newPipeline without the model client, for
// commands that never generate.
func newRetrievalPipeline(ctx context.Context) (*orchestrator.Pipeline, error) {
	return buildPipeline(ctx, orchestrator.NewRetrievalPipeline)
}

type pipelineBuilder func(context.Context, config.Config, *slog.Logger) (*orchestrator.Pipeline, error)

func buildPipeline(ctx context.Context, build pipelineBuilder) (*orchestrator.Pipeline, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(os.Stderr, cfg.Log)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	return build(ctx, cfg, logger)
}
