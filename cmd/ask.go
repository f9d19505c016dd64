package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/fewshot/internal/orchestrator"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	topK    int
	dryRun  bool
	record  bool
	reindex bool
	verbose bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question using few-shot examples",
	Long: `Ask a natural language question. The closest stored examples are placed in
the prompt ahead of the chat history and the question.

This command:
1. Loads and embeds the example prompts (once per store)
2. Selects the top-K examples most similar to your question
3. Folds in the chat history transcript
4. Sends the composed prompt to the LLM (Amazon Bedrock by default)

Environment variables:
  profile_name / AWS_PROFILE  - AWS shared-config profile for Bedrock
  AWS_REGION                  - Bedrock region (default: us-east-1)
  OLLAMA_HOST                 - Ollama server for embeddings (default: http://localhost:11434)
  OPENAI_API_KEY              - Required when using the OpenAI provider

Examples:
  fewshot ask "How do I resize an EC2 instance?"
  fewshot ask "What is S3?" --topk 5 --verbose
  fewshot ask "And Glacier?" --record
  fewshot ask "What is Lambda?" --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of examples to place in the prompt (default from config)")
	askCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the composed prompt without calling the model")
	askCmd.Flags().BoolVar(&record, "record", false, "Append the question and answer to the chat history")
	askCmd.Flags().BoolVar(&reindex, "reindex", false, "Force re-embedding of the example prompts")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show progress and the selected prompts")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := cmd.Context()

	// Styling
	var (
		headerColor   = lipgloss.Color("#F780FF") // Bright pink
		questionColor = lipgloss.Color("#8BE9FD") // Cyan
		answerColor   = lipgloss.Color("#E9E9F4") // Light purple/white
		contextColor  = lipgloss.Color("#6272A4") // Muted purple
		errorColor    = lipgloss.Color("#FF5555") // Red
		successColor  = lipgloss.Color("#50FA7B") // Green
	)

	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true)

	questionStyle := lipgloss.NewStyle().
		Foreground(questionColor).
		Italic(true)

	answerStyle := lipgloss.NewStyle().
		Foreground(answerColor)

	contextStyle := lipgloss.NewStyle().
		Foreground(contextColor).
		Italic(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(errorColor).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(successColor)

	// Print question
	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(questionStyle.Render(question))
	fmt.Println()

	if verbose {
		fmt.Println(contextStyle.Render("→ Initializing pipeline..."))
	}
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return fmt.Errorf("%s Failed to create pipeline: %w", errorStyle.Render("Error:"), err)
	}
	defer pipeline.Close()

	if reindex {
		fmt.Println(contextStyle.Render("→ Re-embedding example prompts..."))
		if err := pipeline.Reindex(ctx); err != nil {
			return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
		}
		fmt.Println(successStyle.Render("✓ Examples re-indexed"))
	}

	opts := orchestrator.AskOptions{TopK: topK, Record: record}

	if dryRun {
		res, err := pipeline.Preview(ctx, question, opts)
		if err != nil {
			return fmt.Errorf("%s %w", errorStyle.Render("Error:"), err)
		}
		fmt.Println(headerStyle.Render("Prompt:"))
		fmt.Println(answerStyle.Render(res.Prompt))
		fmt.Println()
		return nil
	}

	if verbose {
		fmt.Println(contextStyle.Render("→ Selecting examples and generating answer..."))
	}
	res, err := pipeline.AskWithOptions(ctx, question, opts)
	var recordErr error
	if err != nil {
		if res == nil || !errors.Is(err, orchestrator.ErrRecordHistory) {
			return fmt.Errorf("%s Failed to generate answer: %w", errorStyle.Render("Error:"), err)
		}
		// The answer still prints; the failure is reported after it
		recordErr = err
	}

	// Print answer
	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	fmt.Println(answerStyle.Render(strings.TrimSpace(res.Answer.Text)))
	fmt.Println()

	fmt.Println(headerStyle.Render("Prompts used:"))
	fmt.Println()
	fmt.Println(contextStyle.Render(res.Trace))
	fmt.Println()

	if verbose {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ %d examples, model %s", len(res.Selected), res.Answer.Model)))
	}
	if recordErr != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("Error:"), recordErr)
	}
	if record {
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Recorded turn in %s", pipeline.HistoryPath())))
	}

	return nil
}
