package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Yates-Labs/fewshot/internal/rag"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	selectTopK int
	exportFile string
)

var selectCmd = &cobra.Command{
	Use:   "select [question]",
	Short: "Show the examples that would be placed in the prompt",
	Long: `Rank the stored examples against a question and display the top-K with
their similarity scores. No request is sent to the LLM.

Examples:
  fewshot select "How do I resize an EC2 instance?"
  fewshot select "What is S3?" --topk 6
  fewshot select "What is S3?" --export selected.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
	selectCmd.Flags().IntVar(&selectTopK, "topk", 0, "Number of examples to show (default from config)")
	selectCmd.Flags().StringVar(&exportFile, "export", "", "Export selected examples to JSON file: --export <filename>")
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	pipeline, err := newRetrievalPipeline(ctx)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Close()

	selected, err := pipeline.SelectExamples(ctx, args[0], selectTopK)
	if err != nil {
		return fmt.Errorf("selection failed: %w", err)
	}

	if exportFile != "" {
		return handleExport(selected, exportFile)
	}

	return outputTable(os.Stdout, selected)
}

func handleExport(selected []rag.SelectedExample, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(selected); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("✓ Exported %d examples to %s\n", len(selected), filename)
	return nil
}

func outputTable(w io.Writer, selected []rag.SelectedExample) error {
	// LipGloss signature purple/pink palette
	var (
		headerColor  = lipgloss.Color("#F780FF") // Bright pink/magenta
		rankColor    = lipgloss.Color("#BD93F9") // Purple
		scoreColor   = lipgloss.Color("#FF79C6") // Pink
		textColor    = lipgloss.Color("#E9E9F4") // Light purple/white
		borderColor  = lipgloss.Color("#6272A4") // Muted purple
		summaryColor = lipgloss.Color("#8BE9FD") // Cyan accent
	)

	// Column widths
	const (
		rankWidth   = 6
		scoreWidth  = 9
		inputWidth  = 40
		answerWidth = 44
	)

	headerStyle := lipgloss.NewStyle().
		Foreground(headerColor).
		Bold(true).
		Padding(0, 1)

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)

	headers := []string{
		headerStyle.Width(rankWidth).Render("RANK"),
		headerStyle.Width(scoreWidth).Render("SCORE"),
		headerStyle.Width(inputWidth).Render("INPUT"),
		headerStyle.Width(answerWidth).Render("ANSWER"),
	}
	fmt.Fprintln(w, strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", rankWidth),
		strings.Repeat("─", scoreWidth),
		strings.Repeat("─", inputWidth),
		strings.Repeat("─", answerWidth),
	}
	fmt.Fprintln(w, borderStyle.Render(strings.Join(separatorParts, "┼")))

	rankStyle := lipgloss.NewStyle().
		Foreground(rankColor).
		Padding(0, 1).
		Width(rankWidth).
		Align(lipgloss.Right)

	scoreStyle := lipgloss.NewStyle().
		Foreground(scoreColor).
		Padding(0, 1).
		Width(scoreWidth).
		Align(lipgloss.Right)

	inputStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(inputWidth)

	answerStyle := lipgloss.NewStyle().
		Foreground(textColor).
		Padding(0, 1).
		Width(answerWidth)

	for _, s := range selected {
		cells := []string{
			rankStyle.Render(fmt.Sprintf("%d", s.Rank)),
			scoreStyle.Render(fmt.Sprintf("%.4f", s.Score)),
			inputStyle.Render(truncate(s.Input, inputWidth-2)),
			answerStyle.Render(truncate(s.Answer, answerWidth-2)),
		}
		fmt.Fprintln(w, strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Fprintln(w)
	summaryStyle := lipgloss.NewStyle().
		Foreground(summaryColor).
		Italic(true)
	fmt.Fprintln(w, summaryStyle.Render(fmt.Sprintf("Total: %d examples selected", len(selected))))

	return nil
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
