package cmd

import (
	"fmt"

	"github.com/Yates-Labs/fewshot/internal/history"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect or reset the chat history transcript",
}

var historyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the chat history transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		h, err := history.Read(cfg.History.Path)
		if err != nil {
			return err
		}

		if !h.Present() {
			fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")).Italic(true).Render("No chat history"))
			return nil
		}
		fmt.Print(h.String())
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Truncate the chat history transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if err := history.Clear(cfg.History.Path); err != nil {
			return err
		}
		fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B")).Render("✓ Cleared " + cfg.History.Path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
}
