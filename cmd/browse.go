package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/browse"
	"github.com/spookyvision/semver-server/internal/client"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse a running registry interactively",
	Long: `Open an interactive terminal browser against a running registry
server: type a query, see matching crates and their release histories.

Example:
  semver-server browse --addr 127.0.0.1:7878`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		model := browse.New(client.New(cfg.Addr))
		p := tea.NewProgram(model, tea.WithAltScreen())

		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running browser: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
