package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/client"
)

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Find crates whose names contain a substring",
	Long: `Find every crate whose name contains the query, case-insensitively.
With no query, all crates are listed.

Examples:
  semver-server search nux
  semver-server search`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.New(cfg.Addr)
		crates, err := c.FindAllContaining(ctx, query)
		if err != nil {
			return err
		}

		if len(crates) == 0 {
			fmt.Println("no matching crates")
			return nil
		}
		for _, crate := range crates {
			fmt.Println(formatCrate(crate))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
