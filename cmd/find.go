package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/client"
	"github.com/spookyvision/semver-server/internal/registry"
)

var findCmd = &cobra.Command{
	Use:   "find NAME",
	Short: "Look up a crate by its exact name",
	Long: `Look up a crate by its exact name. Matching is case-sensitive; a miss
exits with a non-zero status.

Example:
  semver-server find linux.exe`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.New(cfg.Addr)
		crate, err := c.FindExact(ctx, args[0])
		if err != nil {
			return err
		}
		if crate == nil {
			return fmt.Errorf("no crate named %q", args[0])
		}

		fmt.Println(formatCrate(*crate))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}

// formatCrate renders one crate as a single line:
//
//	linux.exe (binary) by Linus Torvalds: 1.0.0, 1.0.1
func formatCrate(crate registry.Crate) string {
	versions := make([]string, 0, len(crate.ReleaseHistory))
	for _, v := range crate.ReleaseHistory {
		versions = append(versions, v.String())
	}
	return fmt.Sprintf("%s (%s) by %s: %s",
		crate.Metadata.Name,
		crate.Metadata.Kind,
		crate.Metadata.Author,
		strings.Join(versions, ", "))
}
