package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the crates in the local snapshot",
	Long: `List the crates in the local snapshot file without going through a
server. Useful for inspecting a store offline.

Example:
  semver-server list -s ./registry.json`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		repo := registry.Open(cfg.Store)

		crates := repo.FindContaining("")
		sort.Slice(crates, func(i, j int) bool {
			return crates[i].Metadata.Name < crates[j].Metadata.Name
		})

		if len(crates) == 0 {
			fmt.Printf("store %s is empty\n", cfg.Store)
			return nil
		}

		fmt.Printf("%d crate(s) in %s:\n", len(crates), cfg.Store)
		for _, crate := range crates {
			fmt.Println("  " + formatCrate(crate))
		}

		// Nothing changed, but Close still owns the snapshot write.
		return repo.Close()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
