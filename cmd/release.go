package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/client"
	"github.com/spookyvision/semver-server/internal/semver"
)

var releaseCmd = &cobra.Command{
	Use:   "release NAME VERSION",
	Short: "Add a release to an existing crate",
	Long: `Add a release to an existing crate. The version must strictly exceed
the crate's latest release.

Example:
  semver-server release linux.exe 1.0.1`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		name := args[0]
		version, err := semver.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := client.New(cfg.Addr)
		if err := c.AddRelease(ctx, name, version); err != nil {
			return err
		}

		fmt.Printf("released %s %s\n", name, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}
