package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/client"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

var (
	addAuthor  string
	addKind    string
	addVersion string
)

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a new crate",
	Long: `Register a new crate with its first release. Fails when a crate of
that name already exists.

Examples:
  semver-server add linux.exe --author "Linus Torvalds" --kind binary
  semver-server add hello_moon --author "Busy Person" --kind library --version 0.1.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		kind, err := registry.ParseKind(addKind)
		if err != nil {
			return err
		}
		version, err := semver.Parse(addVersion)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", addVersion, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		name := args[0]
		c := client.New(cfg.Addr)
		if err := c.AddCrate(ctx, registry.NewMetadata(name, addAuthor, kind), version); err != nil {
			return err
		}

		fmt.Printf("added %s %s\n", name, version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)

	addCmd.Flags().StringVar(&addAuthor, "author", "", "crate author")
	addCmd.Flags().StringVar(&addKind, "kind", "library", "crate kind: binary or library")
	addCmd.Flags().StringVar(&addVersion, "version", "1.0.0", "first release version")
	_ = addCmd.MarkFlagRequired("author")
}
