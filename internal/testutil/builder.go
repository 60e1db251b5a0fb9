// Package testutil provides a fluent builder for seeding test
// repositories with crates.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

// crateData holds data for a crate to be registered.
type crateData struct {
	name     string
	author   string
	kind     registry.Kind
	releases []semver.SemVer
}

func defaultCrate(name string) crateData {
	return crateData{
		name:     name,
		author:   "cafebabe",
		kind:     registry.KindLibrary,
		releases: []semver.SemVer{semver.Default()},
	}
}

// CrateOption configures a crate being added to the builder.
type CrateOption func(*crateData)

// Author sets the crate author.
func Author(author string) CrateOption {
	return func(c *crateData) { c.author = author }
}

// Kind sets the crate kind.
func Kind(kind registry.Kind) CrateOption {
	return func(c *crateData) { c.kind = kind }
}

// Releases replaces the release history. Versions must be strictly
// increasing; Build fails the test otherwise.
func Releases(versions ...semver.SemVer) CrateOption {
	return func(c *crateData) { c.releases = versions }
}

// Builder accumulates crates and registers them in order.
type Builder struct {
	t      *testing.T
	repo   *registry.Repository
	crates []crateData
}

// NewBuilder creates a builder for the given test repository.
func NewBuilder(t *testing.T, repo *registry.Repository) *Builder {
	t.Helper()
	return &Builder{t: t, repo: repo}
}

// WithCrate adds a crate with optional configuration.
func (b *Builder) WithCrate(name string, opts ...CrateOption) *Builder {
	crate := defaultCrate(name)
	for _, opt := range opts {
		opt(&crate)
	}
	b.crates = append(b.crates, crate)
	return b
}

// Build registers all accumulated crates and their releases.
func (b *Builder) Build() *registry.Repository {
	b.t.Helper()
	for _, crate := range b.crates {
		require.NotEmpty(b.t, crate.releases, "crate %s needs at least one release", crate.name)

		meta := registry.NewMetadata(crate.name, crate.author, crate.kind)
		require.NoError(b.t, b.repo.AddCrate(meta, crate.releases[0]))
		for _, version := range crate.releases[1:] {
			require.NoError(b.t, b.repo.AddRelease(crate.name, version))
		}
	}
	return b.repo
}
