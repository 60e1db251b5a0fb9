package testutil

import (
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/semver"
)

// WithStandardCrates adds the standard test dataset: two similarly named
// binaries for case-sensitivity checks and two hello_* crates for
// substring searches.
func (b *Builder) WithStandardCrates() *Builder {
	return b.
		WithCrate("linux.exe",
			Author("Linus Torvalds"), Kind(registry.KindBinary),
			Releases(semver.New(1, 0, 0), semver.New(1, 0, 1))).
		WithCrate("LINUX.EXE!!",
			Author("Linus Torvalds"), Kind(registry.KindBinary)).
		WithCrate("hello_bin",
			Author("Busy Person"), Kind(registry.KindBinary),
			Releases(semver.New(0, 1, 0))).
		WithCrate("hello_moon",
			Author("Busy Person"), Kind(registry.KindLibrary),
			Releases(semver.New(0, 1, 0), semver.New(0, 2, 0)))
}
