// Package registry implements the crate registry: metadata, versioned
// release histories, and the persistent repository that owns them.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/spookyvision/semver-server/internal/semver"
)

// Kind distinguishes executable crates from libraries.
type Kind int

const (
	KindBinary Kind = iota
	KindLibrary
)

// String returns a human-readable representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string form.
func (k Kind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindBinary, KindLibrary:
		return json.Marshal(k.String())
	default:
		return nil, fmt.Errorf("unknown crate kind %d", int(k))
	}
}

// UnmarshalJSON decodes a kind from its string form.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind converts the string form back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "binary":
		return KindBinary, nil
	case "library":
		return KindLibrary, nil
	default:
		return 0, fmt.Errorf("unknown crate kind %q", s)
	}
}

// Metadata holds the immutable descriptive facts about a crate.
// Name is the repository's unique key.
type Metadata struct {
	Name   string `json:"name"`
	Author string `json:"author"`
	Kind   Kind   `json:"kind"`
}

// NewMetadata creates crate metadata.
func NewMetadata(name, author string, kind Kind) Metadata {
	return Metadata{Name: name, Author: author, Kind: kind}
}

// Key identifies a crate by name only. Two crates with the same name are
// the same crate for membership purposes, regardless of author, kind or
// release history; use Key values as map/set keys instead of comparing
// whole Crate values.
type Key string

// Crate pairs metadata with an append-only, strictly increasing release
// history. A crate admitted to a repository always has at least one
// release.
type Crate struct {
	Metadata       Metadata        `json:"metadata"`
	ReleaseHistory []semver.SemVer `json:"release_history"`
}

// NewCrate creates a crate with an empty release history. Callers are
// expected to push an initial release immediately; the repository never
// exposes a crate without one.
func NewCrate(metadata Metadata) *Crate {
	return &Crate{Metadata: metadata}
}

// Key returns the crate's name-based identity key.
func (c *Crate) Key() Key {
	return Key(c.Metadata.Name)
}

// Equal reports whether two crates share the same identity key.
// It deliberately ignores author, kind and release history.
func (c *Crate) Equal(other *Crate) bool {
	return c.Key() == other.Key()
}

// LatestRelease returns the newest release, or false if the history is
// empty (only possible before the crate is admitted to a repository).
func (c *Crate) LatestRelease() (semver.SemVer, bool) {
	if len(c.ReleaseHistory) == 0 {
		return semver.SemVer{}, false
	}
	return c.ReleaseHistory[len(c.ReleaseHistory)-1], true
}

// AddRelease appends version to the history. The version must strictly
// exceed the current latest release; an empty history accepts anything.
// This is the only place the monotonicity invariant is enforced, so every
// path that grows a history must go through it.
func (c *Crate) AddRelease(version semver.SemVer) error {
	if last, ok := c.LatestRelease(); ok && !last.Less(version) {
		return ErrInvalidVersion
	}
	c.ReleaseHistory = append(c.ReleaseHistory, version)
	return nil
}

// clone returns a deep copy so callers cannot mutate repository state
// through query results.
func (c *Crate) clone() Crate {
	out := Crate{Metadata: c.Metadata}
	if c.ReleaseHistory != nil {
		out.ReleaseHistory = make([]semver.SemVer, len(c.ReleaseHistory))
		copy(out.ReleaseHistory, c.ReleaseHistory)
	}
	return out
}
