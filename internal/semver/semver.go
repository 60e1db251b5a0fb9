// Package semver implements the three-component version numbers used
// for crate releases. Versions order lexicographically by major, minor,
// patch; there are no pre-release or build suffixes.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a semantic version. Components are limited to uint16 so the
// wire and snapshot encodings stay compact and comparisons stay trivial.
type SemVer struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
	Patch uint16 `json:"patch"`
}

// New builds a version from its components.
func New(major, minor, patch uint16) SemVer {
	return SemVer{Major: major, Minor: minor, Patch: patch}
}

// Default returns 1.0.0, the conventional first release.
func Default() SemVer {
	return SemVer{Major: 1}
}

// WrongPartCountError reports a version string without exactly three
// dot-separated parts.
type WrongPartCountError struct {
	Got int
}

func (e *WrongPartCountError) Error() string {
	return fmt.Sprintf("expected 3 version parts, got %d", e.Got)
}

// InvalidIntegerError reports a version part that does not parse as an
// unsigned 16-bit integer.
type InvalidIntegerError struct {
	Part string
	Err  error
}

func (e *InvalidIntegerError) Error() string {
	return fmt.Sprintf("invalid version part %q: %v", e.Part, e.Err)
}

func (e *InvalidIntegerError) Unwrap() error {
	return e.Err
}

// Parse reads a "major.minor.patch" string. Each part must be a base-10
// unsigned integer that fits in 16 bits.
func Parse(s string) (SemVer, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemVer{}, &WrongPartCountError{Got: len(parts)}
	}

	nums := make([]uint16, 3)
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return SemVer{}, &InvalidIntegerError{Part: part, Err: err}
		}
		nums[i] = uint16(n)
	}

	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is Parse for compile-time-constant inputs; it panics on error.
func MustParse(s string) SemVer {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 ordering v against other. Major is compared
// first, then minor, then patch.
func (v SemVer) Compare(other SemVer) int {
	if c := compareUint16(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareUint16(v.Minor, other.Minor); c != 0 {
		return c
	}
	return compareUint16(v.Patch, other.Patch)
}

// Less reports whether v orders strictly before other.
func (v SemVer) Less(other SemVer) bool {
	return v.Compare(other) < 0
}

// String formats the version as "major.minor.patch".
func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func compareUint16(a, b uint16) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
