// Package version provides the semantic types shared across the TDX module
// tooling: dotted-triple module/seamldr versions and masked CPU family-model
// identifiers.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

var triplePattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Version is a "major.minor.update" triple. Comparison is lexicographic on
// the three components as integers.
type Version struct {
	Major  int
	Minor  int
	Update int
}

// Parse parses a strict "major.minor.update" string. No surrounding
// whitespace is accepted; callers reading from sysfs trim first.
//
// Example:
//
//	v, err := version.Parse("1.5.12")
func Parse(s string) (Version, error) {
	m := triplePattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor.update", s)
	}

	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid major in %q: %w", s, err)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("invalid minor in %q: %w", s, err)
	}
	update, err := strconv.Atoi(m[3])
	if err != nil {
		return Version{}, fmt.Errorf("invalid update in %q: %w", s, err)
	}

	return Version{Major: major, Minor: minor, Update: update}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants known to be well-formed.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String formats the version back to "major.minor.update".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Update)
}

// Compare returns -1, 0 or 1 if v is older than, equal to or newer than o.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return cmpInt(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpInt(v.Minor, o.Minor)
	}
	return cmpInt(v.Update, o.Update)
}

// SameMajorMinor reports whether v and o share the same major.minor line.
func (v Version) SameMajorMinor(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
