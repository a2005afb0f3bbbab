// Package semver implements the ecosystem's flavor of semantic versioning:
// plain (major, minor, patch) triples ordered lexicographically, and
// closed-open ranges over them.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a (major, minor, patch) triple of non-negative integers.
type Version struct {
	Major, Minor, Patch uint64
}

// Zero is the lowest representable version, 0.0.0.
var Zero = Version{}

// Parse parses a version from its canonical "M.m.p" textual form.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, errors.Errorf("malformed version %q: expected M.m.p", s)
	}

	var nums [3]uint64
	for i, p := range parts {
		if p == "" {
			return Version{}, errors.Errorf("malformed version %q: empty component", s)
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, errors.Wrapf(err, "malformed version %q", s)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse parses a version, panicking on failure. Intended for literals
// known to be well-formed (tests, constants).
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, using lexicographic ordering over (major, minor, patch).
func (v Version) Compare(other Version) int {
	if c := cmpUint(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmpUint(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmpUint(v.Patch, other.Patch)
}

// LessThan reports whether v < other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// GreaterThan reports whether v > other.
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }

// Equal reports whether v == other.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// BumpMajor returns (v.Major+1, 0, 0).
func (v Version) BumpMajor() Version {
	return Version{Major: v.Major + 1}
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ByVersion sorts Version slices in ascending order. It implements
// sort.Interface directly; wrap it in sort.Reverse for descending order.
type ByVersion []Version

func (s ByVersion) Len() int           { return len(s) }
func (s ByVersion) Less(i, j int) bool { return s[i].LessThan(s[j]) }
func (s ByVersion) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
