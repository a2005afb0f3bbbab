package semver

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Range is a closed-open version interval [Low, High). It contains v iff
// Low <= v < High.
type Range struct {
	Low, High Version
}

// NewExact builds the compatibility range [v, bump-major(v)) used when a
// caller supplies a single exact version where a range is expected.
func NewExact(v Version) Range {
	return Range{Low: v, High: v.BumpMajor()}
}

// Unbounded admits every representable version. Frontends use it as the
// root constraint for a package the caller named without pinning a
// version, letting the solver pick freely by preference.
var Unbounded = Range{Low: Zero, High: Version{Major: math.MaxUint64}}

// NewExplicit builds a range from two explicit endpoints. Returns an error
// if low is not strictly less than high.
func NewExplicit(low, high Version) (Range, error) {
	if !low.LessThan(high) {
		return Range{}, errors.Errorf("invalid range: low %s is not less than high %s", low, high)
	}
	return Range{Low: low, High: high}, nil
}

// ParseRange parses the canonical exchange form "L <= v < H".
func ParseRange(s string) (Range, error) {
	fields := strings.Fields(s)
	if len(fields) != 5 || fields[1] != "<=" || fields[2] != "v" || fields[3] != "<" {
		return Range{}, errors.Errorf("malformed range %q: expected \"L <= v < H\"", s)
	}

	low, err := Parse(fields[0])
	if err != nil {
		return Range{}, errors.Wrapf(err, "malformed range %q", s)
	}
	high, err := Parse(fields[4])
	if err != nil {
		return Range{}, errors.Wrapf(err, "malformed range %q", s)
	}

	return NewExplicit(low, high)
}

func (r Range) String() string {
	return fmt.Sprintf("%s <= v < %s", r.Low, r.High)
}

// Contains reports whether v lies within [Low, High).
func (r Range) Contains(v Version) bool {
	return !v.LessThan(r.Low) && v.LessThan(r.High)
}

// Empty reports whether the range admits no versions at all (Low >= High).
func (r Range) Empty() bool {
	return !r.Low.LessThan(r.High)
}

// Intersect computes [max(Low,Low2), min(High,High2)). The ok return is
// false when the result is empty, signaling incompatibility; callers must
// not store an empty range (spec invariant: empty intersections are never
// stored).
func (r Range) Intersect(other Range) (Range, bool) {
	low := r.Low
	if other.Low.GreaterThan(low) {
		low = other.Low
	}
	high := r.High
	if other.High.LessThan(high) {
		high = other.High
	}

	result := Range{Low: low, High: high}
	if result.Empty() {
		return Range{}, false
	}
	return result, true
}

// AdmitsAny reports whether the intersection of r and other would allow at
// least one version.
func (r Range) AdmitsAny(other Range) bool {
	_, ok := r.Intersect(other)
	return ok
}
