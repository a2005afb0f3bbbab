package solver

import (
	"fmt"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/store"
)

// ConflictError is the diagnostic spec §7 requires when *Unsolvable* is
// reported: the most recent Conflict triple the backtracker exhausted,
// naming the package, its existing accumulated range, the incoming range
// that collided with it, and which (package, version) declared that
// incoming range.
type ConflictError struct {
	Package     pkgname.Name
	Existing    semver.Range
	Incoming    semver.Range
	From        pkgname.Name
	FromVersion semver.Version
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%s: %s excludes the range %s declared by %s@%s",
		e.Package, e.Existing, e.Incoming, e.From, e.FromVersion,
	)
}

func conflictFrom(c *store.Conflict, from pkgname.Name, fromVersion semver.Version) *ConflictError {
	return &ConflictError{
		Package:     c.Package,
		Existing:    c.Existing,
		Incoming:    c.Incoming,
		From:        from,
		FromVersion: fromVersion,
	}
}

// NoMatchingVersionsError is returned when a root constraint's range
// excludes every version the registry publishes for that package, per
// spec §4.5's edge case: this is detected immediately rather than
// through backtracking, since no amount of search can manufacture a
// version that doesn't exist.
type NoMatchingVersionsError struct {
	Package pkgname.Name
	Range   semver.Range
}

func (e *NoMatchingVersionsError) Error() string {
	return fmt.Sprintf("no published version of %s satisfies %s", e.Package, e.Range)
}

// UnsolvableError is returned when backtracking exhausts the root
// decision: no assignment exists that satisfies every declared
// constraint. Conflict carries the diagnostic triple from the last
// collision the backtracker encountered.
type UnsolvableError struct {
	Conflict *ConflictError
}

func (e *UnsolvableError) Error() string {
	if e.Conflict == nil {
		return "no solution satisfies the given constraints"
	}
	return "no solution satisfies the given constraints: " + e.Conflict.Error()
}
