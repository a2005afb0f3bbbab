// Package store implements the constraint store: the mutable collection
// of per-package accumulated version ranges the solver builds up during
// search, with a journal-based snapshot (O(1)) and restore (linear in the
// number of changes undone) for backtracking.
package store

import (
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// Conflict is returned by Tighten when intersecting the incoming range
// with the existing one would leave nothing admissible.
type Conflict struct {
	Package  pkgname.Name
	Existing semver.Range
	Incoming semver.Range
}

func (c *Conflict) Error() string {
	return "conflicting constraints for " + c.Package.String() + ": " +
		c.Existing.String() + " does not overlap " + c.Incoming.String()
}

// entry is one journal record: the state of a package's accumulated range
// (and whether one existed at all) immediately before a Tighten call that
// changed it.
type entry struct {
	pkg       pkgname.Name
	hadRange  bool
	oldRange  semver.Range
}

// Store is the per-solve-invocation constraint accumulator. It is not
// safe for concurrent use; the solver that owns it is single-threaded.
type Store struct {
	ranges  map[pkgname.Name]semver.Range
	journal []entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{ranges: make(map[pkgname.Name]semver.Range)}
}

// Get returns the current accumulated range for pkg, and whether one has
// been recorded at all (an unconstrained package has no entry).
func (s *Store) Get(pkg pkgname.Name) (semver.Range, bool) {
	r, ok := s.ranges[pkg]
	return r, ok
}

// Tighten intersects the stored range for pkg with r, recording a journal
// entry so the change can be undone by Restore. If no range is yet stored
// for pkg, r becomes the stored range outright.
func (s *Store) Tighten(pkg pkgname.Name, r semver.Range) error {
	existing, had := s.ranges[pkg]

	var next semver.Range
	if had {
		intersected, ok := existing.Intersect(r)
		if !ok {
			return &Conflict{Package: pkg, Existing: existing, Incoming: r}
		}
		next = intersected
	} else {
		next = r
	}

	s.journal = append(s.journal, entry{pkg: pkg, hadRange: had, oldRange: existing})
	s.ranges[pkg] = next
	return nil
}

// Mark is an opaque checkpoint into the journal, returned by Snapshot and
// consumed by Restore.
type Mark int

// Snapshot returns a checkpoint representing the store's current state.
// It is O(1): no copying occurs until (and unless) Restore unwinds past
// entries recorded after this point.
func (s *Store) Snapshot() Mark {
	return Mark(len(s.journal))
}

// Restore reverses every Tighten call recorded since mark, returning the
// store to the state it was in when Snapshot produced mark.
func (s *Store) Restore(mark Mark) {
	for len(s.journal) > int(mark) {
		last := s.journal[len(s.journal)-1]
		s.journal = s.journal[:len(s.journal)-1]

		if last.hadRange {
			s.ranges[last.pkg] = last.oldRange
		} else {
			delete(s.ranges, last.pkg)
		}
	}
}
