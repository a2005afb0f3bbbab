// Package solver implements the backtracking version resolver (spec
// §4.5): given a set of root constraints and a registry client, it
// searches for a coherent assignment of exact versions to every
// reachable package such that every declared constraint, at every
// selected version, is satisfied.
package solver

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/zwilias/elm-json/internal/deperr"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/store"
)

// Preference selects whether the solver prefers the highest or lowest
// admissible version of each package, per spec §4.5.
type Preference int

const (
	Maximize Preference = iota
	Minimize
)

// Input is everything Solve needs beyond the registry collaborator.
type Input struct {
	// Roots are the initial per-package constraints: direct dependency
	// pins (as exact ranges) for install/uninstall/upgrade, or
	// additional roots for solve --extra.
	Roots map[pkgname.Name]semver.Range

	Preference Preference

	// ElmVersion, when non-nil, filters candidates to versions whose
	// declared elm-version range admits it. Per spec §9's open-question
	// resolution, this is set for application targets and left nil
	// (unconstrained) for package targets.
	ElmVersion *semver.Version
}

// Solver runs one backtracking search per Solve call; it holds no state
// between calls.
type Solver struct {
	reg Registry
	l   *logrus.Logger
}

// New constructs a Solver over reg. If l is nil, a standard logger is
// used.
func New(reg Registry, l *logrus.Logger) *Solver {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Solver{reg: reg, l: l}
}

// decision records one successful package selection on the search
// stack: enough to undo it (and try the next candidate) on backtrack.
type decision struct {
	pkg        pkgname.Name
	candidates []semver.Version
	tried      int // index into candidates of the version this decision picked
	mark       store.Mark

	// enqueued is the set of packages this decision's propagation pushed
	// onto the work queue for the first time; undone on backtrack.
	enqueued []pkgname.Name

	// reverted records packages whose prior selection was knocked out of
	// its accumulated range by this decision's propagation (spec §4.5:
	// "the package is re-entered into the queue"); their old selection
	// must be restored on backtrack, not just their range.
	reverted []selection
}

type selection struct {
	pkg pkgname.Name
	v   semver.Version
}

// Solve runs the search described in spec §4.5 steps 1-5.
func (s *Solver) Solve(ctx context.Context, in Input) (map[pkgname.Name]semver.Version, error) {
	st := store.New()
	sel := make(map[pkgname.Name]semver.Version)
	q := newQueue()

	roots := sortedRootNames(in.Roots)
	for _, p := range roots {
		if err := st.Tighten(p, in.Roots[p]); err != nil {
			c := err.(*store.Conflict)
			return nil, deperr.New(deperr.Unsolvable, &UnsolvableError{Conflict: conflictFrom(c, p, semver.Zero)})
		}
		q.push(p)
	}

	// Edge case (spec §4.5): a root constraint admitting no published
	// version fails immediately, not through backtracking.
	for _, p := range roots {
		versions, err := s.reg.ListVersions(ctx, p)
		if err != nil {
			return nil, err
		}
		rng, _ := st.Get(p)
		if !anyContained(versions, rng) {
			return nil, deperr.New(deperr.NoMatchingVersions, &NoMatchingVersionsError{Package: p, Range: rng})
		}
	}

	var decisions []*decision
	var lastConflict *ConflictError

	for {
		if err := ctx.Err(); err != nil {
			return nil, deperr.New(deperr.Cancelled, err)
		}

		pkg, ok := q.pop()
		if !ok {
			break
		}

		candidates, err := s.buildCandidates(ctx, st, pkg, in)
		if err != nil {
			return nil, err
		}

		d, conflict := s.tryFrom(ctx, st, sel, q, pkg, candidates, 0, in)
		if d == nil {
			if conflict != nil {
				lastConflict = conflict
			}
			// pkg itself isn't at fault for exhausting its own candidate
			// list under the current accumulated range; backtracking may
			// loosen that range by undoing an earlier decision, so pkg
			// needs another turn once backtracking succeeds.
			q.push(pkg)
			if ok := s.backtrack(ctx, st, sel, q, &decisions, in, &lastConflict); !ok {
				return nil, deperr.New(deperr.Unsolvable, &UnsolvableError{Conflict: lastConflict})
			}
			continue
		}
		decisions = append(decisions, d)
	}

	out := make(map[pkgname.Name]semver.Version, len(sel))
	for p, v := range sel {
		out[p] = v
	}
	return out, nil
}

// buildCandidates lists pkg's published versions, filtered to the
// accumulated range and ordered by preference (spec §4.5 step 2).
func (s *Solver) buildCandidates(ctx context.Context, st *store.Store, pkg pkgname.Name, in Input) ([]semver.Version, error) {
	rng, _ := st.Get(pkg)

	versions, err := s.reg.ListVersions(ctx, pkg)
	if err != nil {
		return nil, err
	}

	filtered := make([]semver.Version, 0, len(versions))
	for _, v := range versions {
		if rng.Contains(v) {
			filtered = append(filtered, v)
		}
	}

	// ListVersions returns descending order; reverse for Minimize.
	if in.Preference == Minimize {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	return filtered, nil
}

// tryFrom attempts candidates[startIdx:] for pkg in order, propagating
// each candidate's declared dependencies into the constraint store
// (spec §4.5 step 3) until one succeeds or the list is exhausted.
func (s *Solver) tryFrom(
	ctx context.Context, st *store.Store, sel map[pkgname.Name]semver.Version, q *queue,
	pkg pkgname.Name, candidates []semver.Version, startIdx int, in Input,
) (*decision, *ConflictError) {
	var lastConflict *ConflictError

	for i := startIdx; i < len(candidates); i++ {
		v := candidates[i]
		mark := st.Snapshot()

		pm, err := s.reg.FetchManifest(ctx, pkg, v)
		if err != nil {
			s.l.WithFields(logrus.Fields{"pkg": pkg.String(), "version": v.String(), "err": err}).
				Debug("skipping candidate: manifest fetch failed")
			st.Restore(mark)
			continue
		}

		if in.ElmVersion != nil && !pm.ElmVersion.Contains(*in.ElmVersion) {
			s.l.WithFields(logrus.Fields{"pkg": pkg.String(), "version": v.String()}).
				Debug("skipping candidate: elm-version range excludes target")
			st.Restore(mark)
			continue
		}

		sel[pkg] = v
		d := &decision{pkg: pkg, candidates: candidates, tried: i, mark: mark}

		conflict, ok := s.propagate(st, sel, q, pkg, v, pm.Dependencies, d)
		if ok {
			s.l.WithFields(logrus.Fields{"pkg": pkg.String(), "version": v.String()}).Debug("accepted candidate")
			return d, nil
		}

		for _, e := range d.enqueued {
			q.remove(e)
		}
		for _, r := range d.reverted {
			sel[r.pkg] = r.v
		}
		delete(sel, pkg)
		st.Restore(mark)
		lastConflict = conflict
	}

	return nil, lastConflict
}

// propagate tightens every dependency pkg@v declares, enqueueing
// packages that need a (re-)selection and recording undo information on
// d. Returns ok=false (with the triggering conflict) on the first
// incompatible range.
func (s *Solver) propagate(
	st *store.Store, sel map[pkgname.Name]semver.Version, q *queue,
	pkg pkgname.Name, v semver.Version, deps map[pkgname.Name]semver.Range, d *decision,
) (*ConflictError, bool) {
	for _, dep := range sortedDepNames(deps) {
		rangeQ := deps[dep]
		if err := st.Tighten(dep, rangeQ); err != nil {
			return conflictFrom(err.(*store.Conflict), pkg, v), false
		}

		curSel, has := sel[dep]
		if !has {
			if q.push(dep) {
				d.enqueued = append(d.enqueued, dep)
			}
			continue
		}

		curRange, _ := st.Get(dep)
		if !curRange.Contains(curSel) {
			d.reverted = append(d.reverted, selection{pkg: dep, v: curSel})
			delete(sel, dep)
			if q.push(dep) {
				d.enqueued = append(d.enqueued, dep)
			}
		}
	}
	return nil, true
}

// backtrack implements spec §4.5 step 4: pop decisions most-recent-first,
// undoing each, and retry the popped package's remaining candidates
// until one succeeds or the stack is exhausted.
func (s *Solver) backtrack(
	ctx context.Context, st *store.Store, sel map[pkgname.Name]semver.Version, q *queue,
	decisions *[]*decision, in Input, lastConflict **ConflictError,
) bool {
	for len(*decisions) > 0 {
		last := (*decisions)[len(*decisions)-1]
		*decisions = (*decisions)[:len(*decisions)-1]

		for _, e := range last.enqueued {
			q.remove(e)
		}
		for _, r := range last.reverted {
			sel[r.pkg] = r.v
		}
		delete(sel, last.pkg)
		st.Restore(last.mark)

		s.l.WithFields(logrus.Fields{"pkg": last.pkg.String()}).Debug("backtracking")

		d, conflict := s.tryFrom(ctx, st, sel, q, last.pkg, last.candidates, last.tried+1, in)
		if d != nil {
			*decisions = append(*decisions, d)
			return true
		}
		if conflict != nil {
			*lastConflict = conflict
		}
	}
	return false
}

func anyContained(versions []semver.Version, rng semver.Range) bool {
	for _, v := range versions {
		if rng.Contains(v) {
			return true
		}
	}
	return false
}

func sortedRootNames(roots map[pkgname.Name]semver.Range) []pkgname.Name {
	names := make([]pkgname.Name, 0, len(roots))
	for p := range roots {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })
	return names
}

func sortedDepNames(deps map[pkgname.Name]semver.Range) []pkgname.Name {
	names := make([]pkgname.Name, 0, len(deps))
	for p := range deps {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })
	return names
}
