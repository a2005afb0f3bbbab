// Package frontend implements the thin orchestration layer spec §4.6
// describes on top of the solver: install, uninstall, upgrade, tree, and
// solve. Each operation takes a manifest, builds root constraints, and
// runs the solver. Install, uninstall and upgrade then diff the result
// against the current manifest and (after confirmation) write the updated
// manifest back out; tree and solve return the result without writing.
//
// Interactive confirmation and rendered output are delegated to the
// Prompter and Renderer interfaces so this package stays free of any
// terminal concerns; a CLI layer built on top supplies real
// implementations, mirroring teacher's cmd/dep command Run methods
// without depending on flag parsing or os.Stdout directly.
package frontend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// Prompter asks the user to confirm a pending write, per spec §6's
// "user-refused" exit path. A non-interactive caller can supply one that
// always answers true (assume-yes) or false (dry run).
type Prompter interface {
	Confirm(message string) (bool, error)
}

// Renderer surfaces a Diff to the user before Confirm is called.
type Renderer interface {
	RenderDiff(d Diff)
}

// ChangeKind classifies one entry in a Diff group.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Changed
)

// Change is one package's before/after state within a diff group.
type Change struct {
	Package pkgname.Name
	Kind    ChangeKind
	Old     string
	New     string
}

// Group is one labeled section of a Diff, matching the teacher's
// show_diff("direct", ...) / show_diff("test", ...) groupings.
type Group struct {
	Label   string
	Changes []Change
}

// Diff is the full set of dependency-map changes a frontend proposes.
type Diff struct {
	Groups []Group
}

// Empty reports whether every group in d has no changes, i.e. nothing
// would be written.
func (d Diff) Empty() bool {
	for _, g := range d.Groups {
		if len(g.Changes) > 0 {
			return false
		}
	}
	return true
}

// diffGroup compares old and new maps of the same comparable value type
// and returns a labeled Group of additions, removals, and changes,
// ordered by package name for determinism.
func diffGroup[V comparable](label string, old, new map[pkgname.Name]V) Group {
	seen := make(map[pkgname.Name]bool, len(old)+len(new))
	for p := range old {
		seen[p] = true
	}
	for p := range new {
		seen[p] = true
	}
	names := make([]pkgname.Name, 0, len(seen))
	for p := range seen {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })

	var changes []Change
	for _, p := range names {
		ov, hadOld := old[p]
		nv, hasNew := new[p]
		switch {
		case !hadOld && hasNew:
			changes = append(changes, Change{Package: p, Kind: Added, New: fmt.Sprint(nv)})
		case hadOld && !hasNew:
			changes = append(changes, Change{Package: p, Kind: Removed, Old: fmt.Sprint(ov)})
		case hadOld && hasNew && ov != nv:
			changes = append(changes, Change{Package: p, Kind: Changed, Old: fmt.Sprint(ov), New: fmt.Sprint(nv)})
		}
	}
	return Group{Label: label, Changes: changes}
}

// ErrUpgradePackageUnsupported is returned by Upgrade when called on a
// package-variant manifest. Per spec §9's open question, the original
// implementation defers this rather than guessing at semantics; we reject
// outright instead of silently no-oping.
var ErrUpgradePackageUnsupported = errors.New("upgrading dependencies for package manifests is not supported")

// writeManifest emits m to path using a temp-file-then-rename swap so a
// reader never observes a partially written file.
func writeManifest(path string, m manifest.Manifest) error {
	data, err := manifest.Emit(m)
	if err != nil {
		return errors.Wrap(err, "emit manifest")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".elm-json-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp manifest")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp manifest")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp manifest")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "rename manifest into place")
	}
	return nil
}

// apply renders diff (if non-empty), asks prompter to confirm, and writes
// result to path on approval. It returns whether a write occurred.
func apply(prompter Prompter, renderer Renderer, diff Diff, path string, result manifest.Manifest) (bool, error) {
	if diff.Empty() {
		return false, nil
	}
	renderer.RenderDiff(diff)

	ok, err := prompter.Confirm("Should I make these changes?")
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := writeManifest(path, result); err != nil {
		return false, err
	}
	return true, nil
}

// pinned builds the range containing exactly v: [v, v with patch+1).
// install/uninstall use this for every existing direct dependency so an
// unrelated change never silently bumps it, mirroring the teacher's
// Strictness::Exact.
func pinned(v semver.Version) semver.Range {
	return semver.Range{Low: v, High: semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}}
}

// buildExtraRoot turns a caller-supplied addition into a root range: an
// exact pin when the caller named a version, or Unbounded when they named
// only the package and want the solver to pick freely.
func buildExtraRoot(v *semver.Version) semver.Range {
	if v == nil {
		return semver.Unbounded
	}
	return pinned(*v)
}

// reachable runs a breadth-first walk from roots over the dependency
// graph the registry reports for each selected version, returning the
// set of packages reachable (roots included). It is used to classify a
// resolved package as belonging to the regular or test dependency
// namespace, since the solver itself merges both into one flat
// assignment per spec §4.5.
func reachable(ctx context.Context, reg solver.Registry, roots []pkgname.Name, selected map[pkgname.Name]semver.Version) (map[pkgname.Name]bool, error) {
	seen := make(map[pkgname.Name]bool, len(roots))
	queue := append([]pkgname.Name(nil), roots...)
	for _, r := range roots {
		seen[r] = true
	}

	for len(queue) > 0 {
		pkg := queue[0]
		queue = queue[1:]

		v, ok := selected[pkg]
		if !ok {
			continue
		}
		pm, err := reg.FetchManifest(ctx, pkg, v)
		if err != nil {
			return nil, err
		}
		for dep := range pm.Dependencies {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			queue = append(queue, dep)
		}
	}
	return seen, nil
}

// reconstructApplication splits a solver's flat version assignment back
// into an application manifest's four dependency buckets: direct and
// test-direct are exactly the caller-supplied name sets (the packages the
// manifest names explicitly); everything else is indirect or
// test-indirect depending on which root set's transitive closure reaches
// it, with direct/test-direct's own closure taking priority over a
// shared package being misclassified as test-only.
func reconstructApplication(
	ctx context.Context, reg solver.Registry,
	directNames, testDirectNames []pkgname.Name,
	selected map[pkgname.Name]semver.Version,
) (direct, indirect, testDirect, testIndirect map[pkgname.Name]semver.Version, err error) {
	regularReachable, err := reachable(ctx, reg, directNames, selected)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	testReachable, err := reachable(ctx, reg, testDirectNames, selected)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	direct = make(map[pkgname.Name]semver.Version, len(directNames))
	for _, p := range directNames {
		direct[p] = selected[p]
	}
	testDirect = make(map[pkgname.Name]semver.Version, len(testDirectNames))
	for _, p := range testDirectNames {
		testDirect[p] = selected[p]
	}

	indirect = make(map[pkgname.Name]semver.Version)
	testIndirect = make(map[pkgname.Name]semver.Version)
	for p, v := range selected {
		if _, ok := direct[p]; ok {
			continue
		}
		if _, ok := testDirect[p]; ok {
			continue
		}
		if regularReachable[p] {
			indirect[p] = v
			continue
		}
		if testReachable[p] {
			testIndirect[p] = v
			continue
		}
		indirect[p] = v
	}
	return direct, indirect, testDirect, testIndirect, nil
}

// sortedVersionNames returns the keys of a version map in lexicographic
// package-name order, used when rendering machine-readable output.
func sortedVersionNames(m map[pkgname.Name]semver.Version) []pkgname.Name {
	names := make([]pkgname.Name, 0, len(m))
	for p := range m {
		names = append(names, p)
	}
	sortNames(names)
	return names
}

// sortNames sorts a slice of package names in place, lexicographically by
// (author, project).
func sortNames(names []pkgname.Name) {
	sort.Slice(names, func(i, j int) bool { return names[i].Less(names[j]) })
}

// writeJSONVersionMap writes m as a single-line canonical JSON object of
// "author/project": "M.m.p" pairs, matching the exchange format solve
// emits to standard output (spec §4.6).
func writeJSONVersionMap(buf *bytes.Buffer, m map[pkgname.Name]semver.Version) {
	buf.WriteByte('{')
	names := sortedVersionNames(m)
	for i, p := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, "%q:%q", p.String(), m[p].String())
	}
	buf.WriteByte('}')
}
