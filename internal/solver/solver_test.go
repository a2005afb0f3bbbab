package solver_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zwilias/elm-json/internal/deperr"
	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// fakeRegistry is a fully in-memory Registry for solver tests: a fixed
// catalog of versions per package, each with a fixed dependency map.
type fakeRegistry struct {
	versions map[string][]semver.Version
	deps     map[string]map[pkgname.Name]semver.Range
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		versions: make(map[string][]semver.Version),
		deps:     make(map[string]map[pkgname.Name]semver.Range),
	}
}

func (r *fakeRegistry) add(t *testing.T, pkg, version string, deps map[string]string) {
	t.Helper()
	v := semver.MustParse(version)

	r.versions[pkg] = append(r.versions[pkg], v)
	sortDescendingForTest(r.versions[pkg])

	rangeMap := make(map[pkgname.Name]semver.Range, len(deps))
	for depPkg, rangeStr := range deps {
		rangeMap[mustPkg(t, depPkg)] = mustRange(t, rangeStr)
	}
	r.deps[pkg+"@"+version] = rangeMap
}

func (r *fakeRegistry) ListVersions(_ context.Context, pkg pkgname.Name) ([]semver.Version, error) {
	vs, ok := r.versions[pkg.String()]
	if !ok {
		return nil, deperr.New(deperr.UnknownPackage, errors.New("unknown package "+pkg.String()))
	}
	out := make([]semver.Version, len(vs))
	copy(out, vs)
	return out, nil
}

func (r *fakeRegistry) FetchManifest(_ context.Context, pkg pkgname.Name, v semver.Version) (*manifest.Package, error) {
	deps, ok := r.deps[pkg.String()+"@"+v.String()]
	if !ok {
		return nil, deperr.New(deperr.UnknownPackage, errors.New("unknown manifest "+pkg.String()+"@"+v.String()))
	}
	m := manifest.NewPackage(pkg, "", "", v, semver.Range{Low: semver.Zero, High: semver.Version{Major: 99}})
	for dep, rng := range deps {
		var err error
		m, err = m.WithDirectRange(dep, rng)
		if err != nil {
			panic(err)
		}
	}
	return m.Pkg, nil
}

func sortDescendingForTest(vs []semver.Version) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j].GreaterThan(vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}

func mustPkg(t *testing.T, s string) pkgname.Name {
	t.Helper()
	n, err := pkgname.Parse(s)
	require.NoError(t, err)
	return n
}

func mustRange(t *testing.T, s string) semver.Range {
	t.Helper()
	r, err := semver.ParseRange(s)
	require.NoError(t, err)
	return r
}

func roots(t *testing.T, m map[string]string) map[pkgname.Name]semver.Range {
	out := make(map[pkgname.Name]semver.Range, len(m))
	for pkg, r := range m {
		out[mustPkg(t, pkg)] = mustRange(t, r)
	}
	return out
}

// Scenario 1 (spec §8): install latest into an empty application.
func TestSolveSimpleInstall(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.5", nil)
	reg.add(t, "elm/core", "1.0.4", nil)
	reg.add(t, "elm/core", "1.0.3", nil)

	s := solver.New(reg, nil)
	out, err := s.Solve(context.Background(), solver.Input{
		Roots: roots(t, map[string]string{"elm/core": "1.0.5 <= v < 2.0.0"}),
	})
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("1.0.5"), out[mustPkg(t, "elm/core")])
}

// Scenario 2 (spec §8): installing a new direct dependency whose
// candidate versions both admit the existing elm/core pin leaves that
// pin untouched rather than bumping it.
func TestSolveKeepsExistingPinWhenCompatible(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.2", nil)
	reg.add(t, "elm/http", "2.0.0", map[string]string{"elm/core": "1.0.0 <= v < 2.0.0"})
	reg.add(t, "elm/http", "1.0.0", map[string]string{"elm/core": "1.0.0 <= v < 2.0.0"})

	s := solver.New(reg, nil)
	out, err := s.Solve(context.Background(), solver.Input{
		Roots: roots(t, map[string]string{
			"elm/core": "1.0.2 <= v < 2.0.0",
			"elm/http": "2.0.0 <= v < 3.0.0",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("2.0.0"), out[mustPkg(t, "elm/http")])
	assert.Equal(t, semver.MustParse("1.0.2"), out[mustPkg(t, "elm/core")])
}

// Scenario 3 (spec §8): unsolvable conflict.
func TestSolveUnsolvable(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.2", nil)
	reg.add(t, "elm/core", "2.0.0", nil)
	reg.add(t, "some/pkg", "1.0.0", map[string]string{"elm/core": "2.0.0 <= v < 3.0.0"})

	s := solver.New(reg, nil)
	_, err := s.Solve(context.Background(), solver.Input{
		Roots: roots(t, map[string]string{
			"elm/core": "1.0.2 <= v < 1.0.3",
			"some/pkg": "1.0.0 <= v < 1.0.1",
		}),
	})
	require.Error(t, err)
	var de interface{ Kind() deperr.Kind }
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deperr.Unsolvable, de.Kind())
	assert.Contains(t, err.Error(), "elm/core")
}

// Scenario from spec §4.5 edge cases: a root constraint admitting no
// published version fails immediately as NoMatchingVersions.
func TestSolveNoMatchingVersions(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.5", nil)

	s := solver.New(reg, nil)
	_, err := s.Solve(context.Background(), solver.Input{
		Roots: roots(t, map[string]string{"elm/core": "2.0.0 <= v < 3.0.0"}),
	})
	require.Error(t, err)
	var de interface{ Kind() deperr.Kind }
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deperr.NoMatchingVersions, de.Kind())
}

// Harmless cycle (spec §4.5 edge cases): a pulls b pulls a with
// compatible ranges terminates instead of looping forever.
func TestSolveHarmlessCycle(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "a/a", "1.0.0", map[string]string{"b/b": "1.0.0 <= v < 2.0.0"})
	reg.add(t, "b/b", "1.0.0", map[string]string{"a/a": "1.0.0 <= v < 2.0.0"})

	s := solver.New(reg, nil)
	out, err := s.Solve(context.Background(), solver.Input{
		Roots: roots(t, map[string]string{"a/a": "1.0.0 <= v < 2.0.0"}),
	})
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("1.0.0"), out[mustPkg(t, "a/a")])
	assert.Equal(t, semver.MustParse("1.0.0"), out[mustPkg(t, "b/b")])
}

// Determinism (spec §8 invariant 5): identical inputs produce identical
// output across repeated runs.
func TestSolveDeterministic(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.5", nil)
	reg.add(t, "elm/core", "1.0.4", nil)
	reg.add(t, "elm/http", "2.0.0", map[string]string{"elm/core": "1.0.0 <= v < 2.0.0"})

	in := solver.Input{
		Roots: roots(t, map[string]string{"elm/http": "2.0.0 <= v < 3.0.0"}),
	}

	s := solver.New(reg, nil)
	first, err := s.Solve(context.Background(), in)
	require.NoError(t, err)

	second, err := s.Solve(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// Minimize preference (spec §4.6 solve --minimize): picks the lowest
// admissible version rather than the highest.
func TestSolveMinimizePreference(t *testing.T) {
	reg := newFakeRegistry()
	reg.add(t, "elm/core", "1.0.5", nil)
	reg.add(t, "elm/core", "1.0.4", nil)
	reg.add(t, "elm/core", "1.0.3", nil)

	s := solver.New(reg, nil)
	out, err := s.Solve(context.Background(), solver.Input{
		Roots:      roots(t, map[string]string{"elm/core": "1.0.3 <= v < 2.0.0"}),
		Preference: solver.Minimize,
	})
	require.NoError(t, err)
	assert.Equal(t, semver.MustParse("1.0.3"), out[mustPkg(t, "elm/core")])
}
