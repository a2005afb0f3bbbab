package frontend

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// InstallRequest names the manifest to update and the packages the
// caller wants added. A nil version in Additions means "whatever the
// solver picks"; a non-nil version pins that exact version as the root
// constraint, mirroring the teacher's retriever.add_dep(name, Some(v)).
type InstallRequest struct {
	Path      string
	Manifest  manifest.Manifest
	Additions map[pkgname.Name]*semver.Version
	// Test marks the additions as test dependencies rather than regular
	// ones.
	Test bool
}

// Install merges req.Additions into req.Manifest's constraint set, solves,
// diffs the result, and (on confirmation) writes the updated manifest to
// req.Path. It returns the manifest that was written (or would have been,
// on a declined or empty diff) and whether a write occurred.
func Install(ctx context.Context, reg solver.Registry, req InstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	if req.Manifest.Kind == manifest.Application {
		return installApplication(ctx, reg, req, prompter, renderer)
	}
	return installPackage(ctx, reg, req, prompter, renderer)
}

func installApplication(ctx context.Context, reg solver.Registry, req InstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	app := req.Manifest.App

	roots := make(map[pkgname.Name]semver.Range)
	var directNames, testDirectNames []pkgname.Name

	for p, v := range app.Dependencies.Direct {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		roots[p] = pinned(v)
		directNames = append(directNames, p)
	}
	for p, v := range app.TestDependencies.Direct {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		roots[p] = pinned(v)
		testDirectNames = append(testDirectNames, p)
	}
	for p, v := range req.Additions {
		roots[p] = buildExtraRoot(v)
		if req.Test {
			testDirectNames = append(testDirectNames, p)
		} else {
			directNames = append(directNames, p)
		}
	}

	out, err := solveRoots(ctx, reg, roots, &app.ElmVersion)
	if err != nil {
		return manifest.Manifest{}, false, err
	}

	direct, indirect, testDirect, testIndirect, err := reconstructApplication(ctx, reg, directNames, testDirectNames, out)
	if err != nil {
		return manifest.Manifest{}, false, err
	}

	result := manifest.NewApplication(app.ElmVersion, app.SourceDirectories)
	if result, err = applyVersions(result, direct, indirect, testDirect, testIndirect); err != nil {
		return manifest.Manifest{}, false, err
	}

	diff := Diff{Groups: []Group{
		diffGroup("direct", app.Dependencies.Direct, direct),
		diffGroup("indirect", app.Dependencies.Indirect, indirect),
		diffGroup("direct test", app.TestDependencies.Direct, testDirect),
		diffGroup("indirect test", app.TestDependencies.Indirect, testIndirect),
	}}

	wrote, err := apply(prompter, renderer, diff, req.Path, result)
	return result, wrote, err
}

func installPackage(ctx context.Context, reg solver.Registry, req InstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	pkg := req.Manifest.Pkg

	roots := make(map[pkgname.Name]semver.Range)
	for p, r := range pkg.Dependencies {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		roots[p] = r
	}
	for p, r := range pkg.TestDependencies {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		roots[p] = r
	}
	for p, v := range req.Additions {
		roots[p] = buildExtraRoot(v)
	}

	out, err := solveRoots(ctx, reg, roots, nil)
	if err != nil {
		return manifest.Manifest{}, false, err
	}

	newDeps := make(map[pkgname.Name]semver.Range, len(pkg.Dependencies))
	for p, r := range pkg.Dependencies {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		newDeps[p] = r
	}
	newTestDeps := make(map[pkgname.Name]semver.Range, len(pkg.TestDependencies))
	for p, r := range pkg.TestDependencies {
		if _, isAddition := req.Additions[p]; isAddition {
			continue
		}
		newTestDeps[p] = r
	}
	for p := range req.Additions {
		v, ok := out[p]
		if !ok {
			return manifest.Manifest{}, false, errors.Errorf("solver did not select a version for %s", p)
		}
		if req.Test {
			newTestDeps[p] = semver.NewExact(v)
		} else {
			newDeps[p] = semver.NewExact(v)
		}
	}

	result := manifest.NewPackage(pkg.Name, pkg.Summary, pkg.License, pkg.Version, pkg.ElmVersion)
	result.Pkg.ExposedModules = pkg.ExposedModules
	for _, p := range sortedRangeNames(newDeps) {
		if result, err = result.WithDirectRange(p, newDeps[p]); err != nil {
			return manifest.Manifest{}, false, err
		}
	}
	for _, p := range sortedRangeNames(newTestDeps) {
		if result, err = result.WithTestDirectRange(p, newTestDeps[p]); err != nil {
			return manifest.Manifest{}, false, err
		}
	}

	diff := Diff{Groups: []Group{
		diffGroup("", pkg.Dependencies, newDeps),
		diffGroup("test", pkg.TestDependencies, newTestDeps),
	}}

	wrote, err := apply(prompter, renderer, diff, req.Path, result)
	return result, wrote, err
}

// solveRoots runs the solver over roots with the given optional
// elm-version filter and Maximize preference, the common shape install,
// uninstall and upgrade use; tree and solve call the solver directly.
func solveRoots(ctx context.Context, reg solver.Registry, roots map[pkgname.Name]semver.Range, elmVersion *semver.Version) (map[pkgname.Name]semver.Version, error) {
	s := solver.New(reg, nil)
	return s.Solve(ctx, solver.Input{Roots: roots, Preference: solver.Maximize, ElmVersion: elmVersion})
}

// applyVersions folds four version maps into a fresh application
// manifest via the pure builders, in deterministic order so a malformed
// intermediate state never becomes observable.
func applyVersions(m manifest.Manifest, direct, indirect, testDirect, testIndirect map[pkgname.Name]semver.Version) (manifest.Manifest, error) {
	var err error
	for _, p := range sortedVersionNames(direct) {
		if m, err = m.WithDirectVersion(p, direct[p]); err != nil {
			return manifest.Manifest{}, err
		}
	}
	for _, p := range sortedVersionNames(indirect) {
		if m, err = m.WithIndirectVersion(p, indirect[p]); err != nil {
			return manifest.Manifest{}, err
		}
	}
	for _, p := range sortedVersionNames(testDirect) {
		if m, err = m.WithTestDirectVersion(p, testDirect[p]); err != nil {
			return manifest.Manifest{}, err
		}
	}
	for _, p := range sortedVersionNames(testIndirect) {
		if m, err = m.WithTestIndirectVersion(p, testIndirect[p]); err != nil {
			return manifest.Manifest{}, err
		}
	}
	return m, nil
}

func sortedRangeNames(m map[pkgname.Name]semver.Range) []pkgname.Name {
	names := make([]pkgname.Name, 0, len(m))
	for p := range m {
		names = append(names, p)
	}
	sortNames(names)
	return names
}
