package frontend

import (
	"context"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// UninstallRequest names the manifest to update and the packages to
// remove from its direct (or test-direct) dependency maps.
type UninstallRequest struct {
	Path     string
	Manifest manifest.Manifest
	Remove   []pkgname.Name
}

// Uninstall drops req.Remove from the manifest's direct dependency maps,
// re-solves the remainder, diffs, and (on confirmation) writes the
// result. Removing a package re-derives the whole indirect closure, so
// transitive dependencies that are no longer needed fall out of the
// manifest entirely.
func Uninstall(ctx context.Context, reg solver.Registry, req UninstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	if req.Manifest.Kind == manifest.Application {
		return uninstallApplication(ctx, reg, req, prompter, renderer)
	}
	return uninstallPackage(ctx, reg, req, prompter, renderer)
}

func removed(names []pkgname.Name, pkg pkgname.Name) bool {
	for _, n := range names {
		if n == pkg {
			return true
		}
	}
	return false
}

func uninstallApplication(ctx context.Context, reg solver.Registry, req UninstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	app := req.Manifest.App

	roots := make(map[pkgname.Name]semver.Range)
	var directNames, testDirectNames []pkgname.Name

	for p, v := range app.Dependencies.Direct {
		if removed(req.Remove, p) {
			continue
		}
		roots[p] = pinned(v)
		directNames = append(directNames, p)
	}
	for p, v := range app.TestDependencies.Direct {
		if removed(req.Remove, p) {
			continue
		}
		roots[p] = pinned(v)
		testDirectNames = append(testDirectNames, p)
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

func uninstallPackage(ctx context.Context, reg solver.Registry, req UninstallRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	pkg := req.Manifest.Pkg

	newDeps := make(map[pkgname.Name]semver.Range, len(pkg.Dependencies))
	for p, r := range pkg.Dependencies {
		if removed(req.Remove, p) {
			continue
		}
		newDeps[p] = r
	}
	newTestDeps := make(map[pkgname.Name]semver.Range, len(pkg.TestDependencies))
	for p, r := range pkg.TestDependencies {
		if removed(req.Remove, p) {
			continue
		}
		newTestDeps[p] = r
	}

	result := manifest.NewPackage(pkg.Name, pkg.Summary, pkg.License, pkg.Version, pkg.ElmVersion)
	result.Pkg.ExposedModules = pkg.ExposedModules
	var err error
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
