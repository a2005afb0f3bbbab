package frontend

import (
	"context"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// UpgradeRequest names the manifest to update. Unsafe allows a direct
// dependency to cross a major version boundary; without it, each direct
// dependency's root constraint stays within its current major version
// (spec §4.6: "major-locked unless --unsafe").
type UpgradeRequest struct {
	Path     string
	Manifest manifest.Manifest
	Unsafe   bool
}

// Upgrade re-solves every direct dependency at its widest permissible
// range (current major only, unless Unsafe), diffs against the current
// pins, and (on confirmation) writes the result. Package manifests are
// rejected: per spec §9's open question, upgrade semantics for packages
// are deferred upstream rather than guessed at here.
func Upgrade(ctx context.Context, reg solver.Registry, req UpgradeRequest, prompter Prompter, renderer Renderer) (manifest.Manifest, bool, error) {
	if req.Manifest.Kind != manifest.Application {
		return manifest.Manifest{}, false, ErrUpgradePackageUnsupported
	}

	app := req.Manifest.App

	roots := make(map[pkgname.Name]semver.Range)
	var directNames, testDirectNames []pkgname.Name

	addUpgradeRoot := func(p pkgname.Name, v semver.Version) {
		if req.Unsafe {
			roots[p] = semver.Unbounded
		} else {
			roots[p] = semver.NewExact(v)
		}
	}

	for p, v := range app.Dependencies.Direct {
		addUpgradeRoot(p, v)
		directNames = append(directNames, p)
	}
	for p, v := range app.TestDependencies.Direct {
		addUpgradeRoot(p, v)
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
