package manifest

import (
	"github.com/pkg/errors"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// clone returns a deep-enough copy of m for use as the base of a pure
// builder operation; callers mutate the copy's maps, never m's.
func (m Manifest) clone() Manifest {
	switch m.Kind {
	case Application:
		app := *m.App
		app.Dependencies = AppDependencies{
			Direct:   cloneVersionMap(m.App.Dependencies.Direct),
			Indirect: cloneVersionMap(m.App.Dependencies.Indirect),
		}
		app.TestDependencies = AppDependencies{
			Direct:   cloneVersionMap(m.App.TestDependencies.Direct),
			Indirect: cloneVersionMap(m.App.TestDependencies.Indirect),
		}
		app.SourceDirectories = append([]string(nil), m.App.SourceDirectories...)
		return Manifest{Kind: Application, App: &app}
	default:
		pkg := *m.Pkg
		pkg.Dependencies = cloneRangeMap(m.Pkg.Dependencies)
		pkg.TestDependencies = cloneRangeMap(m.Pkg.TestDependencies)
		return Manifest{Kind: Package, Pkg: &pkg}
	}
}

func cloneVersionMap(m map[pkgname.Name]semver.Version) map[pkgname.Name]semver.Version {
	out := make(map[pkgname.Name]semver.Version, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneRangeMap(m map[pkgname.Name]semver.Range) map[pkgname.Name]semver.Range {
	out := make(map[pkgname.Name]semver.Range, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithDirectVersion returns a new manifest with pkg recorded as a direct
// dependency at the exact version v. For package manifests, per the
// rounding rule, the stored range becomes [v, bump-major(v)).
func (m Manifest) WithDirectVersion(pkg pkgname.Name, v semver.Version) (Manifest, error) {
	out := m.clone()
	switch out.Kind {
	case Application:
		delete(out.App.Dependencies.Indirect, pkg)
		out.App.Dependencies.Direct[pkg] = v
	case Package:
		delete(out.Pkg.Dependencies, pkg)
		out.Pkg.Dependencies[pkg] = semver.NewExact(v)
	}
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// WithDirectRange returns a new manifest with pkg recorded as a direct
// dependency constrained to r. Only valid for package manifests; calling
// this on an application manifest is a programmer error since applications
// pin exact versions only.
func (m Manifest) WithDirectRange(pkg pkgname.Name, r semver.Range) (Manifest, error) {
	if m.Kind != Package {
		return Manifest{}, errors.New("application manifests require an exact version, not a range")
	}
	out := m.clone()
	out.Pkg.Dependencies[pkg] = r
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// WithIndirectVersion records pkg as an indirect (transitive) application
// dependency. Indirect dependencies only exist for application manifests.
func (m Manifest) WithIndirectVersion(pkg pkgname.Name, v semver.Version) (Manifest, error) {
	if m.Kind != Application {
		return Manifest{}, errors.New("indirect dependencies only exist on application manifests")
	}
	out := m.clone()
	delete(out.App.Dependencies.Direct, pkg)
	out.App.Dependencies.Indirect[pkg] = v
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// WithTestDirectVersion is the test-dependency analogue of WithDirectVersion.
func (m Manifest) WithTestDirectVersion(pkg pkgname.Name, v semver.Version) (Manifest, error) {
	out := m.clone()
	switch out.Kind {
	case Application:
		delete(out.App.TestDependencies.Indirect, pkg)
		out.App.TestDependencies.Direct[pkg] = v
	case Package:
		delete(out.Pkg.TestDependencies, pkg)
		out.Pkg.TestDependencies[pkg] = semver.NewExact(v)
	}
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// WithTestDirectRange is the test-dependency analogue of WithDirectRange.
func (m Manifest) WithTestDirectRange(pkg pkgname.Name, r semver.Range) (Manifest, error) {
	if m.Kind != Package {
		return Manifest{}, errors.New("application manifests require an exact version, not a range")
	}
	out := m.clone()
	out.Pkg.TestDependencies[pkg] = r
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// WithTestIndirectVersion records pkg as an indirect test dependency.
func (m Manifest) WithTestIndirectVersion(pkg pkgname.Name, v semver.Version) (Manifest, error) {
	if m.Kind != Application {
		return Manifest{}, errors.New("indirect dependencies only exist on application manifests")
	}
	out := m.clone()
	delete(out.App.TestDependencies.Direct, pkg)
	out.App.TestDependencies.Indirect[pkg] = v
	if err := out.validateDisjoint(); err != nil {
		return Manifest{}, err
	}
	return out, nil
}

// Without returns a new manifest with pkg removed from every dependency
// map it might appear in. Removing an absent package is a no-op.
func (m Manifest) Without(pkg pkgname.Name) Manifest {
	out := m.clone()
	switch out.Kind {
	case Application:
		delete(out.App.Dependencies.Direct, pkg)
		delete(out.App.Dependencies.Indirect, pkg)
		delete(out.App.TestDependencies.Direct, pkg)
		delete(out.App.TestDependencies.Indirect, pkg)
	case Package:
		delete(out.Pkg.Dependencies, pkg)
		delete(out.Pkg.TestDependencies, pkg)
	}
	return out
}
