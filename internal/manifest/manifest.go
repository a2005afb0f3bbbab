// Package manifest models the two variants of an elm.json-style manifest
// and the pure operations for parsing, emitting, and editing them.
package manifest

import (
	"github.com/pkg/errors"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// Kind discriminates the two manifest variants.
type Kind string

const (
	Application Kind = "application"
	Package     Kind = "package"
)

// Classification answers where (if anywhere) a package name appears in a
// manifest's dependency maps.
type Classification int

const (
	Absent Classification = iota
	Direct
	Indirect
	TestDirect
	TestIndirect
)

func (c Classification) String() string {
	switch c {
	case Direct:
		return "direct"
	case Indirect:
		return "indirect"
	case TestDirect:
		return "test-direct"
	case TestIndirect:
		return "test-indirect"
	default:
		return "absent"
	}
}

// AppDependencies holds the direct/indirect exact-version maps an
// application manifest uses for either its regular or test dependency set.
type AppDependencies struct {
	Direct   map[pkgname.Name]semver.Version
	Indirect map[pkgname.Name]semver.Version
}

func newAppDependencies() AppDependencies {
	return AppDependencies{
		Direct:   make(map[pkgname.Name]semver.Version),
		Indirect: make(map[pkgname.Name]semver.Version),
	}
}

// Exposed is the package-manifest "exposed-modules" field, which may be
// either a flat list or a grouped map of category -> module list.
type Exposed struct {
	Plain   []string
	Grouped map[string][]string
}

func (e Exposed) isGrouped() bool { return e.Grouped != nil }

// Application is the manifest variant for a buildable program: it pins
// exact versions of every direct and indirect dependency.
type Application struct {
	ElmVersion         semver.Version
	SourceDirectories  []string
	Dependencies       AppDependencies
	TestDependencies   AppDependencies
}

// Package is the manifest variant for a publishable library: it declares
// ranges only, and does not persist a flattened transitive graph.
type Package struct {
	Name             pkgname.Name
	Summary          string
	License          string
	Version          semver.Version
	ExposedModules   Exposed
	ElmVersion       semver.Range
	Dependencies     map[pkgname.Name]semver.Range
	TestDependencies map[pkgname.Name]semver.Range
}

// Manifest is a tagged sum over the two variants. Exactly one of App/Pkg is
// non-nil, matching Kind.
type Manifest struct {
	Kind Kind
	App  *Application
	Pkg  *Package
}

// NewApplication constructs an empty, well-formed application manifest.
func NewApplication(elmVersion semver.Version, sourceDirs []string) Manifest {
	return Manifest{
		Kind: Application,
		App: &Application{
			ElmVersion:        elmVersion,
			SourceDirectories: sourceDirs,
			Dependencies:      newAppDependencies(),
			TestDependencies:  newAppDependencies(),
		},
	}
}

// NewPackage constructs an empty, well-formed package manifest.
func NewPackage(name pkgname.Name, summary, license string, version semver.Version, elmVersion semver.Range) Manifest {
	return Manifest{
		Kind: Package,
		Pkg: &Package{
			Name:             name,
			Summary:          summary,
			License:          license,
			Version:          version,
			ExposedModules:   Exposed{Plain: []string{}},
			ElmVersion:       elmVersion,
			Dependencies:     make(map[pkgname.Name]semver.Range),
			TestDependencies: make(map[pkgname.Name]semver.Range),
		},
	}
}

// Classify reports where, if anywhere, pkg appears in m's dependency maps.
func (m Manifest) Classify(pkg pkgname.Name) Classification {
	return buildIndex(m).classify(pkg)
}

// validateDisjoint checks the manifest's invariants: direct/indirect key
// sets are disjoint, likewise for their test counterparts, and the union of
// all four maps is dependency-unique per package.
func (m Manifest) validateDisjoint() error {
	if m.Kind != Application {
		seen := make(map[pkgname.Name]bool, len(m.Pkg.Dependencies))
		for p := range m.Pkg.Dependencies {
			seen[p] = true
		}
		for p := range m.Pkg.TestDependencies {
			if seen[p] {
				return errors.Errorf("dependency %s duplicated in test-dependencies", p)
			}
		}
		return nil
	}

	deps := m.App.Dependencies
	for p := range deps.Direct {
		if _, ok := deps.Indirect[p]; ok {
			return errors.Errorf("dependency %s listed as both direct and indirect", p)
		}
	}

	test := m.App.TestDependencies
	for p := range test.Direct {
		if _, ok := test.Indirect[p]; ok {
			return errors.Errorf("test-dependency %s listed as both direct and indirect", p)
		}
	}

	all := make(map[pkgname.Name]bool, len(deps.Direct)+len(deps.Indirect))
	for p := range deps.Direct {
		all[p] = true
	}
	for p := range deps.Indirect {
		all[p] = true
	}
	for p := range test.Direct {
		if all[p] {
			return errors.Errorf("dependency %s duplicated in test-dependencies", p)
		}
	}
	for p := range test.Indirect {
		if all[p] {
			return errors.Errorf("dependency %s duplicated in test-dependencies", p)
		}
	}

	return nil
}
