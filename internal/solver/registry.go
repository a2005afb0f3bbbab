package solver

import (
	"context"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// Registry is the solver's view of the registry client (spec §4.3): list
// a package's published versions, and fetch one version's declared
// dependency ranges. A real *registry.Client satisfies this; tests use a
// fake, mirroring the teacher's SourceManager seam in solver.go.
type Registry interface {
	ListVersions(ctx context.Context, pkg pkgname.Name) ([]semver.Version, error)
	FetchManifest(ctx context.Context, pkg pkgname.Name, v semver.Version) (*manifest.Package, error)
}
