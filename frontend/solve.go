package frontend

import (
	"bytes"
	"context"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// SolveRequest describes a machine-readable resolution request: solve the
// manifest's dependencies, optionally with test dependencies and extra
// root constraints included, and report the result rather than writing
// it anywhere.
type SolveRequest struct {
	Manifest     manifest.Manifest
	IncludeTests bool
	// Minimize selects the lowest admissible version of each package
	// rather than the highest (spec §4.6 "solve --minimize").
	Minimize bool
	// Extra injects additional root constraints beyond the manifest's
	// own dependencies (spec §4.6 "solve --extra").
	Extra map[pkgname.Name]semver.Range
}

// Solve runs the resolution req describes and returns the resulting
// package-to-version assignment as a canonical JSON object, intended for
// machine consumption (spec §4.6).
func Solve(ctx context.Context, reg solver.Registry, req SolveRequest) (map[pkgname.Name]semver.Version, []byte, error) {
	roots, elmVersion, err := treeRoots(TreeRequest{Manifest: req.Manifest, IncludeTests: req.IncludeTests})
	if err != nil {
		return nil, nil, err
	}
	for p, r := range req.Extra {
		roots[p] = r
	}

	pref := solver.Maximize
	if req.Minimize {
		pref = solver.Minimize
	}

	s := solver.New(reg, nil)
	selected, err := s.Solve(ctx, solver.Input{Roots: roots, Preference: pref, ElmVersion: elmVersion})
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	writeJSONVersionMap(&buf, selected)
	return selected, buf.Bytes(), nil
}
