package registry

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// maxPrefetchConcurrency bounds how many manifest fetches PrefetchManifests
// runs at once; the registry's HTTP endpoint has no documented concurrency
// limit, but there's no reason to hammer it when warming a large sibling
// set for tree.
const maxPrefetchConcurrency = 8

// Want identifies one manifest PrefetchManifests should warm the cache
// for.
type Want struct {
	Package pkgname.Name
	Version semver.Version
}

// PrefetchManifests warms the manifest cache for every (package,
// version) pair in wants, concurrently and with bounded parallelism.
// This is purely a latency optimization for the tree frontend, which
// calls it after the solver has finished and before its recursive walk
// fetches each selected manifest; the solver itself remains
// single-threaded and never observes this (spec §5).
//
// A failure to prefetch one manifest does not fail the others; the first
// error is returned after all prefetches complete, and the tree walk's
// own FetchManifest call re-attempts (and gets the same error for) the
// one that failed.
func (c *Client) PrefetchManifests(ctx context.Context, wants []Want) error {
	var g errgroup.Group
	g.SetLimit(maxPrefetchConcurrency)

	for _, w := range wants {
		w := w
		g.Go(func() error {
			_, err := c.FetchManifest(ctx, w.Package, w.Version)
			return err
		})
	}
	return g.Wait()
}
