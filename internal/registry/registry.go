// Package registry implements the remote package catalog client: it
// lists published versions of a package and fetches the package-variant
// manifest for one specific (package, version) release, backed by an
// on-disk cache so repeated runs (and offline runs) don't need the
// network.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zwilias/elm-json/internal/deperr"
	"github.com/zwilias/elm-json/internal/env"
	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// DefaultBaseURL is the production package server, per spec §6.
const DefaultBaseURL = "https://package.elm-lang.org"

// Client is the registry client: catalog listing plus per-version
// manifest fetch, with on-disk caching and offline-mode support. It is
// not safe for concurrent use by multiple solver invocations, but
// PrefetchManifests may warm the manifest cache concurrently once a
// single-threaded solve has finished.
type Client struct {
	cfg     env.Config
	baseURL string
	http    *http.Client
	l       *logrus.Logger

	mu        sync.Mutex
	index     map[pkgname.Name][]semver.Version
	refreshed bool // index is loaded (from a cache or the network); Refresh fetches only while false

	cache *fileCache
	bolt  *boltIndex
}

// NewClient constructs a registry client rooted at cfg.ElmHome, talking
// to baseURL. If l is nil, a standard logger is used.
func NewClient(cfg env.Config, baseURL string, l *logrus.Logger) *Client {
	if l == nil {
		l = logrus.StandardLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		l:       l,
		cache:   newFileCache(cfg),
		bolt:    newBoltIndex(cfg),
	}
}

// ListVersions returns pkg's published versions, sorted descending, per
// spec §4.3. If no index is loaded yet it loads one first (see
// ensureIndex). A package absent from the loaded index is reported as
// UnknownPackage; the catalog is not re-fetched for it, so an index
// loaded from a cache does not show packages published after that cache
// was written.
func (c *Client) ListVersions(ctx context.Context, pkg pkgname.Name) ([]semver.Version, error) {
	if err := c.ensureIndex(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	versions, ok := c.index[pkg]
	if !ok {
		return nil, deperr.New(deperr.UnknownPackage, errors.Errorf("unknown package %s", pkg))
	}
	out := make([]semver.Version, len(versions))
	copy(out, versions)
	return out, nil
}

// FetchManifest returns the package-variant manifest describing
// (pkg, v)'s own declared dependencies, from cache if present, else from
// the network (writing the result back to cache).
func (c *Client) FetchManifest(ctx context.Context, pkg pkgname.Name, v semver.Version) (*manifest.Package, error) {
	if m, err := c.cache.read(pkg, v); err != nil {
		return nil, err
	} else if m != nil {
		return m, nil
	}

	if c.cfg.Offline {
		return nil, deperr.New(deperr.OfflineCacheMiss,
			errors.Errorf("no cached manifest for %s@%s and --offline is set", pkg, v))
	}

	data, err := c.getWithRetry(ctx, manifestURL(c.baseURL, pkg, v))
	if err != nil {
		return nil, err
	}

	m, err := manifest.Parse(data)
	if err != nil || m.Kind != manifest.Package {
		return nil, deperr.New(deperr.CacheCorruption, errors.Wrapf(err, "malformed manifest for %s@%s", pkg, v))
	}

	if err := c.cache.write(pkg, v, data); err != nil {
		c.l.WithFields(logrus.Fields{"pkg": pkg.String(), "version": v.String(), "err": err}).
			Warn("failed to write manifest to cache")
	}

	return m.Pkg, nil
}

// Refresh re-fetches the full catalog snapshot from the remote endpoint,
// writing it to the on-disk JSON snapshot and the bolt secondary index.
// It fetches at most once per Client, and not at all once the index has
// been loaded from any source, including the bolt index or the JSON
// snapshot; in those cases it returns nil without a network request.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	if c.refreshed {
		return nil
	}
	if c.cfg.Offline {
		return deperr.New(deperr.OfflineCacheMiss, errors.New("cannot refresh registry catalog while --offline"))
	}

	data, err := c.getWithRetry(ctx, allPackagesURL(c.baseURL))
	if err != nil {
		return err
	}

	idx, err := decodeAllPackages(data)
	if err != nil {
		return deperr.New(deperr.NetworkError, errors.Wrap(err, "decoding /all-packages response"))
	}

	c.index = idx
	c.refreshed = true

	if err := c.cache.writeSnapshot(data); err != nil {
		c.l.WithField("err", err).Warn("failed to write registry snapshot to cache")
	}
	if err := c.bolt.store(idx); err != nil {
		c.l.WithField("err", err).Warn("failed to update bolt secondary index")
	}
	return nil
}

// ensureIndex loads the in-memory catalog index if it isn't loaded yet,
// preferring the fastest available source: the bolt secondary index,
// then the JSON snapshot, then (offline only) a directory walk of the
// manifest cache, then the network.
func (c *Client) ensureIndex(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if c.cfg.Offline {
		return c.ensureOfflineIndex()
	}

	if idx, ok := c.bolt.load(); ok {
		c.mu.Lock()
		c.index = idx
		c.refreshed = true
		c.mu.Unlock()
		c.l.Debug("loaded registry index from bolt secondary cache")
		return nil
	}

	if data, err := c.cache.readSnapshot(); err == nil && data != nil {
		if idx, err := decodeAllPackages(data); err == nil {
			c.mu.Lock()
			c.index = idx
			c.refreshed = true
			c.mu.Unlock()
			if werr := c.bolt.store(idx); werr != nil {
				c.l.WithField("err", werr).Debug("failed to warm bolt index from json snapshot")
			}
			return nil
		}
	}

	return c.Refresh(ctx)
}

func (c *Client) ensureOfflineIndex() error {
	if idx, ok := c.bolt.load(); ok {
		c.mu.Lock()
		c.index = idx
		c.refreshed = true
		c.mu.Unlock()
		return nil
	}

	if data, err := c.cache.readSnapshot(); err == nil && data != nil {
		if idx, err := decodeAllPackages(data); err == nil {
			c.mu.Lock()
			c.index = idx
			c.refreshed = true
			c.mu.Unlock()
			return nil
		}
	}

	idx, err := reconstructFromCache(c.cfg)
	if err != nil {
		return err
	}
	if len(idx) == 0 {
		return deperr.New(deperr.OfflineCacheMiss,
			errors.New("no cached registry index and --offline is set"))
	}

	c.mu.Lock()
	c.index = idx
	c.refreshed = true
	c.mu.Unlock()
	return nil
}

// getWithRetry issues a GET, retrying once with a short backoff on
// connect/timeout errors per spec §7; HTTP-level errors (non-2xx) are
// surfaced immediately, not retried.
func (c *Client) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	data, err := c.get(ctx, url)
	if err == nil {
		return data, nil
	}
	if !isTransient(err) {
		return nil, err
	}

	c.l.WithFields(logrus.Fields{"url": url, "err": err}).Debug("retrying transient network error")
	select {
	case <-time.After(250 * time.Millisecond):
	case <-ctx.Done():
		return nil, deperr.New(deperr.Cancelled, ctx.Err())
	}
	return c.get(ctx, url)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, deperr.New(deperr.Cancelled, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, deperr.New(deperr.NetworkError, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, deperr.New(deperr.Cancelled, ctx.Err())
		}
		return nil, deperr.New(deperr.NetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, deperr.New(deperr.NetworkError, errors.Wrapf(err, "reading response from %s", url))
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, deperr.New(deperr.UnknownPackage, errors.Errorf("%s: %s", url, resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, deperr.New(deperr.NetworkError, errors.Errorf("%s: %s", url, resp.Status))
	}

	return body, nil
}

// isTransient reports whether err is a connect/timeout failure, which
// spec §7 retries once, as opposed to an HTTP-level or decode error,
// which is surfaced immediately.
func isTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

func manifestURL(base string, pkg pkgname.Name, v semver.Version) string {
	return base + "/packages/" + pkg.Author + "/" + pkg.Project + "/" + v.String() + "/elm.json"
}

func allPackagesURL(base string) string {
	return base + "/all-packages"
}

func decodeAllPackages(data []byte) (map[pkgname.Name][]semver.Version, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	idx := make(map[pkgname.Name][]semver.Version, len(raw))
	for k, vs := range raw {
		name, err := pkgname.Parse(k)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding /all-packages key %q", k)
		}
		versions := make([]semver.Version, 0, len(vs))
		for _, vs := range vs {
			v, err := semver.Parse(vs)
			if err != nil {
				return nil, errors.Wrapf(err, "decoding /all-packages entry for %q", k)
			}
			versions = append(versions, v)
		}
		sort.Sort(sort.Reverse(semver.ByVersion(versions)))
		idx[name] = versions
	}
	return idx, nil
}
