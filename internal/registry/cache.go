package registry

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"

	"github.com/zwilias/elm-json/internal/deperr"
	"github.com/zwilias/elm-json/internal/env"
	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// fileCache is the on-disk JSON cache of per-version manifests and the
// all-packages catalog snapshot, per spec §6's layout. Writes go through
// a temp-file-then-rename under a per-directory advisory lock (spec
// §4.3/§5); reads never lock.
type fileCache struct {
	cfg env.Config
}

func newFileCache(cfg env.Config) *fileCache {
	return &fileCache{cfg: cfg}
}

func (c *fileCache) manifestPath(pkg pkgname.Name, v semver.Version) string {
	return filepath.Join(c.cfg.PackageDir(pkg.Author, pkg.Project, v.String()), "elm.json")
}

func (c *fileCache) snapshotPath() string {
	return filepath.Join(c.cfg.ElmHome, c.cfg.ElmVersion, "all-packages.json")
}

// read returns the cached manifest for (pkg, v), or (nil, nil) on a
// cache miss. A cached file that fails to parse is surfaced as
// CacheCorruption: recovery is the caller's responsibility (delete and
// refetch, or fail in offline mode).
func (c *fileCache) read(pkg pkgname.Name, v semver.Version) (*manifest.Package, error) {
	data, err := os.ReadFile(c.manifestPath(pkg, v))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, deperr.New(deperr.IO, errors.Wrapf(err, "reading cached manifest for %s@%s", pkg, v))
	}

	m, err := manifest.Parse(data)
	if err != nil || m.Kind != manifest.Package {
		return nil, deperr.New(deperr.CacheCorruption, errors.Wrapf(err, "cached manifest for %s@%s is corrupt", pkg, v))
	}
	return m.Pkg, nil
}

// write atomically writes data to the cache path for (pkg, v), under an
// advisory lock scoped to the package's version directory.
func (c *fileCache) write(pkg pkgname.Name, v semver.Version, data []byte) error {
	dir := c.cfg.PackageDir(pkg.Author, pkg.Project, v.String())
	return atomicWrite(dir, "elm.json", data)
}

func (c *fileCache) readSnapshot() ([]byte, error) {
	data, err := os.ReadFile(c.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, deperr.New(deperr.IO, errors.Wrap(err, "reading cached registry snapshot"))
	}
	return data, nil
}

func (c *fileCache) writeSnapshot(data []byte) error {
	dir := filepath.Join(c.cfg.ElmHome, c.cfg.ElmVersion)
	return atomicWrite(dir, "all-packages.json", data)
}

// atomicWrite writes data to dir/name via a temp file in dir followed by
// a rename, holding dir's advisory lock (dir/.lock) for the duration, per
// spec §4.3/§5's "temp-file-then-rename discipline" under a
// per-directory advisory lock.
func atomicWrite(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deperr.New(deperr.IO, errors.Wrapf(err, "creating cache directory %s", dir))
	}

	lock := flock.NewFlock(filepath.Join(dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return deperr.New(deperr.IO, errors.Wrapf(err, "acquiring cache lock for %s", dir))
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return deperr.New(deperr.IO, errors.Wrapf(err, "creating temp file in %s", dir))
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return deperr.New(deperr.IO, errors.Wrap(err, "writing cache temp file"))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return deperr.New(deperr.IO, errors.Wrap(err, "closing cache temp file"))
	}

	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return deperr.New(deperr.IO, errors.Wrap(err, "renaming cache temp file into place"))
	}
	return nil
}
