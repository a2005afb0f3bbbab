// Package env resolves the process-level configuration the rest of the
// module threads explicitly: the on-disk cache root and the global
// offline/verbose flags. Nothing here is read through ambient globals;
// callers construct a Config once and pass it down, mirroring the
// teacher's ctx pattern generalized beyond GOPATH.
package env

import (
	"os"
	"path/filepath"
)

// Config is the supporting context threaded through the registry client
// and frontends.
type Config struct {
	// ElmHome is the cache root, $ELM_HOME or its platform default.
	ElmHome string
	// ElmVersion namespaces the cache by compiler version, per spec §6.
	ElmVersion string
	// Offline disables all network access; cache misses become
	// OfflineCacheMiss instead of fetching.
	Offline bool
	// Verbose records the --verbose flag. The registry client and solver
	// take their logger as a separate argument and do not read this field.
	Verbose bool
}

// New resolves a Config from the environment, honoring ELM_HOME when set.
func New(elmVersion string, offline, verbose bool) (Config, error) {
	home := os.Getenv("ELM_HOME")
	if home == "" {
		var err error
		home, err = defaultElmHome()
		if err != nil {
			return Config{}, err
		}
	}
	return Config{
		ElmHome:    home,
		ElmVersion: elmVersion,
		Offline:    offline,
		Verbose:    verbose,
	}, nil
}

func defaultElmHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".elm"), nil
}

// PackageDir returns the on-disk cache directory for one (package,
// version) pair: $ELM_HOME/<elm-version>/packages/<author>/<project>/<version>.
func (c Config) PackageDir(author, project, version string) string {
	return filepath.Join(c.ElmHome, c.ElmVersion, "packages", author, project, version)
}

// PackagesRoot returns $ELM_HOME/<elm-version>/packages, the root the
// offline directory-walk reconstruction scans.
func (c Config) PackagesRoot() string {
	return filepath.Join(c.ElmHome, c.ElmVersion, "packages")
}

// IndexDBPath returns the path of the bolt-backed secondary index cache.
func (c Config) IndexDBPath() string {
	return filepath.Join(c.ElmHome, c.ElmVersion, "registry.db")
}
