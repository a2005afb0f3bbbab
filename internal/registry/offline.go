package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/zwilias/elm-json/internal/env"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// reconstructFromCache rebuilds a registry index by walking
// $ELM_HOME/<elm-version>/packages, per spec §4.3: "The registry index
// may in this case be reconstructed by directory-walking the cache."
// The resulting index only knows about versions this machine has
// already cached a manifest for; it cannot recover versions that were
// never fetched.
func reconstructFromCache(cfg env.Config) (map[pkgname.Name][]semver.Version, error) {
	root := cfg.PackagesRoot()
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return map[pkgname.Name][]semver.Version{}, nil
		}
		return nil, err
	}

	idx := make(map[pkgname.Name][]semver.Version)

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root || !de.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return nil
			}
			parts := strings.Split(rel, string(filepath.Separator))
			if len(parts) != 3 {
				// only interested in <author>/<project>/<version> directories
				return nil
			}

			name, err := pkgname.Parse(parts[0] + "/" + parts[1])
			if err != nil {
				return godirwalk.SkipThis
			}
			v, err := semver.Parse(parts[2])
			if err != nil {
				return godirwalk.SkipThis
			}
			if _, err := os.Stat(filepath.Join(osPathname, "elm.json")); err != nil {
				return godirwalk.SkipThis
			}

			idx[name] = append(idx[name], v)
			return godirwalk.SkipThis // don't descend into the version directory
		},
	})
	if err != nil {
		return nil, err
	}

	for name := range idx {
		sortDescending(idx[name])
	}
	return idx, nil
}

func sortDescending(versions []semver.Version) {
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j].GreaterThan(versions[j-1]); j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
}
