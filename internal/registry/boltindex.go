package registry

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/boltdb/bolt"

	"github.com/zwilias/elm-json/internal/env"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

var catalogBucket = []byte("catalog")

// boltIndex mirrors the latest fetched all-packages snapshot in a bolt
// database for fast key->version-list lookup, avoiding a full JSON parse
// of a potentially large catalog on every run. It is purely a
// performance cache over the JSON file the spec mandates (fileCache's
// snapshot); a corrupt or missing bolt file is never fatal, it just
// falls back to the JSON source of truth.
type boltIndex struct {
	path string
}

func newBoltIndex(cfg env.Config) *boltIndex {
	return &boltIndex{path: cfg.IndexDBPath()}
}

func (b *boltIndex) store(idx map[pkgname.Name][]semver.Version) error {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(catalogBucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		bkt, err := tx.CreateBucket(catalogBucket)
		if err != nil {
			return err
		}
		for name, versions := range idx {
			strs := make([]string, len(versions))
			for i, v := range versions {
				strs[i] = v.String()
			}
			data, err := json.Marshal(strs)
			if err != nil {
				return err
			}
			if err := bkt.Put([]byte(name.String()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// load returns the cached catalog, or ok=false if the bolt cache is
// absent, empty, or unreadable. It never returns an error: a bad cache
// is treated as a miss and regenerated from the JSON snapshot or network.
func (b *boltIndex) load() (map[pkgname.Name][]semver.Version, bool) {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, false
	}
	defer db.Close()

	idx := make(map[pkgname.Name][]semver.Version)
	err = db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(catalogBucket)
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			name, err := pkgname.Parse(string(k))
			if err != nil {
				return nil // skip unparsable keys from a stale/foreign db
			}
			var strs []string
			if err := json.Unmarshal(v, &strs); err != nil {
				return err
			}
			versions := make([]semver.Version, 0, len(strs))
			for _, s := range strs {
				if ver, err := semver.Parse(s); err == nil {
					versions = append(versions, ver)
				}
			}
			sort.Sort(sort.Reverse(semver.ByVersion(versions)))
			idx[name] = versions
			return nil
		})
	})
	if err != nil || len(idx) == 0 {
		return nil, false
	}
	return idx, true
}
