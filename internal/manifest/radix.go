package manifest

import (
	"github.com/armon/go-radix"

	"github.com/zwilias/elm-json/internal/pkgname"
)

// index is a radix-tree-backed view over a manifest's dependency maps,
// keyed by "author/project". It gives Classify O(k)-in-key-length lookup,
// and gives Emit a ready-made lexicographically ordered walk over each
// bucket's package names, without a separate sort pass per map.
type index struct {
	tree *radix.Tree
}

func buildIndex(m Manifest) *index {
	tree := radix.New()

	switch m.Kind {
	case Application:
		for n := range m.App.Dependencies.Direct {
			tree.Insert(n.String(), Direct)
		}
		for n := range m.App.Dependencies.Indirect {
			tree.Insert(n.String(), Indirect)
		}
		for n := range m.App.TestDependencies.Direct {
			tree.Insert(n.String(), TestDirect)
		}
		for n := range m.App.TestDependencies.Indirect {
			tree.Insert(n.String(), TestIndirect)
		}
	case Package:
		for n := range m.Pkg.Dependencies {
			tree.Insert(n.String(), Direct)
		}
		for n := range m.Pkg.TestDependencies {
			tree.Insert(n.String(), TestDirect)
		}
	}

	return &index{tree: tree}
}

// classify looks up pkg's classification via the radix index, falling
// back to Absent when not present.
func (idx *index) classify(pkg pkgname.Name) Classification {
	v, ok := idx.tree.Get(pkg.String())
	if !ok {
		return Absent
	}
	return v.(Classification)
}

// namesByClassification walks the radix tree in lexicographic key order,
// returning just the names classified as c. Emit uses this to order each
// dependency bucket it serializes, so the key order it writes comes from
// the same structure Classify reads rather than an independent sort.
func (idx *index) namesByClassification(c Classification) []pkgname.Name {
	var names []pkgname.Name
	idx.tree.Walk(func(key string, v interface{}) bool {
		if v.(Classification) != c {
			return false
		}
		if n, err := pkgname.Parse(key); err == nil {
			names = append(names, n)
		}
		return false
	})
	return names
}
