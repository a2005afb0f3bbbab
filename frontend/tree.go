package frontend

import (
	"context"
	"sort"
	"strings"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/registry"
	"github.com/zwilias/elm-json/internal/semver"
	"github.com/zwilias/elm-json/internal/solver"
)

// TreeRequest describes a tree rendering: solve the manifest's
// dependencies (optionally promoting test dependencies to roots), then
// print the transitive closure as an indented tree. Filter, if non-empty,
// restricts the printed tree to paths that lead to that package.
type TreeRequest struct {
	Manifest     manifest.Manifest
	IncludeTests bool
	Filter       pkgname.Name
}

// TreeNode is one line of the rendered dependency tree.
type TreeNode struct {
	Package  pkgname.Name
	Version  semver.Version
	Depth    int
	Elided   bool // true if this package's children were omitted: already shown once
	Children []*TreeNode
}

// Tree solves req.Manifest's dependency set and returns the root of the
// rendered tree. Each package's children are printed only the first time
// it's reached; subsequent occurrences are marked Elided, per the
// teacher's "(*)" convention.
func Tree(ctx context.Context, reg solver.Registry, req TreeRequest) (*TreeNode, error) {
	roots, elmVersion, err := treeRoots(req)
	if err != nil {
		return nil, err
	}

	s := solver.New(reg, nil)
	selected, err := s.Solve(ctx, solver.Input{Roots: roots, Preference: solver.Maximize, ElmVersion: elmVersion})
	if err != nil {
		return nil, err
	}

	// The full sibling set is known now that the solver has decided; warm
	// the manifest cache for all of it before the recursive walk below
	// re-fetches each one individually.
	prefetchSelected(ctx, reg, selected)

	rootNames := make([]pkgname.Name, 0, len(roots))
	for p := range roots {
		rootNames = append(rootNames, p)
	}
	sortNames(rootNames)

	var reaches map[pkgname.Name]bool
	hasFilter := req.Filter != (pkgname.Name{})
	if hasFilter {
		allNames := make([]pkgname.Name, 0, len(selected))
		for p := range selected {
			allNames = append(allNames, p)
		}
		var err error
		reaches, err = reachesFilter(ctx, reg, allNames, selected, req.Filter)
		if err != nil {
			return nil, err
		}
		rootNames = filterNames(rootNames, reaches)
	}

	root := &TreeNode{}
	visited := make(map[pkgname.Name]bool)
	for _, p := range rootNames {
		child, err := buildTreeNode(ctx, reg, p, selected, visited, 1, reaches)
		if err != nil {
			return nil, err
		}
		if child != nil {
			root.Children = append(root.Children, child)
		}
	}
	return root, nil
}

func treeRoots(req TreeRequest) (map[pkgname.Name]semver.Range, *semver.Version, error) {
	roots := make(map[pkgname.Name]semver.Range)

	if req.Manifest.Kind == manifest.Application {
		app := req.Manifest.App
		for p, v := range app.Dependencies.Direct {
			roots[p] = pinned(v)
		}
		for p, v := range app.Dependencies.Indirect {
			roots[p] = pinned(v)
		}
		if req.IncludeTests {
			for p, v := range app.TestDependencies.Direct {
				roots[p] = pinned(v)
			}
			for p, v := range app.TestDependencies.Indirect {
				roots[p] = pinned(v)
			}
		}
		return roots, &app.ElmVersion, nil
	}

	pkg := req.Manifest.Pkg
	for p, r := range pkg.Dependencies {
		roots[p] = r
	}
	if req.IncludeTests {
		for p, r := range pkg.TestDependencies {
			roots[p] = r
		}
	}
	return roots, nil, nil
}

// buildTreeNode recurses through pkg's dependencies in lexicographic
// order. Once a package has appeared anywhere in the tree, later
// occurrences stop recursing (Elided) rather than re-printing a subtree
// the user has already seen.
func buildTreeNode(
	ctx context.Context, reg solver.Registry, pkg pkgname.Name,
	selected map[pkgname.Name]semver.Version, visited map[pkgname.Name]bool,
	depth int, reaches map[pkgname.Name]bool,
) (*TreeNode, error) {
	v, ok := selected[pkg]
	if !ok {
		return nil, nil
	}

	repeated := visited[pkg]
	visited[pkg] = true

	node := &TreeNode{Package: pkg, Version: v, Depth: depth, Elided: repeated}
	if repeated {
		return node, nil
	}

	pm, err := reg.FetchManifest(ctx, pkg, v)
	if err != nil {
		return nil, err
	}

	deps := make([]pkgname.Name, 0, len(pm.Dependencies))
	for dep := range pm.Dependencies {
		if reaches != nil && !reaches[dep] {
			continue
		}
		deps = append(deps, dep)
	}
	sortNames(deps)

	for _, dep := range deps {
		child, err := buildTreeNode(ctx, reg, dep, selected, visited, depth+1, reaches)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

// reachesFilter computes, for each root, whether filter is reachable from
// it (filter reaching itself counts), via the resolved dependency graph.
func reachesFilter(
	ctx context.Context, reg solver.Registry, rootNames []pkgname.Name,
	selected map[pkgname.Name]semver.Version, filter pkgname.Name,
) (map[pkgname.Name]bool, error) {
	reachesCache := make(map[pkgname.Name]bool)
	var visit func(pkg pkgname.Name, seen map[pkgname.Name]bool) (bool, error)
	visit = func(pkg pkgname.Name, seen map[pkgname.Name]bool) (bool, error) {
		if pkg == filter {
			return true, nil
		}
		if v, ok := reachesCache[pkg]; ok {
			return v, nil
		}
		if seen[pkg] {
			return false, nil
		}
		seen[pkg] = true

		v, ok := selected[pkg]
		if !ok {
			return false, nil
		}
		pm, err := reg.FetchManifest(ctx, pkg, v)
		if err != nil {
			return false, err
		}
		for dep := range pm.Dependencies {
			ok, err := visit(dep, seen)
			if err != nil {
				return false, err
			}
			if ok {
				reachesCache[pkg] = true
				return true, nil
			}
		}
		reachesCache[pkg] = false
		return false, nil
	}

	out := make(map[pkgname.Name]bool, len(rootNames))
	for _, p := range rootNames {
		ok, err := visit(p, make(map[pkgname.Name]bool))
		if err != nil {
			return nil, err
		}
		out[p] = ok
	}
	return out, nil
}

// prefetchSelected warms the manifest cache for every package in selected
// when reg supports it. solver.Registry doesn't declare PrefetchManifests
// itself (the solver never needs a known sibling set up front, only
// Tree's post-solve walk does), so this checks for the capability the
// way a *registry.Client offers it. Any error is ignored here; the
// recursive walk's own FetchManifest calls will surface it for real.
func prefetchSelected(ctx context.Context, reg solver.Registry, selected map[pkgname.Name]semver.Version) {
	p, ok := reg.(interface {
		PrefetchManifests(ctx context.Context, wants []registry.Want) error
	})
	if !ok {
		return
	}

	wants := make([]registry.Want, 0, len(selected))
	for pkg, v := range selected {
		wants = append(wants, registry.Want{Package: pkg, Version: v})
	}
	_ = p.PrefetchManifests(ctx, wants)
}

func filterNames(names []pkgname.Name, keep map[pkgname.Name]bool) []pkgname.Name {
	out := make([]pkgname.Name, 0, len(names))
	for _, n := range names {
		if keep[n] {
			out = append(out, n)
		}
	}
	return out
}

// Render writes root as an indented tree to a string, using "(*)" to mark a
// package whose children were elided because it already appeared earlier
// in the output.
func Render(root *TreeNode) string {
	var b strings.Builder
	b.WriteString("project\n")
	renderChildren(&b, root.Children, "")
	return b.String()
}

func renderChildren(b *strings.Builder, nodes []*TreeNode, prefix string) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Package.Less(nodes[j].Package) })
	for i, n := range nodes {
		last := i == len(nodes)-1
		branch, childPrefix := "├── ", prefix+"│   "
		if last {
			branch, childPrefix = "└── ", prefix+"    "
		}

		marker := ""
		if n.Elided {
			marker = " (*)"
		}
		b.WriteString(prefix + branch + n.Package.String() + " @ " + n.Version.String() + marker + "\n")

		if !n.Elided {
			renderChildren(b, n.Children, childPrefix)
		}
	}
}
