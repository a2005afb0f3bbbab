package solver

import "github.com/zwilias/elm-json/internal/pkgname"

// queue is the solver's work queue of packages whose accumulated range
// has changed and need a version (re-)selected. Per spec §4.5's
// tie-break rule, it dequeues in deterministic lexicographic (author,
// project) order regardless of insertion order.
type queue struct {
	pending map[pkgname.Name]bool
}

func newQueue() *queue {
	return &queue{pending: make(map[pkgname.Name]bool)}
}

// push adds pkg if it isn't already pending, reporting whether it did so
// (the caller needs this to know whether to record pkg for undo on
// backtrack).
func (q *queue) push(pkg pkgname.Name) bool {
	if q.pending[pkg] {
		return false
	}
	q.pending[pkg] = true
	return true
}

func (q *queue) remove(pkg pkgname.Name) {
	delete(q.pending, pkg)
}

// pop removes and returns the lexicographically smallest pending
// package.
func (q *queue) pop() (pkgname.Name, bool) {
	if len(q.pending) == 0 {
		return pkgname.Name{}, false
	}
	var best pkgname.Name
	first := true
	for p := range q.pending {
		if first || p.Less(best) {
			best = p
			first = false
		}
	}
	delete(q.pending, best)
	return best, true
}
