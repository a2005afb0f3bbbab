// Package pkgname defines the package-identity type shared by the
// manifest, registry, constraint store, and solver: a case-sensitive
// (author, project) tuple.
package pkgname

import (
	"regexp"

	"github.com/pkg/errors"
)

// Name identifies a published package by its author and project, e.g.
// "elm/core".
type Name struct {
	Author, Project string
}

var segment = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*(-[a-zA-Z0-9]+)*$`)

// reservedProjectSuffix is disallowed because it collides with the
// test-dependency namespace convention.
const reservedProjectSuffix = "-test"

// Parse parses the canonical "author/project" textual form.
func Parse(s string) (Name, error) {
	i := -1
	for idx := 0; idx < len(s); idx++ {
		if s[idx] == '/' {
			i = idx
			break
		}
	}
	if i < 0 {
		return Name{}, errors.Errorf("malformed package name %q: expected \"author/project\"", s)
	}

	n := Name{Author: s[:i], Project: s[i+1:]}
	if err := n.Validate(); err != nil {
		return Name{}, err
	}
	return n, nil
}

// Validate checks that both components are nonempty and over the
// restricted alphabet the ecosystem requires.
func (n Name) Validate() error {
	if !segment.MatchString(n.Author) {
		return errors.Errorf("malformed author %q", n.Author)
	}
	if !segment.MatchString(n.Project) {
		return errors.Errorf("malformed project %q", n.Project)
	}
	if len(n.Project) > len(reservedProjectSuffix) &&
		n.Project[len(n.Project)-len(reservedProjectSuffix):] == reservedProjectSuffix {
		return errors.Errorf("project name %q may not end in %q", n.Project, reservedProjectSuffix)
	}
	return nil
}

func (n Name) String() string {
	return n.Author + "/" + n.Project
}

// Less orders names lexicographically by (author, project), the
// determinism order the solver's work queue relies on.
func (n Name) Less(other Name) bool {
	if n.Author != other.Author {
		return n.Author < other.Author
	}
	return n.Project < other.Project
}
