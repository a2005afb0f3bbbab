// Package registrytest stands up an in-process fake of the two registry
// HTTPS endpoints (spec §6) for registry-client tests,
// mirroring the teacher's cmd/dep/testdata/registry fixture server.
package registrytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"

	"github.com/zwilias/elm-json/internal/manifest"
	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

// Server is a fake package registry backed by an in-memory catalog.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	catalog   map[string][]string
	manifests map[string][]byte

	// Hits counts requests per path, so tests can assert on cache
	// behavior (e.g. "offline install must make zero requests").
	Hits map[string]int
}

// New starts a fake registry server with an empty catalog.
func New() *Server {
	s := &Server{
		catalog:   make(map[string][]string),
		manifests: make(map[string][]byte),
		Hits:      make(map[string]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/all-packages", s.handleAllPackages).Methods(http.MethodGet)
	r.HandleFunc("/packages/{author}/{project}/{version}/elm.json", s.handleManifest).Methods(http.MethodGet)
	s.Server = httptest.NewServer(r)
	return s
}

// AddVersion registers a published (package, version) with pkgManifest
// as that release's package-variant manifest (its declared dependency
// ranges).
func (s *Server) AddVersion(pkg string, version string, pkgManifest manifest.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalog[pkg] = append(s.catalog[pkg], version)

	data, err := manifest.Emit(pkgManifest)
	if err != nil {
		panic(err) // test fixture construction error, not a runtime path
	}
	s.manifests[pkg+"@"+version] = data
}

func (s *Server) handleAllPackages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.Hits["/all-packages"]++
	catalog := s.catalog
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(catalog)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["author"] + "/" + vars["project"] + "@" + vars["version"]

	s.mu.Lock()
	s.Hits[r.URL.Path]++
	data, ok := s.manifests[key]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// MustPackage builds a bare package manifest with the given dependency
// ranges, for use with AddVersion. Its elm-version is always "0.19.0 <= v < 0.20.0".
func MustPackage(t interface{ Fatalf(string, ...interface{}) }, name, version string, deps map[string]string) manifest.Manifest {
	n, err := pkgname.Parse(name)
	if err != nil {
		t.Fatalf("pkgname.Parse(%q): %v", name, err)
	}
	v, err := semver.Parse(version)
	if err != nil {
		t.Fatalf("semver.Parse(%q): %v", version, err)
	}
	elmRange, err := semver.ParseRange("0.19.0 <= v < 0.20.0")
	if err != nil {
		t.Fatalf("building elm-version range: %v", err)
	}

	m := manifest.NewPackage(n, "a test package", "BSD-3-Clause", v, elmRange)
	for dep, r := range deps {
		depName, err := pkgname.Parse(dep)
		if err != nil {
			t.Fatalf("pkgname.Parse(%q): %v", dep, err)
		}
		depRange, err := semver.ParseRange(r)
		if err != nil {
			t.Fatalf("semver.ParseRange(%q): %v", r, err)
		}
		m, err = m.WithDirectRange(depName, depRange)
		if err != nil {
			t.Fatalf("WithDirectRange(%s): %v", dep, err)
		}
	}
	return m
}
