package manifest

import (
	"testing"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

func mustName(t *testing.T, s string) pkgname.Name {
	n, err := pkgname.Parse(s)
	if err != nil {
		t.Fatalf("pkgname.Parse(%q): %v", s, err)
	}
	return n
}

func TestParseApplication(t *testing.T) {
	doc := []byte(`{
		"type": "application",
		"source-directories": ["src"],
		"elm-version": "0.19.1",
		"dependencies": {
			"direct": {"elm/core": "1.0.5"},
			"indirect": {}
		},
		"test-dependencies": {
			"direct": {},
			"indirect": {}
		}
	}`)

	m, err := Parse(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != Application {
		t.Fatalf("got kind %v", m.Kind)
	}
	core := mustName(t, "elm/core")
	if v, ok := m.App.Dependencies.Direct[core]; !ok || v != semver.MustParse("1.0.5") {
		t.Fatalf("elm/core = %v, ok=%v", v, ok)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type": "bogus"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*MalformedManifestError); !ok {
		t.Fatalf("expected MalformedManifestError, got %T", err)
	}
}

func TestParseRejectsDuplicateAcrossDirectIndirect(t *testing.T) {
	doc := []byte(`{
		"type": "application",
		"source-directories": ["src"],
		"elm-version": "0.19.1",
		"dependencies": {
			"direct": {"elm/core": "1.0.5"},
			"indirect": {"elm/core": "1.0.5"}
		},
		"test-dependencies": {"direct": {}, "indirect": {}}
	}`)
	if _, err := Parse(doc); err == nil {
		t.Fatal("expected error for duplicate dependency")
	}
}

func TestEmitParseIdentity(t *testing.T) {
	m := NewApplication(semver.MustParse("0.19.1"), []string{"src"})
	m, err := m.WithDirectVersion(mustName(t, "elm/core"), semver.MustParse("1.0.5"))
	if err != nil {
		t.Fatal(err)
	}
	m, err = m.WithIndirectVersion(mustName(t, "elm/json"), semver.MustParse("1.1.3"))
	if err != nil {
		t.Fatal(err)
	}

	out, err := Emit(m)
	if err != nil {
		t.Fatal(err)
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, out)
	}

	if reparsed.App.Dependencies.Direct[mustName(t, "elm/core")] != semver.MustParse("1.0.5") {
		t.Fatal("direct dependency lost across emit/parse round trip")
	}
	if reparsed.App.Dependencies.Indirect[mustName(t, "elm/json")] != semver.MustParse("1.1.3") {
		t.Fatal("indirect dependency lost across emit/parse round trip")
	}
}

func TestEmitIsIdempotent(t *testing.T) {
	m := NewApplication(semver.MustParse("0.19.1"), []string{"src"})
	m, _ = m.WithDirectVersion(mustName(t, "elm/core"), semver.MustParse("1.0.5"))

	out1, err := Emit(m)
	if err != nil {
		t.Fatal(err)
	}
	reparsed, err := Parse(out1)
	if err != nil {
		t.Fatal(err)
	}
	out2, err := Emit(reparsed)
	if err != nil {
		t.Fatal(err)
	}

	if string(out1) != string(out2) {
		t.Fatalf("emit not idempotent:\n--- first ---\n%s\n--- second ---\n%s", out1, out2)
	}
}

func TestPackageRoundingRule(t *testing.T) {
	m := NewPackage(mustName(t, "author/project"), "a summary", "BSD-3-Clause",
		semver.MustParse("1.0.0"), semver.Range{Low: semver.MustParse("0.19.0"), High: semver.MustParse("0.20.0")})

	m, err := m.WithDirectVersion(mustName(t, "elm/core"), semver.MustParse("1.0.5"))
	if err != nil {
		t.Fatal(err)
	}

	got := m.Pkg.Dependencies[mustName(t, "elm/core")]
	want := semver.NewExact(semver.MustParse("1.0.5"))
	if got != want {
		t.Fatalf("got range %v, want %v", got, want)
	}

	m, err = m.WithDirectRange(mustName(t, "elm/http"), semver.Range{Low: semver.MustParse("1.0.0"), High: semver.MustParse("3.0.0")})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Pkg.Dependencies[mustName(t, "elm/http")]; got.High != semver.MustParse("3.0.0") {
		t.Fatalf("explicit range was rounded: %v", got)
	}
}

func TestClassify(t *testing.T) {
	m := NewApplication(semver.MustParse("0.19.1"), []string{"src"})
	core := mustName(t, "elm/core")
	json := mustName(t, "elm/json")
	unused := mustName(t, "elm/unused")

	m, _ = m.WithDirectVersion(core, semver.MustParse("1.0.5"))
	m, _ = m.WithIndirectVersion(json, semver.MustParse("1.1.3"))

	if m.Classify(core) != Direct {
		t.Errorf("elm/core classified as %v, want Direct", m.Classify(core))
	}
	if m.Classify(json) != Indirect {
		t.Errorf("elm/json classified as %v, want Indirect", m.Classify(json))
	}
	if m.Classify(unused) != Absent {
		t.Errorf("elm/unused classified as %v, want Absent", m.Classify(unused))
	}
}

func TestWithoutRemovesFromAllMaps(t *testing.T) {
	m := NewApplication(semver.MustParse("0.19.1"), []string{"src"})
	core := mustName(t, "elm/core")
	m, _ = m.WithDirectVersion(core, semver.MustParse("1.0.5"))
	m = m.Without(core)

	if m.Classify(core) != Absent {
		t.Errorf("expected elm/core to be absent after Without, got %v", m.Classify(core))
	}
}
