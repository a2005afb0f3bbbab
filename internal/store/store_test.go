package store

import (
	"testing"

	"github.com/zwilias/elm-json/internal/pkgname"
	"github.com/zwilias/elm-json/internal/semver"
)

func name(t *testing.T, s string) pkgname.Name {
	n, err := pkgname.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return n
}

func TestTightenAndGet(t *testing.T) {
	s := New()
	core := name(t, "elm/core")

	if _, ok := s.Get(core); ok {
		t.Fatal("expected no range for unconstrained package")
	}

	r1 := semver.Range{Low: semver.MustParse("1.0.0"), High: semver.MustParse("2.0.0")}
	if err := s.Tighten(core, r1); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Get(core)
	if !ok || got != r1 {
		t.Fatalf("got %v, ok=%v", got, ok)
	}

	r2 := semver.Range{Low: semver.MustParse("1.5.0"), High: semver.MustParse("1.9.0")}
	if err := s.Tighten(core, r2); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(core)
	if got != r2 {
		t.Fatalf("got %v, want %v", got, r2)
	}
}

func TestTightenConflict(t *testing.T) {
	s := New()
	core := name(t, "elm/core")

	r1 := semver.Range{Low: semver.MustParse("1.0.0"), High: semver.MustParse("2.0.0")}
	r2 := semver.Range{Low: semver.MustParse("3.0.0"), High: semver.MustParse("4.0.0")}

	if err := s.Tighten(core, r1); err != nil {
		t.Fatal(err)
	}
	err := s.Tighten(core, r2)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	conflict, ok := err.(*Conflict)
	if !ok {
		t.Fatalf("expected *Conflict, got %T", err)
	}
	if conflict.Package != core {
		t.Errorf("conflict package = %v", conflict.Package)
	}

	// A failed Tighten must not mutate the stored range.
	got, _ := s.Get(core)
	if got != r1 {
		t.Fatalf("store mutated on failed tighten: %v", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	core := name(t, "elm/core")
	http := name(t, "elm/http")

	r1 := semver.Range{Low: semver.MustParse("1.0.0"), High: semver.MustParse("2.0.0")}
	if err := s.Tighten(core, r1); err != nil {
		t.Fatal(err)
	}

	mark := s.Snapshot()

	r2 := semver.Range{Low: semver.MustParse("1.5.0"), High: semver.MustParse("1.9.0")}
	if err := s.Tighten(core, r2); err != nil {
		t.Fatal(err)
	}
	if err := s.Tighten(http, semver.NewExact(semver.MustParse("2.0.0"))); err != nil {
		t.Fatal(err)
	}

	s.Restore(mark)

	got, ok := s.Get(core)
	if !ok || got != r1 {
		t.Fatalf("restore did not revert core: %v, ok=%v", got, ok)
	}
	if _, ok := s.Get(http); ok {
		t.Fatal("restore did not remove http added after snapshot")
	}
}

func TestRestoreIsStackDiscipline(t *testing.T) {
	s := New()
	core := name(t, "elm/core")

	mark0 := s.Snapshot()
	_ = s.Tighten(core, semver.NewExact(semver.MustParse("1.0.0")))
	mark1 := s.Snapshot()
	_ = s.Tighten(core, semver.NewExact(semver.MustParse("1.0.0")))

	s.Restore(mark1)
	if _, ok := s.Get(core); !ok {
		t.Fatal("expected core to still be constrained after restoring to mark1")
	}

	s.Restore(mark0)
	if _, ok := s.Get(core); ok {
		t.Fatal("expected core to be unconstrained after restoring to mark0")
	}
}
