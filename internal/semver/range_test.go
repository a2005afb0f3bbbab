package semver

import "testing"

func TestParseRange(t *testing.T) {
	r, err := ParseRange("1.0.0 <= v < 2.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Low != MustParse("1.0.0") || r.High != MustParse("2.0.0") {
		t.Fatalf("got %v", r)
	}

	if _, err := ParseRange("1.0.0 <= 2.0.0"); err == nil {
		t.Fatal("expected error for malformed range")
	}

	if _, err := ParseRange("2.0.0 <= v < 1.0.0"); err == nil {
		t.Fatal("expected error for non-monotonic range endpoints")
	}
}

func TestRangeString(t *testing.T) {
	r := NewExact(MustParse("1.2.3"))
	if got, want := r.String(), "1.2.3 <= v < 2.0.0"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRangeContains(t *testing.T) {
	r := NewExact(MustParse("1.0.0"))
	cases := []struct {
		v    Version
		want bool
	}{
		{MustParse("1.0.0"), true},
		{MustParse("1.9.9"), true},
		{MustParse("0.9.9"), false},
		{MustParse("2.0.0"), false},
	}
	for _, c := range cases {
		if got := r.Contains(c.v); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestIntersect(t *testing.T) {
	a := Range{Low: MustParse("1.0.0"), High: MustParse("2.0.0")}
	b := Range{Low: MustParse("1.5.0"), High: MustParse("3.0.0")}

	got, ok := a.Intersect(b)
	if !ok {
		t.Fatal("expected intersection to be non-empty")
	}
	want := Range{Low: MustParse("1.5.0"), High: MustParse("2.0.0")}
	if got != want {
		t.Errorf("Intersect() = %v, want %v", got, want)
	}

	// Commutative
	got2, ok2 := b.Intersect(a)
	if !ok2 || got2 != want {
		t.Errorf("Intersect() not commutative: %v vs %v", got, got2)
	}

	// Disjoint ranges yield empty intersection.
	c := Range{Low: MustParse("3.0.0"), High: MustParse("4.0.0")}
	if _, ok := a.Intersect(c); ok {
		t.Error("expected empty intersection for disjoint ranges")
	}
}

func TestIntersectAssociative(t *testing.T) {
	a := Range{Low: MustParse("1.0.0"), High: MustParse("5.0.0")}
	b := Range{Low: MustParse("2.0.0"), High: MustParse("6.0.0")}
	c := Range{Low: MustParse("3.0.0"), High: MustParse("4.5.0")}

	ab, _ := a.Intersect(b)
	abc1, ok1 := ab.Intersect(c)

	bc, _ := b.Intersect(c)
	abc2, ok2 := a.Intersect(bc)

	if ok1 != ok2 || abc1 != abc2 {
		t.Errorf("Intersect not associative: (a∩b)∩c = %v, a∩(b∩c) = %v", abc1, abc2)
	}
}

func TestAdmitsAny(t *testing.T) {
	a := NewExact(MustParse("1.0.0"))
	b := NewExact(MustParse("1.5.0"))
	if !a.AdmitsAny(b) {
		t.Error("expected overlapping ranges to admit some version")
	}

	c := NewExact(MustParse("2.0.0"))
	if a.AdmitsAny(c) {
		t.Error("expected disjoint major ranges to admit nothing")
	}
}
