package pkgname

import "testing"

func TestParse(t *testing.T) {
	n, err := Parse("elm/core")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Author != "elm" || n.Project != "core" {
		t.Fatalf("got %+v", n)
	}
	if n.String() != "elm/core" {
		t.Errorf("String() = %q", n.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"elmcore",
		"elm/",
		"/core",
		"elm/core-test",
		"-elm/core",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error", c)
		}
	}
}

func TestLess(t *testing.T) {
	a, _ := Parse("elm/core")
	b, _ := Parse("elm/http")
	c, _ := Parse("rtfeldman/core")

	if !a.Less(b) {
		t.Error("expected elm/core < elm/http")
	}
	if !b.Less(c) {
		t.Error("expected elm/http < rtfeldman/core")
	}
	if a.Less(a) {
		t.Error("expected a < a to be false")
	}
}
