package typography

import (
	"reflect"
	"testing"
)

func TestResolveKnownSelectors(t *testing.T) {
	c := Default()
	cases := map[Selector]Stack{
		English: {"Poppins", "sans-serif"},
		Hindi:   {"Noto Sans Devanagari", "sans-serif"},
		Marathi: {"Noto Sans Devanagari", "sans-serif"},
		Tamil:   {"Noto Sans Tamil", "sans-serif"},
	}
	for sel, want := range cases {
		if got := c.Resolve(sel); !reflect.DeepEqual(got, want) {
			t.Fatalf("Resolve(%s) = %v, want %v", sel, got, want)
		}
	}
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	c := Default()
	for _, sel := range []Selector{"", "klingon", "HINDI"} {
		if got := c.Resolve(sel); !reflect.DeepEqual(got, DefaultStack) {
			t.Fatalf("Resolve(%q) = %v, want default %v", sel, got, DefaultStack)
		}
	}
	var nilCatalog *Catalog
	if got := nilCatalog.Resolve(Hindi); !reflect.DeepEqual(got, DefaultStack) {
		t.Fatalf("nil catalog should resolve to default, got %v", got)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	c := Default()
	s := c.Resolve(Hindi)
	s[0] = "Mutated"
	if got := c.Resolve(Hindi)[0]; got != "Noto Sans Devanagari" {
		t.Fatalf("catalog mutated through returned stack: %s", got)
	}
}

func TestNewCatalogKeepsOrderAndReplacesDuplicates(t *testing.T) {
	c := NewCatalog([]Option{
		{Selector: Tamil, Stack: Stack{"A"}},
		{Selector: English, Stack: Stack{"B"}},
		{Selector: Tamil, Stack: Stack{"C"}},
	})
	opts := c.Options()
	if len(opts) != 2 || opts[0].Selector != Tamil || opts[1].Selector != English {
		t.Fatalf("unexpected options order: %+v", opts)
	}
	if opts[0].Stack[0] != "C" {
		t.Fatalf("duplicate selector should replace earlier entry, got %v", opts[0].Stack)
	}
}
