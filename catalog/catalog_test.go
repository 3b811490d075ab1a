package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/ByLCY/vyapaarpost/typography"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("expected 4 templates, got %d", c.Len())
	}

	tpl, err := c.GetByID("daily-offer-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if tpl.Name != "Daily Offer - Orange" || tpl.Category != Offer || tpl.FallbackColor != "#ff7e5f" {
		t.Fatalf("unexpected template header: %+v", tpl)
	}
	if tpl.Background != "/templates/daily-offer-1.png" {
		t.Fatalf("unexpected background ref %q", tpl.Background)
	}
	h := tpl.Fields.Heading
	if h.X != 50 || h.Y != 25 || h.FontSize != 36 || h.FontWeight != 700 || h.Align != AlignCenter {
		t.Fatalf("unexpected heading spec: %+v", h)
	}
	if w, ok := h.MaxWidthPercent(); !ok || w != 90 {
		t.Fatalf("heading max width = %v (%v), want 90", w, ok)
	}
	if h.Shadow == nil || h.Shadow.DX != 2 || h.Shadow.Color != "#0000004D" {
		t.Fatalf("unexpected heading shadow: %+v", h.Shadow)
	}
	if tpl.DefaultText.Subheading != "सभी प्रोडक्ट्स पर 20% छूट" {
		t.Fatalf("unexpected default subheading %q", tpl.DefaultText.Subheading)
	}
	phone, ok := tpl.Fields.PhoneSpec()
	if !ok || phone.Y != 92 || phone.Shadow != nil {
		t.Fatalf("unexpected phone spec: %+v", phone)
	}

	if got := c.Typography().Resolve(typography.Tamil); got[0] != "Noto Sans Tamil" {
		t.Fatalf("catalog fonts not loaded: %v", got)
	}
}

func TestGetByIDMissing(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	if _, err := c.GetByID("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemplatesAreCopies(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	tpl, _ := c.GetByID("greeting-morning-1")
	*tpl.Fields.Heading.MaxWidth = 10
	tpl.Fields.Phone.Color = "#000000"
	again, _ := c.GetByID("greeting-morning-1")
	if *again.Fields.Heading.MaxWidth != 90 || again.Fields.Phone.Color != "#718096" {
		t.Fatalf("catalog mutated through returned template: %+v", again.Fields)
	}
}

func TestListings(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	offers := c.ListByCategory(Offer)
	if len(offers) != 2 || offers[0].ID != "daily-offer-1" || offers[1].ID != "daily-offer-2" {
		t.Fatalf("unexpected offers: %d", len(offers))
	}
	cats := c.ListCategories()
	if len(cats) != 3 || cats[0].Label != "Daily Offers" || cats[0].Count != 2 || cats[1].Count != 1 {
		t.Fatalf("unexpected categories: %+v", cats)
	}
	if all := c.All(); len(all) != 4 || all[3].ID != "daily-offer-2" {
		t.Fatalf("unexpected order from All")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"missing fallback": `catalog X v1 {
  template a offer {
    field heading { x: 50% }
    field subheading { x: 50% }
    field footer { x: 50% }
  }
}`,
		"missing footer": `catalog X v1 {
  template a offer {
    fallback: #000
    field heading { x: 50% }
    field subheading { x: 50% }
  }
}`,
		"percent out of range": `catalog X v1 {
  template a offer {
    fallback: #000
    field heading { x: 150% }
    field subheading { x: 50% }
    field footer { x: 50% }
  }
}`,
		"unknown category": `catalog X v1 {
  template a seasonal {
    fallback: #000
  }
}`,
		"bad align": `catalog X v1 {
  template a offer {
    fallback: #000
    field heading { align: justify }
    field subheading { x: 50% }
    field footer { x: 50% }
  }
}`,
		"duplicate id": `catalog X v1 {
  template a offer {
    fallback: #000
    field heading { x: 50% }
    field subheading { x: 50% }
    field footer { x: 50% }
  }
  template a offer {
    fallback: #000
    field heading { x: 50% }
    field subheading { x: 50% }
    field footer { x: 50% }
  }
}`,
	}
	for name, src := range cases {
		if _, err := Load(name, strings.NewReader(src)); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
}

func TestLoadMinimalTemplateUsesDefaults(t *testing.T) {
	src := `catalog X v1 {
  template plain greeting {
    fallback: #123456
    field heading { y: 10% }
    field subheading { y: 40% }
    field footer { y: 80%; align: left }
  }
}`
	c, err := Load("plain.vpc", strings.NewReader(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl, err := c.GetByID("plain")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if tpl.Name != "plain" || tpl.Fields.Phone != nil {
		t.Fatalf("unexpected defaults: %+v", tpl)
	}
	if _, ok := tpl.Fields.Heading.MaxWidthPercent(); ok {
		t.Fatalf("heading should have no max width")
	}
	if tpl.Fields.Footer.Align != AlignLeft || tpl.Fields.Footer.X != 50 {
		t.Fatalf("unexpected footer: %+v", tpl.Fields.Footer)
	}
	if got := c.Typography().Resolve(typography.Hindi); got[0] != "Noto Sans Devanagari" {
		t.Fatalf("catalog without fonts should fall back to defaults, got %v", got)
	}
}
