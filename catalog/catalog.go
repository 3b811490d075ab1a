package catalog

import (
	"errors"
	"fmt"

	"github.com/ByLCY/vyapaarpost/typography"
)

// ErrNotFound is returned when a template id is not in the catalog.
var ErrNotFound = errors.New("template not found")

// CategoryCount summarises one category for listings.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Label    string   `json:"label"`
}

var categoryLabels = []struct {
	category Category
	label    string
}{
	{Offer, "Daily Offers"},
	{Festival, "Festivals"},
	{Greeting, "Greetings"},
}

// Catalog is a read-only set of templates plus the typography options
// declared alongside them.
type Catalog struct {
	templates []Template
	index     map[string]int
	fonts     *typography.Catalog
}

// New builds a catalog from templates. Ids must be unique. A nil fonts
// catalog falls back to typography.Default().
func New(templates []Template, fonts *typography.Catalog) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(templates)), fonts: fonts}
	if c.fonts == nil {
		c.fonts = typography.Default()
	}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id")
		}
		if _, dup := c.index[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		c.index[t.ID] = len(c.templates)
		c.templates = append(c.templates, t.Clone())
	}
	return c, nil
}

// GetByID looks a template up. A missing id yields an error wrapping
// ErrNotFound so callers can abort session setup.
func (c *Catalog) GetByID(id string) (Template, error) {
	i, ok := c.index[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.templates[i].Clone(), nil
}

// ListByCategory returns the templates of one category in declaration order.
func (c *Catalog) ListByCategory(category Category) []Template {
	var out []Template
	for _, t := range c.templates {
		if t.Category == category {
			out = append(out, t.Clone())
		}
	}
	return out
}

// ListCategories returns every known category with its template count.
func (c *Catalog) ListCategories() []CategoryCount {
	out := make([]CategoryCount, 0, len(categoryLabels))
	for _, cl := range categoryLabels {
		count := 0
		for _, t := range c.templates {
			if t.Category == cl.category {
				count++
			}
		}
		out = append(out, CategoryCount{Category: cl.category, Count: count, Label: cl.label})
	}
	return out
}

// All returns every template in declaration order.
func (c *Catalog) All() []Template {
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out
}

// Typography returns the typography options declared with the catalog.
func (c *Catalog) Typography() *typography.Catalog {
	return c.fonts
}

// Len reports the number of templates.
func (c *Catalog) Len() int { return len(c.templates) }
