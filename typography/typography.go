// Package typography maps language/script selectors to font stacks.
package typography

// Selector identifies a typography option. The set is closed; see Selectors.
type Selector string

const (
	English Selector = "english"
	Hindi   Selector = "hindi"
	Marathi Selector = "marathi"
	Tamil   Selector = "tamil"
)

// DefaultSelector is the selector a fresh editing session starts with.
const DefaultSelector = Hindi

// Stack is an ordered list of font family names, most preferred first.
// Generic families ("sans-serif", "monospace") are valid last entries.
type Stack []string

// DefaultStack is returned for any selector the catalog does not know.
var DefaultStack = Stack{"Poppins", "sans-serif"}

// PhoneStack is the fixed neutral stack used by the phone field. It never
// follows the session's selector.
var PhoneStack = Stack{"Inter", "sans-serif"}

// Option describes one selectable typography entry.
type Option struct {
	Selector     Selector `json:"selector"`
	DisplayLabel string   `json:"displayLabel"`
	Stack        Stack    `json:"stack"`
	Sample       string   `json:"sample"`
}

// Catalog is a read-only, ordered set of options.
type Catalog struct {
	options []Option
	index   map[Selector]int
}

// NewCatalog builds a catalog; later duplicates of a selector replace earlier ones.
func NewCatalog(options []Option) *Catalog {
	c := &Catalog{index: make(map[Selector]int, len(options))}
	for _, opt := range options {
		opt.Stack = append(Stack(nil), opt.Stack...)
		if i, ok := c.index[opt.Selector]; ok {
			c.options[i] = opt
			continue
		}
		c.index[opt.Selector] = len(c.options)
		c.options = append(c.options, opt)
	}
	return c
}

// Default returns the built-in options (english, hindi, marathi, tamil).
func Default() *Catalog {
	return NewCatalog([]Option{
		{Selector: English, DisplayLabel: "English", Stack: Stack{"Poppins", "sans-serif"}, Sample: "Abc"},
		{Selector: Hindi, DisplayLabel: "हिंदी", Stack: Stack{"Noto Sans Devanagari", "sans-serif"}, Sample: "अआइ"},
		{Selector: Marathi, DisplayLabel: "मराठी", Stack: Stack{"Noto Sans Devanagari", "sans-serif"}, Sample: "अआइ"},
		{Selector: Tamil, DisplayLabel: "தமிழ்", Stack: Stack{"Noto Sans Tamil", "sans-serif"}, Sample: "அஆஇ"},
	})
}

// Resolve returns the stack for selector, or DefaultStack when the selector
// is unknown. It never fails.
func (c *Catalog) Resolve(selector Selector) Stack {
	if c != nil {
		if i, ok := c.index[selector]; ok && len(c.options[i].Stack) > 0 {
			return append(Stack(nil), c.options[i].Stack...)
		}
	}
	return append(Stack(nil), DefaultStack...)
}

// Options lists the options in declaration order.
func (c *Catalog) Options() []Option {
	if c == nil {
		return nil
	}
	out := make([]Option, len(c.options))
	for i, opt := range c.options {
		opt.Stack = append(Stack(nil), opt.Stack...)
		out[i] = opt
	}
	return out
}

// Has reports whether selector is declared in the catalog.
func (c *Catalog) Has(selector Selector) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[selector]
	return ok
}
