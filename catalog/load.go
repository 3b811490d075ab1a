package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ByLCY/vyapaarpost/dsl"
	"github.com/ByLCY/vyapaarpost/typography"
)

//go:embed default.vpc
var defaultSource string

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Load("default.vpc", strings.NewReader(defaultSource))
})

// Default returns the built-in catalog (four templates, four typography options).
func Default() (*Catalog, error) {
	return loadDefault()
}

// LoadFile parses and validates a catalog file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(path, f)
}

// Load parses catalog source and converts it into a validated Catalog.
func Load(filename string, r io.Reader) (*Catalog, error) {
	doc, err := dsl.Parse(filename, r)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument converts a parsed AST into a Catalog.
func FromDocument(doc *dsl.Document) (*Catalog, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil catalog document")
	}
	var (
		templates []Template
		options   []typography.Option
	)
	for _, sec := range doc.Sections {
		switch sec.Kind() {
		case "fonts":
			opts, err := buildFonts(sec.Fonts)
			if err != nil {
				return nil, err
			}
			options = append(options, opts...)
		case "template":
			tpl, err := buildTemplate(sec.Template)
			if err != nil {
				return nil, err
			}
			templates = append(templates, tpl)
		}
	}
	var fonts *typography.Catalog
	if len(options) > 0 {
		fonts = typography.NewCatalog(options)
	}
	return New(templates, fonts)
}

func buildFonts(sec *dsl.FontsSection) ([]typography.Option, error) {
	if sec == nil || sec.Block == nil {
		return nil, nil
	}
	var out []typography.Option
	for _, st := range sec.Block.Statements {
		cmd := st.Command
		if cmd == nil || cmd.Name != "font" {
			return nil, fmt.Errorf("%s: fonts section only accepts font declarations", st.Pos())
		}
		if len(cmd.Args) == 0 {
			return nil, fmt.Errorf("%s: font requires a selector", cmd.Pos)
		}
		selector, ok := cmd.Args[0].Text()
		if !ok {
			return nil, fmt.Errorf("%s: font selector must be a word", cmd.Pos)
		}
		opt := typography.Option{
			Selector:     typography.Selector(selector),
			DisplayLabel: selector,
		}
		if len(cmd.Args) > 1 {
			if label, ok := cmd.Args[1].Text(); ok {
				opt.DisplayLabel = label
			}
		}
		if cmd.Block != nil {
			for _, inner := range cmd.Block.Statements {
				a := inner.Assignment
				if a == nil {
					continue
				}
				switch a.Key {
				case "stack":
					stack, err := valueStrings(a.Value)
					if err != nil {
						return nil, fmt.Errorf("%s: stack: %w", a.Pos, err)
					}
					opt.Stack = stack
				case "sample":
					opt.Sample, _ = valueString(a.Value)
				case "label":
					opt.DisplayLabel, _ = valueString(a.Value)
				default:
					return nil, fmt.Errorf("%s: unknown font property %q", a.Pos, a.Key)
				}
			}
		}
		if len(opt.Stack) == 0 {
			return nil, fmt.Errorf("%s: font %s has an empty stack", cmd.Pos, opt.Selector)
		}
		out = append(out, opt)
	}
	return out, nil
}

func buildTemplate(sec *dsl.TemplateSection) (Template, error) {
	tpl := Template{ID: sec.ID, Category: Category(sec.Category)}
	switch tpl.Category {
	case Offer, Festival, Greeting:
	default:
		return Template{}, fmt.Errorf("%s: template %s: unknown category %q", sec.Pos, sec.ID, sec.Category)
	}

	seen := map[string]bool{}
	if sec.Block != nil {
		for _, st := range sec.Block.Statements {
			switch {
			case st.Assignment != nil:
				if err := applyTemplateProperty(&tpl, st.Assignment); err != nil {
					return Template{}, fmt.Errorf("template %s: %w", sec.ID, err)
				}
			case st.Command != nil && st.Command.Name == "text":
				if err := applyDefaultText(&tpl.DefaultText, st.Command); err != nil {
					return Template{}, fmt.Errorf("template %s: %w", sec.ID, err)
				}
			case st.Command != nil && st.Command.Name == "field":
				name, spec, err := buildField(st.Command)
				if err != nil {
					return Template{}, fmt.Errorf("template %s: %w", sec.ID, err)
				}
				if seen[name] {
					return Template{}, fmt.Errorf("%s: template %s: field %s declared twice", st.Command.Pos, sec.ID, name)
				}
				seen[name] = true
				switch name {
				case "heading":
					tpl.Fields.Heading = spec
				case "subheading":
					tpl.Fields.Subheading = spec
				case "footer":
					tpl.Fields.Footer = spec
				case "phone":
					tpl.Fields.Phone = &spec
				}
			default:
				return Template{}, fmt.Errorf("%s: template %s: unexpected statement", st.Pos(), sec.ID)
			}
		}
	}

	if tpl.FallbackColor == "" {
		return Template{}, fmt.Errorf("%s: template %s: fallback colour is required", sec.Pos, sec.ID)
	}
	for _, required := range []string{"heading", "subheading", "footer"} {
		if !seen[required] {
			return Template{}, fmt.Errorf("%s: template %s: missing field %s", sec.Pos, sec.ID, required)
		}
	}
	if tpl.Name == "" {
		tpl.Name = tpl.ID
	}
	return tpl, nil
}

func applyTemplateProperty(tpl *Template, a *dsl.Assignment) error {
	switch a.Key {
	case "name":
		s, ok := valueString(a.Value)
		if !ok {
			return fmt.Errorf("%s: name must be a string", a.Pos)
		}
		tpl.Name = s
	case "thumbnail":
		tpl.Thumbnail, _ = valueString(a.Value)
	case "background":
		tpl.Background, _ = valueString(a.Value)
	case "fallback":
		c, err := valueColor(a.Value)
		if err != nil {
			return fmt.Errorf("%s: fallback: %w", a.Pos, err)
		}
		tpl.FallbackColor = c
	default:
		return fmt.Errorf("%s: unknown template property %q", a.Pos, a.Key)
	}
	return nil
}

func applyDefaultText(dt *DefaultText, cmd *dsl.Command) error {
	if cmd.Block == nil {
		return fmt.Errorf("%s: text requires a block", cmd.Pos)
	}
	for _, st := range cmd.Block.Statements {
		a := st.Assignment
		if a == nil {
			return fmt.Errorf("%s: text block only accepts assignments", st.Pos())
		}
		s, ok := valueString(a.Value)
		if !ok {
			return fmt.Errorf("%s: %s must be a string", a.Pos, a.Key)
		}
		switch a.Key {
		case "heading":
			dt.Heading = s
		case "subheading":
			dt.Subheading = s
		case "footer":
			dt.Footer = s
		default:
			return fmt.Errorf("%s: unknown text key %q", a.Pos, a.Key)
		}
	}
	return nil
}

func buildField(cmd *dsl.Command) (string, FieldSpec, error) {
	if len(cmd.Args) != 1 {
		return "", FieldSpec{}, fmt.Errorf("%s: field requires exactly one name", cmd.Pos)
	}
	name, _ := cmd.Args[0].Text()
	switch name {
	case "heading", "subheading", "footer", "phone":
	default:
		return "", FieldSpec{}, fmt.Errorf("%s: unknown field %q", cmd.Pos, name)
	}

	spec := FieldSpec{X: 50, Y: 50, Color: "#FFFFFF", FontSize: 16, FontWeight: 400, Align: AlignCenter}
	if cmd.Block == nil {
		return name, spec, nil
	}
	for _, st := range cmd.Block.Statements {
		if st.Command != nil && st.Command.Name == "shadow" {
			sh, err := buildShadow(st.Command)
			if err != nil {
				return "", FieldSpec{}, err
			}
			spec.Shadow = sh
			continue
		}
		a := st.Assignment
		if a == nil {
			return "", FieldSpec{}, fmt.Errorf("%s: field %s: unexpected statement", st.Pos(), name)
		}
		if err := applyFieldProperty(&spec, a); err != nil {
			return "", FieldSpec{}, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return name, spec, nil
}

func applyFieldProperty(spec *FieldSpec, a *dsl.Assignment) error {
	switch a.Key {
	case "x", "y":
		v, err := valuePercent(a.Value)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", a.Pos, a.Key, err)
		}
		if a.Key == "x" {
			spec.X = v
		} else {
			spec.Y = v
		}
	case "max-width":
		v, err := valuePercent(a.Value)
		if err != nil {
			return fmt.Errorf("%s: max-width: %w", a.Pos, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s: max-width must be positive", a.Pos)
		}
		spec.MaxWidth = &v
	case "color":
		c, err := valueColor(a.Value)
		if err != nil {
			return fmt.Errorf("%s: color: %w", a.Pos, err)
		}
		spec.Color = c
	case "size":
		v, unit, err := valueNumber(a.Value)
		if err != nil || (unit != "" && unit != "px") || v <= 0 {
			return fmt.Errorf("%s: size must be a positive pixel value", a.Pos)
		}
		spec.FontSize = v
	case "weight":
		v, unit, err := valueNumber(a.Value)
		if err != nil || unit != "" || v < 100 || v > 900 {
			return fmt.Errorf("%s: weight must be between 100 and 900", a.Pos)
		}
		spec.FontWeight = int(v)
	case "align":
		s, _ := valueString(a.Value)
		switch Align(s) {
		case AlignLeft, AlignCenter, AlignRight:
			spec.Align = Align(s)
		default:
			return fmt.Errorf("%s: unknown align %q", a.Pos, s)
		}
	default:
		return fmt.Errorf("%s: unknown field property %q", a.Pos, a.Key)
	}
	return nil
}

// shadow <dx> <dy> <colour>
func buildShadow(cmd *dsl.Command) (*Shadow, error) {
	if len(cmd.Args) != 3 {
		return nil, fmt.Errorf("%s: shadow expects dx dy colour", cmd.Pos)
	}
	dx, unit, err := valueNumber(cmd.Args[0])
	if err != nil || (unit != "" && unit != "px") {
		return nil, fmt.Errorf("%s: shadow dx must be a pixel offset", cmd.Pos)
	}
	dy, unit, err := valueNumber(cmd.Args[1])
	if err != nil || (unit != "" && unit != "px") {
		return nil, fmt.Errorf("%s: shadow dy must be a pixel offset", cmd.Pos)
	}
	c, err := valueColor(cmd.Args[2])
	if err != nil {
		return nil, fmt.Errorf("%s: shadow colour: %w", cmd.Pos, err)
	}
	return &Shadow{DX: dx, DY: dy, Color: c}, nil
}

func valueString(v *dsl.Value) (string, bool) {
	return v.Text()
}

func valueStrings(v *dsl.Value) ([]string, error) {
	if v == nil {
		return nil, fmt.Errorf("missing value")
	}
	if v.List == nil {
		s, ok := valueString(v)
		if !ok {
			return nil, fmt.Errorf("expected a list")
		}
		return []string{s}, nil
	}
	out := make([]string, 0, len(v.List.Items))
	for _, item := range v.List.Items {
		s, ok := valueString(item)
		if !ok {
			return nil, fmt.Errorf("list entries must be scalar")
		}
		out = append(out, s)
	}
	return out, nil
}

func valueColor(v *dsl.Value) (string, error) {
	if v == nil || v.Color == nil {
		return "", fmt.Errorf("expected a hex colour such as #FFFFFF")
	}
	return *v.Color, nil
}

func valueNumber(v *dsl.Value) (float64, string, error) {
	if v == nil || v.Number == nil {
		return 0, "", fmt.Errorf("expected a number")
	}
	raw := *v.Number
	unit := ""
	for _, suffix := range []string{"px", "pt", "%"} {
		if strings.HasSuffix(raw, suffix) {
			unit = suffix
			raw = strings.TrimSuffix(raw, suffix)
			break
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", err
	}
	return f, unit, nil
}

func valuePercent(v *dsl.Value) (float64, error) {
	f, unit, err := valueNumber(v)
	if err != nil {
		return 0, err
	}
	if unit != "" && unit != "%" {
		return 0, fmt.Errorf("expected a percentage, got unit %s", unit)
	}
	if f < 0 || f > 100 {
		return 0, fmt.Errorf("percentage %.2f outside 0-100", f)
	}
	return f, nil
}
