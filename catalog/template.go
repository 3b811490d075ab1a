// Package catalog holds the read-only template model: backgrounds, default
// copy and the placement of the fixed set of text fields.
package catalog

// Category is informational only; nothing branches on it.
type Category string

const (
	Offer    Category = "offer"
	Festival Category = "festival"
	Greeting Category = "greeting"
)

// Align is the intra-box text alignment of a field.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Shadow is a hard drop shadow drawn beneath a field's text.
type Shadow struct {
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Color string  `json:"color"`
}

// FieldSpec places and styles one text field. X and Y are percentages (0-100)
// of the rendered surface, never pixels.
type FieldSpec struct {
	X          float64  `json:"xPercent"`
	Y          float64  `json:"yPercent"`
	Color      string   `json:"color"`
	FontSize   float64  `json:"fontSizePx"`
	FontWeight int      `json:"fontWeight"`
	Align      Align    `json:"textAlign"`
	MaxWidth   *float64 `json:"maxWidthPercent,omitempty"`
	Shadow     *Shadow  `json:"shadow,omitempty"`
}

// MaxWidthPercent returns the wrapping width constraint, if any.
func (f FieldSpec) MaxWidthPercent() (float64, bool) {
	if f.MaxWidth == nil {
		return 0, false
	}
	return *f.MaxWidth, true
}

func (f FieldSpec) clone() FieldSpec {
	out := f
	if f.MaxWidth != nil {
		w := *f.MaxWidth
		out.MaxWidth = &w
	}
	if f.Shadow != nil {
		s := *f.Shadow
		out.Shadow = &s
	}
	return out
}

// Fields is the fixed field set. Phone is optional.
type Fields struct {
	Heading    FieldSpec  `json:"heading"`
	Subheading FieldSpec  `json:"subheading"`
	Footer     FieldSpec  `json:"footer"`
	Phone      *FieldSpec `json:"phone,omitempty"`
}

// PhoneSpec returns the phone placement when the template defines one.
func (f Fields) PhoneSpec() (FieldSpec, bool) {
	if f.Phone == nil {
		return FieldSpec{}, false
	}
	return *f.Phone, true
}

// DefaultText seeds the editable copy when a template is selected.
type DefaultText struct {
	Heading    string `json:"heading"`
	Subheading string `json:"subheading"`
	Footer     string `json:"footer"`
}

// Template is immutable once loaded; the catalog only hands out copies.
type Template struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Category      Category    `json:"category"`
	Thumbnail     string      `json:"thumbnailRef,omitempty"`
	Background    string      `json:"backgroundRef,omitempty"`
	FallbackColor string      `json:"fallbackColor"`
	DefaultText   DefaultText `json:"defaultText"`
	Fields        Fields      `json:"fields"`
}

// Clone returns a deep copy.
func (t Template) Clone() Template {
	out := t
	out.Fields.Heading = t.Fields.Heading.clone()
	out.Fields.Subheading = t.Fields.Subheading.clone()
	out.Fields.Footer = t.Fields.Footer.clone()
	if t.Fields.Phone != nil {
		p := t.Fields.Phone.clone()
		out.Fields.Phone = &p
	}
	return out
}
