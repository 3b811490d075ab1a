// Package editor owns the composition state of one editing session: the
// selected template, the editable copy, style overrides and the user image.
package editor

import (
	"errors"
	"fmt"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/typography"
)

// FieldName names an editable text value.
type FieldName string

const (
	Heading     FieldName = "heading"
	Subheading  FieldName = "subheading"
	ShopName    FieldName = "shopName"
	PhoneNumber FieldName = "phoneNumber"
)

// ErrUnknownField is returned by SetField for a name outside the four
// editable fields. The state is left unchanged.
var ErrUnknownField = errors.New("unknown field")

// DefaultColor seeds both colour overrides of a pristine session.
const DefaultColor = "#FFFFFF"

// UserImage is a normalized (bounded, re-encoded) photo. Data is shared
// read-only between snapshots; replace the image, never mutate it.
type UserImage struct {
	Data   []byte `json:"-"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// State is everything the layout renderer needs. Template and UserImage are
// nil when absent.
type State struct {
	Template        *catalog.Template   `json:"template,omitempty"`
	Heading         string              `json:"heading"`
	Subheading      string              `json:"subheading"`
	ShopName        string              `json:"shopName"`
	PhoneNumber     string              `json:"phoneNumber"`
	Font            typography.Selector `json:"font"`
	HeadingColor    string              `json:"headingColor"`
	SubheadingColor string              `json:"subheadingColor"`
	ShowWatermark   bool                `json:"showWatermark"`
	UserImage       *UserImage          `json:"userImage,omitempty"`
}

// Pristine returns the empty state a session starts from.
func Pristine() State {
	return State{
		Font:            typography.DefaultSelector,
		HeadingColor:    DefaultColor,
		SubheadingColor: DefaultColor,
		ShowWatermark:   true,
	}
}

// HasTemplate reports whether a template has been selected.
func (s State) HasTemplate() bool { return s.Template != nil }

// Field returns the current value of a named field.
func (s State) Field(name FieldName) (string, bool) {
	switch name {
	case Heading:
		return s.Heading, true
	case Subheading:
		return s.Subheading, true
	case ShopName:
		return s.ShopName, true
	case PhoneNumber:
		return s.PhoneNumber, true
	}
	return "", false
}

func (s State) clone() State {
	out := s
	if s.Template != nil {
		t := s.Template.Clone()
		out.Template = &t
	}
	return out
}

// Session is the single writer of a State. It is not safe for concurrent
// use; callers serialise access (the HTTP surface holds a per-session lock).
type Session struct {
	state State
}

// NewSession starts from the pristine state.
func NewSession() *Session {
	return &Session{state: Pristine()}
}

// SelectTemplate replaces the composition: text seeded from the template
// defaults, colours from its heading/subheading specs, image cleared and the
// watermark shown again. The font selector is kept.
func (s *Session) SelectTemplate(t catalog.Template) {
	tpl := t.Clone()
	s.state = State{
		Template:        &tpl,
		Heading:         tpl.DefaultText.Heading,
		Subheading:      tpl.DefaultText.Subheading,
		ShopName:        tpl.DefaultText.Footer,
		Font:            s.state.Font,
		HeadingColor:    tpl.Fields.Heading.Color,
		SubheadingColor: tpl.Fields.Subheading.Color,
		ShowWatermark:   true,
	}
}

// SetField overwrites a text value. It is total over the FieldName constants
// and any value, including empty and mixed-script text: for those names it
// never fails. A name built from untrusted input (a URL segment, a data file
// key) that matches none of them yields ErrUnknownField.
func (s *Session) SetField(name FieldName, value string) error {
	switch name {
	case Heading:
		s.state.Heading = value
	case Subheading:
		s.state.Subheading = value
	case ShopName:
		s.state.ShopName = value
	case PhoneNumber:
		s.state.PhoneNumber = value
	default:
		return fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	return nil
}

// SetFont stores the selector as given; unknown selectors resolve to the
// default stack at render time.
func (s *Session) SetFont(selector typography.Selector) {
	s.state.Font = selector
}

func (s *Session) SetHeadingColor(color string) {
	s.state.HeadingColor = color
}

func (s *Session) SetSubheadingColor(color string) {
	s.state.SubheadingColor = color
}

func (s *Session) SetShowWatermark(show bool) {
	s.state.ShowWatermark = show
}

// SetUserImage replaces the user image; nil clears it.
func (s *Session) SetUserImage(img *UserImage) {
	s.state.UserImage = img
}

// Reset returns to the pristine state.
func (s *Session) Reset() {
	s.state = Pristine()
}

// Snapshot returns a copy that later edits do not affect.
func (s *Session) Snapshot() State {
	return s.state.clone()
}
