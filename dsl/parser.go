// Package dsl parses the template catalog language:
//
//	catalog Default v1 {
//	  fonts { font hindi "हिंदी" { stack: ["Noto Sans Devanagari", "sans-serif"] } }
//	  template daily-offer-1 offer {
//	    fallback: #ff7e5f
//	    field heading { x: 50%  y: 25%  size: 36px  shadow 2 2 #0000004D }
//	  }
//	}
//
// The parser only builds the AST; catalog.FromDocument validates it.
package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	catalogLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		// 8 and 6 digit forms must be tried before 3, otherwise "#FFD700" lexes as "#FFD" "700".
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:px|pt|%)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[][,:;{}]`},
	})

	documentParser = participle.MustBuild[Document](
		participle.Lexer(catalogLexer),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
		participle.UseLookahead(4),
	)
)

// Document is the root AST node of a catalog file.
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'catalog' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section is a top-level catalog section (fonts/template).
type Section struct {
	Fonts    *FontsSection    `parser:"  @@"`
	Template *TemplateSection `parser:"| @@"`
}

// Kind returns the section keyword.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return ""
	case s.Fonts != nil:
		return "fonts"
	case s.Template != nil:
		return "template"
	default:
		return "unknown"
	}
}

// FontsSection groups typography options.
type FontsSection struct {
	Block *Block `parser:"'fonts' @@"`
}

// TemplateSection describes one post template: `template <id> <category> { ... }`.
type TemplateSection struct {
	Pos      lexer.Position `parser:"" json:"-"`
	ID       string         `parser:"'template' @Ident"`
	Category string         `parser:"@Ident"`
	Block    *Block         `parser:"@@"`
}

// Block is a brace-delimited list of statements separated by newlines or ';'.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement is either a `key: value` property or a nested declaration.
type Statement struct {
	Assignment *Assignment `parser:"  @@"`
	Command    *Command    `parser:"| @@"`
}

// Pos returns the position of whichever form the statement holds.
func (s *Statement) Pos() lexer.Position {
	switch {
	case s == nil:
		return lexer.Position{}
	case s.Assignment != nil:
		return s.Assignment.Pos
	case s.Command != nil:
		return s.Command.Pos
	}
	return lexer.Position{}
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':' Newline*"`
	Value *Value         `parser:"@@"`
}

// Command is a named declaration with positional arguments and an optional
// block, such as `field heading { ... }` or `shadow 2 2 #0000004D`.
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Value       `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// Value is a scalar or a list. Bare identifiers (`center`) land in Word.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	List   *List          `parser:"| @@"`
	Word   *string        `parser:"| @Ident"`
}

// Text returns the scalar text of v. Lists report false.
func (v *Value) Text() (string, bool) {
	switch {
	case v == nil:
		return "", false
	case v.String != nil:
		return string(*v.String), true
	case v.Number != nil:
		return *v.Number, true
	case v.Color != nil:
		return *v.Color, true
	case v.Word != nil:
		return *v.Word, true
	}
	return "", false
}

// List captures `[a, b]`; entries may also be separated by newlines.
type List struct {
	Items []*Value `parser:"'[' Newline* ( @@ ( ( ',' | Newline ) Newline* @@ )* )? Newline* ']'"`
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses catalog content from an io.Reader. filename is used in error positions.
func Parse(filename string, r io.Reader) (*Document, error) {
	return documentParser.Parse(filename, r)
}

// ParseString parses catalog content from a string.
func ParseString(input string) (*Document, error) {
	return documentParser.ParseString("", input)
}
