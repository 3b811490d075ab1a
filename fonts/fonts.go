// Package fonts resolves font family names to font file bytes: files in a
// font directory first, then the embedded Go fonts for generic families.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var weightNames = map[int]string{
	100: "Thin",
	200: "ExtraLight",
	300: "Light",
	400: "Regular",
	500: "Medium",
	600: "SemiBold",
	700: "Bold",
	800: "ExtraBold",
	900: "Black",
}

// NormalizeWeight clamps and rounds a CSS font weight to the nearest hundred.
func NormalizeWeight(weight int) int {
	if weight <= 0 {
		return 400
	}
	w := (weight + 50) / 100 * 100
	return min(max(w, 100), 900)
}

// WeightName returns the conventional file-name suffix for a weight ("Bold").
func WeightName(weight int) string {
	return weightNames[NormalizeWeight(weight)]
}

// IsGeneric reports whether family is a CSS generic family served by the
// embedded Go fonts.
func IsGeneric(family string) bool {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "sans-serif", "serif", "system-ui", "monospace":
		return true
	}
	return false
}

// Builtin returns embedded font bytes for a generic family.
func Builtin(family string, weight int) ([]byte, bool) {
	w := NormalizeWeight(weight)
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "monospace":
		if w >= 600 {
			return gomonobold.TTF, true
		}
		return gomono.TTF, true
	case "sans-serif", "serif", "system-ui":
		return Fallback(w), true
	}
	return nil, false
}

// Fallback is used when no family of a stack can be loaded.
func Fallback(weight int) []byte {
	switch w := NormalizeWeight(weight); {
	case w >= 600:
		return gobold.TTF
	case w == 500:
		return gomedium.TTF
	default:
		return goregular.TTF
	}
}

// Dir finds font files named after the family with spaces removed, e.g.
// "Noto Sans Devanagari" at weight 700 -> NotoSansDevanagari-Bold.ttf. A
// missing weight falls back to the Regular file, then to an unsuffixed file.
type Dir struct {
	Root string
}

var extensions = []string{".ttf", ".otf"}

// Find returns the path of the best file for family/weight.
func (d Dir) Find(family string, weight int) (string, bool) {
	if d.Root == "" || IsGeneric(family) {
		return "", false
	}
	base := strings.ReplaceAll(strings.TrimSpace(family), " ", "")
	if base == "" {
		return "", false
	}
	candidates := []string{base + "-" + WeightName(weight), base + "-Regular", base}
	for _, name := range candidates {
		for _, ext := range extensions {
			path := filepath.Join(d.Root, name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

// Load reads and validates the best file for family/weight.
func (d Dir) Load(family string, weight int) ([]byte, error) {
	path, ok := d.Find(family, weight)
	if !ok {
		return nil, fmt.Errorf("font family %q not found in %s", family, d.Root)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	if _, err := opentype.Parse(data); err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return data, nil
}

// Families lists the font families available in the directory, derived from
// file names.
func (d Dir) Families() ([]string, error) {
	if d.Root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if i := strings.IndexByte(name, '-'); i > 0 {
			name = name[:i]
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}
