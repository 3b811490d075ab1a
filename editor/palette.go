package editor

// Swatch is one entry of the colour picker.
type Swatch struct {
	Name string `json:"name"`
	Hex  string `json:"value"`
}

var palette = []Swatch{
	{"White", "#FFFFFF"},
	{"Black", "#000000"},
	{"Orange", "#f97316"},
	{"Red", "#ef4444"},
	{"Blue", "#3b82f6"},
	{"Green", "#22c55e"},
	{"Yellow", "#eab308"},
	{"Purple", "#a855f7"},
	{"Pink", "#ec4899"},
	{"Gold", "#d4af37"},
}

// Palette returns the suggested text colours. Colour setters are not
// restricted to it.
func Palette() []Swatch {
	return append([]Swatch(nil), palette...)
}
