package fonts

import (
	_ "embed"
)

// ScriptFallbackFamily names the embedded face that covers Devanagari, Tamil
// and the rupee sign. It is appended to every stack after the families the
// stack itself names.
const ScriptFallbackFamily = "Unifont"

// Unifont-Indic.ttf is GNU Unifont 13.0.05 (OFL-1.1) reduced to Basic Latin,
// Latin-1, Devanagari (+ Vedic extensions), Tamil and common punctuation.
//
//go:embed embedded/Unifont-Indic.ttf
var scriptFallbackTTF []byte

// ScriptFallback returns the embedded multi-script face. It has a single
// weight; bold text falls back to it at regular weight.
func ScriptFallback() []byte {
	return scriptFallbackTTF
}
