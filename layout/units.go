package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// This file defines unit-safe types and helpers for length and line-height.
// Surface lengths are CSS pixels. The canvas backend measures in millimetres,
// so one surface pixel is drawn as one canvas millimetre and font sizes handed
// to the backend go through MmToPt.

// Unit represents the original unit of a length value.
type Unit int

const (
	UnitNone    Unit = iota // unit-less numbers like factors
	UnitPX                  // CSS pixels
	UnitPT                  // typographic points (1px = 0.75pt)
	UnitPercent             // relative to a reference length
)

// Conversion constants between pt and canvas millimetres, and between CSS px and pt.
const (
	PtToMm = 0.352777
	MmToPt = 1.0 / PtToMm
	PxToPt = 0.75
	PtToPx = 1.0 / PxToPt
)

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// To converts this length to target unit. Percentages resolve against ref
// (given in the target unit); absolute units ignore ref.
func (l Length) To(target Unit, ref float64) float64 {
	switch l.Unit {
	case UnitPercent:
		return ref * l.Value / 100
	case UnitPX:
		if target == UnitPT {
			return l.Value * PxToPt
		}
		return l.Value
	case UnitPT:
		if target == UnitPX || target == UnitNone {
			return l.Value * PtToPx
		}
		return l.Value
	}
	return l.Value
}

// Px is shorthand for a pixel length.
func Px(v float64) Length { return Length{Value: v, Unit: UnitPX} }

// Percent is shorthand for a percentage length.
func Percent(v float64) Length { return Length{Value: v, Unit: UnitPercent} }

// ParseRawLengthStr parses a length string such as "36", "36px", "12pt" or
// "50%", preserving its unit. Bare numbers are pixels.
func ParseRawLengthStr(value string) Length {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{Value: 0, Unit: UnitNone}
	}
	unit := UnitPX
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"px", UnitPX}, {"pt", UnitPT}, {"%", UnitPercent}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{Value: 0, Unit: UnitNone}
	}
	return Length{Value: f, Unit: unit}
}

// LineHeightKind distinguishes factor-based vs absolute line-height specification.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// DefaultLineHeight matches the browser's "normal" line height closely enough
// for preview/export parity.
var DefaultLineHeight = LineHeightSpec{Kind: LineHeightFactor, Factor: 1.2}

// LineHeightSpec is either a factor of the font size (1.2x) or an absolute length.
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// Resolve computes the absolute line height in target unit for fontSize.
func (s LineHeightSpec) Resolve(fontSize Length, target Unit) float64 {
	size := fontSize.To(target, 0)
	switch s.Kind {
	case LineHeightFactor:
		if s.Factor > 0 {
			return size * s.Factor
		}
	case LineHeightAbsolute:
		if v := s.Len.To(target, size); v > 0 {
			return v
		}
	}
	return size * DefaultLineHeight.Factor
}

// ParseLineHeight parses a line-height setting: a bare number is a factor of
// the font size ("1.2"), a length with a unit is absolute ("20px", "15pt").
func ParseLineHeight(value string) (LineHeightSpec, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return DefaultLineHeight, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f <= 0 {
			return LineHeightSpec{}, fmt.Errorf("line height factor must be positive, got %q", value)
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, nil
	}
	l := ParseRawLengthStr(v)
	if l.Unit == UnitNone || l.Unit == UnitPercent || l.Value <= 0 {
		return LineHeightSpec{}, fmt.Errorf("invalid line height %q", value)
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, nil
}
