package layout

import (
	"math"
	"testing"
)

// TestPxPtRoundTrip 验证 px↔pt 换算的往返精度（允许极小的浮点误差）。
func TestPxPtRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 10, 14.4, 36, 42, 96, 1000}
	for _, px := range samples {
		pt := Px(px).To(UnitPT, 0)
		back := Length{Value: pt, Unit: UnitPT}.To(UnitPX, 0)
		if diff := math.Abs(back - px); diff > 1e-9 {
			t.Fatalf("px→pt→px 往返误差过大: in=%gpx pt=%g back=%g diff=%g", px, pt, back, diff)
		}
	}
	for _, pt := range samples {
		mm := pt * PtToMm
		if diff := math.Abs(mm*MmToPt - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt diff=%g", pt, diff)
		}
	}
}

// TestParseRawLengthStr 覆盖常见单位的解析与百分比换算。
func TestParseRawLengthStr(t *testing.T) {
	cases := []struct {
		in   string
		want Length
	}{
		{"36", Length{36, UnitPX}},
		{"36px", Length{36, UnitPX}},
		{"12pt", Length{12, UnitPT}},
		{" 50% ", Length{50, UnitPercent}},
		{"abc", Length{0, UnitNone}},
		{"", Length{0, UnitNone}},
	}
	for _, c := range cases {
		if got := ParseRawLengthStr(c.in); got != c.want {
			t.Fatalf("ParseRawLengthStr(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
	if got := Percent(90).To(UnitPX, 360); math.Abs(got-324) > 1e-9 {
		t.Fatalf("90%% of 360px 期望 324，实际 %g", got)
	}
}

// TestLineHeightResolve 验证行高解析：倍数与绝对值两种语义。
func TestLineHeightResolve(t *testing.T) {
	size := Px(20)
	if got := (LineHeightSpec{Kind: LineHeightFactor, Factor: 1.5}).Resolve(size, UnitPX); math.Abs(got-30) > 1e-9 {
		t.Fatalf("1.5x 行高错误: got=%g", got)
	}
	if got := (LineHeightSpec{Kind: LineHeightAbsolute, Len: Length{18, UnitPT}}).Resolve(size, UnitPX); math.Abs(got-24) > 1e-9 {
		t.Fatalf("18pt 行高应为 24px: got=%g", got)
	}
	if got := (LineHeightSpec{Kind: LineHeightFactor}).Resolve(size, UnitPX); math.Abs(got-24) > 1e-9 {
		t.Fatalf("未指定倍数时应回退到 1.2x: got=%g", got)
	}
}

func TestParseLineHeight(t *testing.T) {
	cases := []struct {
		in   string
		want LineHeightSpec
	}{
		{"", DefaultLineHeight},
		{"1.5", LineHeightSpec{Kind: LineHeightFactor, Factor: 1.5}},
		{"20px", LineHeightSpec{Kind: LineHeightAbsolute, Len: Length{20, UnitPX}}},
		{"15pt", LineHeightSpec{Kind: LineHeightAbsolute, Len: Length{15, UnitPT}}},
	}
	for _, c := range cases {
		got, err := ParseLineHeight(c.in)
		if err != nil || got != c.want {
			t.Fatalf("ParseLineHeight(%q) = %+v, %v; want %+v", c.in, got, err, c.want)
		}
	}
	for _, bad := range []string{"0", "-1", "50%", "tall"} {
		if _, err := ParseLineHeight(bad); err == nil {
			t.Fatalf("ParseLineHeight(%q) should fail", bad)
		}
	}
}
