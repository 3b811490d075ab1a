package canvasrenderer

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/fonts"
	"github.com/ByLCY/vyapaarpost/layout"
)

func imageRect(w, h int) image.Rectangle { return image.Rect(0, 0, w, h) }

func renderTree(t *testing.T, r *Renderer, id string, edit func(*editor.Session), assets layout.AssetResolver) *layout.Tree {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	tpl, err := c.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	s := editor.NewSession()
	s.SelectTemplate(tpl)
	if edit != nil {
		edit(s)
	}
	tree, err := layout.Render(s.Snapshot(), layout.Options{Typesetter: r, Backgrounds: assets, Fonts: c.Typography()})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return tree
}

func colorNear(c color.Color, want color.NRGBA, tol int) bool {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	d := func(a, b uint8) bool { return abs(int(a)-int(b)) <= tol }
	return d(n.R, want.R) && d(n.G, want.G) && d(n.B, want.B)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestRasterizeSupersamples(t *testing.T) {
	r := NewRenderer(Options{})
	tree := renderTree(t, r, "daily-offer-1", nil, nil)
	out, err := r.Rasterize(context.Background(), tree, 2)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if b := out.Image.Bounds(); b.Dx() != 720 || b.Dy() != 720 {
		t.Fatalf("expected 720x720 bitmap at scale 2, got %v", b)
	}
	if out.Tainted {
		t.Fatalf("no remote assets, raster must not be tainted")
	}
}

// TestRasterizeBackgroundFallbackFill 背景图缺失时，角落像素应为回退色而非透明。
func TestRasterizeBackgroundFallbackFill(t *testing.T) {
	r := NewRenderer(Options{Assets: NewAssets(t.TempDir(), nil)})
	tree := renderTree(t, r, "daily-offer-2", func(s *editor.Session) { s.SetShowWatermark(false) }, r.assets)
	out, err := r.Rasterize(context.Background(), tree, 1)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	px := out.Image.At(2, 2)
	if !colorNear(px, color.NRGBA{R: 0x1e, G: 0x40, B: 0xaf, A: 255}, 2) {
		t.Fatalf("corner pixel %v should be fallback #1e40af", px)
	}
	if _, _, _, a := px.RGBA(); a != 0xffff {
		t.Fatalf("background must be opaque")
	}
}

// TestRasterizeLocalBackground 本地背景图存在时应覆盖回退色。
func TestRasterizeLocalBackground(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "templates"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	green := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 64; x++ {
			green.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "templates", "greeting-morning-1.png"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, green); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	assets := NewAssets(dir, nil)
	r := NewRenderer(Options{Assets: assets})
	tree := renderTree(t, r, "greeting-morning-1", nil, assets)
	if bg := tree.Layers[0].Background; bg.Image == nil {
		t.Fatalf("existing background should be referenced in the tree")
	}
	out, err := r.Rasterize(context.Background(), tree, 1)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if px := out.Image.At(3, 3); !colorNear(px, color.NRGBA{G: 200, A: 255}, 4) {
		t.Fatalf("corner pixel %v should come from the background image", px)
	}
}

// TestRasterizeRemoteFailureTaints 远程背景加载失败：导出仍成功，区域保留回退色并标记 tainted。
func TestRasterizeRemoteFailureTaints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	assets := NewAssets("", srv.Client())
	r := NewRenderer(Options{Assets: assets})
	tree := renderTree(t, r, "festival-diwali-1", nil, assets)
	tree.Layers[0].Background.Image = &layout.ImageBox{Ref: srv.URL + "/bg.png", Width: tree.Width, Height: tree.Height, Fit: layout.FitCover}

	out, err := r.Rasterize(context.Background(), tree, 1)
	if err != nil {
		t.Fatalf("remote failure must not fail capture: %v", err)
	}
	if !out.Tainted || len(out.Missing) != 1 {
		t.Fatalf("expected tainted raster with one missing asset, got %+v", out)
	}
	if px := out.Image.At(1, 1); !colorNear(px, color.NRGBA{R: 0x4a, G: 0x19, B: 0x42, A: 255}, 2) {
		t.Fatalf("failed region should show fallback fill, got %v", px)
	}
}

// TestRasterizeHeadingColor 对应 daily-offer-1 场景：标题改为 #eab308 后，导出位图中应出现该颜色的像素。
func TestRasterizeHeadingColor(t *testing.T) {
	r := NewRenderer(Options{})
	tree := renderTree(t, r, "daily-offer-1", func(s *editor.Session) {
		s.SetField(editor.Heading, "SALE")
		s.SetHeadingColor("#eab308")
	}, nil)
	heading, _ := tree.Layer(layout.LayerHeading)
	heading.Text.Shadow = nil

	out, err := r.Rasterize(context.Background(), tree, 2)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	tb := heading.Text
	want := color.NRGBA{R: 0xea, G: 0xb3, B: 0x08, A: 255}
	found := false
	for y := int(tb.Y * 2); y < int((tb.Y+tb.Height)*2) && !found; y++ {
		for x := int(tb.X * 2); x < int((tb.X+tb.Width)*2); x++ {
			if colorNear(out.Image.At(x, y), want, 6) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("no pixel of heading colour #eab308 inside heading box")
	}
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// TestHindiHeadingUsesCoveringFace 没有字体目录时，默认印地语标题由内置多文种字体绘制，不出现缺字方框。
func TestHindiHeadingUsesCoveringFace(t *testing.T) {
	r := NewRenderer(Options{})
	tree := renderTree(t, r, "daily-offer-1", func(s *editor.Session) { s.SetShowWatermark(false) }, nil)
	heading, _ := tree.Layer(layout.LayerHeading)
	tb := heading.Text
	if tb.Content != "आज का ऑफर!" {
		t.Fatalf("unexpected default heading %q", tb.Content)
	}
	used, missing := r.Coverage(tb.Font, tb.Content)
	if len(missing) > 0 {
		t.Fatalf("runes without a face: %q (stack %v)", string(missing), tb.Font.Stack)
	}
	if !containsName(used, fonts.ScriptFallbackFamily) {
		t.Fatalf("Devanagari should be drawn by %s, got %v", fonts.ScriptFallbackFamily, used)
	}

	tb.Shadow = nil
	out, err := r.Rasterize(context.Background(), tree, 2)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	white := 0
	for y := int(tb.Y * 2); y < int((tb.Y+tb.Height)*2); y++ {
		for x := int(tb.X * 2); x < int((tb.X+tb.Width)*2); x++ {
			if colorNear(out.Image.At(x, y), color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 6) {
				white++
			}
		}
	}
	if white == 0 {
		t.Fatalf("heading glyphs were not drawn")
	}
}

func TestCoverageSplitsScripts(t *testing.T) {
	r := NewRenderer(Options{})
	font := layout.FontResource{Stack: []string{"Poppins", "sans-serif"}, Weight: 700}

	used, missing := r.Coverage(font, "SALE आज का ऑफर!")
	if len(missing) > 0 {
		t.Fatalf("unexpected missing runes %q", string(missing))
	}
	if want := []string{"sans-serif", fonts.ScriptFallbackFamily, "sans-serif"}; strings.Join(used, ",") != strings.Join(want, ",") {
		t.Fatalf("runs = %v, want %v", used, want)
	}
	if !r.Covers(font, "வணக்கம்") {
		t.Fatalf("Tamil should be covered by the embedded face")
	}
	if r.Covers(font, layout.PhoneIcon) {
		t.Fatalf("no bundled face draws the phone emoji")
	}
	// 同一段文字的测量等于各片段之和，且不为零
	lines, err := r.LayoutLines("आज का ऑफर!", 0, font, 36, 43.2, "nowrap")
	if err != nil || len(lines) != 1 || lines[0].Width <= 0 {
		t.Fatalf("LayoutLines = %+v, %v", lines, err)
	}
}

// TestPhonePrefixDroppedWithoutEmojiFace 电话图标无字体可画时只绘制号码。
func TestPhonePrefixDroppedWithoutEmojiFace(t *testing.T) {
	r := NewRenderer(Options{})
	tree := renderTree(t, r, "daily-offer-2", func(s *editor.Session) { s.SetField(editor.PhoneNumber, "98765") }, nil)
	phone, ok := tree.Layer(layout.LayerPhone)
	if !ok {
		t.Fatalf("phone layer missing")
	}
	if phone.Text.Content != "98765" {
		t.Fatalf("phone content = %q", phone.Text.Content)
	}
	if _, missing := r.Coverage(phone.Text.Font, phone.Text.Content); len(missing) > 0 {
		t.Fatalf("phone digits must be covered, missing %q", string(missing))
	}
}

func TestRasterizeRejectsEmptyTree(t *testing.T) {
	r := NewRenderer(Options{})
	if _, err := r.Rasterize(context.Background(), nil, 2); err == nil {
		t.Fatalf("nil tree should fail")
	}
	if _, err := r.Rasterize(context.Background(), &layout.Tree{}, 2); err == nil {
		t.Fatalf("zero-size tree should fail")
	}
}
