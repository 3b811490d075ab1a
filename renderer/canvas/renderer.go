package canvasrenderer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"golang.org/x/image/draw"

	"github.com/ByLCY/vyapaarpost/fonts"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/renderer"
)

// Renderer draws visual trees via github.com/tdewolff/canvas. It is also the
// layout typesetter, so text is measured with the same faces it is drawn with.
type Renderer struct {
	fontDir fonts.Dir
	assets  *Assets
	logger  *slog.Logger

	fontMu  sync.Mutex
	chains  map[string]*fontChain
	entries map[string]*fontEntry
}

var (
	_ renderer.Rasterizer  = (*Renderer)(nil)
	_ layout.Typesetter    = (*Renderer)(nil)
	_ layout.GlyphCoverage = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	FontDir string  // 字体目录，文件名形如 NotoSansDevanagari-Bold.ttf
	Assets  *Assets // 背景图片来源；为空时背景只使用回退色
	Logger  *slog.Logger
}

// NewRenderer creates a canvas-based renderer.
func NewRenderer(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		fontDir: fonts.Dir{Root: opts.FontDir},
		assets:  opts.Assets,
		logger:  logger,
		chains:  map[string]*fontChain{},
		entries: map[string]*fontEntry{},
	}
}

// Rasterize 实现 renderer.Rasterizer。画布单位为逻辑像素，scale 即每像素的设备像素数。
func (r *Renderer) Rasterize(ctx context.Context, tree *layout.Tree, scale float64) (out *renderer.Raster, err error) {
	if tree == nil {
		return nil, fmt.Errorf("视觉树为空")
	}
	if tree.Width <= 0 || tree.Height <= 0 {
		return nil, fmt.Errorf("画布尺寸无效: %gx%g", tree.Width, tree.Height)
	}
	if scale <= 0 {
		scale = 1
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("光栅化失败: %v", p)
		}
	}()

	c := canvas.New(tree.Width, tree.Height)
	cctx := canvas.NewContext(c)
	cctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

	out = &renderer.Raster{}
	for _, layer := range tree.Layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch {
		case layer.Background != nil:
			r.drawBackground(ctx, cctx, *layer.Background, tree, scale, out)
		case layer.Image != nil:
			r.drawImage(ctx, cctx, *layer.Image, scale, out)
		case layer.Text != nil:
			if err := r.drawTextBox(cctx, *layer.Text); err != nil {
				return nil, fmt.Errorf("绘制 %s 失败: %w", layer.Kind, err)
			}
		}
	}
	out.Image = rasterizer.Draw(c, canvas.DPMM(scale), canvas.DefaultColorSpace)
	return out, nil
}

// LayoutLines 实现 layout.Typesetter 接口，使用贪心换行算法。
// 约定：width/fontSize/lineHeight 均为逻辑像素；创建字体面时换算为 pt。
func (r *Renderer) LayoutLines(content string, width float64, font layout.FontResource, fontSize, lineHeight float64, wrap string) ([]layout.TextLine, error) {
	fs, err := r.faceSet(font, fontSize, layout.Color{R: 30, G: 30, B: 30, A: 1})
	if err != nil {
		return nil, err
	}
	if _, missing := fs.chain.split(content); len(missing) > 0 {
		r.logger.Warn("no font covers text", "stack", font.Stack, "runes", string(missing))
	}
	lines := wrapLines(content, width, fs, wrap)
	for i := range lines {
		lines[i].Height = lineHeight
	}
	return lines, nil
}

// drawBackground 先铺回退色，再尽力叠加背景图。
func (r *Renderer) drawBackground(ctx context.Context, cctx *canvas.Context, bg layout.Background, tree *layout.Tree, scale float64, out *renderer.Raster) {
	cctx.SetFillColor(colorFromLayout(bg.Fill))
	cctx.SetStrokeColor(color.Transparent)
	cctx.DrawPath(0, 0, canvas.Rectangle(tree.Width, tree.Height))
	if bg.Image != nil {
		r.drawImage(ctx, cctx, *bg.Image, scale, out)
	}
}

func (r *Renderer) drawImage(ctx context.Context, cctx *canvas.Context, box layout.ImageBox, scale float64, out *renderer.Raster) {
	if box.Width <= 0 || box.Height <= 0 {
		return
	}
	var (
		src image.Image
		err error
	)
	if len(box.Data) > 0 {
		src, _, err = image.Decode(bytes.NewReader(box.Data))
	} else {
		src, err = r.assets.Load(ctx, box.Ref)
	}
	if err != nil {
		// 远程资源失败时保留回退色并标记 tainted，不中断导出。
		if IsRemote(box.Ref) {
			out.Tainted = true
		}
		out.Missing = append(out.Missing, box.Ref)
		r.logger.Warn("image skipped", "ref", box.Ref, "error", err)
		return
	}

	pw := max(1, int(math.Round(box.Width*scale)))
	ph := max(1, int(math.Round(box.Height*scale)))
	img := coverImage(src, pw, ph)
	cctx.DrawImage(box.X, box.Y, img, canvas.DPMM(float64(pw)/box.Width))
}

func (r *Renderer) drawTextBox(cctx *canvas.Context, tb layout.TextBox) error {
	if len(tb.Lines) == 0 {
		return nil
	}
	fs, err := r.faceSet(tb.Font, tb.FontSize, tb.Color)
	if err != nil {
		return err
	}
	var shadow *faceSet
	if tb.Shadow != nil {
		if shadow, err = r.faceSet(tb.Font, tb.FontSize, tb.Shadow.Color); err != nil {
			return err
		}
	}

	// 基线：行顶 + 半行距 + 上升部，与浏览器行盒的垂直居中一致。
	metrics := fs.primary().Metrics()
	glyphHeight := metrics.Ascent + math.Abs(metrics.Descent)
	halfLeading := (tb.LineHeight - glyphHeight) / 2

	for i, line := range tb.Lines {
		if line.Content == "" {
			continue
		}
		x := tb.X + tb.LineOffset(i)
		baseline := tb.Y + float64(i)*tb.LineHeight + halfLeading + metrics.Ascent
		if shadow != nil {
			shadow.draw(cctx, x+tb.Shadow.DX, baseline+tb.Shadow.DY, line.Content)
		}
		fs.draw(cctx, x, baseline, line.Content)
	}
	return nil
}

// coverImage 等比缩放并居中裁剪 src，使其铺满 w×h。
func coverImage(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	crop := coverRect(src.Bounds(), float64(w)/float64(h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

func coverRect(b image.Rectangle, aspect float64) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || aspect <= 0 {
		return b
	}
	if float64(w)/float64(h) > aspect {
		cw := max(1, int(math.Round(float64(h)*aspect)))
		x0 := b.Min.X + (w-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := max(1, int(math.Round(float64(w)/aspect)))
	y0 := b.Min.Y + (h-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}

func styleForWeight(weight int) canvas.FontStyle {
	switch {
	case weight >= 900:
		return canvas.FontBlack
	case weight >= 800:
		return canvas.FontExtraBold
	case weight >= 700:
		return canvas.FontBold
	case weight >= 600:
		return canvas.FontSemiBold
	case weight >= 500:
		return canvas.FontMedium
	case weight >= 400:
		return canvas.FontRegular
	default:
		return canvas.FontLight
	}
}

func colorFromLayout(c layout.Color) color.Color {
	a := math.Min(math.Max(c.A, 0), 1)
	return color.NRGBA{R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: uint8(math.Round(a * 255))}
}

// toPt 将逻辑像素（画布中按 mm 计）转换为字体系统使用的 pt。
func toPt(px float64) float64 { return px * layout.MmToPt }

type textMeasurer interface {
	TextWidth(string) float64
}

// wrapLines 按宽度贪心折行。
//   - nowrap：仅按显式换行划分；
//   - 其他（break-word）：优先在空白处分割，单词超过限制时在词内拆分。
//
// 行首空白会被丢弃，行尾空白不计入宽度。
func wrapLines(content string, width float64, face textMeasurer, wrap string) []layout.TextLine {
	paragraphs := strings.Split(strings.ReplaceAll(content, "\r", ""), "\n")
	if wrap == "nowrap" {
		lines := make([]layout.TextLine, 0, len(paragraphs))
		for _, p := range paragraphs {
			lines = append(lines, layout.TextLine{Content: p, Width: face.TextWidth(p)})
		}
		return lines
	}

	lb := &lineBreaker{face: face, limit: width}
	if lb.limit <= 0 {
		lb.limit = math.Inf(1)
	}
	for i, p := range paragraphs {
		if i > 0 {
			lb.flush(true)
		}
		lb.words(p)
	}
	lb.flush(true)
	return lb.lines
}

// lineBreaker 累积当前行，width 含尚未裁掉的行尾空白。
type lineBreaker struct {
	face  textMeasurer
	limit float64

	cur   strings.Builder
	width float64
	lines []layout.TextLine
}

func (lb *lineBreaker) words(p string) {
	for p != "" {
		n, blank := runLength(p)
		run := p[:n]
		p = p[n:]
		w := lb.face.TextWidth(run)
		switch {
		case blank:
			// 空白只在行中间保留
			if lb.cur.Len() > 0 {
				lb.write(run, w)
			}
		case w <= lb.limit:
			lb.place(run, w)
		default:
			if lb.width > 0 {
				lb.flush(false)
			}
			for _, piece := range lb.split(run) {
				lb.place(piece, lb.face.TextWidth(piece))
			}
		}
	}
}

// place 追加片段，放不下时先换行。
func (lb *lineBreaker) place(s string, w float64) {
	if lb.width > 0 && lb.width+w > lb.limit {
		lb.flush(false)
	}
	lb.write(s, w)
}

func (lb *lineBreaker) write(s string, w float64) {
	lb.cur.WriteString(s)
	lb.width += w
}

// flush 结束当前行；force 为 false 时丢弃空行。
func (lb *lineBreaker) flush(force bool) {
	line := strings.TrimRightFunc(lb.cur.String(), unicode.IsSpace)
	lb.cur.Reset()
	lb.width = 0
	if line == "" && !force {
		return
	}
	lb.lines = append(lb.lines, layout.TextLine{Content: line, Width: lb.face.TextWidth(line)})
}

// split 将超宽单词切成不超过 limit 的片段，每段至少一个字符。
func (lb *lineBreaker) split(word string) []string {
	var parts []string
	start := 0
	for i, r := range word {
		if i > start && lb.face.TextWidth(word[start:i+utf8.RuneLen(r)]) > lb.limit {
			parts = append(parts, word[start:i])
			start = i
		}
	}
	return append(parts, word[start:])
}

// runLength 返回 s 开头同类（空白或非空白）字符的字节长度。
func runLength(s string) (int, bool) {
	first, n := utf8.DecodeRuneInString(s)
	blank := unicode.IsSpace(first)
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if unicode.IsSpace(r) != blank {
			break
		}
		n += size
	}
	return n, blank
}
