package canvasrenderer

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"unicode"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/vyapaarpost/fonts"
	"github.com/ByLCY/vyapaarpost/layout"
)

// fallbackName 是字体栈全部加载失败时使用的内置 Go 字体。
const fallbackName = "fallback"

type fontEntry struct {
	name   string
	family *canvas.FontFamily
	font   *canvas.Font // 查询字形覆盖
}

func (e *fontEntry) covers(r rune) bool {
	return e.font.GlyphIndex(r) != 0
}

// fontChain 是一个字体栈实际可用的字体，按优先级排列，末尾总是内置多文种字体。
// 与浏览器一致：每个字符交给第一个包含其字形的字体。
type fontChain struct {
	entries []*fontEntry
	style   canvas.FontStyle
}

type textRun struct {
	entry int
	text  string
}

// split 按字体覆盖把 s 切成连续片段。组合记号、零宽连接符以及当前字体能画的空白
// 跟随前一个片段，避免把一个音节拆到两种字体里。missing 为没有任何字体覆盖的字符。
func (c *fontChain) split(s string) (runs []textRun, missing []rune) {
	cur, start := -1, 0
	for i, r := range s {
		var idx int
		switch {
		case cur >= 0 && (joinsPrevious(r) || unicode.IsSpace(r) && c.entries[cur].covers(r)):
			idx = cur
		default:
			if idx = c.pick(r); idx < 0 {
				if !joinsPrevious(r) && !unicode.IsControl(r) {
					missing = append(missing, r)
				}
				idx = max(cur, 0)
			}
		}
		if idx != cur {
			if cur >= 0 && i > start {
				runs = append(runs, textRun{entry: cur, text: s[start:i]})
			}
			cur, start = idx, i
		}
	}
	if cur >= 0 && start < len(s) {
		runs = append(runs, textRun{entry: cur, text: s[start:]})
	}
	return runs, missing
}

func (c *fontChain) pick(r rune) int {
	for i, e := range c.entries {
		if e.covers(r) {
			return i
		}
	}
	return -1
}

func joinsPrevious(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me, unicode.Variation_Selector) ||
		r == '\u200c' || r == '\u200d'
}

// faceSet 是字体链在某个字号与颜色下的字体面，宽度按片段累加。
type faceSet struct {
	chain *fontChain
	faces []*canvas.FontFace
}

func (c *fontChain) faces(sizePt float64, col color.Color) *faceSet {
	fs := &faceSet{chain: c, faces: make([]*canvas.FontFace, len(c.entries))}
	for i, e := range c.entries {
		fs.faces[i] = e.family.Face(sizePt, col, c.style, canvas.FontNormal)
	}
	return fs
}

// TextWidth 实现 textMeasurer。
func (fs *faceSet) TextWidth(s string) float64 {
	runs, _ := fs.chain.split(s)
	w := 0.0
	for _, run := range runs {
		w += fs.faces[run.entry].TextWidth(run.text)
	}
	return w
}

// primary 提供行盒度量，保证同一文本块内各行基线一致。
func (fs *faceSet) primary() *canvas.FontFace {
	return fs.faces[0]
}

func (fs *faceSet) draw(cctx *canvas.Context, x, baseline float64, s string) {
	runs, _ := fs.chain.split(s)
	for _, run := range runs {
		face := fs.faces[run.entry]
		cctx.DrawText(x, baseline, canvas.NewTextLine(face, run.text, canvas.Left))
		x += face.TextWidth(run.text)
	}
}

// fontChain 自左向右加载字体栈；一个都加载不了时用内置 Go 字体，最后追加内置多文种字体。
func (r *Renderer) fontChain(font layout.FontResource) (*fontChain, error) {
	weight := fonts.NormalizeWeight(font.Weight)
	key := strings.Join(font.Stack, ",") + "|" + strconv.Itoa(weight)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if c, ok := r.chains[key]; ok {
		return c, nil
	}

	c := &fontChain{style: styleForWeight(weight)}
	for _, name := range font.Stack {
		data, err := r.fontBytes(name, weight)
		if err != nil {
			continue
		}
		e, err := r.loadEntry(name, weight, data, c.style)
		if err != nil {
			r.logger.Warn("font rejected", "family", name, "weight", weight, "error", err)
			continue
		}
		c.entries = append(c.entries, e)
	}
	if len(c.entries) == 0 {
		e, err := r.loadEntry(fallbackName, weight, fonts.Fallback(weight), c.style)
		if err != nil {
			return nil, fmt.Errorf("加载兜底字体失败: %w", err)
		}
		c.entries = append(c.entries, e)
	}
	script, err := r.loadEntry(fonts.ScriptFallbackFamily, 400, fonts.ScriptFallback(), canvas.FontRegular)
	if err != nil {
		return nil, fmt.Errorf("加载多文种字体失败: %w", err)
	}
	c.entries = append(c.entries, script)

	r.chains[key] = c
	return c, nil
}

// loadEntry 解析字体文件，同名同字重只解析一次。调用方持有 fontMu。
func (r *Renderer) loadEntry(name string, weight int, data []byte, style canvas.FontStyle) (*fontEntry, error) {
	key := name + "|" + strconv.Itoa(weight)
	if e, ok := r.entries[key]; ok {
		return e, nil
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, err
	}
	e := &fontEntry{name: name, family: family, font: family.Face(12, style).Font}
	r.entries[key] = e
	return e, nil
}

func (r *Renderer) fontBytes(name string, weight int) ([]byte, error) {
	if data, ok := fonts.Builtin(name, weight); ok {
		return data, nil
	}
	return r.fontDir.Load(name, weight)
}

func (r *Renderer) faceSet(font layout.FontResource, sizePx float64, col layout.Color) (*faceSet, error) {
	c, err := r.fontChain(font)
	if err != nil {
		return nil, err
	}
	return c.faces(toPt(sizePx), colorFromLayout(col)), nil
}

// ResolvedFamily 返回字体栈在当前环境下的首选字体名，"fallback" 表示内置兜底字体。
func (r *Renderer) ResolvedFamily(font layout.FontResource) string {
	c, err := r.fontChain(font)
	if err != nil {
		return ""
	}
	return c.entries[0].name
}

// Coverage 返回绘制 text 时依次使用的字体名，以及没有任何字体覆盖的字符。
func (r *Renderer) Coverage(font layout.FontResource, text string) ([]string, []rune) {
	c, err := r.fontChain(font)
	if err != nil {
		return nil, []rune(text)
	}
	runs, missing := c.split(text)
	var used []string
	for _, run := range runs {
		name := c.entries[run.entry].name
		if len(used) == 0 || used[len(used)-1] != name {
			used = append(used, name)
		}
	}
	return used, missing
}

// Covers 实现 layout.GlyphCoverage。
func (r *Renderer) Covers(font layout.FontResource, text string) bool {
	_, missing := r.Coverage(font, text)
	return len(missing) == 0
}
