package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/typography"
)

// ErrNoTemplate 表示会话尚未选择模板，无法渲染。
var ErrNoTemplate = errors.New("尚未选择模板")

// 水印固定文案与样式。
const (
	WatermarkText   = "Created by VyapaarPost"
	WatermarkSize   = 10
	WatermarkWeight = 500
	WatermarkInset  = 8
	WatermarkAlpha  = 0.6

	// PhonePrefix 加在电话号码前；没有字体能绘制 PhoneIcon 时省略。
	PhonePrefix = PhoneIcon + " "
	PhoneIcon   = "📞"

	// UserImageRef 是用户图片在视觉树中的引用名。
	UserImageRef = "user:image"
)

var watermarkStack = []string{"sans-serif"}

// Render 将会话状态渲染为视觉树。它是纯函数：相同状态与选项得到相同的树。
func Render(st editor.State, opts Options) (*Tree, error) {
	if st.Template == nil {
		return nil, ErrNoTemplate
	}
	opts = opts.withDefaults()
	tpl := st.Template
	r := &treeBuilder{opts: opts}

	tree := &Tree{Template: tpl.ID, Width: opts.Width, Height: opts.Height}
	tree.Layers = append(tree.Layers, Layer{Kind: LayerBackground, Background: r.background(tpl)})

	if st.UserImage != nil && len(st.UserImage.Data) > 0 {
		tree.Layers = append(tree.Layers, Layer{Kind: LayerUserImage, Image: &ImageBox{
			Ref:    UserImageRef,
			Width:  opts.Width,
			Height: opts.Height,
			Fit:    FitCover,
			Data:   st.UserImage.Data,
		}})
	}

	stack := opts.Fonts.Resolve(st.Font)
	fields := []struct {
		kind    LayerKind
		content string
		spec    catalog.FieldSpec
		color   string
	}{
		{LayerHeading, st.Heading, tpl.Fields.Heading, st.HeadingColor},
		{LayerSubheading, st.Subheading, tpl.Fields.Subheading, st.SubheadingColor},
		{LayerFooter, st.ShopName, tpl.Fields.Footer, tpl.Fields.Footer.Color},
	}
	for _, f := range fields {
		tb, err := r.field(f.content, f.spec, f.color, stack)
		if err != nil {
			return nil, fmt.Errorf("排版 %s 失败: %w", f.kind, err)
		}
		tree.Layers = append(tree.Layers, Layer{Kind: f.kind, Text: tb})
	}

	// 电话层需要同时满足：号码非空、模板定义了 phone 位置。
	if phone, ok := tpl.Fields.PhoneSpec(); ok && st.PhoneNumber != "" {
		tb, err := r.field(r.phonePrefix(phone)+st.PhoneNumber, phone, phone.Color, typography.PhoneStack)
		if err != nil {
			return nil, fmt.Errorf("排版 %s 失败: %w", LayerPhone, err)
		}
		tree.Layers = append(tree.Layers, Layer{Kind: LayerPhone, Text: tb})
	}

	if st.ShowWatermark {
		tb, err := r.watermark()
		if err != nil {
			return nil, fmt.Errorf("排版 %s 失败: %w", LayerWatermark, err)
		}
		tree.Layers = append(tree.Layers, Layer{Kind: LayerWatermark, Text: tb})
	}
	return tree, nil
}

type treeBuilder struct {
	opts Options
}

func (r *treeBuilder) phonePrefix(spec catalog.FieldSpec) string {
	gc, ok := r.opts.Typesetter.(GlyphCoverage)
	if ok && !gc.Covers(FontResource{Stack: typography.PhoneStack, Weight: spec.FontWeight}, PhoneIcon) {
		return ""
	}
	return PhonePrefix
}

func (r *treeBuilder) background(tpl *catalog.Template) *Background {
	bg := &Background{Fill: ParseColor(tpl.FallbackColor)}
	if tpl.Background != "" && r.opts.Backgrounds != nil && r.opts.Backgrounds.Has(tpl.Background) {
		bg.Image = &ImageBox{
			Ref:    tpl.Background,
			Width:  r.opts.Width,
			Height: r.opts.Height,
			Fit:    FitCover,
		}
	}
	return bg
}

// field 按模板规格放置一个文本块：
// 锚点 x 决定水平位置（align 决定盒子相对锚点的摆放），盒子垂直居中于 y。
func (r *treeBuilder) field(content string, spec catalog.FieldSpec, color string, stack typography.Stack) (*TextBox, error) {
	anchorX := Percent(spec.X).To(UnitPX, r.opts.Width)
	anchorY := Percent(spec.Y).To(UnitPX, r.opts.Height)

	width := 0.0
	wrap := "nowrap"
	if mw, ok := spec.MaxWidthPercent(); ok {
		width = Percent(mw).To(UnitPX, r.opts.Width)
		wrap = "break-word"
	}

	tb, err := r.compose(content, width, wrap, FontResource{Stack: stack, Weight: spec.FontWeight}, spec.FontSize, ParseColor(color), string(spec.Align))
	if err != nil {
		return nil, err
	}
	tb.AnchorX = anchorX
	tb.AnchorY = anchorY
	tb.X = boxLeft(anchorX, tb.Width, tb.Align)
	tb.Y = anchorY - tb.Height/2
	if spec.Shadow != nil {
		tb.Shadow = &TextShadow{DX: spec.Shadow.DX, DY: spec.Shadow.DY, Color: ParseColor(spec.Shadow.Color)}
	}
	return tb, nil
}

// watermark 固定在右下角，距边缘 WatermarkInset。
func (r *treeBuilder) watermark() (*TextBox, error) {
	color := White
	color.A = WatermarkAlpha
	tb, err := r.compose(WatermarkText, 0, "nowrap", FontResource{Stack: watermarkStack, Weight: WatermarkWeight}, WatermarkSize, color, "right")
	if err != nil {
		return nil, err
	}
	tb.AnchorX = r.opts.Width - WatermarkInset
	tb.AnchorY = r.opts.Height - WatermarkInset
	tb.X = tb.AnchorX - tb.Width
	tb.Y = tb.AnchorY - tb.Height
	return tb, nil
}

func (r *treeBuilder) compose(content string, width float64, wrap string, font FontResource, fontSize float64, color Color, align string) (*TextBox, error) {
	lineHeight := r.opts.LineHeight.Resolve(Px(fontSize), UnitPX)
	lines, err := layoutLines(content, width, font, fontSize, lineHeight, r.opts.Typesetter, wrap)
	if err != nil {
		return nil, err
	}

	totalHeight := 0.0
	widest := 0.0
	for i := range lines {
		lines[i].Height = lineHeight
		totalHeight += lineHeight
		widest = math.Max(widest, lines[i].Width)
	}
	// 没有最大宽度约束时，盒子宽度取最宽的一行。
	if width <= 0 {
		width = widest
	}
	return &TextBox{
		Content:    content,
		Width:      width,
		Height:     totalHeight,
		LineHeight: lineHeight,
		Font:       font,
		FontSize:   fontSize,
		Color:      color,
		Align:      normalizeAlign(align),
		Wrap:       wrap,
		Lines:      lines,
	}, nil
}

// layoutLines 优先交给排版后端；没有后端时按估算宽度折行。
// 空内容返回零行，对应高度为 0 的文本块。
func layoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64, ts Typesetter, wrap string) ([]TextLine, error) {
	if content == "" {
		return nil, nil
	}
	if ts != nil {
		return ts.LayoutLines(content, width, font, fontSize, lineHeight, wrap)
	}
	var out []TextLine
	for _, para := range strings.Split(content, "\n") {
		if wrap == "nowrap" || width <= 0 {
			out = append(out, estimatedLine(para, fontSize, lineHeight))
			continue
		}
		for _, l := range estimateWrap(para, width, fontSize) {
			out = append(out, estimatedLine(l, fontSize, lineHeight))
		}
	}
	return out, nil
}

func estimatedLine(content string, fontSize, lineHeight float64) TextLine {
	return TextLine{Content: content, Width: estimateTextWidth(content, fontSize), Height: lineHeight}
}

// estimateWrap 按空白贪心折行，单词本身超宽时按字符拆开。
func estimateWrap(para string, width, fontSize float64) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(para) {
		for _, piece := range splitEstimated(word, width, fontSize) {
			candidate := piece
			if current != "" {
				candidate = current + " " + piece
			}
			if current != "" && estimateTextWidth(candidate, fontSize) > width {
				lines = append(lines, current)
				candidate = piece
			}
			current = candidate
		}
	}
	return append(lines, current)
}

func splitEstimated(word string, width, fontSize float64) []string {
	perLine := max(1, int(width/estimateTextWidth("x", fontSize)))
	runes := []rune(word)
	if len(runes) <= perLine {
		return []string{word}
	}
	var parts []string
	for len(runes) > perLine {
		parts = append(parts, string(runes[:perLine]))
		runes = runes[perLine:]
	}
	return append(parts, string(runes))
}

func boxLeft(anchor, width float64, align string) float64 {
	switch align {
	case "center":
		return anchor - width/2
	case "right":
		return anchor - width
	default:
		return anchor
	}
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return "left"
	}
}

func alignOffset(container, width float64, align string) float64 {
	if container <= width {
		return 0
	}
	switch align {
	case "center":
		return (container - width) / 2
	case "right":
		return container - width
	default:
		return 0
	}
}

func estimateTextWidth(content string, fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = 16
	}
	return fontSize * 0.55 * float64(utf8.RuneCountInString(content))
}

// ParseColor 解析 #RGB、#RRGGBB、#RRGGBBAA；无法解析时返回白色。
func ParseColor(value string) Color {
	c, err := parseColor(value)
	if err != nil {
		return White
	}
	return c
}

func parseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
		}
	}
	switch len(hex) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(hex[0:1], 2)),
			G: mustHex(strings.Repeat(hex[1:2], 2)),
			B: mustHex(strings.Repeat(hex[2:3], 2)),
			A: 1,
		}, nil
	case 6, 8:
		c := Color{
			R: mustHex(hex[0:2]),
			G: mustHex(hex[2:4]),
			B: mustHex(hex[4:6]),
			A: 1,
		}
		if len(hex) == 8 {
			c.A = float64(mustHex(hex[6:8])) / 255
		}
		return c, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}
