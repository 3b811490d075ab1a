package layout

import "github.com/ByLCY/vyapaarpost/typography"

// 默认画布为方形帖子尺寸。
const (
	DefaultWidth  = 360
	DefaultHeight = 360
)

// Options 配置渲染阶段所需的依赖，例如排版后端与背景资源。
type Options struct {
	Width       float64
	Height      float64
	LineHeight  LineHeightSpec
	Typesetter  Typesetter
	Backgrounds AssetResolver
	Fonts       *typography.Catalog
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// width<=0 或 wrap=nowrap 时只按显式换行符拆分。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
}

// GlyphCoverage 由能检查字形覆盖的排版后端实现。
// Covers 报告字体栈（含兜底字体）能否绘制 text 中的每个字符。
type GlyphCoverage interface {
	Covers(font FontResource, text string) bool
}

// AssetResolver 判断背景引用能否解析到可用图片。
type AssetResolver interface {
	Has(ref string) bool
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.LineHeight == (LineHeightSpec{}) {
		o.LineHeight = DefaultLineHeight
	}
	if o.Fonts == nil {
		o.Fonts = typography.Default()
	}
	return o
}
