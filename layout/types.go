package layout

// 该文件定义视觉树（visual tree），供预览、导出光栅化与调试 JSON 共用。
// 所有坐标单位均为逻辑像素（CSS px），原点在左上角。

// LayerKind 标识图层类型。图层顺序固定，不由数据驱动。
type LayerKind string

const (
	LayerBackground LayerKind = "background"
	LayerUserImage  LayerKind = "userImage"
	LayerHeading    LayerKind = "heading"
	LayerSubheading LayerKind = "subheading"
	LayerFooter     LayerKind = "footer"
	LayerPhone      LayerKind = "phone"
	LayerWatermark  LayerKind = "watermark"
)

// Tree 是一次渲染的完整结果：画布尺寸加上自底向上的图层列表。
type Tree struct {
	Template string  `json:"template"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Layers   []Layer `json:"layers"`
}

// Layer 只会设置与 Kind 对应的一个字段。
type Layer struct {
	Kind       LayerKind   `json:"kind"`
	Background *Background `json:"background,omitempty"`
	Image      *ImageBox   `json:"image,omitempty"`
	Text       *TextBox    `json:"text,omitempty"`
}

// Background 先铺 Fill 再叠加 Image，保证背景永不透明。
type Background struct {
	Fill  Color     `json:"fill"`
	Image *ImageBox `json:"image,omitempty"`
}

// Fit 描述图片如何填充目标框。
type Fit string

// FitCover 等比缩放并居中裁剪以铺满目标框。
const FitCover Fit = "cover"

// ImageBox 用于描述图片位置与尺寸。Ref 为资源引用；Data 非空时直接使用内存数据。
type ImageBox struct {
	Ref    string  `json:"ref"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Fit    Fit     `json:"fit"`
	Data   []byte  `json:"-"`
}

// Color 采用 0-255 的 RGB 数值，A 为 0-1 的不透明度。
type Color struct {
	R int     `json:"r"`
	G int     `json:"g"`
	B int     `json:"b"`
	A float64 `json:"a"`
}

// White 是无法解析颜色时的兜底色。
var White = Color{R: 255, G: 255, B: 255, A: 1}

// FontResource 描述文本使用的字体栈与字重，由渲染器解析为具体字体文件。
type FontResource struct {
	Stack  []string `json:"stack"`
	Weight int      `json:"weight"`
}

// TextShadow 是无模糊的硬阴影，绘制在文字下方。
type TextShadow struct {
	DX    float64 `json:"dx"`
	DY    float64 `json:"dy"`
	Color Color   `json:"color"`
}

// TextBox 表示一个已经排好坐标的文本块。
// (AnchorX, AnchorY) 为模板给出的锚点；Y 为盒子顶部，盒子垂直居中于 AnchorY。
type TextBox struct {
	Content    string       `json:"content"`
	X          float64      `json:"x"`
	Y          float64      `json:"y"`
	Width      float64      `json:"width"`
	Height     float64      `json:"height"`
	AnchorX    float64      `json:"anchorX"`
	AnchorY    float64      `json:"anchorY"`
	LineHeight float64      `json:"lineHeight"`
	Font       FontResource `json:"font"`
	FontSize   float64      `json:"fontSize"`
	Color      Color        `json:"color"`
	Align      string       `json:"align"`          // left/center/right，同时决定盒子相对锚点的位置与行内对齐
	Wrap       string       `json:"wrap,omitempty"` // break-word（有最大宽度）或 nowrap
	Lines      []TextLine   `json:"lines"`
	Shadow     *TextShadow  `json:"shadow,omitempty"`
}

// TextLine 表示排版后的一行文本内容及其宽高。
type TextLine struct {
	Content string  `json:"content"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// LineOffset 返回第 i 行在盒子内的水平偏移。
func (tb TextBox) LineOffset(i int) float64 {
	if i < 0 || i >= len(tb.Lines) {
		return 0
	}
	return alignOffset(tb.Width, tb.Lines[i].Width, tb.Align)
}

// Layer 查找指定类型的图层。
func (t *Tree) Layer(kind LayerKind) (Layer, bool) {
	if t == nil {
		return Layer{}, false
	}
	for _, l := range t.Layers {
		if l.Kind == kind {
			return l, true
		}
	}
	return Layer{}, false
}
