package renderer

import (
	"context"
	"image"

	"github.com/ByLCY/vyapaarpost/layout"
)

// Raster 是一次光栅化的结果。
// Tainted 表示有远程资源加载失败，对应区域保留了回退填充色。
type Raster struct {
	Image   *image.RGBA
	Tainted bool
	Missing []string
}

// Rasterizer 将视觉树按 scale 倍超采样绘制为位图。
// 预览与导出共用同一实现，保证两者一致。
type Rasterizer interface {
	Rasterize(ctx context.Context, tree *layout.Tree, scale float64) (*Raster, error)
}
