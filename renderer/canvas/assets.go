package canvasrenderer

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const maxRemoteAssetBytes = 20 << 20

// Assets 解析背景图片引用：资源目录中的路径（"/templates/x.png"），或 http(s) 远程地址。
// 远程资源在光栅化时尽力获取，失败不报错，由调用方标记为 tainted。
type Assets struct {
	root   string
	client *http.Client

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewAssets creates an asset source rooted at root. A nil client gets a
// client with a 10s timeout.
func NewAssets(root string, client *http.Client) *Assets {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Assets{root: root, client: client, cache: map[string]image.Image{}}
}

// Has 实现 layout.AssetResolver。远程地址总是视为可用，真正的可用性在光栅化时确定。
func (a *Assets) Has(ref string) bool {
	if a == nil || ref == "" {
		return false
	}
	if IsRemote(ref) {
		return true
	}
	path, ok := a.localPath(ref)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load 读取并解码图片，成功结果会被缓存。
func (a *Assets) Load(ctx context.Context, ref string) (image.Image, error) {
	if a == nil {
		return nil, fmt.Errorf("未配置图片资源")
	}
	a.mu.Lock()
	img, ok := a.cache[ref]
	a.mu.Unlock()
	if ok {
		return img, nil
	}

	var err error
	if IsRemote(ref) {
		img, err = a.fetch(ctx, ref)
	} else {
		img, err = a.open(ref)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cache[ref] = img
	a.mu.Unlock()
	return img, nil
}

func (a *Assets) open(ref string) (image.Image, error) {
	path, ok := a.localPath(ref)
	if !ok {
		return nil, fmt.Errorf("未指定资源目录时无法读取图片：%s", ref)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片 %s 失败: %w", ref, err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", ref, err)
	}
	return img, nil
}

func (a *Assets) fetch(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载图片 %s 失败: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片 %s 失败: HTTP %d", ref, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxRemoteAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", ref, err)
	}
	return img, nil
}

// localPath 将引用限制在资源目录内。
func (a *Assets) localPath(ref string) (string, bool) {
	if a.root == "" {
		return "", false
	}
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	return filepath.Join(a.root, clean), true
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
