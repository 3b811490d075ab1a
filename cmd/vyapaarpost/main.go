package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ByLCY/vyapaarpost/binding"
	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/config"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/export"
	"github.com/ByLCY/vyapaarpost/fonts"
	"github.com/ByLCY/vyapaarpost/intake"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/notify"
	canvasrenderer "github.com/ByLCY/vyapaarpost/renderer/canvas"
	"github.com/ByLCY/vyapaarpost/server"
	"github.com/ByLCY/vyapaarpost/share"
	"github.com/ByLCY/vyapaarpost/typography"
)

const usage = `用法: vyapaarpost <命令> [参数]

命令:
  render     渲染模板并导出 PNG
  serve      启动 HTTP 编辑服务
  templates  列出模板
  fonts      列出字体选项与字体目录
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	slog.SetDefault(cfg.NewLogger())

	args := os.Args[2:]
	switch os.Args[1] {
	case "render":
		err = renderCmd(cfg, args)
	case "serve":
		err = serveCmd(cfg, args)
	case "templates":
		err = templatesCmd(cfg, args)
	case "fonts":
		err = fontsCmd(cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", os.Args[1], err)
	}
}

// sharedFlags 注册各子命令共用的资源参数，默认值来自环境变量。
func sharedFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "模板目录文件（为空时使用内置目录）")
	fs.StringVar(&cfg.FontDir, "fonts", cfg.FontDir, "字体目录")
	fs.StringVar(&cfg.AssetDir, "assets", cfg.AssetDir, "背景图片目录")
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.CatalogPath)
}

func renderCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	sharedFlags(fs, cfg)
	templateID := fs.String("template", "", "模板 ID")
	dataJSON := fs.String("data", "", "字段与样式 JSON，如 {\"heading\":\"SALE\",\"font\":\"tamil\"}")
	imagePath := fs.String("image", "", "用户图片路径")
	outDir := fs.String("out", cfg.ExportDir, "导出目录")
	name := fs.String("name", binding.DefaultFilenamePattern, "文件名模式")
	shareFlag := fs.Bool("share", false, "导出后上传到分享存储桶")
	debugPath := fs.String("debug", "", "视觉树调试 JSON 输出路径")
	fs.Float64Var(&cfg.Scale, "scale", cfg.Scale, "超采样倍数（至少为 2）")
	fs.Parse(args)

	if *templateID == "" {
		return fmt.Errorf("必须指定 -template")
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("加载模板目录失败: %w", err)
	}
	tpl, err := cat.GetByID(*templateID)
	if err != nil {
		return err
	}

	sess := editor.NewSession()
	sess.SelectTemplate(tpl)
	if *dataJSON != "" {
		var data any
		if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
			return fmt.Errorf("解析 data JSON 失败: %w", err)
		}
		if err := applyData(sess, cat.Typography(), data); err != nil {
			return err
		}
	}
	if *imagePath != "" {
		f, err := os.Open(*imagePath)
		if err != nil {
			return fmt.Errorf("打开图片失败: %w", err)
		}
		img, err := intake.Normalize(f, intake.MaxDimension)
		f.Close()
		if err != nil {
			return err
		}
		sess.SetUserImage(img)
	}

	assets := canvasrenderer.NewAssets(cfg.AssetDir, nil)
	r := canvasrenderer.NewRenderer(canvasrenderer.Options{FontDir: cfg.FontDir, Assets: assets})
	layoutOpts := layout.Options{
		Width:       cfg.Width,
		Height:      cfg.Height,
		LineHeight:  cfg.LineHeight,
		Typesetter:  r,
		Backgrounds: assets,
		Fonts:       cat.Typography(),
	}
	st := sess.Snapshot()

	if *debugPath != "" {
		tree, err := layout.Render(st, layoutOpts)
		if err != nil {
			return fmt.Errorf("布局计算失败: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(*debugPath), 0o755); err != nil {
			return fmt.Errorf("创建调试目录失败: %w", err)
		}
		if err := layout.WriteDebugJSON(tree, *debugPath); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}

	var target share.Target = share.Unsupported{}
	if *shareFlag {
		b, err := share.NewBucket(cfg.Share, slog.Default())
		if err != nil {
			return err
		}
		target = b
	}

	n := notify.New(0, slog.Default())
	p := export.NewPipeline(r, export.Options{
		Scale:    cfg.Scale,
		Layout:   layoutOpts,
		Saver:    export.DirSaver{Dir: *outDir},
		Target:   target,
		Notifier: n,
	})
	mode := export.ModeDownload
	if *shareFlag {
		mode = export.ModeShare
	}
	res, err := p.Export(context.Background(), st, export.Request{Mode: mode, Filename: *name})
	if err != nil {
		return err
	}
	fmt.Println(n.Current())
	if res.Path != "" {
		fmt.Printf("已导出：%s\n", res.Path)
	}
	if res.URL != "" {
		fmt.Printf("分享链接：%s\n", res.URL)
		if err := writeQRCode(*outDir, res.Filename, res.URL); err != nil {
			return err
		}
	}
	if res.Tainted {
		fmt.Println("警告：部分远程图片加载失败，对应区域使用了回退色")
	}
	return nil
}

// writeQRCode 在导出目录中写入分享链接的二维码。
func writeQRCode(dir, filename, link string) error {
	qr, err := share.QRCode(link, share.DefaultQRSize)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filename, filepath.Ext(filename)) + "-qr.png"
	path, err := export.DirSaver{Dir: dir}.Save(context.Background(), name, qr)
	if err != nil {
		return fmt.Errorf("写入二维码失败: %w", err)
	}
	fmt.Printf("二维码：%s\n", path)
	return nil
}

// applyData 将 JSON 中的字段与样式写入会话。
func applyData(sess *editor.Session, fontsCat *typography.Catalog, data any) error {
	for _, name := range []editor.FieldName{editor.Heading, editor.Subheading, editor.ShopName, editor.PhoneNumber} {
		if v, ok := binding.Lookup(data, string(name)); ok {
			if err := sess.SetField(name, binding.Interpolate(fmt.Sprint(v), data)); err != nil {
				return err
			}
		}
	}
	if v, ok := binding.Lookup(data, "font"); ok {
		sel := typography.Selector(fmt.Sprint(v))
		if !fontsCat.Has(sel) {
			return fmt.Errorf("未知字体 %q", sel)
		}
		sess.SetFont(sel)
	}
	if v, ok := binding.Lookup(data, "headingColor"); ok {
		sess.SetHeadingColor(fmt.Sprint(v))
	}
	if v, ok := binding.Lookup(data, "subheadingColor"); ok {
		sess.SetSubheadingColor(fmt.Sprint(v))
	}
	if v, ok := binding.Lookup(data, "showWatermark"); ok {
		show, isBool := v.(bool)
		if !isBool {
			return fmt.Errorf("showWatermark 必须是布尔值")
		}
		sess.SetShowWatermark(show)
	}
	return nil
}

func serveCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	sharedFlags(fs, cfg)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "监听地址")
	fs.StringVar(&cfg.ExportDir, "out", cfg.ExportDir, "导出目录")
	fs.Parse(args)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("加载模板目录失败: %w", err)
	}
	logger := slog.Default()
	assets := canvasrenderer.NewAssets(cfg.AssetDir, nil)
	r := canvasrenderer.NewRenderer(canvasrenderer.Options{FontDir: cfg.FontDir, Assets: assets, Logger: logger})

	var target share.Target = share.Unsupported{}
	if cfg.Share.Enabled() {
		b, err := share.NewBucket(cfg.Share, logger)
		if err != nil {
			return err
		}
		target = b
		logger.Info("share bucket configured", "endpoint", cfg.Share.Endpoint, "bucket", cfg.Share.Bucket)
	} else {
		logger.Warn("share bucket not configured, share falls back to download")
	}

	srv, err := server.New(server.Options{
		Catalog:    cat,
		Rasterizer: r,
		Layout: layout.Options{
			Width:       cfg.Width,
			Height:      cfg.Height,
			LineHeight:  cfg.LineHeight,
			Typesetter:  r,
			Backgrounds: assets,
			Fonts:       cat.Typography(),
		},
		Scale:  cfg.Scale,
		Saver:  export.DirSaver{Dir: cfg.ExportDir},
		Target: target,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "templates", cat.Len())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func templatesCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("templates", flag.ExitOnError)
	sharedFlags(fs, cfg)
	category := fs.String("category", "", "按分类过滤（offer/festival/greeting）")
	fs.Parse(args)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("加载模板目录失败: %w", err)
	}
	list := cat.All()
	if *category != "" {
		list = cat.ListByCategory(catalog.Category(*category))
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tFALLBACK")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Category, t.FallbackColor)
	}
	fmt.Fprintln(tw)
	for _, c := range cat.ListCategories() {
		fmt.Fprintf(tw, "%s\t%d\n", c.Label, c.Count)
	}
	return tw.Flush()
}

func fontsCmd(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fonts", flag.ExitOnError)
	sharedFlags(fs, cfg)
	fs.Parse(args)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("加载模板目录失败: %w", err)
	}
	r := canvasrenderer.NewRenderer(canvasrenderer.Options{FontDir: cfg.FontDir})
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SELECTOR\tLABEL\tSTACK\tRESOLVED\tSAMPLE")
	for _, opt := range cat.Typography().Options() {
		font := layout.FontResource{Stack: opt.Stack, Weight: 400}
		// 示例文字实际用到的字体；有字符无字体可画时标出
		used, missing := r.Coverage(font, opt.Sample+opt.DisplayLabel)
		sample := strings.Join(used, "+")
		if len(missing) > 0 {
			sample += fmt.Sprintf(" (缺字 %q)", string(missing))
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\n", opt.Selector, opt.DisplayLabel, []string(opt.Stack), r.ResolvedFamily(font), sample)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if cfg.FontDir == "" {
		return nil
	}
	families, err := fonts.Dir{Root: cfg.FontDir}.Families()
	if err != nil {
		return fmt.Errorf("读取字体目录失败: %w", err)
	}
	fmt.Printf("\n%s 中的字体族：%v\n", cfg.FontDir, families)
	return nil
}
