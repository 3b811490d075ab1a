// Package export captures a rendered visual tree into a PNG and hands it to a
// download or share destination. At most one export runs per pipeline.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/ByLCY/vyapaarpost/binding"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/notify"
	"github.com/ByLCY/vyapaarpost/renderer"
	"github.com/ByLCY/vyapaarpost/share"
)

const (
	// DefaultScale is the supersampling factor used for exports.
	DefaultScale = 2
	// MinScale is the lowest factor an export may use.
	MinScale = 2

	// ShareTitle and DefaultShareText are used when the caller leaves them empty.
	ShareTitle       = "VyapaarPost"
	DefaultShareText = "Check out this offer!"
)

var (
	// ErrBusy is returned when an export is triggered while another one is capturing.
	ErrBusy = errors.New("export already in progress")
	// ErrCaptureFailed wraps any rasterization or encoding failure.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrExportFailed wraps any failure to persist the bitmap.
	ErrExportFailed = errors.New("export failed")
)

// State is the export state machine: Idle -> Capturing -> {Succeeded, Failed}.
type State int

const (
	Idle State = iota
	Capturing
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is the tri-state result of a share request.
type Outcome string

const (
	OutcomeShared     Outcome = "shared"
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeFailed     Outcome = "failed"
)

// Mode selects the destination of Export.
type Mode string

const (
	ModeDownload Mode = "download"
	ModeShare    Mode = "share"
)

// Bitmap is a captured PNG.
type Bitmap struct {
	PNG     []byte
	Width   int
	Height  int
	Tainted bool
	Missing []string
}

// Result describes a finished download or share.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Filename string  `json:"filename"`
	Path     string  `json:"path,omitempty"`
	URL      string  `json:"url,omitempty"`
	Tainted  bool    `json:"tainted,omitempty"`
	Bitmap   *Bitmap `json:"-"`
}

// Request parameterizes Export.
type Request struct {
	Mode     Mode
	Filename string // pattern, see binding.Filename
	Title    string
	Text     string
}

// Options configures a Pipeline.
type Options struct {
	Scale    float64
	Layout   layout.Options
	Saver    Saver
	Target   share.Target
	Notifier *notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Pipeline owns the busy flag for one editing session.
type Pipeline struct {
	rasterizer renderer.Rasterizer
	scale      float64
	layout     layout.Options
	saver      Saver
	target     share.Target
	notifier   *notify.Notifier
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	state State
}

// NewPipeline creates a pipeline drawing through r. Scales below MinScale are
// raised to DefaultScale. A nil Target never shares; a nil Saver writes to the
// working directory.
func NewPipeline(r renderer.Rasterizer, opts Options) *Pipeline {
	p := &Pipeline{
		rasterizer: r,
		scale:      opts.Scale,
		layout:     opts.Layout,
		saver:      opts.Saver,
		target:     opts.Target,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if p.scale < MinScale {
		p.scale = DefaultScale
	}
	if p.saver == nil {
		p.saver = DirSaver{Dir: "."}
	}
	if p.target == nil {
		p.target = share.Unsupported{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Busy reports whether a capture is in flight.
func (p *Pipeline) Busy() bool {
	return p.State() == Capturing
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Scale returns the supersampling factor.
func (p *Pipeline) Scale() float64 { return p.scale }

func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Capturing {
		return ErrBusy
	}
	p.state = Capturing
	return nil
}

func (p *Pipeline) end(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state = Failed
		return
	}
	p.state = Succeeded
}

// Capture rasterizes tree at the pipeline scale. It returns ErrBusy without
// doing any work when another capture is running.
func (p *Pipeline) Capture(ctx context.Context, tree *layout.Tree) (*Bitmap, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}
	bmp, err := p.capture(ctx, tree, p.scale)
	p.end(err)
	return bmp, err
}

// Preview rasterizes tree at scale without touching the busy flag.
func (p *Pipeline) Preview(ctx context.Context, tree *layout.Tree, scale float64) (*Bitmap, error) {
	return p.capture(ctx, tree, scale)
}

func (p *Pipeline) capture(ctx context.Context, tree *layout.Tree, scale float64) (*Bitmap, error) {
	if p.rasterizer == nil {
		return nil, fmt.Errorf("%w: no rasterizer configured", ErrCaptureFailed)
	}
	raster, err := p.rasterizer.Rasterize(ctx, tree, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if raster == nil || raster.Image == nil {
		return nil, fmt.Errorf("%w: empty raster", ErrCaptureFailed)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, raster.Image); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", ErrCaptureFailed, err)
	}
	if raster.Tainted {
		p.logger.Warn("capture tainted by unavailable remote assets", "missing", raster.Missing)
	}
	b := raster.Image.Bounds()
	return &Bitmap{
		PNG:     buf.Bytes(),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Tainted: raster.Tainted,
		Missing: raster.Missing,
	}, nil
}

// Download persists bmp under filename through the pipeline's Saver.
func (p *Pipeline) Download(ctx context.Context, bmp *Bitmap, filename string) (Result, error) {
	if bmp == nil || len(bmp.PNG) == 0 {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: empty bitmap", ErrExportFailed)
	}
	path, err := p.saver.Save(ctx, filename, bmp.PNG)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Filename: filename}, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	p.logger.Info("post saved", "path", path, "bytes", len(bmp.PNG), "tainted", bmp.Tainted)
	return Result{Outcome: OutcomeDownloaded, Filename: filename, Path: path, Tainted: bmp.Tainted, Bitmap: bmp}, nil
}

// Share offers bmp to the share target. Targets that cannot take the file,
// user cancellation and share errors all fall back to Download; only a failed
// download yields OutcomeFailed.
func (p *Pipeline) Share(ctx context.Context, bmp *Bitmap, filename, title, text string) (Result, error) {
	if bmp == nil || len(bmp.PNG) == 0 {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: empty bitmap", ErrExportFailed)
	}
	file := share.File{Name: filename, ContentType: "image/png", Data: bmp.PNG}
	if p.target.CanShare(file) {
		rec, err := p.target.Share(ctx, share.Payload{Title: title, Text: text, Files: []share.File{file}})
		switch {
		case err == nil:
			p.logger.Info("post shared", "filename", filename, "url", rec.URL)
			return Result{Outcome: OutcomeShared, Filename: filename, URL: rec.URL, Tainted: bmp.Tainted, Bitmap: bmp}, nil
		case errors.Is(err, share.ErrCancelled):
			p.logger.Info("share cancelled, downloading instead", "filename", filename)
		default:
			p.logger.Warn("share failed, downloading instead", "filename", filename, "error", err)
		}
	}
	// a cancelled share context must not also cancel the fallback write
	return p.Download(context.WithoutCancel(ctx), bmp, filename)
}

// Export renders st, captures it and sends it to req.Mode. It shows a
// notification for the outcome. st should be a snapshot; later edits to the
// session do not affect a running export.
func (p *Pipeline) Export(ctx context.Context, st editor.State, req Request) (Result, error) {
	if err := p.begin(); err != nil {
		return Result{}, err
	}
	res, err := p.export(ctx, st, req)
	p.end(err)

	switch {
	case req.Mode == ModeShare && res.Outcome == OutcomeShared:
		p.notify(notify.Shared)
	case req.Mode == ModeShare && err != nil:
		p.notify(notify.ShareFailed)
	case err != nil:
		p.notify(notify.SaveFailed)
	default:
		p.notify(notify.Saved)
	}
	if err != nil {
		p.logger.Error("export failed", "template", templateID(st), "mode", string(req.Mode), "error", err)
	}
	return res, err
}

func (p *Pipeline) export(ctx context.Context, st editor.State, req Request) (Result, error) {
	tree, err := layout.Render(st, p.layout)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	bmp, err := p.capture(ctx, tree, p.scale)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}
	filename := binding.Filename(req.Filename, binding.FilenameVars(templateID(st), p.now()))

	if req.Mode == ModeShare {
		title := req.Title
		if title == "" {
			title = ShareTitle
		}
		text := req.Text
		if text == "" {
			text = st.Heading
		}
		if text == "" {
			text = DefaultShareText
		}
		return p.Share(ctx, bmp, filename, title, text)
	}
	return p.Download(ctx, bmp, filename)
}

func (p *Pipeline) notify(msg string) {
	if p.notifier != nil {
		p.notifier.Show(msg)
	}
}

func templateID(st editor.State) string {
	if st.Template == nil {
		return ""
	}
	return st.Template.ID
}
