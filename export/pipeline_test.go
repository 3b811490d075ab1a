package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ByLCY/vyapaarpost/catalog"
	"github.com/ByLCY/vyapaarpost/editor"
	"github.com/ByLCY/vyapaarpost/layout"
	"github.com/ByLCY/vyapaarpost/notify"
	"github.com/ByLCY/vyapaarpost/renderer"
	"github.com/ByLCY/vyapaarpost/share"
)

// fakeRasterizer 返回 tree 尺寸乘以 scale 的纯色位图。
type fakeRasterizer struct {
	mu      sync.Mutex
	calls   int
	scales  []float64
	tainted bool
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRasterizer) Rasterize(ctx context.Context, tree *layout.Tree, scale float64) (*renderer.Raster, error) {
	f.mu.Lock()
	f.calls++
	f.scales = append(f.scales, scale)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, int(tree.Width*scale), int(tree.Height*scale)))
	return &renderer.Raster{Image: img, Tainted: f.tainted}, nil
}

func (f *fakeRasterizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memSaver struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memSaver) Save(_ context.Context, name string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = data
	return "mem://" + name, nil
}

func snapshotFor(t *testing.T, id string) editor.State {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tpl, err := c.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	s := editor.NewSession()
	s.SelectTemplate(tpl)
	return s.Snapshot()
}

func fixedNow() time.Time { return time.UnixMilli(1700000000000) }

func TestCaptureIsSupersampled(t *testing.T) {
	for _, scale := range []float64{0, 1, 3} {
		r := &fakeRasterizer{}
		p := NewPipeline(r, Options{Scale: scale})
		tree := &layout.Tree{Width: 360, Height: 360}
		bmp, err := p.Capture(context.Background(), tree)
		if err != nil {
			t.Fatalf("Capture: %v", err)
		}
		if p.Scale() < MinScale {
			t.Fatalf("scale %v below minimum", p.Scale())
		}
		if bmp.Width != int(360*p.Scale()) || bmp.Height != int(360*p.Scale()) {
			t.Fatalf("bitmap %dx%d does not match scale %v", bmp.Width, bmp.Height, p.Scale())
		}
		if _, err := png.Decode(bytes.NewReader(bmp.PNG)); err != nil {
			t.Fatalf("bitmap is not png: %v", err)
		}
		if p.State() != Succeeded || p.Busy() {
			t.Fatalf("state after capture = %v", p.State())
		}
	}
}

func TestCaptureFailure(t *testing.T) {
	p := NewPipeline(&fakeRasterizer{err: errors.New("canvas read-back blocked")}, Options{})
	_, err := p.Capture(context.Background(), &layout.Tree{Width: 10, Height: 10})
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if p.State() != Failed || p.Busy() {
		t.Fatalf("failed capture must clear busy, state=%v", p.State())
	}
}

func TestBusyGating(t *testing.T) {
	r := &fakeRasterizer{block: make(chan struct{}), started: make(chan struct{}, 1)}
	saver := &memSaver{}
	p := NewPipeline(r, Options{Saver: saver, Now: fixedNow})
	st := snapshotFor(t, "daily-offer-1")

	done := make(chan error, 1)
	go func() {
		_, err := p.Export(context.Background(), st, Request{Mode: ModeDownload})
		done <- err
	}()
	<-r.started
	if !p.Busy() {
		t.Fatalf("pipeline should be busy while capturing")
	}
	if _, err := p.Export(context.Background(), st, Request{Mode: ModeDownload}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second export should be rejected with ErrBusy, got %v", err)
	}
	if _, err := p.Capture(context.Background(), &layout.Tree{Width: 1, Height: 1}); !errors.Is(err, ErrBusy) {
		t.Fatalf("capture while busy should be rejected, got %v", err)
	}
	close(r.block)
	if err := <-done; err != nil {
		t.Fatalf("first export: %v", err)
	}
	if n := r.callCount(); n != 1 {
		t.Fatalf("expected exactly one capture, got %d", n)
	}
	if p.Busy() {
		t.Fatalf("busy flag not cleared")
	}
}

func TestShareDecisions(t *testing.T) {
	cases := []struct {
		name      string
		target    share.Target
		want      Outcome
		wantSaved bool
	}{
		{"unsupported", share.Unsupported{}, OutcomeDownloaded, true},
		{"accepted", share.Func(func(context.Context, share.Payload) (share.Receipt, error) {
			return share.Receipt{URL: "https://example.test/x.png"}, nil
		}), OutcomeShared, false},
		{"cancelled", share.Func(func(context.Context, share.Payload) (share.Receipt, error) {
			return share.Receipt{}, share.ErrCancelled
		}), OutcomeDownloaded, true},
		{"target error", share.Func(func(context.Context, share.Payload) (share.Receipt, error) {
			return share.Receipt{}, errors.New("network down")
		}), OutcomeDownloaded, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			saver := &memSaver{}
			p := NewPipeline(&fakeRasterizer{}, Options{Saver: saver, Target: c.target, Now: fixedNow})
			res, err := p.Export(context.Background(), snapshotFor(t, "festival-diwali-1"), Request{Mode: ModeShare})
			if err != nil {
				t.Fatalf("share must not fail: %v", err)
			}
			if res.Outcome != c.want {
				t.Fatalf("outcome = %s, want %s", res.Outcome, c.want)
			}
			if got := len(saver.files) == 1; got != c.wantSaved {
				t.Fatalf("saved = %v, want %v", got, c.wantSaved)
			}
		})
	}
}

func TestShareFailsOnlyWhenDownloadFails(t *testing.T) {
	saver := &memSaver{err: errors.New("disk full")}
	n := notify.New(time.Hour, nil)
	p := NewPipeline(&fakeRasterizer{}, Options{Saver: saver, Notifier: n, Now: fixedNow})
	res, err := p.Export(context.Background(), snapshotFor(t, "daily-offer-1"), Request{Mode: ModeShare})
	if !errors.Is(err, ErrExportFailed) || res.Outcome != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s %v", res.Outcome, err)
	}
	if n.Current() != notify.ShareFailed {
		t.Fatalf("notification = %q", n.Current())
	}
}

func TestSharePayload(t *testing.T) {
	var got share.Payload
	target := share.Func(func(_ context.Context, p share.Payload) (share.Receipt, error) {
		got = p
		return share.Receipt{}, nil
	})
	p := NewPipeline(&fakeRasterizer{}, Options{Target: target, Now: fixedNow})

	st := snapshotFor(t, "daily-offer-1")
	if _, err := p.Export(context.Background(), st, Request{Mode: ModeShare}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got.Title != ShareTitle || got.Text != st.Heading {
		t.Fatalf("unexpected payload %q / %q", got.Title, got.Text)
	}
	if len(got.Files) != 1 || got.Files[0].Name != "vyapaarpost-daily-offer-1-1700000000000.png" {
		t.Fatalf("unexpected files %+v", got.Files)
	}

	st.Heading = ""
	if _, err := p.Export(context.Background(), st, Request{Mode: ModeShare}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got.Text != DefaultShareText {
		t.Fatalf("empty heading should use default text, got %q", got.Text)
	}
}

func TestExportNotifications(t *testing.T) {
	n := notify.New(time.Hour, nil)
	p := NewPipeline(&fakeRasterizer{}, Options{Saver: &memSaver{}, Notifier: n, Now: fixedNow})
	if _, err := p.Export(context.Background(), snapshotFor(t, "daily-offer-2"), Request{Mode: ModeDownload}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n.Current() != notify.Saved {
		t.Fatalf("notification = %q, want %q", n.Current(), notify.Saved)
	}

	failing := NewPipeline(&fakeRasterizer{err: errors.New("boom")}, Options{Saver: &memSaver{}, Notifier: n})
	if _, err := failing.Export(context.Background(), snapshotFor(t, "daily-offer-2"), Request{Mode: ModeDownload}); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if n.Current() != notify.SaveFailed {
		t.Fatalf("notification = %q, want %q", n.Current(), notify.SaveFailed)
	}
}

func TestExportWithoutTemplate(t *testing.T) {
	p := NewPipeline(&fakeRasterizer{}, Options{Saver: &memSaver{}})
	if _, err := p.Export(context.Background(), editor.Pristine(), Request{}); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if p.Busy() {
		t.Fatalf("busy flag not cleared after failure")
	}
}

// TestTaintedCaptureSucceeds 远程资源失败时导出仍然成功，但结果带 tainted 标记。
func TestTaintedCaptureSucceeds(t *testing.T) {
	p := NewPipeline(&fakeRasterizer{tainted: true}, Options{Saver: &memSaver{}, Now: fixedNow})
	res, err := p.Export(context.Background(), snapshotFor(t, "festival-diwali-1"), Request{Mode: ModeDownload})
	if err != nil {
		t.Fatalf("tainted capture must not fail: %v", err)
	}
	if !res.Tainted || res.Outcome != OutcomeDownloaded {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s := DirSaver{Dir: dir}
	first, err := s.Save(context.Background(), "post.png", []byte("one"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := s.Save(context.Background(), "post.png", []byte("two"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Fatalf("second save overwrote %s", first)
	}
	if data, _ := os.ReadFile(first); string(data) != "one" {
		t.Fatalf("first file content %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files, got %d", len(entries))
	}
}

func TestDirSaverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	if _, err := (DirSaver{Dir: dir}).Save(ctx, "post.png", []byte("x")); err == nil {
		t.Fatalf("cancelled save should fail")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("cancelled save left %d files", len(entries))
	}
}
