package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"image-library/internal/codec"
	"image-library/internal/document"
	"image-library/internal/events"
	"image-library/internal/filesystem"
	"image-library/internal/geometry"
	"image-library/internal/mediatypes"
	"image-library/internal/metadata"
	"image-library/internal/paint"
)

// gatedCodec decodes any path to a solid image whose width encodes the
// call order, optionally blocking until the test releases it.
type gatedCodec struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	fail  map[string]error
}

func newGatedCodec() *gatedCodec {
	return &gatedCodec{gates: map[string]chan struct{}{}, fail: map[string]error{}}
}

func (g *gatedCodec) gate(path string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[path] = ch
	return ch
}

func (g *gatedCodec) Decode(ctx context.Context, path string) (*image.NRGBA, error) {
	g.mu.Lock()
	gate := g.gates[path]
	err := g.fail[path]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, &codec.DecodeError{Path: path, Err: err}
	}
	return solid(len(filepath.Base(path)), 4), nil
}

func (g *gatedCodec) Encode(w io.Writer, img image.Image, f mediatypes.Format) error {
	return &codec.EncodeError{Format: f, Err: errors.New("encoder broken")}
}

func (g *gatedCodec) Name() string { return "gated" }

func solid(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 10), B: 50, A: 255})
		}
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func recordEvents(t *testing.T, bus *events.Bus) *[]events.Event {
	t.Helper()
	var mu sync.Mutex
	got := &[]events.Event{}
	unsubscribe := bus.Subscribe(func(e events.Event) {
		mu.Lock()
		*got = append(*got, e)
		mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return got
}

func receive(t *testing.T, ch <-chan LoadResult) LoadResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for load")
		return LoadResult{}
	}
}

func TestOpenAsyncLastRequestWins(t *testing.T) {
	g := newGatedCodec()
	s := New(g, nil, document.Options{})
	release := g.gate("/lib/first.jpg")

	first := s.OpenAsync(context.Background(), "/lib/first.jpg")
	second := s.OpenAsync(context.Background(), "/lib/second-image.jpg")

	r2 := receive(t, second)
	if r2.Err != nil {
		t.Fatalf("second load: %v", r2.Err)
	}

	close(release)
	r1 := receive(t, first)
	if !errors.Is(r1.Err, ErrSuperseded) {
		t.Fatalf("first load: expected ErrSuperseded, got %v", r1.Err)
	}
	if r1.Document != nil {
		t.Error("superseded load returned a document")
	}

	doc, err := s.Document()
	if err != nil {
		t.Fatal(err)
	}
	if doc.Path() != "/lib/second-image.jpg" {
		t.Errorf("open document = %s, want second", doc.Path())
	}
}

func TestSynchronousOpenSupersededByAsync(t *testing.T) {
	g := newGatedCodec()
	s := New(g, nil, document.Options{})
	release := g.gate("/lib/slow.jpg")

	done := make(chan error, 1)
	go func() {
		_, err := s.Open(context.Background(), "/lib/slow.jpg")
		done <- err
	}()

	// Wait until the slow open has registered its request.
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.mu.Lock()
		gen := s.generation
		s.mu.Unlock()
		if gen == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if r := receive(t, s.OpenAsync(context.Background(), "/lib/fast.jpg")); r.Err != nil {
		t.Fatal(r.Err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
}

func TestFailedOpenKeepsPreviousDocument(t *testing.T) {
	g := newGatedCodec()
	g.fail["/lib/broken.jpg"] = errors.New("bad huffman table")
	s := New(g, nil, document.Options{})

	if _, err := s.Open(context.Background(), "/lib/good.jpg"); err != nil {
		t.Fatal(err)
	}

	_, err := s.Open(context.Background(), "/lib/broken.jpg")
	var de *codec.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *codec.DecodeError, got %v", err)
	}

	doc, err := s.Document()
	if err != nil || doc.Path() != "/lib/good.jpg" {
		t.Errorf("document = %v, %v; want good.jpg", doc, err)
	}
}

func TestOpenUnsupportedExtension(t *testing.T) {
	s := New(newGatedCodec(), nil, document.Options{})
	_, err := s.Open(context.Background(), "/lib/movie.mp4")
	if !errors.Is(err, codec.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCloseSupersedesLoads(t *testing.T) {
	g := newGatedCodec()
	s := New(g, nil, document.Options{})
	release := g.gate("/lib/a.jpg")

	ch := s.OpenAsync(context.Background(), "/lib/a.jpg")
	s.Close()
	close(release)

	if r := receive(t, ch); !errors.Is(r.Err, ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", r.Err)
	}
	if _, err := s.Document(); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestCommitInfersFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	writePNG(t, src, 30, 20)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	got := recordEvents(t, s.Bus())

	doc, err := s.Open(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Resize(15, 10); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		dest   string
		format string
	}{
		{filepath.Join(dir, "out.png"), "png"},
		{filepath.Join(dir, "out.jpg"), "jpeg"},
		{filepath.Join(dir, "out.bmp"), "jpeg"},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.dest), func(t *testing.T) {
			if err := s.Commit(context.Background(), doc, tt.dest, mediatypes.FormatUnknown); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			f, err := os.Open(tt.dest)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			cfg, format, err := image.DecodeConfig(f)
			if err != nil {
				t.Fatalf("DecodeConfig: %v", err)
			}
			if format != tt.format {
				t.Errorf("format = %s, want %s", format, tt.format)
			}
			if cfg.Width != 15 || cfg.Height != 10 {
				t.Errorf("size = %dx%d, want 15x10", cfg.Width, cfg.Height)
			}
		})
	}

	if len(*got) != len(tests) {
		t.Fatalf("events = %d, want %d", len(*got), len(tests))
	}
	if e := (*got)[0]; e.Type != events.ImageModified || e.Path != tests[0].dest {
		t.Errorf("event = %+v", e)
	}
	if doc.Dirty() {
		t.Error("document still dirty after commit")
	}
}

func TestCommitExplicitFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	writePNG(t, src, 8, 8)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	doc, err := s.Open(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out.jpg")
	if err := s.Commit(context.Background(), doc, dest, mediatypes.FormatPNG); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(dest)
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("explicit format ignored")
	}
}

func TestCommitEncodeFailure(t *testing.T) {
	dir := t.TempDir()
	s := New(newGatedCodec(), nil, document.Options{})
	got := recordEvents(t, s.Bus())

	doc, err := s.Open(context.Background(), "/lib/a.jpg")
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "out.jpg")
	err = s.Commit(context.Background(), doc, dest, "")
	var ee *codec.EncodeError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *codec.EncodeError, got %v", err)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Error("destination written despite encode failure")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %d", len(entries))
	}
	if len(*got) != 0 {
		t.Error("event published for failed commit")
	}
}

func TestCommitReplaceFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	writePNG(t, src, 8, 8)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	doc, err := s.Open(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(dir, "taken.png")
	if err := os.MkdirAll(filepath.Join(dest, "child"), 0o755); err != nil {
		t.Fatal(err)
	}

	err = s.Commit(context.Background(), doc, dest, "")
	var pw *filesystem.PartialWriteError
	if !errors.As(err, &pw) {
		t.Fatalf("expected *filesystem.PartialWriteError, got %v", err)
	}
	if _, err := os.Stat(pw.Temp); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary file left behind")
	}
}

func TestCommitWithoutDocument(t *testing.T) {
	s := New(newGatedCodec(), nil, document.Options{})
	if err := s.Commit(context.Background(), nil, "/tmp/x.jpg", ""); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestCommitAfterDocumentReplaced(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.png")
	second := filepath.Join(dir, "second.png")
	writePNG(t, first, 8, 8)
	writePNG(t, second, 16, 16)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	got := recordEvents(t, s.Bus())

	a, err := s.Open(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}

	res := <-s.OpenAsync(context.Background(), second)
	if res.Err != nil {
		t.Fatal(res.Err)
	}

	err = s.Commit(context.Background(), a, a.Path(), "")
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	after, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("replaced document's pixels written over the earlier file")
	}
	if res.Document.Path() != second {
		t.Errorf("open document path = %s, want %s", res.Document.Path(), second)
	}
	if len(*got) != 0 {
		t.Errorf("events = %d, want 0", len(*got))
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.png")
	newPath := filepath.Join(dir, "b.png")
	writePNG(t, oldPath, 4, 4)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	got := recordEvents(t, s.Bus())
	doc, err := s.Open(context.Background(), oldPath)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if doc.Path() != newPath {
		t.Errorf("document path = %s", doc.Path())
	}
	want := events.Event{Type: events.ImageRenamed, Path: newPath, OldPath: oldPath}
	if len(*got) != 1 || (*got)[0] != want {
		t.Errorf("events = %+v, want [%+v]", *got, want)
	}

	writePNG(t, oldPath, 4, 4)
	if err := s.Rename(oldPath, newPath); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestRewriteMetadataAndReadDescription(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writePNG(t, src, 4, 4)

	s := New(codec.NewImagingCodec(90), nil, document.Options{})
	got := recordEvents(t, s.Bus())

	if err := s.RewriteMetadata(src, src, metadata.Patch{Description: []byte("Été")}); err != nil {
		t.Fatalf("RewriteMetadata: %v", err)
	}
	text, err := s.ReadDescription(src)
	if err != nil {
		t.Fatal(err)
	}
	if text != "Été" {
		t.Errorf("description = %q", text)
	}
	if len(*got) != 1 || (*got)[0].Type != events.ImageModified {
		t.Errorf("events = %+v", *got)
	}

	gif := filepath.Join(dir, "a.gif")
	if err := os.WriteFile(gif, []byte("GIF89a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if text, err := s.ReadDescription(gif); err != nil || text != "" {
		t.Errorf("ReadDescription(gif) = %q, %v", text, err)
	}
}

func TestDocumentPixels(t *testing.T) {
	s := New(newGatedCodec(), nil, document.Options{})
	if s.DocumentPixels() != 0 {
		t.Error("pixels without document")
	}
	if _, err := s.Open(context.Background(), "/lib/abc.jpg"); err != nil {
		t.Fatal(err)
	}
	if got := s.DocumentPixels(); got != 7*4 {
		t.Errorf("pixels = %d, want 28", got)
	}
}

func TestInstallPaintedCanvas(t *testing.T) {
	g := newGatedCodec()
	s := New(g, nil, document.Options{})
	release := g.gate("/lib/slow.jpg")
	pending := s.OpenAsync(context.Background(), "/lib/slow.jpg")

	c, err := paint.New(30, 20)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := s.Install("", c)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Size() != (geometry.Size{Width: 30, Height: 20}) {
		t.Errorf("size = %v", doc.Size())
	}

	close(release)
	if r := receive(t, pending); !errors.Is(r.Err, ErrSuperseded) {
		t.Errorf("pending load: expected ErrSuperseded, got %v", r.Err)
	}

	if _, err := s.Install("", c); !errors.Is(err, paint.ErrFinished) {
		t.Errorf("reinstalling a finished canvas: %v", err)
	}
}
