package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"image-library/internal/codec"
	"image-library/internal/document"
	"image-library/internal/events"
	"image-library/internal/filesystem"
	"image-library/internal/logging"
	"image-library/internal/mediatypes"
	"image-library/internal/metadata"
	"image-library/internal/metrics"
	"image-library/internal/paint"
)

var (
	// ErrNoDocument is returned by operations that need an open image.
	ErrNoDocument = errors.New("no image is open")
	// ErrSuperseded is returned for a load whose result was discarded
	// because a newer open request was made while it was decoding.
	ErrSuperseded = errors.New("load superseded by a newer request")
	// ErrExists is returned when a rename target already exists.
	ErrExists = errors.New("destination already exists")
)

// Session owns the single open Document and runs the operations that move
// pixels and metadata between it and the filesystem.
type Session struct {
	codec codec.Codec
	bus   *events.Bus
	opts  document.Options

	mu         sync.Mutex
	doc        *document.Document
	generation uint64
}

// LoadResult is delivered by OpenAsync.
type LoadResult struct {
	Path     string
	Document *document.Document
	Err      error
}

// New creates a session. bus may be nil when nobody listens for events.
func New(c codec.Codec, bus *events.Bus, opts document.Options) *Session {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Session{codec: c, bus: bus, opts: opts}
}

// Bus returns the bus the session publishes on.
func (s *Session) Bus() *events.Bus {
	return s.bus
}

// Document returns the open document.
func (s *Session) Document() (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// Open decodes path and makes it the open document. If another Open or
// OpenAsync starts before this one finishes, this result is discarded and
// ErrSuperseded returned. A failed decode leaves the previous document open.
func (s *Session) Open(ctx context.Context, path string) (*document.Document, error) {
	return s.load(ctx, path, s.begin())
}

// OpenAsync starts decoding path in the background and returns a channel
// that receives exactly one result. Only the most recent request can
// replace the open document.
func (s *Session) OpenAsync(ctx context.Context, path string) <-chan LoadResult {
	gen := s.begin()
	ch := make(chan LoadResult, 1)

	go func() {
		doc, err := s.load(ctx, path, gen)
		ch <- LoadResult{Path: path, Document: doc, Err: err}
		close(ch)
	}()

	return ch
}

// Close discards the open document and supersedes any load in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.doc = nil
}

func (s *Session) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

func (s *Session) load(ctx context.Context, path string, gen uint64) (*document.Document, error) {
	if !mediatypes.IsSupportedImage(path) {
		return nil, &codec.DecodeError{Path: path, Err: fmt.Errorf("%w: %q", codec.ErrUnsupportedFormat, filepath.Ext(path))}
	}

	img, err := s.codec.Decode(ctx, path)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		metrics.StaleLoadsDiscarded.Inc()
		logging.Debug("Discarding stale load of %s (request %d, current %d)", path, gen, s.generation)
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}

	doc, err := document.New(path, img, s.opts)
	if err != nil {
		return nil, &codec.DecodeError{Path: path, Err: err}
	}

	s.doc = doc
	logging.Info("Opened %s (%dx%d)", path, img.Bounds().Dx(), img.Bounds().Dy())
	return doc, nil
}

// current reports whether doc is still the open document.
func (s *Session) current(doc *document.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || doc == nil {
		return ErrNoDocument
	}
	if doc != s.doc {
		return ErrSuperseded
	}
	return nil
}

// DocumentPixels returns the pixel count of the open document, or 0.
func (s *Session) DocumentPixels() int {
	doc, err := s.Document()
	if err != nil {
		return 0
	}
	size := doc.Size()
	return size.Width * size.Height
}

// Commit encodes doc and writes it to dest. doc must still be the open
// document; if another image replaced it in the meantime ErrSuperseded is
// returned and nothing is written. An empty format is inferred from dest:
// ".png" gives PNG and anything else JPEG. The file is written to a
// temporary sibling and renamed into place; if the rename fails the
// temporary file is removed and a *filesystem.PartialWriteError returned.
func (s *Session) Commit(ctx context.Context, doc *document.Document, dest string, format mediatypes.Format) error {
	if err := s.current(doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if format == mediatypes.FormatUnknown {
		format = mediatypes.CommitFormat(dest)
	}

	img := doc.Image()
	err = filesystem.WriteAtomic(dest, func(w io.Writer) error {
		return s.codec.Encode(w, img, format)
	})
	if err != nil {
		logging.Error("Commit of %s to %s failed: %v", doc.Path(), dest, err)
		return err
	}

	doc.MarkClean()
	doc.SetPath(dest)
	logging.Info("Committed %s as %s", dest, format)
	s.bus.Publish(events.Event{Type: events.ImageModified, Path: dest})
	return nil
}

// RewriteMetadata patches the metadata of src into dst without touching the
// pixels. It does not wait on the open document.
func (s *Session) RewriteMetadata(src, dst string, patch metadata.Patch) error {
	if err := metadata.RewriteFile(src, dst, patch); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Type: events.ImageModified, Path: dst})
	return nil
}

// ReadDescription returns the description embedded in path. Files whose
// container carries no metadata yield an empty description.
func (s *Session) ReadDescription(path string) (string, error) {
	r, err := metadata.ReadFile(path)
	if errors.Is(err, metadata.ErrUnsupportedContainer) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(r.Description), nil
}

// Rename moves oldPath to newPath, refusing to overwrite an existing file.
func (s *Session) Rename(oldPath, newPath string) error {
	if _, err := os.Lstat(newPath); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, newPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	if doc, err := s.Document(); err == nil && doc.Path() == oldPath {
		doc.SetPath(newPath)
	}

	logging.Info("Renamed %s to %s", oldPath, newPath)
	s.bus.Publish(events.Event{Type: events.ImageRenamed, Path: newPath, OldPath: oldPath})
	return nil
}

// Install makes a finished paint canvas the open document, superseding any
// load in flight. path may be empty until the document is committed.
func (s *Session) Install(path string, c *paint.Canvas) (*document.Document, error) {
	img, err := c.Finish()
	if err != nil {
		return nil, err
	}

	doc, err := document.New(path, img, s.opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.generation++
	s.doc = doc
	s.mu.Unlock()

	logging.Info("Opened painted canvas (%dx%d)", img.Bounds().Dx(), img.Bounds().Dy())
	return doc, nil
}
