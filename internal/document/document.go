package document

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"image-library/internal/editing"
	"image-library/internal/geometry"
	"image-library/internal/logging"
	"image-library/internal/metrics"
)

const (
	// DefaultMinCropSize is the smallest crop gesture, in display pixels
	// along each axis, that is committed.
	DefaultMinCropSize = 10

	// ZoomStep is the factor applied by ZoomIn; ZoomOut applies ZoomOutStep.
	ZoomStep    = 1.25
	ZoomOutStep = 0.8

	// MinZoom and MaxZoom bound every zoom factor. Steps and fits clamp to
	// the range; SetZoom rejects values outside it.
	MinZoom = 0.01
	MaxZoom = 100.0
)

var (
	// ErrNoSelection is returned when a crop is committed without a gesture.
	ErrNoSelection = errors.New("no crop selection")
	// ErrSelectionTooSmall is returned when a crop gesture is below the
	// minimum size. The buffer is left unchanged.
	ErrSelectionTooSmall = errors.New("crop selection below minimum size")
	// ErrEmptyImage is returned when a document is created without pixels.
	ErrEmptyImage = errors.New("image has no pixels")
)

// Options configures a Document.
type Options struct {
	// MinCropSize is the smallest committed gesture in display pixels.
	// Zero means DefaultMinCropSize.
	MinCropSize float64
	// Container is the viewport used for the initial fit zoom. An unknown
	// size falls back to geometry.DefaultContainer.
	Container geometry.Size
}

// Document is the single open image: its pixel buffer, zoom factor and any
// crop gesture in progress. All methods are safe for concurrent use and
// pixel mutations are serialized.
type Document struct {
	mu        sync.Mutex
	path      string
	buf       *image.NRGBA
	zoom      float64
	anchor    geometry.Point
	selection *geometry.Rect
	minCrop   float64
	container geometry.Size
	dirty     bool
}

// State is a point-in-time view of a document for callers outside the
// pipeline.
type State struct {
	Path      string         `json:"path"`
	Size      geometry.Size  `json:"size"`
	Zoom      float64        `json:"zoom"`
	Selection *geometry.Rect `json:"selection,omitempty"`
	Display   geometry.Size  `json:"display"`
	Dirty     bool           `json:"dirty"`
}

// New creates a document for img, which becomes owned by the document.
func New(path string, img *image.NRGBA, opts Options) (*Document, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if b := img.Bounds(); b.Min != (image.Point{}) {
		img = editing.Clone(img)
	}

	minCrop := opts.MinCropSize
	if minCrop <= 0 {
		minCrop = DefaultMinCropSize
	}

	d := &Document{
		path:      path,
		buf:       img,
		minCrop:   minCrop,
		container: opts.Container,
	}
	d.zoom = clampZoom(geometry.FitZoom(d.container, d.sizeLocked()))
	return d, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// SetPath records a new location for the document, after a rename or a
// commit to another file.
func (d *Document) SetPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
}

// Size returns the buffer dimensions.
func (d *Document) Size() geometry.Size {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sizeLocked()
}

func (d *Document) sizeLocked() geometry.Size {
	b := d.buf.Bounds()
	return geometry.Size{Width: b.Dx(), Height: b.Dy()}
}

// Zoom returns the current zoom factor.
func (d *Document) Zoom() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zoom
}

// State returns a snapshot of the document's state.
func (d *Document) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Path:  d.path,
		Size:  d.sizeLocked(),
		Zoom:  d.zoom,
		Dirty: d.dirty,
	}
	s.Display = geometry.Size{
		Width:  int(float64(s.Size.Width) * d.zoom),
		Height: int(float64(s.Size.Height) * d.zoom),
	}
	if d.selection != nil {
		sel := *d.selection
		s.Selection = &sel
	}
	return s
}

// Image returns a copy of the current buffer.
func (d *Document) Image() *image.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return editing.Clone(d.buf)
}

// Dirty reports whether the pixels changed since opening or the last
// MarkClean.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// MarkClean clears the dirty flag after the buffer has been written out.
func (d *Document) MarkClean() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = false
}

// SetZoom sets the zoom factor. Any crop gesture in progress is dropped
// since its display coordinates no longer match.
func (d *Document) SetZoom(zoom float64) error {
	if !(zoom >= MinZoom && zoom <= MaxZoom) {
		return fmt.Errorf("%w: %g outside [%g, %g]", geometry.ErrInvalidZoom, zoom, MinZoom, MaxZoom)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.zoom = zoom
	d.selection = nil
	return nil
}

// ZoomIn multiplies the zoom by ZoomStep.
func (d *Document) ZoomIn() float64 {
	return d.scaleZoom(ZoomStep)
}

// ZoomOut multiplies the zoom by ZoomOutStep.
func (d *Document) ZoomOut() float64 {
	return d.scaleZoom(ZoomOutStep)
}

func (d *Document) scaleZoom(f float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zoom = clampZoom(d.zoom * f)
	d.selection = nil
	return d.zoom
}

func clampZoom(z float64) float64 {
	return math.Min(math.Max(z, MinZoom), MaxZoom)
}

// Fit sets the zoom that fits the buffer in container and remembers the
// container for later fits.
func (d *Document) Fit(container geometry.Size) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if container.Known() {
		d.container = container
	}
	d.zoom = clampZoom(geometry.FitZoom(d.container, d.sizeLocked()))
	d.selection = nil
	return d.zoom
}

// BeginCrop starts a crop gesture at p, in display coordinates.
func (d *Document) BeginCrop(p geometry.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.anchor = p
	d.selection = &geometry.Rect{X: p.X, Y: p.Y}
}

// UpdateCrop extends the gesture to p and returns the normalized selection.
func (d *Document) UpdateCrop(p geometry.Point) (geometry.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selection == nil {
		return geometry.Rect{}, ErrNoSelection
	}
	sel := geometry.Normalize(d.anchor, p)
	d.selection = &sel
	return sel, nil
}

// CancelCrop drops the gesture in progress.
func (d *Document) CancelCrop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = nil
}

// Selection returns the current gesture, if any.
func (d *Document) Selection() (geometry.Rect, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selection == nil {
		return geometry.Rect{}, false
	}
	return *d.selection, true
}

// CommitCrop crops the buffer to the current gesture. Gestures smaller than
// the minimum size are discarded with ErrSelectionTooSmall. On success the
// zoom resets to 1.
func (d *Document) CommitCrop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.selection == nil {
		return ErrNoSelection
	}
	sel := d.selection.Normalized()
	d.selection = nil

	return d.cropLocked(sel)
}

// CropDisplay crops to a display-space rectangle in one step, as if a
// gesture had been drawn over it.
func (d *Document) CropDisplay(r geometry.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selection = nil
	return d.cropLocked(r.Normalized())
}

func (d *Document) cropLocked(sel geometry.Rect) error {
	start := time.Now()
	err := d.applyCrop(sel)
	observe("crop", start, err)
	return err
}

func (d *Document) applyCrop(sel geometry.Rect) error {
	if sel.Width < d.minCrop || sel.Height < d.minCrop {
		return fmt.Errorf("%w: %gx%g, minimum %gx%g", ErrSelectionTooSmall, sel.Width, sel.Height, d.minCrop, d.minCrop)
	}

	size := d.sizeLocked()
	src, err := geometry.ToSource(sel, d.zoom, size.Width, size.Height)
	if err != nil {
		return err
	}

	region := src.Pixels()
	if region.Empty() {
		return fmt.Errorf("%w: %v truncates to no pixels", geometry.ErrEmptyRegion, src)
	}

	out, err := editing.Crop(d.buf, region)
	if err != nil {
		return err
	}

	logging.Debug("Cropped %s from %dx%d to %v", d.path, size.Width, size.Height, region)
	d.buf = out
	d.zoom = 1.0
	d.dirty = true
	return nil
}

// Preview returns the buffer with a applied, without changing the document.
// Each call starts again from the unmodified buffer.
func (d *Document) Preview(a editing.Adjustment) (*image.NRGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	out, err := editing.Adjust(d.buf, a)
	observe("preview", start, err)
	return out, err
}

// Adjust applies a to the buffer.
func (d *Document) Adjust(a editing.Adjustment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	out, err := editing.Adjust(d.buf, a)
	observe("adjust", start, err)
	if err != nil {
		return err
	}

	if !a.IsIdentity() {
		d.buf = out
		d.dirty = true
	}
	return nil
}

// Resize scales the buffer to width x height.
func (d *Document) Resize(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	out, err := editing.Resize(d.buf, width, height)
	observe("resize", start, err)
	if err != nil {
		return err
	}

	d.buf = out
	d.selection = nil
	d.dirty = true
	return nil
}

func observe(op string, start time.Time, err error) {
	metrics.EditDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.EditOperationsTotal.WithLabelValues(op, metrics.Status(err)).Inc()
}
