package paint

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/vector"

	"image-library/internal/geometry"
)

const (
	// DefaultBrushSize is the stroke width of a new canvas.
	DefaultBrushSize = 2
	// MaxBrushSize bounds SetBrushSize.
	MaxBrushSize = 64
	// MaxCanvasDimension bounds New.
	MaxCanvasDimension = 8192
)

var (
	// ErrFinished is returned by any call on a canvas after Finish or Cancel.
	ErrFinished = errors.New("canvas already finished")
	// ErrInvalidCanvas is returned for unusable canvas sizes or brush sizes.
	ErrInvalidCanvas = errors.New("invalid canvas parameters")
)

// Canvas is a white drawing surface painted with round-capped freehand
// strokes. It is owned by one drawer until Finish hands the pixels over.
type Canvas struct {
	mu       sync.Mutex
	img      *image.NRGBA
	brush    color.NRGBA
	size     float32
	last     *geometry.Point
	finished bool
}

// New returns a white canvas of the given size with a black brush.
func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 || width > MaxCanvasDimension || height > MaxCanvasDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, width, height)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}

	return &Canvas{
		img:   img,
		brush: color.NRGBA{A: 0xFF},
		size:  DefaultBrushSize,
	}, nil
}

// SetColor sets the brush color. Alpha is forced opaque.
func (c *Canvas) SetColor(col color.Color) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrFinished
	}
	n := color.NRGBAModel.Convert(col).(color.NRGBA)
	n.A = 0xFF
	c.brush = n
	return nil
}

// SetBrushSize sets the stroke width in pixels.
func (c *Canvas) SetBrushSize(size int) error {
	if size < 1 || size > MaxBrushSize {
		return fmt.Errorf("%w: brush size %d", ErrInvalidCanvas, size)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrFinished
	}
	c.size = float32(size)
	return nil
}

// Press starts a stroke at p.
func (c *Canvas) Press(p geometry.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrFinished
	}
	c.last = &p
	return nil
}

// Drag paints a segment from the previous point to p. Without a preceding
// Press it only moves the pen.
func (c *Canvas) Drag(p geometry.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrFinished
	}
	if c.last != nil {
		c.segment(*c.last, p)
		c.last = &p
	}
	return nil
}

// Release ends the current stroke.
func (c *Canvas) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = nil
}

// Stroke paints a polyline through points as one press-drag-release
// gesture. A single point paints a dot.
func (c *Canvas) Stroke(points []geometry.Point) error {
	if len(points) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return ErrFinished
	}

	if len(points) == 1 {
		c.segment(points[0], points[0])
		return nil
	}
	for i := 1; i < len(points); i++ {
		c.segment(points[i-1], points[i])
	}
	c.last = nil
	return nil
}

// Finish ends painting and returns the pixels. The canvas cannot be used
// afterwards.
func (c *Canvas) Finish() (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil, ErrFinished
	}
	c.finished = true
	img := c.img
	c.img = nil
	return img, nil
}

// Cancel discards the canvas.
func (c *Canvas) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = true
	c.img = nil
}

// segment draws a line of the brush width with round caps.
func (c *Canvas) segment(a, b geometry.Point) {
	b0 := c.img.Bounds()
	src := image.NewUniform(c.brush)
	r := c.size / 2
	ax, ay := float32(a.X), float32(a.Y)
	bx, by := float32(b.X), float32(b.Y)

	z := vector.NewRasterizer(b0.Dx(), b0.Dy())

	dx, dy := bx-ax, by-ay
	if l := float32(math.Hypot(float64(dx), float64(dy))); l > 0 {
		nx, ny := -dy/l*r, dx/l*r
		z.MoveTo(ax+nx, ay+ny)
		z.LineTo(bx+nx, by+ny)
		z.LineTo(bx-nx, by-ny)
		z.LineTo(ax-nx, ay-ny)
		z.ClosePath()
		z.Draw(c.img, b0, src, image.Point{})
	}

	// Caps are rasterized separately so opposite windings never cancel.
	for _, p := range [][2]float32{{ax, ay}, {bx, by}} {
		z.Reset(b0.Dx(), b0.Dy())
		circle(z, p[0], p[1], r)
		z.Draw(c.img, b0, src, image.Point{})
	}
}

// circle adds a four-arc Bézier approximation of a circle.
func circle(z *vector.Rasterizer, cx, cy, r float32) {
	const k = 0.5522847498
	kr := k * r
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+kr, cx+kr, cy+r, cx, cy+r)
	z.CubeTo(cx-kr, cy+r, cx-r, cy+kr, cx-r, cy)
	z.CubeTo(cx-r, cy-kr, cx-kr, cy-r, cx, cy-r)
	z.CubeTo(cx+kr, cy-r, cx+r, cy-kr, cx+r, cy)
	z.ClosePath()
}
