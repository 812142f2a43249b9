package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrEmptyRegion is returned when a rectangle has no area left after
	// conversion to source space and clamping.
	ErrEmptyRegion = errors.New("empty region")

	// ErrInvalidZoom is returned for zoom factors that are not strictly positive.
	ErrInvalidZoom = errors.New("zoom factor must be positive")
)

// DefaultContainer is the viewport size assumed before the viewer has been
// laid out.
var DefaultContainer = Size{Width: 500, Height: 400}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// Point is a position in either display or source space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize builds the rectangle spanned by two drag points, whichever
// direction the drag went.
func Normalize(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Normalized returns r with negative sizes flipped so that the origin is
// the minimum corner.
func (r Rect) Normalized() Rect {
	return Normalize(Point{r.X, r.Y}, Point{r.X + r.Width, r.Y + r.Height})
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Scale multiplies every component of r by f.
func (r Rect) Scale(f float64) Rect {
	return Rect{X: r.X * f, Y: r.Y * f, Width: r.Width * f, Height: r.Height * f}
}

// Pixels truncates r to whole pixels.
func (r Rect) Pixels() image.Rectangle {
	x, y := int(r.X), int(r.Y)
	return image.Rect(x, y, x+int(r.Width), y+int(r.Height))
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.Width, r.Height)
}

// PointToDisplay converts a source-space point to display space.
func PointToDisplay(p Point, zoom float64) Point {
	return Point{X: p.X * zoom, Y: p.Y * zoom}
}

// PointToSource converts a display-space point to source space. No
// clamping is applied.
func PointToSource(p Point, zoom float64) Point {
	return Point{X: p.X / zoom, Y: p.Y / zoom}
}

// ToDisplay converts a source-space rectangle to display space.
func ToDisplay(r Rect, zoom float64) Rect {
	return r.Scale(zoom)
}

// ToSource converts a display-space rectangle to source space and clamps it
// to a source buffer of srcWidth x srcHeight:
//
//	x' = clamp(x/zoom, 0, srcWidth)
//	y' = clamp(y/zoom, 0, srcHeight)
//	w' = min(w/zoom, srcWidth - x')
//	h' = min(h/zoom, srcHeight - y')
//
// ErrEmptyRegion is returned when w' or h' ends up non-positive.
func ToSource(r Rect, zoom float64, srcWidth, srcHeight int) (Rect, error) {
	if !(zoom > 0) || math.IsInf(zoom, 0) {
		return Rect{}, ErrInvalidZoom
	}

	w, h := float64(srcWidth), float64(srcHeight)
	x := clamp(r.X/zoom, 0, w)
	y := clamp(r.Y/zoom, 0, h)
	out := Rect{
		X:      x,
		Y:      y,
		Width:  math.Min(r.Width/zoom, w-x),
		Height: math.Min(r.Height/zoom, h-y),
	}

	if out.Empty() {
		return out, fmt.Errorf("%w: %v at zoom %g in %dx%d", ErrEmptyRegion, r, zoom, srcWidth, srcHeight)
	}
	return out, nil
}

// FitZoom returns the zoom that fits an image entirely inside a container.
// An unknown container size (not laid out yet) is replaced by
// DefaultContainer. A zero-sized image yields 1.
func FitZoom(container, img Size) float64 {
	if !img.Known() {
		return 1
	}
	if !container.Known() {
		container = DefaultContainer
	}
	sx := float64(container.Width) / float64(img.Width)
	sy := float64(container.Height) / float64(img.Height)
	return math.Min(sx, sy)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
