package geometry

import (
	"errors"
	"image"
	"math"
	"testing"
)

const tolerance = 1e-9

func rectsClose(a, b Rect) bool {
	return math.Abs(a.X-b.X) < tolerance &&
		math.Abs(a.Y-b.Y) < tolerance &&
		math.Abs(a.Width-b.Width) < tolerance &&
		math.Abs(a.Height-b.Height) < tolerance
}

func TestToSourceClamps(t *testing.T) {
	tests := []struct {
		name    string
		display Rect
		zoom    float64
		srcW    int
		srcH    int
		want    Rect
		wantErr error
	}{
		{
			name:    "inside bounds at 2x",
			display: Rect{X: 20, Y: 40, Width: 100, Height: 60},
			zoom:    2,
			srcW:    200, srcH: 200,
			want: Rect{X: 10, Y: 20, Width: 50, Height: 30},
		},
		{
			name:    "width clipped at right edge",
			display: Rect{X: 180, Y: 0, Width: 100, Height: 10},
			zoom:    1,
			srcW:    200, srcH: 100,
			want: Rect{X: 180, Y: 0, Width: 20, Height: 10},
		},
		{
			name:    "negative origin clamped to zero",
			display: Rect{X: -30, Y: -10, Width: 50, Height: 50},
			zoom:    1,
			srcW:    100, srcH: 100,
			want: Rect{X: 0, Y: 0, Width: 50, Height: 50},
		},
		{
			name:    "fractional zoom",
			display: Rect{X: 5, Y: 5, Width: 25, Height: 50},
			zoom:    0.5,
			srcW:    400, srcH: 400,
			want: Rect{X: 10, Y: 10, Width: 50, Height: 100},
		},
		{
			name:    "origin past the right edge is empty",
			display: Rect{X: 500, Y: 0, Width: 20, Height: 20},
			zoom:    1,
			srcW:    100, srcH: 100,
			wantErr: ErrEmptyRegion,
		},
		{
			name:    "zero width is empty",
			display: Rect{X: 10, Y: 10, Width: 0, Height: 20},
			zoom:    1,
			srcW:    100, srcH: 100,
			wantErr: ErrEmptyRegion,
		},
		{
			name:    "zero zoom rejected",
			display: Rect{X: 0, Y: 0, Width: 10, Height: 10},
			zoom:    0,
			srcW:    100, srcH: 100,
			wantErr: ErrInvalidZoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToSource(tt.display, tt.zoom, tt.srcW, tt.srcH)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ToSource() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToSource() unexpected error: %v", err)
			}
			if !rectsClose(got, tt.want) {
				t.Errorf("ToSource() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundTripStability(t *testing.T) {
	zooms := []float64{0.1, 0.25, 0.8, 1, 1.25, 2, 3.7}
	rects := []Rect{
		{X: 0, Y: 0, Width: 100, Height: 80},
		{X: 12.5, Y: 7, Width: 33, Height: 41},
		{X: 50, Y: 60, Width: 1, Height: 1},
	}

	for _, z := range zooms {
		for _, r := range rects {
			display := ToDisplay(r, z)
			source, err := ToSource(display, z, 100, 80)
			if err != nil {
				t.Fatalf("ToSource(%v, %g) error: %v", display, z, err)
			}
			again := ToDisplay(source, z)
			if !rectsClose(again, display) {
				t.Errorf("zoom %g: round trip %v -> %v", z, display, again)
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(Point{X: 50, Y: 10}, Point{X: 20, Y: 40})
	want := Rect{X: 20, Y: 10, Width: 30, Height: 30}
	if got != want {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}

	flipped := Rect{X: 30, Y: 30, Width: -10, Height: -20}.Normalized()
	if flipped != (Rect{X: 20, Y: 10, Width: 10, Height: 20}) {
		t.Errorf("Normalized() = %v", flipped)
	}
}

func TestFitZoom(t *testing.T) {
	tests := []struct {
		name      string
		container Size
		img       Size
		want      float64
	}{
		{name: "landscape limited by width", container: Size{800, 600}, img: Size{1600, 900}, want: 0.5},
		{name: "portrait limited by height", container: Size{800, 600}, img: Size{300, 1200}, want: 0.5},
		{name: "small image scales up", container: Size{800, 600}, img: Size{200, 100}, want: 4},
		{name: "unknown container uses default", container: Size{}, img: Size{1000, 400}, want: 0.5},
		{name: "empty image", container: Size{800, 600}, img: Size{}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FitZoom(tt.container, tt.img); math.Abs(got-tt.want) > tolerance {
				t.Errorf("FitZoom() = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestPixelsTruncates(t *testing.T) {
	got := Rect{X: 2.5, Y: 3.9, Width: 10.7, Height: 4.2}.Pixels()
	want := image.Rect(2, 3, 12, 7)
	if got != want {
		t.Errorf("Pixels() = %v, want %v", got, want)
	}
}

func TestPointConversions(t *testing.T) {
	p := Point{X: 10, Y: 4}
	d := PointToDisplay(p, 2.5)
	if d != (Point{X: 25, Y: 10}) {
		t.Errorf("PointToDisplay() = %v", d)
	}
	if back := PointToSource(d, 2.5); back != p {
		t.Errorf("PointToSource() = %v, want %v", back, p)
	}
}
