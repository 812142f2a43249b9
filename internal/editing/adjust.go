package editing

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// ErrAdjustmentRange is returned when a parameter is outside [-100, 100].
var ErrAdjustmentRange = errors.New("adjustment out of range")

const (
	// MinAdjustment is the lowest accepted value of each parameter.
	MinAdjustment = -100
	// MaxAdjustment is the highest accepted value of each parameter.
	MaxAdjustment = 100
)

// Adjustment is a set of tonal changes. Zero means no change for each field.
type Adjustment struct {
	Brightness int `json:"brightness"`
	Contrast   int `json:"contrast"`
	Saturation int `json:"saturation"`
}

// Validate checks every parameter against [MinAdjustment, MaxAdjustment].
func (a Adjustment) Validate() error {
	for _, p := range []struct {
		name  string
		value int
	}{
		{"brightness", a.Brightness},
		{"contrast", a.Contrast},
		{"saturation", a.Saturation},
	} {
		if p.value < MinAdjustment || p.value > MaxAdjustment {
			return fmt.Errorf("%w: %s=%d", ErrAdjustmentRange, p.name, p.value)
		}
	}
	return nil
}

// IsIdentity reports whether a leaves every pixel unchanged.
func (a Adjustment) IsIdentity() bool {
	return a == Adjustment{}
}

// Adjust applies a to every pixel of src and returns a new buffer of the
// same size. The steps run in a fixed order and each one sees the output of
// the previous one:
//
//  1. brightness: c' = clamp(c + brightness)
//  2. contrast:   c'' = clamp(round(f*(c'-128) + 128)),
//     f = 259*(contrast+255) / (255*(259-contrast))
//  3. saturation (skipped when zero):
//     c''' = clamp(round(g + (c''-g)*(1+saturation/100))), g = (R''+G''+B'')/3
//
// Alpha is copied unchanged. Adjust never accumulates state: a live preview
// has to call it on the untouched baseline every time.
func Adjust(src *image.NRGBA, a Adjustment) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("adjust: no source buffer")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	contrast := float64(a.Contrast)
	factor := (259 * (contrast + 255)) / (255 * (259 - contrast))
	saturate := a.Saturation != 0
	satScale := 1 + float64(a.Saturation)/100

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := dst.PixOffset(0, y)
			for x := 0; x < w; x++ {
				s := src.Pix[si : si+4 : si+4]
				d := dst.Pix[di : di+4 : di+4]

				r := clampInt(int(s[0]) + a.Brightness)
				g := clampInt(int(s[1]) + a.Brightness)
				bl := clampInt(int(s[2]) + a.Brightness)

				r = applyContrast(r, factor)
				g = applyContrast(g, factor)
				bl = applyContrast(bl, factor)

				if saturate {
					gray := float64(r+g+bl) / 3
					r = applySaturation(r, gray, satScale)
					g = applySaturation(g, gray, satScale)
					bl = applySaturation(bl, gray, satScale)
				}

				d[0] = uint8(r)
				d[1] = uint8(g)
				d[2] = uint8(bl)
				d[3] = s[3]

				si += 4
				di += 4
			}
		}
	})

	return dst, nil
}

func applyContrast(c int, factor float64) int {
	return clampInt(int(math.Round(factor*float64(c-128) + 128)))
}

func applySaturation(c int, gray, scale float64) int {
	return clampInt(int(math.Round(gray + (float64(c)-gray)*scale)))
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
