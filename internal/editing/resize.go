package editing

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the width and height accepted by Resize.
const MaxDimension = 16384

// ErrInvalidSize is returned for non-positive or oversized resize targets.
var ErrInvalidSize = errors.New("invalid size")

// Resize scales src to exactly width x height with bilinear filtering.
// The aspect ratio is not preserved.
func Resize(src *image.NRGBA, width, height int) (*image.NRGBA, error) {
	if src == nil {
		return nil, errors.New("resize: no source buffer")
	}
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return imaging.Resize(src, width, height, imaging.Linear), nil
}
