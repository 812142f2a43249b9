package editing

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrInvalidRegion is returned when a crop region has no area or does not
// lie entirely inside the source buffer.
var ErrInvalidRegion = errors.New("invalid crop region")

// Crop returns exactly the pixels of src inside region. The region is in
// source coordinates and must already be clamped; it is never adjusted here.
func Crop(src *image.NRGBA, region image.Rectangle) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no source buffer", ErrInvalidRegion)
	}
	if region.Empty() {
		return nil, fmt.Errorf("%w: %v has no area", ErrInvalidRegion, region)
	}
	if !region.In(src.Bounds()) {
		return nil, fmt.Errorf("%w: %v outside %v", ErrInvalidRegion, region, src.Bounds())
	}

	return imaging.Crop(src, region), nil
}

// Clone copies any decoded image into an *image.NRGBA anchored at (0,0),
// the buffer type used throughout the pipeline.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
