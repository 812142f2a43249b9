package codec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"image-library/internal/mediatypes"
)

// ErrUnsupportedFormat is wrapped by encode and decode errors when the
// requested container is not handled by the backend.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ErrEmptyImage is wrapped by a DecodeError when a file decodes to zero pixels.
var ErrEmptyImage = errors.New("decoded image has no pixels")

// Codec turns files into opaque pixel buffers and back.
type Codec interface {
	// Decode reads path into a buffer whose bounds start at (0,0) and whose
	// pixels are fully opaque.
	Decode(ctx context.Context, path string) (*image.NRGBA, error)
	// Encode writes img to w in the named format.
	Encode(w io.Writer, img image.Image, format mediatypes.Format) error
	// Name identifies the backend in logs and metrics.
	Name() string
}

// DecodeError reports a file that could not be turned into pixels.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a buffer that could not be written in the requested format.
type EncodeError struct {
	Format mediatypes.Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
