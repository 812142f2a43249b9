package codec

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decode support

	"image-library/internal/filesystem"
	"image-library/internal/logging"
	"image-library/internal/mediatypes"
	"image-library/internal/metrics"
)

// DefaultJPEGQuality is used when an ImagingCodec has no quality configured.
const DefaultJPEGQuality = 90

var encodeFormats = map[mediatypes.Format]imaging.Format{
	mediatypes.FormatJPEG: imaging.JPEG,
	mediatypes.FormatPNG:  imaging.PNG,
	mediatypes.FormatGIF:  imaging.GIF,
	mediatypes.FormatBMP:  imaging.BMP,
	mediatypes.FormatTIFF: imaging.TIFF,
}

// ImagingCodec decodes and encodes in pure Go through the imaging package.
type ImagingCodec struct {
	JPEGQuality int
	Retry       filesystem.RetryConfig
}

// NewImagingCodec returns a codec using the given JPEG quality (1-100).
func NewImagingCodec(jpegQuality int) *ImagingCodec {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &ImagingCodec{JPEGQuality: jpegQuality, Retry: filesystem.DefaultRetryConfig()}
}

// Name implements Codec.
func (c *ImagingCodec) Name() string {
	return "imaging"
}

// Decode implements Codec.
func (c *ImagingCodec) Decode(ctx context.Context, path string) (*image.NRGBA, error) {
	start := time.Now()
	img, err := c.decode(ctx, path)
	metrics.DecodeDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	metrics.DecodeTotal.WithLabelValues(c.Name(), metrics.Status(err)).Inc()
	return img, err
}

func (c *ImagingCodec) decode(ctx context.Context, path string) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := filesystem.OpenWithRetry(path, c.Retry)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	out, err := opaque(img)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	logging.Debug("Decoded %s: %dx%d", filepath.Base(path), out.Bounds().Dx(), out.Bounds().Dy())
	return out, nil
}

// Encode implements Codec.
func (c *ImagingCodec) Encode(w io.Writer, img image.Image, format mediatypes.Format) error {
	start := time.Now()
	err := c.encode(w, img, format)
	label := string(format)
	if label == "" {
		label = "unknown"
	}
	metrics.EncodeDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	metrics.EncodeTotal.WithLabelValues(label, metrics.Status(err)).Inc()
	return err
}

func (c *ImagingCodec) encode(w io.Writer, img image.Image, format mediatypes.Format) error {
	f, ok := encodeFormats[format]
	if !ok {
		return &EncodeError{Format: format, Err: ErrUnsupportedFormat}
	}
	if img == nil || img.Bounds().Empty() {
		return &EncodeError{Format: format, Err: ErrEmptyImage}
	}

	quality := c.JPEGQuality
	if quality == 0 {
		quality = DefaultJPEGQuality
	}

	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(quality)); err != nil {
		return &EncodeError{Format: format, Err: err}
	}
	return nil
}

// opaque returns img as an NRGBA buffer anchored at (0,0) with every pixel
// fully opaque. Translucent pixels are composited over black.
func opaque(img image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, b.Dx(), b.Dy())
	}

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return imaging.Clone(img), nil
	}

	bg := imaging.New(b.Dx(), b.Dy(), color.Black)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0), nil
}
