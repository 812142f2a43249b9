/*
Package codec decodes image files into pixel buffers and encodes buffers back
to files.

Two backends implement Codec:

  - ImagingCodec, pure Go through github.com/disintegration/imaging, reading
    JPEG, PNG, GIF, BMP, TIFF and WebP and writing all of those except WebP.
  - VipsCodec, which decodes with libvips when InitVips has been called and
    falls back to another Codec otherwise.

Decoded buffers are always *image.NRGBA anchored at (0,0) and fully opaque.
Failures are reported as *DecodeError or *EncodeError, both of which unwrap
to the underlying cause.

# Usage

	c := codec.NewImagingCodec(90)
	img, err := c.Decode(ctx, "/photos/a.jpg")
	var de *codec.DecodeError
	if errors.As(err, &de) {
	    // malformed or unreadable file
	}
*/
package codec
