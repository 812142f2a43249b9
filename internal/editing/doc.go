// Package editing holds the pixel operations applied to an open image:
// rectangular crop, brightness/contrast/saturation adjustment and resize.
//
// Every operation is pure. It reads the buffer it is given and returns a new
// *image.NRGBA with its origin at (0,0); the caller decides whether the
// result replaces the document's buffer or is only shown as a preview.
package editing
