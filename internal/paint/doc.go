// Package paint provides a freehand drawing canvas whose result can be
// opened as a document. Strokes are rasterized with golang.org/x/image/vector.
package paint
