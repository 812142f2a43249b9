// Package geometry maps rectangles between display space (what the viewer
// draws after zooming) and source space (the decoded pixel buffer).
//
// Display → source conversion clamps the result to the buffer bounds and
// reports ErrEmptyRegion when nothing is left, so a crop can never be
// silently widened or moved to a different region.
package geometry
