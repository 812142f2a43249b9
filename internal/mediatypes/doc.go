// Package mediatypes defines the image formats the pipeline understands and
// the extension rules used to pick them.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
// # Extension Detection
//
//	if !mediatypes.IsSupportedImage(path) {
//	    // refuse to open
//	}
//	f := mediatypes.FormatForPath(path) // mediatypes.FormatJPEG for "a.JPG"
//
// # Commit Format
//
// Saving a document picks the output container from the destination name.
// Only ".png" produces PNG; every other name, including ".webp", is written
// as JPEG:
//
//	mediatypes.CommitFormat("/lib/out.png")  // FormatPNG
//	mediatypes.CommitFormat("/lib/out.tiff") // FormatJPEG
package mediatypes
