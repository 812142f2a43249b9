/*
Package document holds the open image and the edits applied to it.

A Document owns one opaque pixel buffer together with the zoom factor it is
shown at and the crop gesture being drawn, if any. Crop gestures arrive in
display coordinates; CommitCrop maps them back to source pixels with the
geometry package, rejects gestures below the minimum size, and replaces the
buffer with the cropped pixels at zoom 1.

Adjustments can be previewed any number of times; every preview starts from
the current buffer, so sliders never compound. Adjust commits one.
*/
package document
