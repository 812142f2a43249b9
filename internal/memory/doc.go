// Package memory applies a Go soft memory limit derived from the container
// memory limit. Full-resolution image buffers dominate the heap, so the
// limit keeps peaks from decoding or adjusting large photos inside the
// container budget.
package memory
