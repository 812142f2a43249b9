// Package main provides the entry point for the image library server.
//
// The server keeps one image open at a time for cropping, tonal adjustment,
// resizing and zooming, writes results back to the library, rewrites EXIF
// fields of JPEG and PNG files without touching their pixels, and keeps a
// side index of free-text descriptions keyed by file path.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and validates directories
//  2. Codec Selection: libvips when VIPS_ENABLED and available, pure Go otherwise
//  3. Description Index: Loaded from DESCRIPTIONS_FILE, follows file renames
//  4. Metrics Collector: Samples index size and open document pixels
//  5. HTTP Server Setup: Routes, request ID, W3C logging and metrics middleware
//  6. Graceful Shutdown: Stops the server, then saves the description index
//
// See [image-library/internal/startup] for the environment variables.
package main
