// Package metrics provides Prometheus instrumentation for the image library.
//
// All metrics are prefixed with "image_library_". They cover:
//
//   - HTTP requests served by the local API
//   - decode and encode calls made through the codec adapter
//   - crop, adjust, resize and zoom operations on the open document, and
//     decodes discarded because a newer open request superseded them
//   - embedded metadata reads and rewrites
//   - description index size, loads and saves
//   - published pipeline events
//   - filesystem operations and stale file handle retries
//
// The Collector samples gauges from a StatsProvider on a fixed interval.
// NewFilesystemObserver adapts the filesystem metrics to the
// filesystem.Observer interface so that package does not import this one.
package metrics
