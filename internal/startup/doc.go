// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - LIBRARY_DIR: Image library root (default: /library)
//   - DESCRIPTIONS_FILE: Description index file (default: LIBRARY_DIR/.descriptions.db)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Serve /metrics and collect gauges (default: true)
//   - VIPS_ENABLED: Decode through libvips when available (default: false)
//   - JPEG_QUALITY: JPEG encode quality, 1-100 (default: 90)
//   - MIN_CROP_SIZE: Smallest crop selection side in display pixels (default: 10)
//   - FIT_WIDTH, FIT_HEIGHT: Container used by fit-to-window (default: 500x400)
//   - LOG_REQUESTS: Log every HTTP request (default: true)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown limit (default: 10s)
//   - STATS_INTERVAL: Gauge collection interval (default: 30s)
//   - MEMORY_LIMIT: Container memory limit in bytes; sets GOMEMLIMIT when > 0
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap (default: 0.85)
//   - IMAGE_WORKERS: Override the libvips worker count
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
