package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"image-library/internal/logging"
	"image-library/internal/mediatypes"
	"image-library/internal/metrics"
	"image-library/internal/workers"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL applies to it
	vipsLogLevel, logHandler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(logHandler, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: workers.ForCPU(4),
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// vipsLogging maps the application log level onto libvips and returns a
// handler that forwards libvips messages to our logger.
func vipsLogging(level logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	switch level {
	case logging.LevelDebug:
		return vips.LogLevelInfo, func(domain string, l vips.LogLevel, msg string) {
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn:
		return vips.LogLevelError, func(domain string, l vips.LogLevel, msg string) {
			if l >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	case logging.LevelError:
		return vips.LogLevelCritical, func(domain string, l vips.LogLevel, msg string) {
			if l >= vips.LogLevelCritical {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		// Info: only warnings and errors
		return vips.LogLevelWarning, func(domain string, l vips.LogLevel, msg string) {
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	}
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsCodec decodes with libvips and falls back to another codec when
// libvips is unavailable or rejects the file. Encoding is always delegated.
type VipsCodec struct {
	Fallback Codec
}

// NewVipsCodec wraps fallback with a libvips decoder.
func NewVipsCodec(fallback Codec) *VipsCodec {
	return &VipsCodec{Fallback: fallback}
}

// Name implements Codec.
func (c *VipsCodec) Name() string {
	return "vips"
}

// Decode implements Codec.
func (c *VipsCodec) Decode(ctx context.Context, path string) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if IsVipsAvailable() {
		start := time.Now()
		img, err := loadWithVips(path)
		metrics.DecodeDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
		metrics.DecodeTotal.WithLabelValues(c.Name(), metrics.Status(err)).Inc()
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode failed for %s: %v, trying %s", filepath.Base(path), err, c.Fallback.Name())
	}

	return c.Fallback.Decode(ctx, path)
}

// Encode implements Codec.
func (c *VipsCodec) Encode(w io.Writer, img image.Image, format mediatypes.Format) error {
	return c.Fallback.Encode(w, img, format)
}

// loadWithVips decodes through libvips and hands the pixels back as PNG, a
// lossless hop that keeps the rest of the pipeline on image.Image.
func loadWithVips(path string) (*image.NRGBA, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return nil, fmt.Errorf("vips auto-rotate failed: %w", err)
	}

	pngBytes, _, err := ref.ExportPng(&vips.PngExportParams{
		StripMetadata: true,
		Compression:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}

	out, err := opaque(img)
	if err != nil {
		return nil, err
	}

	logging.Debug("Vips decoded %s: %dx%d", filepath.Base(path), out.Bounds().Dx(), out.Bounds().Dy())
	return out, nil
}
