package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"image-library/internal/filesystem"
	"image-library/internal/logging"
	"image-library/internal/metrics"
)

// ReadRecord extracts the metadata record from a JPEG or PNG file's bytes.
// A file without an EXIF block yields an empty record and no error.
func ReadRecord(data []byte) (Record, error) {
	c, err := openContainer(data)
	if err != nil {
		return Record{}, err
	}

	block := c.tiff()
	if block == nil {
		return Record{}, nil
	}

	d, err := parseTIFF(block)
	if err != nil {
		return Record{}, err
	}
	return d.record(), nil
}

// Rewrite returns a copy of src with the fields in patch set. Every other
// tag keeps its type, count and value bytes, and every byte of the
// container outside the EXIF block is carried over unchanged. When src has
// no EXIF block one is created.
func Rewrite(src []byte, patch Patch) ([]byte, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	c, err := openContainer(src)
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return bytes.Clone(src), nil
	}

	d := newDirectory()
	if block := c.tiff(); block != nil {
		if d, err = parseTIFF(block); err != nil {
			return nil, err
		}
	}

	d.apply(patch)
	return c.replace(d.encode())
}

// ReadFile reads the metadata record of the file at path.
func ReadFile(path string) (Record, error) {
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		metrics.MetadataOperationsTotal.WithLabelValues("read", "error").Inc()
		return Record{}, err
	}

	r, err := ReadRecord(data)
	metrics.MetadataOperationsTotal.WithLabelValues("read", resultLabel(err)).Inc()
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// RewriteFile applies patch to the file at src and writes the result to dst,
// which may equal src. dst is replaced atomically and is left untouched if
// anything fails.
func RewriteFile(src, dst string, patch Patch) error {
	start := time.Now()
	err := rewriteFile(src, dst, patch)
	metrics.MetadataRewriteDuration.Observe(time.Since(start).Seconds())
	metrics.MetadataOperationsTotal.WithLabelValues("rewrite", resultLabel(err)).Inc()
	return err
}

func rewriteFile(src, dst string, patch Patch) error {
	data, err := filesystem.ReadFileWithRetry(src, filesystem.DefaultRetryConfig())
	if err != nil {
		return err
	}

	out, err := Rewrite(data, patch)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(src), err)
	}

	if err := filesystem.WriteAtomic(dst, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	}); err != nil {
		return err
	}

	logging.Debug("Rewrote metadata of %s into %s (%d -> %d bytes)", filepath.Base(src), filepath.Base(dst), len(data), len(out))
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnsupportedContainer):
		return "unsupported"
	case errors.Is(err, ErrCorruptDirectory):
		return "corrupt"
	default:
		return "error"
	}
}
