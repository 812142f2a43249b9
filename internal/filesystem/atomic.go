package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"image-library/internal/logging"
)

// PartialWriteError reports a write-then-replace sequence whose replace
// step failed. The new content was fully written to Temp, but Dest was not
// replaced. Removed tells whether Temp was cleaned up afterwards.
type PartialWriteError struct {
	Dest    string
	Temp    string
	Removed bool
	Err     error
}

func (e *PartialWriteError) Error() string {
	state := "left in place"
	if e.Removed {
		state = "removed"
	}
	return fmt.Sprintf("replace %s failed (temporary file %s %s): %v", e.Dest, e.Temp, state, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// TempPath returns a unique, hidden sibling path for dest. Keeping the
// temporary artifact in the destination directory keeps the final rename on
// one filesystem.
func TempPath(dest string) string {
	dir, base := filepath.Split(dest)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.NewString()))
}

// Replace renames temp over dest. On failure temp is removed and a
// *PartialWriteError is returned; temp never silently becomes dest.
func Replace(temp, dest string) error {
	start := time.Now()
	err := os.Rename(temp, dest)
	if obs := observe(); obs != nil {
		obs.ObserveOperation("rename", time.Since(start).Seconds(), err)
	}
	if err == nil {
		return nil
	}

	removeErr := os.Remove(temp)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		logging.Warn("failed to remove temporary file %s: %v", temp, removeErr)
	}
	return &PartialWriteError{Dest: dest, Temp: temp, Removed: removeErr == nil, Err: err}
}

// WriteAtomic streams content produced by write into a temporary sibling of
// dest and renames it into place. If dest already exists its permission bits
// are carried over. On any failure dest is left untouched.
func WriteAtomic(dest string, write func(w io.Writer) error) error {
	start := time.Now()
	temp := TempPath(dest)

	mode := os.FileMode(0o644)
	if info, err := os.Stat(dest); err == nil {
		mode = info.Mode().Perm()
	}

	err := writeTemp(temp, mode, write)
	if obs := observe(); obs != nil {
		obs.ObserveOperation("write", time.Since(start).Seconds(), err)
	}
	if err != nil {
		if removeErr := os.Remove(temp); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logging.Warn("failed to remove temporary file %s: %v", temp, removeErr)
		}
		return err
	}

	return Replace(temp, dest)
}

func writeTemp(path string, mode os.FileMode, write func(w io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}
