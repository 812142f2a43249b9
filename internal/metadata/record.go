package metadata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the textual form of EXIF date/time values.
const TimeLayout = "2006:01:02 15:04:05"

var (
	// ErrUnsupportedContainer is returned for input that is neither JPEG nor PNG.
	ErrUnsupportedContainer = errors.New("unsupported metadata container")
	// ErrCorruptDirectory is returned when the container or its tag
	// directory cannot be parsed.
	ErrCorruptDirectory = errors.New("corrupt metadata directory")
	// ErrDirectoryTooLarge is returned when a rewritten directory no longer
	// fits in a single JPEG APP1 segment.
	ErrDirectoryTooLarge = errors.New("metadata directory too large for container")
	// ErrInvalidValue is returned for patch values that cannot be stored.
	ErrInvalidValue = errors.New("invalid metadata value")
)

// Record holds the metadata fields the pipeline understands. Nil fields were
// absent from the file.
type Record struct {
	DateTaken   *time.Time
	Width       *int
	Height      *int
	Description []byte
}

// Patch lists the fields to set during a rewrite. Nil fields are left as they
// are in the source file.
type Patch struct {
	DateTaken   *time.Time
	Width       *int
	Height      *int
	Description []byte
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.DateTaken == nil && p.Width == nil && p.Height == nil && p.Description == nil
}

// Validate checks that every set field can be encoded.
func (p Patch) Validate() error {
	for name, v := range map[string]*int{"width": p.Width, "height": p.Height} {
		if v == nil {
			continue
		}
		if *v <= 0 || int64(*v) > 0xFFFFFFFF {
			return fmt.Errorf("%w: %s %d", ErrInvalidValue, name, *v)
		}
	}
	if p.DateTaken != nil && (p.DateTaken.Year() < 0 || p.DateTaken.Year() > 9999) {
		return fmt.Errorf("%w: year %d", ErrInvalidValue, p.DateTaken.Year())
	}
	return nil
}

// ParseTime parses an EXIF date/time ("yyyy:MM:dd HH:mm:ss"). The result
// carries no zone information and is returned in UTC.
func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.UTC)
}

// FormatTime renders t's wall clock in EXIF form, at second precision.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
