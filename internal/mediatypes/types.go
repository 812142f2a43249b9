package mediatypes

import (
	"path/filepath"
	"strings"
)

// Format identifies an image container the pipeline can decode or encode.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
	// FormatUnknown is returned for unrecognized extensions.
	FormatUnknown Format = ""
)

// ImageExtensions maps lowercase file extensions to the image format they carry.
var ImageExtensions = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
	".webp": FormatWebP,
}

// MimeTypes maps formats to their MIME types.
var MimeTypes = map[Format]string{
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",
	FormatWebP: "image/webp",
}

// Ext returns the lowercased extension of path including the leading dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// FormatForPath returns the format implied by the extension of path, or
// FormatUnknown.
func FormatForPath(path string) Format {
	return ImageExtensions[Ext(path)]
}

// IsSupportedImage reports whether path has an extension the pipeline opens.
func IsSupportedImage(path string) bool {
	return FormatForPath(path) != FormatUnknown
}

// CommitFormat returns the format a document is written in when saved to
// path: PNG for ".png", JPEG for everything else.
func CommitFormat(path string) Format {
	if Ext(path) == ".png" {
		return FormatPNG
	}
	return FormatJPEG
}

// ParseFormat accepts a format name ("jpeg", "jpg", "png", ...) case-insensitively.
func ParseFormat(name string) (Format, bool) {
	n := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if n == "jpg" {
		n = "jpeg"
	}
	if n == "tif" {
		n = "tiff"
	}
	f := Format(n)
	if _, ok := MimeTypes[f]; ok {
		return f, true
	}
	return FormatUnknown, false
}

// GetMimeType returns the MIME type for a format.
// Returns "application/octet-stream" if the format is not recognized.
func GetMimeType(f Format) string {
	if mime, ok := MimeTypes[f]; ok {
		return mime
	}
	return "application/octet-stream"
}
