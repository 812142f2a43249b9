package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"image-library/internal/codec"
	"image-library/internal/descriptions"
	"image-library/internal/document"
	"image-library/internal/editing"
	"image-library/internal/filesystem"
	"image-library/internal/geometry"
	"image-library/internal/logging"
	"image-library/internal/metadata"
	"image-library/internal/paint"
	"image-library/internal/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	errBadRequest  = errors.New("bad request")
	errInvalidPath = errors.New("path outside library")
	errNotFound    = errors.New("not found")
	errNoCanvas    = errors.New("no canvas is open")
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONResponse writes v with the given status code.
func writeJSONResponse(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]string{"error": message}, statusCode)
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	writeJSONResponse(w, map[string]string{"status": status}, http.StatusOK)
}

// writeError maps err to a status code and writes it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s rejected (%d): %v", r.Method, r.URL.Path, status, err)
	}
	writeJSONError(w, err.Error(), status)
}

func statusFor(err error) int {
	var (
		decodeErr  *codec.DecodeError
		encodeErr  *codec.EncodeError
		persistErr *descriptions.PersistenceError
		partialErr *filesystem.PartialWriteError
	)

	switch {
	case errors.As(err, &persistErr), errors.As(err, &partialErr):
		return http.StatusInternalServerError
	case errors.Is(err, os.ErrNotExist), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.As(err, &decodeErr), errors.As(err, &encodeErr),
		errors.Is(err, codec.ErrUnsupportedFormat),
		errors.Is(err, metadata.ErrUnsupportedContainer),
		errors.Is(err, metadata.ErrCorruptDirectory),
		errors.Is(err, metadata.ErrDirectoryTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest), errors.Is(err, errInvalidPath),
		errors.Is(err, geometry.ErrEmptyRegion),
		errors.Is(err, geometry.ErrInvalidZoom),
		errors.Is(err, editing.ErrInvalidRegion),
		errors.Is(err, editing.ErrAdjustmentRange),
		errors.Is(err, editing.ErrInvalidSize),
		errors.Is(err, document.ErrNoSelection),
		errors.Is(err, document.ErrSelectionTooSmall),
		errors.Is(err, metadata.ErrInvalidValue),
		errors.Is(err, paint.ErrInvalidCanvas):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoDocument), errors.Is(err, session.ErrExists),
		errors.Is(err, session.ErrSuperseded), errors.Is(err, paint.ErrFinished),
		errors.Is(err, errNoCanvas):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

// resolvePath turns a library-relative path into an absolute path inside
// the library directory.
func (h *Handlers) resolvePath(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: path is required", errBadRequest)
	}

	full := rel
	if !filepath.IsAbs(rel) {
		full = filepath.Join(h.libraryDir, rel)
	}
	abs, err := filepath.Abs(full)
	if err != nil || !isSubPath(h.libraryDir, abs) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, rel)
	}
	return abs, nil
}

// isSubPath checks if child is inside parent directory.
func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
