package handlers

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strconv"

	"image-library/internal/document"
	"image-library/internal/editing"
	"image-library/internal/geometry"
	"image-library/internal/logging"
	"image-library/internal/mediatypes"

	"github.com/disintegration/imaging"
)

type openRequest struct {
	Path  string `json:"path"`
	Async bool   `json:"async"`
}

type zoomRequest struct {
	Zoom      *float64       `json:"zoom,omitempty"`
	Step      string         `json:"step,omitempty"`
	Fit       bool           `json:"fit,omitempty"`
	Container *geometry.Size `json:"container,omitempty"`
}

type resizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type commitRequest struct {
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
}

// GetDocument returns the state of the open document.
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, doc.State(), http.StatusOK)
}

// CloseDocument discards the open document.
func (h *Handlers) CloseDocument(w http.ResponseWriter, _ *http.Request) {
	h.session.Close()
	writeJSONStatus(w, "closed")
}

// OpenDocument decodes a library image. With async set the decode runs in
// the background and the response is 202; the newest request wins.
func (h *Handlers) OpenDocument(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())

	if req.Async {
		results := h.session.OpenAsync(ctx, path)
		go func() {
			res := <-results
			if res.Err != nil {
				logging.Warn("Background open of %s failed: %v", res.Path, res.Err)
			}
		}()
		writeJSONResponse(w, map[string]string{"status": "loading", "path": path}, http.StatusAccepted)
		return
	}

	doc, err := h.session.Open(ctx, path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, doc.State(), http.StatusOK)
}

// GetDocumentImage streams the working buffer as PNG. With display=true
// the image is scaled to the current zoom.
func (h *Handlers) GetDocumentImage(w http.ResponseWriter, r *http.Request) {
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}

	var img image.Image = doc.Image()
	if display, _ := strconv.ParseBool(r.URL.Query().Get("display")); display {
		st := doc.State()
		if st.Display.Known() && st.Display != st.Size {
			img = imaging.Resize(img, st.Display.Width, st.Display.Height, imaging.Linear)
		}
	}

	writePNG(w, r, img)
}

// ZoomDocument sets an explicit zoom, steps in or out, or fits the image
// into a container.
func (h *Handlers) ZoomDocument(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch {
	case req.Fit:
		container := h.container
		if req.Container != nil {
			container = *req.Container
		}
		doc.Fit(container)
	case req.Step == "in":
		doc.ZoomIn()
	case req.Step == "out":
		doc.ZoomOut()
	case req.Zoom != nil:
		if err := doc.SetZoom(*req.Zoom); err != nil {
			writeError(w, r, err)
			return
		}
	default:
		writeError(w, r, fmt.Errorf("%w: one of zoom, step or fit is required", errBadRequest))
		return
	}

	writeJSONResponse(w, doc.State(), http.StatusOK)
}

// CropDocument crops to a rectangle given in display coordinates.
func (h *Handlers) CropDocument(w http.ResponseWriter, r *http.Request) {
	var rect geometry.Rect
	if err := decodeJSON(w, r, &rect); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutate(w, r, func(doc *document.Document) error {
		return doc.CropDisplay(rect)
	})
}

// AdjustDocument applies brightness, contrast and saturation to the baseline.
func (h *Handlers) AdjustDocument(w http.ResponseWriter, r *http.Request) {
	var adj editing.Adjustment
	if err := decodeJSON(w, r, &adj); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutate(w, r, func(doc *document.Document) error {
		return doc.Adjust(adj)
	})
}

// ResizeDocument scales the working buffer to an exact size.
func (h *Handlers) ResizeDocument(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.mutate(w, r, func(doc *document.Document) error {
		return doc.Resize(req.Width, req.Height)
	})
}

// PreviewDocument renders an adjustment without applying it.
func (h *Handlers) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	var adj editing.Adjustment
	if err := decodeJSON(w, r, &adj); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}
	img, err := doc.Preview(adj)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePNG(w, r, img)
}

// CommitDocument encodes the working buffer to a library path, by default
// the one it was opened from.
func (h *Handlers) CommitDocument(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}

	dest := doc.Path()
	if req.Path != "" || dest == "" {
		if dest, err = h.resolvePath(req.Path); err != nil {
			writeError(w, r, err)
			return
		}
	}

	format := mediatypes.FormatUnknown
	if req.Format != "" {
		f, ok := mediatypes.ParseFormat(req.Format)
		if !ok {
			writeError(w, r, fmt.Errorf("%w: unknown format %q", errBadRequest, req.Format))
			return
		}
		format = f
	}

	if err := h.session.Commit(r.Context(), doc, dest, format); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, doc.State(), http.StatusOK)
}

func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, fn func(*document.Document) error) {
	doc, err := h.session.Document()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := fn(doc); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, doc.State(), http.StatusOK)
}

func writePNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	w.Header().Set("Content-Type", mediatypes.GetMimeType(mediatypes.FormatPNG))
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		logging.Error("%s %s: failed to write PNG: %v", r.Method, r.URL.Path, err)
	}
}
