package handlers

import (
	"fmt"
	"image/color"
	"net/http"
	"strconv"
	"strings"

	"image-library/internal/geometry"
	"image-library/internal/paint"
)

type canvasRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type strokeRequest struct {
	Points []geometry.Point `json:"points"`
	Color  string           `json:"color,omitempty"`
	Size   int              `json:"size,omitempty"`
}

type finishRequest struct {
	Path string `json:"path,omitempty"`
}

// NewCanvas starts a blank canvas, discarding any unfinished one.
func (h *Handlers) NewCanvas(w http.ResponseWriter, r *http.Request) {
	var req canvasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := paint.New(req.Width, req.Height)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.canvasMu.Lock()
	if h.canvas != nil {
		h.canvas.Cancel()
	}
	h.canvas = c
	h.canvasMu.Unlock()

	writeJSONResponse(w, geometry.Size{Width: req.Width, Height: req.Height}, http.StatusCreated)
}

// CancelCanvas discards the unfinished canvas.
func (h *Handlers) CancelCanvas(w http.ResponseWriter, r *http.Request) {
	h.canvasMu.Lock()
	c := h.canvas
	h.canvas = nil
	h.canvasMu.Unlock()

	if c == nil {
		writeError(w, r, errNoCanvas)
		return
	}
	c.Cancel()
	writeJSONStatus(w, "cancelled")
}

// StrokeCanvas paints one freehand stroke, optionally changing the brush
// first.
func (h *Handlers) StrokeCanvas(w http.ResponseWriter, r *http.Request) {
	var req strokeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.currentCanvas()
	if err != nil {
		writeError(w, r, err)
		return
	}

	if req.Color != "" {
		col, err := parseHexColor(req.Color)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := c.SetColor(col); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Size != 0 {
		if err := c.SetBrushSize(req.Size); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := c.Stroke(req.Points); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// FinishCanvas makes the painting the open document.
func (h *Handlers) FinishCanvas(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	path := ""
	if req.Path != "" {
		p, err := h.resolvePath(req.Path)
		if err != nil {
			writeError(w, r, err)
			return
		}
		path = p
	}

	h.canvasMu.Lock()
	c := h.canvas
	h.canvas = nil
	h.canvasMu.Unlock()
	if c == nil {
		writeError(w, r, errNoCanvas)
		return
	}

	doc, err := h.session.Install(path, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, doc.State(), http.StatusOK)
}

func (h *Handlers) currentCanvas() (*paint.Canvas, error) {
	h.canvasMu.Lock()
	defer h.canvasMu.Unlock()
	if h.canvas == nil {
		return nil, errNoCanvas
	}
	return h.canvas, nil
}

// parseHexColor accepts #rrggbb or rrggbb.
func parseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: color %q", errBadRequest, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: color %q", errBadRequest, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}
