package handlers

import (
	"fmt"
	"net/http"
	"time"

	"image-library/internal/descriptions"
	"image-library/internal/logging"
)

type descriptionRequest struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// GetDescriptions returns one entry when path is given, otherwise all
// entries sorted by path.
func (h *Handlers) GetDescriptions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeJSONResponse(w, h.index.Entries(), http.StatusOK)
		return
	}

	path, err := h.resolvePath(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	text, ok := h.index.Get(path)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: no description for %s", errNotFound, raw))
		return
	}
	writeJSONResponse(w, descriptions.Entry{Path: descriptions.Canonical(path), Text: text}, http.StatusOK)
}

// PutDescription sets the description of a path.
func (h *Handlers) PutDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.index.Put(path, req.Text)
	writeJSONResponse(w, descriptions.Entry{Path: descriptions.Canonical(path), Text: req.Text}, http.StatusOK)
}

// DeleteDescription removes the description of a path.
func (h *Handlers) DeleteDescription(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	path, err := h.resolvePath(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.index.Delete(path) {
		writeError(w, r, fmt.Errorf("%w: no description for %s", errNotFound, raw))
		return
	}
	writeJSONStatus(w, "deleted")
}

// SaveDescriptions persists the index to the configured file.
func (h *Handlers) SaveDescriptions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.index.Save(r.Context(), h.descriptionsFile); err != nil {
		writeError(w, r, err)
		return
	}
	logging.Info("Saved %d descriptions to %s in %v", h.index.Len(), h.descriptionsFile, time.Since(start))
	writeJSONResponse(w, map[string]interface{}{"status": "saved", "entries": h.index.Len()}, http.StatusOK)
}

// LoadDescriptions merges the configured file into the index.
func (h *Handlers) LoadDescriptions(w http.ResponseWriter, r *http.Request) {
	n, err := h.index.Load(r.Context(), h.descriptionsFile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, map[string]interface{}{"status": "loaded", "loaded": n, "entries": h.index.Len()}, http.StatusOK)
}
