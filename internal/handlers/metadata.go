package handlers

import (
	"fmt"
	"net/http"

	"image-library/internal/metadata"
)

// MetadataResponse is the JSON form of a metadata record. Absent fields are
// omitted.
type MetadataResponse struct {
	Path        string  `json:"path"`
	DateTaken   string  `json:"dateTaken,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Description *string `json:"description,omitempty"`
}

type rewriteRequest struct {
	Source      string  `json:"source"`
	Destination string  `json:"destination,omitempty"`
	DateTaken   *string `json:"dateTaken,omitempty"`
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (req rewriteRequest) patch() (metadata.Patch, error) {
	p := metadata.Patch{Width: req.Width, Height: req.Height}
	if req.DateTaken != nil {
		t, err := metadata.ParseTime(*req.DateTaken)
		if err != nil {
			return p, fmt.Errorf("%w: dateTaken must look like %s", metadata.ErrInvalidValue, metadata.TimeLayout)
		}
		p.DateTaken = &t
	}
	if req.Description != nil {
		p.Description = []byte(*req.Description)
	}
	return p, p.Validate()
}

func newMetadataResponse(path string, rec metadata.Record) MetadataResponse {
	resp := MetadataResponse{Path: path, Width: rec.Width, Height: rec.Height}
	if rec.DateTaken != nil {
		resp.DateTaken = metadata.FormatTime(*rec.DateTaken)
	}
	if rec.Description != nil {
		d := string(rec.Description)
		resp.Description = &d
	}
	return resp
}

// GetMetadata reads the embedded metadata of a library file.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	path, err := h.resolvePath(r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := metadata.ReadFile(path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, newMetadataResponse(path, rec), http.StatusOK)
}

// RewriteMetadata patches metadata fields of source into destination (or
// in place) without re-encoding pixels.
func (h *Handlers) RewriteMetadata(w http.ResponseWriter, r *http.Request) {
	var req rewriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	src, err := h.resolvePath(req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dst := src
	if req.Destination != "" {
		if dst, err = h.resolvePath(req.Destination); err != nil {
			writeError(w, r, err)
			return
		}
	}

	patch, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.session.RewriteMetadata(src, dst, patch); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := metadata.ReadFile(dst)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, newMetadataResponse(dst, rec), http.StatusOK)
}
