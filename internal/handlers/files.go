package handlers

import (
	"net/http"
)

type renameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RenameFile moves a library file. Descriptions follow the file.
func (h *Handlers) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	from, err := h.resolvePath(req.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := h.resolvePath(req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.session.Rename(from, to); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONResponse(w, map[string]string{"status": "renamed", "path": to}, http.StatusOK)
}
