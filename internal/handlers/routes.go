package handlers

import (
	"github.com/gorilla/mux"
)

// Register adds every API route to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET").Name("health")
	r.HandleFunc("/healthz", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/document", h.GetDocument).Methods("GET")
	api.HandleFunc("/document", h.CloseDocument).Methods("DELETE")
	api.HandleFunc("/document/open", h.OpenDocument).Methods("POST")
	api.HandleFunc("/document/image", h.GetDocumentImage).Methods("GET")
	api.HandleFunc("/document/zoom", h.ZoomDocument).Methods("POST")
	api.HandleFunc("/document/crop", h.CropDocument).Methods("POST")
	api.HandleFunc("/document/adjust", h.AdjustDocument).Methods("POST")
	api.HandleFunc("/document/preview", h.PreviewDocument).Methods("POST")
	api.HandleFunc("/document/resize", h.ResizeDocument).Methods("POST")
	api.HandleFunc("/document/commit", h.CommitDocument).Methods("POST")

	api.HandleFunc("/metadata", h.GetMetadata).Methods("GET")
	api.HandleFunc("/metadata", h.RewriteMetadata).Methods("POST")

	api.HandleFunc("/descriptions", h.GetDescriptions).Methods("GET")
	api.HandleFunc("/descriptions", h.PutDescription).Methods("PUT")
	api.HandleFunc("/descriptions", h.DeleteDescription).Methods("DELETE")
	api.HandleFunc("/descriptions/save", h.SaveDescriptions).Methods("POST")
	api.HandleFunc("/descriptions/load", h.LoadDescriptions).Methods("POST")

	api.HandleFunc("/files/rename", h.RenameFile).Methods("POST")

	api.HandleFunc("/paint", h.NewCanvas).Methods("POST")
	api.HandleFunc("/paint", h.CancelCanvas).Methods("DELETE")
	api.HandleFunc("/paint/stroke", h.StrokeCanvas).Methods("POST")
	api.HandleFunc("/paint/finish", h.FinishCanvas).Methods("POST")
}
