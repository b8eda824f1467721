package plan

import "github.com/go-chi/chi/v5"

// MountRoutes attaches plan endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/progress", h.Progress)
	r.Post("/{id}/complete", h.Complete)
	r.Get("/patient/{patientID}", h.ListByPatient)
}
