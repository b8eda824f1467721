package inventory

import "github.com/go-chi/chi/v5"

// MountRoutes attaches inventory endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/history", h.History)
	r.Post("/{id}/adjust", h.Adjust)
}
