package ledger

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes attaches the ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/day", h.Day)
	r.Get("/visits", h.Visits)
	r.Get("/range", h.Range)
	r.Get("/patient/{patientID}", h.PatientLines)
	r.Get("/{id}", h.Get)

	r.Post("/", h.Create)
	r.Post("/{id}/price", h.SetPrice)
	r.Post("/{id}/quantity", h.SetQuantity)
	r.Post("/{id}/payment", h.Payment)
	r.Post("/{id}/void", h.Void)
	r.Post("/{id}/duplicate", h.Duplicate)
	r.Post("/group-edit", h.GroupEdit)
	r.Post("/link-patient", h.LinkPatient)
	r.Post("/payment/undo", h.UndoPayment)
	r.Post("/void/undo", h.UndoVoid)
}
