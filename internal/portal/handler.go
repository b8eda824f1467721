package portal

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dentara-clinic/dentara/internal/patients"
	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// Handler exposes the patient portal. Every request carries the phone and
// access code headers; there is no session state.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

const (
	headerPhone = "X-Portal-Phone"
	headerCode  = "X-Portal-Code"
	dateLayout  = "2006-01-02"
)

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (patients.Patient, bool) {
	phone := r.Header.Get(headerPhone)
	code := r.Header.Get(headerCode)
	if phone == "" || code == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "portal credentials required")
		return patients.Patient{}, false
	}
	p, err := h.service.Authenticate(r.Context(), phone, code)
	if err != nil {
		if errors.Is(err, shared.ErrForbidden) || errors.Is(err, patients.ErrPatientNotFound) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid phone or access code")
			return patients.Patient{}, false
		}
		h.logger.Error("portal auth failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return patients.Patient{}, false
	}
	return p, true
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":        p.ID,
		"full_name": p.FullName,
		"phone":     p.Phone,
	})
}

func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	lines, err := h.service.OwnLines(r.Context(), p)
	if err != nil {
		h.logger.Error("portal ledger failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]any{
			"id":               l.ID,
			"description":      l.Description,
			"item_type":        string(l.ItemType),
			"total_price":      l.TotalPrice.StringFixed(2),
			"amount_paid":      l.AmountPaid.StringFixed(2),
			"amount_remaining": l.AmountRemaining.StringFixed(2),
			"date":             l.Date.Format(dateLayout),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": out})
}

func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	progress, err := h.service.OwnPlans(r.Context(), p)
	if err != nil {
		h.logger.Error("portal plans failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(progress))
	for _, prog := range progress {
		out = append(out, map[string]any{
			"id":                 prog.Plan.ID,
			"label":              prog.Plan.Label,
			"status":             string(prog.Plan.Status),
			"total_amount":       prog.Plan.TotalAmount.StringFixed(2),
			"paid_total":         prog.PaidTotal.StringFixed(2),
			"remaining_total":    prog.RemainingTotal.StringFixed(2),
			"installments_paid":  prog.InstallmentsPaid,
			"installments_total": prog.InstallmentsTotal,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"plans": out})
}

type appointmentRequest struct {
	Date string `json:"date" validate:"required"`
	At   string `json:"at"`
	Note string `json:"note" validate:"max=200"`
}

func (h *Handler) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req appointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	line, err := h.service.RequestAppointment(r.Context(), p, AppointmentRequest{
		Date: date,
		At:   req.At,
		Note: req.Note,
	})
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("portal appointment failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"line_id": line.ID,
		"date":    line.Date.Format(dateLayout),
		"at":      line.AppointmentTime,
		"status":  string(line.Status),
	})
}

// MountRoutes attaches portal endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Get("/ledger", h.Ledger)
	r.Get("/plans", h.Plans)
	r.Post("/appointments", h.RequestAppointment)
}
