package schedule

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// Handler exposes the appointment day view over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	workdate *shared.WorkdateStore
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, workdate *shared.WorkdateStore) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), workdate: workdate}
}

const dateLayout = "2006-01-02"

type appointmentDTO struct {
	LineID          int64  `json:"line_id"`
	PatientID       *int64 `json:"patient_id,omitempty"`
	PatientName     string `json:"patient_name"`
	DoctorID        *int64 `json:"doctor_id,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
	TreatmentName   string `json:"treatment_name,omitempty"`
	Description     string `json:"description"`
	Date            string `json:"date"`
	At              string `json:"at"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
}

func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := h.branchDate(w, r)
	if !ok {
		return
	}
	appts, err := h.service.Day(r.Context(), branchID, date)
	if err != nil {
		h.respondErr(w, "list day", err)
		return
	}
	out := make([]appointmentDTO, 0, len(appts))
	for _, a := range appts {
		out = append(out, appointmentDTO{
			LineID:          a.LineID,
			PatientID:       a.PatientID,
			PatientName:     a.PatientName,
			DoctorID:        a.DoctorID,
			DoctorName:      a.DoctorName,
			TreatmentName:   a.TreatmentName,
			Description:     a.Description,
			Date:            a.Date.Format(dateLayout),
			At:              a.At,
			DurationMinutes: a.DurationMinutes,
			Status:          a.Status,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := h.branchDate(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), branchID, date)
	if err != nil {
		h.respondErr(w, "day summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.SetStatus(r.Context(), id, ledger.Status(req.Status))
	if err != nil {
		h.respondErr(w, "set status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"line_id": line.ID, "status": string(line.Status)})
}

type rescheduleRequest struct {
	Date            string `json:"date" validate:"required"`
	At              string `json:"at"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
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
	line, err := h.service.Reschedule(r.Context(), id, date, req.At, req.DurationMinutes)
	if err != nil {
		h.respondErr(w, "reschedule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"line_id": line.ID,
		"date":    line.Date.Format(dateLayout),
		"at":      line.AppointmentTime,
	})
}

// Workdate returns the branch's current working date. Unset cells fall back
// to today, so a fresh console always lands somewhere sensible.
func (h *Handler) Workdate(w http.ResponseWriter, r *http.Request) {
	branchID := shared.BranchFromContext(r.Context())
	if branchID == 0 {
		httpx.RespondError(w, shared.ErrBranchRequired)
		return
	}
	date, err := h.workdate.Get(r.Context(), branchID)
	if err != nil {
		h.respondErr(w, "get workdate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"date": date.Format(dateLayout)})
}

type workdateRequest struct {
	Date string `json:"date" validate:"required"`
}

// SetWorkdate records the working date the desk navigated to.
func (h *Handler) SetWorkdate(w http.ResponseWriter, r *http.Request) {
	branchID := shared.BranchFromContext(r.Context())
	if branchID == 0 {
		httpx.RespondError(w, shared.ErrBranchRequired)
		return
	}
	var req workdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	if err := h.workdate.Set(r.Context(), branchID, date); err != nil {
		h.respondErr(w, "set workdate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"date": date.Format(dateLayout)})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) branchDate(w http.ResponseWriter, r *http.Request) (int64, time.Time, bool) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "branch query parameter required")
		return 0, time.Time{}, false
	}
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return 0, time.Time{}, false
	}
	return branchID, date, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrBranchRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// MountRoutes attaches schedule endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/day", h.Day)
	r.Get("/summary", h.Summary)
	r.Get("/workdate", h.Workdate)
	r.Put("/workdate", h.SetWorkdate)
	r.Post("/{id}/status", h.SetStatus)
	r.Post("/{id}/reschedule", h.Reschedule)
}
