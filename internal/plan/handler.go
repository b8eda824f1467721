package plan

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// Handler exposes payment plans over JSON.
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

type createPlanRequest struct {
	BranchID      int64  `json:"branch_id" validate:"required"`
	PatientID     int64  `json:"patient_id" validate:"required"`
	DoctorID      *int64 `json:"doctor_id"`
	Label         string `json:"label"`
	TreatmentName string `json:"treatment_name"`
	Total         string `json:"total" validate:"required"`
	Deposit       string `json:"deposit"`
	Monthly       string `json:"monthly" validate:"required"`
	StartDate     string `json:"start_date" validate:"required"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "start_date must be YYYY-MM-DD")
		return
	}

	created, err := h.service.CreatePlan(r.Context(), CreatePlanInput{
		BranchID:      req.BranchID,
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		Label:         req.Label,
		TreatmentName: req.TreatmentName,
		Total:         req.Total,
		Deposit:       req.Deposit,
		Monthly:       req.Monthly,
		StartDate:     start,
	})
	if err != nil {
		if pe, ok := shared.AsPartialError(err); ok {
			failures := make([]map[string]string, 0, len(pe.Failures))
			for _, f := range pe.Failures {
				failures = append(failures, map[string]string{"step": f.Step, "error": f.Err.Error()})
			}
			httpx.JSON(w, http.StatusMultiStatus, map[string]any{
				"plan":     planResponse(created),
				"failures": failures,
			})
			return
		}
		h.respondErr(w, "create plan", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, planResponse(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get plan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, planResponse(p))
}

func (h *Handler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid patient id")
		return
	}
	plans, err := h.service.ListByPatient(r.Context(), patientID, Status(r.URL.Query().Get("status")))
	if err != nil {
		h.respondErr(w, "list plans", err)
		return
	}
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asOf := time.Now().UTC()
	if h.workdate != nil {
		if branchID := shared.BranchFromContext(r.Context()); branchID != 0 {
			if d, err := h.workdate.Get(r.Context(), branchID); err == nil {
				asOf = d
			}
		}
	}
	prog, err := h.service.Progress(r.Context(), id, asOf)
	if err != nil {
		h.respondErr(w, "plan progress", err)
		return
	}
	httpx.JSON(w, http.StatusOK, progressResponse(prog))
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Complete(r.Context(), id)
	if err != nil {
		h.respondErr(w, "complete plan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, planResponse(p))
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyCompleted):
		httpx.Problem(w, http.StatusConflict, "Already Completed", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrBranchRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
