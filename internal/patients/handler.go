package patients

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

// Handler exposes patients over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

const dateLayout = "2006-01-02"

type patientDTO struct {
	ID          int64  `json:"id"`
	BranchID    int64  `json:"branch_id"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func patientResponse(p Patient) patientDTO {
	dto := patientDTO{
		ID:        p.ID,
		BranchID:  p.BranchID,
		FullName:  p.FullName,
		Phone:     p.Phone,
		Gender:    p.Gender,
		Address:   p.Address,
		Note:      p.Note,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.DateOfBirth != nil {
		dto.DateOfBirth = p.DateOfBirth.Format(dateLayout)
	}
	return dto
}

type createPatientRequest struct {
	BranchID    int64  `json:"branch_id" validate:"required"`
	FullName    string `json:"full_name" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	Note        string `json:"note"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPatientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var dob *time.Time
	if req.DateOfBirth != "" {
		d, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date_of_birth must be YYYY-MM-DD")
			return
		}
		dob = &d
	}

	created, err := h.service.Create(r.Context(), CreateInput{
		BranchID:    req.BranchID,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Gender:      req.Gender,
		DateOfBirth: dob,
		Address:     req.Address,
		Note:        req.Note,
	})
	if err != nil {
		h.respondErr(w, "create patient", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, patientResponse(created))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get patient", err)
		return
	}
	httpx.JSON(w, http.StatusOK, patientResponse(p))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "branch query parameter required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	patients, err := h.service.Search(r.Context(), branchID, r.URL.Query().Get("q"), limit)
	if err != nil {
		h.respondErr(w, "search patients", err)
		return
	}
	out := make([]patientDTO, 0, len(patients))
	for _, p := range patients {
		out = append(out, patientResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"patients": out})
}

type accessCodeRequest struct {
	Code string `json:"code" validate:"required,min=6"`
}

func (h *Handler) SetAccessCode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req accessCodeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetAccessCode(r.Context(), id, req.Code); err != nil {
		h.respondErr(w, "set access code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
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
	case errors.Is(err, ErrPatientNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrBranchRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// MountRoutes attaches patient endpoints to r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/search", h.Search)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/access-code", h.SetAccessCode)
}
