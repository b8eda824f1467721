package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dentara-clinic/dentara/internal/money"
	"github.com/dentara-clinic/dentara/internal/platform/httpx"
	"github.com/dentara-clinic/dentara/internal/shared"
	"github.com/dentara-clinic/dentara/internal/undo"
)

// Handler exposes the ledger over JSON.
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

type createLineRequest struct {
	BranchID        int64  `json:"branch_id" validate:"required"`
	PatientID       *int64 `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	DoctorID        *int64 `json:"doctor_id"`
	CashierID       *int64 `json:"cashier_id"`
	TreatmentID     *int64 `json:"treatment_id"`
	InventoryID     *int64 `json:"inventory_id"`
	PlanID          *int64 `json:"plan_id"`
	ItemType        string `json:"item_type" validate:"required,oneof=treatment medicine installment"`
	Description     string `json:"description"`
	UnitPrice       string `json:"unit_price"`
	Quantity        string `json:"quantity"`
	Date            string `json:"date" validate:"required"`
	AppointmentTime string `json:"appointment_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLineRequest
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

	line, err := h.service.CreateLine(r.Context(), CreateLineInput{
		BranchID:        req.BranchID,
		PatientID:       req.PatientID,
		PatientName:     req.PatientName,
		DoctorID:        req.DoctorID,
		CashierID:       req.CashierID,
		TreatmentID:     req.TreatmentID,
		InventoryID:     req.InventoryID,
		PlanID:          req.PlanID,
		ItemType:        ItemType(req.ItemType),
		Description:     req.Description,
		UnitPrice:       req.UnitPrice,
		Quantity:        req.Quantity,
		Date:            date,
		AppointmentTime: req.AppointmentTime,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		h.respondErr(w, "create line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lineResponse(line))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	line, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lineResponse(line))
}

func (h *Handler) Day(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := h.branchDate(w, r)
	if !ok {
		return
	}
	lines, err := h.service.DayLines(r.Context(), branchID, date)
	if err != nil {
		h.respondErr(w, "list day", err)
		return
	}
	httpx.JSON(w, http.StatusOK, linesResponse(lines))
}

func (h *Handler) Visits(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := h.branchDate(w, r)
	if !ok {
		return
	}
	order := OrderSheet
	if r.URL.Query().Get("order") == "recent" {
		order = OrderRecent
	}
	visits, err := h.service.Visits(r.Context(), branchID, date, order)
	if err != nil {
		h.respondErr(w, "list visits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"visits": visitsResponse(visits)})
}

func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch"), 10, 64)
	if err != nil || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "branch query parameter required")
		return
	}
	from, err1 := time.Parse(dateLayout, r.URL.Query().Get("from"))
	to, err2 := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from/to must be YYYY-MM-DD")
		return
	}
	lines, err := h.service.RangeLines(r.Context(), branchID, from, to)
	if err != nil {
		h.respondErr(w, "list range", err)
		return
	}
	httpx.JSON(w, http.StatusOK, linesResponse(lines))
}

func (h *Handler) PatientLines(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid patient id")
		return
	}
	lines, err := h.service.PatientLines(r.Context(), id)
	if err != nil {
		h.respondErr(w, "list patient lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, linesResponse(lines))
}

type valueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	h.applyValueEdit(w, r, h.service.SetUnitPrice)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	h.applyValueEdit(w, r, h.service.SetQuantity)
}

type paymentRequest struct {
	Channel string `json:"channel" validate:"required,oneof=aba cash_usd cash_khr"`
	Amount  string `json:"amount"`
}

func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	line, err := h.service.ApplyPayment(r.Context(), id, money.Channel(req.Channel), req.Amount)
	if err != nil {
		h.respondErr(w, "apply payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lineResponse(line))
}

func (h *Handler) UndoPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UndoPaymentEdit(r.Context()); err != nil {
		h.respondErr(w, "undo payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	grace, err := h.service.VoidLine(r.Context(), id)
	if err != nil {
		h.respondErr(w, "void line", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"status":         "pending",
		"grace_duration": grace.String(),
	})
}

func (h *Handler) UndoVoid(w http.ResponseWriter, r *http.Request) {
	if err := h.service.UndoVoid(r.Context()); err != nil {
		h.respondErr(w, "undo void", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

type groupEditRequest struct {
	LineIDs     []int64 `json:"line_ids" validate:"required,min=1"`
	PatientID   *int64  `json:"patient_id"`
	PatientName *string `json:"patient_name"`
	DoctorID    *int64  `json:"doctor_id"`
	CashierID   *int64  `json:"cashier_id"`
}

func (h *Handler) GroupEdit(w http.ResponseWriter, r *http.Request) {
	var req groupEditRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines, err := h.service.ApplyGroupEdit(r.Context(), req.LineIDs, GroupPatch{
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		DoctorID:    req.DoctorID,
		CashierID:   req.CashierID,
	})
	if err != nil {
		if pe, ok := shared.AsPartialError(err); ok {
			// Some rows were written: report which ones failed instead of
			// pretending the whole edit bounced.
			failures := make([]map[string]string, 0, len(pe.Failures))
			for _, f := range pe.Failures {
				failures = append(failures, map[string]string{"step": f.Step, "error": f.Err.Error()})
			}
			httpx.JSON(w, http.StatusMultiStatus, map[string]any{
				"lines":    linesResponse(lines),
				"failures": failures,
			})
			return
		}
		h.respondErr(w, "group edit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, linesResponse(lines))
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	line, err := h.service.Duplicate(r.Context(), id)
	if err != nil {
		h.respondErr(w, "duplicate line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lineResponse(line))
}

type linkPatientRequest struct {
	PatientName string `json:"patient_name" validate:"required"`
	Date        string `json:"date" validate:"required"`
	PatientID   int64  `json:"patient_id" validate:"required"`
}

func (h *Handler) LinkPatient(w http.ResponseWriter, r *http.Request) {
	var req linkPatientRequest
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
	n, err := h.service.LinkVisitToPatient(r.Context(), req.PatientName, date, req.PatientID)
	if err != nil {
		h.respondErr(w, "link patient", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"linked": n})
}

func (h *Handler) applyValueEdit(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, raw string) (Line, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req valueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	line, err := op(r.Context(), id, req.Value)
	if err != nil {
		h.respondErr(w, "edit line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lineResponse(line))
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
	case errors.Is(err, ErrLineNotFound), errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrBranchRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, undo.ErrNothingPending):
		httpx.Problem(w, http.StatusConflict, "Nothing Pending", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
