package docgen

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/patients"
	"github.com/dentara-clinic/dentara/internal/plan"
	"github.com/dentara-clinic/dentara/internal/platform/httpx"
)

// LedgerPort is the slice of the ledger service documents are built from.
type LedgerPort interface {
	PatientLines(ctx context.Context, patientID int64) ([]ledger.Line, error)
}

// PlansPort resolves the plan behind a payment agreement.
type PlansPort interface {
	Get(ctx context.Context, id int64) (plan.Plan, error)
}

// PatientsPort resolves the patient named on a document.
type PatientsPort interface {
	Get(ctx context.Context, id int64) (patients.Patient, error)
}

// Handler exposes print-ready document models over JSON.
type Handler struct {
	logger   *slog.Logger
	builder  *Builder
	ledger   LedgerPort
	plans    PlansPort
	patients PatientsPort
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, builder *Builder, ledgerPort LedgerPort, plans PlansPort, pts PatientsPort) *Handler {
	return &Handler{logger: logger, builder: builder, ledger: ledgerPort, plans: plans, patients: pts}
}

const dateLayout = "2006-01-02"

// Quotation builds a quotation from a patient's treatment and medicine
// lines, optionally limited to one visit date.
func (h *Handler) Quotation(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(r.URL.Query().Get("patient_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "patient_id is required")
		return
	}
	var onDate *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		onDate = &d
	}

	patient, err := h.patients.Get(r.Context(), patientID)
	if err != nil {
		h.respondErr(w, "quotation patient", err)
		return
	}
	lines, err := h.ledger.PatientLines(r.Context(), patientID)
	if err != nil {
		h.respondErr(w, "quotation lines", err)
		return
	}
	quoted := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		if l.ItemType == ledger.ItemInstallment {
			continue
		}
		if onDate != nil && !l.Date.Equal(*onDate) {
			continue
		}
		quoted = append(quoted, l)
	}

	doc := h.builder.Quotation(patient.FullName, quoted, time.Now().UTC())
	httpx.JSON(w, http.StatusOK, documentResponse(doc))
}

// Agreement builds the installment agreement for one payment plan.
func (h *Handler) Agreement(w http.ResponseWriter, r *http.Request) {
	planID, err := strconv.ParseInt(chi.URLParam(r, "planID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid plan id")
		return
	}
	p, err := h.plans.Get(r.Context(), planID)
	if err != nil {
		h.respondErr(w, "agreement plan", err)
		return
	}
	patient, err := h.patients.Get(r.Context(), p.PatientID)
	if err != nil {
		h.respondErr(w, "agreement patient", err)
		return
	}

	doc := h.builder.PaymentAgreement(patient.FullName, p, time.Now().UTC())
	httpx.JSON(w, http.StatusOK, documentResponse(doc))
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, plan.ErrPlanNotFound), errors.Is(err, patients.ErrPatientNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// MountRoutes wires document routes onto a router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quotation", h.Quotation)
	r.Get("/agreement/{planID}", h.Agreement)
}
