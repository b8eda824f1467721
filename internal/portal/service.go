package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/patients"
	"github.com/dentara-clinic/dentara/internal/plan"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// PatientsPort verifies portal credentials.
type PatientsPort interface {
	VerifyAccess(ctx context.Context, phone, code string) (patients.Patient, error)
}

// LedgerPort reads and creates the patient's own lines.
type LedgerPort interface {
	PatientLines(ctx context.Context, patientID int64) ([]ledger.Line, error)
	CreateLine(ctx context.Context, input ledger.CreateLineInput) (ledger.Line, error)
}

// PlansPort reads the patient's plans.
type PlansPort interface {
	ListByPatient(ctx context.Context, patientID int64, status plan.Status) ([]plan.Plan, error)
	Progress(ctx context.Context, planID int64, asOf time.Time) (plan.Progress, error)
}

// Service is the patient self-service surface. Everything is scoped to the
// authenticated patient; there is no cross-patient read path here.
type Service struct {
	patients PatientsPort
	ledger   LedgerPort
	plans    PlansPort
}

// NewService builds the portal Service.
func NewService(patientsSvc PatientsPort, ledgerSvc LedgerPort, plansSvc PlansPort) *Service {
	return &Service{patients: patientsSvc, ledger: ledgerSvc, plans: plansSvc}
}

// Authenticate resolves portal credentials to a patient.
func (s *Service) Authenticate(ctx context.Context, phone, code string) (patients.Patient, error) {
	return s.patients.VerifyAccess(ctx, phone, code)
}

// OwnLines lists the patient's ledger lines.
func (s *Service) OwnLines(ctx context.Context, p patients.Patient) ([]ledger.Line, error) {
	return s.ledger.PatientLines(ctx, p.ID)
}

// OwnPlans lists the patient's plans with progress.
func (s *Service) OwnPlans(ctx context.Context, p patients.Patient) ([]plan.Progress, error) {
	plans, err := s.plans.ListByPatient(ctx, p.ID, "")
	if err != nil {
		return nil, err
	}
	out := make([]plan.Progress, 0, len(plans))
	asOf := time.Now().UTC()
	for _, pl := range plans {
		prog, err := s.plans.Progress(ctx, pl.ID, asOf)
		if err != nil {
			return nil, err
		}
		out = append(out, prog)
	}
	return out, nil
}

// AppointmentRequest is a patient-initiated booking.
type AppointmentRequest struct {
	Date time.Time
	At   string
	Note string
}

// RequestAppointment creates a pending, unpriced treatment line on the
// patient's branch; the desk prices and confirms it later.
func (s *Service) RequestAppointment(ctx context.Context, p patients.Patient, req AppointmentRequest) (ledger.Line, error) {
	if req.Date.IsZero() {
		return ledger.Line{}, fmt.Errorf("%w: appointment date required", shared.ErrValidation)
	}
	description := "Appointment request"
	if req.Note != "" {
		description = fmt.Sprintf("Appointment request: %s", req.Note)
	}
	return s.ledger.CreateLine(ctx, ledger.CreateLineInput{
		BranchID:        p.BranchID,
		PatientID:       &p.ID,
		PatientName:     p.FullName,
		ItemType:        ledger.ItemTreatment,
		Description:     description,
		UnitPrice:       "0",
		Quantity:        "1",
		Date:            req.Date,
		AppointmentTime: req.At,
	})
}
