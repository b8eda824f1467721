package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/money"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// RepositoryPort abstracts plan persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, p Plan) (Plan, error)
	GetByID(ctx context.Context, id int64) (Plan, error)
	ListByPatient(ctx context.Context, patientID int64, status Status) ([]Plan, error)
	ListByStatus(ctx context.Context, status Status) ([]Plan, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

// LedgerPort is the slice of the ledger service the plan engine drives.
type LedgerPort interface {
	CreateLine(ctx context.Context, input ledger.CreateLineInput) (ledger.Line, error)
	PatientLines(ctx context.Context, patientID int64) ([]ledger.Line, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service creates payment plans and materialises their ledger lines.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	ledger LedgerPort
	audit  AuditPort
}

// NewService builds the plan Service.
func NewService(logger *slog.Logger, repo RepositoryPort, ledgerSvc LedgerPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, ledger: ledgerSvc, audit: audit}
}

// CreatePlanInput carries raw desk input; money fields arrive as typed text.
// An empty deposit means "suggest one from the treatment name"; an explicit
// value, including zero, is taken as-is.
type CreatePlanInput struct {
	BranchID      int64
	PatientID     int64
	DoctorID      *int64
	Label         string
	TreatmentName string
	Total         string
	Deposit       string
	Monthly       string
	StartDate     time.Time
}

// CreatePlan inserts the plan row, then spawns the deposit line and one
// installment line per month. Line creation runs through the unit-of-work:
// lines are independent inserts, a failure partway leaves the earlier lines
// in place and is reported, never rolled back or swallowed.
func (s *Service) CreatePlan(ctx context.Context, input CreatePlanInput) (Plan, error) {
	if input.BranchID == 0 {
		return Plan{}, fmt.Errorf("%w: %s", shared.ErrValidation, shared.ErrBranchRequired)
	}
	if input.PatientID == 0 {
		return Plan{}, fmt.Errorf("%w: plan requires a patient", shared.ErrValidation)
	}

	total := money.ParsePrice(input.Total)
	monthly := money.ParsePrice(input.Monthly)
	deposit := money.ParsePrice(input.Deposit)
	if strings.TrimSpace(input.Deposit) == "" {
		deposit = SuggestDeposit(input.TreatmentName, total)
	}

	months, err := DurationMonths(total, deposit, monthly)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %s", shared.ErrValidation, err)
	}
	dates, err := InstallmentDates(input.StartDate, months)
	if err != nil {
		return Plan{}, err
	}
	amounts := InstallmentAmounts(monthly, months)

	label := input.Label
	if label == "" {
		label = input.TreatmentName
	}
	created, err := s.repo.Insert(ctx, Plan{
		BranchID:       input.BranchID,
		PatientID:      input.PatientID,
		DoctorID:       input.DoctorID,
		Label:          label,
		TotalAmount:    total,
		DepositAmount:  deposit,
		MonthlyAmount:  monthly,
		DurationMonths: months,
		StartDate:      input.StartDate,
		Status:         StatusActive,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("plan: insert: %w", err)
	}

	uow := shared.NewUnitOfWork("plan lines")
	if deposit.IsPositive() {
		uow.Add("deposit", s.lineStep(created, ledger.ItemTreatment, "Deposit", deposit, input.StartDate))
	}
	for i := range dates {
		name := fmt.Sprintf("Month %d/%d", i+1, months)
		uow.Add(name, s.lineStep(created, ledger.ItemInstallment, name, amounts[i], dates[i]))
	}

	if err := uow.Run(ctx); err != nil {
		if retryErr := uow.Retry(ctx); retryErr != nil {
			if pe, ok := shared.AsPartialError(retryErr); ok {
				s.logger.Error("plan created with missing lines",
					slog.Int64("plan", created.ID),
					slog.Int("failed", len(pe.Failures)),
					slog.Int("total", pe.Attempted))
			}
			return created, retryErr
		}
	}

	s.record(ctx, "plan:create", created.ID, map[string]any{
		"total":   total.String(),
		"deposit": deposit.String(),
		"months":  months,
	})
	return created, nil
}

func (s *Service) lineStep(p Plan, itemType ledger.ItemType, description string, amount decimal.Decimal, date time.Time) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.ledger.CreateLine(ctx, ledger.CreateLineInput{
			BranchID:    p.BranchID,
			PatientID:   &p.PatientID,
			DoctorID:    p.DoctorID,
			PlanID:      &p.ID,
			ItemType:    itemType,
			Description: description,
			UnitPrice:   amount.String(),
			Quantity:    "1",
			Date:        date,
		})
		return err
	}
}

// Get fetches one plan.
func (s *Service) Get(ctx context.Context, id int64) (Plan, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPatient lists a patient's plans, optionally filtered by status.
func (s *Service) ListByPatient(ctx context.Context, patientID int64, status Status) ([]Plan, error) {
	return s.repo.ListByPatient(ctx, patientID, status)
}

// Progress computes a plan's paid-off state from its ledger lines as of a
// reference date (the branch workdate, or today).
func (s *Service) Progress(ctx context.Context, planID int64, asOf time.Time) (Progress, error) {
	p, err := s.repo.GetByID(ctx, planID)
	if err != nil {
		return Progress{}, err
	}
	lines, err := s.ledger.PatientLines(ctx, p.PatientID)
	if err != nil {
		return Progress{}, fmt.Errorf("plan: load lines: %w", err)
	}

	prog := Progress{Plan: p, PaidTotal: decimal.Zero, RemainingTotal: decimal.Zero}
	for _, l := range lines {
		if l.PlanID == nil || *l.PlanID != p.ID {
			continue
		}
		prog.InstallmentsTotal++
		prog.PaidTotal = prog.PaidTotal.Add(l.AmountPaid)
		prog.RemainingTotal = prog.RemainingTotal.Add(l.AmountRemaining)
		if l.FullyPaid() {
			prog.InstallmentsPaid++
		} else if l.Date.Before(asOf) {
			prog.OverdueCount++
		}
	}
	return prog, nil
}

// Complete flips the plan to completed. This is always an explicit action:
// nothing in the engine completes a plan on its own, even at zero remaining.
func (s *Service) Complete(ctx context.Context, id int64) (Plan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if p.Status == StatusCompleted {
		return p, ErrAlreadyCompleted
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
		return Plan{}, fmt.Errorf("plan: complete: %w", err)
	}
	p.Status = StatusCompleted
	s.record(ctx, "plan:complete", id, nil)
	return p, nil
}

// ActivePlans lists every active plan, for the overdue scan job.
func (s *Service) ActivePlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListByStatus(ctx, StatusActive)
}

func (s *Service) record(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "payment_plan",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
