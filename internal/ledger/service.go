package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentara-clinic/dentara/internal/money"
	"github.com/dentara-clinic/dentara/internal/shared"
	"github.com/dentara-clinic/dentara/internal/undo"
)

// RepositoryPort abstracts ledger persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, line Line) (Line, error)
	InsertBulk(ctx context.Context, lines []Line) ([]Line, error)
	GetByID(ctx context.Context, id int64) (Line, error)
	ListByBranchDate(ctx context.Context, branchID int64, date time.Time) ([]Line, error)
	ListByBranchRange(ctx context.Context, branchID int64, from, to time.Time) ([]Line, error)
	ListByPatient(ctx context.Context, patientID int64) ([]Line, error)
	ListByIDs(ctx context.Context, ids []int64) ([]Line, error)
	Update(ctx context.Context, line Line) error
	LinkVisitToPatient(ctx context.Context, patientName string, date time.Time, patientID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
	DeleteByIDs(ctx context.Context, ids []int64) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReconcilerPort observes persisted line updates. The inventory package
// implements it to deduct stock when a medicine line pays off.
type ReconcilerPort interface {
	LineSaved(ctx context.Context, before, after Line) error
}

// Service maintains the ledger-line invariants and coordinates visits,
// payments, voids and the reconciliation hook.
type Service struct {
	logger     *slog.Logger
	repo       RepositoryPort
	audit      AuditPort
	reconciler ReconcilerPort
	undo       *undo.Controller
	// rate is the configured KHR/USD exchange rate applied to a line's
	// first payment; lines that already paid keep their captured rate.
	rate decimal.Decimal
}

// NewService builds the ledger Service.
func NewService(logger *slog.Logger, repo RepositoryPort, audit AuditPort, reconciler ReconcilerPort, undoCtl *undo.Controller, exchangeRate decimal.Decimal) *Service {
	return &Service{
		logger:     logger,
		repo:       repo,
		audit:      audit,
		reconciler: reconciler,
		undo:       undoCtl,
		rate:       exchangeRate,
	}
}

// CreateLineInput carries raw desk input for a new line. Price and quantity
// arrive as typed text and are sanitised here, before any datastore call.
type CreateLineInput struct {
	BranchID        int64
	PatientID       *int64
	PatientName     string
	DoctorID        *int64
	CashierID       *int64
	TreatmentID     *int64
	InventoryID     *int64
	PlanID          *int64
	ItemType        ItemType
	Description     string
	UnitPrice       string
	Quantity        string
	Date            time.Time
	AppointmentTime string
	DurationMinutes int
}

// CreateLine validates, prices and inserts a new ledger line.
func (s *Service) CreateLine(ctx context.Context, input CreateLineInput) (Line, error) {
	if input.BranchID == 0 {
		return Line{}, fmt.Errorf("%w: %s", shared.ErrValidation, shared.ErrBranchRequired)
	}
	if !ValidItemType(input.ItemType) {
		return Line{}, fmt.Errorf("%w: %s", shared.ErrValidation, ErrItemType)
	}
	if input.ItemType == ItemMedicine && input.InventoryID == nil {
		return Line{}, fmt.Errorf("%w: medicine line requires an inventory item", shared.ErrValidation)
	}

	price := money.ParsePrice(input.UnitPrice)
	qty := money.ParseQty(input.Quantity)
	total := money.Round2(price.Mul(decimal.NewFromInt(int64(qty))))

	line := Line{
		BranchID:        input.BranchID,
		PatientID:       input.PatientID,
		PatientName:     input.PatientName,
		DoctorID:        input.DoctorID,
		CashierID:       input.CashierID,
		TreatmentID:     input.TreatmentID,
		InventoryID:     input.InventoryID,
		PlanID:          input.PlanID,
		ItemType:        input.ItemType,
		Description:     input.Description,
		UnitPrice:       price,
		Quantity:        qty,
		TotalPrice:      total,
		AmountRemaining: total,
		Date:            input.Date,
		AppointmentTime: input.AppointmentTime,
		DurationMinutes: input.DurationMinutes,
		Status:          StatusPending,
	}

	created, err := s.repo.Insert(ctx, line)
	if err != nil {
		return Line{}, fmt.Errorf("ledger: insert line: %w", err)
	}
	s.record(ctx, "ledger:create", created.ID, map[string]any{
		"item_type": created.ItemType,
		"total":     created.TotalPrice.String(),
	})
	return created, nil
}

// Get fetches one line.
func (s *Service) Get(ctx context.Context, id int64) (Line, error) {
	return s.repo.GetByID(ctx, id)
}

// DayLines lists a branch's lines for one calendar date.
func (s *Service) DayLines(ctx context.Context, branchID int64, date time.Time) ([]Line, error) {
	if branchID == 0 {
		return nil, shared.ErrBranchRequired
	}
	return s.repo.ListByBranchDate(ctx, branchID, date)
}

// RangeLines lists a branch's lines across a date range.
func (s *Service) RangeLines(ctx context.Context, branchID int64, from, to time.Time) ([]Line, error) {
	if branchID == 0 {
		return nil, shared.ErrBranchRequired
	}
	if to.Before(from) {
		from, to = to, from
	}
	return s.repo.ListByBranchRange(ctx, branchID, from, to)
}

// PatientLines lists every line billed to a patient, newest first.
func (s *Service) PatientLines(ctx context.Context, patientID int64) ([]Line, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Visits groups a branch's day into visits.
func (s *Service) Visits(ctx context.Context, branchID int64, date time.Time, order VisitOrder) ([]Visit, error) {
	lines, err := s.DayLines(ctx, branchID, date)
	if err != nil {
		return nil, err
	}
	return GroupByVisit(lines, order), nil
}

// SetUnitPrice applies a price edit, keeping total and remaining consistent
// by delta. Raw input is sanitised: stripped of non-numeric characters,
// unparseable becomes zero.
func (s *Service) SetUnitPrice(ctx context.Context, id int64, raw string) (Line, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Line{}, err
	}
	after := before.Clone()
	after.ApplyUnitPrice(money.ParsePrice(raw))
	return s.persistUpdate(ctx, before, after, "ledger:set_price")
}

// SetQuantity applies a quantity edit with the same delta pattern.
// Non-positive or non-numeric input is treated as one.
func (s *Service) SetQuantity(ctx context.Context, id int64, raw string) (Line, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Line{}, err
	}
	after := before.Clone()
	after.ApplyQuantity(money.ParseQty(raw))
	return s.persistUpdate(ctx, before, after, "ledger:set_quantity")
}

// ApplyPayment sets one channel of the line's payment split and recomputes
// paid/remaining. The KHR/USD rate is captured on the first non-zero
// payment and never changes afterwards. Remaining is not clamped; an
// overpayment drives it negative. The previous payment state stays
// undoable for the grace window.
func (s *Service) ApplyPayment(ctx context.Context, id int64, channel money.Channel, raw string) (Line, error) {
	if !money.ValidChannel(channel) {
		return Line{}, fmt.Errorf("%w: %s", shared.ErrValidation, money.ErrUnknownChannel)
	}
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Line{}, err
	}

	split := money.ChannelSplit{ABA: before.PaidABA, CashUSD: before.PaidCashUSD, CashKHR: before.PaidCashKHR}
	amount := money.ParsePrice(raw)
	switch channel {
	case money.ChannelABA:
		split.ABA = amount
	case money.ChannelCashUSD:
		split.CashUSD = amount
	case money.ChannelCashKHR:
		split.CashKHR = amount
	}

	after := before.Clone()
	diff := after.ApplyPayment(split, s.rate)

	saved, err := s.persistUpdate(ctx, before, after, "ledger:payment")
	if err != nil {
		return saved, err
	}

	if s.undo != nil {
		snapshot := before.Clone()
		s.undo.Begin(undo.ClassPaymentEdit, strconv.FormatInt(id, 10),
			nil, // the new split is already persisted; elapsing changes nothing
			func(ctx context.Context) error {
				// Restoring through persistUpdate lets the stock
				// reconciler see the reverse transition.
				_, err := s.persistUpdate(ctx, saved, snapshot, "ledger:payment_undone")
				return err
			})
	}

	s.logger.Debug("payment applied",
		slog.Int64("line", id),
		slog.String("channel", string(channel)),
		slog.String("diff", diff.String()))
	return saved, nil
}

// UndoPaymentEdit reverts the most recent payment edit if its grace window
// is still open.
func (s *Service) UndoPaymentEdit(ctx context.Context) error {
	if s.undo == nil {
		return undo.ErrNothingPending
	}
	return s.undo.Undo(ctx, undo.ClassPaymentEdit)
}

// VoidLine soft-deletes a line: the datastore delete is only issued when
// the grace window elapses, so an undo within the window leaves the row
// untouched.
func (s *Service) VoidLine(ctx context.Context, id int64) (time.Duration, error) {
	line, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if s.undo == nil {
		// No controller wired (worker context): delete immediately.
		if err := s.repo.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("ledger: delete line: %w", err)
		}
		s.record(ctx, "ledger:void", id, nil)
		return 0, nil
	}
	s.undo.Begin(undo.ClassTreatmentVoid, strconv.FormatInt(id, 10),
		func(ctx context.Context) error {
			if err := s.repo.Delete(ctx, line.ID); err != nil {
				return fmt.Errorf("ledger: commit void: %w", err)
			}
			s.record(ctx, "ledger:void", line.ID, nil)
			return nil
		},
		nil) // nothing was written yet, undo has nothing to restore
	return s.undo.Grace(), nil
}

// UndoVoid cancels a pending void inside the grace window. The row was
// never deleted, so no write is issued.
func (s *Service) UndoVoid(ctx context.Context) error {
	if s.undo == nil {
		return undo.ErrNothingPending
	}
	return s.undo.Undo(ctx, undo.ClassTreatmentVoid)
}

// ApplyGroupEdit propagates shared-field changes across every line of a
// visit as independent per-line updates. There is no multi-row transaction:
// failures are collected, failed rows are retried once, and any rows still
// failing are reported to the caller, never swallowed.
func (s *Service) ApplyGroupEdit(ctx context.Context, lineIDs []int64, patch GroupPatch) ([]Line, error) {
	if len(lineIDs) == 0 {
		return nil, fmt.Errorf("%w: empty visit group", shared.ErrValidation)
	}
	lines, err := s.repo.ListByIDs(ctx, lineIDs)
	if err != nil {
		return nil, err
	}

	uow := shared.NewUnitOfWork("visit group edit")
	updated := make([]Line, len(lines))
	for i := range lines {
		after := lines[i].Clone()
		patch.apply(&after)
		updated[i] = after
		line := after
		uow.Add(fmt.Sprintf("line-%d", line.ID), func(ctx context.Context) error {
			return s.repo.Update(ctx, line)
		})
	}

	if err := uow.Run(ctx); err != nil {
		if retryErr := uow.Retry(ctx); retryErr != nil {
			if pe, ok := shared.AsPartialError(retryErr); ok {
				s.logger.Error("group edit left visit inconsistent",
					slog.Int("failed", len(pe.Failures)),
					slog.Int("total", pe.Attempted))
			}
			return updated, retryErr
		}
	}

	s.record(ctx, "ledger:group_edit", lineIDs[0], map[string]any{"lines": len(lineIDs)})
	return updated, nil
}

// Duplicate creates a fresh treatment line on the same visit as the source.
func (s *Service) Duplicate(ctx context.Context, sourceID int64) (Line, error) {
	src, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return Line{}, err
	}
	created, err := s.repo.Insert(ctx, DuplicateLine(src))
	if err != nil {
		return Line{}, fmt.Errorf("ledger: duplicate line: %w", err)
	}
	s.record(ctx, "ledger:duplicate", created.ID, map[string]any{"source": sourceID})
	return created, nil
}

// LinkVisitToPatient attaches every manually-named line of a visit to a
// patient record, typically right after the patient was registered.
func (s *Service) LinkVisitToPatient(ctx context.Context, patientName string, date time.Time, patientID int64) (int64, error) {
	if patientName == "" || patientID == 0 {
		return 0, fmt.Errorf("%w: patient name and id required", shared.ErrValidation)
	}
	n, err := s.repo.LinkVisitToPatient(ctx, patientName, date, patientID)
	if err != nil {
		return 0, fmt.Errorf("ledger: link visit: %w", err)
	}
	s.record(ctx, "ledger:link_patient", patientID, map[string]any{"lines": n, "name": patientName})
	return n, nil
}

// SetStatus moves a treatment line through the appointment day.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) (Line, error) {
	switch status {
	case StatusPending, StatusRegistered, StatusDoing, StatusFinished:
	default:
		return Line{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Line{}, err
	}
	after := before.Clone()
	after.Status = status
	return s.persistUpdate(ctx, before, after, "ledger:status")
}

// Reschedule moves an appointment line to a new slot.
func (s *Service) Reschedule(ctx context.Context, id int64, date time.Time, at string, durationMin int) (Line, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Line{}, err
	}
	after := before.Clone()
	after.Date = date
	after.AppointmentTime = at
	if durationMin > 0 {
		after.DurationMinutes = durationMin
	}
	return s.persistUpdate(ctx, before, after, "ledger:reschedule")
}

// persistUpdate writes an edited line, feeds (before, after) to the stock
// reconciler and audits. On a persistence error the authoritative row is
// re-fetched so the caller can resynchronise instead of keeping the
// optimistic state.
func (s *Service) persistUpdate(ctx context.Context, before, after Line, action string) (Line, error) {
	if err := s.repo.Update(ctx, after); err != nil {
		fresh, fetchErr := s.repo.GetByID(ctx, before.ID)
		if fetchErr != nil {
			if errors.Is(fetchErr, ErrLineNotFound) {
				return Line{}, fmt.Errorf("ledger: update line %d: %w", before.ID, err)
			}
			return before, fmt.Errorf("ledger: update line %d: %w (resync also failed: %v)", before.ID, err, fetchErr)
		}
		return fresh, fmt.Errorf("ledger: update line %d: %w", before.ID, err)
	}

	if s.reconciler != nil {
		if err := s.reconciler.LineSaved(ctx, before, after); err != nil {
			return after, fmt.Errorf("ledger: stock reconciliation for line %d: %w", after.ID, err)
		}
	}
	s.record(ctx, action, after.ID, map[string]any{
		"total":     after.TotalPrice.String(),
		"remaining": after.AmountRemaining.String(),
	})
	return after, nil
}

func (s *Service) record(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "ledger_entry",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
