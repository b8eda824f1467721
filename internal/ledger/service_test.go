package ledger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dentara-clinic/dentara/internal/money"
	"github.com/dentara-clinic/dentara/internal/shared"
	"github.com/dentara-clinic/dentara/internal/undo"
)

type memoryRepo struct {
	lines   map[int64]Line
	nextID  int64
	deletes int
	// failUpdates holds line ids whose next Update fails once.
	failUpdates map[int64]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lines: make(map[int64]Line), failUpdates: make(map[int64]int)}
}

func (r *memoryRepo) Insert(_ context.Context, line Line) (Line, error) {
	r.nextID++
	line.ID = r.nextID
	line.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Millisecond)
	r.lines[line.ID] = line
	return line, nil
}

func (r *memoryRepo) InsertBulk(ctx context.Context, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		created, _ := r.Insert(ctx, l)
		out = append(out, created)
	}
	return out, nil
}

func (r *memoryRepo) GetByID(_ context.Context, id int64) (Line, error) {
	l, ok := r.lines[id]
	if !ok {
		return Line{}, ErrLineNotFound
	}
	return l.Clone(), nil
}

func (r *memoryRepo) ListByBranchDate(_ context.Context, branchID int64, date time.Time) ([]Line, error) {
	var out []Line
	for _, l := range r.lines {
		if l.BranchID == branchID && l.Date.Equal(date) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByBranchRange(_ context.Context, branchID int64, from, to time.Time) ([]Line, error) {
	var out []Line
	for _, l := range r.lines {
		if l.BranchID == branchID && !l.Date.Before(from) && !l.Date.After(to) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByPatient(_ context.Context, patientID int64) ([]Line, error) {
	var out []Line
	for _, l := range r.lines {
		if l.PatientID != nil && *l.PatientID == patientID {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByIDs(_ context.Context, ids []int64) ([]Line, error) {
	var out []Line
	for _, id := range ids {
		if l, ok := r.lines[id]; ok {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *memoryRepo) Update(_ context.Context, line Line) error {
	if n := r.failUpdates[line.ID]; n > 0 {
		r.failUpdates[line.ID] = n - 1
		return errors.New("datastore unavailable")
	}
	if _, ok := r.lines[line.ID]; !ok {
		return ErrLineNotFound
	}
	r.lines[line.ID] = line.Clone()
	return nil
}

func (r *memoryRepo) LinkVisitToPatient(_ context.Context, name string, date time.Time, patientID int64) (int64, error) {
	var n int64
	for id, l := range r.lines {
		if l.PatientID == nil && l.PatientName == name && l.Date.Equal(date) {
			l.PatientID = &patientID
			r.lines[id] = l
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.lines[id]; !ok {
		return ErrLineNotFound
	}
	delete(r.lines, id)
	r.deletes++
	return nil
}

func (r *memoryRepo) DeleteByIDs(_ context.Context, ids []int64) error {
	for _, id := range ids {
		delete(r.lines, id)
		r.deletes++
	}
	return nil
}

type recordedSave struct {
	before, after Line
}

type fakeReconciler struct {
	saves []recordedSave
}

func (f *fakeReconciler) LineSaved(_ context.Context, before, after Line) error {
	f.saves = append(f.saves, recordedSave{before: before, after: after})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(repo *memoryRepo, undoCtl *undo.Controller) (*Service, *fakeReconciler) {
	rec := &fakeReconciler{}
	svc := NewService(testLogger(), repo, nil, rec, undoCtl, decimal.NewFromInt(4100))
	return svc, rec
}

func mustCreate(t *testing.T, svc *Service, input CreateLineInput) Line {
	t.Helper()
	line, err := svc.CreateLine(context.Background(), input)
	require.NoError(t, err)
	return line
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTotalTracksPriceAndQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "50", Quantity: "2", Date: day(2026, 1, 5),
	})
	require.True(t, line.TotalPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, line.AmountRemaining.Equal(decimal.NewFromInt(100)))

	line, err := svc.SetUnitPrice(ctx, line.ID, "$75.50")
	require.NoError(t, err)
	require.True(t, line.TotalPrice.Equal(decimal.RequireFromString("151.00")))
	require.True(t, line.TotalPrice.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))))

	line, err = svc.SetQuantity(ctx, line.ID, "3")
	require.NoError(t, err)
	require.True(t, line.TotalPrice.Equal(decimal.RequireFromString("226.50")))
	require.True(t, line.AmountRemaining.Equal(line.TotalPrice.Sub(line.AmountPaid)))
}

func TestRemainingStaysConsistentAcrossEdits(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "100", Quantity: "1", Date: day(2026, 1, 5),
	})

	line, err := svc.ApplyPayment(ctx, line.ID, money.ChannelCashUSD, "40")
	require.NoError(t, err)
	line, err = svc.SetUnitPrice(ctx, line.ID, "120")
	require.NoError(t, err)
	line, err = svc.SetQuantity(ctx, line.ID, "2")
	require.NoError(t, err)
	line, err = svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "60")
	require.NoError(t, err)

	want := line.TotalPrice.Sub(line.AmountPaid)
	require.True(t, line.AmountRemaining.Sub(want).Abs().LessThanOrEqual(decimal.RequireFromString("0.01")),
		"remaining %s, total-paid %s", line.AmountRemaining, want)
}

func TestQuantityNeverPersistsBelowOne(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "30", Quantity: "0", Date: day(2026, 1, 5),
	})
	require.Equal(t, 1, line.Quantity)

	line, err := svc.SetQuantity(ctx, line.ID, "-4")
	require.NoError(t, err)
	require.Equal(t, 1, line.Quantity)

	line, err = svc.SetQuantity(ctx, line.ID, "garbage")
	require.NoError(t, err)
	require.Equal(t, 1, line.Quantity)
}

func TestCurrencySplitComputesPaid(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "25", Quantity: "1", Date: day(2026, 1, 5),
	})

	line, err := svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "10")
	require.NoError(t, err)
	line, err = svc.ApplyPayment(ctx, line.ID, money.ChannelCashUSD, "5")
	require.NoError(t, err)
	line, err = svc.ApplyPayment(ctx, line.ID, money.ChannelCashKHR, "41000")
	require.NoError(t, err)

	require.True(t, line.AmountPaid.Equal(decimal.RequireFromString("25.00")), "paid %s", line.AmountPaid)
	require.True(t, line.AmountRemaining.IsZero())
	require.True(t, line.AppliedRate.Equal(decimal.NewFromInt(4100)))
}

func TestExchangeRateCapturedOnFirstPaymentOnly(t *testing.T) {
	line := Line{Quantity: 1, UnitPrice: decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(10), AmountRemaining: decimal.NewFromInt(10)}

	line.ApplyPayment(money.ChannelSplit{CashKHR: decimal.NewFromInt(20500)}, decimal.NewFromInt(4100))
	require.True(t, line.AppliedRate.Equal(decimal.NewFromInt(4100)))
	require.True(t, line.AmountPaid.Equal(decimal.NewFromInt(5)))

	// Config rate moved; the captured rate keeps valuing this line.
	line.ApplyPayment(money.ChannelSplit{CashKHR: decimal.NewFromInt(41000)}, decimal.NewFromInt(4000))
	require.True(t, line.AppliedRate.Equal(decimal.NewFromInt(4100)))
	require.True(t, line.AmountPaid.Equal(decimal.NewFromInt(10)), "paid %s", line.AmountPaid)
}

func TestOverpaymentIsNotClamped(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "100", Quantity: "1", Date: day(2026, 1, 5),
	})

	line, err := svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "100")
	require.NoError(t, err)
	require.True(t, line.AmountRemaining.IsZero())

	line, err = svc.ApplyPayment(ctx, line.ID, money.ChannelCashUSD, "20")
	require.NoError(t, err)
	require.True(t, line.AmountRemaining.Equal(decimal.NewFromInt(-20)), "remaining %s", line.AmountRemaining)
}

func TestVoidThenUndoRestoresExactStateWithoutDelete(t *testing.T) {
	repo := newMemoryRepo()
	undoCtl := undo.NewController(testLogger(), time.Hour)
	defer undoCtl.Close()
	svc, _ := newTestService(repo, undoCtl)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "80", Quantity: "1", Date: day(2026, 1, 5),
	})
	before, err := svc.Get(ctx, line.ID)
	require.NoError(t, err)

	grace, err := svc.VoidLine(ctx, line.ID)
	require.NoError(t, err)
	require.Equal(t, time.Hour, grace)

	require.NoError(t, svc.UndoVoid(ctx))

	after, err := svc.Get(ctx, line.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 0, repo.deletes)
}

func TestVoidCommitsAfterGraceWindow(t *testing.T) {
	repo := newMemoryRepo()
	undoCtl := undo.NewController(testLogger(), 20*time.Millisecond)
	defer undoCtl.Close()
	svc, _ := newTestService(repo, undoCtl)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "80", Quantity: "1", Date: day(2026, 1, 5),
	})
	_, err := svc.VoidLine(ctx, line.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return repo.deletes == 1 }, time.Second, 5*time.Millisecond)
	_, err = svc.Get(ctx, line.ID)
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestPaymentEditUndoRevertsSplit(t *testing.T) {
	repo := newMemoryRepo()
	undoCtl := undo.NewController(testLogger(), time.Hour)
	defer undoCtl.Close()
	svc, _ := newTestService(repo, undoCtl)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "50", Quantity: "1", Date: day(2026, 1, 5),
	})
	line, err := svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "30")
	require.NoError(t, err)
	require.True(t, line.AmountPaid.Equal(decimal.NewFromInt(30)))

	// Second edit opens a new grace window for the state before it.
	_, err = svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "50")
	require.NoError(t, err)

	require.NoError(t, svc.UndoPaymentEdit(ctx))

	reverted, err := svc.Get(ctx, line.ID)
	require.NoError(t, err)
	require.True(t, reverted.AmountPaid.Equal(decimal.NewFromInt(30)), "paid %s", reverted.AmountPaid)
	require.True(t, reverted.AmountRemaining.Equal(decimal.NewFromInt(20)))
}

func TestPaymentUndoFeedsReconcilerReverseTransition(t *testing.T) {
	repo := newMemoryRepo()
	undoCtl := undo.NewController(testLogger(), time.Hour)
	defer undoCtl.Close()
	svc, rec := newTestService(repo, undoCtl)
	ctx := context.Background()

	inv := int64(4)
	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemMedicine, InventoryID: &inv,
		UnitPrice: "50", Quantity: "1", Date: day(2026, 1, 5),
	})
	_, err := svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "50")
	require.NoError(t, err)

	require.NoError(t, svc.UndoPaymentEdit(ctx))

	// The restore is a persisted save like any other, so the stock
	// reconciler observes remaining climbing back above zero.
	last := rec.saves[len(rec.saves)-1]
	require.False(t, last.before.AmountRemaining.IsPositive())
	require.True(t, last.after.AmountRemaining.IsPositive())
}

func TestGroupEditPropagatesToAllLines(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, CreateLineInput{BranchID: 1, PatientName: "Sok", ItemType: ItemTreatment, UnitPrice: "50", Quantity: "1", Date: day(2026, 1, 5)})
	b := mustCreate(t, svc, CreateLineInput{BranchID: 1, PatientName: "Sok", ItemType: ItemTreatment, UnitPrice: "30", Quantity: "1", Date: day(2026, 1, 5)})

	doctor := int64(9)
	_, err := svc.ApplyGroupEdit(ctx, []int64{a.ID, b.ID}, GroupPatch{DoctorID: &doctor})
	require.NoError(t, err)

	for _, id := range []int64{a.ID, b.ID} {
		got, err := svc.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.DoctorID)
		require.Equal(t, doctor, *got.DoctorID)
	}
}

func TestGroupEditReportsPartialFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, CreateLineInput{BranchID: 1, PatientName: "Sok", ItemType: ItemTreatment, UnitPrice: "50", Quantity: "1", Date: day(2026, 1, 5)})
	b := mustCreate(t, svc, CreateLineInput{BranchID: 1, PatientName: "Sok", ItemType: ItemTreatment, UnitPrice: "30", Quantity: "1", Date: day(2026, 1, 5)})

	// b's update fails on first try and the automatic retry.
	repo.failUpdates[b.ID] = 2

	doctor := int64(4)
	_, err := svc.ApplyGroupEdit(ctx, []int64{a.ID, b.ID}, GroupPatch{DoctorID: &doctor})
	require.Error(t, err)
	pe, ok := shared.AsPartialError(err)
	require.True(t, ok)
	require.Len(t, pe.Failures, 1)

	// The line whose write succeeded keeps the edit.
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DoctorID)
}

func TestGroupEditRetriesFailedRows(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	a := mustCreate(t, svc, CreateLineInput{BranchID: 1, PatientName: "Sok", ItemType: ItemTreatment, UnitPrice: "50", Quantity: "1", Date: day(2026, 1, 5)})

	// Fails once, succeeds on the retry pass.
	repo.failUpdates[a.ID] = 1

	doctor := int64(4)
	_, err := svc.ApplyGroupEdit(ctx, []int64{a.ID}, GroupPatch{DoctorID: &doctor})
	require.NoError(t, err)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, doctor, *got.DoctorID)
}

func TestPersistFailureResyncsFromStore(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemTreatment, UnitPrice: "100", Quantity: "1", Date: day(2026, 1, 5),
	})

	repo.failUpdates[line.ID] = 1
	got, err := svc.SetUnitPrice(ctx, line.ID, "999")
	require.Error(t, err)
	// The returned line is the authoritative store state, not the optimistic edit.
	require.True(t, got.UnitPrice.Equal(decimal.NewFromInt(100)), "unit price %s", got.UnitPrice)
}

func TestDuplicateLineResetsMoneyFields(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, nil)
	ctx := context.Background()

	patient := int64(3)
	doctor := int64(7)
	src := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, PatientID: &patient, DoctorID: &doctor,
		ItemType: ItemTreatment, UnitPrice: "200", Quantity: "2", Date: day(2026, 1, 5),
	})

	dup, err := svc.Duplicate(ctx, src.ID)
	require.NoError(t, err)
	require.Equal(t, patient, *dup.PatientID)
	require.Equal(t, doctor, *dup.DoctorID)
	require.Equal(t, ItemTreatment, dup.ItemType)
	require.True(t, dup.UnitPrice.IsZero())
	require.True(t, dup.TotalPrice.IsZero())
	require.True(t, dup.AmountPaid.IsZero())
	require.Equal(t, 1, dup.Quantity)
	require.True(t, dup.Date.Equal(src.Date))
}

func TestReconcilerSeesPersistedBeforeState(t *testing.T) {
	repo := newMemoryRepo()
	svc, rec := newTestService(repo, nil)
	ctx := context.Background()

	inv := int64(11)
	line := mustCreate(t, svc, CreateLineInput{
		BranchID: 1, ItemType: ItemMedicine, InventoryID: &inv, UnitPrice: "5", Quantity: "2", Date: day(2026, 1, 5),
	})

	_, err := svc.ApplyPayment(ctx, line.ID, money.ChannelABA, "10")
	require.NoError(t, err)

	require.Len(t, rec.saves, 1)
	require.True(t, rec.saves[0].before.AmountRemaining.Equal(decimal.NewFromInt(10)))
	require.True(t, rec.saves[0].after.AmountRemaining.IsZero())
}
