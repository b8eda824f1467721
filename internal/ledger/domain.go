package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dentara-clinic/dentara/internal/money"
)

// ItemType classifies a ledger line.
type ItemType string

const (
	// ItemTreatment is a dental treatment charge, possibly doubling as an
	// appointment when scheduling fields are set.
	ItemTreatment ItemType = "treatment"
	// ItemMedicine is a medicine sale linked to an inventory item.
	ItemMedicine ItemType = "medicine"
	// ItemInstallment is one scheduled obligation generated by a payment plan.
	ItemInstallment ItemType = "installment"
)

// Status tracks a treatment line through the appointment day.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRegistered Status = "Registered"
	StatusDoing      Status = "Doing Treatment"
	StatusFinished   Status = "Finished"
)

// Line is one atomic billable/payable row: a treatment, a medicine sale or
// an installment obligation. Money fields are dollars with two decimals.
//
// AmountRemaining is stored, not derived: price and payment changes adjust
// it by delta so that a manual override (partial write-off) survives later
// edits. The TotalPrice = UnitPrice * Quantity and
// AmountRemaining = TotalPrice - AmountPaid invariants are maintained by the
// mutators below; remaining may legitimately go negative on overpayment.
type Line struct {
	ID       int64
	BranchID int64

	PatientID   *int64
	PatientName string
	DoctorID    *int64
	CashierID   *int64
	TreatmentID *int64
	InventoryID *int64
	PlanID      *int64

	ItemType    ItemType
	Description string

	UnitPrice       decimal.Decimal
	Quantity        int
	TotalPrice      decimal.Decimal
	AmountPaid      decimal.Decimal
	AmountRemaining decimal.Decimal

	PaidABA     decimal.Decimal
	PaidCashUSD decimal.Decimal
	PaidCashKHR decimal.Decimal
	// AppliedRate is the KHR/USD rate captured on the line's first payment,
	// zero until then, immutable afterwards.
	AppliedRate decimal.Decimal

	Date            time.Time
	AppointmentTime string
	DurationMinutes int
	Status          Status

	CreatedAt time.Time

	// Display names joined on reads, never written back.
	DoctorName    string
	CashierName   string
	TreatmentName string
	InventoryName string
}

var (
	// ErrLineNotFound indicates the ledger row no longer exists.
	ErrLineNotFound = errors.New("ledger: line not found")
	// ErrQuantity indicates a quantity that would persist as zero or negative.
	ErrQuantity = errors.New("ledger: quantity must be at least 1")
	// ErrItemType indicates an unknown item type.
	ErrItemType = errors.New("ledger: unknown item type")
)

// ApplyUnitPrice recomputes TotalPrice for a new unit price and carries the
// delta into AmountRemaining without touching AmountPaid.
func (l *Line) ApplyUnitPrice(newUnitPrice decimal.Decimal) {
	if newUnitPrice.IsNegative() {
		newUnitPrice = decimal.Zero
	}
	delta := newUnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Sub(l.TotalPrice)
	l.UnitPrice = newUnitPrice
	l.TotalPrice = money.Round2(l.TotalPrice.Add(delta))
	l.AmountRemaining = money.Round2(l.AmountRemaining.Add(delta))
}

// ApplyQuantity recomputes TotalPrice for a new quantity using the same
// delta pattern as ApplyUnitPrice. Quantities below one are coerced to one.
func (l *Line) ApplyQuantity(newQty int) {
	if newQty < 1 {
		newQty = 1
	}
	delta := l.UnitPrice.Mul(decimal.NewFromInt(int64(newQty))).Sub(l.TotalPrice)
	l.Quantity = newQty
	l.TotalPrice = money.Round2(l.TotalPrice.Add(delta))
	l.AmountRemaining = money.Round2(l.AmountRemaining.Add(delta))
}

// ApplyPayment replaces the channel split, captures the exchange rate on the
// first non-zero payment and adjusts AmountRemaining by the payment delta.
// Remaining is not clamped: an overpayment drives it negative, which the
// desk treats as change owed rather than an error.
func (l *Line) ApplyPayment(split money.ChannelSplit, configuredRate decimal.Decimal) (paymentDiff decimal.Decimal) {
	if l.AppliedRate.IsZero() && !split.IsZero() {
		l.AppliedRate = configuredRate
	}
	rate := money.EffectiveRate(l.AppliedRate, configuredRate)

	oldPaid := l.AmountPaid
	l.PaidABA = split.ABA
	l.PaidCashUSD = split.CashUSD
	l.PaidCashKHR = split.CashKHR
	l.AmountPaid = split.Total(rate)

	paymentDiff = l.AmountPaid.Sub(oldPaid)
	l.AmountRemaining = money.Round2(l.AmountRemaining.Sub(paymentDiff))
	return paymentDiff
}

// FullyPaid reports whether nothing remains outstanding.
func (l *Line) FullyPaid() bool {
	return !l.AmountRemaining.IsPositive()
}

// Clone returns a deep-enough copy for undo snapshots.
func (l Line) Clone() Line {
	c := l
	c.PatientID = clonePtr(l.PatientID)
	c.DoctorID = clonePtr(l.DoctorID)
	c.CashierID = clonePtr(l.CashierID)
	c.TreatmentID = clonePtr(l.TreatmentID)
	c.InventoryID = clonePtr(l.InventoryID)
	c.PlanID = clonePtr(l.PlanID)
	return c
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ValidItemType reports whether t is one of the known classifications.
func ValidItemType(t ItemType) bool {
	switch t {
	case ItemTreatment, ItemMedicine, ItemInstallment:
		return true
	}
	return false
}
