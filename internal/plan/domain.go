package plan

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks a plan's lifecycle. Plans never complete themselves; the
// desk flips the status once the final installment settles.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Plan is a monthly installment agreement for an expensive treatment. The
// financed amount (total minus deposit) is spread over DurationMonths
// ledger lines; the plan row itself holds no balances, those live on the
// lines it spawned.
type Plan struct {
	ID             int64
	BranchID       int64
	PatientID      int64
	DoctorID       *int64
	Label          string
	TotalAmount    decimal.Decimal
	DepositAmount  decimal.Decimal
	MonthlyAmount  decimal.Decimal
	DurationMonths int
	StartDate      time.Time
	Status         Status
	CreatedAt      time.Time
}

// Progress is the paid-off view of a plan, computed from its ledger lines.
type Progress struct {
	Plan              Plan
	PaidTotal         decimal.Decimal
	RemainingTotal    decimal.Decimal
	InstallmentsPaid  int
	InstallmentsTotal int
	OverdueCount      int
}

var (
	ErrPlanNotFound     = errors.New("plan: not found")
	ErrMonthlyAmount    = errors.New("plan: monthly amount must be positive")
	ErrDepositTooLarge  = errors.New("plan: deposit must be smaller than total")
	ErrTotalAmount      = errors.New("plan: total amount must be positive")
	ErrAlreadyCompleted = errors.New("plan: already completed")
)
