package schedule

import (
	"time"

	"github.com/shopspring/decimal"
)

// Appointment is the day-view projection of a treatment ledger line.
type Appointment struct {
	LineID          int64
	PatientID       *int64
	PatientName     string
	DoctorID        *int64
	DoctorName      string
	TreatmentName   string
	Description     string
	Date            time.Time
	At              string
	DurationMinutes int
	Status          string
}

// DaySummary aggregates a branch day for the dashboard strip.
type DaySummary struct {
	BranchID         int64           `json:"branch_id"`
	Date             string          `json:"date"`
	VisitCount       int             `json:"visit_count"`
	LineCount        int             `json:"line_count"`
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	CollectedABA     decimal.Decimal `json:"collected_aba"`
	CollectedCashUSD decimal.Decimal `json:"collected_cash_usd"`
	CollectedCashKHR decimal.Decimal `json:"collected_cash_khr"`
}
