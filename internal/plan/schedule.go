package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/teambition/rrule-go"
)

// DurationMonths computes how many monthly installments cover the financed
// amount. The final installment may be smaller than the monthly amount.
func DurationMonths(total, deposit, monthly decimal.Decimal) (int, error) {
	if !total.IsPositive() {
		return 0, ErrTotalAmount
	}
	if !monthly.IsPositive() {
		return 0, ErrMonthlyAmount
	}
	financed := total.Sub(deposit)
	if !financed.IsPositive() {
		return 0, ErrDepositTooLarge
	}
	return int(financed.Div(monthly).Ceil().IntPart()), nil
}

// InstallmentDates expands the due-date series: one date per month, the
// first one month after the plan start.
func InstallmentDates(start time.Time, months int) ([]time.Time, error) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.MONTHLY,
		Count:   months,
		Dtstart: start.AddDate(0, 1, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("plan: build schedule: %w", err)
	}
	return rule.All(), nil
}

// InstallmentAmounts expands the per-month amounts: every installment is
// the monthly amount, the last one included. When the financed amount does
// not divide evenly the schedule overshoots slightly and the final payment
// settles the difference at the desk.
func InstallmentAmounts(monthly decimal.Decimal, months int) []decimal.Decimal {
	amounts := make([]decimal.Decimal, months)
	for i := range amounts {
		amounts[i] = monthly
	}
	return amounts
}

// SuggestDeposit pre-fills a deposit for treatments that conventionally
// take one: orthodontics 30%, aligners 50%. It is a suggestion only; an
// explicit deposit from the desk always wins.
func SuggestDeposit(treatmentName string, total decimal.Decimal) decimal.Decimal {
	name := strings.ToLower(treatmentName)
	switch {
	case strings.Contains(name, "aligner"):
		return total.Mul(decimal.NewFromFloat(0.5)).Round(2)
	case strings.Contains(name, "brace"), strings.Contains(name, "ortho"):
		return total.Mul(decimal.NewFromFloat(0.3)).Round(2)
	default:
		return decimal.Zero
	}
}
