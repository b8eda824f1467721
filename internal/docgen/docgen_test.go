package docgen

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/plan"
)

func TestQuotationTotalsAndNumbering(t *testing.T) {
	b := NewBuilder(decimal.NewFromInt(4100))
	lines := []ledger.Line{
		{Description: "Cleaning", Quantity: 1, UnitPrice: decimal.NewFromInt(40), TotalPrice: decimal.NewFromInt(40)},
		{Description: "Filling", Quantity: 2, UnitPrice: decimal.NewFromInt(35), TotalPrice: decimal.NewFromInt(70)},
	}

	doc := b.Quotation("Sok Dara", lines, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC))
	require.Equal(t, KindQuotation, doc.Kind)
	require.True(t, strings.HasPrefix(doc.Number, "Q-"))
	require.Len(t, doc.Number, 10)
	require.Len(t, doc.Lines, 2)
	require.Equal(t, "$110.00", doc.TotalUSD)
	require.Equal(t, "451,000 KHR", doc.TotalKHR)
}

func TestQuotationNumbersAreUnique(t *testing.T) {
	b := NewBuilder(decimal.NewFromInt(4100))
	a := b.Quotation("A", nil, time.Now())
	c := b.Quotation("A", nil, time.Now())
	require.NotEqual(t, a.Number, c.Number)
}

func TestPaymentAgreementListsSchedule(t *testing.T) {
	b := NewBuilder(decimal.NewFromInt(4100))
	p := plan.Plan{
		TotalAmount:    decimal.NewFromInt(1200),
		DepositAmount:  decimal.NewFromInt(300),
		MonthlyAmount:  decimal.NewFromInt(100),
		DurationMonths: 9,
		StartDate:      time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}

	doc := b.PaymentAgreement("Sok Dara", p, time.Now())
	require.True(t, strings.HasPrefix(doc.Number, "PA-"))
	// Deposit row plus nine installments.
	require.Len(t, doc.Lines, 10)
	require.Equal(t, "Deposit", doc.Lines[0].Description)
	require.Equal(t, "Month 9/9", doc.Lines[9].Description)
	require.Equal(t, "$1,200.00", doc.TotalUSD)
	require.Contains(t, doc.Terms[0], "1 February 2024")
}
