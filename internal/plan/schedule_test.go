package plan

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDurationMonthsCeilsPartialMonths(t *testing.T) {
	tests := []struct {
		name                    string
		total, deposit, monthly string
		want                    int
	}{
		{"exact division", "1200", "300", "100", 9},
		{"remainder rounds up", "1000", "100", "250", 4},
		{"single month", "500", "400", "200", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DurationMonths(d(tc.total), d(tc.deposit), d(tc.monthly))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDurationMonthsRejectsBadInput(t *testing.T) {
	_, err := DurationMonths(d("1200"), d("300"), d("0"))
	require.ErrorIs(t, err, ErrMonthlyAmount)

	_, err = DurationMonths(d("1200"), d("300"), d("-5"))
	require.ErrorIs(t, err, ErrMonthlyAmount)

	_, err = DurationMonths(d("1200"), d("1200"), d("100"))
	require.ErrorIs(t, err, ErrDepositTooLarge)

	_, err = DurationMonths(d("0"), d("0"), d("100"))
	require.ErrorIs(t, err, ErrTotalAmount)
}

func TestInstallmentDatesStartOneMonthAfterStart(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	dates, err := InstallmentDates(start, 9)
	require.NoError(t, err)
	require.Len(t, dates, 9)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), dates[0])
	require.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), dates[8])
	for i := 1; i < len(dates); i++ {
		require.True(t, dates[i].After(dates[i-1]))
	}
}

func TestInstallmentAmountsAreUniform(t *testing.T) {
	// ceil((1000-100)/250) = 4 months, and every installment bills the
	// full monthly amount, the final one included.
	amounts := InstallmentAmounts(d("250"), 4)
	require.Len(t, amounts, 4)
	for _, a := range amounts {
		require.True(t, a.Equal(d("250")))
	}
}

func TestSuggestDeposit(t *testing.T) {
	require.True(t, SuggestDeposit("Metal Braces", d("1200")).Equal(d("360")))
	require.True(t, SuggestDeposit("Orthodontic treatment", d("1000")).Equal(d("300")))
	require.True(t, SuggestDeposit("Clear Aligner Set", d("2000")).Equal(d("1000")))
	require.True(t, SuggestDeposit("Tooth Extraction", d("80")).IsZero())
}
