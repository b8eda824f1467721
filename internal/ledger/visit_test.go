package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func lineAt(id int64, patientID *int64, name string, date time.Time, total int64, createdAt time.Time) Line {
	t := decimal.NewFromInt(total)
	return Line{
		ID: id, BranchID: 1, PatientID: patientID, PatientName: name,
		ItemType: ItemTreatment, Quantity: 1,
		UnitPrice: t, TotalPrice: t, AmountRemaining: t,
		Date: date, CreatedAt: createdAt,
	}
}

func TestGroupByVisitMergesPatientDay(t *testing.T) {
	d := day(2026, 2, 10)
	pa, pb := int64(1), int64(2)
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	visits := GroupByVisit([]Line{
		lineAt(1, &pa, "", d, 50, base),
		lineAt(2, &pa, "", d, 30, base.Add(time.Minute)),
		lineAt(3, &pb, "", d, 20, base.Add(2*time.Minute)),
	}, OrderSheet)

	require.Len(t, visits, 2)
	require.True(t, visits[0].TotalVal.Equal(decimal.NewFromInt(80)), "total %s", visits[0].TotalVal)
	require.Len(t, visits[0].Lines, 2)
	require.True(t, visits[1].TotalVal.Equal(decimal.NewFromInt(20)))
}

func TestGroupByVisitManualNameFallback(t *testing.T) {
	d := day(2026, 2, 10)
	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	visits := GroupByVisit([]Line{
		lineAt(1, nil, "Walk-in Dara", d, 10, base),
		lineAt(2, nil, "Walk-in Dara", d, 15, base.Add(time.Minute)),
		lineAt(3, nil, "", d, 5, base.Add(2*time.Minute)),
		lineAt(4, nil, "", d, 5, base.Add(3*time.Minute)),
	}, OrderSheet)

	// Named lines merge; anonymous lines never merge with anything.
	require.Len(t, visits, 3)
	require.True(t, visits[0].TotalVal.Equal(decimal.NewFromInt(25)))
}

func TestGroupByVisitSeparatesDates(t *testing.T) {
	pa := int64(1)
	base := time.Now()

	visits := GroupByVisit([]Line{
		lineAt(1, &pa, "", day(2026, 2, 10), 50, base),
		lineAt(2, &pa, "", day(2026, 2, 11), 30, base.Add(time.Minute)),
	}, OrderSheet)
	require.Len(t, visits, 2)
}

func TestGroupByVisitAggregates(t *testing.T) {
	d := day(2026, 2, 10)
	pa := int64(1)
	paid := lineAt(1, &pa, "", d, 100, time.Now())
	paid.AmountPaid = decimal.NewFromInt(60)
	unpaid := lineAt(2, &pa, "", d, 40, time.Now().Add(time.Second))

	visits := GroupByVisit([]Line{paid, unpaid}, OrderSheet)
	require.Len(t, visits, 1)
	v := visits[0]
	require.True(t, v.TotalVal.Equal(decimal.NewFromInt(140)))
	require.True(t, v.TotalPaid.Equal(decimal.NewFromInt(60)))
	require.True(t, v.TotalRemaining.Equal(decimal.NewFromInt(80)))
}

func TestVisitOrdering(t *testing.T) {
	pa, pb := int64(1), int64(2)
	early := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	lines := []Line{
		lineAt(1, &pb, "", day(2026, 2, 10), 20, late),
		lineAt(2, &pa, "", day(2026, 2, 9), 50, early),
	}

	sheet := GroupByVisit(lines, OrderSheet)
	require.True(t, sheet[0].FirstCreatedAt.Before(sheet[1].FirstCreatedAt))

	recent := GroupByVisit(lines, OrderRecent)
	require.True(t, recent[0].Date.After(recent[1].Date))
}
