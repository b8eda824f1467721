package schedule

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dentara-clinic/dentara/internal/ledger"
)

type fakeLedger struct {
	lines    []ledger.Line
	dayCalls int
}

func (f *fakeLedger) DayLines(_ context.Context, branchID int64, date time.Time) ([]ledger.Line, error) {
	f.dayCalls++
	out := make([]ledger.Line, 0)
	for _, l := range f.lines {
		if l.BranchID == branchID && l.Date.Equal(date) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLedger) Visits(ctx context.Context, branchID int64, date time.Time, order ledger.VisitOrder) ([]ledger.Visit, error) {
	lines, err := f.DayLines(ctx, branchID, date)
	if err != nil {
		return nil, err
	}
	return ledger.GroupByVisit(lines, order), nil
}

func (f *fakeLedger) SetStatus(_ context.Context, id int64, status ledger.Status) (ledger.Line, error) {
	for i := range f.lines {
		if f.lines[i].ID == id {
			f.lines[i].Status = status
			return f.lines[i], nil
		}
	}
	return ledger.Line{}, ledger.ErrLineNotFound
}

func (f *fakeLedger) Reschedule(_ context.Context, id int64, date time.Time, at string, durationMin int) (ledger.Line, error) {
	for i := range f.lines {
		if f.lines[i].ID == id {
			f.lines[i].Date = date
			f.lines[i].AppointmentTime = at
			if durationMin > 0 {
				f.lines[i].DurationMinutes = durationMin
			}
			return f.lines[i], nil
		}
	}
	return ledger.Line{}, ledger.ErrLineNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func day(yyyy int, m time.Month, dd int) time.Time {
	return time.Date(yyyy, m, dd, 0, 0, 0, 0, time.UTC)
}

func sampleDay() []ledger.Line {
	pid := int64(10)
	return []ledger.Line{
		{
			ID: 1, BranchID: 1, PatientID: &pid, PatientName: "Dara",
			ItemType: ledger.ItemTreatment, Description: "Cleaning",
			TotalPrice:      decimal.NewFromInt(40),
			AmountPaid:      decimal.NewFromInt(40),
			PaidABA:         decimal.NewFromInt(40),
			AmountRemaining: decimal.Zero,
			Date:            day(2024, time.March, 5), AppointmentTime: "09:00",
			Status: ledger.StatusFinished, CreatedAt: time.Now(),
		},
		{
			ID: 2, BranchID: 1, PatientID: &pid, PatientName: "Dara",
			ItemType: ledger.ItemMedicine, Description: "Amoxicillin",
			TotalPrice:      decimal.NewFromInt(10),
			AmountPaid:      decimal.NewFromInt(5),
			PaidCashUSD:     decimal.NewFromInt(5),
			AmountRemaining: decimal.NewFromInt(5),
			Date:            day(2024, time.March, 5),
			CreatedAt:       time.Now(),
		},
		{
			ID: 3, BranchID: 1, PatientName: "Walk-in",
			ItemType: ledger.ItemTreatment, Description: "Extraction",
			TotalPrice:      decimal.NewFromInt(60),
			AmountRemaining: decimal.NewFromInt(60),
			Date:            day(2024, time.March, 5), AppointmentTime: "10:30",
			Status: ledger.StatusPending, CreatedAt: time.Now(),
		},
	}
}

func newTestService(t *testing.T) (*Service, *fakeLedger, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lgr := &fakeLedger{lines: sampleDay()}
	svc := NewService(testLogger(), lgr, client)
	t.Cleanup(svc.Close)
	return svc, lgr, client
}

func TestDayReturnsOnlyTreatmentLines(t *testing.T) {
	svc, _, _ := newTestService(t)

	appts, err := svc.Day(context.Background(), 1, day(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, appts, 2)
	require.Equal(t, "09:00", appts[0].At)
	require.Equal(t, "10:30", appts[1].At)
}

func TestSummaryAggregatesDay(t *testing.T) {
	svc, _, _ := newTestService(t)

	s, err := svc.Summary(context.Background(), 1, day(2024, time.March, 5))
	require.NoError(t, err)
	require.Equal(t, 2, s.VisitCount) // Dara's visit plus the walk-in
	require.Equal(t, 3, s.LineCount)
	require.True(t, s.TotalBilled.Equal(decimal.NewFromInt(110)))
	require.True(t, s.TotalCollected.Equal(decimal.NewFromInt(45)))
	require.True(t, s.TotalOutstanding.Equal(decimal.NewFromInt(65)))
	require.True(t, s.CollectedABA.Equal(decimal.NewFromInt(40)))
	require.True(t, s.CollectedCashUSD.Equal(decimal.NewFromInt(5)))
}

func TestSummaryServedFromCache(t *testing.T) {
	svc, lgr, _ := newTestService(t)

	_, err := svc.Summary(context.Background(), 1, day(2024, time.March, 5))
	require.NoError(t, err)
	loads := lgr.dayCalls

	s, err := svc.Summary(context.Background(), 1, day(2024, time.March, 5))
	require.NoError(t, err)
	require.Equal(t, loads, lgr.dayCalls)
	require.True(t, s.TotalBilled.Equal(decimal.NewFromInt(110)))
}

func TestInvalidateDropsCacheAfterQuietWindow(t *testing.T) {
	svc, lgr, client := newTestService(t)
	date := day(2024, time.March, 5)

	_, err := svc.Summary(context.Background(), 1, date)
	require.NoError(t, err)
	key := summaryKey(1, date)
	require.Equal(t, int64(1), client.Exists(context.Background(), key).Val())

	// A burst of invalidations collapses into one delete.
	svc.Invalidate(1, date)
	svc.Invalidate(1, date)
	svc.Invalidate(1, date)
	require.Eventually(t, func() bool {
		return client.Exists(context.Background(), key).Val() == 0
	}, 2*time.Second, 20*time.Millisecond)

	loads := lgr.dayCalls
	_, err = svc.Summary(context.Background(), 1, date)
	require.NoError(t, err)
	require.Greater(t, lgr.dayCalls, loads)
}

func TestSetStatusFlowsThroughLedger(t *testing.T) {
	svc, lgr, _ := newTestService(t)

	line, err := svc.SetStatus(context.Background(), 3, ledger.StatusDoing)
	require.NoError(t, err)
	require.Equal(t, ledger.StatusDoing, line.Status)
	require.Equal(t, ledger.StatusDoing, lgr.lines[2].Status)
}

func TestRescheduleMovesAppointment(t *testing.T) {
	svc, _, _ := newTestService(t)

	target := day(2024, time.March, 7)
	line, err := svc.Reschedule(context.Background(), 3, target, "14:00", 45)
	require.NoError(t, err)
	require.Equal(t, target, line.Date)
	require.Equal(t, "14:00", line.AppointmentTime)
	require.Equal(t, 45, line.DurationMinutes)
}
