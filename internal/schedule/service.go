package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dentara-clinic/dentara/internal/ledger"
	"github.com/dentara-clinic/dentara/internal/shared"
)

// LedgerPort is the slice of the ledger service the schedule reads through.
type LedgerPort interface {
	DayLines(ctx context.Context, branchID int64, date time.Time) ([]ledger.Line, error)
	Visits(ctx context.Context, branchID int64, date time.Time, order ledger.VisitOrder) ([]ledger.Visit, error)
	SetStatus(ctx context.Context, id int64, status ledger.Status) (ledger.Line, error)
	Reschedule(ctx context.Context, id int64, date time.Time, at string, durationMin int) (ledger.Line, error)
}

const (
	summaryTTL      = 30 * time.Second
	invalidateQuiet = 300 * time.Millisecond
)

// Service serves the appointment day view and a cached day summary.
// Summary loads run in parallel, identical concurrent requests collapse
// through singleflight, and invalidation after an edit burst is debounced.
type Service struct {
	logger *slog.Logger
	ledger LedgerPort
	cache  *redis.Client
	group  singleflight.Group

	mu         sync.Mutex
	debouncers map[string]*shared.Debouncer
}

// NewService builds the schedule Service. cache may be nil; summaries are
// then computed on every request.
func NewService(logger *slog.Logger, ledgerSvc LedgerPort, cache *redis.Client) *Service {
	return &Service{
		logger:     logger,
		ledger:     ledgerSvc,
		cache:      cache,
		debouncers: make(map[string]*shared.Debouncer),
	}
}

// Day lists a branch's appointments for one date, built from its treatment
// lines.
func (s *Service) Day(ctx context.Context, branchID int64, date time.Time) ([]Appointment, error) {
	lines, err := s.ledger.DayLines(ctx, branchID, date)
	if err != nil {
		return nil, err
	}
	appts := make([]Appointment, 0, len(lines))
	for _, l := range lines {
		if l.ItemType != ledger.ItemTreatment {
			continue
		}
		appts = append(appts, Appointment{
			LineID:          l.ID,
			PatientID:       l.PatientID,
			PatientName:     l.PatientName,
			DoctorID:        l.DoctorID,
			DoctorName:      l.DoctorName,
			TreatmentName:   l.TreatmentName,
			Description:     l.Description,
			Date:            l.Date,
			At:              l.AppointmentTime,
			DurationMinutes: l.DurationMinutes,
			Status:          string(l.Status),
		})
	}
	return appts, nil
}

// SetStatus moves an appointment through the day.
func (s *Service) SetStatus(ctx context.Context, lineID int64, status ledger.Status) (ledger.Line, error) {
	line, err := s.ledger.SetStatus(ctx, lineID, status)
	if err != nil {
		return line, err
	}
	s.Invalidate(line.BranchID, line.Date)
	return line, nil
}

// Reschedule moves an appointment to a new slot.
func (s *Service) Reschedule(ctx context.Context, lineID int64, date time.Time, at string, durationMin int) (ledger.Line, error) {
	line, err := s.ledger.Reschedule(ctx, lineID, date, at, durationMin)
	if err != nil {
		return line, err
	}
	s.Invalidate(line.BranchID, date)
	return line, nil
}

func summaryKey(branchID int64, date time.Time) string {
	return fmt.Sprintf("schedule:summary:%d:%s", branchID, date.Format("2006-01-02"))
}

// Summary returns the aggregated day totals, served from cache when fresh.
func (s *Service) Summary(ctx context.Context, branchID int64, date time.Time) (DaySummary, error) {
	if branchID == 0 {
		return DaySummary{}, shared.ErrBranchRequired
	}
	key := summaryKey(branchID, date)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached DaySummary
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	resultChan := s.group.DoChan(key, func() (any, error) {
		return s.computeSummary(ctx, branchID, date, key)
	})
	select {
	case <-ctx.Done():
		return DaySummary{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return DaySummary{}, res.Err
		}
		return res.Val.(DaySummary), nil
	}
}

func (s *Service) computeSummary(ctx context.Context, branchID int64, date time.Time, key string) (DaySummary, error) {
	summary := DaySummary{BranchID: branchID, Date: date.Format("2006-01-02")}

	var (
		lines  []ledger.Line
		visits []ledger.Visit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lines, err = s.ledger.DayLines(gctx, branchID, date)
		return err
	})
	g.Go(func() error {
		var err error
		visits, err = s.ledger.Visits(gctx, branchID, date, ledger.OrderSheet)
		return err
	})
	if err := g.Wait(); err != nil {
		return DaySummary{}, err
	}

	summary.VisitCount = len(visits)
	summary.LineCount = len(lines)
	for _, l := range lines {
		summary.TotalBilled = summary.TotalBilled.Add(l.TotalPrice)
		summary.TotalCollected = summary.TotalCollected.Add(l.AmountPaid)
		summary.TotalOutstanding = summary.TotalOutstanding.Add(l.AmountRemaining)
		summary.CollectedABA = summary.CollectedABA.Add(l.PaidABA)
		summary.CollectedCashUSD = summary.CollectedCashUSD.Add(l.PaidCashUSD)
		summary.CollectedCashKHR = summary.CollectedCashKHR.Add(l.PaidCashKHR)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, key, raw, summaryTTL).Err(); err != nil {
				s.logger.Warn("summary cache write failed", slog.Any("error", err))
			}
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary for a branch day once the edit burst
// goes quiet. Desk edits come in flurries; dropping the key on every
// keystroke would defeat the cache.
func (s *Service) Invalidate(branchID int64, date time.Time) {
	if s.cache == nil {
		return
	}
	key := summaryKey(branchID, date)

	s.mu.Lock()
	deb, ok := s.debouncers[key]
	if !ok {
		deb = shared.NewDebouncer(invalidateQuiet)
		s.debouncers[key] = deb
	}
	s.mu.Unlock()

	deb.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("summary invalidation failed", slog.String("key", key), slog.Any("error", err))
		}
	})
}

// Close stops pending invalidation timers.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, deb := range s.debouncers {
		deb.Stop()
	}
}
