package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dentara-clinic/dentara/internal/plan"
)

// PlanPort is the slice of the plan service the scan reads through.
type PlanPort interface {
	ActivePlans(ctx context.Context) ([]plan.Plan, error)
	Progress(ctx context.Context, planID int64, asOf time.Time) (plan.Progress, error)
}

// Enqueuer submits follow-up tasks from within a job.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PlanDueScanner flags overdue installments across active plans and queues
// one reminder per plan that has any. It only reads and enqueues: plan
// status is never touched here.
type PlanDueScanner struct {
	logger *slog.Logger
	plans  PlanPort
	queue  Enqueuer
}

// NewPlanDueScanner constructs the scanner.
func NewPlanDueScanner(logger *slog.Logger, plans PlanPort, queue Enqueuer) *PlanDueScanner {
	return &PlanDueScanner{logger: logger, plans: plans, queue: queue}
}

// Handle processes TaskPlanDueScan.
func (s *PlanDueScanner) Handle(ctx context.Context, _ *asynq.Task) error {
	active, err := s.plans.ActivePlans(ctx)
	if err != nil {
		return err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)

	flagged := 0
	for _, p := range active {
		prog, err := s.plans.Progress(ctx, p.ID, today)
		if err != nil {
			s.logger.Error("due scan: progress failed",
				slog.Int64("plan", p.ID), slog.Any("error", err))
			continue
		}
		if prog.OverdueCount == 0 {
			continue
		}
		flagged++
		if s.queue == nil {
			continue
		}
		task, err := NewReminderTask(ReminderPayload{
			PlanID:      p.ID,
			PatientID:   p.PatientID,
			Label:       p.Label,
			Overdue:     prog.OverdueCount,
			RemainingUS: prog.RemainingTotal.StringFixed(2),
		})
		if err != nil {
			return err
		}
		if _, err := s.queue.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
			s.logger.Error("due scan: enqueue reminder failed",
				slog.Int64("plan", p.ID), slog.Any("error", err))
		}
	}

	s.logger.Info("plan due scan finished",
		slog.Int("active", len(active)), slog.Int("flagged", flagged))
	return nil
}

// HandleReminder processes TaskSendReminder. Delivery is a log line for
// now; SMS/Telegram delivery sits outside this service.
func HandleReminder(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReminderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("installment reminder",
			slog.Int64("plan", payload.PlanID),
			slog.Int64("patient", payload.PatientID),
			slog.String("label", payload.Label),
			slog.Int("overdue", payload.Overdue),
			slog.String("remaining", payload.RemainingUS))
		return nil
	}
}
