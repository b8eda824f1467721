package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskPlanDueScan walks active plans and flags overdue installments.
	TaskPlanDueScan = "plan:due_scan"
	// TaskIdempotencyCleanup prunes aged idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskSendReminder delivers an installment reminder.
	TaskSendReminder = "notify:reminder"
)

// ReminderPayload describes one installment reminder.
type ReminderPayload struct {
	PlanID      int64  `json:"plan_id"`
	PatientID   int64  `json:"patient_id"`
	Label       string `json:"label"`
	Overdue     int    `json:"overdue"`
	RemainingUS string `json:"remaining_usd"`
}

// NewReminderTask constructs an Asynq task for a reminder.
func NewReminderTask(payload ReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendReminder, data), nil
}

// NewPlanDueScanTask constructs the due-scan task.
func NewPlanDueScanTask() *asynq.Task {
	return asynq.NewTask(TaskPlanDueScan, nil)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
